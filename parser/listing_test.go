package parser

import (
	"testing"
)

func TestParseListing(t *testing.T) {
	listing, err := ParseListing([]byte(loadFixture(t, "listing.html")), "https://books.toscrape.com/catalogue/page-2.html")
	if err != nil {
		t.Fatalf("parse listing: %v", err)
	}

	want := []string{
		"https://books.toscrape.com/catalogue/a-light-in-the-attic_1000/index.html",
		"https://books.toscrape.com/catalogue/tipping-the-velvet_999/index.html",
		"https://books.toscrape.com/catalogue/soumission_998/index.html",
	}
	if len(listing.Links) != len(want) {
		t.Fatalf("links=%v, want %v", listing.Links, want)
	}
	for i := range want {
		if listing.Links[i] != want[i] {
			t.Fatalf("links[%d]=%q, want %q", i, listing.Links[i], want[i])
		}
	}
	if !listing.HasNext {
		t.Fatalf("expected next marker")
	}
}

func TestParseListingFromSiteRoot(t *testing.T) {
	page := `<html><body>
		<article class="product_pod"><h3><a href="catalogue/book-1/index.html">Book 1</a></h3></article>
	</body></html>`

	listing, err := ParseListing([]byte(page), "https://books.toscrape.com/")
	if err != nil {
		t.Fatalf("parse listing: %v", err)
	}
	if len(listing.Links) != 1 || listing.Links[0] != "https://books.toscrape.com/catalogue/book-1/index.html" {
		t.Fatalf("links=%v", listing.Links)
	}
	if listing.HasNext {
		t.Fatalf("unexpected next marker")
	}
}
