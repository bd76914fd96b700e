package parser

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

const detailURL = "https://books.toscrape.com/catalogue/a-light-in-the-attic_1000/index.html"

func loadFixture(t *testing.T, name string) string {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("read fixture %s: %v", name, err)
	}
	return string(raw)
}

func newTestExtractor(t *testing.T) *Extractor {
	t.Helper()
	e, err := NewExtractor("https://books.toscrape.com/catalogue/page-1.html", NewRateTable("EUR", "BRL", 6.35))
	if err != nil {
		t.Fatalf("new extractor: %v", err)
	}
	return e
}

func TestExtractDetailPage(t *testing.T) {
	e := newTestExtractor(t)

	out, err := e.Extract([]byte(loadFixture(t, "detail.html")), detailURL)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(out.Warnings) != 0 {
		t.Fatalf("warnings=%v, want none", out.Warnings)
	}

	item := out.Item
	checks := []struct {
		field string
		got   string
		want  string
	}{
		{"itemKey", item.ItemKey, "a897fe39b1053632"},
		{"title", item.Title, "A Light in the Attic"},
		{"category", item.Category, "Poetry"},
		{"imageUrl", item.ImageURL, "https://books.toscrape.com/media/cache/fe/72/fe72f0532301ec28892ae79a629a293c.jpg"},
		{"sourceLink", item.SourceLink, detailURL},
		{"priceSource", item.PriceSource.String(), "51.77"},
		{"priceConverted", item.PriceConverted.String(), "328.7395"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s=%q, want %q", c.field, c.got, c.want)
		}
	}
	if item.StockCount != 22 {
		t.Errorf("stockCount=%d, want 22", item.StockCount)
	}
	if item.RatingScore != 3 {
		t.Errorf("ratingScore=%d, want 3", item.RatingScore)
	}
	if item.ReviewCount != 0 {
		t.Errorf("reviewCount=%d, want 0", item.ReviewCount)
	}
	if !strings.HasPrefix(item.Synopsis, "It's hard to imagine") {
		t.Errorf("synopsis=%q", item.Synopsis)
	}
}

func TestExtractRequiredFields(t *testing.T) {
	tests := []struct {
		name  string
		old   string
		new   string
		field string
	}{
		{
			name:  "missing price",
			old:   `<p class="price_color">£51.77</p>`,
			new:   "",
			field: "priceSource",
		},
		{
			name:  "price without decimals",
			old:   `<p class="price_color">£51.77</p>`,
			new:   `<p class="price_color">£51</p>`,
			field: "priceSource",
		},
		{
			name:  "missing title",
			old:   "<h1>A Light in the Attic</h1>",
			new:   "",
			field: "title",
		},
		{
			name:  "missing upc",
			old:   "<tr><th>UPC</th><td>a897fe39b1053632</td></tr>",
			new:   "",
			field: "itemKey",
		},
		{
			name:  "short breadcrumb",
			old:   `<li><a href="../category/books/poetry_23/index.html">Poetry</a></li>`,
			new:   "",
			field: "category",
		},
		{
			name:  "missing availability",
			old:   `<p class="instock availability">`,
			new:   `<p class="stock">`,
			field: "stockCount",
		},
		{
			name:  "missing review count",
			old:   "<tr><th>Number of reviews</th><td>0</td></tr>",
			new:   "",
			field: "reviewCount",
		},
		{
			name:  "missing image",
			old:   `<img src="../../media/cache/fe/72/fe72f0532301ec28892ae79a629a293c.jpg" alt="A Light in the Attic" />`,
			new:   "",
			field: "imageUrl",
		},
	}

	e := newTestExtractor(t)
	fixture := loadFixture(t, "detail.html")

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := strings.Replace(fixture, tt.old, tt.new, 1)
			if page == fixture {
				t.Fatalf("fixture does not contain %q", tt.old)
			}
			if tt.name == "short breadcrumb" {
				page = strings.Replace(page, `<li class="active">A Light in the Attic</li>`, "", 1)
			}

			out, err := e.Extract([]byte(page), detailURL)
			if out != nil {
				t.Fatalf("expected no extraction, got %+v", out.Item)
			}
			if !IsMissingField(err, tt.field) {
				t.Fatalf("err=%v, want missing field %s", err, tt.field)
			}
		})
	}
}

func TestExtractUnknownRating(t *testing.T) {
	e := newTestExtractor(t)
	page := strings.Replace(loadFixture(t, "detail.html"), "star-rating Three", "star-rating Zero", 1)

	_, err := e.Extract([]byte(page), detailURL)
	var perr *ParseError
	if !errors.As(err, &perr) || perr.Kind != UnknownRatingToken {
		t.Fatalf("err=%v, want unknown rating token", err)
	}
	if perr.Value != "Zero" {
		t.Fatalf("value=%q, want Zero", perr.Value)
	}
}

func TestExtractRepairsMisdecodedSynopsis(t *testing.T) {
	e := newTestExtractor(t)
	page := strings.Replace(loadFixture(t, "detail.html"), "It's hard to imagine", "Itâ\u0080\u0099s hard to imagine", 1)

	out, err := e.Extract([]byte(page), detailURL)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(out.Warnings) != 0 {
		t.Fatalf("warnings=%v, want none", out.Warnings)
	}
	if !strings.HasPrefix(out.Item.Synopsis, "It’s hard to imagine") {
		t.Fatalf("synopsis=%q", out.Item.Synopsis)
	}
}

func TestExtractKeepsCleanUTF8Synopsis(t *testing.T) {
	e := newTestExtractor(t)
	page := strings.Replace(loadFixture(t, "detail.html"), "It's hard to imagine", "It’s hard to imagine — un café", 1)

	out, err := e.Extract([]byte(page), detailURL)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(out.Warnings) != 0 {
		t.Fatalf("warnings=%v, want none", out.Warnings)
	}
	if !strings.HasPrefix(out.Item.Synopsis, "It’s hard to imagine — un café") {
		t.Fatalf("synopsis should pass through unchanged, got %q", out.Item.Synopsis)
	}
}

func TestExtractOutOfStock(t *testing.T) {
	e := newTestExtractor(t)
	page := strings.Replace(loadFixture(t, "detail.html"), "In stock (22 available)", "Out of stock", 1)

	out, err := e.Extract([]byte(page), detailURL)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if out.Item.StockCount != 0 {
		t.Fatalf("stockCount=%d, want 0", out.Item.StockCount)
	}
}

func TestNewExtractorRejectsMissingRate(t *testing.T) {
	rates := RateTable{Source: "EUR", Primary: "BRL", Rates: map[string]decimal.Decimal{}}
	if _, err := NewExtractor("https://books.toscrape.com/", rates); err == nil {
		t.Fatalf("expected error for missing primary rate")
	}
}
