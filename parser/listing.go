package parser

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Listing is what one listing page contributes to a walk.
type Listing struct {
	Links   []string
	HasNext bool
}

// ParseListing collects the absolute detail-page links of every product on
// a listing page and reports whether the page carries a "next" marker.
// Relative links are resolved against pageURL.
func ParseListing(raw []byte, pageURL string) (*Listing, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse listing url: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse listing html: %w", err)
	}

	listing := &Listing{}
	doc.Find("article.product_pod").Each(func(_ int, pod *goquery.Selection) {
		href, ok := pod.Find("h3 a").First().Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			href, ok = pod.Find("a[href]").First().Attr("href")
		}
		href = strings.TrimSpace(href)
		if !ok || href == "" {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		listing.Links = append(listing.Links, base.ResolveReference(ref).String())
	})
	listing.HasNext = doc.Find("li.next").Length() > 0
	return listing, nil
}
