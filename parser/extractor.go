package parser

import (
	"bytes"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/books-catalog-etl/models"
)

// Extraction is the outcome of parsing one detail page. Warnings carries
// degraded optional fields (the synopsis encoding repair) that did not stop
// the item from being built.
type Extraction struct {
	Item     *models.CatalogItem
	Warnings []error
}

// Extractor parses detail pages into CatalogItems.
type Extractor struct {
	siteRoot *url.URL
	rates    RateTable
}

// NewExtractor builds an extractor that resolves image paths against
// siteRoot and converts prices with rates.
func NewExtractor(siteRoot string, rates RateTable) (*Extractor, error) {
	root, err := url.Parse(siteRoot)
	if err != nil {
		return nil, fmt.Errorf("parse site root: %w", err)
	}
	if root.Host == "" {
		return nil, fmt.Errorf("site root must include a host")
	}
	root.Path = "/"
	root.RawQuery = ""
	root.Fragment = ""
	if _, ok := rates.Rates[rates.Primary]; !ok {
		return nil, fmt.Errorf("rate table has no rate for %s", rates.Primary)
	}
	return &Extractor{siteRoot: root, rates: rates}, nil
}

// Extract builds a CatalogItem from the raw markup of the detail page at
// pageURL. A required field that cannot be found yields a *ParseError naming
// it; no defaults are substituted.
func (e *Extractor) Extract(raw []byte, pageURL string) (*Extraction, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse detail html: %w", err)
	}

	title := strings.TrimSpace(doc.Find("h1").First().Text())
	if title == "" {
		return nil, missing("title")
	}

	itemKey := tableValue(doc, "UPC")
	if itemKey == "" {
		return nil, missing("itemKey")
	}

	imageURL, err := e.imageURL(doc)
	if err != nil {
		return nil, err
	}

	crumbs := doc.Find("ul.breadcrumb li")
	if crumbs.Length() < 3 {
		return nil, &ParseError{Kind: MissingField, Field: "category", Value: fmt.Sprintf("%d breadcrumb segments", crumbs.Length())}
	}
	category := strings.TrimSpace(crumbs.Eq(2).Text())
	if category == "" {
		return nil, missing("category")
	}

	price, err := ParsePrice(doc.Find("p.price_color").First().Text())
	if err != nil {
		return nil, err
	}
	converted, err := e.rates.ConvertPrimary(price)
	if err != nil {
		return nil, fmt.Errorf("convert price: %w", err)
	}

	availability := doc.Find("p.instock.availability").First()
	if availability.Length() == 0 {
		availability = doc.Find("p.availability").First()
	}
	if availability.Length() == 0 {
		return nil, missing("stockCount")
	}
	stock, err := ParseStock(availability.Text())
	if err != nil {
		return nil, err
	}

	ratingClass, ok := doc.Find("p.star-rating").First().Attr("class")
	if !ok {
		return nil, missing("ratingScore")
	}
	parts := strings.Fields(ratingClass)
	if len(parts) < 2 {
		return nil, missing("ratingScore")
	}
	rating, err := DecodeRating(parts[1])
	if err != nil {
		return nil, err
	}

	reviewsText := tableValue(doc, "Number of reviews")
	if reviewsText == "" {
		return nil, missing("reviewCount")
	}
	reviews, err := strconv.Atoi(reviewsText)
	if err != nil || reviews < 0 {
		return nil, &ParseError{Kind: MissingField, Field: "reviewCount", Value: reviewsText, Err: err}
	}

	out := &Extraction{}
	synopsis, _ := doc.Find(`meta[name="description"]`).First().Attr("content")
	synopsis = strings.TrimSpace(synopsis)
	if repaired, err := RepairEncoding(synopsis); err != nil {
		out.Warnings = append(out.Warnings, err)
	} else {
		synopsis = repaired
	}

	out.Item = &models.CatalogItem{
		ItemKey:        itemKey,
		Title:          title,
		ImageURL:       imageURL,
		Category:       category,
		PriceSource:    price,
		PriceConverted: converted,
		StockCount:     stock,
		RatingScore:    rating,
		Synopsis:       synopsis,
		ReviewCount:    reviews,
		SourceLink:     pageURL,
	}
	if err := Validate(out.Item); err != nil {
		return nil, err
	}
	return out, nil
}

// imageURL drops leading "../" segments from the first image source and
// resolves the remainder against the site root.
func (e *Extractor) imageURL(doc *goquery.Document) (string, error) {
	src, ok := doc.Find("img").First().Attr("src")
	src = strings.TrimSpace(src)
	if !ok || src == "" {
		return "", missing("imageUrl")
	}
	src = strings.ReplaceAll(src, "../", "")
	ref, err := url.Parse(src)
	if err != nil {
		return "", &ParseError{Kind: MissingField, Field: "imageUrl", Value: src, Err: err}
	}
	return e.siteRoot.ResolveReference(ref).String(), nil
}

// tableValue returns the product-information cell whose header is label.
func tableValue(doc *goquery.Document, label string) string {
	var value string
	doc.Find("table th").EachWithBreak(func(_ int, th *goquery.Selection) bool {
		if strings.TrimSpace(th.Text()) != label {
			return true
		}
		value = strings.TrimSpace(th.Next().Text())
		return false
	})
	return value
}
