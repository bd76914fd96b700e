// Package models defines the records produced and persisted by the crawler.
package models

import "github.com/shopspring/decimal"

// CatalogItem is one catalog entry scraped from a detail page. It is keyed by
// ItemKey and is not modified after the extractor builds it.
type CatalogItem struct {
	ItemKey        string          `csv:"item_key" json:"item_key"`
	Title          string          `csv:"title" json:"title"`
	ImageURL       string          `csv:"image_url" json:"image_url"`
	Category       string          `csv:"category" json:"category"`
	PriceSource    decimal.Decimal `csv:"price_source" json:"price_source"`
	PriceConverted decimal.Decimal `csv:"price_converted" json:"price_converted"`
	StockCount     int             `csv:"stock_count" json:"stock_count"`
	RatingScore    int             `csv:"rating_score" json:"rating_score"`
	Synopsis       string          `csv:"synopsis" json:"synopsis"`
	ReviewCount    int             `csv:"review_count" json:"review_count"`
	SourceLink     string          `csv:"source_link" json:"source_link"`
}
