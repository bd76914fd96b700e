package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/aluiziolira/books-catalog-etl/models"
	"github.com/shopspring/decimal"
)

var (
	priceRe = regexp.MustCompile(`\d+\.\d+`)
	countRe = regexp.MustCompile(`\d+`)
)

// ParsePrice pulls the first decimal number out of a localized price string
// such as "£51.77".
func ParsePrice(text string) (decimal.Decimal, error) {
	match := priceRe.FindString(text)
	if match == "" {
		return decimal.Zero, &ParseError{Kind: MissingField, Field: "priceSource", Value: strings.TrimSpace(text)}
	}
	price, err := decimal.NewFromString(match)
	if err != nil {
		return decimal.Zero, &ParseError{Kind: MissingField, Field: "priceSource", Value: match, Err: err}
	}
	return price, nil
}

// ParseStock reads the item count out of an availability string such as
// "In stock (22 available)". "Out of stock" without a count is zero.
func ParseStock(text string) (int, error) {
	text = strings.TrimSpace(text)
	match := countRe.FindString(text)
	if match == "" {
		if strings.Contains(strings.ToLower(text), "out of stock") {
			return 0, nil
		}
		return 0, &ParseError{Kind: MissingField, Field: "stockCount", Value: text}
	}
	count, err := strconv.Atoi(match)
	if err != nil {
		return 0, &ParseError{Kind: MissingField, Field: "stockCount", Value: match, Err: err}
	}
	return count, nil
}

// Validate checks the required CatalogItem fields and value ranges.
func Validate(item *models.CatalogItem) error {
	if item == nil {
		return missing("item")
	}
	if strings.TrimSpace(item.ItemKey) == "" {
		return missing("itemKey")
	}
	if strings.TrimSpace(item.Title) == "" {
		return missing("title")
	}
	if item.RatingScore < 1 || item.RatingScore > 5 {
		return &ParseError{Kind: UnknownRatingToken, Field: "ratingScore", Value: strconv.Itoa(item.RatingScore)}
	}
	if item.StockCount < 0 {
		return &ParseError{Kind: MissingField, Field: "stockCount", Value: strconv.Itoa(item.StockCount)}
	}
	if item.ReviewCount < 0 {
		return &ParseError{Kind: MissingField, Field: "reviewCount", Value: strconv.Itoa(item.ReviewCount)}
	}
	if item.PriceSource.IsNegative() {
		return &ParseError{Kind: MissingField, Field: "priceSource", Value: item.PriceSource.String()}
	}
	return nil
}
