package parser

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Convert multiplies amount by rate. No intermediate rounding is applied.
func Convert(amount, rate decimal.Decimal) decimal.Decimal {
	return amount.Mul(rate)
}

// RateTable holds fixed exchange rates from Source into one or more target
// currencies. Primary is the target stored as CatalogItem.PriceConverted.
type RateTable struct {
	Source  string
	Primary string
	Rates   map[string]decimal.Decimal
}

// NewRateTable builds a table with a single target currency.
func NewRateTable(source, target string, rate float64) RateTable {
	target = strings.ToUpper(target)
	return RateTable{
		Source:  strings.ToUpper(source),
		Primary: target,
		Rates:   map[string]decimal.Decimal{target: decimal.NewFromFloat(rate)},
	}
}

// Convert converts amount into the target currency code.
func (t RateTable) Convert(amount decimal.Decimal, target string) (decimal.Decimal, error) {
	target = strings.ToUpper(target)
	if target == t.Source {
		return amount, nil
	}
	rate, ok := t.Rates[target]
	if !ok {
		return decimal.Zero, fmt.Errorf("no exchange rate from %s to %s", t.Source, target)
	}
	return Convert(amount, rate), nil
}

// ConvertPrimary converts amount into the primary target currency.
func (t RateTable) ConvertPrimary(amount decimal.Decimal) (decimal.Decimal, error) {
	return t.Convert(amount, t.Primary)
}

// ConvertAll converts amount into every configured target currency.
func (t RateTable) ConvertAll(amount decimal.Decimal) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(t.Rates))
	for code, rate := range t.Rates {
		out[code] = Convert(amount, rate)
	}
	return out
}
