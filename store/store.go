// Package store persists CatalogItems keyed by item key. Upsert is the only
// write the crawler performs.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aluiziolira/books-catalog-etl/models"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned by Get when no row has the key.
var ErrNotFound = errors.New("store: item not found")

// StoreErrorKind classifies persistence failures.
type StoreErrorKind string

const (
	WriteFailed StoreErrorKind = "write_failed"
	Unreachable StoreErrorKind = "unreachable"
)

// StoreError reports a failed store operation.
type StoreError struct {
	Kind    StoreErrorKind
	Op      string
	ItemKey string
	Err     error
}

func (e *StoreError) Error() string {
	if e.ItemKey != "" {
		return fmt.Sprintf("store %s %s (%s): %v", e.Op, e.ItemKey, e.Kind, e.Err)
	}
	return fmt.Sprintf("store %s (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Label is the error type used in reports and metrics.
func (e *StoreError) Label() string {
	return string(e.Kind)
}

// Store is the persistence boundary for catalog items.
type Store interface {
	// Upsert inserts item or fully replaces the non-key columns of the row
	// with the same ItemKey, atomically.
	Upsert(ctx context.Context, item *models.CatalogItem) error
	Get(ctx context.Context, itemKey string) (*models.CatalogItem, error)
	Count(ctx context.Context) (int, error)
	// Each calls fn for every stored item ordered by key.
	Each(ctx context.Context, fn func(*models.CatalogItem) error) error
	Ping(ctx context.Context) error
	Close() error
}

// Open picks a backend from dsn: postgres:// and postgresql:// URLs use
// PostgreSQL, anything else is a SQLite database path.
func Open(ctx context.Context, dsn string) (Store, error) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return OpenPostgres(ctx, dsn)
	default:
		return OpenSQLite(ctx, strings.TrimPrefix(dsn, "sqlite://"))
	}
}

const columns = `item_key, title, image_url, category, price_source, price_converted, stock_count, rating_score, synopsis, review_count, source_link`

const updateSet = `title = excluded.title,
    image_url = excluded.image_url,
    category = excluded.category,
    price_source = excluded.price_source,
    price_converted = excluded.price_converted,
    stock_count = excluded.stock_count,
    rating_score = excluded.rating_score,
    synopsis = excluded.synopsis,
    review_count = excluded.review_count,
    source_link = excluded.source_link`

func itemArgs(item *models.CatalogItem) []any {
	return []any{
		item.ItemKey,
		item.Title,
		item.ImageURL,
		item.Category,
		item.PriceSource.InexactFloat64(),
		item.PriceConverted.InexactFloat64(),
		item.StockCount,
		item.RatingScore,
		item.Synopsis,
		item.ReviewCount,
		item.SourceLink,
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(row scanner) (*models.CatalogItem, error) {
	var (
		item      models.CatalogItem
		source    float64
		converted float64
	)
	if err := row.Scan(
		&item.ItemKey,
		&item.Title,
		&item.ImageURL,
		&item.Category,
		&source,
		&converted,
		&item.StockCount,
		&item.RatingScore,
		&item.Synopsis,
		&item.ReviewCount,
		&item.SourceLink,
	); err != nil {
		return nil, err
	}
	item.PriceSource = decimal.NewFromFloat(source)
	item.PriceConverted = decimal.NewFromFloat(converted)
	return &item, nil
}

func validKey(item *models.CatalogItem) error {
	if item == nil || strings.TrimSpace(item.ItemKey) == "" {
		return &StoreError{Kind: WriteFailed, Op: "upsert", Err: errors.New("item key is empty")}
	}
	return nil
}
