// Package export dumps the stored catalog to flat files.
package export

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/aluiziolira/books-catalog-etl/models"
	"github.com/aluiziolira/books-catalog-etl/store"
)

const batchSize = 64

// Writer receives batches of items.
type Writer interface {
	Write(items []*models.CatalogItem) error
	Close() error
	Validate() error
}

// NewWriter opens a writer for format ("csv", "json" or "dual") at path.
// The dual format puts the JSONL file next to path with a .jsonl extension.
func NewWriter(format, path string) (Writer, error) {
	switch format {
	case "csv":
		return NewCSVWriter(path)
	case "json":
		return NewJSONWriter(path)
	case "dual":
		return NewDualWriter(path, jsonlSibling(path))
	default:
		return nil, fmt.Errorf("unknown export format %q", format)
	}
}

func jsonlSibling(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".jsonl"
}

// Export streams every stored item into w and returns how many were
// written. It does not close w.
func Export(ctx context.Context, st store.Store, w Writer) (int, error) {
	batch := make([]*models.CatalogItem, 0, batchSize)
	total := 0
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := w.Write(batch); err != nil {
			return err
		}
		total += len(batch)
		batch = batch[:0]
		return nil
	}

	err := st.Each(ctx, func(item *models.CatalogItem) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch = append(batch, item)
		if len(batch) >= batchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return total, fmt.Errorf("export items: %w", err)
	}
	if err := flush(); err != nil {
		return total, fmt.Errorf("export items: %w", err)
	}
	if total > 0 {
		if err := w.Validate(); err != nil {
			return total, err
		}
	}
	return total, nil
}
