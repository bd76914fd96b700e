// Package publisher announces stored catalog items to downstream readers.
package publisher

import (
	"context"

	"github.com/aluiziolira/books-catalog-etl/models"
)

// Publisher notifies consumers that an item was written.
type Publisher interface {
	Publish(ctx context.Context, runID string, item *models.CatalogItem) error
	Close() error
}

// Nop discards every notification.
type Nop struct{}

func (Nop) Publish(context.Context, string, *models.CatalogItem) error { return nil }

func (Nop) Close() error { return nil }
