package publisher

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aluiziolira/books-catalog-etl/models"
	"github.com/redis/go-redis/v9"
)

// RedisPublisher appends one stream entry per stored item.
type RedisPublisher struct {
	client    *redis.Client
	stream    string
	maxLength int64
}

// NewRedisPublisher creates a publisher writing to stream on the server at
// addr. A maxLength of 0 leaves the stream untrimmed.
func NewRedisPublisher(addr string, db int, stream string, maxLength int64) *RedisPublisher {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	return &RedisPublisher{
		client:    client,
		stream:    stream,
		maxLength: maxLength,
	}
}

// Ping checks the server is reachable.
func (p *RedisPublisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// Publish adds an entry with the item key, price and run id.
func (p *RedisPublisher) Publish(ctx context.Context, runID string, item *models.CatalogItem) error {
	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"item_key":        item.ItemKey,
			"title":           item.Title,
			"price_converted": item.PriceConverted.String(),
			"stock_count":     strconv.Itoa(item.StockCount),
			"run_id":          runID,
		},
	}
	if p.maxLength > 0 {
		args.MaxLen = p.maxLength
		args.Approx = true
	}
	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", item.ItemKey, err)
	}
	return nil
}

// Close closes the Redis connection.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
