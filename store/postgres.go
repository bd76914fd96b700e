package store

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/aluiziolira/books-catalog-etl/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS catalog_items (
    item_key TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    image_url TEXT NOT NULL,
    category TEXT NOT NULL,
    price_source DOUBLE PRECISION NOT NULL,
    price_converted DOUBLE PRECISION NOT NULL,
    stock_count INTEGER NOT NULL,
    rating_score INTEGER NOT NULL,
    synopsis TEXT NOT NULL,
    review_count INTEGER NOT NULL,
    source_link TEXT NOT NULL
);
`

// PostgresStore keeps catalog items in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to dsn and applies the schema.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, &StoreError{Kind: Unreachable, Op: "open", Err: err}
	}
	s := &PostgresStore{pool: pool}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, &StoreError{Kind: pgKind(err), Op: "migrate", Err: err}
	}
	return s, nil
}

// Upsert implements Store.
func (s *PostgresStore) Upsert(ctx context.Context, item *models.CatalogItem) error {
	if err := validKey(item); err != nil {
		return err
	}
	query := `INSERT INTO catalog_items (` + columns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (item_key) DO UPDATE SET ` + updateSet
	if _, err := s.pool.Exec(ctx, query, itemArgs(item)...); err != nil {
		return &StoreError{Kind: pgKind(err), Op: "upsert", ItemKey: item.ItemKey, Err: err}
	}
	return nil
}

// Get implements Store.
func (s *PostgresStore) Get(ctx context.Context, itemKey string) (*models.CatalogItem, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+columns+` FROM catalog_items WHERE item_key = $1`, itemKey)
	item, err := scanItem(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &StoreError{Kind: pgKind(err), Op: "get", ItemKey: itemKey, Err: err}
	}
	return item, nil
}

// Count implements Store.
func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM catalog_items`).Scan(&n); err != nil {
		return 0, &StoreError{Kind: pgKind(err), Op: "count", Err: err}
	}
	return n, nil
}

// Each implements Store.
func (s *PostgresStore) Each(ctx context.Context, fn func(*models.CatalogItem) error) error {
	rows, err := s.pool.Query(ctx, `SELECT `+columns+` FROM catalog_items ORDER BY item_key`)
	if err != nil {
		return &StoreError{Kind: pgKind(err), Op: "list", Err: err}
	}
	defer rows.Close()

	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return &StoreError{Kind: WriteFailed, Op: "list", Err: fmt.Errorf("scan: %w", err)}
		}
		if err := fn(item); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return &StoreError{Kind: pgKind(err), Op: "list", Err: err}
	}
	return nil
}

// Ping implements Store.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return &StoreError{Kind: Unreachable, Op: "ping", Err: err}
	}
	return nil
}

// Close implements Store.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func pgKind(err error) StoreErrorKind {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08 is connection exception, 57P0x is operator intervention.
		if strings.HasPrefix(pgErr.Code, "08") || strings.HasPrefix(pgErr.Code, "57P") {
			return Unreachable
		}
		return WriteFailed
	}
	var netErr net.Error
	if errors.As(err, &netErr) || pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		return Unreachable
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return Unreachable
	}
	return WriteFailed
}
