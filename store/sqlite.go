package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aluiziolira/books-catalog-etl/models"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS catalog_items (
    item_key TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    image_url TEXT NOT NULL,
    category TEXT NOT NULL,
    price_source REAL NOT NULL,
    price_converted REAL NOT NULL,
    stock_count INTEGER NOT NULL,
    rating_score INTEGER NOT NULL,
    synopsis TEXT NOT NULL,
    review_count INTEGER NOT NULL,
    source_link TEXT NOT NULL
);
`

// SQLiteStore keeps catalog items in a SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and applies the
// schema.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &StoreError{Kind: Unreachable, Op: "open", Err: err}
	}
	// One connection serializes writers and avoids SQLITE_BUSY between them.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	for _, stmt := range []string{`PRAGMA busy_timeout = 5000`, `PRAGMA journal_mode = WAL`, sqliteSchema} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return &StoreError{Kind: Unreachable, Op: "migrate", Err: err}
		}
	}
	return nil
}

// Upsert implements Store.
func (s *SQLiteStore) Upsert(ctx context.Context, item *models.CatalogItem) error {
	if err := validKey(item); err != nil {
		return err
	}
	query := `INSERT INTO catalog_items (` + columns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(item_key) DO UPDATE SET ` + updateSet
	if _, err := s.db.ExecContext(ctx, query, itemArgs(item)...); err != nil {
		return &StoreError{Kind: sqliteKind(err), Op: "upsert", ItemKey: item.ItemKey, Err: err}
	}
	return nil
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, itemKey string) (*models.CatalogItem, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+columns+` FROM catalog_items WHERE item_key = ?`, itemKey)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &StoreError{Kind: sqliteKind(err), Op: "get", ItemKey: itemKey, Err: err}
	}
	return item, nil
}

// Count implements Store.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM catalog_items`).Scan(&n); err != nil {
		return 0, &StoreError{Kind: sqliteKind(err), Op: "count", Err: err}
	}
	return n, nil
}

// Each implements Store.
func (s *SQLiteStore) Each(ctx context.Context, fn func(*models.CatalogItem) error) error {
	rows, err := s.db.QueryContext(ctx, `SELECT `+columns+` FROM catalog_items ORDER BY item_key`)
	if err != nil {
		return &StoreError{Kind: sqliteKind(err), Op: "list", Err: err}
	}
	defer rows.Close()

	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return &StoreError{Kind: WriteFailed, Op: "list", Err: err}
		}
		if err := fn(item); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return &StoreError{Kind: sqliteKind(err), Op: "list", Err: err}
	}
	return nil
}

// Ping implements Store.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return &StoreError{Kind: Unreachable, Op: "ping", Err: err}
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func sqliteKind(err error) StoreErrorKind {
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return Unreachable
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "database is locked") || strings.Contains(msg, "unable to open") || strings.Contains(msg, "database is closed") {
		return Unreachable
	}
	return WriteFailed
}
