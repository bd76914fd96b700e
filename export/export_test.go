package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/aluiziolira/books-catalog-etl/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportFromStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	st, err := store.OpenSQLite(ctx, filepath.Join(dir, "books.db"))
	require.NoError(t, err)
	defer st.Close()

	const n = batchSize + 6
	for i := 0; i < n; i++ {
		require.NoError(t, st.Upsert(ctx, testItem(fmt.Sprintf("key-%03d", i))))
	}

	path := filepath.Join(dir, "books.csv")
	w, err := NewWriter("csv", path)
	require.NoError(t, err)

	written, err := Export(ctx, st, w)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.Equal(t, n, written)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, n+1)
	assert.Equal(t, "key-000", records[1][0])
	assert.Equal(t, fmt.Sprintf("key-%03d", n-1), records[n][0])
}

func TestExportEmptyStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	st, err := store.OpenSQLite(ctx, filepath.Join(dir, "books.db"))
	require.NoError(t, err)
	defer st.Close()

	w, err := NewWriter("json", filepath.Join(dir, "books.jsonl"))
	require.NoError(t, err)
	defer w.Close()

	written, err := Export(ctx, st, w)
	require.NoError(t, err)
	assert.Zero(t, written)
}

func TestNewWriter(t *testing.T) {
	dir := t.TempDir()

	w, err := NewWriter("dual", filepath.Join(dir, "books.csv"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.FileExists(t, filepath.Join(dir, "books.jsonl"))

	_, err = NewWriter("xml", filepath.Join(dir, "books.xml"))
	assert.Error(t, err)
}
