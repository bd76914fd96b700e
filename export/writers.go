package export

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/aluiziolira/books-catalog-etl/models"
)

var csvHeader = []string{
	"item_key",
	"title",
	"image_url",
	"category",
	"price_source",
	"price_converted",
	"stock_count",
	"rating_score",
	"synopsis",
	"review_count",
	"source_link",
}

// sink owns the output file and a write buffer shared by the encoders.
type sink struct {
	mu   sync.Mutex
	path string
	file *os.File
	buf  *bufio.Writer
}

func openSink(path string) (*sink, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	return &sink{path: path, file: file, buf: bufio.NewWriter(file)}, nil
}

func (s *sink) close() error {
	if err := s.buf.Flush(); err != nil {
		s.file.Close()
		return fmt.Errorf("flush %s: %w", s.path, err)
	}
	return s.file.Close()
}

// validate reports an error when nothing reached the file.
func (s *sink) validate() error {
	info, err := s.file.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", s.path, err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("%s is empty", s.path)
	}
	return nil
}

// CSVWriter writes one row per item under a fixed header.
type CSVWriter struct {
	*sink
	enc *csv.Writer
}

// NewCSVWriter creates the file at path and writes the CSV header.
func NewCSVWriter(path string) (*CSVWriter, error) {
	s, err := openSink(path)
	if err != nil {
		return nil, err
	}
	w := &CSVWriter{sink: s, enc: csv.NewWriter(s.buf)}
	if err := w.flushRows([][]string{csvHeader}); err != nil {
		s.file.Close()
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	return w, nil
}

// Write appends one row per item and flushes the buffer.
func (w *CSVWriter) Write(items []*models.CatalogItem) error {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			item.ItemKey,
			item.Title,
			item.ImageURL,
			item.Category,
			item.PriceSource.String(),
			item.PriceConverted.String(),
			strconv.Itoa(item.StockCount),
			strconv.Itoa(item.RatingScore),
			item.Synopsis,
			strconv.Itoa(item.ReviewCount),
			item.SourceLink,
		})
	}
	return w.flushRows(rows)
}

func (w *CSVWriter) flushRows(rows [][]string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.enc.WriteAll(rows); err != nil {
		return fmt.Errorf("write csv rows: %w", err)
	}
	return w.buf.Flush()
}

// Close flushes pending rows and closes the file.
func (w *CSVWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.close()
}

// Validate checks that the CSV file is not empty.
func (w *CSVWriter) Validate() error {
	return w.validate()
}

// JSONWriter writes one JSON object per line.
type JSONWriter struct {
	*sink
	enc *json.Encoder
}

// NewJSONWriter creates the JSONL file at path.
func NewJSONWriter(path string) (*JSONWriter, error) {
	s, err := openSink(path)
	if err != nil {
		return nil, err
	}
	enc := json.NewEncoder(s.buf)
	enc.SetEscapeHTML(false)
	return &JSONWriter{sink: s, enc: enc}, nil
}

// Write encodes each item as one JSON line.
func (w *JSONWriter) Write(items []*models.CatalogItem) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, item := range items {
		if err := w.enc.Encode(item); err != nil {
			return fmt.Errorf("encode %s: %w", item.ItemKey, err)
		}
	}
	return w.buf.Flush()
}

// Close flushes pending lines and closes the file.
func (w *JSONWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.close()
}

// Validate checks that the JSONL file is not empty.
func (w *JSONWriter) Validate() error {
	return w.validate()
}
