package export

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/aluiziolira/books-catalog-etl/models"
	"github.com/shopspring/decimal"
)

func testItem(key string) *models.CatalogItem {
	return &models.CatalogItem{
		ItemKey:        key,
		Title:          "Sharp Objects",
		ImageURL:       "http://example.test/media/cache/32/51/3251cf3a3412f53f339e42cac2134093.jpg",
		Category:       "Mystery",
		PriceSource:    decimal.RequireFromString("47.82"),
		PriceConverted: decimal.RequireFromString("303.657"),
		StockCount:     20,
		RatingScore:    4,
		Synopsis:       "WICKED above her hipbone, GIRL across her heart",
		ReviewCount:    0,
		SourceLink:     "http://example.test/catalogue/sharp-objects_997/index.html",
	}
}

func TestCSVWriterWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "books.csv")

	writer, err := NewCSVWriter(path)
	if err != nil {
		t.Fatalf("create csv writer: %v", err)
	}
	if err := writer.Write([]*models.CatalogItem{testItem("e00eb4fd7b871a48")}); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	if err := writer.Validate(); err != nil {
		t.Fatalf("validate csv: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close csv: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records=%d, want 2", len(records))
	}
	if records[0][0] != "item_key" || records[0][4] != "price_source" {
		t.Fatalf("unexpected header: %v", records[0])
	}
	if records[1][0] != "e00eb4fd7b871a48" {
		t.Fatalf("item_key=%q, want e00eb4fd7b871a48", records[1][0])
	}
	if records[1][4] != "47.82" || records[1][5] != "303.657" {
		t.Fatalf("prices=%q/%q, want 47.82/303.657", records[1][4], records[1][5])
	}
}

func TestCSVWriterKeepsFullPricePrecision(t *testing.T) {
	path := filepath.Join(t.TempDir(), "books.csv")

	writer, err := NewCSVWriter(path)
	if err != nil {
		t.Fatalf("create csv writer: %v", err)
	}
	item := testItem("e00eb4fd7b871a48")
	item.PriceSource = decimal.RequireFromString("51.775")
	if err := writer.Write([]*models.CatalogItem{item}); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close csv: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if records[1][4] != "51.775" {
		t.Fatalf("price_source=%q, want 51.775", records[1][4])
	}
}

func TestJSONWriterWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "books.jsonl")

	writer, err := NewJSONWriter(path)
	if err != nil {
		t.Fatalf("create json writer: %v", err)
	}
	items := []*models.CatalogItem{testItem("e00eb4fd7b871a48"), testItem("4165285e1663650f")}
	if err := writer.Write(items); err != nil {
		t.Fatalf("write json: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close json: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open json: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	count := 0
	for scanner.Scan() {
		var decoded models.CatalogItem
		if err := json.Unmarshal(scanner.Bytes(), &decoded); err != nil {
			t.Fatalf("invalid json line: %v", err)
		}
		if !decoded.PriceConverted.Equal(decimal.RequireFromString("303.657")) {
			t.Fatalf("price_converted=%s, want 303.657", decoded.PriceConverted)
		}
		count++
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan json: %v", err)
	}
	if count != 2 {
		t.Fatalf("json lines=%d, want 2", count)
	}
}

func TestJSONWriterValidateEmpty(t *testing.T) {
	writer, err := NewJSONWriter(filepath.Join(t.TempDir(), "empty.jsonl"))
	if err != nil {
		t.Fatalf("create json writer: %v", err)
	}
	defer writer.Close()

	if err := writer.Validate(); err == nil {
		t.Fatalf("expected empty file error")
	}
}

func TestDualWriterWrite(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "books.csv")
	jsonPath := filepath.Join(dir, "books.jsonl")

	writer, err := NewDualWriter(csvPath, jsonPath)
	if err != nil {
		t.Fatalf("create dual writer: %v", err)
	}
	if err := writer.Write([]*models.CatalogItem{testItem("e00eb4fd7b871a48")}); err != nil {
		t.Fatalf("write dual: %v", err)
	}
	if err := writer.Validate(); err != nil {
		t.Fatalf("validate dual: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close dual: %v", err)
	}

	if info, err := os.Stat(csvPath); err != nil || info.Size() == 0 {
		t.Fatalf("csv file missing or empty")
	}
	if info, err := os.Stat(jsonPath); err != nil || info.Size() == 0 {
		t.Fatalf("json file missing or empty")
	}
}
