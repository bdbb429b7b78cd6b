package xlsx

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/FranksOps/serpcount/internal/storage"
	"github.com/xuri/excelize/v2"
)

func readSheet(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("Failed to open workbook: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows(SheetName)
	if err != nil {
		t.Fatalf("Failed to read rows: %v", err)
	}
	return rows
}

func TestXLSXSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.xlsx")
	ctx := context.Background()

	s, err := New(storage.Options{Path: path, RunID: "r1"})
	if err != nil {
		t.Fatalf("Failed to create sink: %v", err)
	}
	_ = s.Write(ctx, storage.Record{Keyword: "birds", Count: "750000"})
	_ = s.Write(ctx, storage.Record{Keyword: "dogs", Count: "-1"})
	if err := s.Close(); err != nil {
		t.Fatalf("Failed to save workbook: %v", err)
	}

	rows := readSheet(t, path)
	if len(rows) != 3 {
		t.Fatalf("Expected header plus 2 rows, got %d: %v", len(rows), rows)
	}
	if rows[0][0] != "keyword" || rows[0][1] != "count" {
		t.Errorf("Unexpected header %v", rows[0])
	}
	if rows[1][0] != "birds" || rows[1][1] != "750000" || rows[1][2] != "r1" {
		t.Errorf("Unexpected first row %v", rows[1])
	}
	if rows[2][0] != "dogs" || rows[2][1] != "-1" {
		t.Errorf("Unexpected second row %v", rows[2])
	}

	// Append continues below existing rows
	s, err = New(storage.Options{Path: path, RunID: "r2", Append: true})
	if err != nil {
		t.Fatalf("Failed to reopen sink: %v", err)
	}
	_ = s.Write(ctx, storage.Record{Keyword: "cats", Count: "500"})
	if err := s.Close(); err != nil {
		t.Fatalf("Failed to save workbook: %v", err)
	}

	rows = readSheet(t, path)
	if len(rows) != 4 || rows[3][0] != "cats" || rows[3][2] != "r2" {
		t.Fatalf("Expected appended row, got %v", rows)
	}

	// Overwrite starts a fresh workbook
	s, err = New(storage.Options{Path: path, RunID: "r3"})
	if err != nil {
		t.Fatalf("Failed to reopen sink: %v", err)
	}
	_ = s.Write(ctx, storage.Record{Keyword: "ants", Count: "1"})
	_ = s.Close()

	rows = readSheet(t, path)
	if len(rows) != 2 || rows[1][0] != "ants" {
		t.Fatalf("Expected only header and ants, got %v", rows)
	}
}

func TestXLSXSink_AppendToMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "new.xlsx")
	s, err := New(storage.Options{Path: path, Append: true})
	if err != nil {
		t.Fatalf("Failed to create sink: %v", err)
	}
	_ = s.Write(context.Background(), storage.Record{Keyword: "x", Count: "2"})
	if err := s.Close(); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}
	if rows := readSheet(t, path); len(rows) != 2 {
		t.Errorf("Expected header and one row, got %v", rows)
	}
}
