package jsonbackend

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/FranksOps/serpcount/internal/storage"
)

func readLines(t *testing.T, path string) []Line {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open output: %v", err)
	}
	defer f.Close()

	var out []Line
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var l Line
		if err := json.Unmarshal(scanner.Bytes(), &l); err != nil {
			t.Fatalf("Failed to decode line %q: %v", scanner.Text(), err)
		}
		out = append(out, l)
	}
	return out
}

func TestJSONSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.ndjson")
	now := time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC)
	opts := storage.Options{
		Path:  path,
		RunID: "run-1",
		Now:   func() time.Time { return now },
	}

	s, err := New(opts)
	if err != nil {
		t.Fatalf("Failed to create sink: %v", err)
	}
	ctx := context.Background()
	_ = s.Write(ctx, storage.Record{Keyword: "birds", Count: "750000"})
	_ = s.Write(ctx, storage.Record{Keyword: "dogs", Count: "-1"})
	if err := s.Close(); err != nil {
		t.Fatalf("Failed to close sink: %v", err)
	}

	lines := readLines(t, path)
	if len(lines) != 2 {
		t.Fatalf("Expected 2 lines, got %d", len(lines))
	}
	if lines[0].Keyword != "birds" || lines[0].Count != "750000" || lines[0].Rank != 1 {
		t.Errorf("Unexpected first line %+v", lines[0])
	}
	if lines[1].Count != "-1" || lines[1].Rank != 2 {
		t.Errorf("Unexpected second line %+v", lines[1])
	}
	if lines[0].RunID != "run-1" || !lines[0].CreatedAt.Equal(now) {
		t.Errorf("Expected run metadata, got %+v", lines[0])
	}

	// Append keeps the first run
	opts.Append = true
	opts.RunID = "run-2"
	s, err = New(opts)
	if err != nil {
		t.Fatalf("Failed to reopen sink: %v", err)
	}
	_ = s.Write(ctx, storage.Record{Keyword: "cats", Count: "500"})
	_ = s.Close()

	lines = readLines(t, path)
	if len(lines) != 3 || lines[2].RunID != "run-2" || lines[2].Rank != 1 {
		t.Errorf("Expected appended run-2 line, got %+v", lines)
	}
}

func TestJSONSink_Writer(t *testing.T) {
	var buf bytes.Buffer
	s := NewWriter(&buf, storage.Options{})
	_ = s.Write(context.Background(), storage.Record{Keyword: "<b>&", Count: "1"})
	if err := s.Close(); err != nil {
		t.Fatalf("Failed to close: %v", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"keyword":"<b>&"`)) {
		t.Errorf("Expected unescaped keyword, got %s", buf.String())
	}
	if bytes.Contains(buf.Bytes(), []byte("run_id")) {
		t.Errorf("Expected run_id to be omitted when empty, got %s", buf.String())
	}
}

func TestJSONSink_CanceledContext(t *testing.T) {
	var buf bytes.Buffer
	s := NewWriter(&buf, storage.Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Write(ctx, storage.Record{Keyword: "x", Count: "1"}); err == nil {
		t.Errorf("Expected context error")
	}
}
