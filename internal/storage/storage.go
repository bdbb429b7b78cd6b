package storage

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
)

// Sentinel is the count recorded for a keyword that could not be processed.
// Counts stay textual so the sentinel shares a column with real values.
const Sentinel = "-1"

// Record is one (keyword, count) result. Count is a digits-only string or Sentinel.
type Record struct {
	Keyword string `json:"keyword" yaml:"keyword"`
	Count   string `json:"count" yaml:"count"`
}

// Failed reports whether the record carries the failure sentinel.
func (r Record) Failed() bool {
	return r.Count == Sentinel
}

// Format selects an output encoding.
type Format string

const (
	FormatDelimited Format = "delimited"
	FormatNDJSON    Format = "ndjson"
	FormatSQLite    Format = "sqlite"
	FormatXLSX      Format = "xlsx"
)

// ParseFormat validates a format name. Empty selects FormatDelimited.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatDelimited, nil
	case FormatDelimited, FormatNDJSON, FormatSQLite, FormatXLSX:
		return f, nil
	default:
		return "", fmt.Errorf("storage: unknown format %q", s)
	}
}

// Console reports whether the format can be streamed to stdout.
func (f Format) Console() bool {
	return f == FormatDelimited || f == FormatNDJSON
}

// Options describe where and how a Sink writes.
type Options struct {
	Path string
	// Append keeps existing content; otherwise the target is truncated first.
	Append    bool
	Delimiter string
	// RunID tags rows in formats that carry metadata.
	RunID string
	Now   func() time.Time
}

// Timestamp returns the current time from Now, or time.Now.
func (o Options) Timestamp() time.Time {
	if o.Now != nil {
		return o.Now().UTC()
	}
	return time.Now().UTC()
}

// Sink receives ranked records one at a time. Close must be called on every
// path; write errors may only surface from Close.
type Sink interface {
	Write(ctx context.Context, rec Record) error
	Close() error
}

// OpenFile opens path for writing, truncating unless appendMode is set.
func OpenFile(path string, appendMode bool) (*os.File, error) {
	flag := os.O_CREATE | os.O_WRONLY
	if appendMode {
		flag |= os.O_APPEND
	} else {
		flag |= os.O_TRUNC
	}
	f, err := os.OpenFile(path, flag, 0644)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	return f, nil
}
