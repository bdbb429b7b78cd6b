package jsonbackend

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/FranksOps/serpcount/internal/storage"
)

// ensure jsonSink implements storage.Sink
var _ storage.Sink = (*jsonSink)(nil)

// Line is the NDJSON shape of one record.
type Line struct {
	RunID     string    `json:"run_id,omitempty"`
	Rank      int       `json:"rank"`
	Keyword   string    `json:"keyword"`
	Count     string    `json:"count"`
	CreatedAt time.Time `json:"created_at"`
}

type jsonSink struct {
	w      *bufio.Writer
	enc    *json.Encoder
	closer io.Closer
	opts   storage.Options
	rank   int
}

// New creates an NDJSON sink writing to opts.Path.
func New(opts storage.Options) (storage.Sink, error) {
	f, err := storage.OpenFile(opts.Path, opts.Append)
	if err != nil {
		return nil, fmt.Errorf("jsonbackend: %w", err)
	}
	s := newSink(f, opts)
	s.closer = f
	return s, nil
}

// NewWriter creates an NDJSON sink over w without taking ownership of it.
func NewWriter(w io.Writer, opts storage.Options) storage.Sink {
	return newSink(w, opts)
}

func newSink(w io.Writer, opts storage.Options) *jsonSink {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	return &jsonSink{w: bw, enc: enc, opts: opts}
}

func (s *jsonSink) Write(ctx context.Context, rec storage.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.rank++
	line := Line{
		RunID:     s.opts.RunID,
		Rank:      s.rank,
		Keyword:   rec.Keyword,
		Count:     rec.Count,
		CreatedAt: s.opts.Timestamp(),
	}
	if err := s.enc.Encode(line); err != nil {
		return fmt.Errorf("jsonbackend: %w", err)
	}
	return nil
}

func (s *jsonSink) Close() error {
	flushErr := s.w.Flush()
	var closeErr error
	if s.closer != nil {
		closeErr = s.closer.Close()
	}
	if err := errors.Join(flushErr, closeErr); err != nil {
		return fmt.Errorf("jsonbackend: %w", err)
	}
	return nil
}
