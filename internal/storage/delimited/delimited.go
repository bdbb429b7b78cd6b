package delimited

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/FranksOps/serpcount/internal/storage"
)

// ensure delimitedSink implements storage.Sink
var _ storage.Sink = (*delimitedSink)(nil)

// delimitedSink writes one "keyword<delim>count\n" line per record. Fields
// are joined verbatim, with no quoting, so the delimiter may be any string.
type delimitedSink struct {
	w      *bufio.Writer
	closer io.Closer
	delim  string
}

// New opens opts.Path (append or truncate) and returns a file-backed sink.
func New(opts storage.Options) (storage.Sink, error) {
	if opts.Delimiter == "" {
		return nil, errors.New("delimited: delimiter cannot be empty")
	}
	f, err := storage.OpenFile(opts.Path, opts.Append)
	if err != nil {
		return nil, fmt.Errorf("delimited: %w", err)
	}
	return &delimitedSink{
		w:      bufio.NewWriter(f),
		closer: f,
		delim:  opts.Delimiter,
	}, nil
}

// NewWriter returns a sink over w, e.g. stdout. Closing it flushes but does
// not close w.
func NewWriter(w io.Writer, delim string) storage.Sink {
	if delim == "" {
		delim = ","
	}
	return &delimitedSink{
		w:     bufio.NewWriter(w),
		delim: delim,
	}
}

// Line formats a record exactly as it is written.
func Line(rec storage.Record, delim string) string {
	return rec.Keyword + delim + rec.Count + "\n"
}

func (s *delimitedSink) Write(ctx context.Context, rec storage.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.w.WriteString(Line(rec, s.delim)); err != nil {
		return fmt.Errorf("delimited: %w", err)
	}
	return nil
}

func (s *delimitedSink) Close() error {
	flushErr := s.w.Flush()
	var closeErr error
	if s.closer != nil {
		closeErr = s.closer.Close()
	}
	if err := errors.Join(flushErr, closeErr); err != nil {
		return fmt.Errorf("delimited: %w", err)
	}
	return nil
}

// Parse splits a line produced by Line back into a record. The keyword may
// itself contain the delimiter; the count never does.
func Parse(line, delim string) (storage.Record, error) {
	line = strings.TrimSuffix(line, "\n")
	i := strings.LastIndex(line, delim)
	if i < 0 {
		return storage.Record{}, fmt.Errorf("delimited: no %q in line %q", delim, line)
	}
	return storage.Record{Keyword: line[:i], Count: line[i+len(delim):]}, nil
}
