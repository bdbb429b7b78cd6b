package output

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/FranksOps/serpcount/internal/storage"
	"github.com/FranksOps/serpcount/internal/storage/delimited"
	"github.com/FranksOps/serpcount/internal/storage/jsonbackend"
	"github.com/FranksOps/serpcount/internal/storage/sqlite"
	"github.com/FranksOps/serpcount/internal/storage/xlsx"
	"gopkg.in/yaml.v3"
)

// Error reports a failed write of the ranked results. Dumped is set when
// the records were printed to the fallback writer instead.
type Error struct {
	Path   string
	Dumped bool
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("output: write %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Config selects the destination and encoding of results.
type Config struct {
	// Path is the output file; empty writes to the console.
	Path      string
	Append    bool
	Delimiter string
	Format    storage.Format
	// NoWrite suppresses output entirely.
	NoWrite bool
	RunID   string
}

// Writer serializes ranked records to a file or the console.
type Writer struct {
	cfg      Config
	console  io.Writer
	fallback io.Writer
	logger   *slog.Logger
}

// NewWriter returns a Writer printing console output to stdout and the
// emergency dump to stderr.
func NewWriter(cfg Config, stdout, stderr io.Writer, logger *slog.Logger) *Writer {
	if cfg.Format == "" {
		cfg.Format = storage.FormatDelimited
	}
	if cfg.Delimiter == "" {
		cfg.Delimiter = ","
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{cfg: cfg, console: stdout, fallback: stderr, logger: logger}
}

func (w *Writer) options() storage.Options {
	return storage.Options{
		Path:      w.cfg.Path,
		Append:    w.cfg.Append,
		Delimiter: w.cfg.Delimiter,
		RunID:     w.cfg.RunID,
	}
}

// Write emits records in order. When the file cannot be written the records
// are dumped to the fallback writer and an *Error is returned.
func (w *Writer) Write(ctx context.Context, records []storage.Record) error {
	if w.cfg.NoWrite {
		w.logger.Info("output suppressed", "records", len(records))
		return nil
	}

	if w.cfg.Path == "" {
		sink, err := w.consoleSink()
		if err != nil {
			return err
		}
		return writeAll(ctx, sink, records)
	}

	if abs, err := filepath.Abs(w.cfg.Path); err == nil {
		w.logger.Info("writing results", "path", abs, "format", string(w.cfg.Format))
	}

	sink, err := w.fileSink(ctx)
	if err == nil {
		err = writeAll(ctx, sink, records)
	}
	if err == nil {
		return nil
	}

	w.logger.Error("console dump due to error writing results", "path", w.cfg.Path, "err", err)
	oerr := &Error{Path: w.cfg.Path, Err: err}
	if dumpErr := Dump(w.fallback, records); dumpErr != nil {
		oerr.Err = errors.Join(err, dumpErr)
		return oerr
	}
	oerr.Dumped = true
	return oerr
}

func (w *Writer) consoleSink() (storage.Sink, error) {
	switch w.cfg.Format {
	case storage.FormatDelimited:
		return delimited.NewWriter(w.console, w.cfg.Delimiter), nil
	case storage.FormatNDJSON:
		return jsonbackend.NewWriter(w.console, w.options()), nil
	default:
		return nil, fmt.Errorf("output: format %s needs an output file", w.cfg.Format)
	}
}

func (w *Writer) fileSink(ctx context.Context) (storage.Sink, error) {
	opts := w.options()
	switch w.cfg.Format {
	case storage.FormatDelimited:
		return delimited.New(opts)
	case storage.FormatNDJSON:
		return jsonbackend.New(opts)
	case storage.FormatSQLite:
		return sqlite.New(ctx, opts)
	case storage.FormatXLSX:
		return xlsx.New(opts)
	default:
		return nil, fmt.Errorf("output: unknown format %q", w.cfg.Format)
	}
}

// writeAll writes every record and always closes sink.
func writeAll(ctx context.Context, sink storage.Sink, records []storage.Record) error {
	for _, rec := range records {
		if err := sink.Write(ctx, rec); err != nil {
			return errors.Join(err, sink.Close())
		}
	}
	return sink.Close()
}

// Dump prints records to w as a YAML sequence.
func Dump(w io.Writer, records []storage.Record) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("output: dump: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("output: dump: %w", err)
	}
	return nil
}
