package xlsx

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/FranksOps/serpcount/internal/storage"
	"github.com/xuri/excelize/v2"
)

// ensure xlsxSink implements storage.Sink
var _ storage.Sink = (*xlsxSink)(nil)

// SheetName is the worksheet results are written to.
const SheetName = "Results"

var header = []any{"keyword", "count", "run_id"}

// xlsxSink fills rows in memory; the workbook is saved on Close.
type xlsxSink struct {
	f    *excelize.File
	opts storage.Options
	row  int
}

// New creates a workbook sink. With opts.Append an existing workbook is
// opened and rows continue after its last used row.
func New(opts storage.Options) (storage.Sink, error) {
	f, err := openWorkbook(opts)
	if err != nil {
		return nil, fmt.Errorf("xlsx: %w", err)
	}

	rows, err := f.GetRows(SheetName)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("xlsx: %w", err)
	}

	s := &xlsxSink{f: f, opts: opts, row: len(rows)}
	if s.row == 0 {
		if err := s.setRow(header); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	return s, nil
}

func openWorkbook(opts storage.Options) (*excelize.File, error) {
	if opts.Append {
		if _, err := os.Stat(opts.Path); err == nil {
			f, err := excelize.OpenFile(opts.Path)
			if err != nil {
				return nil, err
			}
			idx, err := f.GetSheetIndex(SheetName)
			if err != nil {
				_ = f.Close()
				return nil, err
			}
			if idx == -1 {
				if _, err := f.NewSheet(SheetName); err != nil {
					_ = f.Close()
					return nil, err
				}
			}
			return f, nil
		}
	}

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		_ = f.Close()
		return nil, err
	}
	return f, nil
}

func (s *xlsxSink) setRow(values []any) error {
	s.row++
	cell, err := excelize.CoordinatesToCellName(1, s.row)
	if err != nil {
		return fmt.Errorf("xlsx: %w", err)
	}
	if err := s.f.SetSheetRow(SheetName, cell, &values); err != nil {
		return fmt.Errorf("xlsx: %w", err)
	}
	return nil
}

func (s *xlsxSink) Write(ctx context.Context, rec storage.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	// Numeric cells sort and sum properly in spreadsheet tools.
	var count any = rec.Count
	if n, err := strconv.ParseInt(rec.Count, 10, 64); err == nil {
		count = n
	}
	return s.setRow([]any{rec.Keyword, count, s.opts.RunID})
}

func (s *xlsxSink) Close() error {
	saveErr := s.f.SaveAs(s.opts.Path)
	closeErr := s.f.Close()
	if err := errors.Join(saveErr, closeErr); err != nil {
		return fmt.Errorf("xlsx: %w", err)
	}
	return nil
}
