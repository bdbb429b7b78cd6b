package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/FranksOps/serpcount/internal/storage"
	_ "modernc.org/sqlite"
)

// ensure sqliteSink implements storage.Sink
var _ storage.Sink = (*sqliteSink)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS results (
	run_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	keyword TEXT NOT NULL,
	result_count TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
`

// sqliteSink buffers every insert in one transaction, committed on Close.
// After a failed Write the transaction is rolled back instead, leaving the
// previous table contents untouched.
type sqliteSink struct {
	db     *sql.DB
	tx     *sql.Tx
	stmt   *sql.Stmt
	opts   storage.Options
	rank   int
	failed bool
}

// New opens (or creates) the SQLite file at opts.Path. Without opts.Append
// existing rows are deleted inside the same transaction as the new ones.
func New(ctx context.Context, opts storage.Options) (storage.Sink, error) {
	db, err := sql.Open("sqlite", opts.Path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: %w", err)
	}

	if !opts.Append {
		if _, err := tx.ExecContext(ctx, `DELETE FROM results`); err != nil {
			_ = tx.Rollback()
			_ = db.Close()
			return nil, fmt.Errorf("sqlite: %w", err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO results (run_id, position, keyword, result_count, created_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: %w", err)
	}

	return &sqliteSink{db: db, tx: tx, stmt: stmt, opts: opts}, nil
}

func (s *sqliteSink) Write(ctx context.Context, rec storage.Record) error {
	if err := ctx.Err(); err != nil {
		s.failed = true
		return fmt.Errorf("sqlite: %w", err)
	}
	s.rank++
	_, err := s.stmt.ExecContext(ctx,
		s.opts.RunID,
		s.rank,
		rec.Keyword,
		rec.Count,
		s.opts.Timestamp(),
	)
	if err != nil {
		s.failed = true
		return fmt.Errorf("sqlite: %w", err)
	}
	return nil
}

func (s *sqliteSink) Close() error {
	stmtErr := s.stmt.Close()
	var txErr error
	if s.failed {
		// A cancelled BeginTx context rolls the transaction back on its own.
		if txErr = s.tx.Rollback(); errors.Is(txErr, sql.ErrTxDone) {
			txErr = nil
		}
	} else {
		txErr = s.tx.Commit()
	}
	closeErr := s.db.Close()
	if err := errors.Join(stmtErr, txErr, closeErr); err != nil {
		return fmt.Errorf("sqlite: %w", err)
	}
	return nil
}
