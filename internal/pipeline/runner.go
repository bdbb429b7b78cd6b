package pipeline

import (
	"context"
	"log/slog"

	"github.com/FranksOps/serpcount/internal/metrics"
	"github.com/FranksOps/serpcount/internal/storage"
	"github.com/FranksOps/serpcount/pkg/ratelimit"
	"github.com/FranksOps/serpcount/pkg/useragent"
)

// KeywordProcessor resolves one keyword into an Outcome.
type KeywordProcessor interface {
	Process(ctx context.Context, keyword, userAgent string) Outcome
}

// Runner processes keywords strictly one after another, pausing between
// consecutive items.
type Runner struct {
	proc   KeywordProcessor
	agents *useragent.Pool
	pacer  *ratelimit.Pacer
	logger *slog.Logger
}

// NewRunner wires a runner. A nil agents pool uses useragent.DefaultPool and
// a nil pacer never pauses.
func NewRunner(proc KeywordProcessor, agents *useragent.Pool, pacer *ratelimit.Pacer, logger *slog.Logger) *Runner {
	if agents == nil {
		agents = useragent.NewPool(nil)
	}
	if pacer == nil {
		pacer = ratelimit.NewPacer(0, 0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{proc: proc, agents: agents, pacer: pacer, logger: logger}
}

// Run returns one Outcome per keyword in input order. Results are held in
// memory; if ctx is cancelled Run stops and returns only the context error.
func (r *Runner) Run(ctx context.Context, keywords []string) ([]Outcome, error) {
	outcomes := make([]Outcome, 0, len(keywords))

	for i, kw := range keywords {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		r.logger.Info("processing keyword", "index", i+1, "total", len(keywords), "keyword", kw)
		out := r.proc.Process(ctx, kw, r.agents.Next())
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		outcomes = append(outcomes, out)

		if i+1 == len(keywords) {
			break
		}
		d, err := r.pacer.Wait(ctx)
		if err != nil {
			return nil, err
		}
		if d > 0 {
			r.logger.Debug("paused before next keyword", "seconds", int(d.Seconds()))
			metrics.RecordPause(d)
		}
	}

	return outcomes, nil
}

// Records extracts the records from outcomes, preserving order.
func Records(outcomes []Outcome) []storage.Record {
	recs := make([]storage.Record, len(outcomes))
	for i, o := range outcomes {
		recs[i] = o.Record
	}
	return recs
}
