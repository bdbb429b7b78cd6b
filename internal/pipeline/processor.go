package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/FranksOps/serpcount/internal/metrics"
	"github.com/FranksOps/serpcount/internal/serp"
	"github.com/FranksOps/serpcount/internal/storage"
)

// Kind classifies how a keyword was resolved.
type Kind int

const (
	KindOK Kind = iota
	KindDryRun
	KindFetch
	KindExtract
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindDryRun:
		return "dry_run"
	case KindFetch:
		return "fetch_error"
	case KindExtract:
		return "extract_error"
	default:
		return "unknown"
	}
}

// Outcome is the result of processing one keyword. Record is always set;
// its Count is storage.Sentinel unless Kind is KindOK.
type Outcome struct {
	Record storage.Record
	Kind   Kind
	Err    error
}

// Failed reports whether a fetch or extract stage failed.
func (o Outcome) Failed() bool {
	return o.Kind == KindFetch || o.Kind == KindExtract
}

// PageFetcher retrieves the results page for a keyword.
type PageFetcher interface {
	Fetch(ctx context.Context, keyword, userAgent string) (serp.Page, error)
}

// ExtractFunc pulls the digits-only result count out of a results page.
type ExtractFunc func(html []byte) (string, error)

// Processor runs fetch then extract for a single keyword.
type Processor struct {
	fetcher PageFetcher
	extract ExtractFunc
	logger  *slog.Logger
}

// NewProcessor returns a Processor using serp.ExtractStats for extraction.
func NewProcessor(fetcher PageFetcher, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		fetcher: fetcher,
		extract: serp.ExtractStats,
		logger:  logger,
	}
}

// WithExtractor swaps the extraction stage, returning p.
func (p *Processor) WithExtractor(fn ExtractFunc) *Processor {
	if fn != nil {
		p.extract = fn
	}
	return p
}

// Process never returns an error: every failure becomes an Outcome whose
// record carries storage.Sentinel.
func (p *Processor) Process(ctx context.Context, keyword, userAgent string) Outcome {
	out := p.resolve(ctx, keyword, userAgent)
	metrics.RecordKeyword(out.Kind.String(), out.Record.Count)

	if out.Failed() {
		switch {
		case ctx.Err() != nil:
			p.logger.Debug("keyword interrupted", "keyword", keyword, "err", out.Err)
		case p.logger.Enabled(ctx, slog.LevelDebug):
			p.logger.Error("keyword could not be processed", "keyword", keyword, "kind", out.Kind.String(), "err", out.Err, "chain", errorChain(out.Err))
		default:
			p.logger.Error("keyword could not be processed", "keyword", keyword, "kind", out.Kind.String(), "err", out.Err)
		}
	}
	return out
}

func (p *Processor) resolve(ctx context.Context, keyword, userAgent string) Outcome {
	failed := func(kind Kind, err error) Outcome {
		return Outcome{
			Record: storage.Record{Keyword: keyword, Count: storage.Sentinel},
			Kind:   kind,
			Err:    err,
		}
	}

	start := time.Now()
	page, err := p.fetcher.Fetch(ctx, keyword, userAgent)
	if page.Skipped && err == nil {
		p.logger.Debug("dry run, request skipped", "keyword", keyword, "url", page.URL)
		return Outcome{Record: storage.Record{Keyword: keyword, Count: storage.Sentinel}, Kind: KindDryRun}
	}

	var fe *serp.FetchError
	blockedBy := ""
	if errors.As(err, &fe) {
		blockedBy = fe.BlockedBy
	}
	metrics.RecordFetch(time.Since(start), blockedBy)
	p.logger.Debug("fetched results page", "keyword", keyword, "url", page.URL, "user_agent", userAgent, "duration", time.Since(start))

	if err != nil {
		if fe == nil {
			err = &serp.FetchError{URL: page.URL, Err: err}
		}
		return failed(KindFetch, err)
	}

	count, err := p.extract(page.Body)
	if err != nil {
		var ee *serp.ExtractError
		if !errors.As(err, &ee) {
			err = &serp.ExtractError{Reason: "extract", Err: err}
		}
		return failed(KindExtract, err)
	}

	p.logger.Debug("result stats", "keyword", keyword, "count", count)
	return Outcome{Record: storage.Record{Keyword: keyword, Count: count}, Kind: KindOK}
}

// errorChain flattens wrapped errors, outermost first.
func errorChain(err error) []string {
	var chain []string
	for err != nil {
		chain = append(chain, err.Error())
		err = errors.Unwrap(err)
	}
	return chain
}
