package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/FranksOps/serpcount/internal/config"
	"github.com/FranksOps/serpcount/internal/fingerprint"
	"github.com/FranksOps/serpcount/internal/metrics"
	"github.com/FranksOps/serpcount/internal/output"
	"github.com/FranksOps/serpcount/internal/pipeline"
	"github.com/FranksOps/serpcount/internal/report"
	"github.com/FranksOps/serpcount/internal/serp"
	"github.com/FranksOps/serpcount/internal/storage"
	"github.com/FranksOps/serpcount/pkg/httpclient"
	"github.com/FranksOps/serpcount/pkg/proxy"
	"github.com/FranksOps/serpcount/pkg/ratelimit"
	"github.com/FranksOps/serpcount/pkg/useragent"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Streams are the process outputs a run writes to.
type Streams struct {
	Stdout io.Writer
	Stderr io.Writer
	// Color forces the summary to use ANSI colors.
	Color bool
}

// Result is what a finished run produced.
type Result struct {
	RunID    string
	Records  []storage.Record
	Outcomes []pipeline.Outcome
	// OutputErr is set when the results could not be written and were dumped.
	OutputErr *output.Error
}

// Options carry collaborators tests may replace.
type Options struct {
	Logger *slog.Logger
	// Source overrides the page source built from cfg.
	Source serp.PageSource
	Pacer  *ratelimit.Pacer
	Agents *useragent.Pool
}

// Run executes a whole batch: fetch and extract every keyword, rank, write.
// It returns early with the context error if ctx is cancelled, in which case
// nothing is written.
func Run(ctx context.Context, cfg config.RunConfig, keywords []string, streams Streams, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	runID := uuid.NewString()
	logger = logger.With("run_id", runID)

	timer := report.StartTimer()
	var summary *report.Summary
	defer func() {
		if cfg.Quiet {
			return
		}
		if summary == nil {
			_, _ = fmt.Fprintf(streams.Stderr, "total running time: %s\n", report.FormatElapsed(timer.Elapsed()))
			return
		}
		summary.Elapsed = timer.Elapsed()
		var err error
		if cfg.SummaryFormat == config.SummaryJSON {
			err = report.WriteJSON(streams.Stderr, *summary)
		} else {
			err = report.WriteText(streams.Stderr, *summary, streams.Color)
		}
		if err != nil {
			logger.Error("failed to write summary", "err", err)
		}
	}()

	source := opts.Source
	if source == nil && !cfg.DryRun {
		var err error
		if source, err = buildSource(cfg, logger); err != nil {
			return nil, err
		}
	}

	fetcher, err := serp.NewFetcher(serp.Config{
		Site:     cfg.Site,
		Language: cfg.Language,
		Template: cfg.Template,
		DryRun:   cfg.DryRun,
		Endpoint: cfg.Endpoint,
	}, source)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	pacer := opts.Pacer
	if pacer == nil {
		pacer = ratelimit.NewPacer(cfg.Wait, cfg.Fuzz)
	}
	runner := pipeline.NewRunner(pipeline.NewProcessor(fetcher, logger), opts.Agents, pacer, logger)
	writer := output.NewWriter(output.Config{
		Path:      cfg.OutFile,
		Append:    cfg.Append,
		Delimiter: cfg.Delimiter,
		Format:    cfg.Format,
		NoWrite:   cfg.NoWrite,
		RunID:     runID,
	}, streams.Stdout, streams.Stderr, logger)

	g, gctx := errgroup.WithContext(ctx)
	batchCtx, batchDone := context.WithCancel(gctx)
	defer batchDone()

	if cfg.MetricsAddr != "" {
		srv := metrics.NewServer(cfg.MetricsAddr)
		ln, err := srv.Listen()
		if err != nil {
			return nil, err
		}
		logger.Info("serving metrics", "addr", ln.Addr().String())
		// Serve returns once the batch finishes or the run is interrupted.
		g.Go(func() error {
			return srv.Serve(batchCtx, ln)
		})
	}

	res := &Result{RunID: runID}
	g.Go(func() error {
		defer batchDone()
		outcomes, err := runner.Run(gctx, keywords)
		if err != nil {
			return err
		}
		res.Outcomes = outcomes
		logger.Debug("sorting results")
		res.Records = pipeline.Rank(pipeline.Records(outcomes))

		if err := writer.Write(gctx, res.Records); err != nil {
			var oerr *output.Error
			if errors.As(err, &oerr) {
				res.OutputErr = oerr
				return nil
			}
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	s := report.Summarize(res.Records)
	s.RunID = runID
	s.ByOutcome = make(map[string]int)
	for _, o := range res.Outcomes {
		s.ByOutcome[o.Kind.String()]++
	}
	summary = &s
	return res, nil
}

func buildSource(cfg config.RunConfig, logger *slog.Logger) (serp.PageSource, error) {
	pool := proxy.NewPool(proxy.Config{})
	if err := pool.Add(cfg.Proxies...); err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	if cfg.ProxyFile != "" {
		if err := pool.LoadFile(cfg.ProxyFile); err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
	}

	if cfg.Browser {
		bc := serp.BrowserConfig{ExecPath: cfg.BrowserPath, Timeout: cfg.Timeout}
		if pool.Len() > 0 {
			bc.Proxy = pool.Next()
			if pool.Len() > 1 {
				logger.Warn("browser source uses a single proxy", "proxy", bc.Proxy.Redacted())
			}
		}
		return serp.NewBrowserSource(bc), nil
	}

	transport, err := fingerprint.Transport(cfg.Fingerprint, fingerprint.Options{Proxy: proxy.FromRequest})
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	return newHTTPSource(cfg, transport, pool)
}

func newHTTPSource(cfg config.RunConfig, transport http.RoundTripper, pool *proxy.Pool) (serp.PageSource, error) {
	client, err := httpclient.New(httpclient.Config{
		Timeout:   cfg.Timeout,
		Transport: transport,
	})
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	if pool.Len() == 0 {
		pool = nil
	}
	return serp.NewHTTPSource(client, pool), nil
}
