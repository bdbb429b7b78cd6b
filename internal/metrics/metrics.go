package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	KeywordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "serpcount_keywords_total",
			Help: "Keywords processed, by outcome",
		},
		[]string{"outcome"},
	)

	FetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "serpcount_fetch_duration_seconds",
			Help:    "Duration of result page fetches in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
	)

	BlockedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "serpcount_blocked_total",
			Help: "Result page fetches answered with a block or challenge page",
		},
		[]string{"source"},
	)

	PauseSecondsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "serpcount_pause_seconds_total",
			Help: "Seconds spent pausing between keywords",
		},
	)

	ExtractedResults = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "serpcount_extracted_results",
			Help:    "Result counts extracted from search pages",
			Buckets: prometheus.ExponentialBuckets(1, 10, 13),
		},
	)
)

// RecordKeyword counts one processed keyword. count is only observed when it
// parses as a non-negative integer.
func RecordKeyword(outcome, count string) {
	KeywordsTotal.WithLabelValues(outcome).Inc()
	if n, err := strconv.ParseUint(count, 10, 64); err == nil {
		ExtractedResults.Observe(float64(n))
	}
}

// RecordFetch observes a fetch attempt. blockedBy is empty unless a block
// page was detected.
func RecordFetch(d time.Duration, blockedBy string) {
	FetchDuration.Observe(d.Seconds())
	if blockedBy != "" {
		BlockedTotal.WithLabelValues(blockedBy).Inc()
	}
}

// RecordPause adds an inter-keyword pause.
func RecordPause(d time.Duration) {
	PauseSecondsTotal.Add(d.Seconds())
}

// Server exposes /metrics over HTTP.
type Server struct {
	addr string
	srv  *http.Server
}

// NewServer creates a metrics server for addr, e.g. ":9090" or "127.0.0.1:0".
func NewServer(addr string) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &Server{
		addr: addr,
		srv: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Listen binds the listening socket and returns the bound address.
func (s *Server) Listen() (net.Listener, error) {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return nil, fmt.Errorf("metrics: listen on %s: %w", s.addr, err)
	}
	return ln, nil
}

// Serve handles requests on ln until ctx is cancelled, then shuts down
// gracefully. It returns nil after a clean shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("metrics: shutdown: %w", err)
	}
	return nil
}
