package proxy

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"
)

type contextKey struct{}

// endpoint is a single proxy with health tracking.
type endpoint struct {
	url           *url.URL
	failures      int
	disabledUntil time.Time
}

// Config defines settings for the Proxy Pool.
type Config struct {
	// MaxFailures before disabling a proxy temporarily.
	MaxFailures int
	// Cooldown is how long a proxy remains disabled after hitting MaxFailures.
	Cooldown time.Duration
}

// Pool rotates through proxies round-robin, skipping ones that are cooling down.
type Pool struct {
	mu          sync.Mutex
	endpoints   []*endpoint
	next        int
	maxFailures int
	cooldown    time.Duration
	now         func() time.Time
}

// NewPool creates a new proxy pool. Zero config values get defaults of
// 3 failures and a 5 minute cooldown.
func NewPool(cfg Config) *Pool {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 5 * time.Minute
	}
	return &Pool{
		maxFailures: cfg.MaxFailures,
		cooldown:    cfg.Cooldown,
		now:         time.Now,
	}
}

// LoadFile reads proxies from a file, one URL per line.
// Lines starting with '#' or empty lines are ignored.
func (p *Pool) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("proxy: %w", err)
	}
	defer f.Close()

	var urls []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("proxy: %w", err)
	}
	return p.Add(urls...)
}

// Add parses raw proxy URLs and appends them to the rotation. A missing
// scheme defaults to http.
func (p *Pool) Add(rawURLs ...string) error {
	parsed := make([]*endpoint, 0, len(rawURLs))
	for _, raw := range rawURLs {
		if !strings.Contains(raw, "://") {
			raw = "http://" + raw
		}
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("proxy: %w", err)
		}
		if u.Host == "" {
			return fmt.Errorf("proxy: missing host in %q", raw)
		}
		parsed = append(parsed, &endpoint{url: u})
	}

	p.mu.Lock()
	p.endpoints = append(p.endpoints, parsed...)
	p.mu.Unlock()
	return nil
}

// Len reports how many proxies are configured, healthy or not.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.endpoints)
}

// Next returns the next healthy proxy, or nil if the pool is empty or every
// proxy is cooling down.
func (p *Pool) Next() *url.URL {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	for range p.endpoints {
		ep := p.endpoints[p.next]
		p.next = (p.next + 1) % len(p.endpoints)

		if ep.disabledUntil.IsZero() {
			return ep.url
		}
		if now.After(ep.disabledUntil) {
			ep.disabledUntil = time.Time{}
			ep.failures = 0
			return ep.url
		}
	}
	return nil
}

// Report records the outcome of a request made through u. Enough consecutive
// failures disable the proxy for the cooldown period; a success forgives one.
func (p *Pool) Report(u *url.URL, ok bool) {
	if u == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	target := u.String()
	for _, ep := range p.endpoints {
		if ep.url.String() != target {
			continue
		}
		if ok {
			if ep.failures > 0 {
				ep.failures--
			}
			return
		}
		ep.failures++
		if ep.failures >= p.maxFailures {
			ep.disabledUntil = p.now().Add(p.cooldown)
		}
		return
	}
}

// WithURL attaches the proxy to use for requests made under ctx.
func WithURL(ctx context.Context, u *url.URL) context.Context {
	return context.WithValue(ctx, contextKey{}, u)
}

// FromRequest is an http.Transport Proxy func that routes through the proxy
// stored by WithURL, falling back to the environment.
func FromRequest(req *http.Request) (*url.URL, error) {
	if u, ok := req.Context().Value(contextKey{}).(*url.URL); ok && u != nil {
		return u, nil
	}
	return http.ProxyFromEnvironment(req)
}
