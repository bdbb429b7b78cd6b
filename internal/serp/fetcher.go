package serp

import (
	"context"
	"errors"
	"fmt"
	"net/url"
)

// Config holds the query parameters shared by every fetch in a run.
type Config struct {
	Site     string
	Language string
	Template string
	DryRun   bool
	// Endpoint replaces https://www.google.<site>/search, e.g. for a local mirror.
	Endpoint string
}

// Page is the outcome of a successful Fetch.
type Page struct {
	URL  string
	Body []byte
	// Skipped is set in dry-run mode; no request was made and Body is nil.
	Skipped bool
}

// Fetcher builds search URLs and retrieves them through a PageSource.
type Fetcher struct {
	cfg    Config
	source PageSource
}

// NewFetcher validates cfg and returns a Fetcher. source may be nil only
// when cfg.DryRun is set.
func NewFetcher(cfg Config, source PageSource) (*Fetcher, error) {
	if err := ValidateTemplate(cfg.Template); err != nil {
		return nil, err
	}
	if cfg.Site == "" {
		cfg.Site = "com"
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if cfg.Endpoint != "" {
		if _, err := url.Parse(cfg.Endpoint); err != nil {
			return nil, fmt.Errorf("serp: invalid endpoint: %w", err)
		}
	}
	if source == nil && !cfg.DryRun {
		return nil, errors.New("serp: page source cannot be nil")
	}
	return &Fetcher{cfg: cfg, source: source}, nil
}

// SearchURL returns the results page URL for keyword.
func (f *Fetcher) SearchURL(keyword string) string {
	phrase := Phrase(f.cfg.Template, keyword)
	if f.cfg.Endpoint == "" {
		return SearchURL(f.cfg.Site, f.cfg.Language, phrase)
	}
	return fmt.Sprintf("%s?hl=%s&q=%s", f.cfg.Endpoint, f.cfg.Language, url.QueryEscape(phrase))
}

// Fetch retrieves the results page for keyword presenting userAgent. In
// dry-run mode it returns a skipped Page without touching the source.
func (f *Fetcher) Fetch(ctx context.Context, keyword, userAgent string) (Page, error) {
	u := f.SearchURL(keyword)
	if f.cfg.DryRun {
		return Page{URL: u, Skipped: true}, nil
	}
	if err := ctx.Err(); err != nil {
		return Page{URL: u}, &FetchError{URL: u, Err: err}
	}

	body, err := f.source.Get(ctx, u, userAgent)
	if err != nil {
		var fe *FetchError
		if errors.As(err, &fe) {
			return Page{URL: u}, err
		}
		return Page{URL: u}, &FetchError{URL: u, Err: err}
	}
	return Page{URL: u, Body: body}, nil
}
