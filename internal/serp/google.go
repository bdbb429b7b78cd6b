package serp

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/FranksOps/serpcount/internal/bypass"
	"github.com/FranksOps/serpcount/pkg/httpclient"
	"github.com/FranksOps/serpcount/pkg/proxy"
)

// SearchURL builds https://www.google.<site>/search?hl=<language>&q=<phrase>
// with the phrase form-encoded as UTF-8.
func SearchURL(site, language, phrase string) string {
	return fmt.Sprintf("https://www.google.%s/search?hl=%s&q=%s", site, language, url.QueryEscape(phrase))
}

// HTTPSource fetches result pages with one plain GET per call. No retries.
type HTTPSource struct {
	client    *httpclient.Client
	proxies   *proxy.Pool
	detectors []bypass.Detector
}

// NewHTTPSource wraps client. proxies may be nil; when it is non-empty each
// request is routed through the next healthy proxy. The client's transport
// must consult proxy.FromRequest for that to take effect.
func NewHTTPSource(client *httpclient.Client, proxies *proxy.Pool) *HTTPSource {
	return &HTTPSource{
		client:    client,
		proxies:   proxies,
		detectors: bypass.DefaultDetectors(),
	}
}

// Get implements PageSource.
func (s *HTTPSource) Get(ctx context.Context, searchURL, userAgent string) ([]byte, error) {
	var activeProxy *url.URL
	if s.proxies != nil {
		if activeProxy = s.proxies.Next(); activeProxy != nil {
			ctx = proxy.WithURL(ctx, activeProxy)
		}
	}

	header := http.Header{}
	header.Set("User-Agent", userAgent)
	header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := s.client.Get(ctx, searchURL, header)
	if err != nil {
		s.report(activeProxy, false)
		return nil, &FetchError{URL: searchURL, Err: err}
	}

	if source, blocked := bypass.Analyze(&bypass.Response{
		URL:        resp.FinalURL,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       resp.Body,
	}, s.detectors); blocked {
		s.report(activeProxy, false)
		return nil, &FetchError{URL: searchURL, StatusCode: resp.StatusCode, BlockedBy: source}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		s.report(activeProxy, false)
		return nil, &FetchError{URL: searchURL, StatusCode: resp.StatusCode}
	}

	s.report(activeProxy, true)
	return resp.Body, nil
}

func (s *HTTPSource) report(u *url.URL, ok bool) {
	if s.proxies != nil && u != nil {
		s.proxies.Report(u, ok)
	}
}

// analyzeRendered runs the block detectors over a page rendered by a browser,
// where no status code or headers are available.
func analyzeRendered(location, html string) (string, bool) {
	return bypass.Analyze(&bypass.Response{
		URL:        location,
		StatusCode: http.StatusOK,
		Header:     http.Header{},
		Body:       []byte(html),
	}, bypass.DefaultDetectors())
}
