package serp

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/FranksOps/serpcount/pkg/httpclient"
	"github.com/FranksOps/serpcount/pkg/proxy"
)

type countingSource struct {
	calls int
	body  []byte
	err   error
	urls  []string
	uas   []string
}

func (c *countingSource) Get(_ context.Context, searchURL, userAgent string) ([]byte, error) {
	c.calls++
	c.urls = append(c.urls, searchURL)
	c.uas = append(c.uas, userAgent)
	return c.body, c.err
}

func TestSearchURL(t *testing.T) {
	got := SearchURL("co.uk", "de", "best café & bar")
	want := "https://www.google.co.uk/search?hl=de&q=best+caf%C3%A9+%26+bar"
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestPhraseAndTemplate(t *testing.T) {
	if got := Phrase(`"%s" tutorial`, "go"); got != `"go" tutorial` {
		t.Errorf("unexpected phrase %q", got)
	}
	// Only the first placeholder is substituted
	if got := Phrase("%s %s", "x"); got != "x %s" {
		t.Errorf("unexpected phrase %q", got)
	}

	for _, tmpl := range []string{"", "plain", "%s and %s"} {
		if err := ValidateTemplate(tmpl); err == nil {
			t.Errorf("expected error for template %q", tmpl)
		}
	}
	if err := ValidateTemplate("intitle:%s"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNewFetcher_Validation(t *testing.T) {
	if _, err := NewFetcher(Config{Template: "none"}, &countingSource{}); err == nil {
		t.Error("expected error for template without placeholder")
	}
	if _, err := NewFetcher(Config{Template: "%s"}, nil); err == nil {
		t.Error("expected error for nil source outside dry run")
	}
	if _, err := NewFetcher(Config{Template: "%s", DryRun: true}, nil); err != nil {
		t.Errorf("dry run should not need a source: %v", err)
	}
}

func TestFetcher_DryRunMakesNoCalls(t *testing.T) {
	src := &countingSource{}
	f, err := NewFetcher(Config{Template: "%s", DryRun: true}, src)
	if err != nil {
		t.Fatalf("failed to create fetcher: %v", err)
	}

	for _, kw := range []string{"alpha", "beta"} {
		page, err := f.Fetch(context.Background(), kw, "UA")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !page.Skipped || page.Body != nil {
			t.Errorf("expected skipped page, got %+v", page)
		}
	}
	if src.calls != 0 {
		t.Errorf("expected no source calls, got %d", src.calls)
	}
}

func TestFetcher_BuildsURLAndPassesUserAgent(t *testing.T) {
	src := &countingSource{body: []byte("ok")}
	f, _ := NewFetcher(Config{Site: "de", Language: "fr", Template: "%s recipes"}, src)

	page, err := f.Fetch(context.Background(), "pasta", "TestBrowser/1.0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(page.Body) != "ok" {
		t.Errorf("unexpected body %q", page.Body)
	}
	want := "https://www.google.de/search?hl=fr&q=pasta+recipes"
	if src.urls[0] != want || page.URL != want {
		t.Errorf("expected url %s, got %s", want, src.urls[0])
	}
	if src.uas[0] != "TestBrowser/1.0" {
		t.Errorf("expected user agent to be forwarded, got %q", src.uas[0])
	}
}

func TestFetcher_Endpoint(t *testing.T) {
	f, _ := NewFetcher(Config{Template: "%s", Endpoint: "http://127.0.0.1:9/search"}, &countingSource{})
	if got := f.SearchURL("a b"); got != "http://127.0.0.1:9/search?hl=en&q=a+b" {
		t.Errorf("unexpected url %s", got)
	}
}

func TestFetcher_WrapsSourceErrors(t *testing.T) {
	src := &countingSource{err: errors.New("connection reset")}
	f, _ := NewFetcher(Config{Template: "%s"}, src)

	_, err := f.Fetch(context.Background(), "cats", "UA")
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError, got %T (%v)", err, err)
	}
	if !strings.Contains(fe.URL, "q=cats") {
		t.Errorf("expected URL on error, got %q", fe.URL)
	}
}

func TestFetcher_CancelledContext(t *testing.T) {
	src := &countingSource{}
	f, _ := NewFetcher(Config{Template: "%s"}, src)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Fetch(ctx, "cats", "UA")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if src.calls != 0 {
		t.Errorf("expected no source call after cancel, got %d", src.calls)
	}
}

func newClient(t *testing.T, transport http.RoundTripper) *httpclient.Client {
	t.Helper()
	c, err := httpclient.New(httpclient.Config{Timeout: 5 * time.Second, Transport: transport})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return c
}

func TestHTTPSource_Success(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "TestBrowser/1.0" {
			t.Errorf("expected User-Agent header, got %q", r.Header.Get("User-Agent"))
		}
		if r.URL.Query().Get("q") != "cats" {
			t.Errorf("unexpected query %q", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`<div id="resultStats">About 500 results</div>`))
	}))
	defer ts.Close()

	src := NewHTTPSource(newClient(t, nil), nil)
	body, err := src.Get(context.Background(), ts.URL+"/search?q=cats", "TestBrowser/1.0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, _ := ExtractStats(body); got != "500" {
		t.Errorf("expected 500, got %q", got)
	}
}

func TestHTTPSource_Failures(t *testing.T) {
	tests := []struct {
		name      string
		handler   http.HandlerFunc
		status    int
		blockedBy string
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			status: http.StatusInternalServerError,
		},
		{
			name: "rate limited",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
			},
			status:    http.StatusTooManyRequests,
			blockedBy: "Google",
		},
		{
			name: "sorry redirect",
			handler: func(w http.ResponseWriter, r *http.Request) {
				if strings.HasPrefix(r.URL.Path, "/sorry/") {
					_, _ = w.Write([]byte("Our systems have detected unusual traffic"))
					return
				}
				http.Redirect(w, r, "/sorry/index", http.StatusFound)
			},
			status:    http.StatusOK,
			blockedBy: "Google",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(tt.handler)
			defer ts.Close()

			src := NewHTTPSource(newClient(t, nil), nil)
			_, err := src.Get(context.Background(), ts.URL+"/search?q=x", "UA")
			var fe *FetchError
			if !errors.As(err, &fe) {
				t.Fatalf("expected *FetchError, got %T (%v)", err, err)
			}
			if fe.StatusCode != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, fe.StatusCode)
			}
			if fe.BlockedBy != tt.blockedBy {
				t.Errorf("expected blocked by %q, got %q", tt.blockedBy, fe.BlockedBy)
			}
		})
	}
}

func TestHTTPSource_NetworkError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	target := ts.URL
	ts.Close()

	src := NewHTTPSource(newClient(t, nil), nil)
	_, err := src.Get(context.Background(), target, "UA")
	var fe *FetchError
	if !errors.As(err, &fe) || fe.Err == nil {
		t.Fatalf("expected wrapped network error, got %v", err)
	}
}

func TestHTTPSource_RoutesThroughProxy(t *testing.T) {
	var proxied string
	proxyServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// A forward proxy receives the absolute target URL
		proxied = r.URL.String()
		_, _ = w.Write([]byte("via proxy"))
	}))
	defer proxyServer.Close()

	pool := proxy.NewPool(proxy.Config{MaxFailures: 1})
	if err := pool.Add(proxyServer.URL); err != nil {
		t.Fatalf("failed to add proxy: %v", err)
	}

	client := newClient(t, &http.Transport{Proxy: proxy.FromRequest})
	src := NewHTTPSource(client, pool)

	body, err := src.Get(context.Background(), "http://search.test/search?q=dogs", "UA")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(body) != "via proxy" {
		t.Errorf("unexpected body %q", body)
	}
	if proxied != "http://search.test/search?q=dogs" {
		t.Errorf("expected proxy to receive target URL, got %q", proxied)
	}
}

func TestHTTPSource_ReportsProxyFailure(t *testing.T) {
	proxyServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer proxyServer.Close()

	pool := proxy.NewPool(proxy.Config{MaxFailures: 1, Cooldown: time.Hour})
	_ = pool.Add(proxyServer.URL)

	src := NewHTTPSource(newClient(t, &http.Transport{Proxy: proxy.FromRequest}), pool)
	if _, err := src.Get(context.Background(), "http://search.test/search?q=x", "UA"); err == nil {
		t.Fatal("expected error for 502 from proxy")
	}
	if u := pool.Next(); u != nil {
		t.Errorf("expected failing proxy to be cooling down, got %v", u)
	}
}

func TestFetchErrorMessages(t *testing.T) {
	u, _ := url.Parse("https://www.google.com/search?q=x")
	tests := []struct {
		err  *FetchError
		want string
	}{
		{&FetchError{URL: u.String(), BlockedBy: "Google", StatusCode: 429}, "blocked by Google"},
		{&FetchError{URL: u.String(), StatusCode: 503}, "unexpected status 503"},
		{&FetchError{URL: u.String(), Err: errors.New("boom")}, "boom"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); !strings.Contains(got, tt.want) {
			t.Errorf("expected %q in %q", tt.want, got)
		}
	}
}

func TestBrowserSourceDefaults(t *testing.T) {
	b := NewBrowserSource(BrowserConfig{Settle: -time.Second})
	if b.cfg.Timeout != 30*time.Second || b.cfg.Settle != 0 {
		t.Errorf("unexpected defaults %+v", b.cfg)
	}
	withUA := b.allocatorOptions("TestBrowser/1.0")
	without := b.allocatorOptions("")
	if len(withUA) != len(without)+1 {
		t.Errorf("expected user agent option to be added")
	}
}

func TestAnalyzeRendered(t *testing.T) {
	if _, blocked := analyzeRendered("https://www.google.com/search?q=x", `<div id="resultStats">3 results</div>`); blocked {
		t.Error("expected normal page to pass")
	}
	source, blocked := analyzeRendered("https://www.google.com/sorry/index?continue=x", "")
	if !blocked || source != "Google" {
		t.Errorf("expected Google block, got %q %v", source, blocked)
	}
}
