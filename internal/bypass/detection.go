package bypass

import (
	"bytes"
	"net/http"
	"strings"
)

// Response is the part of a fetched page the detectors look at.
type Response struct {
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Detector reports whether a response is a block or challenge page instead
// of real content, and who served it.
type Detector func(res *Response) (blocked bool, source string)

// DefaultDetectors returns the detectors applied to search result pages.
func DefaultDetectors() []Detector {
	return []Detector{
		detectGoogleSorry,
		detectCloudflare,
	}
}

// Analyze runs res through detectors and returns the first source that
// flags it. An empty source means the page looks genuine.
func Analyze(res *Response, detectors []Detector) (string, bool) {
	if res == nil {
		return "", false
	}
	for _, d := range detectors {
		if blocked, source := d(res); blocked {
			return source, true
		}
	}
	return "", false
}

// detectGoogleSorry spots the /sorry/ interstitial and reCAPTCHA page Google
// serves to clients it rate limits.
func detectGoogleSorry(res *Response) (bool, string) {
	if strings.Contains(res.URL, "/sorry/") {
		return true, "Google"
	}
	if res.StatusCode == http.StatusTooManyRequests {
		return true, "Google"
	}
	if bytes.Contains(res.Body, []byte("Our systems have detected unusual traffic")) ||
		bytes.Contains(res.Body, []byte(`id="captcha-form"`)) {
		return true, "Google"
	}
	return false, ""
}

// detectCloudflare looks for Cloudflare challenge pages, which show up when
// requests go out through CDN-fronted proxies.
func detectCloudflare(res *Response) (bool, string) {
	if res.StatusCode != http.StatusForbidden && res.StatusCode != http.StatusServiceUnavailable {
		return false, ""
	}
	if strings.Contains(strings.ToLower(res.Header.Get("Server")), "cloudflare") {
		return true, "Cloudflare"
	}
	if bytes.Contains(res.Body, []byte("cf-browser-verification")) ||
		bytes.Contains(res.Body, []byte("cf-turnstile")) ||
		bytes.Contains(res.Body, []byte("Attention Required! | Cloudflare")) {
		return true, "Cloudflare"
	}
	return false, ""
}
