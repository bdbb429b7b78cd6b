package serp

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Placeholder is the substitution slot in a phrase template.
const Placeholder = "%s"

// ErrNoStats reports a results page without a usable result-count element.
var ErrNoStats = errors.New("serp: result count not found")

// PageSource retrieves the raw HTML for a search URL while presenting userAgent.
type PageSource interface {
	Get(ctx context.Context, searchURL, userAgent string) ([]byte, error)
}

// FetchError wraps anything that kept a results page from being retrieved:
// network errors, timeouts, non-2xx statuses and block pages.
type FetchError struct {
	URL        string
	StatusCode int
	// BlockedBy names the service that served a challenge page, if any.
	BlockedBy string
	Err       error
}

func (e *FetchError) Error() string {
	switch {
	case e.BlockedBy != "":
		return fmt.Sprintf("fetch %s: blocked by %s (status %d)", e.URL, e.BlockedBy, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	default:
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

// ExtractError reports a page that was fetched but held no parsable count.
type ExtractError struct {
	Reason string
	Err    error
}

func (e *ExtractError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extract: %s: %v", e.Reason, e.Err)
	}
	return "extract: " + e.Reason
}

func (e *ExtractError) Unwrap() error { return e.Err }

// Phrase substitutes keyword into template's single placeholder.
func Phrase(template, keyword string) string {
	return strings.Replace(template, Placeholder, keyword, 1)
}

// ValidateTemplate checks that template has exactly one placeholder.
func ValidateTemplate(template string) error {
	if n := strings.Count(template, Placeholder); n != 1 {
		return fmt.Errorf("serp: template must contain exactly one occurrence of %q, found %d", Placeholder, n)
	}
	return nil
}
