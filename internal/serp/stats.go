package serp

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// StatsSelector matches the element Google uses for "About N results".
const StatsSelector = "#resultStats"

// ExtractStats returns the digits of the first text child of the
// result-count element, e.g. "About 1,230,000 results (0.45 seconds)"
// yields "1230000". A parenthesised search time after the count is ignored.
func ExtractStats(html []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return "", &ExtractError{Reason: "parse html", Err: err}
	}

	sel := doc.Find(StatsSelector).First()
	if sel.Length() == 0 {
		return "", &ExtractError{Reason: "missing " + StatsSelector, Err: ErrNoStats}
	}

	first := sel.Contents().First()
	if first.Length() == 0 {
		return "", &ExtractError{Reason: StatsSelector + " is empty", Err: ErrNoStats}
	}

	text := first.Text()
	if i := strings.IndexByte(text, '('); i > 0 && Digits(text[:i]) != "" {
		text = text[:i]
	}
	digits := Digits(text)
	if digits == "" {
		return "", &ExtractError{Reason: "no digits in " + StatsSelector, Err: ErrNoStats}
	}
	return digits, nil
}

// Digits drops every rune that is not an ASCII digit.
func Digits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}
