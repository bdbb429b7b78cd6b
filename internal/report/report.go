package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/FranksOps/serpcount/internal/storage"
	"github.com/fatih/color"
)

// Summary describes a finished run.
type Summary struct {
	RunID     string `json:"run_id,omitempty"`
	Processed int    `json:"processed"`
	// Errors counts records carrying the failure sentinel.
	Errors    int            `json:"errors"`
	ByOutcome map[string]int `json:"by_outcome,omitempty"`
	Elapsed   time.Duration  `json:"-"`
}

// Summarize counts processed and failed records.
func Summarize(records []storage.Record) Summary {
	s := Summary{Processed: len(records)}
	for _, r := range records {
		if r.Failed() {
			s.Errors++
		}
	}
	return s
}

// Timer measures the running time of a whole run.
type Timer struct {
	start time.Time
	now   func() time.Time
}

// StartTimer captures the current time.
func StartTimer() *Timer {
	return newTimer(time.Now)
}

func newTimer(now func() time.Time) *Timer {
	return &Timer{start: now(), now: now}
}

// Elapsed returns the time since the timer started, truncated to milliseconds.
func (t *Timer) Elapsed() time.Duration {
	return t.now().Sub(t.start).Truncate(time.Millisecond)
}

// FormatElapsed renders d as [D day(s), ]H:MM:SS[.ffffff].
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	days := d / (24 * time.Hour)
	d -= days * 24 * time.Hour
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	sec := d / time.Second
	d -= sec * time.Second
	micros := d / time.Microsecond

	var b strings.Builder
	switch {
	case days == 1:
		b.WriteString("1 day, ")
	case days > 1:
		fmt.Fprintf(&b, "%d days, ", days)
	}
	fmt.Fprintf(&b, "%d:%02d:%02d", h, m, sec)
	if micros > 0 {
		fmt.Fprintf(&b, ".%06d", micros)
	}
	return b.String()
}

// WriteJSON writes the summary to the provided writer in JSON format.
func WriteJSON(w io.Writer, summary Summary) error {
	out := struct {
		Summary
		Elapsed   string  `json:"elapsed"`
		ElapsedMS float64 `json:"elapsed_ms"`
	}{
		Summary:   summary,
		Elapsed:   FormatElapsed(summary.Elapsed),
		ElapsedMS: float64(summary.Elapsed) / float64(time.Millisecond),
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("report: %w", err)
	}
	return nil
}

// WriteText writes the two-line operator summary. colorize forces ANSI
// colors on or off regardless of terminal detection.
func WriteText(w io.Writer, summary Summary, colorize bool) error {
	paint := func(attr color.Attribute, v any) string {
		c := color.New(attr)
		if colorize {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
		return c.Sprint(v)
	}

	errAttr := color.FgGreen
	if summary.Errors > 0 {
		errAttr = color.FgRed
	}

	_, err := fmt.Fprintf(w, "processed %s keyword(s) with %s error(s)\ntotal running time: %s\n",
		paint(color.Bold, summary.Processed),
		paint(errAttr, summary.Errors),
		FormatElapsed(summary.Elapsed),
	)
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}
	return nil
}
