package ratelimit

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// MaxSeconds is the longest pause a Pacer will draw: one day.
const MaxSeconds = 24 * 60 * 60

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Pacer inserts randomized whole-second pauses between consecutive requests.
// Each pause is drawn uniformly from the closed range [Min, Max] seconds.
type Pacer struct {
	min   int
	max   int
	mu    sync.Mutex
	rng   *rand.Rand
	sleep SleepFunc
}

// Option customizes a Pacer.
type Option func(*Pacer)

// WithSeed makes the drawn durations reproducible.
func WithSeed(seed uint64) Option {
	return func(p *Pacer) {
		p.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// WithSleep replaces the blocking sleep, mainly for tests.
func WithSleep(fn SleepFunc) Option {
	return func(p *Pacer) {
		p.sleep = fn
	}
}

// NewPacer creates a pacer over [minWait, minWait+fuzz] seconds. Negative
// inputs are clamped to zero and the range is capped at MaxSeconds.
func NewPacer(minWait, fuzz int, opts ...Option) *Pacer {
	minWait = min(max(minWait, 0), MaxSeconds)
	fuzz = min(max(fuzz, 0), MaxSeconds-minWait)
	p := &Pacer{
		min:   minWait,
		max:   minWait + fuzz,
		rng:   rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		sleep: Sleep,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Bounds returns the inclusive pause range in seconds.
func (p *Pacer) Bounds() (minWait, maxWait int) {
	return p.min, p.max
}

// Draw picks the next pause duration without sleeping.
func (p *Pacer) Draw() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	secs := p.min + p.rng.IntN(p.max-p.min+1)
	return time.Duration(secs) * time.Second
}

// Wait draws a pause and blocks for it. It returns the slept duration, or the
// context error if ctx is canceled first.
func (p *Pacer) Wait(ctx context.Context) (time.Duration, error) {
	d := p.Draw()
	if d == 0 {
		return 0, ctx.Err()
	}
	if err := p.sleep(ctx, d); err != nil {
		return 0, err
	}
	return d, nil
}

// Sleep is the default SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
