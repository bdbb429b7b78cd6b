package useragent

import (
	"sync/atomic"
)

// DefaultPool is the fixed rotation used for search requests. Order matters for
// reproducible runs: a fresh Pool always starts at index 0.
var DefaultPool = []string{
	"Mozilla/5.0 (Windows; U; Windows NT 5.1; de; rv:1.9.2.3) Gecko/20100401 Firefox/3.6.3",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_6_8) AppleWebKit/534.30 (KHTML, like Gecko) Chrome/12.0.742.112 Safari/534.30",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.8; rv:25.0) Gecko/20100101 Firefox/25.0",
	"Mozilla/5.0 (X11; Linux x86_64; rv:17.0) Gecko/20121202 Firefox/17.0 Iceweasel/17.0.1",
	"Mozilla/5.0 (Windows; U; MSIE 9.0; WIndows NT 9.0; en-US))",
	"w3m/0.5.2 (Linux i686; it; Debian-3.0.6-3)",
}

// Pool cycles through a fixed, ordered set of User-Agent strings.
type Pool struct {
	uas    []string
	cursor atomic.Uint64
}

// NewPool creates a rotator over uas. An empty slice falls back to DefaultPool.
func NewPool(uas []string) *Pool {
	return NewPoolAt(uas, 0)
}

// NewPoolAt creates a rotator whose first Next call returns uas[start % len(uas)].
func NewPoolAt(uas []string, start int) *Pool {
	if len(uas) == 0 {
		uas = DefaultPool
	}
	// Copy to avoid external mutation
	copied := make([]string, len(uas))
	copy(copied, uas)

	p := &Pool{uas: copied}
	if start > 0 {
		p.cursor.Store(uint64(start % len(copied)))
	}
	return p
}

// Next returns the User-Agent at the cursor and advances it, wrapping past the
// last entry. It is safe for concurrent use.
func (p *Pool) Next() string {
	if len(p.uas) == 0 {
		return ""
	}
	idx := p.cursor.Add(1) - 1
	return p.uas[idx%uint64(len(p.uas))]
}

// Len reports the pool size.
func (p *Pool) Len() int {
	return len(p.uas)
}

// All returns a copy of the pool in rotation order.
func (p *Pool) All() []string {
	copied := make([]string, len(p.uas))
	copy(copied, p.uas)
	return copied
}
