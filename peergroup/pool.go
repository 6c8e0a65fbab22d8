package peergroup

import (
	"sync"
	"time"
)

// backoffBase and backoffMax bound the exponential backoff applied to an
// address after each failed connection attempt.
const (
	backoffBase = 2 * time.Second
	backoffMax  = 30 * time.Minute
)

// candidate is one address in the discovery pool.
type candidate struct {
	addr       string
	seen       bool // ever successfully connected
	failures   int
	lastTried  time.Time
	lastFailed time.Time
}

func (c *candidate) backoffUntil() time.Time {
	if c.failures == 0 {
		return time.Time{}
	}
	d := backoffBase << uint(c.failures-1)
	if d > backoffMax || d <= 0 {
		d = backoffMax
	}
	return c.lastFailed.Add(d)
}

func (c *candidate) available(now time.Time) bool {
	until := c.backoffUntil()
	return until.IsZero() || now.After(until)
}

// pool is the in-memory candidate address pool (spec.md §4.6): discovery
// sources feed it addresses, and the connection loop pops the
// best-ranked available candidate. Ranking prefers addresses that have
// never connected successfully, then fewer recorded failures, then the
// least recently tried.
type pool struct {
	mu         sync.Mutex
	candidates map[string]*candidate
	inFlight   map[string]bool
}

func newPool() *pool {
	return &pool{
		candidates: make(map[string]*candidate),
		inFlight:   make(map[string]bool),
	}
}

// add registers addr in the pool if not already present. It is a no-op for
// addresses already known, so repeated addr-message announcements don't
// reset backoff state.
func (p *pool) add(addr string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.candidates[addr]; ok {
		return
	}
	p.candidates[addr] = &candidate{addr: addr}
}

// next pops the best-ranked available candidate not already in flight, or
// ("", false) if none qualify right now.
func (p *pool) next(now time.Time) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var best *candidate
	for addr, c := range p.candidates {
		if p.inFlight[addr] || !c.available(now) {
			continue
		}
		if best == nil || rank(c, best) {
			best = c
		}
	}
	if best == nil {
		return "", false
	}
	p.inFlight[best.addr] = true
	best.lastTried = now
	return best.addr, true
}

// rank reports whether a outranks b: unseen beats seen, within the same
// seen-ness fewer failures wins, and on equal failures the less recently
// tried wins.
func rank(a, b *candidate) bool {
	if a.seen != b.seen {
		return !a.seen
	}
	if a.failures != b.failures {
		return a.failures < b.failures
	}
	return a.lastTried.Before(b.lastTried)
}

// succeeded marks addr as having connected successfully, clearing backoff.
func (p *pool) succeeded(addr string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.inFlight, addr)
	if c, ok := p.candidates[addr]; ok {
		c.seen = true
		c.failures = 0
	}
}

// failed records a failed connection attempt against addr, applying
// exponential backoff to future selection.
func (p *pool) failed(addr string, when time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.inFlight, addr)
	if c, ok := p.candidates[addr]; ok {
		c.failures++
		c.lastFailed = when
	}
}

// release clears the in-flight marker for addr without recording success
// or failure, used when a connection is abandoned mid-attempt (e.g. on
// shutdown).
func (p *pool) release(addr string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.inFlight, addr)
}

// size returns the number of known candidates.
func (p *pool) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.candidates)
}

// addrs returns every known candidate address, in no particular order.
func (p *pool) addrs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.candidates))
	for addr := range p.candidates {
		out = append(out, addr)
	}
	return out
}
