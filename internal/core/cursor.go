package core

import (
	"sort"
	"time"

	"golang.org/x/time/rate"
)

// CursorSample is an ephemeral pointer position. It is never persisted.
type CursorSample struct {
	ConnID string
	UserID string
	X      float64
	Y      float64
	Label  string
	// TS is the client's timestamp in milliseconds, relayed as-is.
	TS         int64
	ReceivedAt time.Time
}

type cursorEntry struct {
	sample  CursorSample
	limiter *rate.Limiter
	pending bool
}

// cursorCache holds the latest sample per connection for one room.
// Relays are throttled per connection; throttled samples are coalesced and
// flushed later, so the newest position always reaches peers.
type cursorCache struct {
	entries     map[string]*cursorEntry
	ttl         time.Duration
	minInterval time.Duration
}

func newCursorCache(ttl, minInterval time.Duration) *cursorCache {
	return &cursorCache{
		entries:     make(map[string]*cursorEntry),
		ttl:         ttl,
		minInterval: minInterval,
	}
}

func (c *cursorCache) limit() rate.Limit {
	if c.minInterval <= 0 {
		return rate.Inf
	}
	return rate.Every(c.minInterval)
}

// record stores s and reports whether it may be relayed right away.
func (c *cursorCache) record(s CursorSample) bool {
	e, ok := c.entries[s.ConnID]
	if !ok {
		e = &cursorEntry{limiter: rate.NewLimiter(c.limit(), 1)}
		c.entries[s.ConnID] = e
	}
	e.sample = s
	if e.limiter.AllowN(s.ReceivedAt, 1) {
		e.pending = false
		return true
	}
	e.pending = true
	return false
}

// due returns coalesced samples whose throttle window has passed.
func (c *cursorCache) due(now time.Time) []CursorSample {
	var out []CursorSample
	for _, e := range c.entries {
		if !e.pending {
			continue
		}
		if e.limiter.AllowN(now, 1) {
			e.pending = false
			out = append(out, e.sample)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ConnID < out[j].ConnID })
	return out
}

func (c *cursorCache) hasPending() bool {
	for _, e := range c.entries {
		if e.pending {
			return true
		}
	}
	return false
}

// evictStale drops samples not refreshed within the TTL and returns their ids.
func (c *cursorCache) evictStale(now time.Time) []string {
	var gone []string
	for id, e := range c.entries {
		if now.Sub(e.sample.ReceivedAt) >= c.ttl {
			delete(c.entries, id)
			gone = append(gone, id)
		}
	}
	sort.Strings(gone)
	return gone
}

func (c *cursorCache) remove(connID string) bool {
	if _, ok := c.entries[connID]; !ok {
		return false
	}
	delete(c.entries, connID)
	return true
}

// live returns samples still inside the TTL at now, ordered by connection id.
// Samples past the TTL wait for the next sweep to be announced as gone.
func (c *cursorCache) live(now time.Time) []CursorSample {
	out := make([]CursorSample, 0, len(c.entries))
	for _, s := range c.snapshot() {
		if now.Sub(s.ReceivedAt) < c.ttl {
			out = append(out, s)
		}
	}
	return out
}

// snapshot returns the cached samples ordered by connection id.
func (c *cursorCache) snapshot() []CursorSample {
	out := make([]CursorSample, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e.sample)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ConnID < out[j].ConnID })
	return out
}
