// Package ratelimit throttles callers of the HTTP API. Each client gets one
// token bucket per route, and routes that run the solver can charge more
// than one token per request.
package ratelimit

import (
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter keeps a token bucket per (client, route) and evicts idle buckets
// every evictEvery calls.
type Limiter struct {
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	costs   map[string]int

	mu      sync.Mutex
	buckets map[bucketKey]*bucket
	calls   uint64
}

type bucketKey struct {
	client, route string
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

const evictEvery = 512

// Option adjusts a Limiter.
type Option func(*Limiter)

// WithCost charges tokens per request on route. Costs above the burst are
// capped at the burst so the route stays reachable.
func WithCost(route string, tokens int) Option {
	return func(l *Limiter) {
		if tokens > 0 {
			l.costs[route] = tokens
		}
	}
}

// New returns nil when rps or burst is not positive; a nil *Limiter allows
// everything.
func New(rps float64, burst int, idleTTL time.Duration, opts ...Option) *Limiter {
	if rps <= 0 || burst <= 0 {
		return nil
	}
	if idleTTL <= 0 {
		idleTTL = 10 * time.Minute
	}
	l := &Limiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		idleTTL: idleTTL,
		costs:   make(map[string]int),
		buckets: make(map[bucketKey]*bucket),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Cost is the number of tokens one request on route consumes.
func (l *Limiter) Cost(route string) int {
	if l == nil {
		return 0
	}
	n, ok := l.costs[route]
	if !ok {
		return 1
	}
	if n > l.burst {
		return l.burst
	}
	return n
}

// Allow reports whether client may call route at now. A blank client is
// never limited.
func (l *Limiter) Allow(client, route string, now time.Time) bool {
	if l == nil {
		return true
	}
	client = strings.TrimSpace(client)
	if client == "" {
		return true
	}
	cost := l.Cost(route)

	l.mu.Lock()
	defer l.mu.Unlock()

	key := bucketKey{client: client, route: route}
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	allowed := b.limiter.AllowN(now, cost)

	l.calls++
	if l.calls%evictEvery == 0 {
		l.evict(now)
	}
	return allowed
}

func (l *Limiter) evict(now time.Time) {
	cutoff := now.Add(-l.idleTTL)
	for k, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, k)
		}
	}
}

// Len is the number of live buckets.
func (l *Limiter) Len() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
