package ratelimit

import (
	"math"
	"sync"
	"time"
)

const minRetryAfter = time.Second

type bucket struct {
	tokens    float64
	lastTouch time.Time
}

// Limiter is a per-client token-bucket admission controller.
//
// Buckets refill lazily from elapsed wall-clock time; there is no
// background ticker. The whole check-and-consume for a client runs
// under one mutex, so concurrent requests from the same client can
// never both spend the last token.
type Limiter struct {
	mu           sync.Mutex
	buckets      map[string]*bucket
	capacity     float64
	refillPerSec float64
	now          func() time.Time
}

// New creates a limiter admitting at most maxRequests per window
// for each client identifier.
func New(maxRequests int, window time.Duration) *Limiter {
	if maxRequests < 1 {
		maxRequests = 1
	}
	if window <= 0 {
		window = time.Minute
	}

	return &Limiter{
		buckets:      make(map[string]*bucket),
		capacity:     float64(maxRequests),
		refillPerSec: float64(maxRequests) / window.Seconds(),
		now:          time.Now,
	}
}

// Admit reserves one token for clientID. When the bucket is empty it
// returns false together with the wait until one token is available,
// floored at one second.
//
// The first request from a new client allocates its bucket already
// charged by one token, so a fresh client can burst exactly the full
// capacity within the first window.
func (l *Limiter) Admit(clientID string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	b, ok := l.buckets[clientID]
	if !ok {
		l.buckets[clientID] = &bucket{
			tokens:    l.capacity - 1,
			lastTouch: now,
		}

		return true, 0
	}

	elapsed := max(now.Sub(b.lastTouch).Seconds(), 0)
	b.tokens = min(l.capacity, b.tokens+elapsed*l.refillPerSec)
	b.lastTouch = now

	if b.tokens >= 1 {
		b.tokens--

		return true, 0
	}

	missing := 1 - b.tokens
	retryAfter := time.Duration(math.Ceil(missing/l.refillPerSec)) * time.Second

	return false, max(retryAfter, minRetryAfter)
}

// PruneIdle drops buckets that have not been touched for longer than
// maxIdle and reports how many were removed. maxIdle must be at least
// the refill window, so a pruned client never gains tokens it would
// not have refilled anyway.
func (l *Limiter) PruneIdle(maxIdle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-maxIdle)
	removed := 0

	for clientID, b := range l.buckets {
		if b.lastTouch.Before(cutoff) {
			delete(l.buckets, clientID)
			removed++
		}
	}

	return removed
}

// Size reports how many client buckets are currently tracked.
func (l *Limiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.buckets)
}
