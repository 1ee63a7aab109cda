// Package ratelimit throttles per-actor submission rate, generalized from
// gateway/middleware.RateLimiter's per-visitor token-bucket-over-a-map
// pattern: the HTTP-request identity (API key, remote IP) becomes the
// actor identity, and the thing being throttled is Attempt submission
// rather than an HTTP request.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter throttles per-actor Submit calls with an independent token
// bucket per actor, lazily created on first use and never evicted —
// callers bound memory by bounding the actor set (entities are
// registered through governance, not created ad hoc per request).
type Limiter struct {
	ratePerSecond float64
	burst         int

	mu       sync.Mutex
	visitors map[string]*rate.Limiter
}

// New constructs a Limiter allowing ratePerSecond sustained submissions
// per actor with burst headroom. A non-positive rate or burst disables
// throttling entirely (Allow always reports true), matching the
// teacher's "unknown limit key passes through" default-open behavior.
func New(ratePerSecond float64, burst int) *Limiter {
	return &Limiter{ratePerSecond: ratePerSecond, burst: burst, visitors: make(map[string]*rate.Limiter)}
}

// Allow reports whether actor may submit now, consuming one token from
// its bucket if so.
func (l *Limiter) Allow(actor string) bool {
	if l == nil || l.ratePerSecond <= 0 || l.burst <= 0 {
		return true
	}
	return l.obtain(actor).AllowN(time.Now(), 1)
}

func (l *Limiter) obtain(actor string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if limiter, ok := l.visitors[actor]; ok {
		return limiter
	}
	limiter := rate.NewLimiter(rate.Limit(l.ratePerSecond), l.burst)
	l.visitors[actor] = limiter
	return limiter
}
