package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// ──────────────────────────────────────────────────────────────────────────────
// Per-IP rate limiting
// ──────────────────────────────────────────────────────────────────────────────

// The API runs two limiter tiers. Reads are cheap polling traffic (market
// lists, odds), so they get a generous allowance with headroom for a page
// load that fans out several requests at once. Writes each take a per-market
// lock in the ledger engine, so their burst capacity is pinned to the
// sustained rate.

const (
	bucketMaxIdle = 10 * time.Minute // idle buckets older than this are dropped
	sweepEvery    = 5 * time.Minute
)

// ipBucket tracks one caller's remaining allowance.
type ipBucket struct {
	tokens float64
	seen   time.Time // last request; refill anchor and eviction marker
}

// limiter is a token-bucket table keyed by client IP. One mutex guards the
// whole table; contention is negligible next to the handler work behind it.
type limiter struct {
	mu        sync.Mutex
	buckets   map[string]*ipBucket
	rate      float64 // tokens per second
	burst     float64 // bucket capacity
	lastSweep time.Time
}

func newLimiter(rps int, burst float64) *limiter {
	return &limiter{
		buckets:   make(map[string]*ipBucket),
		rate:      float64(rps),
		burst:     burst,
		lastSweep: time.Now(),
	}
}

// take refills the caller's bucket for the elapsed time and consumes one
// token. Returns false when the bucket is empty. Stale buckets are swept
// inline on a timer, so no background goroutine is needed per limiter.
func (l *limiter) take(ip string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) > sweepEvery {
		l.lastSweep = now
		cutoff := now.Add(-bucketMaxIdle)
		for key, b := range l.buckets {
			if b.seen.Before(cutoff) {
				delete(l.buckets, key)
			}
		}
	}

	b, ok := l.buckets[ip]
	if !ok {
		b = &ipBucket{tokens: l.burst, seen: now}
		l.buckets[ip] = b
	} else {
		b.tokens += now.Sub(b.seen).Seconds() * l.rate
		if b.tokens > l.burst {
			b.tokens = l.burst
		}
		b.seen = now
	}

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// middlewareFor wraps a limiter as gin middleware. Rejected callers get the
// standard error envelope with a 429.
func middlewareFor(l *limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.take(c.ClientIP(), time.Now()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error":   "rate limit exceeded",
				"code":    "ERR_RATE_LIMITED",
			})
			return
		}
		c.Next()
	}
}

// ReadRateLimit limits the public read endpoints to rps requests per second
// per IP, with burst headroom of twice the sustained rate.
func ReadRateLimit(rps int) gin.HandlerFunc {
	return middlewareFor(newLimiter(rps, 2*float64(rps)))
}

// WriteRateLimit limits the authenticated ledger-write endpoints to rps
// requests per second per IP. Burst equals the sustained rate: a burst of
// writes serializes on the engine's market locks anyway.
func WriteRateLimit(rps int) gin.HandlerFunc {
	return middlewareFor(newLimiter(rps, float64(rps)))
}
