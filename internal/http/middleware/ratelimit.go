// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements a process-local token-bucket rate limiter keyed by
// broker (or client IP before authentication). Buckets come from
// golang.org/x/time/rate; idle ones are swept every sweepEvery lookups.
// Idempotent replays of POST /alertas are not charged (see
// IdempotencyValidator).
package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	sweepEvery  = 5000
	bucketIdle  = 10 * time.Minute
	codeLimited = "too_many_requests"
)

// keyFunc selects the identity used to key a rate-limit bucket.
type keyFunc func(*gin.Context) string

// KeyByUserOrIP prefers the user identity set by Auth and falls back to the
// client IP, so brokers sharing an office NAT get separate buckets once the
// limiter runs after Auth. Keys are namespaced ("user:" / "ip:").
func KeyByUserOrIP() keyFunc {
	return func(c *gin.Context) string {
		if uid := UserID(c); uid != "" {
			return "user:" + uid
		}
		return "ip:" + c.ClientIP()
	}
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// RateLimiter holds one token bucket per key. Safe for concurrent use.
type RateLimiter struct {
	limit rate.Limit
	burst int
	keyFn keyFunc
	now   func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
	idle    time.Duration
	lookups uint64
}

// NewRateLimiter builds a limiter refilling rps tokens per second up to
// burst (coerced to at least 1).
func NewRateLimiter(rps float64, burst int, keyFn keyFunc) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		keyFn:   keyFn,
		now:     time.Now,
		buckets: make(map[string]*bucket),
		idle:    bucketIdle,
	}
}

// bucketFor returns the limiter for key, creating it on first use. The sweep
// runs before the lookup so a stale entry for key itself is replaced.
func (rl *RateLimiter) bucketFor(key string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if rl.lookups++; rl.lookups >= sweepEvery {
		rl.lookups = 0
		for k, b := range rl.buckets {
			if now.Sub(b.seen) >= rl.idle {
				delete(rl.buckets, k)
			}
		}
	}

	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(rl.limit, rl.burst)}
		rl.buckets[key] = b
	}
	b.seen = now
	return b.lim
}

// size reports the number of live buckets.
func (rl *RateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

// IsRateBypass reports whether IdempotencyValidator flagged the request as a
// replay that must not consume tokens.
func IsRateBypass(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyRateBypass)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// retryAfter rounds d up to whole seconds, never below 1.
func retryAfter(d time.Duration) string {
	secs := int64(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.FormatInt(secs, 10)
}

// Handler enforces the per-key limits. A rejected request gets 429 with the
// standard error envelope and a Retry-After header derived from the time
// until the next token.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) {
			c.Next()
			return
		}

		now := rl.now()
		key := rl.keyFn(c)
		res := rl.bucketFor(key, now).ReserveN(now, 1)
		delay := res.DelayFrom(now)
		if res.OK() && delay == 0 {
			c.Next()
			return
		}
		if res.OK() {
			res.CancelAt(now)
		} else {
			delay = time.Second
		}

		rateLimited.Inc()
		c.Header("Retry-After", retryAfter(delay))
		LoggerFrom(c).Warn().Str("bucket", key).Dur("retry_in", delay).Msg("rate limited")
		Abort(c, http.StatusTooManyRequests, codeLimited, "rate limit exceeded")
	}
}
