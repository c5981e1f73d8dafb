package http

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// ══════════════════════════════════════════════════════════════════════════════
// RATE LIMITING
// Token bucket per client IP on the API routes. Health endpoints are exempt.
// ══════════════════════════════════════════════════════════════════════════════

// RateLimitConfig holds the per-client limits. A zero RequestsPerMinute
// disables limiting.
type RateLimitConfig struct {
	RequestsPerMinute int
	Burst             int

	// IdleTTL is how long an untouched bucket is kept.
	IdleTTL time.Duration

	// Now defaults to time.Now.
	Now func() time.Time
}

// Enabled reports whether limiting is on.
func (c RateLimitConfig) Enabled() bool {
	return c.RequestsPerMinute > 0
}

type tokenBucket struct {
	tokens     float64
	lastRefill time.Time
}

type rateLimiter struct {
	refillRate float64 // tokens per second
	maxTokens  float64
	idleTTL    time.Duration
	now        func() time.Time

	mu        sync.Mutex
	buckets   map[string]*tokenBucket
	lastSweep time.Time
}

func newRateLimiter(cfg RateLimitConfig) *rateLimiter {
	if cfg.Burst <= 0 {
		cfg.Burst = max(1, cfg.RequestsPerMinute/10)
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 10 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &rateLimiter{
		refillRate: float64(cfg.RequestsPerMinute) / 60.0,
		maxTokens:  float64(cfg.Burst),
		idleTTL:    cfg.IdleTTL,
		now:        cfg.Now,
		buckets:    make(map[string]*tokenBucket),
		lastSweep:  cfg.Now(),
	}
}

// allow takes a token for key. When none is left it returns how long until
// the next one.
func (rl *rateLimiter) allow(key string) (ok bool, retryAfter time.Duration, remaining int) {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.Sub(rl.lastSweep) >= rl.idleTTL {
		rl.sweep(now)
	}

	b, found := rl.buckets[key]
	if !found {
		b = &tokenBucket{tokens: rl.maxTokens, lastRefill: now}
		rl.buckets[key] = b
	}

	if elapsed := now.Sub(b.lastRefill).Seconds(); elapsed > 0 {
		b.tokens = math.Min(rl.maxTokens, b.tokens+elapsed*rl.refillRate)
		b.lastRefill = now
	}

	if b.tokens < 1 {
		wait := time.Duration((1 - b.tokens) / rl.refillRate * float64(time.Second))
		return false, wait, 0
	}
	b.tokens--
	return true, 0, int(b.tokens)
}

// sweep drops buckets idle for longer than idleTTL. Must be called with mu held.
func (rl *rateLimiter) sweep(now time.Time) {
	for key, b := range rl.buckets {
		if now.Sub(b.lastRefill) >= rl.idleTTL {
			delete(rl.buckets, key)
		}
	}
	rl.lastSweep = now
}

func (rl *rateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

// rateLimitMiddleware rejects clients that ran out of tokens with 429.
func rateLimitMiddleware(rl *rateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, retryAfter, remaining := rl.allow(c.ClientIP())
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		if !ok {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
			writeError(c, http.StatusTooManyRequests, "rate_limited", "too many requests, retry later")
			return
		}
		c.Next()
	}
}
