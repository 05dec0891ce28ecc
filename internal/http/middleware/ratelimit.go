// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file holds the per-client token-bucket limiter. Reads cost one token;
// writes (order submission, assignment, status and menu changes) cost
// WriteCost tokens, because each of them touches the database and may fan out
// to the geocoder or the event broker. Replays flagged by IdempotencyValidator
// are free.
//
// Buckets live in process memory and idle ones are swept periodically.
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

// keyFunc selects the identity used to key a rate-limit bucket.
type keyFunc func(*gin.Context) string

// KeyByClientIP keys buckets by the client IP as resolved by Gin (honoring
// trusted proxies). The API has no caller identity, so the IP is the only
// stable key.
func KeyByClientIP() keyFunc {
	return func(c *gin.Context) string {
		return "ip:" + c.ClientIP()
	}
}

// RateLimitOptions configures NewRateLimiter.
type RateLimitOptions struct {
	RPS   float64 // tokens replenished per second
	Burst int     // bucket size; <= 0 becomes 1
	// WriteCost is the token price of POST/PUT/PATCH/DELETE. Values <= 0
	// become 1. It is capped at Burst so a write can always eventually pass.
	WriteCost int
	Key       keyFunc       // nil means KeyByClientIP
	IdleTTL   time.Duration // <= 0 means 10m
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a set of per-key token buckets. Safe for concurrent use.
type RateLimiter struct {
	opts RateLimitOptions

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
	now       func() time.Time
}

// NewRateLimiter builds a limiter from opts, filling in defaults.
func NewRateLimiter(opts RateLimitOptions) *RateLimiter {
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	if opts.WriteCost <= 0 {
		opts.WriteCost = 1
	}
	if opts.WriteCost > opts.Burst {
		opts.WriteCost = opts.Burst
	}
	if opts.Key == nil {
		opts.Key = KeyByClientIP()
	}
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = 10 * time.Minute
	}
	return &RateLimiter{
		opts:      opts,
		buckets:   make(map[string]*bucket),
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

// limiter returns the bucket for key. Idle buckets are dropped at most once
// per IdleTTL, before the requested one is touched.
func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.Sub(rl.lastSweep) >= rl.opts.IdleTTL {
		for k, b := range rl.buckets {
			if now.Sub(b.lastSeen) >= rl.opts.IdleTTL {
				delete(rl.buckets, k)
			}
		}
		rl.lastSweep = now
	}

	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(rate.Limit(rl.opts.RPS), rl.opts.Burst)}
		rl.buckets[key] = b
	}
	b.lastSeen = now
	return b.lim
}

// cost is the token price of a request.
func (rl *RateLimiter) cost(method string) int {
	if method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions {
		return 1
	}
	return rl.opts.WriteCost
}

// IsRateBypass reports whether IdempotencyValidator found a stored result for
// this request, which is then served without spending tokens.
func IsRateBypass(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyRateBypass)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Handler returns the middleware. A denied request gets 429 with the standard
// error envelope and a Retry-After (whole seconds, at least 1) derived from
// when the bucket will hold enough tokens.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) {
			c.Next()
			return
		}

		lim := rl.limiter(rl.opts.Key(c))
		n := rl.cost(c.Request.Method)
		now := rl.now()
		if lim.AllowN(now, n) {
			c.Next()
			return
		}

		c.Header("Retry-After", strconv.Itoa(retryAfter(lim, now, n)))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": c.Writer.Header().Get(requestIDHeader),
			"code":       "rate_limited",
			"message":    "rate limit exceeded",
		})
	}
}

// retryAfter estimates the seconds until n tokens are available, without
// consuming them.
func retryAfter(lim *rate.Limiter, now time.Time, n int) int {
	if lim.Limit() <= 0 {
		return 60
	}
	missing := float64(n) - lim.TokensAt(now)
	if missing <= 0 {
		return 1
	}
	secs := int(math.Ceil(missing / float64(lim.Limit())))
	if secs < 1 {
		secs = 1
	}
	return secs
}
