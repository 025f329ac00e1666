package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/langleague/langleague/utils"
)

// limitRule pairs a path category with its bucket dimensions.
type limitRule struct {
	category string
	capacity int
	window   time.Duration
}

// Path prefix rules, evaluated in order; first match wins.
var limitRules = []struct {
	match func(path string) bool
	rule  limitRule
}{
	{func(p string) bool { return strings.Contains(p, "/authenticate") || strings.Contains(p, "/login") },
		limitRule{"auth", 5, time.Minute}},
	{func(p string) bool { return strings.Contains(p, "/register") },
		limitRule{"register", 3, time.Hour}},
	{func(p string) bool { return strings.Contains(p, "/admin") },
		limitRule{"admin", 50, time.Minute}},
	{func(p string) bool { return strings.Contains(p, "/upload") },
		limitRule{"upload", 10, 5 * time.Minute}},
}

var defaultRule = limitRule{"api", 100, time.Minute}

// AdmitResult is the machine-readable outcome of one admission check.
type AdmitResult struct {
	Admitted          bool
	RemainingTokens   int
	RetryAfterSeconds int
}

// tokenBucket holds per-(client, category) admission state. Refill is lazy
// and whole-window: once the window has fully elapsed the bucket resets to
// capacity, there is no proportional trickle.
type tokenBucket struct {
	mu         sync.Mutex
	capacity   int
	window     time.Duration
	available  int
	lastRefill time.Time
}

func newTokenBucket(capacity int, window time.Duration, now time.Time) *tokenBucket {
	return &tokenBucket{
		capacity:   capacity,
		window:     window,
		available:  capacity,
		lastRefill: now,
	}
}

// take consumes one token if available. All mutation happens under the
// bucket's own mutex so concurrent requests for the same client and category
// cannot over-admit, while unrelated buckets never contend.
func (b *tokenBucket) take(now time.Time) AdmitResult {
	b.mu.Lock()
	defer b.mu.Unlock()

	if now.Sub(b.lastRefill) >= b.window {
		b.available = b.capacity
		b.lastRefill = now
	}

	if b.available > 0 {
		b.available--
		return AdmitResult{Admitted: true, RemainingTokens: b.available}
	}

	retry := int(b.window.Seconds()) - int(now.Sub(b.lastRefill).Seconds())
	if retry < 0 {
		retry = 0
	}
	return AdmitResult{RetryAfterSeconds: retry}
}

// AdmissionLimiter gates inbound requests with per-client, per-category
// token buckets. Buckets are created lazily and live until process restart.
type AdmissionLimiter struct {
	mu      sync.Mutex
	buckets map[string]*tokenBucket
	now     func() time.Time
}

// NewAdmissionLimiter creates a limiter using the wall clock.
func NewAdmissionLimiter() *AdmissionLimiter {
	return &AdmissionLimiter{
		buckets: map[string]*tokenBucket{},
		now:     time.Now,
	}
}

// TryAdmit checks whether one request from clientID to requestPath may pass.
// It never fails: an unknown client simply starts with a full bucket.
func (l *AdmissionLimiter) TryAdmit(clientID, requestPath string) AdmitResult {
	rule := ruleFor(requestPath)
	now := l.now()

	key := clientID + ":" + rule.category
	l.mu.Lock()
	bucket, ok := l.buckets[key]
	if !ok {
		bucket = newTokenBucket(rule.capacity, rule.window, now)
		l.buckets[key] = bucket
	}
	l.mu.Unlock()

	return bucket.take(now)
}

func ruleFor(path string) limitRule {
	for _, entry := range limitRules {
		if entry.match(path) {
			return entry.rule
		}
	}
	return defaultRule
}

// clientIdentity resolves the caller: the X-Forwarded-For value when a proxy
// supplied one, otherwise the socket peer address.
func clientIdentity(ctx *gin.Context) string {
	if fwd := ctx.GetHeader("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	return ctx.Request.RemoteAddr
}

// RateLimitMiddleware applies token-bucket admission control in front of
// every other handler. Rejected requests get 429 with retry guidance.
func RateLimitMiddleware(limiter *AdmissionLimiter) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		result := limiter.TryAdmit(clientIdentity(ctx), ctx.Request.URL.Path)

		if result.Admitted {
			ctx.Header("X-Rate-Limit-Remaining", strconv.Itoa(result.RemainingTokens))
			ctx.Next()
			return
		}

		utils.Sugar.Warnw("rate limit exceeded",
			"client", clientIdentity(ctx), "path", ctx.Request.URL.Path)
		ctx.Header("X-Rate-Limit-Retry-After-Seconds", strconv.Itoa(result.RetryAfterSeconds))
		ctx.JSON(http.StatusTooManyRequests, gin.H{
			"error": "Too many requests",
			"message": fmt.Sprintf("Rate limit exceeded. Please try again in %d seconds.",
				result.RetryAfterSeconds),
		})
		ctx.Abort()
	}
}
