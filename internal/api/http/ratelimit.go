package http

import (
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"

	apperrors "github.com/spec-kit/storefront-identity/pkg/util"
)

// DefaultLimiterIdleTTL is how long a client's bucket is kept after its last
// request.
const DefaultLimiterIdleTTL = 10 * time.Minute

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64
}

// RateLimiter implements token bucket rate limiting per client address.
// Buckets idle for longer than the idle TTL are swept on later requests.
type RateLimiter struct {
	limiters  sync.Map // key -> *limiterEntry
	rate      rate.Limit
	burst     int
	idleTTL   time.Duration
	lastSweep atomic.Int64
	now       func() time.Time
}

// NewRateLimiter creates a limiter allowing requestsPerSecond with the given burst.
// A non-positive rate disables limiting.
func NewRateLimiter(requestsPerSecond float64, burst int) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	rl := &RateLimiter{rate: rate.Limit(requestsPerSecond), burst: burst, now: time.Now}
	rl.setIdleTTL(DefaultLimiterIdleTTL)
	return rl
}

// WithIdleTTL changes how long idle buckets are kept. It never drops a bucket
// before it could have refilled, so eviction cannot grant extra requests.
func (rl *RateLimiter) WithIdleTTL(ttl time.Duration) *RateLimiter {
	rl.setIdleTTL(ttl)
	return rl
}

func (rl *RateLimiter) setIdleTTL(ttl time.Duration) {
	if rl.rate > 0 {
		refill := time.Duration(float64(rl.burst) / float64(rl.rate) * float64(time.Second))
		if ttl < refill {
			ttl = refill
		}
	}
	rl.idleTTL = ttl
	rl.lastSweep.Store(rl.now().UnixNano())
}

func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	now := rl.now()
	rl.sweep(now)

	v, ok := rl.limiters.Load(key)
	if !ok {
		v, _ = rl.limiters.LoadOrStore(key, &limiterEntry{limiter: rate.NewLimiter(rl.rate, rl.burst)})
	}
	entry := v.(*limiterEntry)
	entry.lastSeen.Store(now.UnixNano())
	return entry.limiter
}

// sweep drops idle buckets at most once per idle TTL.
func (rl *RateLimiter) sweep(now time.Time) {
	last := rl.lastSweep.Load()
	if now.UnixNano()-last < int64(rl.idleTTL) {
		return
	}
	if !rl.lastSweep.CompareAndSwap(last, now.UnixNano()) {
		return
	}
	cutoff := now.Add(-rl.idleTTL).UnixNano()
	rl.limiters.Range(func(key, v any) bool {
		if v.(*limiterEntry).lastSeen.Load() < cutoff {
			rl.limiters.Delete(key)
		}
		return true
	})
}

// Allow checks if a request should be allowed for the given key.
func (rl *RateLimiter) Allow(key string) bool {
	return rl.getLimiter(key).Allow()
}

// Handler throttles requests by client IP.
func (rl *RateLimiter) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if rl == nil || rl.rate <= 0 {
			return c.Next()
		}

		limiter := rl.getLimiter("ip:" + c.IP())
		c.Set("X-RateLimit-Limit", strconv.Itoa(rl.burst))

		if !limiter.Allow() {
			c.Set("X-RateLimit-Remaining", "0")
			c.Set(fiber.HeaderRetryAfter, "1")
			return apperrors.NewDomainError("RATE_LIMITED", "too many requests", http.StatusTooManyRequests, nil)
		}

		c.Set("X-RateLimit-Remaining", strconv.Itoa(int(limiter.Tokens())))
		return c.Next()
	}
}
