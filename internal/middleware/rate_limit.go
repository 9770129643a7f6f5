package middleware

import (
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	DefaultRateLimit = 120 // requests per minute
	DefaultBurstSize = 20

	// HeavyRequestCost is charged for requests that rewrite a whole month
	// of an owner's ledger (generation, settlement reconciliation)
	HeavyRequestCost = 10

	idleSweepInterval = 5 * time.Minute
	idleTTL           = 10 * time.Minute
)

// RateLimiter is a token bucket per owner. Requests spend a cost in tokens
// so bulk ledger rewrites drain the bucket faster than reads.
type RateLimiter struct {
	perMinute int
	limit     rate.Limit
	burst     int

	mu      sync.Mutex
	buckets map[string]*bucket

	stop     chan struct{}
	stopOnce sync.Once
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a RateLimiter with the default limits
func NewRateLimiter() *RateLimiter {
	return NewRateLimiterWithConfig(DefaultRateLimit, DefaultBurstSize)
}

// NewRateLimiterWithConfig creates a RateLimiter refilling perMinute tokens a
// minute up to burst, and starts its idle sweep
func NewRateLimiterWithConfig(perMinute, burst int) *RateLimiter {
	rl := &RateLimiter{
		perMinute: perMinute,
		limit:     rate.Limit(float64(perMinute) / 60),
		burst:     burst,
		buckets:   make(map[string]*bucket),
		stop:      make(chan struct{}),
	}
	go rl.sweep()
	return rl
}

// Allow spends one token of ownerID
func (r *RateLimiter) Allow(ownerID string) bool {
	ok, _, _ := r.Spend(ownerID, 1, time.Now())
	return ok
}

// Spend tries to take cost tokens from ownerID's bucket at now. It reports
// the tokens left and, on refusal, how long until cost tokens are available.
// Costs above the burst size are charged as the burst size.
func (r *RateLimiter) Spend(ownerID string, cost int, now time.Time) (ok bool, remaining int, retryAfter time.Duration) {
	cost = max(1, min(cost, r.burst))

	r.mu.Lock()
	defer r.mu.Unlock()

	b := r.buckets[ownerID]
	if b == nil {
		b = &bucket{limiter: rate.NewLimiter(r.limit, r.burst)}
		r.buckets[ownerID] = b
	}
	b.lastSeen = now

	if b.limiter.AllowN(now, cost) {
		return true, int(math.Max(0, b.limiter.TokensAt(now))), 0
	}

	missing := float64(cost) - b.limiter.TokensAt(now)
	wait := time.Duration(missing / float64(r.limit) * float64(time.Second))
	return false, 0, wait
}

// Remaining returns the whole tokens ownerID can spend right now
func (r *RateLimiter) Remaining(ownerID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	b := r.buckets[ownerID]
	if b == nil {
		return r.burst
	}
	return int(math.Max(0, b.limiter.Tokens()))
}

func (r *RateLimiter) sweep() {
	ticker := time.NewTicker(idleSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			r.mu.Lock()
			for ownerID, b := range r.buckets {
				if now.Sub(b.lastSeen) > idleTTL {
					delete(r.buckets, ownerID)
				}
			}
			r.mu.Unlock()
		case <-r.stop:
			return
		}
	}
}

// Stop ends the idle sweep. It is safe to call more than once.
func (r *RateLimiter) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
}

// RateLimit returns an Echo middleware charging cost tokens per request to
// the authenticated owner. It must run after Authenticate; requests without
// an owner pass through.
func RateLimit(rl *RateLimiter, cost int) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ownerID := GetOwnerID(c)
			if ownerID == "" {
				return next(c)
			}

			header := c.Response().Header()
			header.Set("X-RateLimit-Limit", strconv.Itoa(rl.perMinute))

			ok, remaining, wait := rl.Spend(ownerID, cost, time.Now())
			header.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			if ok {
				return next(c)
			}

			retryAfter := max(1, int(math.Ceil(wait.Seconds())))
			header.Set("Retry-After", strconv.Itoa(retryAfter))
			log.Warn().
				Str("owner_id", ownerID).
				Int("cost", cost).
				Int("retry_after", retryAfter).
				Msg("Rate limit exceeded")

			return rateLimitError(c, fmt.Sprintf("Too many requests. Please retry after %d seconds.", retryAfter))
		}
	}
}
