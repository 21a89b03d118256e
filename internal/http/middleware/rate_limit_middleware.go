package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/sandeepkv93/credential-session-core/internal/http/response"
	"github.com/sandeepkv93/credential-session-core/internal/observability"
)

type rateLimitClient struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter hands each client key its own token bucket refilled at
// perMinute/60 tokens per second with a burst of perMinute.
type RateLimiter struct {
	scope     string
	perMinute int
	keyFunc   func(r *http.Request) string
	now       func() time.Time

	mu      sync.Mutex
	clients map[string]*rateLimitClient
	cleanup time.Time
}

func NewRateLimiter(scope string, perMinute int) *RateLimiter {
	return NewRateLimiterWithKey(scope, perMinute, nil)
}

func NewRateLimiterWithKey(scope string, perMinute int, keyFunc func(r *http.Request) string) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 1
	}
	if keyFunc == nil {
		keyFunc = clientIPKey
	}
	return &RateLimiter{
		scope:     scope,
		perMinute: perMinute,
		keyFunc:   keyFunc,
		now:       time.Now,
		clients:   make(map[string]*rateLimitClient),
	}
}

func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limiter := rl.limiterFor(rl.keyFunc(r))
			now := rl.now()
			allowed := limiter.AllowN(now, 1)
			remaining := int(math.Floor(limiter.TokensAt(now)))
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.perMinute))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(max(remaining, 0)))
			if !allowed {
				observability.RecordRateLimitDecision(r.Context(), rl.scope, "deny")
				w.Header().Set("Retry-After", retryAfterHeader(rl.retryAfter()))
				slog.DebugContext(r.Context(), "rate limit exceeded", "scope", rl.scope, "path", r.URL.Path)
				response.Error(w, r, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests", nil)
				return
			}
			observability.RecordRateLimitDecision(r.Context(), rl.scope, "allow")
			next.ServeHTTP(w, r)
		})
	}
}

func (rl *RateLimiter) limiterFor(key string) *rate.Limiter {
	now := rl.now()
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.After(rl.cleanup) {
		for k, c := range rl.clients {
			if now.Sub(c.lastSeen) > 2*time.Minute {
				delete(rl.clients, k)
			}
		}
		rl.cleanup = now.Add(time.Minute)
	}

	c, ok := rl.clients[key]
	if !ok {
		c = &rateLimitClient{limiter: rate.NewLimiter(rate.Limit(float64(rl.perMinute)/60), rl.perMinute)}
		rl.clients[key] = c
	}
	c.lastSeen = now
	return c.limiter
}

// retryAfter is the time for one token to refill.
func (rl *RateLimiter) retryAfter() time.Duration {
	return time.Duration(float64(time.Minute) / float64(rl.perMinute))
}

func clientIPKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func retryAfterHeader(d time.Duration) string {
	seconds := int(math.Ceil(d.Seconds()))
	if seconds <= 0 {
		seconds = 1
	}
	return strconv.Itoa(seconds)
}
