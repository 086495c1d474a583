package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/HammerMeetNail/ficarchive-web/internal/handlers"
	"github.com/HammerMeetNail/ficarchive-web/internal/logging"
)

// KeyFunc picks the bucket a request counts against.
type KeyFunc func(r *http.Request) string

// RateLimiter is a fixed-window counter in Redis.
type RateLimiter struct {
	redis    *redis.Client
	limit    int
	window   time.Duration
	prefix   string
	keyFunc  KeyFunc
	failOpen bool
}

func NewRateLimiter(redisClient *redis.Client, limit int, window time.Duration, prefix string, keyFunc KeyFunc, failOpen bool) *RateLimiter {
	if keyFunc == nil {
		keyFunc = GetClientIP
	}
	return &RateLimiter{
		redis:    redisClient,
		limit:    limit,
		window:   window,
		prefix:   prefix,
		keyFunc:  keyFunc,
		failOpen: failOpen,
	}
}

// NewBlockActionRateLimiter limits block, unblock and refresh calls per
// control owner so one browser cannot flood the archive API.
func NewBlockActionRateLimiter(redisClient *redis.Client, perMinute int) *RateLimiter {
	return NewRateLimiter(redisClient, perMinute, time.Minute, "ratelimit:block:", OwnerOrClientIP, true)
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return rl.MiddlewareUnless(nil, next)
}

// MiddlewareUnless passes requests for which skip reports true straight to
// next without counting them.
func (rl *RateLimiter) MiddlewareUnless(skip func(*http.Request) bool, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if skip != nil && skip(r) {
			next.ServeHTTP(w, r)
			return
		}
		if rl.redis == nil {
			rl.unavailable(w, r, next)
			return
		}

		key := rl.prefix + rl.keyFunc(r)
		allowed, remaining, resetTime, err := rl.isAllowed(r.Context(), key)
		if err != nil {
			logging.FromContext(r.Context()).Warn("Rate limiter unavailable", map[string]interface{}{
				"error": err.Error(),
			})
			rl.unavailable(w, r, next)
			return
		}

		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", rl.limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", resetTime))

		if !allowed {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", max(resetTime-time.Now().Unix(), 1)))
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "Rate limit exceeded. Please try again later."})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) unavailable(w http.ResponseWriter, r *http.Request, next http.Handler) {
	if rl.failOpen {
		next.ServeHTTP(w, r)
		return
	}
	writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "Service temporarily unavailable"})
}

func (rl *RateLimiter) isAllowed(ctx context.Context, key string) (allowed bool, remaining int, resetTime int64, err error) {
	windowEnd := time.Now().Truncate(rl.window).Add(rl.window)

	pipe := rl.redis.Pipeline()
	incrCmd := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, rl.window)
	if _, err = pipe.Exec(ctx); err != nil {
		return false, 0, windowEnd.Unix(), err
	}

	count := int(incrCmd.Val())
	remaining = max(rl.limit-count, 0)
	return count <= rl.limit, remaining, windowEnd.Unix(), nil
}

// GetClientIP returns the first address from proxy headers, else RemoteAddr.
func GetClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// OwnerOrClientIP keys on the control owner when known.
func OwnerOrClientIP(r *http.Request) string {
	if owner := handlers.GetOwnerFromContext(r.Context()); owner != "" {
		return owner
	}
	return "ip:" + GetClientIP(r)
}
