package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/AnshRaj112/estatehub-backend/pkg/clientip"
	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
)

const (
	// RateLimitWindow is 120 seconds
	RateLimitWindow = 120 * time.Second
	// RateLimitMaxRequests is the maximum number of requests allowed in the window
	RateLimitMaxRequests = 60
	// RateLimitKeyPrefix is the Redis key prefix for rate limiting
	RateLimitKeyPrefix = "ratelimit:"
	// ThrottledIPKeyPrefix marks IPs that exceeded the window
	ThrottledIPKeyPrefix = "throttled_ip:"
	// ThrottledIPDuration is how long an IP stays throttled
	ThrottledIPDuration = 15 * time.Minute
)

// RedisRateLimiter counts requests per IP in Redis so the limit is shared
// across instances. Any Redis error lets the request through.
type RedisRateLimiter struct {
	rdb      *redis.Client
	resolver clientip.Resolver
	logger   *log.Logger
}

// NewRedisRateLimiter wraps a connected client.
func NewRedisRateLimiter(rdb *redis.Client, resolver clientip.Resolver, logger *log.Logger) *RedisRateLimiter {
	return &RedisRateLimiter{rdb: rdb, resolver: resolver, logger: logger}
}

// Middleware provides rate limiting with temporary throttling.
func (l *RedisRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ipAddress := l.resolver.ClientIP(r)
		if ipAddress == "" || l.rdb == nil {
			next.ServeHTTP(w, r)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), time.Second)
		defer cancel()

		// Check if IP is already throttled
		throttledKey := ThrottledIPKeyPrefix + ipAddress
		throttled, err := l.rdb.Exists(ctx, throttledKey).Result()
		if err == nil && throttled > 0 {
			writeJSONError(w, http.StatusTooManyRequests, "Too many requests. Please try again later.")
			return
		}

		rateLimitKey := RateLimitKeyPrefix + ipAddress
		count, err := l.rdb.Incr(ctx, rateLimitKey).Result()
		if err == nil && count == 1 {
			// First request in this window
			err = l.rdb.Expire(ctx, rateLimitKey, RateLimitWindow).Err()
		}
		if err != nil {
			// If Redis fails, allow the request (fail open)
			l.logger.Warn("rate limit unavailable", "err", err)
			next.ServeHTTP(w, r)
			return
		}

		if count > RateLimitMaxRequests {
			_ = l.rdb.Set(ctx, throttledKey, "1", ThrottledIPDuration).Err()
			w.Header().Set("Retry-After", strconv.Itoa(int(ThrottledIPDuration.Seconds())))
			writeJSONError(w, http.StatusTooManyRequests, fmt.Sprintf("Rate limit exceeded. Try again in %d minutes.", int(ThrottledIPDuration.Minutes())))
			return
		}

		// Add rate limit headers
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(RateLimitMaxRequests))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(RateLimitMaxRequests-count, 10))

		next.ServeHTTP(w, r)
	})
}
