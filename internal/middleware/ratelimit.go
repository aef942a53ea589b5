package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/HammerMeetNail/skillswap/internal/handlers"
	"github.com/HammerMeetNail/skillswap/internal/logging"
)

// Counter increments a fixed-window counter and returns the new count.
type Counter interface {
	Hit(ctx context.Context, key string, window time.Duration) (int64, error)
}

type redisCounter struct {
	client *redis.Client
}

// NewRedisCounter counts hits with INCR and EXPIRE in one MULTI. Keys are
// scoped to the window start so refreshing the expiry never extends a window.
func NewRedisCounter(client *redis.Client) Counter {
	if client == nil {
		return nil
	}
	return &redisCounter{client: client}
}

func (c *redisCounter) Hit(ctx context.Context, key string, window time.Duration) (int64, error) {
	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// KeyFunc derives the rate limit bucket for a request.
type KeyFunc func(r *http.Request) string

// UserOrIP buckets authenticated requests by user and the rest by client IP.
func UserOrIP(r *http.Request) string {
	if user := handlers.GetUserFromContext(r.Context()); user != nil {
		return "user:" + user.ID.String()
	}
	return "ip:" + GetClientIP(r)
}

type RateLimiter struct {
	counter Counter
	limit   int
	window  time.Duration
	prefix  string
	key     KeyFunc
	logger  *logging.Logger
}

func NewRateLimiter(counter Counter, limit int, window time.Duration, prefix string, key KeyFunc) *RateLimiter {
	if key == nil {
		key = UserOrIP
	}
	return &RateLimiter{
		counter: counter,
		limit:   limit,
		window:  window,
		prefix:  prefix,
		key:     key,
		logger:  logging.Default.WithComponent("ratelimit"),
	}
}

// Middleware rejects requests over the limit with 429. Counter failures let
// the request through.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.counter == nil || rl.limit <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		now := time.Now()
		windowStart := now.Truncate(rl.window)
		reset := windowStart.Add(rl.window)
		key := rl.prefix + rl.key(r) + ":" + strconv.FormatInt(windowStart.Unix(), 10)

		count, err := rl.counter.Hit(r.Context(), key, rl.window)
		if err != nil {
			rl.logger.Warn("Rate limit check failed", logging.Fields{"error": err.Error()})
			next.ServeHTTP(w, r)
			return
		}

		remaining := rl.limit - int(count)
		if remaining < 0 {
			remaining = 0
		}
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

		if int(count) > rl.limit {
			retry := int(reset.Sub(now).Seconds()) + 1
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			writeError(w, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
			return
		}

		next.ServeHTTP(w, r)
	})
}

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
