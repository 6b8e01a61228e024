package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/HammerMeetNail/nearby/internal/handlers"
	"github.com/HammerMeetNail/nearby/internal/logging"
)

// WindowCounter increments a counter that resets after window.
type WindowCounter interface {
	Increment(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RedisWindowCounter counts with INCR and EXPIRE in one pipeline.
type RedisWindowCounter struct {
	client *redis.Client
}

func NewRedisWindowCounter(client *redis.Client) *RedisWindowCounter {
	return &RedisWindowCounter{client: client}
}

func (c *RedisWindowCounter) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	pipe := c.client.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

type RateLimiter struct {
	counter  WindowCounter
	limit    int
	window   time.Duration
	prefix   string
	keyFunc  func(r *http.Request) string
	failOpen bool
	now      func() time.Time
}

// NewRateLimiter builds a fixed-window limiter. keyFunc picks the bucket; a
// nil keyFunc buckets by client IP. With failOpen, counter errors let the
// request through.
func NewRateLimiter(counter WindowCounter, limit int, window time.Duration, prefix string, keyFunc func(r *http.Request) string, failOpen bool) *RateLimiter {
	if keyFunc == nil {
		keyFunc = GetClientIP
	}
	return &RateLimiter{
		counter:  counter,
		limit:    limit,
		window:   window,
		prefix:   prefix,
		keyFunc:  keyFunc,
		failOpen: failOpen,
		now:      time.Now,
	}
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.counter == nil || rl.limit <= 0 || rl.window <= 0 {
			if rl.failOpen {
				next.ServeHTTP(w, r)
				return
			}
			writeError(w, http.StatusServiceUnavailable, "Rate limiter unavailable")
			return
		}

		key := rl.prefix + rl.keyFunc(r)
		count, err := rl.counter.Increment(r.Context(), key, rl.window)
		if err != nil {
			logging.Warn("Rate limiter unavailable", map[string]interface{}{"error": err.Error()})
			if rl.failOpen {
				next.ServeHTTP(w, r)
				return
			}
			writeError(w, http.StatusServiceUnavailable, "Rate limiter unavailable")
			return
		}

		reset := rl.now().Truncate(rl.window).Add(rl.window)
		remaining := rl.limit - int(count)
		if remaining < 0 {
			remaining = 0
		}
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", rl.limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", reset.Unix()))

		if int(count) > rl.limit {
			retry := int(reset.Sub(rl.now()).Seconds())
			if retry < 1 {
				retry = 1
			}
			w.Header().Set("Retry-After", fmt.Sprintf("%d", retry))
			writeError(w, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// UserOrIPKey buckets authenticated callers by user and everyone else by IP.
func UserOrIPKey(r *http.Request) string {
	if identity := handlers.GetIdentityFromContext(r.Context()); identity != nil {
		return "user:" + identity.UserID.String()
	}
	return "ip:" + GetClientIP(r)
}

func GetClientIP(r *http.Request) string {
	// Check X-Forwarded-For header (for reverse proxies)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		first = strings.TrimSpace(first)
		if host, _, err := net.SplitHostPort(first); err == nil {
			return host
		}
		return first
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
