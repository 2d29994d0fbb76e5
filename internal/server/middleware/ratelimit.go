package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sevigo/codezen/internal/config"
)

// fixedWindowScript counts a hit in the current window and returns the
// count together with the window's remaining lifetime in milliseconds.
var fixedWindowScript = redis.NewScript(`
	local count = redis.call('INCR', KEYS[1])
	if count == 1 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
	end
	local ttl = redis.call('PTTL', KEYS[1])
	return { count, ttl }
`)

// RateLimiter limits how often one user may hit an inference endpoint.
// Redis errors let the request through.
type RateLimiter struct {
	rdb    *redis.Client
	cfg    config.RateLimitConfig
	logger *slog.Logger
}

// NewRedisClient connects to the configured Redis server. It returns nil
// when rate limiting is disabled.
func NewRedisClient(ctx context.Context, cfg config.RateLimitConfig) (*redis.Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
	}
	return client, nil
}

func NewRateLimiter(rdb *redis.Client, cfg config.RateLimitConfig, logger *slog.Logger) *RateLimiter {
	return &RateLimiter{rdb: rdb, cfg: cfg, logger: logger}
}

// Limit returns middleware counting requests per user under the given
// route name.
func (l *RateLimiter) Limit(route string) func(http.Handler) http.Handler {
	if l == nil || !l.cfg.Enabled || l.rdb == nil {
		return func(next http.Handler) http.Handler { return next }
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := l.key(r, route)
			vals, err := fixedWindowScript.Run(r.Context(), l.rdb, []string{key}, l.cfg.Window.Milliseconds()).Result()
			if err != nil {
				l.logger.Warn("rate limiter unavailable, allowing request", "key", key, "error", err)
				next.ServeHTTP(w, r)
				return
			}

			allowed, remaining, retry, ok := evaluateWindow(vals, l.cfg.Limit)
			if !ok {
				l.logger.Warn("unexpected rate limiter result", "key", key, "result", vals)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.cfg.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			if !allowed {
				secs := int(math.Ceil(retry.Seconds()))
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (l *RateLimiter) key(r *http.Request, route string) string {
	uid := "anon"
	if user, ok := UserFromContext(r.Context()); ok {
		uid = strconv.FormatInt(user.ID, 10)
	}
	return strings.Join([]string{l.cfg.Prefix, "user", uid, route}, ":")
}

// evaluateWindow interprets the script reply. ok is false when the reply
// does not have the expected shape.
func evaluateWindow(vals any, limit int) (allowed bool, remaining int, retry time.Duration, ok bool) {
	arr, isSlice := vals.([]any)
	if !isSlice || len(arr) != 2 {
		return false, 0, 0, false
	}
	count, ok1 := arr[0].(int64)
	ttlMs, ok2 := arr[1].(int64)
	if !ok1 || !ok2 {
		return false, 0, 0, false
	}

	remaining = limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	if ttlMs < 0 {
		ttlMs = 0
	}
	return int(count) <= limit, remaining, time.Duration(ttlMs) * time.Millisecond, true
}
