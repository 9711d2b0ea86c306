package httpx

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRateLimiter counts requests per client in fixed windows stored in Redis, so every
// booking-service replica enforces one shared budget.
type RedisRateLimiter struct {
	rdb    redis.Scripter
	limit  int64
	window time.Duration
	prefix string
}

// KEYS[1] is the client counter, ARGV[1] the window in ms. Returns {hits, pttl}.
var fixedWindow = redis.NewScript(`
local hits = redis.call("INCR", KEYS[1])
if hits == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {hits, redis.call("PTTL", KEYS[1])}
`)

func NewRedisRateLimiter(rdb redis.Scripter, limit int, window time.Duration, prefix string) *RedisRateLimiter {
	if limit <= 0 {
		limit = 60
	}
	if window < time.Millisecond {
		window = time.Minute
	}
	if prefix = strings.TrimSpace(prefix); prefix == "" {
		prefix = "rl"
	}
	return &RedisRateLimiter{rdb: rdb, limit: int64(limit), window: window, prefix: prefix}
}

// Middleware rejects clients over budget with 429. When Redis is unreachable, failOpen
// decides between serving the request and answering 503.
func (rl *RedisRateLimiter) Middleware(logger *slog.Logger, failOpen bool) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits, ttl, err := rl.hit(r.Context(), clientKey(r))
			switch {
			case err != nil:
				logger.Warn("rate limiter unavailable", "err", err, "fail_open", failOpen)
				if !failOpen {
					WriteError(w, http.StatusServiceUnavailable, "rate limiter unavailable", "")
					return
				}
			case hits > rl.limit:
				tooManyRequests(w, retryAfterSeconds(ttl))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (rl *RedisRateLimiter) hit(ctx context.Context, client string) (int64, time.Duration, error) {
	key := rl.prefix + ":" + client
	res, err := fixedWindow.Run(ctx, rl.rdb, []string{key}, rl.window.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, 0, err
	}
	if len(res) != 2 {
		return 0, 0, fmt.Errorf("rate limit script returned %d values", len(res))
	}
	return res[0], time.Duration(res[1]) * time.Millisecond, nil
}

// retryAfterSeconds rounds ttl up to whole seconds. PTTL is negative for keys without
// an expiry, which is reported as one second.
func retryAfterSeconds(ttl time.Duration) int {
	secs := int((ttl + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}
