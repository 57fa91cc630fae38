// Package ratelimit implements a fixed-window, per-client request limit
// backed by Redis.
package ratelimit

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/render"
	"github.com/redis/go-redis/v9"
	"github.com/vadimbarashkov/notveryshort/pkg/middleware"
	"github.com/vadimbarashkov/notveryshort/pkg/response"
)

const keyPrefix = "ratelimit:"

// noExpiry is what TTL reports for a key that exists but has no expiration.
const noExpiry time.Duration = -1

// New allows at most limit requests per client IP within each window.
// When Redis is unreachable requests are let through.
func New(rdb redis.Cmdable, limit int64, window time.Duration, logger *slog.Logger) middleware.Middleware {
	const op = "middleware.ratelimit.New"

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			key := keyPrefix + clientIP(r)

			count, err := rdb.Incr(ctx, key).Result()
			if err != nil {
				logger.Warn("rate limit check failed", slog.String("op", op), slog.Any("err", err))
				next.ServeHTTP(w, r)
				return
			}

			if count == 1 {
				if err := rdb.Expire(ctx, key, window).Err(); err != nil {
					logger.Warn("failed to set rate limit window", slog.String("op", op), slog.Any("err", err))
				}
			}

			if count > limit {
				retryAfter := window

				// A key without a TTL would block the client forever; this
				// happens when the Expire after the first Incr failed.
				ttl, err := rdb.TTL(ctx, key).Result()
				switch {
				case err != nil:
					logger.Warn("failed to read rate limit window", slog.String("op", op), slog.Any("err", err))
				case ttl == noExpiry:
					if err := rdb.Expire(ctx, key, window).Err(); err != nil {
						logger.Warn("failed to restore rate limit window", slog.String("op", op), slog.Any("err", err))
					}
				case ttl > 0:
					retryAfter = ttl
				}

				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
				render.Status(r, http.StatusTooManyRequests)
				render.JSON(w, r, response.TooManyRequestsResponse)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP expects chi's RealIP middleware to have run already.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
