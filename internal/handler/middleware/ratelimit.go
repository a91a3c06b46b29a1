package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"ledger-gateway/internal/infra/kvs"
	"ledger-gateway/internal/pkg/config"

	"github.com/gin-gonic/gin"
)

const rateLimitPrefix = "ratelimit:"

// RateLimiter is a fixed-window counter per caller backed by the key-value
// store, so limits hold across gateway instances.
type RateLimiter struct {
	kv          kvs.Store
	window      time.Duration
	maxRequests int
	keyFunc     func(c *gin.Context) string
}

// RateLimiters pairs the limiter for authenticated API traffic with the
// tighter one guarding unauthenticated endpoints.
type RateLimiters struct {
	API    *RateLimiter
	Public *RateLimiter
}

func NewRateLimiters(kv kvs.Store, cfg config.RateLimitConfig) *RateLimiters {
	return &RateLimiters{
		API:    NewRateLimiter(kv, cfg.Window, cfg.MaxRequests),
		Public: NewRateLimiter(kv, cfg.PublicWindow, cfg.PublicMaxRequests),
	}
}

func NewRateLimiter(kv kvs.Store, window time.Duration, maxRequests int) *RateLimiter {
	return &RateLimiter{
		kv:          kv,
		window:      window,
		maxRequests: maxRequests,
		keyFunc: func(c *gin.Context) string {
			if userID := GetUserID(c); userID != "" {
				return userID
			}
			return c.ClientIP()
		},
	}
}

func (r *RateLimiter) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := rateLimitPrefix + r.keyFunc(c)

		count, err := r.checkWindow(c.Request.Context(), key)
		if err != nil {
			// The limiter never takes the API down with it
			slog.Error("rate limit check failed", "key", key, "error", err)
			c.Next()
			return
		}

		remaining := r.maxRequests - int(count)
		if remaining < 0 {
			remaining = 0
		}
		resetAt := time.Now().Add(r.window)
		c.Header("X-RateLimit-Limit", strconv.Itoa(r.maxRequests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

		if count > int64(r.maxRequests) {
			slog.Warn("rate limit exceeded",
				"key", key,
				"client_ip", c.ClientIP(),
				"path", c.Request.URL.Path,
			)
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":      "Rate limit exceeded. Please try again later.",
				"retryAfter": int(r.window.Seconds()),
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

func (r *RateLimiter) checkWindow(ctx context.Context, key string) (int64, error) {
	count, err := r.kv.Incr(ctx, key)
	if err != nil {
		return 0, err
	}
	if count == 1 {
		if err := r.kv.Expire(ctx, key, r.window); err != nil {
			return count, err
		}
	}
	return count, nil
}
