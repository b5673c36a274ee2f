package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"supik-server/internal/logger"
	"supik-server/internal/metrics"
)

// Limiter is the subset of ratelimit.Limiter used here.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, time.Duration, error)
}

// LoginRateLimit throttles login attempts per client IP. A nil limiter
// disables throttling; Redis errors let the request through.
func LoginRateLimit(limiter Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		ok, retryAfter, err := limiter.Allow(c.Request.Context(), "login:"+c.ClientIP())
		if err != nil {
			logger.Warn("login rate limiter unavailable", zap.Error(err))
		}
		if !ok {
			metrics.LoginFailures.WithLabelValues("rate_limited").Inc()
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
			c.String(http.StatusTooManyRequests, "Too Many Requests")
			c.Abort()
			return
		}
		c.Next()
	}
}
