package server

import (
	"math"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/feeledger/internal/ratelimit"
	"go.uber.org/zap"
)

// RateLimitPaymentWrites throttles ledger writes per client address.
// A limiter failure lets the request through.
func RateLimitPaymentWrites(limiter ratelimit.Allower, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		res, err := limiter.AllowPaymentWrite(c.Request.Context(), c.ClientIP())
		if err != nil {
			log.Warn("payment write limiter unavailable", zap.Error(err))
			c.Next()
			return
		}
		if !res.Allowed {
			seconds := int(math.Ceil(res.RetryAfter.Seconds()))
			if seconds < 1 {
				seconds = 1
			}
			c.Header("Retry-After", strconv.Itoa(seconds))
			c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			AbortWithError(c, ratelimit.ErrRateLimited)
			return
		}
		c.Next()
	}
}
