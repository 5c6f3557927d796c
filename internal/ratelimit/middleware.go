package ratelimit

import (
	"math"
	"strconv"

	"crm-bridge/internal/apperr"
	"crm-bridge/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Middleware rejects callers over their budget with a RateLimited error. Limiter
// failures let the request through.
func Middleware(l Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := l.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			logger.FromGin(c).Warn("rate limiter unavailable; allowing request", "err", err)
			c.Next()
			return
		}

		reset := int(math.Ceil(res.ResetIn.Seconds()))
		h := c.Writer.Header()
		h.Set("RateLimit-Limit", strconv.Itoa(res.Limit))
		h.Set("RateLimit-Remaining", strconv.Itoa(res.Remaining))
		h.Set("RateLimit-Reset", strconv.Itoa(reset))

		if !res.Allowed {
			h.Set("Retry-After", strconv.Itoa(reset))
			_ = c.Error(apperr.RateLimited("Too many requests, please try again later."))
			c.Abort()
			return
		}
		c.Next()
	}
}
