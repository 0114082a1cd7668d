package ratelimit

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/streamspace/authcore/internal/apperrors"
	"github.com/streamspace/authcore/internal/logger"
)

// ExtractIP returns the source identity for a request: the first entry of
// X-Forwarded-For when present, falling back to gin's own client IP
// resolution.
func ExtractIP(c *gin.Context) string {
	if fwd := c.GetHeader("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		if ip := strings.TrimSpace(parts[0]); ip != "" {
			return ip
		}
	}
	return c.ClientIP()
}

// Middleware returns a Gin handler that admits a request only if the bucket
// for (class, source IP) has capacity. On denial it responds 429 and stops
// the chain before any downstream handler runs.
func (l *Limiter) Middleware(class Class, capacity int, refillPeriod time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := ExtractIP(c)
		if !l.Allow(class, ip, capacity, refillPeriod) {
			logger.RateLimit().Warn().Str("class", string(class)).Str("ip", ip).Msg("rate limit exceeded")
			err := apperrors.New(apperrors.ErrCodeRateLimitExceeded, "too many requests; try again later")
			c.JSON(err.StatusCode, err.ToResponse())
			c.Abort()
			return
		}
		c.Next()
	}
}
