package middleware

import (
	"net/http"
	"strconv"

	"invest-wallet/internal/logger"
	"invest-wallet/internal/metrics"
	"invest-wallet/internal/ratelimit"
	"invest-wallet/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RateLimit throttles the route under the named profile, per user when
// Identity ran before it and per client address. A failing counter store lets
// the request through.
func RateLimit(limiter *ratelimit.Limiter, profile string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := ""
		if userId, ok := UserId(c); ok {
			id = strconv.Itoa(userId)
		}

		res, err := limiter.CheckProfile(c.Request.Context(), profile, id, c.ClientIP())
		if err != nil {
			metrics.RateLimitDecisionsTotal.WithLabelValues(profile, "error").Inc()
			logger.Log.Error("Rate limiter unavailable", zap.String("profile", profile), zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(res.ResetTime.Unix(), 10))
		if !res.Allowed {
			metrics.RateLimitDecisionsTotal.WithLabelValues(profile, "denied").Inc()
			retryAfter := int(res.RetryAfter(limiter.Now()).Seconds())
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, common.NewErrorResponse(
				"Too many requests, please try again later",
				gin.H{"retry_after_seconds": retryAfter},
				http.StatusTooManyRequests,
			))
			return
		}

		metrics.RateLimitDecisionsTotal.WithLabelValues(profile, "allowed").Inc()
		c.Next()
	}
}
