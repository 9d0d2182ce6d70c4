package api

import (
	"github.com/gin-gonic/gin"

	lkterrors "github.com/bitswalk/lkt/src/common/errors"
)

// rateLimit rejects clients that went over limit within the current
// minute. scope keeps separate counters per route group.
func (a *API) rateLimit(scope string, limit func(RateLimitConfig) int) gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.limiter == nil {
			c.Next()
			return
		}
		key := scope + ":" + c.ClientIP()
		if !a.limiter.Allow(key, limit(a.limiter.config)) {
			if log != nil {
				log.Warn("Rate limit exceeded", "client", c.ClientIP(), "scope", scope)
			}
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(lkterrors.HTTPStatus(lkterrors.ErrRateLimited), lkterrors.ErrRateLimited.ToResponse())
			return
		}
		c.Next()
	}
}

func apiLimit(cfg RateLimitConfig) int { return cfg.RequestsPerMin }

func logLimit(cfg RateLimitConfig) int { return cfg.LogRequestsPerMin }
