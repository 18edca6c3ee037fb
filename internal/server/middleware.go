package server

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// classifyErrorForLog maps domain errors onto the (type, code) pair recorded
// in request logs without leaking internals.
func classifyErrorForLog(err error) (string, string) {
	if err == nil {
		return "", ""
	}
	status, payload := mapError(err)
	if status >= 500 {
		return "server_error", payload.Type
	}
	return "client_error", payload.Type
}

// PaymentRateLimit throttles apply-payment requests per obligation. Limiter
// failures fail open: a broken redis must not block payments.
func (s *Server) PaymentRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.paymentLimiter.Enabled() {
			c.Next()
			return
		}

		resourceID := strings.TrimSpace(c.Param("id"))
		result, err := s.paymentLimiter.Allow(c.Request.Context(), resourceID)
		if err != nil {
			c.Next()
			return
		}
		if !result.Allowed {
			s.obsMetrics.RecordRateLimitDenied(c.Request.Context(), c.FullPath(), "token_bucket")
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}
