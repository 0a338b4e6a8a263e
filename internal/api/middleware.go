package api

import (
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"evalsum/internal/logging"
	"evalsum/internal/metrics"
	"evalsum/internal/models"
)

func (h *Handler) cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.Writer.Header()
		header.Set("Access-Control-Allow-Origin", h.opts.AllowedOrigin)
		header.Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		header.Set("Access-Control-Allow-Headers", "Content-Type")
		if h.opts.AllowedOrigin != "*" {
			header.Add("Vary", "Origin")
		}
		c.Next()
	}
}

// throttle rejects clients over the configured rate. Limiter backend errors
// let the request through.
func (h *Handler) throttle() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.opts.Limiter == nil {
			c.Next()
			return
		}
		decision, err := h.opts.Limiter.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			logging.FromContext(c.Request.Context()).Warn("rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}
		if !decision.Allowed {
			secs := int(math.Ceil(decision.RetryAfter.Seconds()))
			if secs < 1 {
				secs = 1
			}
			c.Header("Retry-After", strconv.Itoa(secs))
			metrics.RecordFailure(string(models.KindThrottled))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests. Please slow down."})
			return
		}
		c.Next()
	}
}
