package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
)

// SimpleTimeout returns middleware that sets a context deadline on the
// request without attempting to abort on timeout. Handlers must check
// ctx.Done() and handle the timeout themselves.
//
// Quote resolution is context-aware end to end (fetch, cache, store), so
// the deadline propagates naturally and an aborting wrapper would only
// race the handler for the response writer.
func SimpleTimeout(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
