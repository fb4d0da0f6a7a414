package middleware

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	slogcontext "github.com/veqryn/slog-context"
)

const (
	RequestIDHeader = "X-Request-ID"
	RequestIDKey    = "request_id"
)

// RequestID tags the request with the caller's X-Request-ID, or a fresh
// uuid, and puts logger plus the id on the request context.
func RequestID(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Set(RequestIDKey, id)
		c.Header(RequestIDHeader, id)

		ctx := slogcontext.NewCtx(c.Request.Context(), logger)
		ctx = slogcontext.Append(ctx, RequestIDKey, id)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
