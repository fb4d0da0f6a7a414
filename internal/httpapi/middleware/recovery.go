package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	slogcontext "github.com/veqryn/slog-context"

	"github.com/suPer8Hu/tripgen/internal/common"
)

func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				slogcontext.FromCtx(c.Request.Context()).Error("panic recovered",
					"panic", rec,
					"path", c.Request.URL.Path,
					"stack", string(debug.Stack()),
				)
				common.Fail(c, http.StatusInternalServerError, common.CodeInternal, "internal server error")
			}
		}()
		c.Next()
	}
}
