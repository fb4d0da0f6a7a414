package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	slogcontext "github.com/veqryn/slog-context"

	"github.com/suPer8Hu/tripgen/internal/common"
)

func (h *Handler) Ping(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.Store.Ping(ctx); err != nil {
		slogcontext.FromCtx(ctx).Error("ping: store unreachable", "err", err)
		common.Fail(c, http.StatusInternalServerError, common.CodeStore, "store unavailable")
		return
	}
	common.OK(c, gin.H{"code": 0, "message": "ok"})
}
