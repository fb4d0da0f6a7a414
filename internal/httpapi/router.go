package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/tripgen/internal/common"
	"github.com/suPer8Hu/tripgen/internal/httpapi/handlers"
	"github.com/suPer8Hu/tripgen/internal/httpapi/middleware"
)

func NewRouter(h *handlers.Handler, logger *slog.Logger) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID(logger))
	r.Use(middleware.AccessLog())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, common.CodeRouteNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, common.CodeMethodNotAllow, "method not allowed")
	})

	r.GET("/ping", h.Ping)

	r.POST("/submitJob", h.SubmitJob)
	r.GET("/getResult", h.GetResult)
	return r
}
