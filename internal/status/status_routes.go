package status

import (
	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.Engine, h *Handler) {
	r.GET("/healthz", h.Health)

	api := r.Group("/api/v1")
	{
		api.GET("/runs", h.ListRuns)
		api.GET("/runs/latest", h.LatestRun)
	}
}
