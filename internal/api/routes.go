package api

import (
	"github.com/JustJay7/courtlight/internal/cache"
	"github.com/JustJay7/courtlight/pkg/logger"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SetupRoutes configures all application routes
func SetupRoutes(router *gin.Engine, db *gorm.DB, cache cache.Cache, logger *logger.Logger) {
	h := NewHandlers(db, cache, logger)

	api := router.Group("/api")
	{
		api.GET("/health", h.HealthCheck)

		api.GET("/judgements", h.ListJudgements)
		api.GET("/judgements/export", h.ExportJudgements)
		api.GET("/judgements/:id", h.GetJudgement)

		api.GET("/judges", h.ListJudges)

		api.GET("/cache/stats", h.CacheStats)
	}
}
