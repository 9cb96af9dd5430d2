package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RouteOptions holds what SetupRoutes needs besides the handler.
type RouteOptions struct {
	JWTSecret string
	Metrics   http.Handler
	Health    HealthOptions
}

// SetupRoutes configures all API routes
func SetupRoutes(router *gin.Engine, handler *Handler, opts RouteOptions) {
	RegisterHealthRoutes(router, opts.Health)
	if opts.Metrics != nil {
		router.GET("/metrics", gin.WrapH(opts.Metrics))
	}

	v1 := router.Group("/api/v1")
	{
		tags := v1.Group("/tags")
		{
			tags.POST("/detect", handler.DetectTags)  // POST /api/v1/tags/detect
			tags.GET("/popular", handler.PopularTags) // GET /api/v1/tags/popular
		}

		v1.POST("/validate", handler.Validate) // POST /api/v1/validate

		classify := v1.Group("/classify")
		{
			classify.POST("", handler.Classify)            // POST /api/v1/classify
			classify.POST("/batch", handler.ClassifyBatch) // POST /api/v1/classify/batch
		}

		v1.GET("/categories", handler.ListCategories) // GET /api/v1/categories
		v1.GET("/stats", handler.Stats)               // GET /api/v1/stats
		v1.POST("/submissions", handler.Submit)       // POST /api/v1/submissions
	}

	admin := ProtectedGroup(router, "/api/v1", opts.JWTSecret)
	{
		admin.DELETE("/tags/popular", handler.ResetPopularTags)       // DELETE /api/v1/tags/popular
		admin.PUT("/categories/:id/keywords", handler.UpdateKeywords) // PUT /api/v1/categories/:id/keywords
	}
}
