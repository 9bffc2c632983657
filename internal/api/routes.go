package api

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/kaidyth/lexa/internal/api/handlers"
	_ "github.com/kaidyth/lexa/internal/api/docs" // swagger docs
)

// RegisterRoutes mounts the inventory read API and swagger UI on r.
func RegisterRoutes(r *gin.Engine, h *handlers.Handler) {
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	r.GET("/health", h.Health)
	r.GET("/stats", h.Stats)
	r.GET("/containers", h.ListContainers)
}
