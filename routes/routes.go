package routes

import (
	"dow_tracker_backend/controllers"

	"github.com/gin-gonic/gin"
)

// SetupRoutes sets up all API routes
func SetupRoutes(router *gin.Engine, gc *controllers.GridController) {
	// API v1 group
	api := router.Group("/api/v1")
	{
		api.GET("/grid", gc.GetGrid)
		api.POST("/refresh", gc.RefreshNow)
		api.GET("/version", gc.GetVersion)
		api.GET("/slots", gc.GetSlots)
		api.GET("/basket", gc.GetBasket)
		api.GET("/archive/:date", gc.GetArchive)
	}

	// WebSocket endpoint for grid change notifications
	router.GET("/ws", gc.HandleWebSocket)
}
