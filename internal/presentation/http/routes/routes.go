// Package routes mounts the engine's HTTP surface.
package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/popforge/popforge-go/internal/application/container"
	"github.com/popforge/popforge-go/internal/presentation/http/handlers"
	"github.com/popforge/popforge-go/internal/presentation/http/middleware"
)

// Register mounts every endpoint onto the router.
func Register(router *gin.Engine, deps *container.Container) {
	router.Use(middleware.CORS())

	sessionHandler := handlers.NewSessionHandler(deps.ShopManager, deps.SessionService, deps.PopupService)
	discountHandler := handlers.NewDiscountHandler(deps.ShopManager, deps.DiscountService)
	emailHandler := handlers.NewEmailHandler(deps.ShopManager, deps.EmailCaptureService)
	analyticsHandler := handlers.NewAnalyticsHandler(deps.ShopManager, deps.EventService)
	embedHandler := handlers.NewEmbedHandler(deps.ShopManager, deps.PopupService)
	statusHandler := handlers.NewStatusHandler(deps.ShopManager, deps.Tracker)

	router.GET("/health", statusHandler.Health)

	api := router.Group("/api/v1")
	{
		api.POST("/session/create", sessionHandler.Create)
		api.POST("/session/validate", sessionHandler.Validate)
		api.POST("/session/progress", sessionHandler.Progress)
		api.POST("/discount/generate", discountHandler.Generate)
		api.POST("/collect-email", emailHandler.Collect)
		api.POST("/analytics/step-view", analyticsHandler.StepView)
		api.GET("/popups/embed", embedHandler.Get)
		api.GET("/db/status", statusHandler.DBStatus)
	}
}
