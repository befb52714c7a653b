package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tutorgate-backend-go/internal/config"
	"tutorgate-backend-go/internal/core"
	"tutorgate-backend-go/internal/middleware"
	"tutorgate-backend-go/internal/providers"
)

// SetupRoutes configures all the application routes with their handlers and middleware.
// Global middleware (logging, recovery, CORS) is expected on router already.
func SetupRoutes(
	router *gin.Engine,
	appConfig *config.Config,
	logger *zap.Logger,
	verifier middleware.TokenVerifier,
	gatekeeper core.Gatekeeper,
	turnService core.TurnService,
	userService core.UserService,
	table *providers.Table,
) {
	authMW := middleware.NewAuthMiddleware(verifier, logger)

	turnHandler := NewTurnHandler(turnService, logger)
	wsHandler := NewWebSocketHandler(turnService, appConfig.ClientURL, logger)
	userHandler := NewUserHandler(userService, logger)
	adminHandler := NewAdminHandler(userService, table, logger)

	apiV1 := router.Group("/api/v1", authMW.VerifyToken())
	{
		users := apiV1.Group("/users")
		{
			users.POST("/initialize", userHandler.InitializeUserProfile)
			users.GET("/me", userHandler.GetCurrentUserProfile)
		}

		apiV1.POST("/turns", turnHandler.SubmitTurn)
		apiV1.GET("/quota", turnHandler.GetQuota)
		apiV1.GET("/ws", wsHandler.Serve)
		apiV1.GET("/providers", adminHandler.ListProviders)

		admin := apiV1.Group("/admin", middleware.RequireAdmin(gatekeeper, logger))
		{
			admin.PATCH("/users/:userId", adminHandler.UpdateUser)
			admin.PUT("/providers/:providerId/maintenance", adminHandler.SetProviderMaintenance)
		}
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "UP"})
	})

	logger.Info("API routes configured")
}
