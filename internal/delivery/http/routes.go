package http

import (
	"github.com/agentmap/dashboard/config"
	"github.com/agentmap/dashboard/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler, log *zap.Logger) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	if log == nil {
		log = zap.NewNop()
	}

	router := gin.New()

	// Global middleware
	router.Use(RequestIDMiddleware())
	router.Use(RecoveryMiddleware(log))
	router.Use(LoggerMiddleware(log))
	router.Use(metrics.Middleware())
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	router.GET("/health", handler.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		mse := v1.Group("/mse")
		{
			mse.POST("", handler.RegisterMSE)
			mse.GET("", handler.ListMSEs)
			mse.GET("/:id", handler.GetMSE)
		}

		v1.GET("/register/options", handler.RegistrationOptions)
		v1.POST("/match", handler.Match)

		sessions := v1.Group("/sessions")
		{
			sessions.POST("", handler.CreateSession)
			sessions.GET("/:session", handler.SessionView)
			sessions.DELETE("/:session", handler.DeleteSession)
			sessions.POST("/:session/match", handler.SessionMatch)
		}

		v1.GET("/audit", handler.Audit)
	}

	return router
}
