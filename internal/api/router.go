package api

import (
	"github.com/gin-gonic/gin"
	"github.com/synapse-db/synapse/internal/api/handler"
	"github.com/synapse-db/synapse/internal/api/middleware"
	"github.com/synapse-db/synapse/internal/config"
	"github.com/synapse-db/synapse/internal/logger"
	"github.com/synapse-db/synapse/internal/repository"
	"github.com/synapse-db/synapse/internal/service"
	"github.com/synapse-db/synapse/internal/source"
)

// SetupRouter configures the Gin router with all routes
func SetupRouter(
	syncService *service.SyncService,
	connections *repository.ConnectionRepository,
	sources *source.Registry,
	cfg *config.ServerConfig,
	log *logger.Logger,
) *gin.Engine {
	// Set Gin mode
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	// Add middleware
	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(log))
	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:  cfg.CORS.AllowedOrigins,
		AllowAllOrigins: cfg.CORS.AllowAllOrigins,
	}))

	// Create handlers
	healthHandler := handler.NewHealthHandler(syncService.Embedding().GetModel())
	syncHandler := handler.NewSyncHandler(syncService)
	vectorHandler := handler.NewVectorHandler(syncService)
	usageHandler := handler.NewUsageHandler(syncService.Embedding())
	databaseHandler := handler.NewDatabaseHandler(connections, sources)

	// Health check
	r.GET("/health", healthHandler.Health)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		// Sync
		v1.POST("/sync", syncHandler.Sync)
		v1.POST("/sync/all/:dbKey", syncHandler.SyncAll)
		v1.GET("/sync/check", syncHandler.Check)

		// Vectors
		v1.DELETE("/vectors", vectorHandler.Clear)
		v1.GET("/shards", vectorHandler.ListShards)
		v1.GET("/states", vectorHandler.ListStates)
		v1.GET("/stats", vectorHandler.GetStats)

		// Databases
		v1.GET("/databases", databaseHandler.List)
		v1.POST("/databases", databaseHandler.Register)
		v1.DELETE("/databases/:dbKey", databaseHandler.Unregister)
		v1.GET("/databases/:dbKey/collections", databaseHandler.ListCollections)

		// Usage and cache
		v1.GET("/usage", usageHandler.GetUsage)
		v1.POST("/usage/reset", usageHandler.ResetUsage)
		v1.GET("/cache", usageHandler.GetCacheStats)
		v1.DELETE("/cache", usageHandler.ClearCache)
	}

	return r
}
