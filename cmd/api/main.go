package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/synapse-db/synapse/internal/api"
	"github.com/synapse-db/synapse/internal/config"
	"github.com/synapse-db/synapse/internal/domain"
	"github.com/synapse-db/synapse/internal/logger"
	"github.com/synapse-db/synapse/internal/repository"
	"github.com/synapse-db/synapse/internal/service"
	"github.com/synapse-db/synapse/internal/source"
	"github.com/synapse-db/synapse/internal/source/mongodb"
	"gorm.io/gorm"
)

func main() {
	// Initialize logger first (with defaults)
	appLogger := logger.New(nil)
	logger.SetDefault(appLogger)
	defer logger.Sync()

	// Load configuration
	// Support CONFIG_PATH environment variable for production deployments
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	// Initialize metadata store
	db, err := repository.InitDB(&cfg.Metadata)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize metadata store")
	}

	// Initialize repositories
	stateRepo := repository.NewStateRepository(db)
	shardRepo := repository.NewShardRepository(db)
	connectionRepo := repository.NewConnectionRepository(db)
	qdrantRepo, err := repository.NewQdrantRepository(&repository.QdrantConnectionConfig{
		Host:   cfg.Qdrant.Host,
		Port:   cfg.Qdrant.Port,
		APIKey: cfg.Qdrant.APIKey,
		UseTLS: cfg.Qdrant.UseTLS,
	})
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize Qdrant repository")
	}
	defer qdrantRepo.Close()

	// Connect registered source databases
	ctx := context.Background()
	sources := source.NewRegistry()
	if err := connectSources(ctx, cfg, connectionRepo, sources, appLogger); err != nil {
		appLogger.WithError(err).Fatal("Failed to connect source databases")
	}
	defer closeSources(sources)

	// Initialize services
	embeddingClient := service.NewJinaClient(&service.JinaConfig{
		Model:      cfg.Embedding.Model,
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Dimensions: cfg.Embedding.Dimensions,
	})
	embeddingService := service.NewEmbeddingService(
		embeddingClient,
		service.NewEmbeddingCache(cfg.Cache.MaxSize),
		service.NewUsageTracker(0),
		cfg.Embedding.Model,
		cfg.Embedding.Dimensions,
	)

	stateManager := service.NewStateManager(stateRepo, sources)
	shardResolver := service.NewShardResolver(shardRepo, qdrantRepo, cfg.Qdrant.ShardPrefix, cfg.Embedding.Dimensions)
	syncService := service.NewSyncService(sources, qdrantRepo, embeddingService, stateManager, shardResolver, shardRepo, &cfg.Sync)

	// Setup router
	router := api.SetupRouter(syncService, connectionRepo, sources, &cfg.Server, appLogger)

	// Create HTTP server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		appLogger.WithFields(logger.Fields{
			"port": cfg.Server.Port,
			"mode": cfg.Server.Mode,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Fatal("Server forced to shutdown")
	}

	appLogger.Info("Server exited")
}

// connectSources dials every persisted source database and registers the live
// adapters. A configured primary source is seeded into the metadata store on
// first boot. Individual connection failures are logged and skipped so one
// unreachable source does not block startup.
func connectSources(ctx context.Context, cfg *config.Config, connections *repository.ConnectionRepository, sources *source.Registry, log *logger.Logger) error {
	if cfg.Sources.PrimaryURI != "" && cfg.Sources.PrimaryName != "" {
		_, err := connections.Get(ctx, cfg.Sources.PrimaryKey)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			seed := &domain.DatabaseConnection{
				Key:         cfg.Sources.PrimaryKey,
				URI:         cfg.Sources.PrimaryURI,
				Database:    cfg.Sources.PrimaryName,
				Description: "primary source (seeded from config)",
			}
			if err := connections.Create(ctx, seed); err != nil {
				return fmt.Errorf("failed to seed primary source: %w", err)
			}
			log.WithField("key", cfg.Sources.PrimaryKey).Info("Seeded primary source database")
		} else if err != nil {
			return err
		}
	}

	conns, err := connections.List(ctx)
	if err != nil {
		return err
	}

	for _, conn := range conns {
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		adapter, err := mongodb.NewAdapter(connectCtx, conn.URI, conn.Database)
		cancel()
		if err != nil {
			log.WithError(err).WithField("key", conn.Key).Warn("Failed to connect source database, skipping")
			continue
		}
		sources.Register(conn.Key, adapter)
		log.WithFields(logger.Fields{
			"key":      conn.Key,
			"database": conn.Database,
		}).Info("Connected source database")
	}
	return nil
}

func closeSources(sources *source.Registry) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, key := range sources.Keys() {
		if src, ok := sources.Get(key); ok {
			_ = src.Close(ctx)
		}
	}
}
