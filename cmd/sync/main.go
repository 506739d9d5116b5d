package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/synapse-db/synapse/internal/config"
	"github.com/synapse-db/synapse/internal/logger"
	"github.com/synapse-db/synapse/internal/repository"
	"github.com/synapse-db/synapse/internal/service"
	"github.com/synapse-db/synapse/internal/source"
	"github.com/synapse-db/synapse/internal/source/mongodb"
)

func main() {
	// Initialize logger first (with defaults)
	appLogger := logger.New(&logger.Config{
		Level:       "info",
		Format:      "text",
		ServiceName: "synapse-sync",
	})
	logger.SetDefault(appLogger)
	defer logger.Sync()

	// Parse command line flags
	dbKey := flag.String("db", "", "Source database key to sync (required)")
	collection := flag.String("collection", "", "Collection to sync; empty syncs all non-system collections")
	fields := flag.String("fields", "", "Comma-separated text fields; empty auto-detects")
	force := flag.Bool("force", false, "Force a full resync, ignoring change detection")
	check := flag.Bool("check", false, "Only report what would be synced")
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	if *dbKey == "" {
		appLogger.Fatal("Flag -db is required")
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	appLogger.WithFields(logger.Fields{
		"db_key":     *dbKey,
		"collection": *collection,
		"force":      *force,
	}).Info("Starting sync")

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

	// Handle graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		appLogger.Info("Received shutdown signal, canceling...")
		cancel()
	}()

	// Connect the requested source database
	conn, err := connectionRepo.Get(ctx, *dbKey)
	if err != nil {
		appLogger.WithError(err).Fatal("Source database not registered")
	}
	connectCtx, connectCancel := context.WithTimeout(ctx, 10*time.Second)
	adapter, err := mongodb.NewAdapter(connectCtx, conn.URI, conn.Database)
	connectCancel()
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to connect source database")
	}
	defer adapter.Close(context.Background())

	sources := source.NewRegistry()
	sources.Register(*dbKey, adapter)

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

	if *check {
		runCheck(ctx, syncService, appLogger, *dbKey, *collection)
		return
	}

	if *collection != "" {
		req := &service.SyncRequest{
			DBKey:      *dbKey,
			Collection: *collection,
			Force:      *force,
		}
		if *fields != "" {
			req.TextFields = strings.Split(*fields, ",")
		}
		result, err := syncService.Sync(ctx, req)
		if err != nil {
			if errors.Is(err, service.ErrCollectionEmpty) {
				appLogger.Info("Collection is empty, nothing to sync")
				return
			}
			appLogger.WithError(err).Fatal("Sync failed")
		}
		appLogger.WithFields(logger.Fields{
			"documents": result.DocumentsProcessed,
			"chunks":    result.ChunksWritten,
			"skipped":   result.Skipped,
			"reason":    result.Reason,
		}).Info("Sync finished")
		return
	}

	result, err := syncService.SyncAll(ctx, *dbKey, *force)
	if err != nil {
		appLogger.WithError(err).Fatal("Sync failed")
	}
	appLogger.WithFields(logger.Fields{
		"synced":  result.Synced,
		"skipped": result.Skipped,
		"failed":  result.Failed,
	}).Info("Sync finished")
	if result.Failed > 0 {
		os.Exit(1)
	}
}

func runCheck(ctx context.Context, syncService *service.SyncService, log *logger.Logger, dbKey, collection string) {
	statuses, err := syncService.CheckStatus(ctx, dbKey, collection)
	if err != nil {
		log.WithError(err).Fatal("Check failed")
	}
	for _, status := range statuses {
		log.WithFields(logger.Fields{
			"collection": status.Collection,
			"needs_sync": status.Decision.Required,
			"reason":     status.Decision.Reason,
			"action":     status.Decision.Action,
		}).Info("Collection status")
	}
}
