package main

import (
	"context"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"contentvault/internal/config"
	"contentvault/internal/domain/services"
	"contentvault/internal/repository/postgres"
	"contentvault/internal/service"
	"contentvault/internal/service/pipeline"
	"contentvault/internal/service/pipeline/converter"
	"contentvault/internal/tasks"

	"github.com/joho/godotenv"
)

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	// Load configuration
	cfg := config.Load()

	// Setup structured logging
	logLevel := slog.LevelInfo
	if cfg.Debug {
		logLevel = slog.LevelDebug
	}

	var logOut io.Writer = os.Stdout
	if cfg.LogDir != "" {
		logFile, err := config.SetupLogFile(cfg.LogDir, 10)
		if err != nil {
			log.Fatalf("Failed to set up log file: %v", err)
		}
		defer logFile.Close()
		logOut = io.MultiWriter(os.Stdout, logFile)
	}

	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("repository starting",
		"environment", cfg.Environment,
		"table_prefix", cfg.TablePrefix,
		"lock_lifetime", cfg.LockLifetime,
	)

	// Create pgx connection pool
	ctx := context.Background()
	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to create connection pool: %v", err)
	}
	defer pool.Close()

	logger.Info("database connected")

	// Create repositories
	tables := postgres.NewTableNames(cfg.TablePrefix)
	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: tables,
		Logger: logger,
	}
	folderRepo := postgres.NewFolderRepository(repoConfig)
	docRepo := postgres.NewDocumentRepository(repoConfig)
	roleRepo := postgres.NewRoleRepository(repoConfig)
	contentRepo := postgres.NewContentRepository(repoConfig)
	indexer := postgres.NewIndexer(repoConfig)
	txManager := postgres.NewTransactionManager(pool, logger)

	// Background task queue
	queue := tasks.New(cfg.Pipeline.Workers, cfg.Pipeline.QueueSize, logger)

	// Antivirus is optional: ping the daemon once, run without it if absent
	var scanner services.Scanner
	if cfg.Pipeline.ClamdAddress != "" {
		clam := pipeline.NewClamScanner(cfg.Pipeline.ClamdAddress, logger)
		if err := clam.Ping(); err != nil {
			logger.Warn("clamd unreachable, antivirus scanning disabled",
				"address", cfg.Pipeline.ClamdAddress, "error", err)
		} else {
			scanner = clam
			logger.Info("antivirus connected", "address", cfg.Pipeline.ClamdAddress)
		}
	}

	// Content pipeline
	conv := converter.NewService(logger)
	pipe := pipeline.New(docRepo, contentRepo, conv, scanner, queue, cfg.Pipeline, logger)
	pipe.Register(queue)

	// Services
	reindex := service.NewReindexScheduler(folderRepo, queue, logger)
	security := service.NewSecurity(folderRepo, docRepo, roleRepo, txManager, reindex, logger)
	indexWorker := service.NewIndexWorker(folderRepo, docRepo, security, indexer, logger)
	indexWorker.Register(queue)

	// Make sure the tree has a root before any work arrives
	if _, err := folderRepo.EnsureRoot(ctx); err != nil {
		log.Fatalf("Failed to ensure root folder: %v", err)
	}

	queue.Start(ctx)
	logger.Info("task queue started", "workers", cfg.Pipeline.Workers)

	// Periodic antivirus sweep over documents without a verdict. Only
	// runs when a scanner is connected; without one no verdict can be
	// recorded and the sweep would redo the same documents every tick.
	if scanner != nil {
		sweep := time.NewTicker(cfg.Pipeline.ScanInterval)
		defer sweep.Stop()
		go func() {
			for range sweep.C {
				if _, err := pipe.ScanAllUnscanned(ctx); err != nil {
					logger.Error("antivirus sweep failed", "error", err)
				}
			}
		}()
	}

	// Block until shutdown signal
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down, draining task queue")
	queue.Close()
	logger.Info("shutdown complete")
}
