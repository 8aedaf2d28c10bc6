// Command seed creates the database schema and populates a small demo
// tree: a few folders, documents with content, and role assignments. It
// drains the task queue before exiting so the search index is complete.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"contentvault/internal/config"
	"contentvault/internal/domain/models"
	"contentvault/internal/domain/services"
	"contentvault/internal/repository/postgres"
	"contentvault/internal/service"
	"contentvault/internal/service/pipeline"
	"contentvault/internal/service/pipeline/converter"
	"contentvault/internal/tasks"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	ctx := context.Background()
	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to create connection pool: %v", err)
	}
	defer pool.Close()

	tables := postgres.NewTableNames(cfg.TablePrefix)
	if err := postgres.CreateSchema(ctx, pool, tables); err != nil {
		log.Fatalf("Failed to create schema: %v", err)
	}
	logger.Info("schema ready", "table_prefix", cfg.TablePrefix)

	repoConfig := &postgres.RepositoryConfig{Pool: pool, Tables: tables, Logger: logger}
	folderRepo := postgres.NewFolderRepository(repoConfig)
	docRepo := postgres.NewDocumentRepository(repoConfig)
	roleRepo := postgres.NewRoleRepository(repoConfig)
	contentRepo := postgres.NewContentRepository(repoConfig)
	indexer := postgres.NewIndexer(repoConfig)
	txManager := postgres.NewTransactionManager(pool, logger)

	queue := tasks.New(2, 128, logger)
	conv := converter.NewService(logger)
	pipe := pipeline.New(docRepo, contentRepo, conv, nil, queue, cfg.Pipeline, logger)
	pipe.Register(queue)

	reindex := service.NewReindexScheduler(folderRepo, queue, logger)
	security := service.NewSecurity(folderRepo, docRepo, roleRepo, txManager, reindex, logger)
	indexWorker := service.NewIndexWorker(folderRepo, docRepo, security, indexer, logger)
	indexWorker.Register(queue)

	repo := service.NewRepository(folderRepo, docRepo, roleRepo, contentRepo, txManager, reindex, pipe, logger)

	queue.Start(ctx)

	root, err := folderRepo.EnsureRoot(ctx)
	if err != nil {
		log.Fatalf("Failed to ensure root folder: %v", err)
	}

	docs, err := repo.CreateFolder(ctx, &services.CreateFolderRequest{
		ParentID:    root.ID,
		Title:       "docs",
		Description: "Shared documentation",
	})
	if err != nil {
		log.Fatalf("Failed to create docs folder: %v", err)
	}

	guides, err := repo.CreateFolder(ctx, &services.CreateFolderRequest{
		ParentID:    docs.ID,
		Title:       "guides",
		Description: "How-to guides",
	})
	if err != nil {
		log.Fatalf("Failed to create guides folder: %v", err)
	}

	readme, err := repo.CreateDocument(ctx, &services.CreateDocumentRequest{
		FolderID:    docs.ID,
		Title:       "welcome.txt",
		Description: "Start here",
		ContentType: "text/plain",
		Content:     []byte("Welcome to the content repository.\n\nUpload documents, organize them in folders, and search their text.\n"),
	})
	if err != nil {
		log.Fatalf("Failed to create welcome document: %v", err)
	}

	if _, err := repo.CreateDocument(ctx, &services.CreateDocumentRequest{
		FolderID:    guides.ID,
		Title:       "locking.md",
		Description: "Checkout locks",
		ContentType: "text/markdown",
		Content:     []byte("# Checkout locks\n\nLock a document before editing. Locks expire on their own, so a crashed client never wedges a document.\n"),
	}); err != nil {
		log.Fatalf("Failed to create guide document: %v", err)
	}

	// Demo principals: the staff group can see docs, alice alone sees guides
	if err := roleRepo.AddGroupMember(ctx, "staff", "alice"); err != nil {
		log.Fatalf("Failed to add group member: %v", err)
	}
	if err := roleRepo.AddGroupMember(ctx, "staff", "bob"); err != nil {
		log.Fatalf("Failed to add group member: %v", err)
	}
	if err := security.Grant(ctx, docs.ID, "staff", models.PrincipalGroup, models.RoleReader); err != nil {
		log.Fatalf("Failed to grant role: %v", err)
	}
	if err := security.Grant(ctx, guides.ID, "alice", models.PrincipalUser, models.RoleWriter); err != nil {
		log.Fatalf("Failed to grant role: %v", err)
	}

	// Let the pipeline and index tasks finish before exiting
	queue.Close()

	logger.Info("seed complete",
		"root_id", root.ID,
		"docs_id", docs.ID,
		"welcome_id", readme.ID,
	)
}
