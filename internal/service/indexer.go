package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"contentvault/internal/domain"
	"contentvault/internal/domain/models"
	"contentvault/internal/domain/repositories"
	"contentvault/internal/domain/services"
	"contentvault/internal/tasks"
)

// Index maintenance task names
const (
	TaskIndexUpdate = "index.update"
	TaskIndexRemove = "index.remove"
)

type reindexScheduler struct {
	folderRepo repositories.FolderRepository
	queue      services.TaskQueue
	logger     *slog.Logger
}

// NewReindexScheduler creates the scheduler that fans security and tree
// changes out into per-node index update tasks.
func NewReindexScheduler(folderRepo repositories.FolderRepository, queue services.TaskQueue, logger *slog.Logger) services.ReindexScheduler {
	return &reindexScheduler{
		folderRepo: folderRepo,
		queue:      queue,
		logger:     logger,
	}
}

// ReindexSubtree enumerates the subtree with one recursive query and
// enqueues an index update per node. One slow-changing tree walk, many
// small idempotent tasks.
func (s *reindexScheduler) ReindexSubtree(ctx context.Context, folderID string) error {
	ids, err := s.folderRepo.SubtreeIDs(ctx, folderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}

	for _, id := range ids {
		if _, err := s.queue.Enqueue(ctx, TaskIndexUpdate, map[string]string{"node_id": id}); err != nil {
			s.logger.Warn("failed to enqueue index update", "node_id", id, "error", err)
		}
	}

	s.logger.Info("subtree reindex scheduled", "folder_id", folderID, "nodes", len(ids))
	return nil
}

// ReindexNode enqueues an index update for a single node
func (s *reindexScheduler) ReindexNode(ctx context.Context, nodeID string) {
	if _, err := s.queue.Enqueue(ctx, TaskIndexUpdate, map[string]string{"node_id": nodeID}); err != nil {
		s.logger.Warn("failed to enqueue index update", "node_id", nodeID, "error", err)
	}
}

// RemoveNodes enqueues index removals for deleted nodes
func (s *reindexScheduler) RemoveNodes(ctx context.Context, nodeIDs []string) {
	for _, id := range nodeIDs {
		if _, err := s.queue.Enqueue(ctx, TaskIndexRemove, map[string]string{"node_id": id}); err != nil {
			s.logger.Warn("failed to enqueue index removal", "node_id", id, "error", err)
		}
	}
}

// IndexWorker executes the index maintenance tasks: it recomputes a node's
// index document (title, text, path, effective principals) and writes it
// to the index, or removes it.
type IndexWorker struct {
	folderRepo repositories.FolderRepository
	docRepo    repositories.DocumentRepository
	security   services.Security
	indexer    services.Indexer
	logger     *slog.Logger
}

func NewIndexWorker(
	folderRepo repositories.FolderRepository,
	docRepo repositories.DocumentRepository,
	security services.Security,
	indexer services.Indexer,
	logger *slog.Logger,
) *IndexWorker {
	return &IndexWorker{
		folderRepo: folderRepo,
		docRepo:    docRepo,
		security:   security,
		indexer:    indexer,
		logger:     logger,
	}
}

// Register wires the handlers onto the task queue
func (w *IndexWorker) Register(q *tasks.Queue) {
	q.Register(TaskIndexUpdate, w.handleUpdate)
	q.Register(TaskIndexRemove, w.handleRemove)
}

// handleUpdate rebuilds one node's index entry. A node deleted since the
// task was enqueued is dropped from the index instead.
func (w *IndexWorker) handleUpdate(ctx context.Context, args map[string]string) error {
	nodeID := args["node_id"]

	entry, err := w.buildEntry(ctx, nodeID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return w.indexer.Remove(ctx, nodeID)
		}
		return err
	}

	principals, err := w.security.EffectivePrincipals(ctx, nodeID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return w.indexer.Remove(ctx, nodeID)
		}
		return err
	}
	entry.Principals = principals.Sorted()

	if err := w.indexer.AddOrUpdate(ctx, entry); err != nil {
		return err
	}

	w.logger.Debug("index entry updated", "node_id", nodeID, "kind", entry.Kind)
	return nil
}

func (w *IndexWorker) handleRemove(ctx context.Context, args map[string]string) error {
	return w.indexer.Remove(ctx, args["node_id"])
}

// buildEntry assembles the index document for a folder or document
func (w *IndexWorker) buildEntry(ctx context.Context, nodeID string) (*models.IndexEntry, error) {
	folder, err := w.folderRepo.GetByID(ctx, nodeID)
	if err == nil {
		path, pathErr := w.folderRepo.GetPath(ctx, folder.ID)
		if pathErr != nil {
			return nil, pathErr
		}
		return &models.IndexEntry{
			NodeID:    folder.ID,
			Kind:      models.NodeKindFolder,
			Title:     folder.Title,
			Text:      folder.Description,
			Path:      path,
			UpdatedAt: time.Now(),
		}, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	doc, err := w.docRepo.GetByID(ctx, nodeID)
	if err != nil {
		return nil, err
	}

	folderPath, err := w.folderRepo.GetPath(ctx, doc.FolderID)
	if err != nil {
		return nil, err
	}

	text := doc.Description
	// Quarantined content never reaches the index body
	if doc.TextContent != nil && doc.Safe() {
		text = *doc.TextContent
	}

	return &models.IndexEntry{
		NodeID:    doc.ID,
		Kind:      models.NodeKindDocument,
		Title:     doc.Title,
		Text:      text,
		Language:  doc.Language,
		Path:      folderPath + "/" + doc.Title,
		UpdatedAt: time.Now(),
	}, nil
}
