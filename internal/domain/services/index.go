package services

import (
	"context"

	"contentvault/internal/domain/models"
)

// Indexer is the full-text index collaborator. Queries apply the
// caller-supplied security predicate (SearchOptions.Principals) against
// each entry's baked-in principal tokens.
type Indexer interface {
	AddOrUpdate(ctx context.Context, entry *models.IndexEntry) error
	Remove(ctx context.Context, nodeID string) error
	Search(ctx context.Context, opts *models.SearchOptions) ([]models.SearchResult, error)
}

// ReindexScheduler walks a subtree and queues every node for the index
// after security-relevant changes.
type ReindexScheduler interface {
	// ReindexSubtree enumerates the subtree (inclusive) with one
	// recursive query and enqueues an index update per node.
	ReindexSubtree(ctx context.Context, folderID string) error

	// ReindexNode enqueues an index update for a single node
	ReindexNode(ctx context.Context, nodeID string)

	// RemoveNodes enqueues index removals for deleted nodes
	RemoveNodes(ctx context.Context, nodeIDs []string)
}
