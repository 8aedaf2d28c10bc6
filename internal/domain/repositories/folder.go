package repositories

import (
	"context"

	"contentvault/internal/domain/models"
)

// FolderRepository defines data access operations for folders
type FolderRepository interface {
	// Create inserts a new folder. The caller assigns the id.
	Create(ctx context.Context, folder *models.Folder) error

	// GetByID retrieves a folder by ID
	GetByID(ctx context.Context, id string) (*models.Folder, error)

	// GetRoot retrieves the root folder (the single row with no parent)
	GetRoot(ctx context.Context) (*models.Folder, error)

	// EnsureRoot creates the root folder if it does not exist yet
	EnsureRoot(ctx context.Context) (*models.Folder, error)

	// GetByTitleAndParent finds a child folder by title. Returns (nil, nil)
	// when absent - used by segment-wise path resolution.
	GetByTitleAndParent(ctx context.Context, title string, parentID *string) (*models.Folder, error)

	// Update persists title, parent, description and inherit_security
	Update(ctx context.Context, folder *models.Folder) error

	// Delete removes a folder; children cascade at the database level
	Delete(ctx context.Context, id string) error

	// ListChildren lists immediate child folders ordered by title
	ListChildren(ctx context.Context, parentID string) ([]models.Folder, error)

	// GetPath computes the display path for a folder using a recursive CTE.
	// The root's path is the empty string.
	GetPath(ctx context.Context, folderID string) (string, error)

	// SubtreeIDs returns every node id under the folder (inclusive),
	// folders and documents, via a single recursive query.
	SubtreeIDs(ctx context.Context, folderID string) ([]string, error)

	// DocumentCount counts documents in the folder's subtree
	DocumentCount(ctx context.Context, folderID string) (int, error)
}
