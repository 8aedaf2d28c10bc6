package repositories

import (
	"context"

	"contentvault/internal/domain/models"
)

// DocumentRepository defines data access operations for documents.
//
// Derived pipeline fields each have their own update method: pipeline
// stages run concurrently and must never overwrite each other's output
// with a whole-row write.
type DocumentRepository interface {
	// Create inserts a new document. The caller assigns the id.
	Create(ctx context.Context, doc *models.Document) error

	// GetByID retrieves a document by ID
	GetByID(ctx context.Context, id string) (*models.Document, error)

	// GetByTitleAndFolder finds a document by title within a folder.
	// Returns (nil, nil) when absent.
	GetByTitleAndFolder(ctx context.Context, title, folderID string) (*models.Document, error)

	// Update persists title, folder and description
	Update(ctx context.Context, doc *models.Document) error

	// Delete removes a document
	Delete(ctx context.Context, id string) error

	// ListByFolder lists documents directly inside a folder ordered by title
	ListByFolder(ctx context.Context, folderID string) ([]models.Document, error)

	// SetContent points the document at a new content blob, clears the
	// checkout lock (implicit checkin) and resets all derived fields and
	// the antivirus verdict.
	SetContent(ctx context.Context, id, digest, contentType string, length int64) error

	// Per-field updates for pipeline stage results
	UpdatePDF(ctx context.Context, id string, pdf []byte) error
	UpdateText(ctx context.Context, id, text string) error
	UpdatePreview(ctx context.Context, id string, preview []byte) error
	UpdateMetadata(ctx context.Context, id string, metadata map[string]interface{}) error
	UpdateLanguage(ctx context.Context, id, language string) error
	UpdateScanStatus(ctx context.Context, id string, status models.ScanStatus) error

	// SetLock installs or clears (nil) the advisory lock columns
	SetLock(ctx context.Context, id string, lock *models.Lock) error

	// ListUnscannedIDs enumerates documents lacking an antivirus verdict,
	// for the administrative sweep.
	ListUnscannedIDs(ctx context.Context) ([]string, error)
}
