package services

import (
	"context"

	"contentvault/internal/domain/models"
)

// CreateFolderRequest carries input for folder creation
type CreateFolderRequest struct {
	ParentID    string
	Title       string
	Description string
}

// CreateDocumentRequest carries input for document creation
type CreateDocumentRequest struct {
	FolderID    string
	Title       string
	Description string
	ContentType string
	Content     []byte // optional; empty documents are allowed
}

// Repository is the facade all callers use: navigation, mutation with
// invariant enforcement, and the content upload/download surface.
//
// Every mutating operation runs inside a single transaction. Duplicate
// sibling titles are intentionally not pre-validated on copy/move; they
// surface at commit as ErrConflict.
type Repository interface {
	// Navigation
	GetFolder(ctx context.Context, id string) (*models.Folder, error)
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	// GetByPath resolves a path by descending child-by-title from the
	// root. "" or "/" resolves to the root folder.
	GetByPath(ctx context.Context, path string) (*models.Node, error)

	// Mutation
	CreateFolder(ctx context.Context, req *CreateFolderRequest) (*models.Folder, error)
	CreateDocument(ctx context.Context, req *CreateDocumentRequest) (*models.Document, error)
	// Copy clones a node (recursively for folders) into destFolderID with
	// a fresh identity. newTitle defaults to the source title.
	Copy(ctx context.Context, nodeID, destFolderID, newTitle string) (*models.Node, error)
	// Move reparents a node. Moving a folder into itself or a descendant
	// fails with ErrStructural.
	Move(ctx context.Context, nodeID, destFolderID, newTitle string) error
	Rename(ctx context.Context, nodeID, title string) error
	// Delete removes a node and cascades to descendants. Deleting the
	// root fails with ErrStructural.
	Delete(ctx context.Context, nodeID string) error

	// Content
	// SetContent stores new content for a document, clears any checkout
	// lock (implicit checkin) and dispatches the processing pipeline
	// after commit.
	SetContent(ctx context.Context, docID string, data []byte, contentType string) (*models.Document, error)
	// OpenContent retrieves a content blob by digest.
	OpenContent(ctx context.Context, digest string) ([]byte, string, error)
}
