package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"contentvault/internal/config"
	"contentvault/internal/domain"
	"contentvault/internal/domain/models"
	"contentvault/internal/domain/repositories"
	"contentvault/internal/domain/services"
)

// titlePattern rejects path separators and control characters in titles;
// titles double as path segments.
var titlePattern = regexp.MustCompile(`^[^/\x00-\x1f]+$`)

type repositoryService struct {
	folderRepo  repositories.FolderRepository
	docRepo     repositories.DocumentRepository
	roleRepo    repositories.RoleRepository
	contentRepo repositories.ContentRepository
	txManager   repositories.TransactionManager
	reindex     services.ReindexScheduler
	pipeline    services.Pipeline
	logger      *slog.Logger
}

// NewRepository creates the content repository facade
func NewRepository(
	folderRepo repositories.FolderRepository,
	docRepo repositories.DocumentRepository,
	roleRepo repositories.RoleRepository,
	contentRepo repositories.ContentRepository,
	txManager repositories.TransactionManager,
	reindex services.ReindexScheduler,
	pipeline services.Pipeline,
	logger *slog.Logger,
) services.Repository {
	return &repositoryService{
		folderRepo:  folderRepo,
		docRepo:     docRepo,
		roleRepo:    roleRepo,
		contentRepo: contentRepo,
		txManager:   txManager,
		reindex:     reindex,
		pipeline:    pipeline,
		logger:      logger,
	}
}

// GetFolder retrieves a folder with its computed display path
func (s *repositoryService) GetFolder(ctx context.Context, id string) (*models.Folder, error) {
	folder, err := s.folderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	path, err := s.folderRepo.GetPath(ctx, folder.ID)
	if err != nil {
		return nil, err
	}
	folder.Path = path

	return folder, nil
}

// GetDocument retrieves a document with its computed display path
func (s *repositoryService) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	doc, err := s.docRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	folderPath, err := s.folderRepo.GetPath(ctx, doc.FolderID)
	if err != nil {
		return nil, err
	}
	doc.Path = folderPath + "/" + doc.Title

	return doc, nil
}

// GetByPath resolves a display path by descending child-by-title from the
// root. Every intermediate segment must be a folder; the final segment may
// be a folder or a document (folders win a title tie).
func (s *repositoryService) GetByPath(ctx context.Context, path string) (*models.Node, error) {
	if len(path) > config.MaxPathLength {
		return nil, fmt.Errorf("%w: path too long", domain.ErrValidation)
	}

	cur, err := s.folderRepo.GetRoot(ctx)
	if err != nil {
		return nil, err
	}

	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		cur.Path = ""
		return models.FolderNode(cur), nil
	}

	segments := strings.Split(trimmed, "/")
	for i, seg := range segments {
		folder, err := s.folderRepo.GetByTitleAndParent(ctx, seg, &cur.ID)
		if err != nil {
			return nil, err
		}
		if folder != nil {
			cur = folder
			continue
		}

		if i == len(segments)-1 {
			doc, err := s.docRepo.GetByTitleAndFolder(ctx, seg, cur.ID)
			if err != nil {
				return nil, err
			}
			if doc != nil {
				doc.Path = "/" + trimmed
				return models.DocumentNode(doc), nil
			}
		}

		return nil, fmt.Errorf("%w: path %q", domain.ErrNotFound, path)
	}

	cur.Path = "/" + trimmed
	return models.FolderNode(cur), nil
}

// CreateFolder creates a folder under an existing parent
func (s *repositoryService) CreateFolder(ctx context.Context, req *services.CreateFolderRequest) (*models.Folder, error) {
	if err := validateTitle(req.Title); err != nil {
		return nil, err
	}
	if err := validateDescription(req.Description); err != nil {
		return nil, err
	}

	now := time.Now()
	folder := &models.Folder{
		ID:              uuid.NewString(),
		ParentID:        &req.ParentID,
		Title:           req.Title,
		Description:     req.Description,
		InheritSecurity: true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err := s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		if _, err := s.folderRepo.GetByID(txCtx, req.ParentID); err != nil {
			return err
		}
		if err := s.ensureTitleFree(txCtx, req.ParentID, folder.Title, models.NodeKindFolder); err != nil {
			return err
		}
		if err := s.folderRepo.Create(txCtx, folder); err != nil {
			return err
		}

		repositories.AfterCommit(txCtx, func(hookCtx context.Context) {
			s.reindex.ReindexNode(hookCtx, folder.ID)
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	path, err := s.folderRepo.GetPath(ctx, folder.ID)
	if err == nil {
		folder.Path = path
	}

	s.logger.Info("folder created", "folder_id", folder.ID, "title", folder.Title)
	return folder, nil
}

// CreateDocument creates a document, optionally with initial content. With
// content, the blob is stored in the same transaction and the processing
// pipeline is dispatched after commit.
func (s *repositoryService) CreateDocument(ctx context.Context, req *services.CreateDocumentRequest) (*models.Document, error) {
	if err := validateTitle(req.Title); err != nil {
		return nil, err
	}
	if err := validateDescription(req.Description); err != nil {
		return nil, err
	}

	now := time.Now()
	doc := &models.Document{
		ID:          uuid.NewString(),
		FolderID:    req.FolderID,
		Title:       req.Title,
		Description: req.Description,
		ContentType: req.ContentType,
		ScanStatus:  models.ScanStatusUnknown,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	hasContent := len(req.Content) > 0
	if hasContent {
		digest := contentDigest(req.Content)
		doc.ContentDigest = &digest
		doc.ContentLength = int64(len(req.Content))
	}

	err := s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		if _, err := s.folderRepo.GetByID(txCtx, req.FolderID); err != nil {
			return err
		}
		if err := s.ensureTitleFree(txCtx, req.FolderID, doc.Title, models.NodeKindDocument); err != nil {
			return err
		}
		if hasContent {
			if err := s.contentRepo.Put(txCtx, *doc.ContentDigest, req.Content, req.ContentType); err != nil {
				return err
			}
		}
		if err := s.docRepo.Create(txCtx, doc); err != nil {
			return err
		}

		repositories.AfterCommit(txCtx, func(hookCtx context.Context) {
			if hasContent {
				s.pipeline.Dispatch(hookCtx, doc.ID)
			}
			s.reindex.ReindexNode(hookCtx, doc.ID)
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("document created", "document_id", doc.ID, "title", doc.Title, "bytes", doc.ContentLength)
	return doc, nil
}

// Copy clones a node into destFolderID with a fresh identity. Folder
// copies recurse; content blobs are shared by digest, never duplicated.
// Local role assignments do not travel with the copy - the clone inherits
// from its new location.
func (s *repositoryService) Copy(ctx context.Context, nodeID, destFolderID, newTitle string) (*models.Node, error) {
	if newTitle != "" {
		if err := validateTitle(newTitle); err != nil {
			return nil, err
		}
	}

	var clone *models.Node
	err := s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		dest, err := s.folderRepo.GetByID(txCtx, destFolderID)
		if err != nil {
			return err
		}

		node, err := s.resolveNode(txCtx, nodeID)
		if err != nil {
			return err
		}

		title := newTitle
		if title == "" {
			title = node.Title()
		}
		if err := s.ensureTitleFree(txCtx, destFolderID, title, node.Kind); err != nil {
			return err
		}

		switch node.Kind {
		case models.NodeKindDocument:
			copied, err := s.copyDocument(txCtx, node.Document, destFolderID, title)
			if err != nil {
				return err
			}
			clone = models.DocumentNode(copied)

		case models.NodeKindFolder:
			if node.Folder.IsRoot() {
				return &domain.StructuralError{Op: "copy", Message: "cannot copy the root folder"}
			}
			// Copying into the own subtree would clone the clones forever
			if err := s.checkNoCycle(txCtx, "copy", node.Folder.ID, dest); err != nil {
				return err
			}
			copied, err := s.copyFolderTree(txCtx, node.Folder, destFolderID, title)
			if err != nil {
				return err
			}
			clone = models.FolderNode(copied)
		}

		repositories.AfterCommit(txCtx, func(hookCtx context.Context) {
			if clone.Kind == models.NodeKindFolder {
				if err := s.reindex.ReindexSubtree(hookCtx, clone.ID()); err != nil {
					s.logger.Error("subtree reindex failed", "folder_id", clone.ID(), "error", err)
				}
				return
			}
			s.reindex.ReindexNode(hookCtx, clone.ID())
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("node copied", "source_id", nodeID, "copy_id", clone.ID(), "dest_folder_id", destFolderID)
	return clone, nil
}

// copyDocument clones one document row. Derived artifacts and the scan
// verdict travel with the copy since they describe the same bytes; the
// checkout lock does not.
func (s *repositoryService) copyDocument(ctx context.Context, src *models.Document, destFolderID, title string) (*models.Document, error) {
	now := time.Now()
	copied := &models.Document{
		ID:            uuid.NewString(),
		FolderID:      destFolderID,
		Title:         title,
		Description:   src.Description,
		ContentDigest: src.ContentDigest,
		ContentType:   src.ContentType,
		ContentLength: src.ContentLength,
		PDF:           src.PDF,
		TextContent:   src.TextContent,
		Preview:       src.Preview,
		ExtraMetadata: src.ExtraMetadata,
		Language:      src.Language,
		Scanned:       src.Scanned,
		ScanStatus:    src.ScanStatus,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if copied.ScanStatus == "" {
		copied.ScanStatus = models.ScanStatusUnknown
	}

	if err := s.docRepo.Create(ctx, copied); err != nil {
		return nil, err
	}
	return copied, nil
}

// copyFolderTree recursively clones a folder and its children
func (s *repositoryService) copyFolderTree(ctx context.Context, src *models.Folder, destFolderID, title string) (*models.Folder, error) {
	now := time.Now()
	copied := &models.Folder{
		ID:              uuid.NewString(),
		ParentID:        &destFolderID,
		Title:           title,
		Description:     src.Description,
		InheritSecurity: src.InheritSecurity,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.folderRepo.Create(ctx, copied); err != nil {
		return nil, err
	}

	docs, err := s.docRepo.ListByFolder(ctx, src.ID)
	if err != nil {
		return nil, err
	}
	for i := range docs {
		if _, err := s.copyDocument(ctx, &docs[i], copied.ID, docs[i].Title); err != nil {
			return nil, err
		}
	}

	children, err := s.folderRepo.ListChildren(ctx, src.ID)
	if err != nil {
		return nil, err
	}
	for i := range children {
		if _, err := s.copyFolderTree(ctx, &children[i], copied.ID, children[i].Title); err != nil {
			return nil, err
		}
	}

	return copied, nil
}

// Move reparents a node, optionally renaming it in the same step. Moving a
// folder into itself or its own subtree fails with ErrStructural before
// anything is written.
func (s *repositoryService) Move(ctx context.Context, nodeID, destFolderID, newTitle string) error {
	if newTitle != "" {
		if err := validateTitle(newTitle); err != nil {
			return err
		}
	}

	err := s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		dest, err := s.folderRepo.GetByID(txCtx, destFolderID)
		if err != nil {
			return err
		}

		node, err := s.resolveNode(txCtx, nodeID)
		if err != nil {
			return err
		}

		switch node.Kind {
		case models.NodeKindDocument:
			doc := node.Document
			if err := s.ensureTitleFree(txCtx, destFolderID, finalTitle(doc.Title, newTitle), models.NodeKindDocument); err != nil {
				return err
			}
			doc.FolderID = destFolderID
			if newTitle != "" {
				doc.Title = newTitle
			}
			doc.UpdatedAt = time.Now()
			if err := s.docRepo.Update(txCtx, doc); err != nil {
				return err
			}

		case models.NodeKindFolder:
			folder := node.Folder
			if folder.IsRoot() {
				return &domain.StructuralError{Op: "move", Message: "cannot move the root folder"}
			}
			if err := s.checkNoCycle(txCtx, "move", folder.ID, dest); err != nil {
				return err
			}
			if err := s.ensureTitleFree(txCtx, dest.ID, finalTitle(folder.Title, newTitle), models.NodeKindFolder); err != nil {
				return err
			}
			folder.ParentID = &destFolderID
			if newTitle != "" {
				folder.Title = newTitle
			}
			folder.UpdatedAt = time.Now()
			if err := s.folderRepo.Update(txCtx, folder); err != nil {
				return err
			}
		}

		s.scheduleNodeReindex(txCtx, node)
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("node moved", "node_id", nodeID, "dest_folder_id", destFolderID)
	return nil
}

// checkNoCycle walks from the destination up to the root and fails when
// the subject folder appears on the way. Guards both move (reparenting
// into the own subtree) and copy (cloning into the own subtree would feed
// the clones back into the recursion).
func (s *repositoryService) checkNoCycle(ctx context.Context, op, subjectID string, dest *models.Folder) error {
	cur := dest
	for {
		if cur.ID == subjectID {
			return &domain.StructuralError{Op: op, Message: "cannot " + op + " a folder into its own subtree"}
		}
		if cur.ParentID == nil {
			return nil
		}
		parent, err := s.folderRepo.GetByID(ctx, *cur.ParentID)
		if err != nil {
			return err
		}
		cur = parent
	}
}

// Rename changes a node's title. Folder renames cascade to every
// descendant's display path, hence the subtree reindex.
func (s *repositoryService) Rename(ctx context.Context, nodeID, title string) error {
	if err := validateTitle(title); err != nil {
		return err
	}

	err := s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		node, err := s.resolveNode(txCtx, nodeID)
		if err != nil {
			return err
		}

		switch node.Kind {
		case models.NodeKindDocument:
			if err := s.ensureTitleFree(txCtx, node.Document.FolderID, title, models.NodeKindDocument); err != nil {
				return err
			}
			node.Document.Title = title
			node.Document.UpdatedAt = time.Now()
			if err := s.docRepo.Update(txCtx, node.Document); err != nil {
				return err
			}

		case models.NodeKindFolder:
			if node.Folder.IsRoot() {
				return &domain.StructuralError{Op: "rename", Message: "cannot rename the root folder"}
			}
			if err := s.ensureTitleFree(txCtx, *node.Folder.ParentID, title, models.NodeKindFolder); err != nil {
				return err
			}
			node.Folder.Title = title
			node.Folder.UpdatedAt = time.Now()
			if err := s.folderRepo.Update(txCtx, node.Folder); err != nil {
				return err
			}
		}

		s.scheduleNodeReindex(txCtx, node)
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("node renamed", "node_id", nodeID, "title", title)
	return nil
}

// Delete removes a node and everything under it. Role assignments for the
// whole subtree are destroyed in the same transaction; index entries are
// removed after commit.
func (s *repositoryService) Delete(ctx context.Context, nodeID string) error {
	err := s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		node, err := s.resolveNode(txCtx, nodeID)
		if err != nil {
			return err
		}

		var ids []string
		switch node.Kind {
		case models.NodeKindDocument:
			ids = []string{node.Document.ID}
			if err := s.roleRepo.DeleteByNodes(txCtx, ids); err != nil {
				return err
			}
			if err := s.docRepo.Delete(txCtx, node.Document.ID); err != nil {
				return err
			}

		case models.NodeKindFolder:
			if node.Folder.IsRoot() {
				return &domain.StructuralError{Op: "delete", Message: "cannot delete the root folder"}
			}
			// Collect the subtree before the cascade erases it
			ids, err = s.folderRepo.SubtreeIDs(txCtx, node.Folder.ID)
			if err != nil {
				return err
			}
			if err := s.roleRepo.DeleteByNodes(txCtx, ids); err != nil {
				return err
			}
			if err := s.folderRepo.Delete(txCtx, node.Folder.ID); err != nil {
				return err
			}
		}

		repositories.AfterCommit(txCtx, func(hookCtx context.Context) {
			s.reindex.RemoveNodes(hookCtx, ids)
		})
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("node deleted", "node_id", nodeID)
	return nil
}

// SetContent stores new content for a document. The blob goes into the
// content store under its digest, the document row is repointed with its
// derived fields and checkout lock cleared, and the processing pipeline
// plus an index update run after commit.
func (s *repositoryService) SetContent(ctx context.Context, docID string, data []byte, contentType string) (*models.Document, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty content", domain.ErrValidation)
	}

	digest := contentDigest(data)

	err := s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		if _, err := s.docRepo.GetByID(txCtx, docID); err != nil {
			return err
		}
		if err := s.contentRepo.Put(txCtx, digest, data, contentType); err != nil {
			return err
		}
		if err := s.docRepo.SetContent(txCtx, docID, digest, contentType, int64(len(data))); err != nil {
			return err
		}

		repositories.AfterCommit(txCtx, func(hookCtx context.Context) {
			s.pipeline.Dispatch(hookCtx, docID)
			s.reindex.ReindexNode(hookCtx, docID)
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("content stored", "document_id", docID, "digest", digest, "bytes", len(data))
	return s.GetDocument(ctx, docID)
}

// OpenContent retrieves a content blob by digest
func (s *repositoryService) OpenContent(ctx context.Context, digest string) ([]byte, string, error) {
	return s.contentRepo.Get(ctx, digest)
}

// resolveNode loads a node by id, trying folders first
func (s *repositoryService) resolveNode(ctx context.Context, nodeID string) (*models.Node, error) {
	folder, err := s.folderRepo.GetByID(ctx, nodeID)
	if err == nil {
		return models.FolderNode(folder), nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	doc, err := s.docRepo.GetByID(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	return models.DocumentNode(doc), nil
}

// scheduleNodeReindex registers the after-commit reindex appropriate to
// the node kind: subtree for folders, single entry for documents.
func (s *repositoryService) scheduleNodeReindex(txCtx context.Context, node *models.Node) {
	repositories.AfterCommit(txCtx, func(hookCtx context.Context) {
		if node.Kind == models.NodeKindFolder {
			if err := s.reindex.ReindexSubtree(hookCtx, node.Folder.ID); err != nil {
				s.logger.Error("subtree reindex failed", "folder_id", node.Folder.ID, "error", err)
			}
			return
		}
		s.reindex.ReindexNode(hookCtx, node.Document.ID)
	})
}

// ensureTitleFree rejects a placement whose title is already held by a
// sibling of the other kind. Same-kind collisions are left to the unique
// constraints; without this check a folder and a document could share a
// title in one parent and the folder would shadow the document on every
// path lookup.
func (s *repositoryService) ensureTitleFree(ctx context.Context, folderID, title string, kind models.NodeKind) error {
	if kind == models.NodeKindFolder {
		doc, err := s.docRepo.GetByTitleAndFolder(ctx, title, folderID)
		if err != nil {
			return err
		}
		if doc != nil {
			return fmt.Errorf("node '%s': %w", title, domain.ErrConflict)
		}
		return nil
	}

	folder, err := s.folderRepo.GetByTitleAndParent(ctx, title, &folderID)
	if err != nil {
		return err
	}
	if folder != nil {
		return fmt.Errorf("node '%s': %w", title, domain.ErrConflict)
	}
	return nil
}

// finalTitle resolves the title a node will carry after an operation with
// an optional rename.
func finalTitle(current, override string) string {
	if override != "" {
		return override
	}
	return current
}

// contentDigest returns the hex sha256 of a blob, the content store key
func contentDigest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func validateTitle(title string) error {
	err := validation.Validate(title,
		validation.Required,
		validation.Length(1, config.MaxTitleLength),
		validation.Match(titlePattern).Error("must not contain slashes or control characters"),
	)
	if err != nil {
		return fmt.Errorf("%w: title: %v", domain.ErrValidation, err)
	}
	if title == "." || title == ".." {
		return fmt.Errorf("%w: title: reserved name %q", domain.ErrValidation, title)
	}
	return nil
}

func validateDescription(desc string) error {
	if err := validation.Validate(desc, validation.Length(0, config.MaxDescriptionLength)); err != nil {
		return fmt.Errorf("%w: description: %v", domain.ErrValidation, err)
	}
	return nil
}
