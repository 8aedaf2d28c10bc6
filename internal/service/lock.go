package service

import (
	"context"
	"log/slog"
	"time"

	"contentvault/internal/domain"
	"contentvault/internal/domain/models"
	"contentvault/internal/domain/repositories"
	"contentvault/internal/domain/services"
)

type lockService struct {
	docRepo  repositories.DocumentRepository
	lifetime time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewLockManager creates the advisory lock manager. Locks expire after
// lifetime; an expired lock is treated as absent, never deleted eagerly.
func NewLockManager(docRepo repositories.DocumentRepository, lifetime time.Duration, logger *slog.Logger) services.LockManager {
	return &lockService{
		docRepo:  docRepo,
		lifetime: lifetime,
		logger:   logger,
		now:      time.Now,
	}
}

// Lock acquires or refreshes the advisory lock on a document. Acquisition
// succeeds when no valid lock exists or the caller already holds it;
// re-locking by the owner refreshes the timestamp.
func (s *lockService) Lock(ctx context.Context, docID, userID, userName string) (*models.Lock, error) {
	doc, err := s.docRepo.GetByID(ctx, docID)
	if err != nil {
		return nil, err
	}

	if doc.Lock.Valid(s.now(), s.lifetime) && !doc.Lock.IsOwner(userID) {
		return nil, &domain.LockConflictError{
			DocumentID: docID,
			OwnerID:    doc.Lock.OwnerID,
			OwnerName:  doc.Lock.OwnerName,
		}
	}

	lock := &models.Lock{
		OwnerID:   userID,
		OwnerName: userName,
		CreatedAt: s.now(),
	}
	if err := s.docRepo.SetLock(ctx, docID, lock); err != nil {
		return nil, err
	}

	s.logger.Info("document locked", "document_id", docID, "owner", userID)
	return lock, nil
}

// Unlock clears the lock unconditionally; unlocking an unlocked document
// is a no-op.
func (s *lockService) Unlock(ctx context.Context, docID string) error {
	doc, err := s.docRepo.GetByID(ctx, docID)
	if err != nil {
		return err
	}

	if doc.Lock == nil {
		return nil
	}

	if err := s.docRepo.SetLock(ctx, docID, nil); err != nil {
		return err
	}

	s.logger.Info("document unlocked", "document_id", docID)
	return nil
}

// Status returns the current valid lock, or nil when the document is
// unlocked or the lock has expired.
func (s *lockService) Status(ctx context.Context, docID string) (*models.Lock, error) {
	doc, err := s.docRepo.GetByID(ctx, docID)
	if err != nil {
		return nil, err
	}

	if !doc.Lock.Valid(s.now(), s.lifetime) {
		return nil, nil
	}
	return doc.Lock, nil
}
