package services

import (
	"context"

	"contentvault/internal/domain/models"
)

// LockManager is the advisory per-document checkout lock. The
// check-then-set is best-effort, not a distributed mutex.
type LockManager interface {
	// Lock installs a lock for user unless a valid lock with a different
	// owner exists (ErrLockConflict). Re-locking by the owner refreshes
	// the lock.
	Lock(ctx context.Context, docID, userID, userName string) (*models.Lock, error)

	// Unlock clears the lock unconditionally; callers are expected to
	// have checked write access beforehand.
	Unlock(ctx context.Context, docID string) error

	// Status returns the current lock, or nil when absent or expired.
	Status(ctx context.Context, docID string) (*models.Lock, error)
}
