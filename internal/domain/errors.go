package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors - match with errors.Is()
var (
	// ErrNotFound indicates a missing node, document or content blob.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a sibling-title uniqueness violation. It is
	// surfaced at commit time by the persistence layer, not pre-checked.
	ErrConflict = errors.New("already exists")

	// ErrStructural indicates a tree-shape violation: moving a folder into
	// itself or a descendant, or deleting the root.
	ErrStructural = errors.New("structural violation")

	// ErrLockConflict indicates a valid checkout lock held by another user.
	ErrLockConflict = errors.New("locked by another user")

	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("validation failed")

	// ErrNoHandler indicates the conversion service has no converter for
	// the content type. Pipeline stages recover from it locally.
	ErrNoHandler = errors.New("no handler for content type")
)

// LockConflictError carries the current lock holder so callers can report
// who owns the checkout.
type LockConflictError struct {
	DocumentID string
	OwnerID    string
	OwnerName  string
}

func (e *LockConflictError) Error() string {
	return fmt.Sprintf("document %s is locked by %s", e.DocumentID, e.OwnerName)
}

// Is allows errors.Is() to match against ErrLockConflict
func (e *LockConflictError) Is(target error) bool {
	return target == ErrLockConflict
}

// StructuralError describes a rejected tree mutation.
type StructuralError struct {
	Op      string
	Message string
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// Is allows errors.Is() to match against ErrStructural
func (e *StructuralError) Is(target error) bool {
	return target == ErrStructural
}
