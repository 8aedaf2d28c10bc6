package repositories

import "context"

// ContentRepository is the digest-addressed blob store. Blobs are shared:
// copying a document copies the digest reference, not the bytes.
type ContentRepository interface {
	// Put stores a blob under its digest. Storing an existing digest is a
	// no-op (content-addressed storage is idempotent).
	Put(ctx context.Context, digest string, data []byte, contentType string) error

	// Get retrieves a blob and its content type by digest
	Get(ctx context.Context, digest string) ([]byte, string, error)
}
