package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"contentvault/internal/domain"
	"contentvault/internal/domain/repositories"
)

// PostgresContentRepository is the digest-addressed blob store
type PostgresContentRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
}

// NewContentRepository creates a new content repository
func NewContentRepository(config *RepositoryConfig) repositories.ContentRepository {
	return &PostgresContentRepository{
		pool:   config.Pool,
		tables: config.Tables,
	}
}

// Put stores a blob under its digest. Content-addressed storage is
// idempotent: an existing digest is left untouched.
func (r *PostgresContentRepository) Put(ctx context.Context, digest string, data []byte, contentType string) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (digest, data, content_type, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (digest) DO NOTHING
	`, r.tables.Contents)

	executor := GetExecutor(ctx, r.pool)
	if _, err := executor.Exec(ctx, query, digest, data, contentType, time.Now()); err != nil {
		return fmt.Errorf("put content: %w", err)
	}

	return nil
}

// Get retrieves a blob and its content type by digest
func (r *PostgresContentRepository) Get(ctx context.Context, digest string) ([]byte, string, error) {
	query := fmt.Sprintf(`SELECT data, content_type FROM %s WHERE digest = $1`, r.tables.Contents)

	executor := GetExecutor(ctx, r.pool)
	var data []byte
	var contentType string
	err := executor.QueryRow(ctx, query, digest).Scan(&data, &contentType)
	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, "", fmt.Errorf("content %s: %w", digest, domain.ErrNotFound)
		}
		return nil, "", fmt.Errorf("get content: %w", err)
	}

	return data, contentType, nil
}
