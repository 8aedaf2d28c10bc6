package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"contentvault/internal/domain"
	"contentvault/internal/domain/models"
	"contentvault/internal/domain/repositories"
)

// PostgresDocumentRepository implements the DocumentRepository interface
type PostgresDocumentRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
}

// NewDocumentRepository creates a new document repository
func NewDocumentRepository(config *RepositoryConfig) repositories.DocumentRepository {
	return &PostgresDocumentRepository{
		pool:   config.Pool,
		tables: config.Tables,
	}
}

const documentColumns = `id, folder_id, title, description, content_digest, content_type,
	content_length, pdf, text_content, preview, extra_metadata, language,
	lock_owner_id, lock_owner_name, lock_created_at, av_scanned, av_status,
	created_at, updated_at`

// Create inserts a new document
func (r *PostgresDocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.ScanStatus == "" {
		doc.ScanStatus = models.ScanStatusUnknown
	}

	var lockOwnerID, lockOwnerName *string
	var lockCreatedAt *time.Time
	if doc.Lock != nil {
		lockOwnerID = &doc.Lock.OwnerID
		lockOwnerName = &doc.Lock.OwnerName
		lockCreatedAt = &doc.Lock.CreatedAt
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, folder_id, title, description, content_digest, content_type,
			content_length, pdf, text_content, preview, extra_metadata, language,
			lock_owner_id, lock_owner_name, lock_created_at, av_scanned, av_status,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`, r.tables.Documents)

	executor := GetExecutor(ctx, r.pool)
	_, err := executor.Exec(ctx, query,
		doc.ID,
		doc.FolderID,
		doc.Title,
		doc.Description,
		doc.ContentDigest,
		doc.ContentType,
		doc.ContentLength,
		doc.PDF,
		doc.TextContent,
		doc.Preview,
		doc.ExtraMetadata,
		doc.Language,
		lockOwnerID,
		lockOwnerName,
		lockCreatedAt,
		doc.Scanned,
		string(doc.ScanStatus),
		doc.CreatedAt,
		doc.UpdatedAt,
	)

	if err != nil {
		if IsPgDuplicateError(err) {
			return fmt.Errorf("document '%s': %w", doc.Title, domain.ErrConflict)
		}
		if IsPgForeignKeyError(err) {
			// Containing folder deleted by a concurrent transaction
			return fmt.Errorf("folder %s: %w", doc.FolderID, domain.ErrNotFound)
		}
		return fmt.Errorf("create document: %w", err)
	}

	return nil
}

// GetByID retrieves a document by ID
func (r *PostgresDocumentRepository) GetByID(ctx context.Context, id string) (*models.Document, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, documentColumns, r.tables.Documents)

	executor := GetExecutor(ctx, r.pool)
	doc, err := scanDocument(executor.QueryRow(ctx, query, id))
	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get document: %w", err)
	}

	return doc, nil
}

// GetByTitleAndFolder finds a document by title within a folder.
// Returns (nil, nil) when absent.
func (r *PostgresDocumentRepository) GetByTitleAndFolder(ctx context.Context, title, folderID string) (*models.Document, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE title = $1 AND folder_id = $2`,
		documentColumns, r.tables.Documents)

	executor := GetExecutor(ctx, r.pool)
	doc, err := scanDocument(executor.QueryRow(ctx, query, title, folderID))
	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, nil // Not found, not an error
		}
		return nil, fmt.Errorf("get document by title and folder: %w", err)
	}

	return doc, nil
}

// Update persists title, folder and description
func (r *PostgresDocumentRepository) Update(ctx context.Context, doc *models.Document) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET folder_id = $1, title = $2, description = $3, updated_at = $4
		WHERE id = $5
	`, r.tables.Documents)

	executor := GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query,
		doc.FolderID,
		doc.Title,
		doc.Description,
		doc.UpdatedAt,
		doc.ID,
	)

	if err != nil {
		if IsPgDuplicateError(err) {
			return fmt.Errorf("document '%s': %w", doc.Title, domain.ErrConflict)
		}
		if IsPgForeignKeyError(err) {
			return fmt.Errorf("folder %s: %w", doc.FolderID, domain.ErrNotFound)
		}
		return fmt.Errorf("update document: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("document %s: %w", doc.ID, domain.ErrNotFound)
	}

	return nil
}

// Delete removes a document
func (r *PostgresDocumentRepository) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.tables.Documents)

	executor := GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}

	return nil
}

// ListByFolder lists documents directly inside a folder ordered by title
func (r *PostgresDocumentRepository) ListByFolder(ctx context.Context, folderID string) ([]models.Document, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE folder_id = $1
		ORDER BY title ASC
	`, documentColumns, r.tables.Documents)

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, folderID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, *doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}

	return docs, nil
}

// SetContent points the document at a new content blob, clears the lock
// (implicit checkin) and resets derived fields and the antivirus verdict.
func (r *PostgresDocumentRepository) SetContent(ctx context.Context, id, digest, contentType string, length int64) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET content_digest = $1, content_type = $2, content_length = $3,
			pdf = NULL, text_content = NULL, preview = NULL,
			extra_metadata = NULL, language = '',
			lock_owner_id = NULL, lock_owner_name = NULL, lock_created_at = NULL,
			av_scanned = FALSE, av_status = 'unknown',
			updated_at = $4
		WHERE id = $5
	`, r.tables.Documents)

	executor := GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, digest, contentType, length, time.Now(), id)
	if err != nil {
		return fmt.Errorf("set content: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}

	return nil
}

// updateField writes a single derived column. Pipeline stages run
// concurrently; each touches only its own field.
func (r *PostgresDocumentRepository) updateField(ctx context.Context, id, column string, value interface{}) error {
	query := fmt.Sprintf(`UPDATE %s SET %s = $1, updated_at = $2 WHERE id = $3`,
		r.tables.Documents, column)

	executor := GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, value, time.Now(), id)
	if err != nil {
		return fmt.Errorf("update %s: %w", column, err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}

	return nil
}

func (r *PostgresDocumentRepository) UpdatePDF(ctx context.Context, id string, pdf []byte) error {
	return r.updateField(ctx, id, "pdf", pdf)
}

func (r *PostgresDocumentRepository) UpdateText(ctx context.Context, id, text string) error {
	return r.updateField(ctx, id, "text_content", text)
}

func (r *PostgresDocumentRepository) UpdatePreview(ctx context.Context, id string, preview []byte) error {
	return r.updateField(ctx, id, "preview", preview)
}

func (r *PostgresDocumentRepository) UpdateMetadata(ctx context.Context, id string, metadata map[string]interface{}) error {
	return r.updateField(ctx, id, "extra_metadata", metadata)
}

func (r *PostgresDocumentRepository) UpdateLanguage(ctx context.Context, id, language string) error {
	return r.updateField(ctx, id, "language", language)
}

// UpdateScanStatus records the antivirus verdict and marks the document scanned
func (r *PostgresDocumentRepository) UpdateScanStatus(ctx context.Context, id string, status models.ScanStatus) error {
	query := fmt.Sprintf(`
		UPDATE %s SET av_scanned = TRUE, av_status = $1, updated_at = $2 WHERE id = $3
	`, r.tables.Documents)

	executor := GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, string(status), time.Now(), id)
	if err != nil {
		return fmt.Errorf("update scan status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}

	return nil
}

// SetLock installs or clears (nil) the advisory lock columns
func (r *PostgresDocumentRepository) SetLock(ctx context.Context, id string, lock *models.Lock) error {
	var ownerID, ownerName *string
	var createdAt *time.Time
	if lock != nil {
		ownerID = &lock.OwnerID
		ownerName = &lock.OwnerName
		createdAt = &lock.CreatedAt
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET lock_owner_id = $1, lock_owner_name = $2, lock_created_at = $3
		WHERE id = $4
	`, r.tables.Documents)

	executor := GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, ownerID, ownerName, createdAt, id)
	if err != nil {
		return fmt.Errorf("set lock: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}

	return nil
}

// ListUnscannedIDs enumerates documents lacking an antivirus verdict
func (r *PostgresDocumentRepository) ListUnscannedIDs(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf(`
		SELECT id FROM %s
		WHERE av_scanned = FALSE AND content_digest IS NOT NULL
		ORDER BY created_at ASC
	`, r.tables.Documents)

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list unscanned documents: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan document id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate document ids: %w", err)
	}

	return ids, nil
}

func scanDocument(row rowScanner) (*models.Document, error) {
	var doc models.Document
	var lockOwnerID, lockOwnerName *string
	var lockCreatedAt *time.Time
	var status string

	err := row.Scan(
		&doc.ID,
		&doc.FolderID,
		&doc.Title,
		&doc.Description,
		&doc.ContentDigest,
		&doc.ContentType,
		&doc.ContentLength,
		&doc.PDF,
		&doc.TextContent,
		&doc.Preview,
		&doc.ExtraMetadata,
		&doc.Language,
		&lockOwnerID,
		&lockOwnerName,
		&lockCreatedAt,
		&doc.Scanned,
		&status,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	doc.ScanStatus = models.ScanStatus(status)
	if lockOwnerID != nil && lockCreatedAt != nil {
		doc.Lock = &models.Lock{
			OwnerID:   *lockOwnerID,
			CreatedAt: *lockCreatedAt,
		}
		if lockOwnerName != nil {
			doc.Lock.OwnerName = *lockOwnerName
		}
	}

	return &doc, nil
}
