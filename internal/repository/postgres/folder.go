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

// PostgresFolderRepository implements the FolderRepository interface
type PostgresFolderRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
}

// NewFolderRepository creates a new folder repository
func NewFolderRepository(config *RepositoryConfig) repositories.FolderRepository {
	return &PostgresFolderRepository{
		pool:   config.Pool,
		tables: config.Tables,
	}
}

const folderColumns = "id, parent_id, title, description, inherit_security, created_at, updated_at"

// Create inserts a new folder
func (r *PostgresFolderRepository) Create(ctx context.Context, folder *models.Folder) error {
	if folder.ID == "" {
		folder.ID = uuid.NewString()
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, parent_id, title, description, inherit_security, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, r.tables.Folders)

	executor := GetExecutor(ctx, r.pool)
	_, err := executor.Exec(ctx, query,
		folder.ID,
		folder.ParentID,
		folder.Title,
		folder.Description,
		folder.InheritSecurity,
		folder.CreatedAt,
		folder.UpdatedAt,
	)

	if err != nil {
		if IsPgDuplicateError(err) {
			return fmt.Errorf("folder '%s': %w", folder.Title, domain.ErrConflict)
		}
		if IsPgForeignKeyError(err) {
			// Parent deleted by a concurrent transaction
			return fmt.Errorf("parent folder: %w", domain.ErrNotFound)
		}
		return fmt.Errorf("create folder: %w", err)
	}

	return nil
}

// GetByID retrieves a folder by ID
func (r *PostgresFolderRepository) GetByID(ctx context.Context, id string) (*models.Folder, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, folderColumns, r.tables.Folders)

	executor := GetExecutor(ctx, r.pool)
	folder, err := scanFolder(executor.QueryRow(ctx, query, id))
	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, fmt.Errorf("folder %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get folder: %w", err)
	}

	return folder, nil
}

// GetRoot retrieves the root folder
func (r *PostgresFolderRepository) GetRoot(ctx context.Context) (*models.Folder, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE parent_id IS NULL`, folderColumns, r.tables.Folders)

	executor := GetExecutor(ctx, r.pool)
	folder, err := scanFolder(executor.QueryRow(ctx, query))
	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, fmt.Errorf("root folder: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get root folder: %w", err)
	}

	return folder, nil
}

// EnsureRoot creates the root folder if it does not exist yet
func (r *PostgresFolderRepository) EnsureRoot(ctx context.Context) (*models.Folder, error) {
	root, err := r.GetRoot(ctx)
	if err == nil {
		return root, nil
	}

	now := time.Now()
	root = &models.Folder{
		ID:              uuid.NewString(),
		ParentID:        nil,
		Title:           "",
		InheritSecurity: true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := r.Create(ctx, root); err != nil {
		// Lost a race against a concurrent EnsureRoot
		if existing, getErr := r.GetRoot(ctx); getErr == nil {
			return existing, nil
		}
		return nil, err
	}

	return root, nil
}

// GetByTitleAndParent finds a child folder by title. Returns (nil, nil) when absent.
func (r *PostgresFolderRepository) GetByTitleAndParent(ctx context.Context, title string, parentID *string) (*models.Folder, error) {
	var query string
	var args []interface{}

	if parentID == nil {
		query = fmt.Sprintf(`SELECT %s FROM %s WHERE title = $1 AND parent_id IS NULL`,
			folderColumns, r.tables.Folders)
		args = append(args, title)
	} else {
		query = fmt.Sprintf(`SELECT %s FROM %s WHERE title = $1 AND parent_id = $2`,
			folderColumns, r.tables.Folders)
		args = append(args, title, *parentID)
	}

	executor := GetExecutor(ctx, r.pool)
	folder, err := scanFolder(executor.QueryRow(ctx, query, args...))
	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, nil // Not found, not an error
		}
		return nil, fmt.Errorf("get folder by title and parent: %w", err)
	}

	return folder, nil
}

// Update persists title, parent, description and inherit_security
func (r *PostgresFolderRepository) Update(ctx context.Context, folder *models.Folder) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET parent_id = $1, title = $2, description = $3, inherit_security = $4, updated_at = $5
		WHERE id = $6
	`, r.tables.Folders)

	executor := GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query,
		folder.ParentID,
		folder.Title,
		folder.Description,
		folder.InheritSecurity,
		folder.UpdatedAt,
		folder.ID,
	)

	if err != nil {
		if IsPgDuplicateError(err) {
			return fmt.Errorf("folder '%s': %w", folder.Title, domain.ErrConflict)
		}
		if IsPgForeignKeyError(err) {
			return fmt.Errorf("parent folder: %w", domain.ErrNotFound)
		}
		return fmt.Errorf("update folder: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("folder %s: %w", folder.ID, domain.ErrNotFound)
	}

	return nil
}

// Delete removes a folder; children cascade at the database level
func (r *PostgresFolderRepository) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.tables.Folders)

	executor := GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete folder: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("folder %s: %w", id, domain.ErrNotFound)
	}

	return nil
}

// ListChildren lists immediate child folders ordered by title
func (r *PostgresFolderRepository) ListChildren(ctx context.Context, parentID string) ([]models.Folder, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE parent_id = $1
		ORDER BY title ASC
	`, folderColumns, r.tables.Folders)

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, parentID)
	if err != nil {
		return nil, fmt.Errorf("list folder children: %w", err)
	}
	defer rows.Close()

	var folders []models.Folder
	for rows.Next() {
		folder, err := scanFolder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan folder: %w", err)
		}
		folders = append(folders, *folder)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate folders: %w", err)
	}

	return folders, nil
}

// GetPath computes the display path for a folder using a recursive CTE.
// The root contributes the empty string, so every non-root path starts
// with "/".
func (r *PostgresFolderRepository) GetPath(ctx context.Context, folderID string) (string, error) {
	query := fmt.Sprintf(`
		WITH RECURSIVE folder_path AS (
			SELECT id, title, parent_id, title::text AS path
			FROM %s
			WHERE id = $1
			UNION ALL
			SELECT f.id, f.title, f.parent_id, f.title || '/' || fp.path
			FROM %s f
			JOIN folder_path fp ON f.id = fp.parent_id
		)
		SELECT path FROM folder_path WHERE parent_id IS NULL
	`, r.tables.Folders, r.tables.Folders)

	executor := GetExecutor(ctx, r.pool)
	var path string
	err := executor.QueryRow(ctx, query, folderID).Scan(&path)
	if err != nil {
		if IsPgNoRowsError(err) {
			return "", fmt.Errorf("folder %s: %w", folderID, domain.ErrNotFound)
		}
		return "", fmt.Errorf("get folder path: %w", err)
	}

	return path, nil
}

// SubtreeIDs returns every node id under the folder (inclusive), folders
// and documents, via a single recursive query.
func (r *PostgresFolderRepository) SubtreeIDs(ctx context.Context, folderID string) ([]string, error) {
	query := fmt.Sprintf(`
		WITH RECURSIVE subtree AS (
			SELECT id FROM %s WHERE id = $1
			UNION ALL
			SELECT f.id FROM %s f JOIN subtree s ON f.parent_id = s.id
		)
		SELECT id FROM subtree
		UNION
		SELECT d.id FROM %s d JOIN subtree s ON d.folder_id = s.id
	`, r.tables.Folders, r.tables.Folders, r.tables.Documents)

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, folderID)
	if err != nil {
		return nil, fmt.Errorf("subtree ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan subtree id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subtree ids: %w", err)
	}

	return ids, nil
}

// DocumentCount counts documents in the folder's subtree
func (r *PostgresFolderRepository) DocumentCount(ctx context.Context, folderID string) (int, error) {
	query := fmt.Sprintf(`
		WITH RECURSIVE subtree AS (
			SELECT id FROM %s WHERE id = $1
			UNION ALL
			SELECT f.id FROM %s f JOIN subtree s ON f.parent_id = s.id
		)
		SELECT COUNT(*) FROM %s d JOIN subtree s ON d.folder_id = s.id
	`, r.tables.Folders, r.tables.Folders, r.tables.Documents)

	executor := GetExecutor(ctx, r.pool)
	var count int
	if err := executor.QueryRow(ctx, query, folderID).Scan(&count); err != nil {
		return 0, fmt.Errorf("document count: %w", err)
	}

	return count, nil
}

// rowScanner abstracts pgx.Row and pgx.Rows for shared scanning
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFolder(row rowScanner) (*models.Folder, error) {
	var folder models.Folder
	err := row.Scan(
		&folder.ID,
		&folder.ParentID,
		&folder.Title,
		&folder.Description,
		&folder.InheritSecurity,
		&folder.CreatedAt,
		&folder.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &folder, nil
}
