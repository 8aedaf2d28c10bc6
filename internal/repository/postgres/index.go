package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"contentvault/internal/domain/models"
	"contentvault/internal/domain/services"
)

// PostgresIndexer is the full-text index service backed by Postgres.
// Effective principals are baked into each entry at index time; queries
// filter with an array-overlap predicate against the caller's tokens.
type PostgresIndexer struct {
	pool   *pgxpool.Pool
	tables *TableNames
}

// NewIndexer creates a new Postgres-backed indexer
func NewIndexer(config *RepositoryConfig) services.Indexer {
	return &PostgresIndexer{
		pool:   config.Pool,
		tables: config.Tables,
	}
}

// AddOrUpdate upserts an index entry
func (r *PostgresIndexer) AddOrUpdate(ctx context.Context, entry *models.IndexEntry) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (node_id, kind, title, text_content, language, path, principals, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (node_id) DO UPDATE
		SET kind = EXCLUDED.kind,
			title = EXCLUDED.title,
			text_content = EXCLUDED.text_content,
			language = EXCLUDED.language,
			path = EXCLUDED.path,
			principals = EXCLUDED.principals,
			updated_at = EXCLUDED.updated_at
	`, r.tables.IndexEntries)

	language := entry.Language
	if language == "" {
		language = "english"
	}

	executor := GetExecutor(ctx, r.pool)
	_, err := executor.Exec(ctx, query,
		entry.NodeID,
		string(entry.Kind),
		entry.Title,
		entry.Text,
		language,
		entry.Path,
		entry.Principals,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("index entry: %w", err)
	}

	return nil
}

// Remove deletes an index entry. Removing an absent entry is a no-op.
func (r *PostgresIndexer) Remove(ctx context.Context, nodeID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE node_id = $1`, r.tables.IndexEntries)

	executor := GetExecutor(ctx, r.pool)
	if _, err := executor.Exec(ctx, query, nodeID); err != nil {
		return fmt.Errorf("remove index entry: %w", err)
	}

	return nil
}

// Search performs full-text search with the security predicate applied at
// query time.
//
// PostgreSQL full-text search components:
// - to_tsvector(language, field): converts a field to searchable tokens
// - websearch_to_tsquery(language, query): Google-like query syntax
// - @@: full-text match operator
// - ts_rank(): relevance score; title matches weigh 2x
// The && array-overlap operator intersects the entry's baked-in principal
// tokens with the querying user's own set.
func (r *PostgresIndexer) Search(ctx context.Context, opts *models.SearchOptions) ([]models.SearchResult, error) {
	opts.ApplyDefaults()

	query := fmt.Sprintf(`
		SELECT node_id, kind, title,
		       ts_headline($1, text_content, websearch_to_tsquery($1, $2),
		                   'MaxWords=50, MinWords=20, MaxFragments=1') AS text_content,
		       language, path, principals, updated_at,
		       (ts_rank(to_tsvector($1, title), websearch_to_tsquery($1, $2)) * 2.0 +
		        ts_rank(to_tsvector($1, text_content), websearch_to_tsquery($1, $2))) AS rank_score
		FROM %s
		WHERE (to_tsvector($1, title) @@ websearch_to_tsquery($1, $2)
		       OR to_tsvector($1, text_content) @@ websearch_to_tsquery($1, $2))
		  AND principals && $3
		ORDER BY rank_score DESC
		LIMIT $4 OFFSET $5
	`, r.tables.IndexEntries)

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query,
		opts.Language, opts.Query, opts.Principals, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("full-text search query failed: %w", err)
	}
	defer rows.Close()

	var results []models.SearchResult
	for rows.Next() {
		var entry models.IndexEntry
		var kind string
		var score float64

		err := rows.Scan(
			&entry.NodeID,
			&kind,
			&entry.Title,
			&entry.Text,
			&entry.Language,
			&entry.Path,
			&entry.Principals,
			&entry.UpdatedAt,
			&score,
		)
		if err != nil {
			return nil, fmt.Errorf("scan search result: %w", err)
		}

		entry.Kind = models.NodeKind(kind)
		results = append(results, models.SearchResult{Entry: entry, Score: score})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search results: %w", err)
	}

	if results == nil {
		results = []models.SearchResult{}
	}

	return results, nil
}
