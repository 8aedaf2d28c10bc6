package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// CreateSchema creates all tables and indexes if they do not exist.
// The (parent_id, title) uniqueness constraints are the storage-level
// guarantee behind sibling-title uniqueness; deletes cascade down the tree.
func CreateSchema(ctx context.Context, pool *pgxpool.Pool, tables *TableNames) error {
	statements := []string{
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id UUID PRIMARY KEY,
				parent_id UUID REFERENCES %s(id) ON DELETE CASCADE,
				title VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				inherit_security BOOLEAN NOT NULL DEFAULT TRUE,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				UNIQUE (parent_id, title)
			)
		`, tables.Folders, tables.Folders),
		// A single root: only one row may have parent_id NULL
		fmt.Sprintf(`
			CREATE UNIQUE INDEX IF NOT EXISTS %s_single_root
			ON %s ((parent_id IS NULL)) WHERE parent_id IS NULL
		`, tables.Folders, tables.Folders),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				digest VARCHAR(64) PRIMARY KEY,
				data BYTEA NOT NULL,
				content_type VARCHAR(255) NOT NULL DEFAULT 'application/octet-stream',
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)
		`, tables.Contents),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id UUID PRIMARY KEY,
				folder_id UUID NOT NULL REFERENCES %s(id) ON DELETE CASCADE,
				title VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				content_digest VARCHAR(64),
				content_type VARCHAR(255) NOT NULL DEFAULT 'application/octet-stream',
				content_length BIGINT NOT NULL DEFAULT 0,
				pdf BYTEA,
				text_content TEXT,
				preview BYTEA,
				extra_metadata JSONB,
				language VARCHAR(32) NOT NULL DEFAULT '',
				lock_owner_id VARCHAR(255),
				lock_owner_name VARCHAR(255),
				lock_created_at TIMESTAMPTZ,
				av_scanned BOOLEAN NOT NULL DEFAULT FALSE,
				av_status VARCHAR(16) NOT NULL DEFAULT 'unknown',
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				UNIQUE (folder_id, title)
			)
		`, tables.Documents, tables.Folders),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id UUID PRIMARY KEY,
				node_id UUID NOT NULL,
				principal VARCHAR(255) NOT NULL,
				principal_kind VARCHAR(16) NOT NULL DEFAULT 'user',
				role VARCHAR(32) NOT NULL,
				UNIQUE (node_id, principal, role)
			)
		`, tables.RoleAssignments),
		fmt.Sprintf(`
			CREATE INDEX IF NOT EXISTS %s_node_idx ON %s (node_id)
		`, tables.RoleAssignments, tables.RoleAssignments),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				group_id VARCHAR(255) NOT NULL,
				user_id VARCHAR(255) NOT NULL,
				PRIMARY KEY (group_id, user_id)
			)
		`, tables.GroupMembers),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				node_id UUID PRIMARY KEY,
				kind VARCHAR(16) NOT NULL,
				title TEXT NOT NULL DEFAULT '',
				text_content TEXT NOT NULL DEFAULT '',
				language VARCHAR(32) NOT NULL DEFAULT 'english',
				path TEXT NOT NULL DEFAULT '',
				principals TEXT[] NOT NULL DEFAULT '{}',
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)
		`, tables.IndexEntries),
		fmt.Sprintf(`
			CREATE INDEX IF NOT EXISTS %s_principals_idx ON %s USING GIN (principals)
		`, tables.IndexEntries, tables.IndexEntries),
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}

	return nil
}
