package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"contentvault/internal/domain/models"
	"contentvault/internal/domain/repositories"
)

// PostgresRoleRepository implements the RoleRepository interface
type PostgresRoleRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
}

// NewRoleRepository creates a new role repository
func NewRoleRepository(config *RepositoryConfig) repositories.RoleRepository {
	return &PostgresRoleRepository{
		pool:   config.Pool,
		tables: config.Tables,
	}
}

// Grant records an assignment. Granting an existing assignment is a no-op.
func (r *PostgresRoleRepository) Grant(ctx context.Context, a *models.RoleAssignment) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, node_id, principal, principal_kind, role)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (node_id, principal, role) DO NOTHING
	`, r.tables.RoleAssignments)

	executor := GetExecutor(ctx, r.pool)
	_, err := executor.Exec(ctx, query,
		a.ID,
		a.NodeID,
		a.Principal,
		string(a.PrincipalKind),
		string(a.Role),
	)
	if err != nil {
		return fmt.Errorf("grant role: %w", err)
	}

	return nil
}

// Revoke removes an assignment
func (r *PostgresRoleRepository) Revoke(ctx context.Context, nodeID, principal string, role models.Role) error {
	query := fmt.Sprintf(`
		DELETE FROM %s WHERE node_id = $1 AND principal = $2 AND role = $3
	`, r.tables.RoleAssignments)

	executor := GetExecutor(ctx, r.pool)
	if _, err := executor.Exec(ctx, query, nodeID, principal, string(role)); err != nil {
		return fmt.Errorf("revoke role: %w", err)
	}

	return nil
}

// ListByNode returns the local assignments on a node
func (r *PostgresRoleRepository) ListByNode(ctx context.Context, nodeID string) ([]models.RoleAssignment, error) {
	query := fmt.Sprintf(`
		SELECT id, node_id, principal, principal_kind, role
		FROM %s
		WHERE node_id = $1
		ORDER BY principal ASC
	`, r.tables.RoleAssignments)

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, nodeID)
	if err != nil {
		return nil, fmt.Errorf("list role assignments: %w", err)
	}
	defer rows.Close()

	var assignments []models.RoleAssignment
	for rows.Next() {
		var a models.RoleAssignment
		var kind, role string
		if err := rows.Scan(&a.ID, &a.NodeID, &a.Principal, &kind, &role); err != nil {
			return nil, fmt.Errorf("scan role assignment: %w", err)
		}
		a.PrincipalKind = models.PrincipalKind(kind)
		a.Role = models.Role(role)
		assignments = append(assignments, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate role assignments: %w", err)
	}

	return assignments, nil
}

// DeleteByNodes removes all assignments for the given nodes
func (r *PostgresRoleRepository) DeleteByNodes(ctx context.Context, nodeIDs []string) error {
	if len(nodeIDs) == 0 {
		return nil
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE node_id = ANY($1)`, r.tables.RoleAssignments)

	executor := GetExecutor(ctx, r.pool)
	if _, err := executor.Exec(ctx, query, nodeIDs); err != nil {
		return fmt.Errorf("delete role assignments: %w", err)
	}

	return nil
}

// GroupMembers expands a group to its member user ids
func (r *PostgresRoleRepository) GroupMembers(ctx context.Context, groupID string) ([]string, error) {
	query := fmt.Sprintf(`
		SELECT user_id FROM %s WHERE group_id = $1 ORDER BY user_id ASC
	`, r.tables.GroupMembers)

	return r.queryStrings(ctx, query, groupID)
}

// GroupsOf returns the groups a user belongs to
func (r *PostgresRoleRepository) GroupsOf(ctx context.Context, userID string) ([]string, error) {
	query := fmt.Sprintf(`
		SELECT group_id FROM %s WHERE user_id = $1 ORDER BY group_id ASC
	`, r.tables.GroupMembers)

	return r.queryStrings(ctx, query, userID)
}

// AddGroupMember adds a user to a group; adding twice is a no-op
func (r *PostgresRoleRepository) AddGroupMember(ctx context.Context, groupID, userID string) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (group_id, user_id) VALUES ($1, $2)
		ON CONFLICT (group_id, user_id) DO NOTHING
	`, r.tables.GroupMembers)

	executor := GetExecutor(ctx, r.pool)
	if _, err := executor.Exec(ctx, query, groupID, userID); err != nil {
		return fmt.Errorf("add group member: %w", err)
	}

	return nil
}

// RemoveGroupMember removes a user from a group
func (r *PostgresRoleRepository) RemoveGroupMember(ctx context.Context, groupID, userID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE group_id = $1 AND user_id = $2`, r.tables.GroupMembers)

	executor := GetExecutor(ctx, r.pool)
	if _, err := executor.Exec(ctx, query, groupID, userID); err != nil {
		return fmt.Errorf("remove group member: %w", err)
	}

	return nil
}

func (r *PostgresRoleRepository) queryStrings(ctx context.Context, query string, arg interface{}) ([]string, error) {
	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate: %w", err)
	}

	return out, nil
}
