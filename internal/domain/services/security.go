package services

import (
	"context"

	"contentvault/internal/domain/models"
)

// Security computes search-index visibility and manages role grants.
// EffectivePrincipals is not the authorization check itself; it exists to
// tag index documents for query-time filtering.
type Security interface {
	// EffectivePrincipals walks the ancestor chain and returns the flat
	// set of principal tokens allowed to see the node.
	EffectivePrincipals(ctx context.Context, nodeID string) (models.PrincipalSet, error)

	// Grant/Revoke change local assignments and schedule a subtree
	// reindex after commit.
	Grant(ctx context.Context, nodeID, principal string, kind models.PrincipalKind, role models.Role) error
	Revoke(ctx context.Context, nodeID, principal string, role models.Role) error

	// SetInheritSecurity toggles a folder's inheritance flag and
	// schedules a subtree reindex after commit.
	SetInheritSecurity(ctx context.Context, folderID string, inherit bool) error

	// PrincipalTokens returns the query-time token set for a user: the
	// user id, their groups, and the admin token for admins.
	PrincipalTokens(ctx context.Context, userID string, isAdmin bool) ([]string, error)
}
