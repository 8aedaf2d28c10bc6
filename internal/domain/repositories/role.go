package repositories

import (
	"context"

	"contentvault/internal/domain/models"
)

// RoleRepository persists role assignments and the group directory.
type RoleRepository interface {
	// Grant records a (principal, role, node) assignment. Granting an
	// existing assignment is a no-op.
	Grant(ctx context.Context, a *models.RoleAssignment) error

	// Revoke removes an assignment
	Revoke(ctx context.Context, nodeID, principal string, role models.Role) error

	// ListByNode returns the local assignments on a node
	ListByNode(ctx context.Context, nodeID string) ([]models.RoleAssignment, error)

	// DeleteByNodes removes all assignments for the given nodes, used when
	// a subtree is destroyed.
	DeleteByNodes(ctx context.Context, nodeIDs []string) error

	// GroupMembers expands a group to its member user ids
	GroupMembers(ctx context.Context, groupID string) ([]string, error)

	// GroupsOf returns the groups a user belongs to
	GroupsOf(ctx context.Context, userID string) ([]string, error)

	// AddGroupMember / RemoveGroupMember maintain the group directory
	AddGroupMember(ctx context.Context, groupID, userID string) error
	RemoveGroupMember(ctx context.Context, groupID, userID string) error
}
