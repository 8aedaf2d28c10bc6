package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"contentvault/internal/domain"
	"contentvault/internal/domain/models"
	"contentvault/internal/domain/repositories"
	"contentvault/internal/domain/services"
)

type securityService struct {
	folderRepo repositories.FolderRepository
	docRepo    repositories.DocumentRepository
	roleRepo   repositories.RoleRepository
	txManager  repositories.TransactionManager
	reindex    services.ReindexScheduler
	logger     *slog.Logger
}

// NewSecurity creates the security role inheritance engine
func NewSecurity(
	folderRepo repositories.FolderRepository,
	docRepo repositories.DocumentRepository,
	roleRepo repositories.RoleRepository,
	txManager repositories.TransactionManager,
	reindex services.ReindexScheduler,
	logger *slog.Logger,
) services.Security {
	return &securityService{
		folderRepo: folderRepo,
		docRepo:    docRepo,
		roleRepo:   roleRepo,
		txManager:  txManager,
		reindex:    reindex,
		logger:     logger,
	}
}

// EffectivePrincipals walks from the root down to the node, maintaining a
// running allowed set:
//
//   - a folder with inherit_security=false replaces the running set with
//     its own local assignments (local override, not a merge);
//   - a folder with local assignments intersects the running set with
//     them, rescuing principals excluded only because they were granted
//     individually while belonging to a locally allowed group, and
//     admitting members of newly allowed groups;
//   - a folder with no local assignments passes the set through.
//
// The first node carrying assignments seeds the set. Admin is always in
// the result.
func (s *securityService) EffectivePrincipals(ctx context.Context, nodeID string) (models.PrincipalSet, error) {
	chain, err := s.ancestorChain(ctx, nodeID)
	if err != nil {
		return nil, err
	}

	allowed := models.NewPrincipalSet()
	seeded := false

	for _, link := range chain {
		local, err := s.roleRepo.ListByNode(ctx, link.id)
		if err != nil {
			return nil, err
		}

		switch {
		case !link.inherit:
			// Local override: the running set is discarded, even when
			// the local assignments are empty
			allowed, err = s.expand(ctx, local)
			if err != nil {
				return nil, err
			}
			seeded = true

		case len(local) == 0:
			// Nothing local: inherited set passes through

		case !seeded:
			allowed, err = s.expand(ctx, local)
			if err != nil {
				return nil, err
			}
			seeded = true

		default:
			allowed, err = s.rescueIntersect(ctx, allowed, local)
			if err != nil {
				return nil, err
			}
		}
	}

	allowed.Add(models.AdminPrincipal)
	return allowed, nil
}

// chainLink is one node on the root-to-target walk
type chainLink struct {
	id      string
	inherit bool
}

// ancestorChain resolves the node and returns the root-to-node chain.
// Documents carry no inheritance flag and always inherit.
func (s *securityService) ancestorChain(ctx context.Context, nodeID string) ([]chainLink, error) {
	var chain []chainLink

	folder, err := s.folderRepo.GetByID(ctx, nodeID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		doc, docErr := s.docRepo.GetByID(ctx, nodeID)
		if docErr != nil {
			return nil, docErr
		}
		chain = append(chain, chainLink{id: doc.ID, inherit: true})
		folder, err = s.folderRepo.GetByID(ctx, doc.FolderID)
		if err != nil {
			return nil, err
		}
	}

	for {
		chain = append(chain, chainLink{id: folder.ID, inherit: folder.InheritSecurity})
		if folder.ParentID == nil {
			break
		}
		folder, err = s.folderRepo.GetByID(ctx, *folder.ParentID)
		if err != nil {
			return nil, err
		}
	}

	// Built leaf-first; reverse to walk root-first
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}

	return chain, nil
}

// expand turns local assignments into a principal set, admitting members
// of granted groups alongside the groups themselves.
func (s *securityService) expand(ctx context.Context, local []models.RoleAssignment) (models.PrincipalSet, error) {
	set := models.NewPrincipalSet()
	for _, a := range local {
		set.Add(a.Principal)
		if a.PrincipalKind == models.PrincipalGroup {
			members, err := s.roleRepo.GroupMembers(ctx, a.Principal)
			if err != nil {
				return nil, err
			}
			for _, m := range members {
				set.Add(m)
			}
		}
	}
	return set, nil
}

// rescueIntersect intersects the inherited set with the local assignments.
// Group membership and direct grants are tracked separately, so a plain
// intersection would silently revoke users granted individually above who
// are members of a group allowed here; those are rescued, and members of
// newly allowed groups are admitted.
func (s *securityService) rescueIntersect(ctx context.Context, parent models.PrincipalSet, local []models.RoleAssignment) (models.PrincipalSet, error) {
	next := models.NewPrincipalSet()

	for _, a := range local {
		if parent.Has(a.Principal) {
			next.Add(a.Principal)
		}
		if a.PrincipalKind == models.PrincipalGroup {
			next.Add(a.Principal)
			members, err := s.roleRepo.GroupMembers(ctx, a.Principal)
			if err != nil {
				return nil, err
			}
			for _, m := range members {
				next.Add(m)
			}
		}
	}

	return next, nil
}

// Grant records a local assignment and schedules a reindex: effective
// principals are baked into index documents, not computed at query time.
func (s *securityService) Grant(ctx context.Context, nodeID, principal string, kind models.PrincipalKind, role models.Role) error {
	if err := validateRole(role); err != nil {
		return err
	}
	if principal == "" {
		return fmt.Errorf("%w: principal required", domain.ErrValidation)
	}

	err := s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		if err := s.roleRepo.Grant(txCtx, &models.RoleAssignment{
			NodeID:        nodeID,
			Principal:     principal,
			PrincipalKind: kind,
			Role:          role,
		}); err != nil {
			return err
		}

		s.scheduleReindex(txCtx, nodeID)
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("role granted",
		"node_id", nodeID,
		"principal", principal,
		"role", role,
	)
	return nil
}

// Revoke removes a local assignment and schedules a reindex
func (s *securityService) Revoke(ctx context.Context, nodeID, principal string, role models.Role) error {
	err := s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		if err := s.roleRepo.Revoke(txCtx, nodeID, principal, role); err != nil {
			return err
		}

		s.scheduleReindex(txCtx, nodeID)
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("role revoked",
		"node_id", nodeID,
		"principal", principal,
		"role", role,
	)
	return nil
}

// SetInheritSecurity toggles a folder's inheritance flag and schedules a
// subtree reindex.
func (s *securityService) SetInheritSecurity(ctx context.Context, folderID string, inherit bool) error {
	err := s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		folder, err := s.folderRepo.GetByID(txCtx, folderID)
		if err != nil {
			return err
		}

		folder.InheritSecurity = inherit
		folder.UpdatedAt = time.Now()
		if err := s.folderRepo.Update(txCtx, folder); err != nil {
			return err
		}

		repositories.AfterCommit(txCtx, func(hookCtx context.Context) {
			if err := s.reindex.ReindexSubtree(hookCtx, folderID); err != nil {
				s.logger.Error("subtree reindex failed", "folder_id", folderID, "error", err)
			}
		})
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("inheritance toggled", "folder_id", folderID, "inherit", inherit)
	return nil
}

// PrincipalTokens returns the query-time token set for a user
func (s *securityService) PrincipalTokens(ctx context.Context, userID string, isAdmin bool) ([]string, error) {
	tokens := []string{userID}

	groups, err := s.roleRepo.GroupsOf(ctx, userID)
	if err != nil {
		return nil, err
	}
	tokens = append(tokens, groups...)

	if isAdmin {
		tokens = append(tokens, models.AdminPrincipal)
	}

	return tokens, nil
}

// scheduleReindex defers reindexing to after commit: a folder fans out to
// its subtree, a document reindexes alone.
func (s *securityService) scheduleReindex(txCtx context.Context, nodeID string) {
	_, err := s.folderRepo.GetByID(txCtx, nodeID)
	isFolder := err == nil

	repositories.AfterCommit(txCtx, func(hookCtx context.Context) {
		if isFolder {
			if err := s.reindex.ReindexSubtree(hookCtx, nodeID); err != nil {
				s.logger.Error("subtree reindex failed", "folder_id", nodeID, "error", err)
			}
			return
		}
		s.reindex.ReindexNode(hookCtx, nodeID)
	})
}

func validateRole(role models.Role) error {
	switch role {
	case models.RoleReader, models.RoleWriter, models.RoleManager, models.RoleMember:
		return nil
	}
	return fmt.Errorf("%w: unknown role %q", domain.ErrValidation, role)
}
