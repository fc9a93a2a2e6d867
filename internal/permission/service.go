package permission

import (
	"context"
	"log/slog"
	"time"

	"github.com/opsdesk/storeops/internal"
	"github.com/opsdesk/storeops/internal/audit"
	accessDatamodel "github.com/opsdesk/storeops/internal/core/datamodel/accesscontrol"
	"gorm.io/gorm"
)

// SeedGrantedBy is stored as granted_by on rows created by the seeding
// routine, so template-sourced grants stay distinguishable from manual ones.
const SeedGrantedBy = "seed"

type RepositoryAPI interface {
	EnsurePermission(ctx context.Context, p *accessDatamodel.Permission) (created bool, err error)
	UpsertGrant(ctx context.Context, role, code, grantedBy string) (created bool, err error)
	DeleteGrant(ctx context.Context, role, code string) (removed bool, err error)
	ListGrants(ctx context.Context, role string) ([]string, error)
	RoleInitialized(ctx context.Context, role string) (bool, error)
	MarkRoleInitialized(ctx context.Context, role string) error
	InTransaction(ctx context.Context, fn func(repo RepositoryAPI, tx *gorm.DB) error) error
}

// ChangeRecorder is the slice of the audit writer the assignment store needs:
// grants and revokes are state changes and get audited in the same
// transaction that applies them.
type ChangeRecorder interface {
	RecordChangeTx(tx *gorm.DB, actor internal.Actor, action, entityType, entityID string, changes []audit.FieldChange, reqCtx audit.RequestContext) (int64, error)
}

// Service is the role-permission assignment store. Explicit grants layered
// over the registry's static catalog.
type Service struct {
	registry *Registry
	repo     RepositoryAPI
	auditor  ChangeRecorder
	cache    *SnapshotCache
	logger   *slog.Logger
}

func NewService(registry *Registry, repo RepositoryAPI, auditor ChangeRecorder, cache *SnapshotCache, logger *slog.Logger) *Service {
	return &Service{
		registry: registry,
		repo:     repo,
		auditor:  auditor,
		cache:    cache,
		logger:   logger,
	}
}

// Grant adds an explicit grant for (role, code). Idempotent: granting a
// permission the role already holds succeeds without a duplicate row and
// without an audit entry. Unknown codes are a configuration error.
func (s *Service) Grant(ctx context.Context, actor internal.Actor, role, code string, reqCtx audit.RequestContext) (*GrantResult, error) {
	if _, ok := s.registry.Resolve(code); !ok {
		s.logger.ErrorContext(ctx, "grant refers to unregistered permission code",
			"role", role, "code", code, "granted_by", actor.Email)
		return nil, internal.NewUnknownPermissionError(code)
	}

	result := &GrantResult{Role: role, Code: code}
	err := s.repo.InTransaction(ctx, func(repo RepositoryAPI, tx *gorm.DB) error {
		created, err := repo.UpsertGrant(ctx, role, code, actor.Email)
		if err != nil {
			return err
		}
		result.Created = created

		if err := repo.MarkRoleInitialized(ctx, role); err != nil {
			return err
		}

		if created && s.auditor != nil {
			changes := []audit.FieldChange{{Field: "granted", OldValue: false, NewValue: true}}
			if _, err := s.auditor.RecordChangeTx(tx, actor, "permission.grant", "RolePermission", role+":"+code, changes, reqCtx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if appErr, ok := internal.IsAppError(err); ok {
			return nil, appErr
		}
		return nil, internal.NewInternalError("failed to grant permission", err)
	}

	s.cache.Invalidate(role)

	if result.Created {
		s.logger.InfoContext(ctx, "permission granted", "role", role, "code", code, "granted_by", actor.Email)
	}
	return result, nil
}

// Revoke removes an explicit grant. Idempotent: revoking a grant that does
// not exist is a successful no-op. The role is still marked initialized so a
// deliberately emptied role never falls back to the default template.
func (s *Service) Revoke(ctx context.Context, actor internal.Actor, role, code string, reqCtx audit.RequestContext) (*RevokeResult, error) {
	result := &RevokeResult{Role: role, Code: code}
	err := s.repo.InTransaction(ctx, func(repo RepositoryAPI, tx *gorm.DB) error {
		removed, err := repo.DeleteGrant(ctx, role, code)
		if err != nil {
			return err
		}
		result.Removed = removed

		if err := repo.MarkRoleInitialized(ctx, role); err != nil {
			return err
		}

		if removed && s.auditor != nil {
			changes := []audit.FieldChange{{Field: "granted", OldValue: true, NewValue: false}}
			if _, err := s.auditor.RecordChangeTx(tx, actor, "permission.revoke", "RolePermission", role+":"+code, changes, reqCtx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if appErr, ok := internal.IsAppError(err); ok {
			return nil, appErr
		}
		return nil, internal.NewInternalError("failed to revoke permission", err)
	}

	s.cache.Invalidate(role)

	if result.Removed {
		s.logger.InfoContext(ctx, "permission revoked", "role", role, "code", code, "revoked_by", actor.Email)
	}
	return result, nil
}

// ListForRole returns the role's current explicit grants, with no
// default-template fallback.
func (s *Service) ListForRole(ctx context.Context, role string) ([]string, error) {
	return s.repo.ListGrants(ctx, role)
}

// Seed ensures a Permission row exists for every registry definition and
// applies the default template to every role that has never been configured.
// Create-if-absent throughout, so concurrent replicas running Seed at deploy
// time converge on the same state; constraint collisions are treated as
// already-seeded, not failures. Roles already initialized are left alone,
// which is what keeps an explicit revoke from being resurrected by a
// re-seed.
func (s *Service) Seed(ctx context.Context) error {
	start := time.Now()
	var permsCreated, grantsCreated int

	for _, def := range s.registry.ListAll() {
		created, err := s.repo.EnsurePermission(ctx, &accessDatamodel.Permission{
			Code:        def.Code,
			Module:      def.Module,
			Action:      def.Action,
			Description: def.Description,
			IsActive:    def.IsActive,
		})
		if err != nil {
			return internal.NewInternalError("failed to seed permission "+def.Code, err)
		}
		if created {
			permsCreated++
		}
	}

	for _, role := range s.registry.DefaultRoles() {
		initialized, err := s.repo.RoleInitialized(ctx, role)
		if err != nil {
			return internal.NewInternalError("failed to check role state for "+role, err)
		}
		if initialized {
			continue
		}

		for _, code := range s.registry.DefaultGrantsFor(role) {
			created, err := s.repo.UpsertGrant(ctx, role, code, SeedGrantedBy)
			if err != nil {
				return internal.NewInternalError("failed to seed grant "+role+":"+code, err)
			}
			if created {
				grantsCreated++
			}
		}

		// Marker last: a crash mid-seed leaves the role uninitialized and
		// the next run finishes the job.
		if err := s.repo.MarkRoleInitialized(ctx, role); err != nil {
			return internal.NewInternalError("failed to mark role initialized "+role, err)
		}
	}

	s.cache.Reset()

	s.logger.InfoContext(ctx, "permission seeding complete",
		"permissions_created", permsCreated,
		"grants_created", grantsCreated,
		"duration", time.Since(start))
	return nil
}
