package postgres

import (
	"context"
	"time"

	accessDatamodel "github.com/opsdesk/storeops/internal/core/datamodel/accesscontrol"
	"github.com/opsdesk/storeops/internal/permission"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PermissionRepository struct {
	db *gorm.DB
}

func NewPermissionRepository(db *gorm.DB) permission.RepositoryAPI {
	return &PermissionRepository{db: db}
}

// EnsurePermission is create-if-absent on the code unique key. A constraint
// collision from a concurrent seeder means the row already exists, which is
// success, not failure.
func (r *PermissionRepository) EnsurePermission(ctx context.Context, p *accessDatamodel.Permission) (bool, error) {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoNothing: true,
		}).
		Create(p)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// UpsertGrant inserts the (role, code) grant if absent. The unique
// constraint, not a read-modify-write, is what serializes concurrent
// administrators editing the same role.
func (r *PermissionRepository) UpsertGrant(ctx context.Context, role, code, grantedBy string) (bool, error) {
	grant := &accessDatamodel.RolePermission{
		Role:           role,
		PermissionCode: code,
		GrantedBy:      grantedBy,
		CreatedAt:      time.Now(),
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "role"}, {Name: "permission_code"}},
			DoNothing: true,
		}).
		Create(grant)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *PermissionRepository) DeleteGrant(ctx context.Context, role, code string) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("role = ? AND permission_code = ?", role, code).
		Delete(&accessDatamodel.RolePermission{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *PermissionRepository) ListGrants(ctx context.Context, role string) ([]string, error) {
	var codes []string
	err := r.db.WithContext(ctx).
		Model(&accessDatamodel.RolePermission{}).
		Where("role = ?", role).
		Order("permission_code ASC").
		Pluck("permission_code", &codes).Error
	if err != nil {
		return nil, err
	}
	return codes, nil
}

func (r *PermissionRepository) RoleInitialized(ctx context.Context, role string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&accessDatamodel.RoleState{}).
		Where("role = ?", role).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *PermissionRepository) MarkRoleInitialized(ctx context.Context, role string) error {
	state := &accessDatamodel.RoleState{
		Role:          role,
		InitializedAt: time.Now(),
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "role"}},
			DoNothing: true,
		}).
		Create(state).Error
}

// InTransaction runs fn against a repository bound to one transaction and
// hands the raw handle along so the audit writer can append to the same
// transaction.
func (r *PermissionRepository) InTransaction(ctx context.Context, fn func(repo permission.RepositoryAPI, tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&PermissionRepository{db: tx}, tx)
	})
}
