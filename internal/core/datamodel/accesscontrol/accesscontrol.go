package accesscontrol

import "time"

// Permission is the persisted mirror of a registry definition. Rows are
// created by seeding and only ever toggled via is_active; audit history may
// reference codes long after they stop being granted.
type Permission struct {
	ID          int64     `gorm:"primaryKey"`
	Code        string    `gorm:"column:code;uniqueIndex;not null"`
	Module      string    `gorm:"column:module;not null"`
	Action      string    `gorm:"column:action;not null"`
	Description string    `gorm:"column:description"`
	IsActive    bool      `gorm:"column:is_active;default:true"`
	CreatedAt   time.Time `gorm:"column:created_at"`
}

func (Permission) TableName() string {
	return "permissions"
}

// RolePermission is one explicit grant. The unique index on (role, code) is
// what makes grant/revoke and concurrent seeding safe.
type RolePermission struct {
	ID             int64     `gorm:"primaryKey"`
	Role           string    `gorm:"column:role;not null;uniqueIndex:idx_role_permissions_role_code"`
	PermissionCode string    `gorm:"column:permission_code;not null;uniqueIndex:idx_role_permissions_role_code"`
	GrantedBy      string    `gorm:"column:granted_by"`
	CreatedAt      time.Time `gorm:"column:created_at"`
}

func (RolePermission) TableName() string {
	return "role_permissions"
}

// RoleState marks a role as having been configured at least once. It is how
// an explicitly emptied grant set is told apart from a role nobody has
// touched, which still falls back to the default template.
type RoleState struct {
	ID            int64     `gorm:"primaryKey"`
	Role          string    `gorm:"column:role;uniqueIndex;not null"`
	InitializedAt time.Time `gorm:"column:initialized_at"`
}

func (RoleState) TableName() string {
	return "role_states"
}
