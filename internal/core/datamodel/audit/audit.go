package audit

import (
	"time"

	"gorm.io/datatypes"
)

// AuditLog is append-only: the repository exposes no update or delete for it.
// Entity references are type+id only, with no foreign key, so history stays
// readable after the entity itself is gone.
type AuditLog struct {
	ID            int64          `gorm:"primaryKey"`
	ActorID       int64          `gorm:"column:actor_id;not null;index:idx_audit_logs_actor_time,priority:1"`
	ActorEmail    string         `gorm:"column:actor_email;not null"`
	ActorRole     string         `gorm:"column:actor_role;not null"`
	Action        string         `gorm:"column:action;not null;index:idx_audit_logs_action_time,priority:1"`
	EntityType    string         `gorm:"column:entity_type;not null;index:idx_audit_logs_entity_time,priority:1"`
	EntityID      string         `gorm:"column:entity_id;not null;index:idx_audit_logs_entity_time,priority:2"`
	Changes       datatypes.JSON `gorm:"column:changes"`
	SourceAddress string         `gorm:"column:source_address"`
	ClientAgent   string         `gorm:"column:client_agent"`
	CreatedAt     time.Time      `gorm:"column:created_at;index;index:idx_audit_logs_actor_time,priority:2;index:idx_audit_logs_action_time,priority:2;index:idx_audit_logs_entity_time,priority:3"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}
