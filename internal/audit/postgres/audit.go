package postgres

import (
	"context"

	"github.com/opsdesk/storeops/internal/audit"
	auditDatamodel "github.com/opsdesk/storeops/internal/core/datamodel/audit"
	"gorm.io/gorm"
)

// queryOrder: newest first; id breaks ties between equal timestamps so
// entries written in the same instant read back in insertion order.
const queryOrder = "created_at DESC, id ASC"

type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) audit.RepositoryAPI {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Insert(ctx context.Context, entry *auditDatamodel.AuditLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *AuditRepository) InsertTx(tx *gorm.DB, entry *auditDatamodel.AuditLog) error {
	return tx.Create(entry).Error
}

func (r *AuditRepository) ByEntity(ctx context.Context, entityType, entityID string, limit, offset int) ([]*auditDatamodel.AuditLog, int64, error) {
	query := r.db.WithContext(ctx).
		Model(&auditDatamodel.AuditLog{}).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID)
	return r.page(query, limit, offset)
}

func (r *AuditRepository) ByActor(ctx context.Context, actorID int64, limit, offset int) ([]*auditDatamodel.AuditLog, int64, error) {
	query := r.db.WithContext(ctx).
		Model(&auditDatamodel.AuditLog{}).
		Where("actor_id = ?", actorID)
	return r.page(query, limit, offset)
}

func (r *AuditRepository) ByAction(ctx context.Context, action string, limit, offset int) ([]*auditDatamodel.AuditLog, int64, error) {
	query := r.db.WithContext(ctx).
		Model(&auditDatamodel.AuditLog{}).
		Where("action = ?", action)
	return r.page(query, limit, offset)
}

func (r *AuditRepository) page(query *gorm.DB, limit, offset int) ([]*auditDatamodel.AuditLog, int64, error) {
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []*auditDatamodel.AuditLog
	err := query.Order(queryOrder).Limit(limit).Offset(offset).Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}
