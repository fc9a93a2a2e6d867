package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/opsdesk/storeops/internal"
	auditDatamodel "github.com/opsdesk/storeops/internal/core/datamodel/audit"
	"gorm.io/gorm"
)

type RepositoryAPI interface {
	Insert(ctx context.Context, entry *auditDatamodel.AuditLog) error
	InsertTx(tx *gorm.DB, entry *auditDatamodel.AuditLog) error
	ByEntity(ctx context.Context, entityType, entityID string, limit, offset int) ([]*auditDatamodel.AuditLog, int64, error)
	ByActor(ctx context.Context, actorID int64, limit, offset int) ([]*auditDatamodel.AuditLog, int64, error)
	ByAction(ctx context.Context, action string, limit, offset int) ([]*auditDatamodel.AuditLog, int64, error)
}

// Page is the query window for audit history. Results are always ordered
// newest first.
type Page struct {
	Page    int
	PerPage int
}

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PerPage < 1 {
		p.PerPage = defaultPerPage
	}
	if p.PerPage > maxPerPage {
		p.PerPage = maxPerPage
	}
	return p
}

func (p Page) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// HistoryPage is one page of audit history plus the total match count.
type HistoryPage struct {
	Entries []*Entry `json:"entries"`
	Total   int64    `json:"total"`
	Page    int      `json:"page"`
	PerPage int      `json:"per_page"`
}

// Service is the audit log writer and its query surface. Writes are pure
// appends; a failed write is propagated so the mutation that triggered it
// aborts rather than commit without its record.
type Service struct {
	repo   RepositoryAPI
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// RecordChange appends one audit entry and returns its id. Use
// RecordChangeTx when the entry must commit or roll back with a surrounding
// domain mutation.
func (s *Service) RecordChange(ctx context.Context, actor internal.Actor, action, entityType, entityID string, changes []FieldChange, reqCtx RequestContext) (int64, error) {
	row, appErr := s.buildRow(actor, action, entityType, entityID, changes, reqCtx)
	if appErr != nil {
		return 0, appErr
	}

	if err := s.repo.Insert(ctx, row); err != nil {
		return 0, s.writeFailure(ctx, err, action, entityType, entityID)
	}
	return row.ID, nil
}

// RecordChangeTx appends one audit entry inside the caller's transaction.
// When the insert fails the returned error aborts the transaction, which is
// the documented policy: no mutation is durably applied without its audit
// record.
func (s *Service) RecordChangeTx(tx *gorm.DB, actor internal.Actor, action, entityType, entityID string, changes []FieldChange, reqCtx RequestContext) (int64, error) {
	row, appErr := s.buildRow(actor, action, entityType, entityID, changes, reqCtx)
	if appErr != nil {
		return 0, appErr
	}

	if err := s.repo.InsertTx(tx, row); err != nil {
		return 0, s.writeFailure(tx.Statement.Context, err, action, entityType, entityID)
	}
	return row.ID, nil
}

func (s *Service) buildRow(actor internal.Actor, action, entityType, entityID string, changes []FieldChange, reqCtx RequestContext) (*auditDatamodel.AuditLog, *internal.AppError) {
	if action == "" || entityType == "" || entityID == "" {
		return nil, internal.NewValidationError("action, entity type and entity id are required", internal.ErrCodeInvalidChangeSet)
	}
	if appErr := ValidateChanges(changes); appErr != nil {
		return nil, appErr
	}

	payload, err := marshalChanges(changes)
	if err != nil {
		return nil, internal.NewValidationError("change set is not serializable", internal.ErrCodeInvalidChangeSet).WithCause(err)
	}

	return &auditDatamodel.AuditLog{
		ActorID:       actor.ID,
		ActorEmail:    actor.Email,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Changes:       payload,
		SourceAddress: reqCtx.SourceAddress,
		ClientAgent:   reqCtx.ClientAgent,
		CreatedAt:     s.now(),
	}, nil
}

// writeFailure logs the operational alarm and wraps the storage error in the
// single combined failure callers surface to users.
func (s *Service) writeFailure(ctx context.Context, err error, action, entityType, entityID string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.logger.ErrorContext(ctx, "audit write failed",
		"action", action,
		"entity_type", entityType,
		"entity_id", entityID,
		"error", err)
	return internal.NewAuditWriteError(err)
}

func (s *Service) ByEntity(ctx context.Context, entityType, entityID string, page Page) (*HistoryPage, error) {
	page = page.Normalize()
	rows, total, err := s.repo.ByEntity(ctx, entityType, entityID, page.PerPage, page.Offset())
	if err != nil {
		return nil, internal.NewInternalError("failed to query audit history by entity", err)
	}
	return s.toHistoryPage(rows, total, page)
}

func (s *Service) ByActor(ctx context.Context, actorID int64, page Page) (*HistoryPage, error) {
	page = page.Normalize()
	rows, total, err := s.repo.ByActor(ctx, actorID, page.PerPage, page.Offset())
	if err != nil {
		return nil, internal.NewInternalError("failed to query audit history by actor", err)
	}
	return s.toHistoryPage(rows, total, page)
}

func (s *Service) ByAction(ctx context.Context, action string, page Page) (*HistoryPage, error) {
	page = page.Normalize()
	rows, total, err := s.repo.ByAction(ctx, action, page.PerPage, page.Offset())
	if err != nil {
		return nil, internal.NewInternalError("failed to query audit history by action", err)
	}
	return s.toHistoryPage(rows, total, page)
}

func (s *Service) toHistoryPage(rows []*auditDatamodel.AuditLog, total int64, page Page) (*HistoryPage, error) {
	entries := make([]*Entry, 0, len(rows))
	for _, row := range rows {
		entry, err := FromDataModel(row)
		if err != nil {
			return nil, internal.NewInternalError("failed to decode audit entry", err)
		}
		entries = append(entries, entry)
	}
	return &HistoryPage{
		Entries: entries,
		Total:   total,
		Page:    page.Page,
		PerPage: page.PerPage,
	}, nil
}
