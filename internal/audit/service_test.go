package audit_test

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/opsdesk/storeops/internal"
	"github.com/opsdesk/storeops/internal/audit"
	auditDatamodel "github.com/opsdesk/storeops/internal/core/datamodel/audit"
	"gorm.io/gorm"
)

func TestAudit(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Audit Module Suite")
}

type mockRepository struct {
	rows     []*auditDatamodel.AuditLog
	failWith error
	nextID   int64
}

func (m *mockRepository) Insert(ctx context.Context, entry *auditDatamodel.AuditLog) error {
	if m.failWith != nil {
		return m.failWith
	}
	m.nextID++
	entry.ID = m.nextID
	m.rows = append(m.rows, entry)
	return nil
}

func (m *mockRepository) InsertTx(tx *gorm.DB, entry *auditDatamodel.AuditLog) error {
	return m.Insert(context.Background(), entry)
}

func (m *mockRepository) ByEntity(ctx context.Context, entityType, entityID string, limit, offset int) ([]*auditDatamodel.AuditLog, int64, error) {
	if m.failWith != nil {
		return nil, 0, m.failWith
	}
	var matched []*auditDatamodel.AuditLog
	for _, row := range m.rows {
		if row.EntityType == entityType && row.EntityID == entityID {
			matched = append(matched, row)
		}
	}
	return window(matched, limit, offset), int64(len(matched)), nil
}

func (m *mockRepository) ByActor(ctx context.Context, actorID int64, limit, offset int) ([]*auditDatamodel.AuditLog, int64, error) {
	var matched []*auditDatamodel.AuditLog
	for _, row := range m.rows {
		if row.ActorID == actorID {
			matched = append(matched, row)
		}
	}
	return window(matched, limit, offset), int64(len(matched)), nil
}

func (m *mockRepository) ByAction(ctx context.Context, action string, limit, offset int) ([]*auditDatamodel.AuditLog, int64, error) {
	var matched []*auditDatamodel.AuditLog
	for _, row := range m.rows {
		if row.Action == action {
			matched = append(matched, row)
		}
	}
	return window(matched, limit, offset), int64(len(matched)), nil
}

func window(rows []*auditDatamodel.AuditLog, limit, offset int) []*auditDatamodel.AuditLog {
	if offset >= len(rows) {
		return nil
	}
	rows = rows[offset:]
	if limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}

var _ = Describe("Audit Service", func() {
	var (
		ctx     context.Context
		repo    *mockRepository
		service *audit.Service
		actor   internal.Actor
		reqCtx  audit.RequestContext
	)

	BeforeEach(func() {
		ctx = context.Background()
		repo = &mockRepository{}
		service = audit.NewService(repo, slog.Default())
		actor = internal.Actor{ID: 42, Email: "manager@example.com", Role: "manager"}
		reqCtx = audit.RequestContext{SourceAddress: "10.0.0.4", ClientAgent: "test-client"}
	})

	Describe("RecordChange", func() {
		It("persists the entry with actor, action and change set", func() {
			changes := []audit.FieldChange{
				{Field: "stockLevel", OldValue: 10, NewValue: 4},
			}

			id, err := service.RecordChange(ctx, actor, "update", "Product", "17", changes, reqCtx)
			Expect(err).NotTo(HaveOccurred())
			Expect(id).To(BeNumerically(">", 0))

			Expect(repo.rows).To(HaveLen(1))
			row := repo.rows[0]
			Expect(row.ActorID).To(Equal(int64(42)))
			Expect(row.ActorEmail).To(Equal("manager@example.com"))
			Expect(row.ActorRole).To(Equal("manager"))
			Expect(row.Action).To(Equal("update"))
			Expect(row.EntityType).To(Equal("Product"))
			Expect(row.EntityID).To(Equal("17"))
			Expect(row.SourceAddress).To(Equal("10.0.0.4"))
			Expect(string(row.Changes)).To(ContainSubstring(`"field":"stockLevel"`))
		})

		It("accepts an empty change set", func() {
			_, err := service.RecordChange(ctx, actor, "revoke", "RolePermission", "staff:orders.view", nil, reqCtx)
			Expect(err).NotTo(HaveOccurred())
			Expect(repo.rows).To(HaveLen(1))
			Expect(string(repo.rows[0].Changes)).To(Equal("[]"))
		})

		It("rejects a missing action or entity reference", func() {
			_, err := service.RecordChange(ctx, actor, "", "Product", "17", nil, reqCtx)

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeInvalidChangeSet))
			Expect(repo.rows).To(BeEmpty())
		})

		It("rejects a change with an empty field name", func() {
			changes := []audit.FieldChange{{Field: "", OldValue: 1, NewValue: 2}}

			_, err := service.RecordChange(ctx, actor, "update", "Product", "17", changes, reqCtx)

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeInvalidChangeSet))
		})

		It("rejects values that cannot be serialized", func() {
			changes := []audit.FieldChange{{Field: "callback", OldValue: nil, NewValue: func() {}}}

			_, err := service.RecordChange(ctx, actor, "update", "Product", "17", changes, reqCtx)

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeInvalidChangeSet))
		})

		It("surfaces a storage failure as an audit write error", func() {
			repo.failWith = errors.New("disk full")

			_, err := service.RecordChange(ctx, actor, "create", "Product", "17", nil, reqCtx)

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeAuditWriteFailed))
			Expect(appErr.Message).To(ContainSubstring("audit recording failed"))
		})
	})

	Describe("history queries", func() {
		BeforeEach(func() {
			for i := 0; i < 3; i++ {
				_, err := service.RecordChange(ctx, actor, "update", "Product", "17",
					[]audit.FieldChange{{Field: "stockLevel", OldValue: i, NewValue: i + 1}}, reqCtx)
				Expect(err).NotTo(HaveOccurred())
			}
			other := internal.Actor{ID: 7, Email: "staff@example.com", Role: "staff"}
			_, err := service.RecordChange(ctx, other, "create", "Product", "18", nil, reqCtx)
			Expect(err).NotTo(HaveOccurred())
		})

		It("returns entity history with decoded change sets and the total", func() {
			page, err := service.ByEntity(ctx, "Product", "17", audit.Page{Page: 1, PerPage: 2})
			Expect(err).NotTo(HaveOccurred())

			Expect(page.Total).To(Equal(int64(3)))
			Expect(page.Entries).To(HaveLen(2))
			Expect(page.Entries[0].Changes).To(HaveLen(1))
			Expect(page.Entries[0].Changes[0].Field).To(Equal("stockLevel"))
		})

		It("filters by actor", func() {
			page, err := service.ByActor(ctx, 7, audit.Page{})
			Expect(err).NotTo(HaveOccurred())

			Expect(page.Total).To(Equal(int64(1)))
			Expect(page.Entries[0].ActorEmail).To(Equal("staff@example.com"))
		})

		It("filters by action", func() {
			page, err := service.ByAction(ctx, "create", audit.Page{})
			Expect(err).NotTo(HaveOccurred())

			Expect(page.Total).To(Equal(int64(1)))
			Expect(page.Entries[0].EntityID).To(Equal("18"))
		})

		It("wraps repository failures", func() {
			repo.failWith = errors.New("connection reset")

			_, err := service.ByEntity(ctx, "Product", "17", audit.Page{})

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeInternal))
		})
	})

	Describe("Page", func() {
		It("applies defaults and caps", func() {
			p := audit.Page{}.Normalize()
			Expect(p.Page).To(Equal(1))
			Expect(p.PerPage).To(Equal(20))

			p = audit.Page{Page: 3, PerPage: 500}.Normalize()
			Expect(p.PerPage).To(Equal(100))
			Expect(p.Offset()).To(Equal(200))
		})
	})
})

var _ = Describe("ContextFromRequest", func() {
	It("prefers the first X-Forwarded-For hop", func() {
		r := httptest.NewRequest(http.MethodGet, "/products", nil)
		r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
		r.Header.Set("User-Agent", "storeops-web")
		r.RemoteAddr = "198.51.100.2:4431"

		rc := audit.ContextFromRequest(r)
		Expect(rc.SourceAddress).To(Equal("203.0.113.9"))
		Expect(rc.ClientAgent).To(Equal("storeops-web"))
	})

	It("falls back to the remote address host", func() {
		r := httptest.NewRequest(http.MethodGet, "/products", nil)
		r.RemoteAddr = "198.51.100.2:4431"

		rc := audit.ContextFromRequest(r)
		Expect(rc.SourceAddress).To(Equal("198.51.100.2"))
	})
})
