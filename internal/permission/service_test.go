package permission

import (
	"context"
	"log/slog"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/opsdesk/storeops/internal"
	"github.com/opsdesk/storeops/internal/audit"
)

var _ = Describe("AssignmentStore", func() {
	var (
		ctx      context.Context
		registry *Registry
		repo     *mockRepository
		cache    *SnapshotCache
		recorder *mockRecorder
		service  *Service
		admin    internal.Actor
		reqCtx   audit.RequestContext
	)

	BeforeEach(func() {
		ctx = context.Background()
		registry = inventoryRegistry()
		repo = newMockRepository()
		cache = NewSnapshotCache()
		recorder = &mockRecorder{}
		service = NewService(registry, repo, recorder, cache, slog.Default())
		admin = internal.Actor{ID: 1, Email: "admin1@example.com", Role: "admin"}
		reqCtx = audit.RequestContext{SourceAddress: "10.0.0.1", ClientAgent: "test"}
	})

	Describe("Grant", func() {
		It("creates the grant and audits it", func() {
			result, err := service.Grant(ctx, admin, "staff", "inventory.adjust", reqCtx)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Created).To(BeTrue())

			Expect(recorder.calls).To(HaveLen(1))
			Expect(recorder.calls[0].Action).To(Equal("permission.grant"))
			Expect(recorder.calls[0].EntityType).To(Equal("RolePermission"))
			Expect(recorder.calls[0].EntityID).To(Equal("staff:inventory.adjust"))
		})

		It("is idempotent: the second identical grant leaves one row and writes no audit entry", func() {
			_, err := service.Grant(ctx, admin, "staff", "inventory.adjust", reqCtx)
			Expect(err).NotTo(HaveOccurred())

			result, err := service.Grant(ctx, admin, "staff", "inventory.adjust", reqCtx)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Created).To(BeFalse())

			Expect(repo.grants["staff"]).To(HaveLen(1))
			Expect(recorder.calls).To(HaveLen(1))
		})

		It("rejects codes the registry does not know", func() {
			_, err := service.Grant(ctx, admin, "staff", "inventory.transmute", reqCtx)
			Expect(err).To(HaveOccurred())

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeUnknownPermission))
			Expect(repo.grantCount()).To(BeZero())
			Expect(recorder.calls).To(BeEmpty())
		})

		It("fails the grant when the audit write fails", func() {
			recorder.failWith = internal.NewAuditWriteError(nil)

			_, err := service.Grant(ctx, admin, "staff", "inventory.adjust", reqCtx)
			Expect(err).To(HaveOccurred())

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeAuditWriteFailed))
		})
	})

	Describe("Revoke", func() {
		It("removes the grant and audits it", func() {
			_, err := service.Grant(ctx, admin, "staff", "inventory.adjust", reqCtx)
			Expect(err).NotTo(HaveOccurred())

			result, err := service.Revoke(ctx, admin, "staff", "inventory.adjust", reqCtx)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Removed).To(BeTrue())
			Expect(recorder.calls).To(HaveLen(2))
			Expect(recorder.calls[1].Action).To(Equal("permission.revoke"))
		})

		It("treats revoking an absent grant as a successful no-op", func() {
			result, err := service.Revoke(ctx, admin, "staff", "inventory.adjust", reqCtx)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Removed).To(BeFalse())
			Expect(recorder.calls).To(BeEmpty())
		})

		It("marks the role configured even on a no-op", func() {
			_, err := service.Revoke(ctx, admin, "courier", "inventory.view", reqCtx)
			Expect(err).NotTo(HaveOccurred())

			initialized, err := repo.RoleInitialized(ctx, "courier")
			Expect(err).NotTo(HaveOccurred())
			Expect(initialized).To(BeTrue())
		})
	})

	Describe("Seed", func() {
		It("creates one permission row per definition and one grant per template pair", func() {
			err := service.Seed(ctx)
			Expect(err).NotTo(HaveOccurred())

			Expect(repo.permissions).To(HaveLen(len(registry.ListAll())))
			// manager: 2 codes, staff: 1 code
			Expect(repo.grantCount()).To(Equal(3))
		})

		It("is idempotent across repeated runs", func() {
			Expect(service.Seed(ctx)).To(Succeed())
			Expect(service.Seed(ctx)).To(Succeed())

			Expect(repo.permissions).To(HaveLen(len(registry.ListAll())))
			Expect(repo.grantCount()).To(Equal(3))
		})

		It("never restores a grant that was explicitly revoked", func() {
			Expect(service.Seed(ctx)).To(Succeed())

			_, err := service.Revoke(ctx, admin, "staff", "inventory.view", reqCtx)
			Expect(err).NotTo(HaveOccurred())

			Expect(service.Seed(ctx)).To(Succeed())

			grants, err := service.ListForRole(ctx, "staff")
			Expect(err).NotTo(HaveOccurred())
			Expect(grants).To(BeEmpty())
		})

		It("stores the seed marker as granted_by", func() {
			Expect(service.Seed(ctx)).To(Succeed())
			Expect(repo.grants["staff"]["inventory.view"]).To(Equal(SeedGrantedBy))
		})
	})

	Describe("ListForRole", func() {
		It("returns explicit grants only, without template fallback", func() {
			grants, err := service.ListForRole(ctx, "manager")
			Expect(err).NotTo(HaveOccurred())
			Expect(grants).To(BeEmpty())
		})
	})
})

var _ = Describe("Registry", func() {
	It("orders the catalog by module, action, code", func() {
		registry, err := NewRegistry([]Definition{
			{Code: "b.view", Module: "b", Action: "view", IsActive: true},
			{Code: "a.manage", Module: "a", Action: "manage", IsActive: true},
			{Code: "a.adjust", Module: "a", Action: "adjust", IsActive: true},
		}, nil)
		Expect(err).NotTo(HaveOccurred())

		all := registry.ListAll()
		Expect(all[0].Code).To(Equal("a.adjust"))
		Expect(all[1].Code).To(Equal("a.manage"))
		Expect(all[2].Code).To(Equal("b.view"))
	})

	It("rejects duplicate codes", func() {
		_, err := NewRegistry([]Definition{
			{Code: "a.view", Module: "a", Action: "view", IsActive: true},
			{Code: "a.view", Module: "a", Action: "view", IsActive: true},
		}, nil)
		Expect(err).To(HaveOccurred())
	})

	It("rejects templates referencing unknown codes", func() {
		_, err := NewRegistry(
			[]Definition{{Code: "a.view", Module: "a", Action: "view", IsActive: true}},
			map[string][]string{"staff": {"a.manage"}},
		)
		Expect(err).To(HaveOccurred())
	})

	It("builds the default store-operations registry", func() {
		registry, err := DefaultRegistry()
		Expect(err).NotTo(HaveOccurred())
		Expect(registry.ListAll()).NotTo(BeEmpty())

		// admin template covers the whole catalog
		Expect(registry.DefaultGrantsFor(RoleAdmin)).To(HaveLen(len(registry.ListAll())))
	})
})
