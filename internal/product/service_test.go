package product_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/opsdesk/storeops/internal"
	"github.com/opsdesk/storeops/internal/audit"
	auditPostgres "github.com/opsdesk/storeops/internal/audit/postgres"
	auditDatamodel "github.com/opsdesk/storeops/internal/core/datamodel/audit"
	productDatamodel "github.com/opsdesk/storeops/internal/core/datamodel/product"
	"github.com/opsdesk/storeops/internal/product"
	productPostgres "github.com/opsdesk/storeops/internal/product/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestProduct(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Product Module Suite")
}

// brokenAuditRepository fails every write, standing in for audit storage
// going away mid-request.
type brokenAuditRepository struct {
	audit.RepositoryAPI
}

func (b *brokenAuditRepository) Insert(ctx context.Context, entry *auditDatamodel.AuditLog) error {
	return errors.New("audit storage unavailable")
}

func (b *brokenAuditRepository) InsertTx(tx *gorm.DB, entry *auditDatamodel.AuditLog) error {
	return errors.New("audit storage unavailable")
}

var _ = Describe("Product Service", func() {
	var (
		ctx          context.Context
		db           *gorm.DB
		auditRepo    audit.RepositoryAPI
		auditService *audit.Service
		repo         product.RepositoryAPI
		service      *product.Service
		actor        internal.Actor
		reqCtx       audit.RequestContext
	)

	newService := func(recorder product.ChangeRecorder) *product.Service {
		return product.NewService(repo, recorder, slog.Default())
	}

	BeforeEach(func() {
		ctx = context.Background()

		var err error
		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(db.AutoMigrate(&productDatamodel.Product{}, &auditDatamodel.AuditLog{})).To(Succeed())

		auditRepo = auditPostgres.NewAuditRepository(db)
		auditService = audit.NewService(auditRepo, slog.Default())
		repo = productPostgres.NewProductRepository(db)
		service = newService(auditService)

		actor = internal.Actor{ID: 42, Email: "manager@example.com", Role: "manager"}
		reqCtx = audit.RequestContext{SourceAddress: "10.0.0.4", ClientAgent: "test-client"}
	})

	createProduct := func() *product.Product {
		created, err := service.Create(ctx, actor, product.CreateProductRequest{
			SKU:           "SKU-001",
			Name:          "Arabica Beans 1kg",
			Description:   "whole bean",
			BasePrice:     185000,
			StockLevel:    40,
			LowStockLimit: 5,
		}, reqCtx)
		Expect(err).NotTo(HaveOccurred())
		return created
	}

	Describe("Create", func() {
		It("persists the product and writes a create audit entry", func() {
			created := createProduct()
			Expect(created.ID).To(BeNumerically(">", 0))
			Expect(created.IsActive).To(BeTrue())
			Expect(created.LowStock).To(BeFalse())

			page, err := auditService.ByEntity(ctx, "Product", "1", audit.Page{})
			Expect(err).NotTo(HaveOccurred())
			Expect(page.Total).To(Equal(int64(1)))
			Expect(page.Entries[0].Action).To(Equal("create"))
			Expect(page.Entries[0].ActorID).To(Equal(int64(42)))

			fields := make([]string, 0, len(page.Entries[0].Changes))
			for _, c := range page.Entries[0].Changes {
				fields = append(fields, c.Field)
			}
			Expect(fields).To(Equal([]string{"sku", "name", "basePrice", "stockLevel"}))
		})

		It("marks products at or below the limit as low stock", func() {
			created, err := service.Create(ctx, actor, product.CreateProductRequest{
				SKU:           "SKU-002",
				Name:          "Robusta Beans 1kg",
				BasePrice:     120000,
				StockLevel:    5,
				LowStockLimit: 5,
			}, reqCtx)
			Expect(err).NotTo(HaveOccurred())
			Expect(created.LowStock).To(BeTrue())
		})

		It("rejects invalid input without touching storage", func() {
			_, err := service.Create(ctx, actor, product.CreateProductRequest{Name: "no sku"}, reqCtx)

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeValidationFailed))

			rows, err := service.GetAll(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(BeEmpty())
		})

		It("reports every invalid field at once", func() {
			_, err := service.Create(ctx, actor, product.CreateProductRequest{
				BasePrice:  -1,
				StockLevel: -1,
			}, reqCtx)

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Message).To(ContainSubstring("sku is required"))
			Expect(appErr.Message).To(ContainSubstring("name is required"))
			Expect(appErr.Message).To(ContainSubstring("base price cannot be negative"))
			Expect(appErr.Message).To(ContainSubstring("stock level cannot be negative"))

			details, ok := appErr.Details.(internal.ValidationErrors)
			Expect(ok).To(BeTrue())
			Expect(details.Errors).To(HaveLen(4))
			Expect(details.Errors[0].Field).To(Equal("sku"))
		})

		It("rolls the product back when the audit write fails", func() {
			broken := newService(audit.NewService(&brokenAuditRepository{}, slog.Default()))

			_, err := broken.Create(ctx, actor, product.CreateProductRequest{
				SKU:        "SKU-003",
				Name:       "Filter Paper",
				BasePrice:  30000,
				StockLevel: 10,
			}, reqCtx)

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeAuditWriteFailed))

			rows, err := service.GetAll(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(BeEmpty())
		})
	})

	Describe("Update", func() {
		var existing *product.Product

		BeforeEach(func() {
			existing = createProduct()
		})

		It("records one field change per modified field, old values first", func() {
			newPrice := int64(195000)
			newStock := int64(3)

			updated, err := service.Update(ctx, actor, existing.ID, product.UpdateProductRequest{
				BasePrice:  &newPrice,
				StockLevel: &newStock,
			}, reqCtx)
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.BasePrice).To(Equal(newPrice))

			page, err := auditService.ByEntity(ctx, "Product", "1", audit.Page{})
			Expect(err).NotTo(HaveOccurred())
			Expect(page.Total).To(Equal(int64(2)))

			entry := page.Entries[0]
			Expect(entry.Action).To(Equal("update"))
			Expect(entry.Changes).To(HaveLen(3))
			Expect(entry.Changes[0].Field).To(Equal("basePrice"))
			Expect(entry.Changes[0].OldValue).To(BeEquivalentTo(185000))
			Expect(entry.Changes[0].NewValue).To(BeEquivalentTo(195000))
			Expect(entry.Changes[1].Field).To(Equal("stockLevel"))
			Expect(entry.Changes[2].Field).To(Equal("lowStock"))
			Expect(entry.Changes[2].OldValue).To(Equal(false))
			Expect(entry.Changes[2].NewValue).To(Equal(true))
		})

		It("recomputes the low stock flag inside the same update", func() {
			newStock := int64(2)
			updated, err := service.Update(ctx, actor, existing.ID, product.UpdateProductRequest{StockLevel: &newStock}, reqCtx)
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.LowStock).To(BeTrue())

			reloaded, err := service.GetByID(ctx, existing.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(reloaded.LowStock).To(BeTrue())
		})

		It("writes no audit entry for a no-op update", func() {
			samePrice := existing.BasePrice
			updated, err := service.Update(ctx, actor, existing.ID, product.UpdateProductRequest{BasePrice: &samePrice}, reqCtx)
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.BasePrice).To(Equal(samePrice))

			page, err := auditService.ByEntity(ctx, "Product", "1", audit.Page{})
			Expect(err).NotTo(HaveOccurred())
			Expect(page.Total).To(Equal(int64(1)))
		})

		It("returns not found for an unknown id", func() {
			name := "Renamed"
			_, err := service.Update(ctx, actor, 9999, product.UpdateProductRequest{Name: &name}, reqCtx)

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeProductNotFound))
		})

		It("rolls the update back when the audit write fails", func() {
			broken := newService(audit.NewService(&brokenAuditRepository{}, slog.Default()))

			newName := "Renamed Beans"
			_, err := broken.Update(ctx, actor, existing.ID, product.UpdateProductRequest{Name: &newName}, reqCtx)

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeAuditWriteFailed))

			reloaded, err := service.GetByID(ctx, existing.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(reloaded.Name).To(Equal("Arabica Beans 1kg"))
		})
	})
})
