package product

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/opsdesk/storeops/internal"
	"github.com/opsdesk/storeops/internal/audit"
	productDatamodel "github.com/opsdesk/storeops/internal/core/datamodel/product"
	"gorm.io/gorm"
)

type RepositoryAPI interface {
	GetAll(ctx context.Context) ([]*productDatamodel.Product, error)
	GetByID(ctx context.Context, id int64) (*productDatamodel.Product, error)
	Create(ctx context.Context, p *productDatamodel.Product) error
	Update(ctx context.Context, p *productDatamodel.Product) error
	InTransaction(ctx context.Context, fn func(repo RepositoryAPI, tx *gorm.DB) error) error
}

// ChangeRecorder is the audit writer surface this module needs. The entry
// and the mutation share one transaction: if audit recording fails the
// product change rolls back with it.
type ChangeRecorder interface {
	RecordChangeTx(tx *gorm.DB, actor internal.Actor, action, entityType, entityID string, changes []audit.FieldChange, reqCtx audit.RequestContext) (int64, error)
}

const entityType = "Product"

type Service struct {
	repo    RepositoryAPI
	auditor ChangeRecorder
	logger  *slog.Logger
}

func NewService(repo RepositoryAPI, auditor ChangeRecorder, logger *slog.Logger) *Service {
	return &Service{
		repo:    repo,
		auditor: auditor,
		logger:  logger,
	}
}

func (s *Service) GetAll(ctx context.Context) ([]*Product, error) {
	rows, err := s.repo.GetAll(ctx)
	if err != nil {
		s.logger.Error("failed to list products", "error", err)
		return nil, internal.NewInternalError("failed to list products", err)
	}

	products := make([]*Product, 0, len(rows))
	for _, row := range rows {
		products = append(products, FromDataModel(row))
	}
	return products, nil
}

func (s *Service) GetByID(ctx context.Context, id int64) (*Product, error) {
	row, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("failed to load product", "error", err, "product_id", id)
		return nil, internal.NewInternalError("failed to load product", err)
	}
	if row == nil {
		return nil, internal.ErrProductNotFound
	}
	return FromDataModel(row), nil
}

func (s *Service) Create(ctx context.Context, actor internal.Actor, req CreateProductRequest, reqCtx audit.RequestContext) (*Product, error) {
	now := time.Now()
	p := &Product{
		SKU:           req.SKU,
		Name:          req.Name,
		Description:   req.Description,
		BasePrice:     req.BasePrice,
		StockLevel:    req.StockLevel,
		LowStockLimit: req.LowStockLimit,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	p.Normalize()
	if appErr := p.Validate(); appErr != nil {
		return nil, appErr
	}

	model := ToDataModel(p)
	err := s.repo.InTransaction(ctx, func(repo RepositoryAPI, tx *gorm.DB) error {
		if err := repo.Create(ctx, model); err != nil {
			return err
		}

		changes := []audit.FieldChange{
			{Field: "sku", OldValue: nil, NewValue: model.SKU},
			{Field: "name", OldValue: nil, NewValue: model.Name},
			{Field: "basePrice", OldValue: nil, NewValue: model.BasePrice},
			{Field: "stockLevel", OldValue: nil, NewValue: model.StockLevel},
		}
		_, err := s.auditor.RecordChangeTx(tx, actor, "create", entityType, strconv.FormatInt(model.ID, 10), changes, reqCtx)
		return err
	})
	if err != nil {
		if appErr, ok := internal.IsAppError(err); ok {
			return nil, appErr
		}
		s.logger.Error("failed to create product", "error", err, "sku", req.SKU)
		return nil, internal.NewInternalError("failed to create product", err)
	}

	return FromDataModel(model), nil
}

// Update applies the requested field changes, recomputes derived fields and
// writes the audit entry, all in one transaction. A no-op update (nothing
// actually changed) writes no audit entry.
func (s *Service) Update(ctx context.Context, actor internal.Actor, id int64, req UpdateProductRequest, reqCtx audit.RequestContext) (*Product, error) {
	var updated *Product

	err := s.repo.InTransaction(ctx, func(repo RepositoryAPI, tx *gorm.DB) error {
		row, err := repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if row == nil {
			return internal.ErrProductNotFound
		}

		p := FromDataModel(row)
		changes := applyUpdate(p, req)
		p.Normalize()
		if p.LowStock != row.LowStock {
			changes = append(changes, audit.FieldChange{Field: "lowStock", OldValue: row.LowStock, NewValue: p.LowStock})
		}
		if appErr := p.Validate(); appErr != nil {
			return appErr
		}

		if len(changes) == 0 {
			updated = p
			return nil
		}

		p.UpdatedAt = time.Now()
		if err := repo.Update(ctx, ToDataModel(p)); err != nil {
			return err
		}

		if _, err := s.auditor.RecordChangeTx(tx, actor, "update", entityType, strconv.FormatInt(p.ID, 10), changes, reqCtx); err != nil {
			return err
		}

		updated = p
		return nil
	})
	if err != nil {
		if appErr, ok := internal.IsAppError(err); ok {
			return nil, appErr
		}
		s.logger.Error("failed to update product", "error", err, "product_id", id)
		return nil, internal.NewInternalError("failed to update product", err)
	}

	return updated, nil
}

// applyUpdate mutates p per the request and returns the diffs in field
// order, old values captured before the write.
func applyUpdate(p *Product, req UpdateProductRequest) []audit.FieldChange {
	var changes []audit.FieldChange

	if req.Name != nil && *req.Name != p.Name {
		changes = append(changes, audit.FieldChange{Field: "name", OldValue: p.Name, NewValue: *req.Name})
		p.Name = *req.Name
	}
	if req.Description != nil && *req.Description != p.Description {
		changes = append(changes, audit.FieldChange{Field: "description", OldValue: p.Description, NewValue: *req.Description})
		p.Description = *req.Description
	}
	if req.BasePrice != nil && *req.BasePrice != p.BasePrice {
		changes = append(changes, audit.FieldChange{Field: "basePrice", OldValue: p.BasePrice, NewValue: *req.BasePrice})
		p.BasePrice = *req.BasePrice
	}
	if req.StockLevel != nil && *req.StockLevel != p.StockLevel {
		changes = append(changes, audit.FieldChange{Field: "stockLevel", OldValue: p.StockLevel, NewValue: *req.StockLevel})
		p.StockLevel = *req.StockLevel
	}
	if req.LowStockLimit != nil && *req.LowStockLimit != p.LowStockLimit {
		changes = append(changes, audit.FieldChange{Field: "lowStockLimit", OldValue: p.LowStockLimit, NewValue: *req.LowStockLimit})
		p.LowStockLimit = *req.LowStockLimit
	}
	if req.IsActive != nil && *req.IsActive != p.IsActive {
		changes = append(changes, audit.FieldChange{Field: "isActive", OldValue: p.IsActive, NewValue: *req.IsActive})
		p.IsActive = *req.IsActive
	}

	return changes
}
