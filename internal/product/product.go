package product

import (
	"time"

	"github.com/opsdesk/storeops/internal"
	productDatamodel "github.com/opsdesk/storeops/internal/core/datamodel/product"
)

type Product struct {
	ID            int64     `json:"id"`
	SKU           string    `json:"sku"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	BasePrice     int64     `json:"base_price"`
	StockLevel    int64     `json:"stock_level"`
	LowStockLimit int64     `json:"low_stock_limit"`
	LowStock      bool      `json:"low_stock"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Normalize recomputes derived fields from primary ones. It runs inside the
// same transaction as the write that triggered it, as an explicit step
// rather than a storage hook, so it stays callable and testable on its own.
func (p *Product) Normalize() {
	p.LowStock = p.StockLevel <= p.LowStockLimit
}

// Validate reports every field problem at once rather than the first one
// found.
func (p *Product) Validate() *internal.AppError {
	var v internal.ValidationErrors
	fail := func(field, message string) {
		v.Errors = append(v.Errors, internal.ValidationError{
			Field:   field,
			Message: message,
			Code:    string(internal.ErrCodeValidationFailed),
		})
	}

	if p.SKU == "" {
		fail("sku", "sku is required")
	}
	if p.Name == "" {
		fail("name", "name is required")
	}
	if p.BasePrice < 0 {
		fail("base_price", "base price cannot be negative")
	}
	if p.StockLevel < 0 {
		fail("stock_level", "stock level cannot be negative")
	}

	if len(v.Errors) == 0 {
		return nil
	}
	return internal.NewValidationError(v.Join(), internal.ErrCodeValidationFailed).WithDetails(v)
}

func ToDataModel(p *Product) *productDatamodel.Product {
	return &productDatamodel.Product{
		ID:            p.ID,
		SKU:           p.SKU,
		Name:          p.Name,
		Description:   p.Description,
		BasePrice:     p.BasePrice,
		StockLevel:    p.StockLevel,
		LowStockLimit: p.LowStockLimit,
		LowStock:      p.LowStock,
		IsActive:      p.IsActive,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func FromDataModel(m *productDatamodel.Product) *Product {
	return &Product{
		ID:            m.ID,
		SKU:           m.SKU,
		Name:          m.Name,
		Description:   m.Description,
		BasePrice:     m.BasePrice,
		StockLevel:    m.StockLevel,
		LowStockLimit: m.LowStockLimit,
		LowStock:      m.LowStock,
		IsActive:      m.IsActive,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}
