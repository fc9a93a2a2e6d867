package postgres

import (
	"context"

	productDatamodel "github.com/opsdesk/storeops/internal/core/datamodel/product"
	"github.com/opsdesk/storeops/internal/product"
	"gorm.io/gorm"
)

type ProductRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) product.RepositoryAPI {
	return &ProductRepository{db: db}
}

func (r *ProductRepository) GetAll(ctx context.Context) ([]*productDatamodel.Product, error) {
	var products []*productDatamodel.Product
	err := r.db.WithContext(ctx).Order("sku ASC").Find(&products).Error
	return products, err
}

func (r *ProductRepository) GetByID(ctx context.Context, id int64) (*productDatamodel.Product, error) {
	var p productDatamodel.Product
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (r *ProductRepository) Create(ctx context.Context, p *productDatamodel.Product) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *ProductRepository) Update(ctx context.Context, p *productDatamodel.Product) error {
	return r.db.WithContext(ctx).Save(p).Error
}

// InTransaction runs fn against a repository bound to one transaction; the
// raw handle is passed along for the audit writer.
func (r *ProductRepository) InTransaction(ctx context.Context, fn func(repo product.RepositoryAPI, tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&ProductRepository{db: tx}, tx)
	})
}
