package product

import "time"

type Product struct {
	ID            int64     `gorm:"primaryKey"`
	SKU           string    `gorm:"column:sku;uniqueIndex;not null"`
	Name          string    `gorm:"column:name;not null"`
	Description   string    `gorm:"column:description"`
	BasePrice     int64     `gorm:"column:base_price;not null"`
	StockLevel    int64     `gorm:"column:stock_level;not null;default:0"`
	LowStockLimit int64     `gorm:"column:low_stock_limit;not null;default:0"`
	LowStock      bool      `gorm:"column:low_stock;default:false"`
	IsActive      bool      `gorm:"column:is_active;default:true"`
	CreatedAt     time.Time `gorm:"column:created_at"`
	UpdatedAt     time.Time `gorm:"column:updated_at"`
}

func (Product) TableName() string {
	return "products"
}
