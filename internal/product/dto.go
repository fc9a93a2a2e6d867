package product

type CreateProductRequest struct {
	SKU           string `json:"sku"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	BasePrice     int64  `json:"base_price"`
	StockLevel    int64  `json:"stock_level"`
	LowStockLimit int64  `json:"low_stock_limit"`
}

// UpdateProductRequest carries only the fields the caller wants to change;
// nil means leave as-is.
type UpdateProductRequest struct {
	Name          *string `json:"name,omitempty"`
	Description   *string `json:"description,omitempty"`
	BasePrice     *int64  `json:"base_price,omitempty"`
	StockLevel    *int64  `json:"stock_level,omitempty"`
	LowStockLimit *int64  `json:"low_stock_limit,omitempty"`
	IsActive      *bool   `json:"is_active,omitempty"`
}

type ProductsResponse struct {
	Products []*Product `json:"products"`
}
