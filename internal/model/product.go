package model

import "github.com/shopspring/decimal"

type Product struct {
	BaseModel
	ProductCode *string             `db:"product_code" json:"product_code"`
	SKU         *string             `db:"sku" json:"sku"`
	Name        string              `db:"name" json:"name"`
	Description *string             `db:"description" json:"description"`
	Price       decimal.Decimal     `db:"price" json:"price"`
	TaxPercent  decimal.NullDecimal `db:"tax_percent" json:"tax_percent"`
	StockQty    int                 `db:"stock_qty" json:"stock_qty"` // Cached; written only by the stock ledger
}

type Customer struct {
	BaseModel
	CustomerCode *string `db:"customer_code" json:"customer_code"`
	Name         string  `db:"name" json:"name"`
	GSTIN        *string `db:"gstin" json:"gstin"`
	State        *string `db:"state" json:"state"`
}

// Jurisdiction returns the customer's GST state, or "" when unknown.
func (c *Customer) Jurisdiction() string {
	if c == nil || c.State == nil {
		return ""
	}
	return *c.State
}
