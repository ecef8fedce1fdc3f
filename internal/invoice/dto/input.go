package dto

import "github.com/shopspring/decimal"

type SaleLine struct {
	ProductID   string
	Description string
	Qty         int
	UnitPrice   decimal.Decimal
	// TaxPercent falls back to the product's rate when nil.
	TaxPercent *decimal.Decimal
}

type CreateSaleInput struct {
	CustomerID string
	IssuedBy   string
	Lines      []SaleLine
}
