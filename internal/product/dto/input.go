package dto

import "github.com/shopspring/decimal"

type CreateProductInput struct {
	Name         string
	SKU          string
	Description  string
	Price        decimal.Decimal
	TaxPercent   *decimal.Decimal
	OpeningStock int
	UnitCost     *decimal.Decimal
	CreatedBy    string
}

type RecordPurchaseInput struct {
	ProductID  string
	Qty        int
	UnitCost   *decimal.Decimal
	SupplierID string
	CreatedBy  string
}
