package model

import "github.com/shopspring/decimal"

type Invoice struct {
	BaseModel
	InvoiceNumber string          `db:"invoice_number" json:"invoice_number"`
	CustomerID    string          `db:"customer_id" json:"customer_id"`
	Subtotal      decimal.Decimal `db:"subtotal" json:"subtotal"`
	CGSTAmount    decimal.Decimal `db:"cgst_amount" json:"cgst_amount"`
	SGSTAmount    decimal.Decimal `db:"sgst_amount" json:"sgst_amount"`
	IGSTAmount    decimal.Decimal `db:"igst_amount" json:"igst_amount"`
	TotalTax      decimal.Decimal `db:"total_tax" json:"total_tax"`
	TotalAmount   decimal.Decimal `db:"total_amount" json:"total_amount"`
	Currency      string          `db:"currency" json:"currency"`
	IssuedBy      *string         `db:"issued_by" json:"issued_by"`
}

type InvoiceItem struct {
	ID          string          `db:"id" json:"id"`
	InvoiceID   string          `db:"invoice_id" json:"invoice_id"`
	Position    int             `db:"position" json:"position"`
	ProductID   *string         `db:"product_id" json:"product_id"`
	Description *string         `db:"description" json:"description"`
	Qty         int             `db:"qty" json:"qty"`
	UnitPrice   decimal.Decimal `db:"unit_price" json:"unit_price"`
	TaxPercent  decimal.Decimal `db:"tax_percent" json:"tax_percent"`
	LineTotal   decimal.Decimal `db:"line_total" json:"line_total"`
}
