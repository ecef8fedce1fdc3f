package dto

import (
	"time"

	"github.com/fekuna/omnipos-billing-service/internal/model"
	"github.com/shopspring/decimal"
)

type SaleResult struct {
	Invoice *model.Invoice
	Items   []model.InvoiceItem
	// ItemsPersisted is false when the invoice was written but its items
	// were not.
	ItemsPersisted bool
	// Oversold lists products sold through the direct decrement path.
	Oversold []string
	// UnconsumedReservations lists reservations whose consumption failed
	// after the invoice was committed.
	UnconsumedReservations []string
}

type InvoiceDetail struct {
	Invoice *model.Invoice      `json:"invoice"`
	Items   []model.InvoiceItem `json:"items"`
}

const (
	EventSaleRequested  = "SaleRequested"
	EventInvoiceCreated = "InvoiceCreated"
)

type SaleRequestedEvent struct {
	EventID   string             `json:"event_id"`
	EventType string             `json:"event_type"`
	Payload   SaleRequestPayload `json:"payload"`
	Timestamp time.Time          `json:"timestamp"`
}

type SaleRequestPayload struct {
	CustomerID string                   `json:"customer_id"`
	IssuedBy   string                   `json:"issued_by"`
	Lines      []SaleRequestLinePayload `json:"lines"`
}

type SaleRequestLinePayload struct {
	ProductID   string           `json:"product_id"`
	Description string           `json:"description"`
	Qty         int              `json:"qty"`
	UnitPrice   decimal.Decimal  `json:"unit_price"`
	TaxPercent  *decimal.Decimal `json:"tax_percent"`
}

type InvoiceCreatedEvent struct {
	EventID   string        `json:"event_id"`
	EventType string        `json:"event_type"`
	Payload   InvoiceDetail `json:"payload"`
	Timestamp time.Time     `json:"timestamp"`
}
