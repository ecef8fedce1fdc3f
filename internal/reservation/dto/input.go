package dto

type ReserveInput struct {
	ProductID string
	Qty       int
	InvoiceID string
	CreatedBy string
}

// Release reasons recorded in reservation meta.
const (
	ReasonInvoiceFailed = "invoice_failed"
	ReasonCompensation  = "compensation"
	ReasonExpired       = "expired"
	ReasonManual        = "manual"
)
