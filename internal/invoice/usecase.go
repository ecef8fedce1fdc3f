package invoice

import (
	"context"
	"errors"

	"github.com/fekuna/omnipos-billing-service/internal/invoice/dto"
	"github.com/fekuna/omnipos-billing-service/internal/model"
)

type UseCase interface {
	CreateSale(ctx context.Context, input *dto.CreateSaleInput) (*dto.SaleResult, error)
	GetInvoice(ctx context.Context, invoiceID string) (*dto.InvoiceDetail, error)
}

// Outcome is the single client-facing result of a sale attempt.
type Outcome string

const (
	OutcomeSuccess           Outcome = "success"
	OutcomeInsufficientStock Outcome = "insufficient_stock"
	OutcomeInternalError     Outcome = "internal_error"
)

func Classify(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, model.ErrInsufficient):
		return OutcomeInsufficientStock
	default:
		return OutcomeInternalError
	}
}
