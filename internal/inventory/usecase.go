package inventory

import (
	"context"

	"github.com/fekuna/omnipos-billing-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-billing-service/internal/model"
)

// UseCase is the stock ledger.
type UseCase interface {
	GetAvailability(ctx context.Context, productID string) (*model.Availability, error)
	RecordMovement(ctx context.Context, input *dto.RecordMovementInput) (*model.StockMovement, error)
	// DecrementDirect lowers on-hand without a reservation and returns how
	// many units were actually removed.
	DecrementDirect(ctx context.Context, input *dto.DecrementInput) (int, error)
	Reconcile(ctx context.Context, productID string) (*model.Reconciliation, error)
	ListMovements(ctx context.Context, filters *dto.MovementFilters) ([]model.StockMovement, int, error)
}
