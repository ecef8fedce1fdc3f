package inventory

import (
	"context"

	"github.com/fekuna/omnipos-billing-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-billing-service/internal/model"
)

type Repository interface {
	// GetProduct returns nil, nil when the product does not exist.
	GetProduct(ctx context.Context, productID string) (*model.Product, error)
	SumActiveReservations(ctx context.Context, productID string) (int, error)

	// Movements are append-only.
	InsertMovement(ctx context.Context, m *model.StockMovement) error
	SumMovements(ctx context.Context, productID string) (int, error)
	ListMovements(ctx context.Context, filters *dto.MovementFilters) ([]model.StockMovement, int, error)

	// Cached on-hand counter. IncrementStock and DecrementStock are single
	// atomic statements at the store; both return model.ErrNotFound when the
	// product row is absent.
	IncrementStock(ctx context.Context, productID string, delta int) error
	DecrementStock(ctx context.Context, productID string, qty int, allowNegative bool) (before, after int, err error)
	// RebuildStock sets the counter to the ledger sum in one atomic step and
	// returns the counter before and after.
	RebuildStock(ctx context.Context, productID string) (before, after int, err error)
}
