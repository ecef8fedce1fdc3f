package reservation

import (
	"context"

	"github.com/fekuna/omnipos-billing-service/internal/model"
	"github.com/fekuna/omnipos-billing-service/internal/reservation/dto"
)

type UseCase interface {
	Reserve(ctx context.Context, input *dto.ReserveInput) (*model.StockReservation, error)
	Consume(ctx context.Context, reservationID, createdBy string) (*model.StockReservation, error)
	Release(ctx context.Context, reservationID, reason string) (*model.StockReservation, error)
	GetReservation(ctx context.Context, reservationID string) (*model.StockReservation, error)
	// ExpireStale releases active reservations past their expiry and returns
	// how many were released. Expired reservations of committed invoices are
	// consumed rather than released.
	ExpireStale(ctx context.Context) (int, error)
}
