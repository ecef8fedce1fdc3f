package reservation

import (
	"context"
	"time"

	"github.com/fekuna/omnipos-billing-service/internal/model"
)

type Repository interface {
	CreateReservation(ctx context.Context, r *model.StockReservation) error
	// GetReservation returns nil, nil when the reservation does not exist.
	GetReservation(ctx context.Context, id string) (*model.StockReservation, error)
	// TransitionReservation moves a reservation from one status to another only
	// if it is still in "from". It reports whether the row was updated.
	TransitionReservation(ctx context.Context, id string, from, to model.ReservationStatus, meta model.ReservationMeta, at time.Time) (bool, error)
	ListExpiredReservations(ctx context.Context, now time.Time, limit int) ([]model.StockReservation, error)
	// InvoiceExists reports whether the invoice a reservation was taken for
	// has been committed.
	InvoiceExists(ctx context.Context, invoiceID string) (bool, error)
}

// ConditionalRepository is implemented by stores that can check availability
// and insert the reservation as one atomic step.
type ConditionalRepository interface {
	Repository
	// CreateReservationIfAvailable inserts r only when r.Qty fits in the
	// product's current availability. It returns the availability seen and
	// whether the row was written. A missing product yields model.ErrNotFound.
	CreateReservationIfAvailable(ctx context.Context, r *model.StockReservation) (available int, created bool, err error)
}

// Locker is a distributed mutex keyed by resource.
type Locker interface {
	AcquireLock(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, value string) error
}
