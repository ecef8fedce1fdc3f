package model

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInsufficient       = errors.New("insufficient stock")
	ErrWriteConflict      = errors.New("write conflict")
	ErrWriteError         = errors.New("write rejected")
	ErrConsistencyDrift   = errors.New("ledger and on-hand counter diverged")
	ErrInvalidQuantity    = errors.New("invalid quantity")
	ErrInvalidReason      = errors.New("invalid movement reason")
	ErrReservationClosed  = errors.New("reservation already closed")
	ErrInvoiceWriteFailed = errors.New("invoice write failed")
	ErrCodesExhausted     = errors.New("code allocation retries exhausted")
	ErrLockBusy           = errors.New("resource busy, try again")
)

// InsufficientStockError reports a stock shortfall for one product.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficient
}

// WriteFailure wraps a store error as ErrWriteConflict or ErrWriteError while
// keeping the driver error reachable through errors.As.
func WriteFailure(op string, err error, conflict bool) error {
	if conflict {
		return fmt.Errorf("%s: %w: %w", op, ErrWriteConflict, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrWriteError, err)
}
