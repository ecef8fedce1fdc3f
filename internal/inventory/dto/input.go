package dto

import (
	"github.com/fekuna/omnipos-billing-service/internal/model"
	"github.com/shopspring/decimal"
)

type RecordMovementInput struct {
	ProductID     string
	Change        int
	Reason        model.MovementReason
	ReferenceType string // 'reservation', 'purchase', 'opening_balance', 'oversell', 'compensation'
	ReferenceID   string
	UnitCost      decimal.NullDecimal
	CreatedBy     string
}

// DecrementInput drives the legacy path that lowers on-hand without a
// reservation cycle.
type DecrementInput struct {
	ProductID     string
	Qty           int
	AllowNegative bool
	ReferenceType string
	ReferenceID   string
	CreatedBy     string
}
