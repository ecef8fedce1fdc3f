package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type MovementReason string

const (
	MovementPurchase   MovementReason = "purchase"
	MovementSale       MovementReason = "sale"
	MovementAdjustment MovementReason = "adjustment"
)

func (r MovementReason) Valid() bool {
	switch r {
	case MovementPurchase, MovementSale, MovementAdjustment:
		return true
	}
	return false
}

// StockMovement is an immutable ledger entry. The sum of all movements for a
// product equals its on-hand quantity once every counter update has landed.
type StockMovement struct {
	ID            string              `db:"id" json:"id"`
	ProductID     string              `db:"product_id" json:"product_id"`
	Change        int                 `db:"change" json:"change"`
	Reason        MovementReason      `db:"reason" json:"reason"`
	ReferenceType *string             `db:"reference_type" json:"reference_type"`
	ReferenceID   *string             `db:"reference_id" json:"reference_id"`
	UnitCost      decimal.NullDecimal `db:"unit_cost" json:"unit_cost"`
	CreatedBy     *string             `db:"created_by" json:"created_by"`
	CreatedAt     time.Time           `db:"created_at" json:"created_at"`
}

type ReservationStatus string

const (
	ReservationActive   ReservationStatus = "active"
	ReservationConsumed ReservationStatus = "consumed"
	ReservationReleased ReservationStatus = "released"
)

func (s ReservationStatus) Terminal() bool {
	return s == ReservationConsumed || s == ReservationReleased
}

type StockReservation struct {
	ID        string            `db:"id" json:"id"`
	ProductID string            `db:"product_id" json:"product_id"`
	Qty       int               `db:"qty" json:"qty"`
	Status    ReservationStatus `db:"status" json:"status"`
	InvoiceID *string           `db:"invoice_id" json:"invoice_id"`
	CreatedBy *string           `db:"created_by" json:"created_by"`
	ExpiresAt *time.Time        `db:"expires_at" json:"expires_at"`
	Meta      ReservationMeta   `db:"meta" json:"meta"`
	CreatedAt time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt time.Time         `db:"updated_at" json:"updated_at"`
}

// ReservationMeta is stored as a jsonb object.
type ReservationMeta map[string]string

func (m ReservationMeta) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *ReservationMeta) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*m = ReservationMeta{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("reservation meta: unsupported type %T", src)
	}
	out := ReservationMeta{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	*m = out
	return nil
}

// Merge returns a copy of m with kv applied on top.
func (m ReservationMeta) Merge(kv map[string]string) ReservationMeta {
	out := make(ReservationMeta, len(m)+len(kv))
	for k, v := range m {
		out[k] = v
	}
	for k, v := range kv {
		out[k] = v
	}
	return out
}

type Availability struct {
	ProductID string `json:"product_id"`
	OnHand    int    `json:"on_hand"`
	Reserved  int    `json:"reserved"`
	Available int    `json:"available"`
}

type Reconciliation struct {
	ProductID string `json:"product_id"`
	Ledger    int    `json:"ledger"`
	Cached    int    `json:"cached"`
	Drift     int    `json:"drift"`
}
