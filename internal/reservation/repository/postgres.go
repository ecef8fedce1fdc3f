package repository

import (
	"context"
	"time"

	"github.com/fekuna/omnipos-billing-service/internal/model"
	"github.com/fekuna/omnipos-billing-service/pkg/database/postgres"
	"github.com/jmoiron/sqlx"
)

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

const insertReservation = `
    INSERT INTO stock_reservations (
        id, product_id, qty, status, invoice_id, created_by, expires_at, meta,
        created_at, updated_at
    )
    VALUES (
        :id, :product_id, :qty, :status, :invoice_id, :created_by, :expires_at, :meta,
        :created_at, :updated_at
    )
`

func (r *PGRepository) CreateReservation(ctx context.Context, res *model.StockReservation) error {
	if _, err := r.DB.NamedExecContext(ctx, insertReservation, res); err != nil {
		return model.WriteFailure("insert reservation", err, postgres.IsUniqueViolation(err))
	}
	return nil
}

// CreateReservationIfAvailable locks the product row so concurrent reservations
// for the same product serialize on the availability check.
func (r *PGRepository) CreateReservationIfAvailable(ctx context.Context, res *model.StockReservation) (int, bool, error) {
	if !postgres.IsUUID(res.ProductID) {
		return 0, false, model.ErrNotFound
	}
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return 0, false, err
	}
	defer tx.Rollback()

	var onHand int
	err = tx.GetContext(ctx, &onHand, `SELECT stock_qty FROM products WHERE id = $1 FOR UPDATE`, res.ProductID)
	if err != nil {
		if postgres.IsNoRows(err) {
			return 0, false, model.ErrNotFound
		}
		return 0, false, err
	}

	var reserved int
	err = tx.GetContext(ctx, &reserved,
		`SELECT COALESCE(SUM(qty), 0) FROM stock_reservations WHERE product_id = $1 AND status = 'active'`,
		res.ProductID)
	if err != nil {
		return 0, false, err
	}

	available := onHand - reserved
	if res.Qty > available {
		return available, false, nil
	}

	if _, err := tx.NamedExecContext(ctx, insertReservation, res); err != nil {
		return available, false, model.WriteFailure("insert reservation", err, postgres.IsUniqueViolation(err))
	}
	if err := tx.Commit(); err != nil {
		return available, false, model.WriteFailure("commit reservation", err, false)
	}
	return available, true, nil
}

func (r *PGRepository) GetReservation(ctx context.Context, id string) (*model.StockReservation, error) {
	if !postgres.IsUUID(id) {
		return nil, nil
	}
	var res model.StockReservation
	err := r.DB.GetContext(ctx, &res, `SELECT * FROM stock_reservations WHERE id = $1`, id)
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return &res, nil
}

func (r *PGRepository) TransitionReservation(ctx context.Context, id string, from, to model.ReservationStatus, meta model.ReservationMeta, at time.Time) (bool, error) {
	query := `
        UPDATE stock_reservations
        SET status = $1, meta = meta || $2::jsonb, updated_at = $3
        WHERE id = $4 AND status = $5
    `
	res, err := r.DB.ExecContext(ctx, query, string(to), meta, at, id, string(from))
	if err != nil {
		return false, model.WriteFailure("transition reservation", err, false)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *PGRepository) ListExpiredReservations(ctx context.Context, now time.Time, limit int) ([]model.StockReservation, error) {
	var items []model.StockReservation
	query := `
        SELECT * FROM stock_reservations
        WHERE status = 'active' AND expires_at IS NOT NULL AND expires_at <= $1
        ORDER BY expires_at
        LIMIT $2
    `
	if err := r.DB.SelectContext(ctx, &items, query, now, limit); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *PGRepository) InvoiceExists(ctx context.Context, invoiceID string) (bool, error) {
	if !postgres.IsUUID(invoiceID) {
		return false, nil
	}
	var exists bool
	err := r.DB.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM invoices WHERE id = $1)`, invoiceID)
	return exists, err
}
