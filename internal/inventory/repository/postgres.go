package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/fekuna/omnipos-billing-service/internal/inventory/dto"
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

func (r *PGRepository) GetProduct(ctx context.Context, productID string) (*model.Product, error) {
	if !postgres.IsUUID(productID) {
		return nil, nil
	}
	var p model.Product
	err := r.DB.GetContext(ctx, &p, `SELECT * FROM products WHERE id = $1`, productID)
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (r *PGRepository) SumActiveReservations(ctx context.Context, productID string) (int, error) {
	var total int
	query := `SELECT COALESCE(SUM(qty), 0) FROM stock_reservations WHERE product_id = $1 AND status = 'active'`
	if err := r.DB.GetContext(ctx, &total, query, productID); err != nil {
		return 0, fmt.Errorf("sum active reservations: %w", err)
	}
	return total, nil
}

func (r *PGRepository) InsertMovement(ctx context.Context, m *model.StockMovement) error {
	query := `
        INSERT INTO stock_movements (
            id, product_id, change, reason, reference_type, reference_id,
            unit_cost, created_by, created_at
        )
        VALUES (
            :id, :product_id, :change, :reason, :reference_type, :reference_id,
            :unit_cost, :created_by, :created_at
        )
    `
	if _, err := r.DB.NamedExecContext(ctx, query, m); err != nil {
		return model.WriteFailure("insert stock movement", err, postgres.IsUniqueViolation(err))
	}
	return nil
}

func (r *PGRepository) SumMovements(ctx context.Context, productID string) (int, error) {
	var total int
	query := `SELECT COALESCE(SUM(change), 0) FROM stock_movements WHERE product_id = $1`
	if err := r.DB.GetContext(ctx, &total, query, productID); err != nil {
		return 0, fmt.Errorf("sum movements: %w", err)
	}
	return total, nil
}

func (r *PGRepository) ListMovements(ctx context.Context, f *dto.MovementFilters) ([]model.StockMovement, int, error) {
	var items []model.StockMovement
	var count int

	conditions := []string{}
	args := map[string]interface{}{}

	if f.ProductID != "" {
		conditions = append(conditions, "product_id = :product_id")
		args["product_id"] = f.ProductID
	}
	if f.Reason != "" {
		conditions = append(conditions, "reason = :reason")
		args["reason"] = string(f.Reason)
	}
	if f.ReferenceType != "" {
		conditions = append(conditions, "reference_type = :reference_type")
		args["reference_type"] = f.ReferenceType
	}
	if f.ReferenceID != "" {
		conditions = append(conditions, "reference_id = :reference_id")
		args["reference_id"] = f.ReferenceID
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := "SELECT count(*) FROM stock_movements" + whereClause
	rows, err := r.DB.NamedQueryContext(ctx, countQuery, args)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	if rows.Next() {
		if err := rows.Scan(&count); err != nil {
			return nil, 0, err
		}
	}

	query := "SELECT * FROM stock_movements" + whereClause + " ORDER BY created_at DESC"
	if f.PageSize > 0 {
		page := f.Page
		if page < 1 {
			page = 1
		}
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.PageSize, (page-1)*f.PageSize)
	}

	nstmt, err := r.DB.PrepareNamedContext(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	defer nstmt.Close()

	err = nstmt.SelectContext(ctx, &items, args)
	return items, count, err
}

func (r *PGRepository) IncrementStock(ctx context.Context, productID string, delta int) error {
	if !postgres.IsUUID(productID) {
		return model.ErrNotFound
	}
	res, err := r.DB.ExecContext(ctx,
		`UPDATE products SET stock_qty = stock_qty + $1, updated_at = NOW() WHERE id = $2`,
		delta, productID)
	if err != nil {
		return model.WriteFailure("increment stock", err, false)
	}
	return requireRow(res.RowsAffected())
}

func (r *PGRepository) DecrementStock(ctx context.Context, productID string, qty int, allowNegative bool) (int, int, error) {
	// The CTE locks the row so the returned "before" matches the value the
	// update was applied to.
	query := `
        WITH prev AS (
            SELECT id, stock_qty FROM products WHERE id = $1 FOR UPDATE
        )
        UPDATE products p
        SET stock_qty = CASE WHEN $3 THEN prev.stock_qty - $2
                             ELSE GREATEST(prev.stock_qty - $2, 0) END,
            updated_at = NOW()
        FROM prev
        WHERE p.id = prev.id
        RETURNING prev.stock_qty, p.stock_qty
    `
	if !postgres.IsUUID(productID) {
		return 0, 0, model.ErrNotFound
	}
	var before, after int
	err := r.DB.QueryRowxContext(ctx, query, productID, qty, allowNegative).Scan(&before, &after)
	if err != nil {
		if postgres.IsNoRows(err) {
			return 0, 0, model.ErrNotFound
		}
		return 0, 0, model.WriteFailure("decrement stock", err, false)
	}
	return before, after, nil
}

func (r *PGRepository) RebuildStock(ctx context.Context, productID string) (int, int, error) {
	// The ledger sum is read in the same statement that writes it, under the
	// row lock, so a movement committed meanwhile is either counted or waits.
	query := `
        WITH prev AS (
            SELECT id, stock_qty FROM products WHERE id = $1 FOR UPDATE
        )
        UPDATE products p
        SET stock_qty = (
                SELECT COALESCE(SUM(change), 0) FROM stock_movements WHERE product_id = $1
            ),
            updated_at = NOW()
        FROM prev
        WHERE p.id = prev.id
        RETURNING prev.stock_qty, p.stock_qty
    `
	if !postgres.IsUUID(productID) {
		return 0, 0, model.ErrNotFound
	}
	var before, after int
	if err := r.DB.QueryRowxContext(ctx, query, productID).Scan(&before, &after); err != nil {
		if postgres.IsNoRows(err) {
			return 0, 0, model.ErrNotFound
		}
		return 0, 0, model.WriteFailure("rebuild stock", err, false)
	}
	return before, after, nil
}

func requireRow(n int64, err error) error {
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}
