package repository

import (
	"context"

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

func (r *PGRepository) GetCustomer(ctx context.Context, customerID string) (*model.Customer, error) {
	if !postgres.IsUUID(customerID) {
		return nil, nil
	}
	var c model.Customer
	query := `SELECT id, customer_code, name, gstin, state, created_at, updated_at FROM customers WHERE id = $1`
	if err := r.DB.GetContext(ctx, &c, query, customerID); err != nil {
		if postgres.IsNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (r *PGRepository) GetProduct(ctx context.Context, productID string) (*model.Product, error) {
	if !postgres.IsUUID(productID) {
		return nil, nil
	}
	var p model.Product
	if err := r.DB.GetContext(ctx, &p, `SELECT * FROM products WHERE id = $1`, productID); err != nil {
		if postgres.IsNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (r *PGRepository) CreateInvoice(ctx context.Context, inv *model.Invoice) error {
	query := `
        INSERT INTO invoices (
            id, invoice_number, customer_id, subtotal, cgst_amount, sgst_amount,
            igst_amount, total_tax, total_amount, currency, issued_by,
            created_at, updated_at
        )
        VALUES (
            :id, :invoice_number, :customer_id, :subtotal, :cgst_amount, :sgst_amount,
            :igst_amount, :total_tax, :total_amount, :currency, :issued_by,
            :created_at, :updated_at
        )
    `
	if _, err := r.DB.NamedExecContext(ctx, query, inv); err != nil {
		return model.WriteFailure("insert invoice", err, postgres.IsUniqueViolation(err))
	}
	return nil
}

func (r *PGRepository) InsertInvoiceItems(ctx context.Context, items []model.InvoiceItem) error {
	if len(items) == 0 {
		return nil
	}
	query := `
        INSERT INTO invoice_items (
            id, invoice_id, position, product_id, description, qty, unit_price, tax_percent, line_total
        )
        VALUES (
            :id, :invoice_id, :position, :product_id, :description, :qty, :unit_price, :tax_percent, :line_total
        )
    `
	// sqlx expands a slice argument into a multi-row VALUES list.
	if _, err := r.DB.NamedExecContext(ctx, query, items); err != nil {
		return model.WriteFailure("insert invoice items", err, postgres.IsUniqueViolation(err))
	}
	return nil
}

func (r *PGRepository) GetInvoice(ctx context.Context, invoiceID string) (*model.Invoice, error) {
	if !postgres.IsUUID(invoiceID) {
		return nil, nil
	}
	var inv model.Invoice
	if err := r.DB.GetContext(ctx, &inv, `SELECT * FROM invoices WHERE id = $1`, invoiceID); err != nil {
		if postgres.IsNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return &inv, nil
}

func (r *PGRepository) ListInvoiceItems(ctx context.Context, invoiceID string) ([]model.InvoiceItem, error) {
	var items []model.InvoiceItem
	query := `SELECT * FROM invoice_items WHERE invoice_id = $1 ORDER BY position`
	if err := r.DB.SelectContext(ctx, &items, query, invoiceID); err != nil {
		return nil, err
	}
	return items, nil
}
