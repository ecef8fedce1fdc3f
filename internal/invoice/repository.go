package invoice

import (
	"context"

	"github.com/fekuna/omnipos-billing-service/internal/model"
)

type Repository interface {
	// GetCustomer and GetProduct return nil, nil when the row does not exist.
	GetCustomer(ctx context.Context, customerID string) (*model.Customer, error)
	GetProduct(ctx context.Context, productID string) (*model.Product, error)

	CreateInvoice(ctx context.Context, inv *model.Invoice) error
	// InsertInvoiceItems writes all items in one statement.
	InsertInvoiceItems(ctx context.Context, items []model.InvoiceItem) error
	GetInvoice(ctx context.Context, invoiceID string) (*model.Invoice, error)
	ListInvoiceItems(ctx context.Context, invoiceID string) ([]model.InvoiceItem, error)
}

// EventPublisher is satisfied by the Kafka producer.
type EventPublisher interface {
	Publish(ctx context.Context, key string, value any) error
}

// Indexer is satisfied by the Elasticsearch client.
type Indexer interface {
	Index(ctx context.Context, index, id string, doc any) error
}
