package product

import (
	"context"

	"github.com/fekuna/omnipos-billing-service/internal/model"
	"github.com/fekuna/omnipos-billing-service/internal/product/dto"
)

type Repository interface {
	CreateProduct(ctx context.Context, product *model.Product) error
	// GetProduct returns nil, nil when the product does not exist.
	GetProduct(ctx context.Context, id string) (*model.Product, error)
	ListProducts(ctx context.Context, filters *dto.ProductFilters) ([]model.Product, int, error)
}

// Indexer is satisfied by the Elasticsearch client.
type Indexer interface {
	Index(ctx context.Context, index, id string, doc any) error
}
