package repository_test

import (
	"context"
	"testing"

	"github.com/fekuna/omnipos-billing-service/internal/model"
	"github.com/fekuna/omnipos-billing-service/internal/product/dto"
	"github.com/fekuna/omnipos-billing-service/internal/product/repository"
	"github.com/fekuna/omnipos-billing-service/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateProduct_DuplicateCode(t *testing.T) {
	repo := repository.NewPGRepository(testutil.NewTestDB(t))
	ctx := context.Background()
	c := "UID000001"

	first := testutil.Product(uuid.NewString(), 0, "")
	first.ProductCode = &c
	require.NoError(t, repo.CreateProduct(ctx, &first))

	second := testutil.Product(uuid.NewString(), 0, "")
	second.ProductCode = &c
	assert.ErrorIs(t, repo.CreateProduct(ctx, &second), model.ErrWriteConflict)
}

func TestListProducts(t *testing.T) {
	repo := repository.NewPGRepository(testutil.NewTestDB(t))
	ctx := context.Background()

	for _, stock := range []int{0, 3, 20} {
		p := testutil.Product(uuid.NewString(), stock, "5")
		require.NoError(t, repo.CreateProduct(ctx, &p))
	}

	t.Run("low stock", func(t *testing.T) {
		limit := 3
		items, total, err := repo.ListProducts(ctx, &dto.ProductFilters{MaxStock: &limit, SortBy: "stock", SortOrder: "asc"})
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		require.Len(t, items, 2)
		assert.Equal(t, 0, items[0].StockQty)
		assert.Equal(t, 3, items[1].StockQty)
	})

	t.Run("paged", func(t *testing.T) {
		items, total, err := repo.ListProducts(ctx, &dto.ProductFilters{Page: 2, PageSize: 2})
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		assert.Len(t, items, 1)
	})

	t.Run("missing", func(t *testing.T) {
		got, err := repo.GetProduct(ctx, uuid.NewString())
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}
