package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/fekuna/omnipos-billing-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-billing-service/internal/inventory/repository"
	"github.com/fekuna/omnipos-billing-service/internal/model"
	productrepo "github.com/fekuna/omnipos-billing-service/internal/product/repository"
	"github.com/fekuna/omnipos-billing-service/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedProduct(t *testing.T, repo *repository.PGRepository, stock int) string {
	t.Helper()
	p := testutil.Product(uuid.NewString(), stock, "")
	require.NoError(t, productrepo.NewPGRepository(repo.DB).CreateProduct(context.Background(), &p))
	return p.ID
}

func TestDecrementStock(t *testing.T) {
	repo := repository.NewPGRepository(testutil.NewTestDB(t))
	ctx := context.Background()

	t.Run("clamps at zero", func(t *testing.T) {
		id := seedProduct(t, repo, 3)
		before, after, err := repo.DecrementStock(ctx, id, 5, false)
		require.NoError(t, err)
		assert.Equal(t, 3, before)
		assert.Equal(t, 0, after)
	})

	t.Run("goes negative when allowed", func(t *testing.T) {
		id := seedProduct(t, repo, 3)
		before, after, err := repo.DecrementStock(ctx, id, 5, true)
		require.NoError(t, err)
		assert.Equal(t, 3, before)
		assert.Equal(t, -2, after)
	})

	t.Run("unknown product", func(t *testing.T) {
		_, _, err := repo.DecrementStock(ctx, uuid.NewString(), 1, false)
		assert.ErrorIs(t, err, model.ErrNotFound)
	})
}

func TestIncrementAndRebuildStock(t *testing.T) {
	repo := repository.NewPGRepository(testutil.NewTestDB(t))
	ctx := context.Background()
	id := seedProduct(t, repo, 2)

	require.NoError(t, repo.IncrementStock(ctx, id, 4))
	p, err := repo.GetProduct(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 6, p.StockQty)

	require.NoError(t, repo.InsertMovement(ctx, &model.StockMovement{
		ID: uuid.NewString(), ProductID: id, Change: 3, Reason: model.MovementPurchase, CreatedAt: testutil.Time,
	}))
	before, after, err := repo.RebuildStock(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 6, before)
	assert.Equal(t, 3, after)
	p, err = repo.GetProduct(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 3, p.StockQty)

	_, _, err = repo.RebuildStock(ctx, uuid.NewString())
	assert.ErrorIs(t, err, model.ErrNotFound)

	assert.ErrorIs(t, repo.IncrementStock(ctx, uuid.NewString(), 1), model.ErrNotFound)
}

func TestMovements(t *testing.T) {
	repo := repository.NewPGRepository(testutil.NewTestDB(t))
	ctx := context.Background()
	id := seedProduct(t, repo, 0)

	ref := "opening_balance"
	changes := []struct {
		change int
		reason model.MovementReason
	}{
		{10, model.MovementPurchase},
		{-3, model.MovementSale},
		{-1, model.MovementAdjustment},
	}
	for i, c := range changes {
		require.NoError(t, repo.InsertMovement(ctx, &model.StockMovement{
			ID:            uuid.NewString(),
			ProductID:     id,
			Change:        c.change,
			Reason:        c.reason,
			ReferenceType: &ref,
			CreatedAt:     testutil.Time.Add(time.Duration(i) * time.Minute),
		}))
	}

	sum, err := repo.SumMovements(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 6, sum)

	items, total, err := repo.ListMovements(ctx, &dto.MovementFilters{ProductID: id, Reason: model.MovementSale, Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, -3, items[0].Change)
}

func TestSumActiveReservations_Empty(t *testing.T) {
	repo := repository.NewPGRepository(testutil.NewTestDB(t))
	id := seedProduct(t, repo, 5)

	total, err := repo.SumActiveReservations(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 0, total)
}
