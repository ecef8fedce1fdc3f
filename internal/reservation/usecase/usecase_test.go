package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fekuna/omnipos-billing-service/internal/clock"
	invuc "github.com/fekuna/omnipos-billing-service/internal/inventory/usecase"
	"github.com/fekuna/omnipos-billing-service/internal/model"
	"github.com/fekuna/omnipos-billing-service/internal/reservation"
	"github.com/fekuna/omnipos-billing-service/internal/reservation/dto"
	"github.com/fekuna/omnipos-billing-service/internal/testutil"
	"github.com/fekuna/omnipos-billing-service/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	uc     reservation.UseCase
	store  *testutil.Store
	clock  *clock.Manual
	ledger func(productID string) *model.Availability
}

func newFixture(t *testing.T, stock int, opts ...Option) *fixture {
	t.Helper()
	store := testutil.NewStore()
	store.PutProduct(testutil.Product("p1", stock, "18"))
	return build(t, store, store, opts...)
}

func build(t *testing.T, store *testutil.Store, repo reservation.Repository, opts ...Option) *fixture {
	t.Helper()
	clk := clock.NewManual(testutil.Time)
	inv := invuc.NewInventoryUseCase(store, clk, logger.NewNop())
	opts = append([]Option{WithClock(clk)}, opts...)
	f := &fixture{
		uc:    NewReservationUseCase(repo, inv, logger.NewNop(), opts...),
		store: store,
		clock: clk,
	}
	f.ledger = func(productID string) *model.Availability {
		avail, err := inv.GetAvailability(context.Background(), productID)
		require.NoError(t, err)
		return avail
	}
	return f
}

func TestReserve(t *testing.T) {
	ctx := context.Background()

	t.Run("holds stock and sets expiry", func(t *testing.T) {
		f := newFixture(t, 10, WithTTL(10*time.Minute))

		res, err := f.uc.Reserve(ctx, &dto.ReserveInput{ProductID: "p1", Qty: 4, InvoiceID: "inv-1", CreatedBy: "u1"})
		require.NoError(t, err)
		assert.Equal(t, model.ReservationActive, res.Status)
		require.NotNil(t, res.InvoiceID)
		assert.Equal(t, "inv-1", *res.InvoiceID)
		require.NotNil(t, res.ExpiresAt)
		assert.Equal(t, testutil.Time.Add(10*time.Minute), *res.ExpiresAt)

		avail := f.ledger("p1")
		assert.Equal(t, 10, avail.OnHand)
		assert.Equal(t, 4, avail.Reserved)
		assert.Equal(t, 6, avail.Available)
	})

	t.Run("zero ttl disables expiry", func(t *testing.T) {
		f := newFixture(t, 10, WithTTL(0))
		res, err := f.uc.Reserve(ctx, &dto.ReserveInput{ProductID: "p1", Qty: 1})
		require.NoError(t, err)
		assert.Nil(t, res.ExpiresAt)
	})

	t.Run("insufficient stock writes nothing", func(t *testing.T) {
		f := newFixture(t, 10)

		_, err := f.uc.Reserve(ctx, &dto.ReserveInput{ProductID: "p1", Qty: 11})
		require.Error(t, err)
		assert.ErrorIs(t, err, model.ErrInsufficient)

		var insufficient *model.InsufficientStockError
		require.True(t, errors.As(err, &insufficient))
		assert.Equal(t, "p1", insufficient.ProductID)
		assert.Equal(t, 11, insufficient.Requested)
		assert.Equal(t, 10, insufficient.Available)
		assert.Empty(t, f.store.Reservations())
	})

	t.Run("counts earlier reservations", func(t *testing.T) {
		f := newFixture(t, 10)
		_, err := f.uc.Reserve(ctx, &dto.ReserveInput{ProductID: "p1", Qty: 7})
		require.NoError(t, err)

		_, err = f.uc.Reserve(ctx, &dto.ReserveInput{ProductID: "p1", Qty: 4})
		assert.ErrorIs(t, err, model.ErrInsufficient)
	})

	t.Run("unknown product", func(t *testing.T) {
		f := newFixture(t, 10)
		_, err := f.uc.Reserve(ctx, &dto.ReserveInput{ProductID: "nope", Qty: 1})
		assert.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("invalid qty", func(t *testing.T) {
		f := newFixture(t, 10)
		_, err := f.uc.Reserve(ctx, &dto.ReserveInput{ProductID: "p1", Qty: 0})
		assert.ErrorIs(t, err, model.ErrInvalidQuantity)
	})

	t.Run("conditional store", func(t *testing.T) {
		store := testutil.NewStore()
		store.PutProduct(testutil.Product("p1", 5, ""))
		f := build(t, store, testutil.ConditionalStore{Store: store})

		_, err := f.uc.Reserve(ctx, &dto.ReserveInput{ProductID: "p1", Qty: 5})
		require.NoError(t, err)
		_, err = f.uc.Reserve(ctx, &dto.ReserveInput{ProductID: "p1", Qty: 1})
		assert.ErrorIs(t, err, model.ErrInsufficient)

		_, err = f.uc.Reserve(ctx, &dto.ReserveInput{ProductID: "nope", Qty: 1})
		assert.ErrorIs(t, err, model.ErrNotFound)

		assert.Equal(t, 3, store.Calls("CreateReservationIfAvailable"))
		assert.Zero(t, store.Calls("CreateReservation"))
	})

	t.Run("locker busy", func(t *testing.T) {
		locker := testutil.NewLocker()
		locker.Hold("lock:stock:p1")
		f := newFixture(t, 10, WithLocker(locker))

		_, err := f.uc.Reserve(ctx, &dto.ReserveInput{ProductID: "p1", Qty: 1})
		assert.ErrorIs(t, err, model.ErrLockBusy)
		assert.Empty(t, f.store.Reservations())
	})

	t.Run("locker released after reserve", func(t *testing.T) {
		locker := testutil.NewLocker()
		f := newFixture(t, 10, WithLocker(locker))

		_, err := f.uc.Reserve(ctx, &dto.ReserveInput{ProductID: "p1", Qty: 1})
		require.NoError(t, err)
		_, err = f.uc.Reserve(ctx, &dto.ReserveInput{ProductID: "p1", Qty: 1})
		require.NoError(t, err)
		assert.Equal(t, 2, locker.AcquiredCount())
	})
}

func TestReserveConcurrentNeverOversells(t *testing.T) {
	ctx := context.Background()

	run := func(t *testing.T, f *fixture) int {
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			granted int
		)
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := f.uc.Reserve(ctx, &dto.ReserveInput{ProductID: "p1", Qty: 1}); err == nil {
					mu.Lock()
					granted++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		return granted
	}

	t.Run("conditional store", func(t *testing.T) {
		store := testutil.NewStore()
		store.PutProduct(testutil.Product("p1", 5, ""))
		f := build(t, store, testutil.ConditionalStore{Store: store})

		assert.Equal(t, 5, run(t, f))
		assert.Equal(t, 0, f.ledger("p1").Available)
	})

	t.Run("distributed lock", func(t *testing.T) {
		f := newFixture(t, 5, WithLocker(testutil.NewLocker()))

		granted := run(t, f)
		assert.LessOrEqual(t, granted, 5)
		assert.GreaterOrEqual(t, f.ledger("p1").Available, 0)
	})
}

func TestConsume(t *testing.T) {
	ctx := context.Background()

	t.Run("moves stock out and clears hold", func(t *testing.T) {
		f := newFixture(t, 10)
		res, err := f.uc.Reserve(ctx, &dto.ReserveInput{ProductID: "p1", Qty: 3})
		require.NoError(t, err)

		consumed, err := f.uc.Consume(ctx, res.ID, "u1")
		require.NoError(t, err)
		assert.Equal(t, model.ReservationConsumed, consumed.Status)

		avail := f.ledger("p1")
		assert.Equal(t, 7, avail.OnHand)
		assert.Equal(t, 0, avail.Reserved)

		movements := f.store.Movements("p1")
		require.Len(t, movements, 1)
		assert.Equal(t, -3, movements[0].Change)
		assert.Equal(t, model.MovementSale, movements[0].Reason)
		assert.Equal(t, "reservation", *movements[0].ReferenceType)
		assert.Equal(t, res.ID, *movements[0].ReferenceID)
		assert.Equal(t, "u1", *movements[0].CreatedBy)
	})

	t.Run("second consume is a no-op success", func(t *testing.T) {
		f := newFixture(t, 10)
		res, err := f.uc.Reserve(ctx, &dto.ReserveInput{ProductID: "p1", Qty: 3})
		require.NoError(t, err)

		_, err = f.uc.Consume(ctx, res.ID, "")
		require.NoError(t, err)
		again, err := f.uc.Consume(ctx, res.ID, "")
		require.NoError(t, err)
		assert.Equal(t, model.ReservationConsumed, again.Status)

		assert.Len(t, f.store.Movements("p1"), 1)
		assert.Equal(t, 7, f.ledger("p1").OnHand)
	})

	t.Run("released reservation cannot be consumed", func(t *testing.T) {
		f := newFixture(t, 10)
		res, err := f.uc.Reserve(ctx, &dto.ReserveInput{ProductID: "p1", Qty: 3})
		require.NoError(t, err)
		_, err = f.uc.Release(ctx, res.ID, "changed mind")
		require.NoError(t, err)

		_, err = f.uc.Consume(ctx, res.ID, "")
		assert.ErrorIs(t, err, model.ErrReservationClosed)
		assert.Empty(t, f.store.Movements("p1"))
	})

	t.Run("missing reservation", func(t *testing.T) {
		f := newFixture(t, 10)
		_, err := f.uc.Consume(ctx, "nope", "")
		assert.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("lagging counter still counts as consumed", func(t *testing.T) {
		f := newFixture(t, 10)
		res, err := f.uc.Reserve(ctx, &dto.ReserveInput{ProductID: "p1", Qty: 3})
		require.NoError(t, err)
		f.store.FailN("IncrementStock", testutil.ErrStore, 1)

		consumed, err := f.uc.Consume(ctx, res.ID, "")
		require.NoError(t, err)
		assert.Equal(t, model.ReservationConsumed, consumed.Status)
		assert.Len(t, f.store.Movements("p1"), 1)
	})

	t.Run("status update failure", func(t *testing.T) {
		f := newFixture(t, 10)
		res, err := f.uc.Reserve(ctx, &dto.ReserveInput{ProductID: "p1", Qty: 3})
		require.NoError(t, err)
		f.store.Fail("TransitionReservation", testutil.ErrStore)

		_, err = f.uc.Consume(ctx, res.ID, "")
		assert.ErrorIs(t, err, testutil.ErrStore)
		assert.Empty(t, f.store.Movements("p1"))
	})
}

func TestRelease(t *testing.T) {
	ctx := context.Background()

	t.Run("frees hold without movement", func(t *testing.T) {
		f := newFixture(t, 10)
		res, err := f.uc.Reserve(ctx, &dto.ReserveInput{ProductID: "p1", Qty: 4})
		require.NoError(t, err)

		f.clock.Advance(time.Minute)
		released, err := f.uc.Release(ctx, res.ID, "invoice_failed")
		require.NoError(t, err)
		assert.Equal(t, model.ReservationReleased, released.Status)
		assert.Equal(t, "invoice_failed", released.Meta["reason"])
		assert.Equal(t, testutil.Time.Add(time.Minute).Format(time.RFC3339), released.Meta["released_at"])

		stored, err := f.uc.GetReservation(ctx, res.ID)
		require.NoError(t, err)
		assert.Equal(t, "invoice_failed", stored.Meta["reason"])

		avail := f.ledger("p1")
		assert.Equal(t, 10, avail.OnHand)
		assert.Equal(t, 0, avail.Reserved)
		assert.Empty(t, f.store.Movements("p1"))
	})

	t.Run("second release is a no-op", func(t *testing.T) {
		f := newFixture(t, 10)
		res, err := f.uc.Reserve(ctx, &dto.ReserveInput{ProductID: "p1", Qty: 4})
		require.NoError(t, err)

		_, err = f.uc.Release(ctx, res.ID, "first")
		require.NoError(t, err)
		again, err := f.uc.Release(ctx, res.ID, "second")
		require.NoError(t, err)
		assert.Equal(t, "first", again.Meta["reason"])
	})

	t.Run("consumed reservation cannot be released", func(t *testing.T) {
		f := newFixture(t, 10)
		res, err := f.uc.Reserve(ctx, &dto.ReserveInput{ProductID: "p1", Qty: 4})
		require.NoError(t, err)
		_, err = f.uc.Consume(ctx, res.ID, "")
		require.NoError(t, err)

		_, err = f.uc.Release(ctx, res.ID, "late")
		assert.ErrorIs(t, err, model.ErrReservationClosed)
		assert.Equal(t, 6, f.ledger("p1").OnHand)
	})

	t.Run("default reason", func(t *testing.T) {
		f := newFixture(t, 10)
		res, err := f.uc.Reserve(ctx, &dto.ReserveInput{ProductID: "p1", Qty: 1})
		require.NoError(t, err)

		released, err := f.uc.Release(ctx, res.ID, "")
		require.NoError(t, err)
		assert.Equal(t, dto.ReasonManual, released.Meta["reason"])
	})
}

func TestExpireStale(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 10, WithTTL(5*time.Minute))

	old, err := f.uc.Reserve(ctx, &dto.ReserveInput{ProductID: "p1", Qty: 2})
	require.NoError(t, err)
	consumed, err := f.uc.Reserve(ctx, &dto.ReserveInput{ProductID: "p1", Qty: 1})
	require.NoError(t, err)
	_, err = f.uc.Consume(ctx, consumed.ID, "")
	require.NoError(t, err)

	f.clock.Advance(4 * time.Minute)
	fresh, err := f.uc.Reserve(ctx, &dto.ReserveInput{ProductID: "p1", Qty: 3})
	require.NoError(t, err)

	f.clock.Advance(2 * time.Minute)
	n, err := f.uc.ExpireStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := f.uc.GetReservation(ctx, old.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationReleased, got.Status)
	assert.Equal(t, dto.ReasonExpired, got.Meta["reason"])

	got, err = f.uc.GetReservation(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationActive, got.Status)

	n, err = f.uc.ExpireStale(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestExpireStaleSettlesInvoicedReservations(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 10, WithTTL(5*time.Minute))

	invoiced, err := f.uc.Reserve(ctx, &dto.ReserveInput{ProductID: "p1", Qty: 4, InvoiceID: "inv-1", CreatedBy: "cashier-1"})
	require.NoError(t, err)
	abandoned, err := f.uc.Reserve(ctx, &dto.ReserveInput{ProductID: "p1", Qty: 2, InvoiceID: "inv-2"})
	require.NoError(t, err)
	require.NoError(t, f.store.CreateInvoice(ctx, &model.Invoice{
		BaseModel:     model.BaseModel{ID: "inv-1"},
		InvoiceNumber: "INV000001",
	}))

	f.clock.Advance(10 * time.Minute)
	n, err := f.uc.ExpireStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := f.uc.GetReservation(ctx, invoiced.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationConsumed, got.Status)

	got, err = f.uc.GetReservation(ctx, abandoned.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationReleased, got.Status)

	avail := f.ledger("p1")
	assert.Equal(t, 6, avail.OnHand)
	assert.Equal(t, 0, avail.Reserved)

	movements := f.store.Movements("p1")
	require.Len(t, movements, 1)
	assert.Equal(t, -4, movements[0].Change)
	assert.Equal(t, "cashier-1", *movements[0].CreatedBy)
}

func TestExpireStaleInvoiceLookupFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 10, WithTTL(time.Minute))

	res, err := f.uc.Reserve(ctx, &dto.ReserveInput{ProductID: "p1", Qty: 1, InvoiceID: "inv-1"})
	require.NoError(t, err)
	f.store.Fail("InvoiceExists", testutil.ErrStore)

	f.clock.Advance(2 * time.Minute)
	n, err := f.uc.ExpireStale(ctx)
	assert.ErrorIs(t, err, testutil.ErrStore)
	assert.Zero(t, n)

	got, err := f.uc.GetReservation(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationActive, got.Status)
}
