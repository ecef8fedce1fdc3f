package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/fekuna/omnipos-billing-service/internal/code"
	"github.com/fekuna/omnipos-billing-service/internal/model"
	"github.com/fekuna/omnipos-billing-service/internal/testutil"
	"github.com/fekuna/omnipos-billing-service/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextCodeScan(t *testing.T) {
	ctx := context.Background()

	t.Run("empty table starts at one", func(t *testing.T) {
		uc := NewCodeUseCase(testutil.NewStore(), nil, logger.NewNop())
		got, err := uc.NextCode(ctx, code.Customers)
		require.NoError(t, err)
		assert.Equal(t, "CID000001", got)
	})

	t.Run("max plus one ignoring junk", func(t *testing.T) {
		store := testutil.NewStore()
		store.PutCodes("suppliers", "SID000004", "SID000011", "SIDlegacy", "XYZ000099")
		uc := NewCodeUseCase(store, nil, logger.NewNop())

		got, err := uc.NextCode(ctx, code.Suppliers)
		require.NoError(t, err)
		assert.Equal(t, "SID000012", got)
	})

	t.Run("scan failure", func(t *testing.T) {
		store := testutil.NewStore()
		store.Fail("ListCodes", testutil.ErrStore)
		uc := NewCodeUseCase(store, nil, logger.NewNop())

		_, err := uc.NextCode(ctx, code.Suppliers)
		assert.ErrorIs(t, err, testutil.ErrStore)
	})
}

func TestNextCodeCounter(t *testing.T) {
	ctx := context.Background()

	t.Run("seeds from existing codes once", func(t *testing.T) {
		store := testutil.NewStore()
		store.PutCodes("suppliers", "SID000041")
		counter := testutil.NewCounter()
		uc := NewCodeUseCase(store, counter, logger.NewNop())

		first, err := uc.NextCode(ctx, code.Suppliers)
		require.NoError(t, err)
		second, err := uc.NextCode(ctx, code.Suppliers)
		require.NoError(t, err)

		assert.Equal(t, "SID000042", first)
		assert.Equal(t, "SID000043", second)
		assert.Equal(t, 1, store.Calls("ListCodes"))
	})

	t.Run("falls back to scan when counter is down", func(t *testing.T) {
		store := testutil.NewStore()
		store.PutCodes("suppliers", "SID000005")
		counter := testutil.NewCounter()
		counter.Err = errors.New("connection refused")
		uc := NewCodeUseCase(store, counter, logger.NewNop())

		got, err := uc.NextCode(ctx, code.Suppliers)
		require.NoError(t, err)
		assert.Equal(t, "SID000006", got)
	})
}

func TestCreateWithCode(t *testing.T) {
	ctx := context.Background()
	conflict := model.WriteFailure("insert", errors.New("duplicate key"), true)

	t.Run("first attempt", func(t *testing.T) {
		uc := NewCodeUseCase(testutil.NewStore(), nil, logger.NewNop())
		var inserted []string
		got, err := uc.CreateWithCode(ctx, code.Customers, func(ctx context.Context, c string) error {
			inserted = append(inserted, c)
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, "CID000001", got)
		assert.Equal(t, []string{"CID000001"}, inserted)
	})

	t.Run("retries with a fresh code after conflict", func(t *testing.T) {
		counter := testutil.NewCounter()
		uc := NewCodeUseCase(testutil.NewStore(), counter, logger.NewNop())

		var attempts []string
		got, err := uc.CreateWithCode(ctx, code.Customers, func(ctx context.Context, c string) error {
			attempts = append(attempts, c)
			if len(attempts) < 3 {
				return conflict
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, "CID000003", got)
		assert.Equal(t, []string{"CID000001", "CID000002", "CID000003"}, attempts)
	})

	t.Run("gives up after five conflicts", func(t *testing.T) {
		uc := NewCodeUseCase(testutil.NewStore(), nil, logger.NewNop())

		calls := 0
		_, err := uc.CreateWithCode(ctx, code.Customers, func(ctx context.Context, c string) error {
			calls++
			return conflict
		})
		assert.ErrorIs(t, err, model.ErrCodesExhausted)
		assert.ErrorIs(t, err, model.ErrWriteConflict)
		assert.Equal(t, MaxAttempts, calls)
	})

	t.Run("other write errors are not retried", func(t *testing.T) {
		uc := NewCodeUseCase(testutil.NewStore(), nil, logger.NewNop())

		calls := 0
		_, err := uc.CreateWithCode(ctx, code.Customers, func(ctx context.Context, c string) error {
			calls++
			return model.WriteFailure("insert", testutil.ErrStore, false)
		})
		assert.ErrorIs(t, err, model.ErrWriteError)
		assert.Equal(t, 1, calls)
	})

	t.Run("counter catches up with codes allocated during an outage", func(t *testing.T) {
		store := testutil.NewStore()
		counter := testutil.NewCounter()
		uc := NewCodeUseCase(store, counter, logger.NewNop())
		taken := map[string]bool{}
		insert := func(ctx context.Context, c string) error {
			if taken[c] {
				return conflict
			}
			taken[c] = true
			store.PutCodes("invoices", c)
			return nil
		}

		_, err := uc.CreateWithCode(ctx, code.Invoices, insert)
		require.NoError(t, err)

		counter.Err = errors.New("connection refused")
		for i := 0; i < 8; i++ {
			_, err := uc.CreateWithCode(ctx, code.Invoices, insert)
			require.NoError(t, err)
		}
		counter.Err = nil

		got, err := uc.CreateWithCode(ctx, code.Invoices, insert)
		require.NoError(t, err)
		assert.Equal(t, "INV000010", got)
		assert.Equal(t, int64(10), counter.Value("code:seq:invoices"))

		next, err := uc.NextCode(ctx, code.Invoices)
		require.NoError(t, err)
		assert.Equal(t, "INV000011", next)
	})

	t.Run("scan picks up a concurrent writer", func(t *testing.T) {
		store := testutil.NewStore()
		uc := NewCodeUseCase(store, nil, logger.NewNop())

		got, err := uc.CreateWithCode(ctx, code.Suppliers, func(ctx context.Context, c string) error {
			if c == "SID000001" {
				store.PutCodes("suppliers", c)
				return conflict
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, "SID000002", got)
	})
}
