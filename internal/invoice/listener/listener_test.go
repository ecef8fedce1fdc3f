package listener

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/fekuna/omnipos-billing-service/internal/invoice/dto"
	"github.com/fekuna/omnipos-billing-service/internal/model"
	"github.com/fekuna/omnipos-billing-service/pkg/logger"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUseCase struct {
	mu     sync.Mutex
	inputs []*dto.CreateSaleInput
	err    error
}

func (f *fakeUseCase) CreateSale(ctx context.Context, input *dto.CreateSaleInput) (*dto.SaleResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, input)
	if f.err != nil {
		return nil, f.err
	}
	return &dto.SaleResult{Invoice: &model.Invoice{InvoiceNumber: "INV000001"}}, nil
}

func (f *fakeUseCase) GetInvoice(ctx context.Context, invoiceID string) (*dto.InvoiceDetail, error) {
	return nil, model.ErrNotFound
}

func (f *fakeUseCase) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inputs)
}

type fakeReader struct {
	msgs chan kafka.Message
}

func (r *fakeReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	case m := <-r.msgs:
		return m, nil
	}
}

const saleEvent = `{
	"event_id": "evt-1",
	"event_type": "SaleRequested",
	"payload": {
		"customer_id": "c1",
		"issued_by": "cashier-1",
		"lines": [
			{"product_id": "p1", "qty": 2, "unit_price": "100.00", "tax_percent": "18"},
			{"description": "Delivery", "qty": 1, "unit_price": 50}
		]
	},
	"timestamp": "2025-04-01T10:00:00Z"
}`

func TestProcessMessage(t *testing.T) {
	ctx := context.Background()

	t.Run("maps event to sale", func(t *testing.T) {
		uc := &fakeUseCase{}
		l := NewSaleListener(nil, uc, logger.NewNop())

		l.processMessage(ctx, []byte(saleEvent))

		require.Len(t, uc.inputs, 1)
		in := uc.inputs[0]
		assert.Equal(t, "c1", in.CustomerID)
		assert.Equal(t, "cashier-1", in.IssuedBy)
		require.Len(t, in.Lines, 2)
		assert.Equal(t, "p1", in.Lines[0].ProductID)
		assert.Equal(t, 2, in.Lines[0].Qty)
		assert.Equal(t, "100.00", in.Lines[0].UnitPrice.StringFixed(2))
		require.NotNil(t, in.Lines[0].TaxPercent)
		assert.Equal(t, "18", in.Lines[0].TaxPercent.String())
		assert.Nil(t, in.Lines[1].TaxPercent)
		assert.Equal(t, "50.00", in.Lines[1].UnitPrice.StringFixed(2))
	})

	t.Run("ignores other events and bad payloads", func(t *testing.T) {
		uc := &fakeUseCase{}
		l := NewSaleListener(nil, uc, logger.NewNop())

		other, err := json.Marshal(dto.SaleRequestedEvent{EventID: "evt-2", EventType: "OrderCreated"})
		require.NoError(t, err)

		l.processMessage(ctx, other)
		l.processMessage(ctx, []byte("{not json"))
		assert.Zero(t, uc.calls())
	})

	t.Run("rejected sale does not panic", func(t *testing.T) {
		uc := &fakeUseCase{err: &model.InsufficientStockError{ProductID: "p1", Requested: 2, Available: 1}}
		l := NewSaleListener(nil, uc, logger.NewNop())

		l.processMessage(ctx, []byte(saleEvent))
		assert.Equal(t, 1, uc.calls())
	})
}

func TestStartStopsOnCancel(t *testing.T) {
	uc := &fakeUseCase{}
	reader := &fakeReader{msgs: make(chan kafka.Message, 1)}
	l := NewSaleListener(reader, uc, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Start(ctx)
		close(done)
	}()

	reader.msgs <- kafka.Message{Value: []byte(saleEvent)}
	assert.Eventually(t, func() bool { return uc.calls() == 1 }, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("listener did not stop")
	}
}
