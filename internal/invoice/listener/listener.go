package listener

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fekuna/omnipos-billing-service/internal/invoice"
	"github.com/fekuna/omnipos-billing-service/internal/invoice/dto"
	"github.com/fekuna/omnipos-billing-service/pkg/logger"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageReader is satisfied by broker.KafkaConsumer.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

type SaleListener struct {
	consumer MessageReader
	uc       invoice.UseCase
	logger   logger.ZapLogger
}

func NewSaleListener(consumer MessageReader, uc invoice.UseCase, logger logger.ZapLogger) *SaleListener {
	return &SaleListener{
		consumer: consumer,
		uc:       uc,
		logger:   logger,
	}
}

func (l *SaleListener) Start(ctx context.Context) {
	l.logger.Info("Starting Sale Kafka Listener")
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("Stopping Sale Kafka Listener")
			return
		default:
			msg, err := l.consumer.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				l.logger.Error("Failed to read kafka message", zap.Error(err))
				time.Sleep(1 * time.Second)
				continue
			}
			l.processMessage(ctx, msg.Value)
		}
	}
}

func (l *SaleListener) processMessage(ctx context.Context, value []byte) {
	var event dto.SaleRequestedEvent
	if err := json.Unmarshal(value, &event); err != nil {
		l.logger.Error("Failed to unmarshal event", zap.Error(err))
		return
	}

	if event.EventType != dto.EventSaleRequested {
		return
	}

	l.logger.Info("Processing SaleRequested event",
		zap.String("event_id", event.EventID),
		zap.String("customer_id", event.Payload.CustomerID),
	)

	input := &dto.CreateSaleInput{
		CustomerID: event.Payload.CustomerID,
		IssuedBy:   event.Payload.IssuedBy,
		Lines:      make([]dto.SaleLine, 0, len(event.Payload.Lines)),
	}
	for _, line := range event.Payload.Lines {
		input.Lines = append(input.Lines, dto.SaleLine{
			ProductID:   line.ProductID,
			Description: line.Description,
			Qty:         line.Qty,
			UnitPrice:   line.UnitPrice,
			TaxPercent:  line.TaxPercent,
		})
	}

	result, err := l.uc.CreateSale(ctx, input)
	if err != nil {
		l.logger.Error("Sale request rejected",
			zap.String("event_id", event.EventID),
			zap.String("outcome", string(invoice.Classify(err))),
			zap.Error(err),
		)
		return
	}

	l.logger.Info("Sale request invoiced",
		zap.String("event_id", event.EventID),
		zap.String("invoice_number", result.Invoice.InvoiceNumber),
	)
}
