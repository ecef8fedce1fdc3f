package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fekuna/omnipos-billing-service/internal/auth"
	"github.com/fekuna/omnipos-billing-service/internal/clock"
	"github.com/fekuna/omnipos-billing-service/internal/code"
	"github.com/fekuna/omnipos-billing-service/internal/inventory"
	invdto "github.com/fekuna/omnipos-billing-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-billing-service/internal/invoice"
	"github.com/fekuna/omnipos-billing-service/internal/invoice/dto"
	"github.com/fekuna/omnipos-billing-service/internal/metrics"
	"github.com/fekuna/omnipos-billing-service/internal/model"
	"github.com/fekuna/omnipos-billing-service/internal/reservation"
	resdto "github.com/fekuna/omnipos-billing-service/internal/reservation/dto"
	"github.com/fekuna/omnipos-billing-service/internal/tax"
	"github.com/fekuna/omnipos-billing-service/pkg/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	IndexName      = "invoices"
	publishTimeout = 5 * time.Second
)

// IndexMapping is applied when the invoices index is first created.
const IndexMapping = `{
	"mappings": {
		"properties": {
			"invoice.invoice_number": { "type": "keyword" },
			"invoice.customer_id": { "type": "keyword" },
			"invoice.total_amount": { "type": "scaled_float", "scaling_factor": 100 },
			"invoice.created_at": { "type": "date" },
			"items.product_id": { "type": "keyword" },
			"items.description": { "type": "text" }
		}
	}
}`

// SaleConfig carries the operator settings that shape a sale.
type SaleConfig struct {
	SupplierState      string
	Currency           string
	OversellFallback   bool
	AllowNegativeStock bool
}

type invoiceUseCase struct {
	repo         invoice.Repository
	reservations reservation.UseCase
	inventory    inventory.UseCase
	codes        code.UseCase
	publisher    invoice.EventPublisher
	indexer      invoice.Indexer
	clock        clock.Clock
	cfg          SaleConfig
	logger       logger.ZapLogger
}

type Option func(*invoiceUseCase)

func WithPublisher(p invoice.EventPublisher) Option {
	return func(uc *invoiceUseCase) {
		uc.publisher = p
	}
}

func WithIndexer(i invoice.Indexer) Option {
	return func(uc *invoiceUseCase) {
		uc.indexer = i
	}
}

func WithClock(c clock.Clock) Option {
	return func(uc *invoiceUseCase) {
		if c != nil {
			uc.clock = c
		}
	}
}

func NewInvoiceUseCase(
	repo invoice.Repository,
	reservations reservation.UseCase,
	inv inventory.UseCase,
	codes code.UseCase,
	cfg SaleConfig,
	log logger.ZapLogger,
	opts ...Option,
) invoice.UseCase {
	if cfg.Currency == "" {
		cfg.Currency = "INR"
	}
	uc := &invoiceUseCase{
		repo:         repo,
		reservations: reservations,
		inventory:    inv,
		codes:        codes,
		clock:        clock.NewSystem(),
		cfg:          cfg,
		logger:       log,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

type oversell struct {
	productID string
	removed   int
}

// sale tracks what one CreateSale call has done so far, so a failure can be
// undone.
type sale struct {
	invoiceID    string
	issuedBy     string
	reservations []*model.StockReservation
	oversold     []oversell
	log          logger.ZapLogger
}

func (s *sale) phase(name string) {
	s.log.Debug("sale phase", zap.String("phase", name))
}

func (uc *invoiceUseCase) CreateSale(ctx context.Context, input *dto.CreateSaleInput) (*dto.SaleResult, error) {
	result, err := uc.createSale(ctx, input)
	metrics.SalesTotal.WithLabelValues(string(invoice.Classify(err))).Inc()
	return result, err
}

func (uc *invoiceUseCase) createSale(ctx context.Context, input *dto.CreateSaleInput) (*dto.SaleResult, error) {
	if err := validate(input); err != nil {
		return nil, err
	}

	issuedBy := input.IssuedBy
	if issuedBy == "" {
		issuedBy = auth.ActorFromContext(ctx)
	}
	s := &sale{
		invoiceID: uuid.New().String(),
		issuedBy:  issuedBy,
	}
	s.log = uc.logger.With(zap.String("invoice_id", s.invoiceID))

	s.phase("collecting")
	lines, err := uc.resolveRates(ctx, input.Lines)
	if err != nil {
		return nil, err
	}

	customer, err := uc.repo.GetCustomer(ctx, input.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("get customer: %w", err)
	}
	if customer == nil {
		s.log.Warn("customer not found, treating jurisdiction as unknown", zap.String("customer_id", input.CustomerID))
	}

	breakdown := tax.Compute(uc.cfg.SupplierState, customer.Jurisdiction(), taxLines(lines))

	s.phase("reserving")
	for _, line := range lines {
		if line.ProductID == "" {
			continue
		}
		if err := uc.reserveLine(ctx, s, line); err != nil {
			s.phase("compensating")
			uc.compensate(ctx, s, resdto.ReasonCompensation)
			return nil, err
		}
	}

	s.phase("committing")
	now := uc.clock.Now()
	inv := &model.Invoice{
		BaseModel:   model.BaseModel{ID: s.invoiceID, CreatedAt: now, UpdatedAt: now},
		CustomerID:  input.CustomerID,
		Subtotal:    breakdown.Subtotal,
		CGSTAmount:  breakdown.CGST,
		SGSTAmount:  breakdown.SGST,
		IGSTAmount:  breakdown.IGST,
		TotalTax:    breakdown.TotalTax,
		TotalAmount: breakdown.Total,
		Currency:    uc.cfg.Currency,
		IssuedBy:    optional(issuedBy),
	}
	_, err = uc.codes.CreateWithCode(ctx, code.Invoices, func(ctx context.Context, number string) error {
		inv.InvoiceNumber = number
		return uc.repo.CreateInvoice(ctx, inv)
	})
	if err != nil {
		s.log.Error("invoice write failed", zap.Error(err))
		s.phase("compensating")
		uc.compensate(ctx, s, resdto.ReasonInvoiceFailed)
		return nil, fmt.Errorf("%w: %w", model.ErrInvoiceWriteFailed, err)
	}

	result := &dto.SaleResult{
		Invoice: inv,
		Items:   buildItems(inv.ID, lines),
	}
	if err := uc.repo.InsertInvoiceItems(ctx, result.Items); err != nil {
		s.log.Warn("invoice created but failed to insert items", zap.Error(err))
	} else {
		result.ItemsPersisted = true
	}
	for _, o := range s.oversold {
		result.Oversold = append(result.Oversold, o.productID)
	}

	s.phase("consuming")
	for _, r := range s.reservations {
		if _, err := uc.reservations.Consume(ctx, r.ID, issuedBy); err != nil {
			s.log.Error("failed to consume reservation",
				zap.String("reservation_id", r.ID),
				zap.String("product_id", r.ProductID),
				zap.Error(err),
			)
			result.UnconsumedReservations = append(result.UnconsumedReservations, r.ID)
		}
	}

	uc.afterCommit(ctx, result)
	s.log.Info("sale completed",
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.String("total", inv.TotalAmount.StringFixed(2)),
	)
	return result, nil
}

func validate(input *dto.CreateSaleInput) error {
	if len(input.Lines) == 0 {
		return fmt.Errorf("sale has no lines: %w", model.ErrInvalidQuantity)
	}
	for i, l := range input.Lines {
		if l.Qty <= 0 {
			return fmt.Errorf("line %d qty %d: %w", i, l.Qty, model.ErrInvalidQuantity)
		}
	}
	return nil
}

// resolveRates fills missing tax rates from the product. An unknown product
// or a product without a rate yields 0.
func (uc *invoiceUseCase) resolveRates(ctx context.Context, lines []dto.SaleLine) ([]dto.SaleLine, error) {
	out := make([]dto.SaleLine, len(lines))
	for i, l := range lines {
		out[i] = l
		if l.TaxPercent != nil {
			continue
		}
		rate := decimal.Zero
		if l.ProductID != "" {
			p, err := uc.repo.GetProduct(ctx, l.ProductID)
			if err != nil {
				return nil, fmt.Errorf("get product %s: %w", l.ProductID, err)
			}
			switch {
			case p == nil:
				uc.logger.Warn("product not found, using zero tax rate", zap.String("product_id", l.ProductID))
			case p.TaxPercent.Valid:
				rate = p.TaxPercent.Decimal
			}
		}
		out[i].TaxPercent = &rate
	}
	return out, nil
}

func (uc *invoiceUseCase) reserveLine(ctx context.Context, s *sale, line dto.SaleLine) error {
	res, err := uc.reservations.Reserve(ctx, &resdto.ReserveInput{
		ProductID: line.ProductID,
		Qty:       line.Qty,
		InvoiceID: s.invoiceID,
		CreatedBy: s.issuedBy,
	})
	if err == nil {
		s.reservations = append(s.reservations, res)
		return nil
	}

	switch {
	case errors.Is(err, model.ErrInsufficient):
		if !uc.cfg.OversellFallback {
			return err
		}
		removed, derr := uc.inventory.DecrementDirect(ctx, &invdto.DecrementInput{
			ProductID:     line.ProductID,
			Qty:           line.Qty,
			AllowNegative: uc.cfg.AllowNegativeStock,
			ReferenceType: "oversell",
			ReferenceID:   s.invoiceID,
			CreatedBy:     s.issuedBy,
		})
		if derr != nil && !errors.Is(derr, model.ErrConsistencyDrift) {
			s.log.Error("oversell fallback failed", zap.String("product_id", line.ProductID), zap.Error(derr))
			return err
		}
		s.log.Warn("line oversold",
			zap.String("product_id", line.ProductID),
			zap.Int("qty", line.Qty),
			zap.Int("removed", removed),
		)
		s.oversold = append(s.oversold, oversell{productID: line.ProductID, removed: removed})
		return nil

	case errors.Is(err, model.ErrNotFound):
		s.log.Warn("product not found, line sold without stock tracking", zap.String("product_id", line.ProductID))
		return nil

	default:
		return fmt.Errorf("reserve %s: %w", line.ProductID, err)
	}
}

// compensate releases every reservation of the sale and puts back oversold
// units. It never fails the caller; problems are logged.
func (uc *invoiceUseCase) compensate(ctx context.Context, s *sale, reason string) {
	if len(s.reservations) == 0 && len(s.oversold) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)
	metrics.CompensationsTotal.Inc()

	var errs error
	for _, r := range s.reservations {
		if _, err := uc.reservations.Release(ctx, r.ID, reason); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("release %s: %w", r.ID, err))
		}
	}
	for _, o := range s.oversold {
		if o.removed == 0 {
			continue
		}
		_, err := uc.inventory.RecordMovement(ctx, &invdto.RecordMovementInput{
			ProductID:     o.productID,
			Change:        o.removed,
			Reason:        model.MovementAdjustment,
			ReferenceType: "compensation",
			ReferenceID:   s.invoiceID,
			CreatedBy:     s.issuedBy,
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("restore %s: %w", o.productID, err))
		}
	}

	if errs != nil {
		s.log.Error("compensation incomplete",
			zap.Int("failures", len(multierr.Errors(errs))),
			zap.Error(errs),
		)
		return
	}
	s.log.Info("sale compensated",
		zap.Int("released", len(s.reservations)),
		zap.Int("restored", len(s.oversold)),
	)
}

func (uc *invoiceUseCase) afterCommit(ctx context.Context, result *dto.SaleResult) {
	detail := dto.InvoiceDetail{Invoice: result.Invoice, Items: result.Items}

	if uc.publisher != nil {
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		defer cancel()
		event := dto.InvoiceCreatedEvent{
			EventID:   uuid.New().String(),
			EventType: dto.EventInvoiceCreated,
			Payload:   detail,
			Timestamp: uc.clock.Now(),
		}
		if err := uc.publisher.Publish(pctx, result.Invoice.ID, event); err != nil {
			uc.logger.Error("failed to publish invoice event",
				zap.String("invoice_id", result.Invoice.ID),
				zap.Error(err),
			)
		}
	}

	if uc.indexer != nil {
		go uc.syncToElastic(context.WithoutCancel(ctx), detail)
	}
}

func (uc *invoiceUseCase) syncToElastic(ctx context.Context, detail dto.InvoiceDetail) {
	if err := uc.indexer.Index(ctx, IndexName, detail.Invoice.ID, detail); err != nil {
		uc.logger.Error("failed to index invoice", zap.String("invoice_id", detail.Invoice.ID), zap.Error(err))
	}
}

func (uc *invoiceUseCase) GetInvoice(ctx context.Context, invoiceID string) (*dto.InvoiceDetail, error) {
	inv, err := uc.repo.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, fmt.Errorf("invoice %s: %w", invoiceID, model.ErrNotFound)
	}
	items, err := uc.repo.ListInvoiceItems(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	return &dto.InvoiceDetail{Invoice: inv, Items: items}, nil
}

func taxLines(lines []dto.SaleLine) []tax.Line {
	out := make([]tax.Line, len(lines))
	for i, l := range lines {
		out[i] = tax.Line{
			Qty:        int64(l.Qty),
			UnitPrice:  l.UnitPrice,
			TaxPercent: *l.TaxPercent,
		}
	}
	return out
}

func buildItems(invoiceID string, lines []dto.SaleLine) []model.InvoiceItem {
	items := make([]model.InvoiceItem, len(lines))
	for i, l := range lines {
		items[i] = model.InvoiceItem{
			ID:          uuid.New().String(),
			InvoiceID:   invoiceID,
			Position:    i,
			ProductID:   optional(l.ProductID),
			Description: optional(l.Description),
			Qty:         l.Qty,
			UnitPrice:   l.UnitPrice,
			TaxPercent:  *l.TaxPercent,
			LineTotal:   tax.Round(tax.LineNet(tax.Line{Qty: int64(l.Qty), UnitPrice: l.UnitPrice})),
		}
	}
	return items
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
