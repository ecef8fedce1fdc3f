package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/fekuna/omnipos-billing-service/internal/clock"
	"github.com/fekuna/omnipos-billing-service/internal/inventory"
	"github.com/fekuna/omnipos-billing-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-billing-service/internal/metrics"
	"github.com/fekuna/omnipos-billing-service/internal/model"
	"github.com/fekuna/omnipos-billing-service/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type inventoryUseCase struct {
	repo   inventory.Repository
	clock  clock.Clock
	logger logger.ZapLogger
}

func NewInventoryUseCase(repo inventory.Repository, clk clock.Clock, log logger.ZapLogger) inventory.UseCase {
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &inventoryUseCase{
		repo:   repo,
		clock:  clk,
		logger: log,
	}
}

func (uc *inventoryUseCase) GetAvailability(ctx context.Context, productID string) (*model.Availability, error) {
	product, err := uc.repo.GetProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return nil, fmt.Errorf("product %s: %w", productID, model.ErrNotFound)
	}

	reserved, err := uc.repo.SumActiveReservations(ctx, productID)
	if err != nil {
		return nil, err
	}

	return &model.Availability{
		ProductID: productID,
		OnHand:    product.StockQty,
		Reserved:  reserved,
		Available: product.StockQty - reserved,
	}, nil
}

func (uc *inventoryUseCase) RecordMovement(ctx context.Context, input *dto.RecordMovementInput) (*model.StockMovement, error) {
	if input.Change == 0 {
		return nil, fmt.Errorf("movement change must be non-zero: %w", model.ErrInvalidQuantity)
	}
	if !input.Reason.Valid() {
		return nil, fmt.Errorf("reason %q: %w", input.Reason, model.ErrInvalidReason)
	}

	movement := &model.StockMovement{
		ID:            uuid.New().String(),
		ProductID:     input.ProductID,
		Change:        input.Change,
		Reason:        input.Reason,
		ReferenceType: optional(input.ReferenceType),
		ReferenceID:   optional(input.ReferenceID),
		UnitCost:      input.UnitCost,
		CreatedBy:     optional(input.CreatedBy),
		CreatedAt:     uc.clock.Now(),
	}

	if err := uc.repo.InsertMovement(ctx, movement); err != nil {
		return nil, err
	}

	if err := uc.repo.IncrementStock(ctx, input.ProductID, input.Change); err != nil {
		metrics.ConsistencyDriftTotal.Inc()
		uc.logger.Error("movement recorded but on-hand counter not updated",
			zap.String("product_id", input.ProductID),
			zap.String("movement_id", movement.ID),
			zap.Int("change", input.Change),
			zap.Error(err),
		)
		return movement, fmt.Errorf("%w: movement %s: %w", model.ErrConsistencyDrift, movement.ID, err)
	}

	return movement, nil
}

func (uc *inventoryUseCase) DecrementDirect(ctx context.Context, input *dto.DecrementInput) (int, error) {
	if input.Qty <= 0 {
		return 0, fmt.Errorf("decrement qty %d: %w", input.Qty, model.ErrInvalidQuantity)
	}

	before, after, err := uc.repo.DecrementStock(ctx, input.ProductID, input.Qty, input.AllowNegative)
	if err != nil {
		return 0, err
	}

	removed := before - after
	if removed == 0 {
		return 0, nil
	}
	if after < 0 {
		uc.logger.Warn("on-hand went negative after direct decrement",
			zap.String("product_id", input.ProductID),
			zap.Int("on_hand", after),
		)
	}

	refType := input.ReferenceType
	if refType == "" {
		refType = "oversell"
	}
	movement := &model.StockMovement{
		ID:            uuid.New().String(),
		ProductID:     input.ProductID,
		Change:        -removed,
		Reason:        model.MovementSale,
		ReferenceType: optional(refType),
		ReferenceID:   optional(input.ReferenceID),
		CreatedBy:     optional(input.CreatedBy),
		CreatedAt:     uc.clock.Now(),
	}
	if err := uc.repo.InsertMovement(ctx, movement); err != nil {
		metrics.ConsistencyDriftTotal.Inc()
		uc.logger.Error("direct decrement applied without ledger entry",
			zap.String("product_id", input.ProductID),
			zap.Int("removed", removed),
			zap.Error(err),
		)
		return removed, fmt.Errorf("%w: decrement of %s not recorded: %w", model.ErrConsistencyDrift, input.ProductID, err)
	}
	return removed, nil
}

func (uc *inventoryUseCase) Reconcile(ctx context.Context, productID string) (*model.Reconciliation, error) {
	before, ledger, err := uc.repo.RebuildStock(ctx, productID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, fmt.Errorf("product %s: %w", productID, err)
		}
		return nil, fmt.Errorf("rebuild on-hand: %w", err)
	}

	rec := &model.Reconciliation{
		ProductID: productID,
		Ledger:    ledger,
		Cached:    before,
		Drift:     before - ledger,
	}
	if rec.Drift != 0 {
		metrics.ConsistencyDriftTotal.Inc()
		uc.logger.Warn("on-hand counter drifted from ledger, rebuilt",
			zap.String("product_id", productID),
			zap.Int("ledger", ledger),
			zap.Int("cached", before),
		)
	}
	return rec, nil
}

func (uc *inventoryUseCase) ListMovements(ctx context.Context, filters *dto.MovementFilters) ([]model.StockMovement, int, error) {
	if filters == nil {
		filters = &dto.MovementFilters{}
	}
	if filters.Reason != "" && !filters.Reason.Valid() {
		return nil, 0, fmt.Errorf("reason %q: %w", filters.Reason, model.ErrInvalidReason)
	}
	return uc.repo.ListMovements(ctx, filters)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
