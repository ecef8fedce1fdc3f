package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fekuna/omnipos-billing-service/internal/clock"
	"github.com/fekuna/omnipos-billing-service/internal/inventory"
	invdto "github.com/fekuna/omnipos-billing-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-billing-service/internal/metrics"
	"github.com/fekuna/omnipos-billing-service/internal/model"
	"github.com/fekuna/omnipos-billing-service/internal/reservation"
	"github.com/fekuna/omnipos-billing-service/internal/reservation/dto"
	"github.com/fekuna/omnipos-billing-service/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	defaultTTL      = 15 * time.Minute
	lockTTL         = 5 * time.Second
	lockAttempts    = 3
	lockRetryDelay  = 50 * time.Millisecond
	expireBatchSize = 100
)

type reservationUseCase struct {
	repo      reservation.Repository
	inventory inventory.UseCase
	clock     clock.Clock
	locker    reservation.Locker
	ttl       time.Duration
	logger    logger.ZapLogger
}

type Option func(*reservationUseCase)

// WithTTL sets how long a reservation stays active. Zero disables expiry.
func WithTTL(d time.Duration) Option {
	return func(uc *reservationUseCase) {
		if d >= 0 {
			uc.ttl = d
		}
	}
}

// WithLocker serializes availability checks per product through l.
func WithLocker(l reservation.Locker) Option {
	return func(uc *reservationUseCase) {
		uc.locker = l
	}
}

func WithClock(c clock.Clock) Option {
	return func(uc *reservationUseCase) {
		if c != nil {
			uc.clock = c
		}
	}
}

func NewReservationUseCase(repo reservation.Repository, inv inventory.UseCase, log logger.ZapLogger, opts ...Option) reservation.UseCase {
	uc := &reservationUseCase{
		repo:      repo,
		inventory: inv,
		clock:     clock.NewSystem(),
		ttl:       defaultTTL,
		logger:    log,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

func (uc *reservationUseCase) Reserve(ctx context.Context, input *dto.ReserveInput) (*model.StockReservation, error) {
	if input.Qty <= 0 {
		return nil, fmt.Errorf("reserve qty %d: %w", input.Qty, model.ErrInvalidQuantity)
	}

	if uc.locker != nil {
		unlock, err := uc.lock(ctx, input.ProductID)
		if err != nil {
			return nil, err
		}
		defer unlock()
	}

	now := uc.clock.Now()
	res := &model.StockReservation{
		ID:        uuid.New().String(),
		ProductID: input.ProductID,
		Qty:       input.Qty,
		Status:    model.ReservationActive,
		InvoiceID: optional(input.InvoiceID),
		CreatedBy: optional(input.CreatedBy),
		Meta:      model.ReservationMeta{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if uc.ttl > 0 {
		expires := now.Add(uc.ttl)
		res.ExpiresAt = &expires
	}

	if cond, ok := uc.repo.(reservation.ConditionalRepository); ok {
		available, created, err := cond.CreateReservationIfAvailable(ctx, res)
		if err != nil {
			if errors.Is(err, model.ErrNotFound) {
				return nil, fmt.Errorf("product %s: %w", input.ProductID, err)
			}
			return nil, err
		}
		if !created {
			return nil, uc.insufficient(input, available)
		}
		metrics.ReservationsTotal.WithLabelValues("reserved").Inc()
		return res, nil
	}

	avail, err := uc.inventory.GetAvailability(ctx, input.ProductID)
	if err != nil {
		return nil, err
	}
	if input.Qty > avail.Available {
		return nil, uc.insufficient(input, avail.Available)
	}

	// Without a conditional store or a lock, a concurrent reservation can
	// pass the same check before either row is written.
	if err := uc.repo.CreateReservation(ctx, res); err != nil {
		return nil, err
	}
	metrics.ReservationsTotal.WithLabelValues("reserved").Inc()
	return res, nil
}

func (uc *reservationUseCase) insufficient(input *dto.ReserveInput, available int) error {
	metrics.ReservationsTotal.WithLabelValues("insufficient").Inc()
	return &model.InsufficientStockError{
		ProductID: input.ProductID,
		Requested: input.Qty,
		Available: available,
	}
}

func (uc *reservationUseCase) lock(ctx context.Context, productID string) (func(), error) {
	key := fmt.Sprintf("lock:stock:%s", productID)
	value := uuid.New().String()

	for i := 0; i < lockAttempts; i++ {
		ok, err := uc.locker.AcquireLock(ctx, key, value, lockTTL)
		if err != nil {
			uc.logger.Error("failed to acquire stock lock", zap.String("key", key), zap.Error(err))
		}
		if ok {
			return func() {
				if err := uc.locker.ReleaseLock(context.WithoutCancel(ctx), key, value); err != nil {
					uc.logger.Warn("failed to release stock lock", zap.String("key", key), zap.Error(err))
				}
			}, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryDelay):
		}
	}
	return nil, fmt.Errorf("product %s: %w", productID, model.ErrLockBusy)
}

func (uc *reservationUseCase) Consume(ctx context.Context, reservationID, createdBy string) (*model.StockReservation, error) {
	res, err := uc.get(ctx, reservationID)
	if err != nil {
		return nil, err
	}

	switch res.Status {
	case model.ReservationConsumed:
		return res, nil
	case model.ReservationReleased:
		return nil, fmt.Errorf("consume reservation %s: %w", reservationID, model.ErrReservationClosed)
	}

	now := uc.clock.Now()
	meta := model.ReservationMeta{"consumed_at": now.Format(time.RFC3339)}
	done, err := uc.repo.TransitionReservation(ctx, reservationID, model.ReservationActive, model.ReservationConsumed, meta, now)
	if err != nil {
		return nil, err
	}
	if !done {
		// Lost a race with another transition; settle on whatever won.
		current, err := uc.get(ctx, reservationID)
		if err != nil {
			return nil, err
		}
		if current.Status == model.ReservationConsumed {
			return current, nil
		}
		return nil, fmt.Errorf("consume reservation %s: %w", reservationID, model.ErrReservationClosed)
	}

	res.Status = model.ReservationConsumed
	res.Meta = res.Meta.Merge(meta)
	res.UpdatedAt = now
	metrics.ReservationsTotal.WithLabelValues("consumed").Inc()

	_, err = uc.inventory.RecordMovement(ctx, &invdto.RecordMovementInput{
		ProductID:     res.ProductID,
		Change:        -res.Qty,
		Reason:        model.MovementSale,
		ReferenceType: "reservation",
		ReferenceID:   res.ID,
		CreatedBy:     createdBy,
	})
	if errors.Is(err, model.ErrConsistencyDrift) {
		// The movement is written; only the cached counter lags.
		uc.logger.Warn("reservation consumed, on-hand counter needs reconcile",
			zap.String("reservation_id", res.ID),
			zap.String("product_id", res.ProductID),
			zap.Error(err),
		)
		return res, nil
	}
	if err != nil {
		uc.logger.Error("reservation consumed but stock movement failed",
			zap.String("reservation_id", res.ID),
			zap.String("product_id", res.ProductID),
			zap.Error(err),
		)
		return res, err
	}
	return res, nil
}

func (uc *reservationUseCase) Release(ctx context.Context, reservationID, reason string) (*model.StockReservation, error) {
	res, err := uc.get(ctx, reservationID)
	if err != nil {
		return nil, err
	}

	switch res.Status {
	case model.ReservationReleased:
		return res, nil
	case model.ReservationConsumed:
		return nil, fmt.Errorf("release reservation %s: %w", reservationID, model.ErrReservationClosed)
	}

	if reason == "" {
		reason = dto.ReasonManual
	}
	now := uc.clock.Now()
	meta := model.ReservationMeta{
		"reason":      reason,
		"released_at": now.Format(time.RFC3339),
	}
	done, err := uc.repo.TransitionReservation(ctx, reservationID, model.ReservationActive, model.ReservationReleased, meta, now)
	if err != nil {
		return nil, err
	}
	if !done {
		current, err := uc.get(ctx, reservationID)
		if err != nil {
			return nil, err
		}
		if current.Status == model.ReservationReleased {
			return current, nil
		}
		return nil, fmt.Errorf("release reservation %s: %w", reservationID, model.ErrReservationClosed)
	}

	res.Status = model.ReservationReleased
	res.Meta = res.Meta.Merge(meta)
	res.UpdatedAt = now
	metrics.ReservationsTotal.WithLabelValues("released").Inc()
	return res, nil
}

func (uc *reservationUseCase) GetReservation(ctx context.Context, reservationID string) (*model.StockReservation, error) {
	return uc.get(ctx, reservationID)
}

// ExpireStale releases active reservations past their expiry. A reservation
// whose invoice was committed is consumed instead: its sale happened and only
// the consume step was lost.
func (uc *reservationUseCase) ExpireStale(ctx context.Context) (int, error) {
	expired, err := uc.repo.ListExpiredReservations(ctx, uc.clock.Now(), expireBatchSize)
	if err != nil {
		return 0, err
	}

	var (
		released, settled int
		errs              error
	)
	for _, res := range expired {
		if res.InvoiceID != nil {
			invoiced, err := uc.repo.InvoiceExists(ctx, *res.InvoiceID)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("expire %s: %w", res.ID, err))
				continue
			}
			if invoiced {
				createdBy := ""
				if res.CreatedBy != nil {
					createdBy = *res.CreatedBy
				}
				if _, err := uc.Consume(ctx, res.ID, createdBy); err != nil {
					errs = multierr.Append(errs, fmt.Errorf("settle %s: %w", res.ID, err))
					continue
				}
				settled++
				continue
			}
		}

		if _, err := uc.Release(ctx, res.ID, dto.ReasonExpired); err != nil {
			// Consumed between listing and release.
			if errors.Is(err, model.ErrReservationClosed) {
				continue
			}
			errs = multierr.Append(errs, fmt.Errorf("expire %s: %w", res.ID, err))
			continue
		}
		released++
	}

	if released > 0 || settled > 0 {
		uc.logger.Info("processed expired reservations",
			zap.Int("released", released),
			zap.Int("consumed", settled),
		)
	}
	return released, errs
}

func (uc *reservationUseCase) get(ctx context.Context, id string) (*model.StockReservation, error) {
	res, err := uc.repo.GetReservation(ctx, id)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, fmt.Errorf("reservation %s: %w", id, model.ErrNotFound)
	}
	return res, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
