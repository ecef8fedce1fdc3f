package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/fekuna/omnipos-billing-service/internal/code"
	"github.com/fekuna/omnipos-billing-service/internal/model"
	"github.com/fekuna/omnipos-billing-service/pkg/logger"
	"go.uber.org/zap"
)

// MaxAttempts bounds CreateWithCode retries on code collisions.
const MaxAttempts = 5

type codeUseCase struct {
	repo    code.Repository
	counter code.Counter
	logger  logger.ZapLogger
}

// NewCodeUseCase builds the allocator. counter may be nil, in which case every
// code comes from scanning the existing ones.
func NewCodeUseCase(repo code.Repository, counter code.Counter, log logger.ZapLogger) code.UseCase {
	return &codeUseCase{
		repo:    repo,
		counter: counter,
		logger:  log,
	}
}

func (uc *codeUseCase) NextCode(ctx context.Context, series code.Series) (string, error) {
	if uc.counter != nil {
		n, err := uc.fromCounter(ctx, series)
		if err == nil {
			return series.Format(n), nil
		}
		uc.logger.Warn("code counter unavailable, scanning existing codes",
			zap.String("series", series.Name),
			zap.Error(err),
		)
	}

	max, err := uc.scanMax(ctx, series)
	if err != nil {
		return "", err
	}
	return series.Format(max + 1), nil
}

func (uc *codeUseCase) fromCounter(ctx context.Context, series code.Series) (int64, error) {
	key := counterKey(series)

	exists, err := uc.counter.Exists(ctx, key)
	if err != nil {
		return 0, err
	}
	if !exists {
		max, err := uc.scanMax(ctx, series)
		if err != nil {
			return 0, err
		}
		if err := uc.counter.Raise(ctx, key, max); err != nil {
			return 0, err
		}
	}
	return uc.counter.Incr(ctx, key)
}

func (uc *codeUseCase) scanMax(ctx context.Context, series code.Series) (int64, error) {
	codes, err := uc.repo.ListCodes(ctx, series.Table, series.Column, series.Prefix)
	if err != nil {
		return 0, err
	}
	return series.MaxSuffix(codes), nil
}

func (uc *codeUseCase) CreateWithCode(ctx context.Context, series code.Series, insert code.InsertFunc) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		next, err := uc.NextCode(ctx, series)
		if err != nil {
			return "", err
		}

		err = insert(ctx, next)
		if err == nil {
			return next, nil
		}
		if !errors.Is(err, model.ErrWriteConflict) {
			return "", err
		}

		lastErr = err
		uc.logger.Debug("code already taken, retrying",
			zap.String("series", series.Name),
			zap.String("code", next),
			zap.Int("attempt", attempt),
		)
		uc.resync(ctx, series)
	}
	return "", fmt.Errorf("%s after %d attempts: %w: %w", series.Name, MaxAttempts, model.ErrCodesExhausted, lastErr)
}

// resync lifts the counter past codes written while it was bypassed, for
// example by the scan fallback during a Redis outage.
func (uc *codeUseCase) resync(ctx context.Context, series code.Series) {
	if uc.counter == nil {
		return
	}
	max, err := uc.scanMax(ctx, series)
	if err == nil {
		err = uc.counter.Raise(ctx, counterKey(series), max)
	}
	if err != nil {
		uc.logger.Warn("failed to resync code counter", zap.String("series", series.Name), zap.Error(err))
	}
}

func counterKey(series code.Series) string {
	return "code:seq:" + series.Name
}
