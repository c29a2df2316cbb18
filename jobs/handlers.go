package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// Sweeper evaluates the item catalog against reorder points.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// Dispatcher moves created purchase orders into transit.
type Dispatcher interface {
	DispatchCreatedOrders(ctx context.Context) (int, error)
}

// Refresher rebuilds cached projections.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Cleaner prunes aged records.
type Cleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

// NewReorderSweepHandler processes TaskReorderSweep tasks. The sweep is
// the backstop for trigger notifications lost while the API process was
// down.
func NewReorderSweepHandler(logger *slog.Logger, sweeper Sweeper) asynq.HandlerFunc {
	return func(ctx context.Context, _ *asynq.Task) error {
		started := time.Now()
		created, err := sweeper.Sweep(ctx)
		if err != nil {
			logger.Error("reorder sweep", slog.Any("error", err))
			return err
		}
		logger.Info("reorder sweep finished",
			slog.Int("requisitions_created", created),
			slog.Duration("took", time.Since(started)))
		return nil
	}
}

// NewOrderDispatchHandler processes TaskOrderDispatch tasks. Orders are
// created by quote acceptance under the system role; this is the only path
// that moves them out of their created status.
func NewOrderDispatchHandler(logger *slog.Logger, dispatcher Dispatcher) asynq.HandlerFunc {
	return func(ctx context.Context, _ *asynq.Task) error {
		started := time.Now()
		dispatched, err := dispatcher.DispatchCreatedOrders(ctx)
		if err != nil {
			logger.Error("order dispatch", slog.Any("error", err))
			return err
		}
		logger.Info("order dispatch finished",
			slog.Int("orders_dispatched", dispatched),
			slog.Duration("took", time.Since(started)))
		return nil
	}
}

// NewProjectionRefreshHandler processes TaskProjectionRefresh tasks.
func NewProjectionRefreshHandler(logger *slog.Logger, refresher Refresher) asynq.HandlerFunc {
	return func(ctx context.Context, _ *asynq.Task) error {
		if err := refresher.Refresh(ctx); err != nil {
			logger.Error("projection refresh", slog.Any("error", err))
			return err
		}
		logger.Info("projections refreshed")
		return nil
	}
}

// retentionWindow bounds how long processed idempotency keys are kept.
const retentionWindow = 7 * 24 * time.Hour

// NewRetentionCleanupHandler processes TaskRetentionCleanup tasks.
func NewRetentionCleanupHandler(logger *slog.Logger, cleaner Cleaner) asynq.HandlerFunc {
	return func(ctx context.Context, _ *asynq.Task) error {
		if err := cleaner.Cleanup(ctx, retentionWindow); err != nil {
			logger.Error("retention cleanup", slog.Any("error", err))
			return err
		}
		return nil
	}
}
