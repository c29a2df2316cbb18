package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/procura-erp/procura/internal/app"
	"github.com/procura-erp/procura/internal/documents"
	"github.com/procura-erp/procura/internal/ledger"
	"github.com/procura-erp/procura/internal/platform/cache"
	"github.com/procura-erp/procura/internal/platform/db"
	"github.com/procura-erp/procura/internal/projection"
	"github.com/procura-erp/procura/internal/scheduler"
	"github.com/procura-erp/procura/internal/shared"
	"github.com/procura-erp/procura/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)

	ledgerRepo := ledger.NewRepository(pool)
	ledgerService := ledger.NewService(ledgerRepo, auditLogger)

	projectionCache := projection.NewCache(redisClient, cfg.ProjectionTTL)

	documentsRepo := documents.NewRepository(pool)
	documentsService := documents.NewService(documentsRepo, ledgerService, auditLogger, idempotencyStore, projectionCache)

	reorderService := scheduler.NewService(logger, ledgerService, documentsService)
	ledgerService.SetTrigger(reorderService)

	projectionService := projection.NewService(documentsRepo, ledgerService, projectionCache)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskReorderSweep, Handler: jobs.NewReorderSweepHandler(logger, reorderService)},
			{Type: jobs.TaskOrderDispatch, Handler: jobs.NewOrderDispatchHandler(logger, documentsService)},
			{Type: jobs.TaskProjectionRefresh, Handler: jobs.NewProjectionRefreshHandler(logger, projectionService)},
			{Type: jobs.TaskRetentionCleanup, Handler: jobs.NewRetentionCleanupHandler(logger, idempotencyStore)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.SweepCron, Task: jobs.NewReorderSweepTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: cfg.DispatchCron, Task: jobs.NewOrderDispatchTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: cfg.RefreshCron, Task: jobs.NewProjectionRefreshTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: cfg.CleanupCron, Task: jobs.NewRetentionCleanupTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("build worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("worker starting")
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("worker stopped")
}
