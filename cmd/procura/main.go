package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/procura-erp/procura/internal/app"
	"github.com/procura-erp/procura/internal/documents"
	"github.com/procura-erp/procura/internal/ledger"
	"github.com/procura-erp/procura/internal/observability"
	"github.com/procura-erp/procura/internal/platform/cache"
	"github.com/procura-erp/procura/internal/platform/db"
	"github.com/procura-erp/procura/internal/projection"
	"github.com/procura-erp/procura/internal/rbac"
	"github.com/procura-erp/procura/internal/scheduler"
	"github.com/procura-erp/procura/internal/shared"
	"github.com/procura-erp/procura/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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
		logger.Error("connect postgres", slog.Any("error", err))
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
	projectionCache.ListenForInvalidation(ctx)

	metrics := observability.NewMetrics()
	rbacMiddleware := rbac.Middleware{Logger: logger}

	documentsHandler := documents.NewHandler(logger, documentsService, rbacMiddleware, metrics)
	ledgerHandler := ledger.NewHandler(logger, ledgerService, rbacMiddleware)
	projectionHandler := projection.NewHandler(logger, projectionService, rbacMiddleware)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("build job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, jobClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		DocumentsHandler:  documentsHandler,
		LedgerHandler:     ledgerHandler,
		ProjectionHandler: projectionHandler,
		JobHandler:        jobHandler,
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
