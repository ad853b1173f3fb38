package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/abdulaziz27/xpresspos-inventory/internal/app"
	"github.com/abdulaziz27/xpresspos-inventory/internal/catalog"
	"github.com/abdulaziz27/xpresspos-inventory/internal/cogs"
	"github.com/abdulaziz27/xpresspos-inventory/internal/inventory"
	"github.com/abdulaziz27/xpresspos-inventory/internal/platform/cache"
	"github.com/abdulaziz27/xpresspos-inventory/internal/platform/db"
	"github.com/abdulaziz27/xpresspos-inventory/internal/purchasing"
	"github.com/abdulaziz27/xpresspos-inventory/internal/reports"
	"github.com/abdulaziz27/xpresspos-inventory/internal/shared"
	"github.com/abdulaziz27/xpresspos-inventory/jobs"
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

	audit := shared.NewAuditLogger(pool)
	idemStore := shared.NewIdempotencyStore(pool)
	notifier := inventory.NewRedisNotifier(redisClient, cfg.LowStockChannel)

	catalogRepo := catalog.NewRepository(pool)
	inventoryRepo := inventory.NewRepository(pool)
	inventoryService := inventory.NewService(inventoryRepo, audit, notifier, logger,
		inventory.ServiceConfig{AllowNegativeStock: cfg.AllowNegativeStock})
	valuationEngine := inventory.NewValuationEngine(inventoryRepo, catalogRepo)

	cogsRepo := cogs.NewRepository(pool)
	cogsService := cogs.NewService(cogsRepo, catalogRepo, inventoryService, audit, logger)

	purchasingRepo := purchasing.NewRepository(pool)
	receiptService := purchasing.NewReceiptService(purchasingRepo, inventoryService, audit, logger)

	reportsRepo := reports.NewRepository(pool)
	reportsCache := reports.NewCache(redisClient, cfg.ReportCacheTTL)
	reportsService := reports.NewService(reportsRepo, valuationEngine, reportsCache)

	cogsJob := jobs.NewOrderCogsJob(cogsService, reportsService, idemStore, logger)
	receiptJob := jobs.NewPurchaseReceiptJob(receiptService, reportsService, idemStore, logger)
	valuationJob := jobs.NewValuationReportJob(valuationEngine, reportsRepo, logger)
	cleanupJob := jobs.NewIdempotencyCleanupJob(idemStore, logger)

	valuationTask, err := jobs.NewValuationReportTask(time.Now().UTC())
	if err != nil {
		logger.Error("build valuation task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskOrderCogs, Handler: cogsJob.Handle},
			{Type: jobs.TaskPurchaseReceipt, Handler: receiptJob.Handle},
			{Type: jobs.TaskValuationReport, Handler: valuationJob.Handle},
			{Type: jobs.TaskIdempotencyCleanup, Handler: cleanupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 2 * * *", Task: valuationTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "30 3 * * 0", Task: jobs.NewIdempotencyCleanupTask()},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
