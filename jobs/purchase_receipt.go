package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
)

// ReceiptProcessor books a received purchase order into inventory.
type ReceiptProcessor interface {
	ProcessReceivedPurchaseOrder(ctx context.Context, poID int64) error
}

// PurchaseReceiptJob handles TaskPurchaseReceipt tasks. Already-processed
// lines are skipped by the service, so retried deliveries are safe.
type PurchaseReceiptJob struct {
	Service ReceiptProcessor
	Cache   CacheInvalidator
	Idem    IdempotencyPort
	Logger  *slog.Logger
}

// NewPurchaseReceiptJob constructs the job handler.
func NewPurchaseReceiptJob(service ReceiptProcessor, cache CacheInvalidator, idem IdempotencyPort, logger *slog.Logger) *PurchaseReceiptJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &PurchaseReceiptJob{Service: service, Cache: cache, Idem: idem, Logger: logger}
}

// Handle executes the receipt processing job.
func (j *PurchaseReceiptJob) Handle(ctx context.Context, task *asynq.Task) error {
	if j == nil || j.Service == nil {
		return errors.New("purchase receipt job: dependencies not configured")
	}
	var payload PurchaseReceiptPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if err := validate.Struct(payload); err != nil {
		j.Logger.Warn("purchase receipt payload invalid", slog.Any("error", err))
		return asynq.SkipRetry
	}
	key := fmt.Sprintf("%s:%d", TaskPurchaseReceipt, payload.POID)
	if done, err := claimKey(ctx, j.Idem, key); err != nil {
		j.Logger.Warn("idempotency check", slog.Any("error", err))
	} else if done {
		j.Logger.Info("purchase receipt duplicate delivery", slog.Int64("po_id", payload.POID))
		return nil
	}
	if err := j.Service.ProcessReceivedPurchaseOrder(ctx, payload.POID); err != nil {
		releaseKey(ctx, j.Idem, key)
		j.Logger.Error("purchase receipt failed", slog.Int64("po_id", payload.POID), slog.Any("error", err))
		return err
	}
	if j.Cache != nil {
		if err := j.Cache.Invalidate(ctx); err != nil {
			j.Logger.Warn("report cache invalidate", slog.Any("error", err))
		}
	}
	j.Logger.Info("purchase receipt processed", slog.Int64("po_id", payload.POID))
	return nil
}
