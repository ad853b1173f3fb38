package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/abdulaziz27/xpresspos-inventory/internal/shared"
)

// CogsProcessor books COGS for one completed order.
type CogsProcessor interface {
	ProcessOrder(ctx context.Context, orderID int64) error
}

// CacheInvalidator drops cached report summaries after ledger writes.
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// OrderCogsJob handles TaskOrderCogs tasks. The underlying service is
// idempotent per order, so retried deliveries are safe; the idempotency store
// only short-circuits duplicates before they reach the database.
type OrderCogsJob struct {
	Service CogsProcessor
	Cache   CacheInvalidator
	Idem    IdempotencyPort
	Logger  *slog.Logger
}

// NewOrderCogsJob constructs the job handler.
func NewOrderCogsJob(service CogsProcessor, cache CacheInvalidator, idem IdempotencyPort, logger *slog.Logger) *OrderCogsJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &OrderCogsJob{Service: service, Cache: cache, Idem: idem, Logger: logger}
}

// Handle executes the COGS processing job.
func (j *OrderCogsJob) Handle(ctx context.Context, task *asynq.Task) error {
	if j == nil || j.Service == nil {
		return errors.New("order cogs job: dependencies not configured")
	}
	var payload OrderCogsPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if err := validate.Struct(payload); err != nil {
		j.Logger.Warn("order cogs payload invalid", slog.Any("error", err))
		return asynq.SkipRetry
	}
	key := fmt.Sprintf("%s:%d", TaskOrderCogs, payload.OrderID)
	if done, err := claimKey(ctx, j.Idem, key); err != nil {
		j.Logger.Warn("idempotency check", slog.Any("error", err))
	} else if done {
		j.Logger.Info("order cogs duplicate delivery", slog.Int64("order_id", payload.OrderID))
		return nil
	}
	if err := j.Service.ProcessOrder(ctx, payload.OrderID); err != nil {
		releaseKey(ctx, j.Idem, key)
		j.Logger.Error("order cogs failed", slog.Int64("order_id", payload.OrderID), slog.Any("error", err))
		return err
	}
	if j.Cache != nil {
		if err := j.Cache.Invalidate(ctx); err != nil {
			j.Logger.Warn("report cache invalidate", slog.Any("error", err))
		}
	}
	j.Logger.Info("order cogs processed", slog.Int64("order_id", payload.OrderID))
	return nil
}

// claimKey registers the task key, reporting whether it was already claimed.
func claimKey(ctx context.Context, idem IdempotencyPort, key string) (bool, error) {
	if idem == nil {
		return false, nil
	}
	err := idem.CheckAndInsert(ctx, key, "jobs")
	if errors.Is(err, shared.ErrIdempotencyConflict) {
		return true, nil
	}
	return false, err
}

// releaseKey frees a claimed key so the next retry can run the task again.
func releaseKey(ctx context.Context, idem IdempotencyPort, key string) {
	if idem == nil {
		return
	}
	_ = idem.Delete(ctx, key)
}
