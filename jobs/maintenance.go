package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// TaskIdempotencyCleanup prunes aged idempotency keys.
const TaskIdempotencyCleanup = "maintenance:idempotency-cleanup"

// idempotencyRetention bounds how long processed-task keys are kept. Retried
// deliveries older than this are handled by the services' own source checks.
const idempotencyRetention = 30 * 24 * time.Hour

// IdempotencyPort suppresses duplicate task deliveries across workers.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

// NewIdempotencyCleanupTask constructs the periodic cleanup task.
func NewIdempotencyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskIdempotencyCleanup, nil, asynq.Queue(QueueDefault))
}

// IdempotencyCleanupJob handles TaskIdempotencyCleanup tasks.
type IdempotencyCleanupJob struct {
	Store  IdempotencyPort
	Logger *slog.Logger
}

// NewIdempotencyCleanupJob constructs the job handler.
func NewIdempotencyCleanupJob(store IdempotencyPort, logger *slog.Logger) *IdempotencyCleanupJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &IdempotencyCleanupJob{Store: store, Logger: logger}
}

// Handle prunes keys older than the retention window.
func (j *IdempotencyCleanupJob) Handle(ctx context.Context, task *asynq.Task) error {
	if j == nil || j.Store == nil {
		return errors.New("idempotency cleanup job: store not configured")
	}
	if err := j.Store.Cleanup(ctx, idempotencyRetention); err != nil {
		j.Logger.Error("idempotency cleanup failed", slog.Any("error", err))
		return err
	}
	j.Logger.Info("idempotency keys pruned", slog.Duration("retention", idempotencyRetention))
	return nil
}
