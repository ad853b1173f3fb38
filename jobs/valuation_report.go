package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/abdulaziz27/xpresspos-inventory/internal/inventory"
)

// Valuer computes inventory value for one store under one costing method.
type Valuer interface {
	ValueInventory(ctx context.Context, storeID int64, method inventory.CostMethod) (inventory.ValuationReport, error)
}

// StoreLister enumerates stores carrying stock.
type StoreLister interface {
	ListStoreIDs(ctx context.Context) ([]int64, error)
}

// ValuationReportJob runs the nightly method-by-method valuation comparison
// and logs the result. It is a pure read; nothing is persisted.
type ValuationReportJob struct {
	Valuation Valuer
	Stores    StoreLister
	Logger    *slog.Logger
}

// NewValuationReportJob constructs the job handler.
func NewValuationReportJob(valuation Valuer, stores StoreLister, logger *slog.Logger) *ValuationReportJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &ValuationReportJob{Valuation: valuation, Stores: stores, Logger: logger}
}

// Handle executes the valuation report job.
func (j *ValuationReportJob) Handle(ctx context.Context, task *asynq.Task) error {
	if j == nil || j.Valuation == nil || j.Stores == nil {
		return errors.New("valuation report job: dependencies not configured")
	}
	var payload ValuationReportPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	storeIDs, err := j.Stores.ListStoreIDs(ctx)
	if err != nil {
		return err
	}
	methods := []inventory.CostMethod{inventory.CostWeightedAverage, inventory.CostFIFO, inventory.CostLIFO}
	for _, storeID := range storeIDs {
		attrs := []slog.Attr{slog.Int64("store_id", storeID)}
		for _, method := range methods {
			report, err := j.Valuation.ValueInventory(ctx, storeID, method)
			if err != nil {
				j.Logger.Error("valuation failed", slog.Int64("store_id", storeID), slog.String("method", string(method)), slog.Any("error", err))
				return err
			}
			attrs = append(attrs, slog.Float64(string(method), report.TotalValue))
		}
		j.Logger.LogAttrs(ctx, slog.LevelInfo, "inventory valuation", attrs...)
	}
	return nil
}
