package jobs

import (
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskOrderCogs books COGS for a completed order.
	TaskOrderCogs = "cogs:process-order"
	// TaskPurchaseReceipt books a received purchase order into inventory.
	TaskPurchaseReceipt = "purchasing:process-receipt"
	// TaskValuationReport runs the nightly valuation comparison.
	TaskValuationReport = "inventory:valuation-report"
)

var validate = validator.New()

// OrderCogsPayload identifies the completed order to process.
type OrderCogsPayload struct {
	OrderID int64 `json:"order_id" validate:"required,gt=0"`
}

// PurchaseReceiptPayload identifies the received purchase order to process.
type PurchaseReceiptPayload struct {
	POID int64 `json:"po_id" validate:"required,gt=0"`
}

// ValuationReportPayload carries scheduling metadata.
type ValuationReportPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewOrderCogsTask constructs an Asynq task for COGS processing.
func NewOrderCogsTask(orderID int64) (*asynq.Task, error) {
	payload := OrderCogsPayload{OrderID: orderID}
	if err := validate.Struct(payload); err != nil {
		return nil, err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOrderCogs, body, asynq.Queue(QueueDefault)), nil
}

// NewPurchaseReceiptTask constructs an Asynq task for receipt processing.
func NewPurchaseReceiptTask(poID int64) (*asynq.Task, error) {
	payload := PurchaseReceiptPayload{POID: poID}
	if err := validate.Struct(payload); err != nil {
		return nil, err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPurchaseReceipt, body, asynq.Queue(QueueDefault)), nil
}

// NewValuationReportTask constructs the nightly valuation report task.
func NewValuationReportTask(at time.Time) (*asynq.Task, error) {
	payload := ValuationReportPayload{ScheduledFor: at}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskValuationReport, body, asynq.Queue(QueueDefault)), nil
}
