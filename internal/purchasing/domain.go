package purchasing

import (
	"errors"
	"time"
)

// POStatus tracks the purchase order lifecycle. The receipt processor only
// acts on RECEIVED orders.
type POStatus string

const (
	POStatusDraft     POStatus = "DRAFT"
	POStatusSubmitted POStatus = "SUBMITTED"
	POStatusApproved  POStatus = "APPROVED"
	POStatusReceived  POStatus = "RECEIVED"
	POStatusCancelled POStatus = "CANCELLED"
)

// PurchaseOrder is the read model exposed by the purchase order subsystem.
type PurchaseOrder struct {
	ID         int64
	Number     string
	StoreID    int64
	SupplierID int64
	Status     POStatus
	// ReceivedAt is stamped once, on first successful receipt processing.
	ReceivedAt time.Time
}

// PurchaseOrderItem is one ordered line.
type PurchaseOrderItem struct {
	ID          int64
	POID        int64
	ItemID      int64
	QtyOrdered  float64
	QtyReceived float64
	UnitCost    float64
	ExpiresAt   time.Time
}

var (
	// ErrNotFound indicates a missing purchase order.
	ErrNotFound = errors.New("purchasing: not found")
	// ErrInvalidState occurs when the PO is not in RECEIVED status.
	ErrInvalidState = errors.New("purchasing: invalid state transition")
	// ErrMissingStore indicates a PO without a store reference.
	ErrMissingStore = errors.New("purchasing: purchase order missing store")
)
