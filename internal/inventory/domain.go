package inventory

import (
	"errors"
	"fmt"
	"time"
)

// MovementType enumerates supported inventory movements. Quantities are
// always stored positive; direction is implied by the type.
type MovementType string

const (
	MovementPurchase      MovementType = "PURCHASE"
	MovementSale          MovementType = "SALE"
	MovementAdjustmentIn  MovementType = "ADJUSTMENT_IN"
	MovementAdjustmentOut MovementType = "ADJUSTMENT_OUT"
	MovementTransferIn    MovementType = "TRANSFER_IN"
	MovementTransferOut   MovementType = "TRANSFER_OUT"
	MovementReturn        MovementType = "RETURN"
)

// Inbound reports whether the type increases stock on hand.
func (t MovementType) Inbound() bool {
	switch t {
	case MovementPurchase, MovementAdjustmentIn, MovementTransferIn, MovementReturn:
		return true
	}
	return false
}

// Valid reports whether the type is one of the known movement types.
func (t MovementType) Valid() bool {
	switch t {
	case MovementPurchase, MovementSale, MovementAdjustmentIn, MovementAdjustmentOut,
		MovementTransferIn, MovementTransferOut, MovementReturn:
		return true
	}
	return false
}

// SourceKind tags the document a movement originated from.
type SourceKind string

const (
	SourceOrder             SourceKind = "ORDER"
	SourcePurchaseOrderItem SourceKind = "PO_ITEM"
	SourceManual            SourceKind = "MANUAL"
)

// SourceRef points at the originating document of a movement.
type SourceRef struct {
	Kind SourceKind
	ID   int64
}

// IsZero reports whether the reference is unset.
func (r SourceRef) IsZero() bool {
	return r.Kind == "" && r.ID == 0
}

func (r SourceRef) String() string {
	if r.IsZero() {
		return ""
	}
	return fmt.Sprintf("%s:%d", r.Kind, r.ID)
}

// Movement is one immutable ledger entry. Corrections are made with
// offsetting movements, never by editing rows.
type Movement struct {
	ID        int64
	ItemID    int64
	StoreID   int64
	Type      MovementType
	Qty       float64
	UnitCost  float64
	TotalCost float64
	LotID     int64
	Source    SourceRef
	Note      string
	CreatedAt time.Time
}

// LotStatus tracks the lifecycle of a batch.
type LotStatus string

const (
	LotActive   LotStatus = "ACTIVE"
	LotDepleted LotStatus = "DEPLETED"
)

// Lot is a batch received together, consumed in FIFO or LIFO order.
type Lot struct {
	ID           int64
	ItemID       int64
	StoreID      int64
	Code         string
	InitialQty   float64
	RemainingQty float64
	UnitCost     float64
	Status       LotStatus
	ExpiresAt    time.Time
	CreatedAt    time.Time
}

// StockLevel is the running aggregate for one (item, store) pair.
// TotalValue tracks Qty*AvgCost within cent-level rounding.
type StockLevel struct {
	ItemID      int64
	StoreID     int64
	Qty         float64
	AvgCost     float64
	TotalValue  float64
	ReservedQty float64
	MinimumQty  float64
	UpdatedAt   time.Time
}

// AvailableQty is quantity on hand minus reservations.
func (l StockLevel) AvailableQty() float64 {
	return l.Qty - l.ReservedQty
}

// LowStock reports whether the level sits at or under its minimum threshold.
func (l StockLevel) LowStock() bool {
	return l.MinimumQty > 0 && l.Qty <= l.MinimumQty
}

// LotDraw records a quantity taken from one lot during consumption.
type LotDraw struct {
	LotID    int64
	Qty      float64
	UnitCost float64
}

// ConsumeOrder selects lot consumption ordering.
type ConsumeOrder string

const (
	ConsumeFIFO ConsumeOrder = "FIFO"
	ConsumeLIFO ConsumeOrder = "LIFO"
)

var (
	// ErrInvalidQuantity indicates a zero or negative quantity.
	ErrInvalidQuantity = errors.New("inventory: quantity must be positive")
	// ErrInvalidUnitCost indicates a negative unit cost.
	ErrInvalidUnitCost = errors.New("inventory: unit cost must be >= 0")
	// ErrInvalidMovementType indicates an unknown movement type.
	ErrInvalidMovementType = errors.New("inventory: invalid movement type")
	// ErrNegativeStock triggered when movement would result in negative qty
	// and the store policy disallows it.
	ErrNegativeStock = errors.New("inventory: negative stock not allowed")
	// ErrInsufficientStock indicates lot consumption cannot satisfy the
	// requested quantity. No partial draw-down is committed.
	ErrInsufficientStock = errors.New("inventory: insufficient stock")
	// ErrMissingStore indicates a zero store id.
	ErrMissingStore = errors.New("inventory: store required")
	// ErrMissingItem indicates a zero item id.
	ErrMissingItem = errors.New("inventory: item required")
)
