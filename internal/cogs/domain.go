package cogs

import (
	"errors"
	"time"
)

// OrderStatus mirrors the sales subsystem's lifecycle. Only completed
// orders are eligible for COGS processing.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusCompleted OrderStatus = "COMPLETED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusRefunded  OrderStatus = "REFUNDED"
)

// Order is the read model exposed by the sales subsystem.
type Order struct {
	ID          int64
	StoreID     int64
	UserID      int64
	Status      OrderStatus
	CompletedAt time.Time
}

// OrderItem is one sold line.
type OrderItem struct {
	ID        int64
	OrderID   int64
	ProductID int64
	Qty       float64
}

// CalculationMethodRecipe marks histories costed from the product recipe at
// recipe-time ingredient costs.
const CalculationMethodRecipe = "RECIPE_COST"

// CostComponent is one ingredient line of a cost breakdown.
type CostComponent struct {
	InventoryItemID int64   `json:"inventory_item_id"`
	Name            string  `json:"name"`
	Qty             float64 `json:"qty"`
	UnitCost        float64 `json:"unit_cost"`
	TotalCost       float64 `json:"total_cost"`
}

// CogsHistory is the financial summary for one (order, product) pairing.
// Never mutated after creation.
type CogsHistory struct {
	ID        int64
	OrderID   int64
	ProductID int64
	StoreID   int64
	QtySold   float64
	UnitCost  float64
	TotalCogs float64
	Method    string
	Breakdown []CostComponent
	CreatedAt time.Time
}

// CogsDetail links one order line to one consumed ingredient.
type CogsDetail struct {
	ID              int64
	CogsHistoryID   int64
	OrderItemID     int64
	InventoryItemID int64
	LotID           int64
	Qty             float64
	UnitCost        float64
	TotalCost       float64
}

var (
	// ErrOrderNotFound indicates a missing order.
	ErrOrderNotFound = errors.New("cogs: order not found")
	// ErrOrderNotCompleted indicates the order has not reached COMPLETED.
	ErrOrderNotCompleted = errors.New("cogs: order not completed")
	// ErrOrderMissingStore indicates an order without a store reference.
	ErrOrderMissingStore = errors.New("cogs: order missing store")
)
