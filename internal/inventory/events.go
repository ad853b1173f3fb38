package inventory

import (
	"context"
	"time"
)

// LowStockEvent signals a stock level at or under its minimum threshold.
// The core only emits the signal; alerting belongs to the notification
// subsystem subscribed on the other end.
type LowStockEvent struct {
	EventID string    `json:"event_id"`
	ItemID  int64     `json:"item_id"`
	StoreID int64     `json:"store_id"`
	Qty     float64   `json:"qty"`
	Minimum float64   `json:"minimum"`
	At      time.Time `json:"at"`
}

// Notifier receives low stock events after a movement commits.
type Notifier interface {
	NotifyLowStock(ctx context.Context, evt LowStockEvent) error
}
