package inventory

import (
	"fmt"
	"math"
	"time"
)

// qtyEpsilon absorbs float drift when a balance is drawn down to zero.
const qtyEpsilon = 0.0001

// ApplyMovement returns the stock level after posting the movement.
// Inbound movements recalculate the weighted average; outbound movements
// consume at the current average and never change it. TotalValue is always
// recomputed as qty*avg after the update.
func ApplyMovement(level StockLevel, m Movement, allowNegative bool) (StockLevel, error) {
	if m.Qty <= 0 {
		return StockLevel{}, ErrInvalidQuantity
	}
	if m.UnitCost < 0 {
		return StockLevel{}, ErrInvalidUnitCost
	}
	if !m.Type.Valid() {
		return StockLevel{}, ErrInvalidMovementType
	}
	if m.Type.Inbound() {
		newQty := level.Qty + m.Qty
		totalCost := level.Qty*level.AvgCost + m.Qty*m.UnitCost
		if newQty > 0 {
			level.AvgCost = totalCost / newQty
		}
		level.Qty = newQty
	} else {
		newQty := level.Qty - m.Qty
		if math.Abs(newQty) < qtyEpsilon {
			newQty = 0
		}
		if newQty < 0 && !allowNegative {
			return StockLevel{}, ErrNegativeStock
		}
		level.Qty = newQty
	}
	level.TotalValue = round2(level.Qty * level.AvgCost)
	return level, nil
}

// PlanConsumption walks lots in the given slice order and plans draw-downs
// until qty is satisfied. Callers supply lots already ordered oldest-first
// for FIFO or newest-first for LIFO. Fails with ErrInsufficientStock when
// the available lot quantity cannot cover the request; nothing is mutated.
func PlanConsumption(lots []Lot, qty float64) ([]LotDraw, error) {
	if qty <= 0 {
		return nil, ErrInvalidQuantity
	}
	remaining := qty
	draws := []LotDraw{}
	for _, lot := range lots {
		if lot.Status != LotActive || lot.RemainingQty <= 0 {
			continue
		}
		take := math.Min(lot.RemainingQty, remaining)
		draws = append(draws, LotDraw{LotID: lot.ID, Qty: take, UnitCost: lot.UnitCost})
		remaining -= take
		if remaining < qtyEpsilon {
			return draws, nil
		}
	}
	return nil, ErrInsufficientStock
}

// NewLotCode derives a human-traceable lot code from the source purchase
// order number, item and receipt time.
func NewLotCode(poNumber string, itemID int64, at time.Time) string {
	return fmt.Sprintf("LOT-%s-%d-%s", poNumber, itemID, at.UTC().Format("20060102150405"))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
