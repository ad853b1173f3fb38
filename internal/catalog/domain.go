package catalog

import "errors"

// InventoryItem is a trackable stock keeping unit, ingredient or resale good.
type InventoryItem struct {
	ID         int64
	StoreID    int64
	Name       string
	UnitID     int64
	UnitCost   float64
	TrackStock bool
	MinimumQty float64
}

// Product is a sellable catalog entry. Service items keep TrackInventory off.
type Product struct {
	ID             int64
	StoreID        int64
	Name           string
	TrackInventory bool
}

// Recipe maps a product to the inventory items consumed per yield.
type Recipe struct {
	ID        int64
	ProductID int64
	YieldQty  float64
	Active    bool
	Items     []RecipeItem
}

// RecipeItem is one bill-of-materials line.
type RecipeItem struct {
	ID              int64
	RecipeID        int64
	InventoryItemID int64
	// QtyPerYield is consumed per YieldQty units produced.
	QtyPerYield float64
	UnitCost    float64
}

// ErrNotFound indicates a missing catalog record.
var ErrNotFound = errors.New("catalog: not found")
