package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads catalog data from PostgreSQL. The inventory core never
// writes to the catalog; item and recipe lifecycle belongs to catalog
// management.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetInventoryItem loads one item by id.
func (r *Repository) GetInventoryItem(ctx context.Context, itemID int64) (InventoryItem, error) {
	if r == nil {
		return InventoryItem{}, errors.New("catalog repository not initialised")
	}
	var item InventoryItem
	err := r.pool.QueryRow(ctx, `SELECT id, store_id, name, unit_id, unit_cost, track_stock, minimum_qty
FROM inventory_items WHERE id=$1`, itemID).
		Scan(&item.ID, &item.StoreID, &item.Name, &item.UnitID, &item.UnitCost, &item.TrackStock, &item.MinimumQty)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return InventoryItem{}, ErrNotFound
		}
		return InventoryItem{}, err
	}
	return item, nil
}

// ListInventoryItems lists items for a store.
func (r *Repository) ListInventoryItems(ctx context.Context, storeID int64) ([]InventoryItem, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, store_id, name, unit_id, unit_cost, track_stock, minimum_qty
FROM inventory_items WHERE store_id=$1 ORDER BY id ASC`, storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []InventoryItem{}
	for rows.Next() {
		var item InventoryItem
		if err := rows.Scan(&item.ID, &item.StoreID, &item.Name, &item.UnitID, &item.UnitCost, &item.TrackStock, &item.MinimumQty); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// GetActiveRecipe finds the active recipe for a product including its lines.
// Returns ErrNotFound when the product has no active recipe.
func (r *Repository) GetActiveRecipe(ctx context.Context, productID int64) (Recipe, error) {
	var recipe Recipe
	err := r.pool.QueryRow(ctx, `SELECT id, product_id, yield_qty, active FROM recipes
WHERE product_id=$1 AND active=TRUE ORDER BY id DESC LIMIT 1`, productID).
		Scan(&recipe.ID, &recipe.ProductID, &recipe.YieldQty, &recipe.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Recipe{}, ErrNotFound
		}
		return Recipe{}, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, recipe_id, inventory_item_id, qty_per_yield, unit_cost
FROM recipe_items WHERE recipe_id=$1 ORDER BY id ASC`, recipe.ID)
	if err != nil {
		return Recipe{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line RecipeItem
		if err := rows.Scan(&line.ID, &line.RecipeID, &line.InventoryItemID, &line.QtyPerYield, &line.UnitCost); err != nil {
			return Recipe{}, err
		}
		recipe.Items = append(recipe.Items, line)
	}
	return recipe, rows.Err()
}

// GetProduct loads a sellable product.
func (r *Repository) GetProduct(ctx context.Context, productID int64) (Product, error) {
	var p Product
	err := r.pool.QueryRow(ctx, `SELECT id, store_id, name, track_inventory FROM products WHERE id=$1`, productID).
		Scan(&p.ID, &p.StoreID, &p.Name, &p.TrackInventory)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, err
	}
	return p, nil
}
