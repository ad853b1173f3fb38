package cogs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/abdulaziz27/xpresspos-inventory/internal/catalog"
	"github.com/abdulaziz27/xpresspos-inventory/internal/inventory"
)

type stockKey struct {
	itemID  int64
	storeID int64
}

type memoryCogsRepo struct {
	orders    map[int64]Order
	items     map[int64][]OrderItem
	histories []CogsHistory
	details   []CogsDetail

	levels     map[stockKey]inventory.StockLevel
	movements  []inventory.Movement
	lots       map[int64]inventory.Lot
	nextMoveID int64
	nextLotID  int64
	nextHistID int64
}

type memoryCogsTx struct {
	repo *memoryCogsRepo
}

func newMemoryCogsRepo() *memoryCogsRepo {
	return &memoryCogsRepo{
		orders: make(map[int64]Order),
		items:  make(map[int64][]OrderItem),
		levels: make(map[stockKey]inventory.StockLevel),
		lots:   make(map[int64]inventory.Lot),
	}
}

func (r *memoryCogsRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryCogsTx{repo: r})
}

func (r *memoryCogsRepo) GetOrder(ctx context.Context, orderID int64) (Order, []OrderItem, error) {
	order, ok := r.orders[orderID]
	if !ok {
		return Order{}, nil, ErrOrderNotFound
	}
	return order, r.items[orderID], nil
}

func (r *memoryCogsRepo) HasCogsHistory(ctx context.Context, orderID int64) (bool, error) {
	for _, h := range r.histories {
		if h.OrderID == orderID {
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryCogsRepo) ListCogsHistories(ctx context.Context, orderID int64) ([]CogsHistory, error) {
	var out []CogsHistory
	for _, h := range r.histories {
		if h.OrderID == orderID {
			out = append(out, h)
		}
	}
	return out, nil
}

func (tx *memoryCogsTx) InsertMovement(ctx context.Context, m inventory.Movement) (int64, error) {
	tx.repo.nextMoveID++
	m.ID = tx.repo.nextMoveID
	tx.repo.movements = append(tx.repo.movements, m)
	return m.ID, nil
}

func (tx *memoryCogsTx) MovementExistsForSource(ctx context.Context, ref inventory.SourceRef) (bool, error) {
	for _, m := range tx.repo.movements {
		if m.Source == ref {
			return true, nil
		}
	}
	return false, nil
}

func (tx *memoryCogsTx) GetStockLevelForUpdate(ctx context.Context, itemID, storeID int64) (inventory.StockLevel, error) {
	level, ok := tx.repo.levels[stockKey{itemID, storeID}]
	if !ok {
		return inventory.StockLevel{ItemID: itemID, StoreID: storeID}, inventory.ErrStockLevelNotFound
	}
	return level, nil
}

func (tx *memoryCogsTx) UpsertStockLevel(ctx context.Context, level inventory.StockLevel) error {
	tx.repo.levels[stockKey{level.ItemID, level.StoreID}] = level
	return nil
}

func (tx *memoryCogsTx) InsertLot(ctx context.Context, lot inventory.Lot) (int64, error) {
	tx.repo.nextLotID++
	lot.ID = tx.repo.nextLotID
	tx.repo.lots[lot.ID] = lot
	return lot.ID, nil
}

func (tx *memoryCogsTx) ListActiveLotsForUpdate(ctx context.Context, itemID, storeID int64, order inventory.ConsumeOrder) ([]inventory.Lot, error) {
	return nil, nil
}

func (tx *memoryCogsTx) ApplyLotDraw(ctx context.Context, draw inventory.LotDraw) error {
	return nil
}

func (tx *memoryCogsTx) CogsHistoryExists(ctx context.Context, orderID int64) (bool, error) {
	return tx.repo.HasCogsHistory(ctx, orderID)
}

func (tx *memoryCogsTx) InsertCogsHistory(ctx context.Context, h CogsHistory) (int64, error) {
	tx.repo.nextHistID++
	h.ID = tx.repo.nextHistID
	tx.repo.histories = append(tx.repo.histories, h)
	return h.ID, nil
}

func (tx *memoryCogsTx) InsertCogsDetail(ctx context.Context, d CogsDetail) error {
	tx.repo.details = append(tx.repo.details, d)
	return nil
}

type memoryCatalog struct {
	products map[int64]catalog.Product
	recipes  map[int64]catalog.Recipe
	items    map[int64]catalog.InventoryItem
}

func (c *memoryCatalog) GetProduct(ctx context.Context, productID int64) (catalog.Product, error) {
	p, ok := c.products[productID]
	if !ok {
		return catalog.Product{}, catalog.ErrNotFound
	}
	return p, nil
}

func (c *memoryCatalog) GetActiveRecipe(ctx context.Context, productID int64) (catalog.Recipe, error) {
	r, ok := c.recipes[productID]
	if !ok {
		return catalog.Recipe{}, catalog.ErrNotFound
	}
	return r, nil
}

func (c *memoryCatalog) GetInventoryItem(ctx context.Context, itemID int64) (catalog.InventoryItem, error) {
	item, ok := c.items[itemID]
	if !ok {
		return catalog.InventoryItem{}, catalog.ErrNotFound
	}
	return item, nil
}

func newCogsFixture() (*memoryCogsRepo, *Service) {
	repo := newMemoryCogsRepo()
	cat := &memoryCatalog{
		products: map[int64]catalog.Product{
			10: {ID: 10, StoreID: 1, Name: "Latte", TrackInventory: true},
			11: {ID: 11, StoreID: 1, Name: "Service Fee", TrackInventory: false},
		},
		recipes: map[int64]catalog.Recipe{
			10: {
				ID: 1, ProductID: 10, YieldQty: 1, Active: true,
				Items: []catalog.RecipeItem{
					{ID: 1, RecipeID: 1, InventoryItemID: 100, QtyPerYield: 2, UnitCost: 3},
				},
			},
		},
		items: map[int64]catalog.InventoryItem{
			100: {ID: 100, StoreID: 1, Name: "Espresso Shot", UnitCost: 3, TrackStock: true},
		},
	}
	stock := inventory.NewService(nil, nil, nil, nil, inventory.ServiceConfig{})
	svc := NewService(repo, cat, stock, nil, nil)
	return repo, svc
}

func TestProcessOrderBooksCogs(t *testing.T) {
	repo, svc := newCogsFixture()
	repo.levels[stockKey{100, 1}] = inventory.StockLevel{ItemID: 100, StoreID: 1, Qty: 20, AvgCost: 3, TotalValue: 60}
	repo.orders[1] = Order{ID: 1, StoreID: 1, UserID: 5, Status: OrderStatusCompleted}
	repo.items[1] = []OrderItem{{ID: 1, OrderID: 1, ProductID: 10, Qty: 5}}

	require.NoError(t, svc.ProcessOrder(context.Background(), 1))

	require.Len(t, repo.movements, 1)
	movement := repo.movements[0]
	require.Equal(t, inventory.MovementSale, movement.Type)
	require.Equal(t, int64(100), movement.ItemID)
	require.InDelta(t, 10, movement.Qty, 0.0001)
	require.InDelta(t, 3, movement.UnitCost, 0.001)
	require.Equal(t, inventory.SourceRef{Kind: inventory.SourceOrder, ID: 1}, movement.Source)

	level := repo.levels[stockKey{100, 1}]
	require.InDelta(t, 10, level.Qty, 0.0001)
	require.InDelta(t, 3, level.AvgCost, 0.001)

	require.Len(t, repo.histories, 1)
	history := repo.histories[0]
	require.Equal(t, int64(1), history.OrderID)
	require.Equal(t, int64(10), history.ProductID)
	require.InDelta(t, 5, history.QtySold, 0.0001)
	require.InDelta(t, 30, history.TotalCogs, 0.01)
	require.InDelta(t, 6, history.UnitCost, 0.001)
	require.Equal(t, CalculationMethodRecipe, history.Method)
	require.Len(t, history.Breakdown, 1)
	require.Equal(t, "Espresso Shot", history.Breakdown[0].Name)
	require.InDelta(t, 30, history.Breakdown[0].TotalCost, 0.01)

	require.Len(t, repo.details, 1)
	require.Equal(t, history.ID, repo.details[0].CogsHistoryID)
	require.InDelta(t, 10, repo.details[0].Qty, 0.0001)
}

func TestProcessOrderIdempotent(t *testing.T) {
	repo, svc := newCogsFixture()
	repo.levels[stockKey{100, 1}] = inventory.StockLevel{ItemID: 100, StoreID: 1, Qty: 20, AvgCost: 3}
	repo.orders[1] = Order{ID: 1, StoreID: 1, Status: OrderStatusCompleted}
	repo.items[1] = []OrderItem{{ID: 1, OrderID: 1, ProductID: 10, Qty: 5}}

	require.NoError(t, svc.ProcessOrder(context.Background(), 1))
	require.NoError(t, svc.ProcessOrder(context.Background(), 1))

	require.Len(t, repo.movements, 1, "reprocessing must not double-book")
	require.Len(t, repo.histories, 1)
}

func TestProcessOrderAggregatesLines(t *testing.T) {
	repo, svc := newCogsFixture()
	repo.levels[stockKey{100, 1}] = inventory.StockLevel{ItemID: 100, StoreID: 1, Qty: 50, AvgCost: 3}
	repo.orders[1] = Order{ID: 1, StoreID: 1, Status: OrderStatusCompleted}
	repo.items[1] = []OrderItem{
		{ID: 1, OrderID: 1, ProductID: 10, Qty: 3},
		{ID: 2, OrderID: 1, ProductID: 10, Qty: 2},
	}

	require.NoError(t, svc.ProcessOrder(context.Background(), 1))

	require.Len(t, repo.movements, 1, "one movement per ingredient per product")
	require.InDelta(t, 10, repo.movements[0].Qty, 0.0001)
	require.Len(t, repo.histories, 1)
	require.InDelta(t, 5, repo.histories[0].QtySold, 0.0001)
	require.Len(t, repo.details, 2, "one detail per order line")
}

func TestProcessOrderSkipsUntrackedProduct(t *testing.T) {
	repo, svc := newCogsFixture()
	repo.orders[1] = Order{ID: 1, StoreID: 1, Status: OrderStatusCompleted}
	repo.items[1] = []OrderItem{{ID: 1, OrderID: 1, ProductID: 11, Qty: 2}}

	require.NoError(t, svc.ProcessOrder(context.Background(), 1))

	require.Empty(t, repo.movements)
	require.Empty(t, repo.histories)
}

func TestProcessOrderPreconditions(t *testing.T) {
	repo, svc := newCogsFixture()
	ctx := context.Background()

	err := svc.ProcessOrder(ctx, 404)
	require.ErrorIs(t, err, ErrOrderNotFound)

	repo.orders[2] = Order{ID: 2, StoreID: 1, Status: OrderStatusPending}
	err = svc.ProcessOrder(ctx, 2)
	require.ErrorIs(t, err, ErrOrderNotCompleted)

	repo.orders[3] = Order{ID: 3, Status: OrderStatusCompleted}
	err = svc.ProcessOrder(ctx, 3)
	require.ErrorIs(t, err, ErrOrderMissingStore)
}

func TestGetCogsHistories(t *testing.T) {
	repo, svc := newCogsFixture()
	repo.histories = append(repo.histories, CogsHistory{ID: 1, OrderID: 9, TotalCogs: 12})

	histories, err := svc.GetCogsHistories(context.Background(), 9)
	require.NoError(t, err)
	require.Len(t, histories, 1)
	require.InDelta(t, 12, histories[0].TotalCogs, 0.01)
}
