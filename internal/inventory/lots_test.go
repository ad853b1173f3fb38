package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func seedLots(t *testing.T, repo *memoryInventoryRepo) (int64, int64) {
	t.Helper()
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	var first, second int64
	err := repo.WithTx(context.Background(), func(ctx context.Context, tx TxRepository) error {
		var err error
		first, err = tx.InsertLot(ctx, Lot{
			ItemID: 1, StoreID: 1, Code: "LOT-A",
			InitialQty: 10, RemainingQty: 10, UnitCost: 5,
			Status: LotActive, CreatedAt: base,
		})
		if err != nil {
			return err
		}
		second, err = tx.InsertLot(ctx, Lot{
			ItemID: 1, StoreID: 1, Code: "LOT-B",
			InitialQty: 10, RemainingQty: 10, UnitCost: 7,
			Status: LotActive, CreatedAt: base.Add(time.Hour),
		})
		return err
	})
	require.NoError(t, err)
	return first, second
}

func drawTotal(draws []LotDraw) float64 {
	var total float64
	for _, d := range draws {
		total += d.Qty * d.UnitCost
	}
	return total
}

func TestConsumeFIFO(t *testing.T) {
	repo := newMemoryInventoryRepo()
	first, second := seedLots(t, repo)
	svc := NewLotService(repo)

	draws, err := svc.ConsumeFIFO(context.Background(), 1, 1, 15)
	require.NoError(t, err)
	require.Len(t, draws, 2)
	require.Equal(t, first, draws[0].LotID)
	require.InDelta(t, 10, draws[0].Qty, qtyEpsilon)
	require.Equal(t, second, draws[1].LotID)
	require.InDelta(t, 5, draws[1].Qty, qtyEpsilon)
	require.InDelta(t, 85, drawTotal(draws), 0.01)

	require.Equal(t, LotDepleted, repo.lots[first].Status)
	require.Zero(t, repo.lots[first].RemainingQty)
	require.Equal(t, LotActive, repo.lots[second].Status)
	require.InDelta(t, 5, repo.lots[second].RemainingQty, qtyEpsilon)
}

func TestConsumeLIFO(t *testing.T) {
	repo := newMemoryInventoryRepo()
	first, second := seedLots(t, repo)
	svc := NewLotService(repo)

	draws, err := svc.ConsumeLIFO(context.Background(), 1, 1, 15)
	require.NoError(t, err)
	require.Len(t, draws, 2)
	require.Equal(t, second, draws[0].LotID)
	require.Equal(t, first, draws[1].LotID)
	require.InDelta(t, 95, drawTotal(draws), 0.01)
}

func TestConsumeInsufficientStock(t *testing.T) {
	repo := newMemoryInventoryRepo()
	first, second := seedLots(t, repo)
	svc := NewLotService(repo)

	_, err := svc.ConsumeFIFO(context.Background(), 1, 1, 25)
	require.ErrorIs(t, err, ErrInsufficientStock)

	// All-or-nothing: nothing was drawn down.
	require.InDelta(t, 10, repo.lots[first].RemainingQty, qtyEpsilon)
	require.InDelta(t, 10, repo.lots[second].RemainingQty, qtyEpsilon)
}

func TestConsumeSkipsDepletedLots(t *testing.T) {
	repo := newMemoryInventoryRepo()
	first, second := seedLots(t, repo)
	lot := repo.lots[first]
	lot.RemainingQty = 0
	lot.Status = LotDepleted
	repo.lots[first] = lot
	svc := NewLotService(repo)

	draws, err := svc.ConsumeFIFO(context.Background(), 1, 1, 5)
	require.NoError(t, err)
	require.Len(t, draws, 1)
	require.Equal(t, second, draws[0].LotID)
}

func TestCreateLot(t *testing.T) {
	repo := newMemoryInventoryRepo()
	svc := NewLotService(repo)
	ctx := context.Background()

	lot, err := svc.CreateLot(ctx, LotInput{
		ItemID: 3, StoreID: 1, Qty: 12, UnitCost: 4.5, Code: "LOT-PO-001",
	})
	require.NoError(t, err)
	require.NotZero(t, lot.ID)
	require.Equal(t, "LOT-PO-001", lot.Code)
	require.Equal(t, LotActive, lot.Status)
	require.InDelta(t, 12, lot.InitialQty, qtyEpsilon)
	require.InDelta(t, 12, lot.RemainingQty, qtyEpsilon)

	generated, err := svc.CreateLot(ctx, LotInput{
		ItemID: 3, StoreID: 1, Qty: 1, UnitCost: 1,
		Source: SourceRef{Kind: SourcePurchaseOrderItem, ID: 8},
	})
	require.NoError(t, err)
	require.NotEmpty(t, generated.Code)

	_, err = svc.CreateLot(ctx, LotInput{StoreID: 1, Qty: 1, UnitCost: 1})
	require.ErrorIs(t, err, ErrMissingItem)

	_, err = svc.CreateLot(ctx, LotInput{ItemID: 3, StoreID: 1, Qty: 0, UnitCost: 1})
	require.ErrorIs(t, err, ErrInvalidQuantity)
}
