package reports

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/abdulaziz27/xpresspos-inventory/internal/inventory"
)

type memoryReportsRepo struct {
	movementCalls int
	cogsCalls     int
	movements     []MovementSummaryRow
	cogs          []CogsSummaryRow
}

func (r *memoryReportsRepo) MovementSummary(ctx context.Context, storeID int64, from, to time.Time) ([]MovementSummaryRow, error) {
	r.movementCalls++
	return r.movements, nil
}

func (r *memoryReportsRepo) CogsSummary(ctx context.Context, storeID int64, from, to time.Time) ([]CogsSummaryRow, error) {
	r.cogsCalls++
	return r.cogs, nil
}

type staticValuer struct {
	report inventory.ValuationReport
}

func (v *staticValuer) ValueInventory(ctx context.Context, storeID int64, method inventory.CostMethod) (inventory.ValuationReport, error) {
	return v.report, nil
}

func newReportsFixture(t *testing.T) (*memoryReportsRepo, *Service, *Cache) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := &memoryReportsRepo{
		movements: []MovementSummaryRow{
			{Type: inventory.MovementPurchase, Count: 3, Qty: 30, TotalCost: 150},
			{Type: inventory.MovementSale, Count: 5, Qty: 12, TotalCost: 60},
		},
		cogs: []CogsSummaryRow{
			{ProductID: 10, Name: "Latte", QtySold: 5, TotalCogs: 30},
		},
	}
	cache := NewCache(client, time.Minute)
	svc := NewService(repo, &staticValuer{report: inventory.ValuationReport{StoreID: 1, TotalValue: 210}}, cache)
	return repo, svc, cache
}

func TestGetMovementSummaryCaches(t *testing.T) {
	repo, svc, _ := newReportsFixture(t)
	ctx := context.Background()
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)

	rows, err := svc.GetMovementSummary(ctx, 1, from, to)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, inventory.MovementPurchase, rows[0].Type)
	require.Equal(t, 1, repo.movementCalls)

	rows, err = svc.GetMovementSummary(ctx, 1, from, to)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, 1, repo.movementCalls, "second read served from cache")

	_, err = svc.GetMovementSummary(ctx, 0, from, to)
	require.ErrorIs(t, err, inventory.ErrMissingStore)
}

func TestInvalidateBumpsVersion(t *testing.T) {
	repo, svc, cache := newReportsFixture(t)
	ctx := context.Background()

	_, err := svc.GetCogsSummary(ctx, 1, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Equal(t, 1, repo.cogsCalls)

	before, err := cache.Version(ctx)
	require.NoError(t, err)
	require.NoError(t, svc.Invalidate(ctx))
	after, err := cache.Version(ctx)
	require.NoError(t, err)
	require.Equal(t, before+1, after)

	_, err = svc.GetCogsSummary(ctx, 1, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Equal(t, 2, repo.cogsCalls, "bump forces a reload")
}

func TestGetInventoryValuationNotCached(t *testing.T) {
	_, svc, _ := newReportsFixture(t)

	report, err := svc.GetInventoryValuation(context.Background(), 1, inventory.CostWeightedAverage)
	require.NoError(t, err)
	require.InDelta(t, 210, report.TotalValue, 0.01)
}

func TestCacheWithoutClient(t *testing.T) {
	repo := &memoryReportsRepo{
		movements: []MovementSummaryRow{{Type: inventory.MovementSale, Count: 1, Qty: 2, TotalCost: 4}},
	}
	svc := NewService(repo, &staticValuer{}, NewCache(nil, time.Minute))

	rows, err := svc.GetMovementSummary(context.Background(), 1, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	rows, err = svc.GetMovementSummary(context.Background(), 1, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, 2, repo.movementCalls, "no client means loader runs every time")
}
