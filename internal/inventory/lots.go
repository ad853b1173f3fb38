package inventory

import (
	"context"
	"time"
)

// LotInput describes a batch created on purchase receipt.
type LotInput struct {
	ItemID    int64
	StoreID   int64
	Qty       float64
	UnitCost  float64
	Code      string
	Source    SourceRef
	ExpiresAt time.Time
}

// LotService tracks FIFO/LIFO batches. Lots are an optional refinement on
// top of the always-present weighted-average costing; items never restocked
// through purchase orders simply have no lots.
type LotService struct {
	repo RepositoryPort
}

// NewLotService builds LotService.
func NewLotService(repo RepositoryPort) *LotService {
	return &LotService{repo: repo}
}

// CreateLot registers a batch. Standalone variant of CreateLotTx running in
// its own transaction.
func (s *LotService) CreateLot(ctx context.Context, input LotInput) (Lot, error) {
	var lot Lot
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		lot, err = CreateLotTx(ctx, tx, input)
		return err
	})
	if err != nil {
		return Lot{}, err
	}
	return lot, nil
}

// CreateLotTx registers a batch inside an existing transaction scope.
func CreateLotTx(ctx context.Context, tx TxRepository, input LotInput) (Lot, error) {
	if input.ItemID == 0 {
		return Lot{}, ErrMissingItem
	}
	if input.StoreID == 0 {
		return Lot{}, ErrMissingStore
	}
	if input.Qty <= 0 {
		return Lot{}, ErrInvalidQuantity
	}
	if input.UnitCost < 0 {
		return Lot{}, ErrInvalidUnitCost
	}
	now := time.Now().UTC()
	code := input.Code
	if code == "" {
		code = NewLotCode(input.Source.String(), input.ItemID, now)
	}
	lot := Lot{
		ItemID:       input.ItemID,
		StoreID:      input.StoreID,
		Code:         code,
		InitialQty:   input.Qty,
		RemainingQty: input.Qty,
		UnitCost:     input.UnitCost,
		Status:       LotActive,
		ExpiresAt:    input.ExpiresAt,
		CreatedAt:    now,
	}
	id, err := tx.InsertLot(ctx, lot)
	if err != nil {
		return Lot{}, err
	}
	lot.ID = id
	return lot, nil
}

// ConsumeFIFO draws down active lots oldest-created-first until qty is
// satisfied. All-or-nothing: ErrInsufficientStock commits no partial
// draw-down.
func (s *LotService) ConsumeFIFO(ctx context.Context, itemID, storeID int64, qty float64) ([]LotDraw, error) {
	return s.consume(ctx, itemID, storeID, qty, ConsumeFIFO)
}

// ConsumeLIFO draws down active lots newest-created-first. Used for
// comparative valuation, not for live consumption.
func (s *LotService) ConsumeLIFO(ctx context.Context, itemID, storeID int64, qty float64) ([]LotDraw, error) {
	return s.consume(ctx, itemID, storeID, qty, ConsumeLIFO)
}

func (s *LotService) consume(ctx context.Context, itemID, storeID int64, qty float64, order ConsumeOrder) ([]LotDraw, error) {
	if itemID == 0 {
		return nil, ErrMissingItem
	}
	if storeID == 0 {
		return nil, ErrMissingStore
	}
	var draws []LotDraw
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		draws, err = ConsumeLotsTx(ctx, tx, itemID, storeID, qty, order)
		return err
	})
	if err != nil {
		return nil, err
	}
	return draws, nil
}

// ConsumeLotsTx plans and applies a lot draw-down inside an existing
// transaction scope. The lots are locked for the duration so two concurrent
// consumers cannot both read the same available quantity.
func ConsumeLotsTx(ctx context.Context, tx TxRepository, itemID, storeID int64, qty float64, order ConsumeOrder) ([]LotDraw, error) {
	lots, err := tx.ListActiveLotsForUpdate(ctx, itemID, storeID, order)
	if err != nil {
		return nil, err
	}
	draws, err := PlanConsumption(lots, qty)
	if err != nil {
		return nil, err
	}
	for _, draw := range draws {
		if err := tx.ApplyLotDraw(ctx, draw); err != nil {
			return nil, err
		}
	}
	return draws, nil
}
