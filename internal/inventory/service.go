package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/abdulaziz27/xpresspos-inventory/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetStockLevel(ctx context.Context, itemID, storeID int64) (StockLevel, error)
	ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error)
	HasMovementForSource(ctx context.Context, ref SourceRef) (bool, error)
}

// TxRepository exposes transactional operations used by the service. Lot
// mutations and stock level updates share the same transaction scope as the
// movement insert that triggers them.
type TxRepository interface {
	InsertMovement(ctx context.Context, m Movement) (int64, error)
	MovementExistsForSource(ctx context.Context, ref SourceRef) (bool, error)
	GetStockLevelForUpdate(ctx context.Context, itemID, storeID int64) (StockLevel, error)
	UpsertStockLevel(ctx context.Context, level StockLevel) error
	InsertLot(ctx context.Context, lot Lot) (int64, error)
	ListActiveLotsForUpdate(ctx context.Context, itemID, storeID int64, order ConsumeOrder) ([]Lot, error)
	ApplyLotDraw(ctx context.Context, draw LotDraw) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ErrStockLevelNotFound indicates a missing stock level row. Repositories
// return it together with a zero-quantity level seeded from the item so the
// aggregate can be created lazily on first movement.
var ErrStockLevelNotFound = errors.New("inventory: stock level not found")

// MovementFilter narrows ledger queries.
type MovementFilter struct {
	ItemID  int64
	StoreID int64
	Types   []MovementType
	From    time.Time
	To      time.Time
	Limit   int
}

// MovementInput describes one ledger posting.
type MovementInput struct {
	ItemID   int64
	StoreID  int64
	Type     MovementType
	Qty      float64
	UnitCost float64
	Note     string
	Source   SourceRef
	LotID    int64
	ActorID  int64
}

// AdjustmentInput describes a manual stock adjustment. Qty may be negative.
type AdjustmentInput struct {
	ItemID   int64
	StoreID  int64
	Qty      float64
	UnitCost float64
	Note     string
	ActorID  int64
}

// TransferInput moves stock between two stores at source average cost.
type TransferInput struct {
	ItemID     int64
	SrcStoreID int64
	DstStoreID int64
	Qty        float64
	Note       string
	ActorID    int64
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	AllowNegativeStock bool
}

// Service coordinates the movement ledger and the stock level aggregate.
// Every operation takes explicit item and store ids; there is no ambient
// store context.
type Service struct {
	repo     RepositoryPort
	audit    AuditPort
	notifier Notifier
	logger   *slog.Logger
	allowNeg bool
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, notifier Notifier, logger *slog.Logger, cfg ServiceConfig) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, notifier: notifier, logger: logger, allowNeg: cfg.AllowNegativeStock}
}

// AllowNegativeStock exposes the configured policy.
func (s *Service) AllowNegativeStock() bool {
	return s.allowNeg
}

// RecordMovement appends one ledger entry and updates the stock level in the
// same transaction. Quantity must be strictly positive; direction is encoded
// by the movement type.
func (s *Service) RecordMovement(ctx context.Context, input MovementInput) (Movement, error) {
	if err := validateMovementInput(input); err != nil {
		return Movement{}, err
	}
	var (
		movement Movement
		level    StockLevel
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		movement, level, err = s.PostMovementTx(ctx, tx, input)
		return err
	})
	if err != nil {
		return Movement{}, err
	}
	s.PublishPostEffects(ctx, movement, level)
	return movement, nil
}

// PostMovementTx posts one movement inside an existing transaction scope.
// COGS processing and purchase receipts reuse it to keep their whole unit of
// work atomic.
func (s *Service) PostMovementTx(ctx context.Context, tx TxRepository, input MovementInput) (Movement, StockLevel, error) {
	if err := validateMovementInput(input); err != nil {
		return Movement{}, StockLevel{}, err
	}
	level, err := tx.GetStockLevelForUpdate(ctx, input.ItemID, input.StoreID)
	if err != nil && !errors.Is(err, ErrStockLevelNotFound) {
		return Movement{}, StockLevel{}, err
	}
	unitCost := input.UnitCost
	if !input.Type.Inbound() && unitCost == 0 {
		unitCost = level.AvgCost
	}
	now := time.Now().UTC()
	movement := Movement{
		ItemID:    input.ItemID,
		StoreID:   input.StoreID,
		Type:      input.Type,
		Qty:       input.Qty,
		UnitCost:  unitCost,
		TotalCost: round2(input.Qty * unitCost),
		LotID:     input.LotID,
		Source:    input.Source,
		Note:      input.Note,
		CreatedAt: now,
	}
	updated, err := ApplyMovement(level, movement, s.allowNeg)
	if err != nil {
		return Movement{}, StockLevel{}, err
	}
	updated.UpdatedAt = now
	id, err := tx.InsertMovement(ctx, movement)
	if err != nil {
		return Movement{}, StockLevel{}, err
	}
	movement.ID = id
	if err := tx.UpsertStockLevel(ctx, updated); err != nil {
		return Movement{}, StockLevel{}, err
	}
	return movement, updated, nil
}

// AdjustStock posts a manual adjustment; positive quantities book in,
// negative quantities book out at the current average cost.
func (s *Service) AdjustStock(ctx context.Context, input AdjustmentInput) (Movement, error) {
	if math.Abs(input.Qty) < qtyEpsilon {
		return Movement{}, ErrInvalidQuantity
	}
	mi := MovementInput{
		ItemID:   input.ItemID,
		StoreID:  input.StoreID,
		Qty:      math.Abs(input.Qty),
		UnitCost: input.UnitCost,
		Note:     input.Note,
		Source:   SourceRef{Kind: SourceManual, ID: input.ActorID},
		ActorID:  input.ActorID,
	}
	if input.Qty > 0 {
		mi.Type = MovementAdjustmentIn
	} else {
		mi.Type = MovementAdjustmentOut
		mi.UnitCost = 0
	}
	return s.RecordMovement(ctx, mi)
}

// TransferStock books TRANSFER_OUT at the source store followed by
// TRANSFER_IN at the destination, both at the source average cost.
func (s *Service) TransferStock(ctx context.Context, input TransferInput) (Movement, Movement, error) {
	if input.SrcStoreID == 0 || input.DstStoreID == 0 {
		return Movement{}, Movement{}, ErrMissingStore
	}
	if input.SrcStoreID == input.DstStoreID {
		return Movement{}, Movement{}, fmt.Errorf("inventory: source and destination store must differ")
	}
	if input.Qty <= 0 {
		return Movement{}, Movement{}, ErrInvalidQuantity
	}
	out, err := s.RecordMovement(ctx, MovementInput{
		ItemID:  input.ItemID,
		StoreID: input.SrcStoreID,
		Type:    MovementTransferOut,
		Qty:     input.Qty,
		Note:    fmt.Sprintf("Transfer to store %d: %s", input.DstStoreID, input.Note),
		Source:  SourceRef{Kind: SourceManual, ID: input.ActorID},
		ActorID: input.ActorID,
	})
	if err != nil {
		return Movement{}, Movement{}, err
	}
	in, err := s.RecordMovement(ctx, MovementInput{
		ItemID:   input.ItemID,
		StoreID:  input.DstStoreID,
		Type:     MovementTransferIn,
		Qty:      input.Qty,
		UnitCost: out.UnitCost,
		Note:     fmt.Sprintf("Transfer from store %d: %s", input.SrcStoreID, input.Note),
		Source:   SourceRef{Kind: SourceManual, ID: input.ActorID},
		ActorID:  input.ActorID,
	})
	if err != nil {
		return Movement{}, Movement{}, err
	}
	return out, in, nil
}

// ReserveStock holds quantity against future consumption. It returns false
// without error when the hold cannot be honoured under a no-negative-stock
// policy; the caller decides whether that is fatal.
func (s *Service) ReserveStock(ctx context.Context, itemID, storeID int64, qty float64) (bool, error) {
	if qty <= 0 {
		return false, ErrInvalidQuantity
	}
	reserved := false
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		level, err := tx.GetStockLevelForUpdate(ctx, itemID, storeID)
		if err != nil && !errors.Is(err, ErrStockLevelNotFound) {
			return err
		}
		if !s.allowNeg && level.AvailableQty() < qty {
			return nil
		}
		level.ReservedQty += qty
		level.UpdatedAt = time.Now().UTC()
		if err := tx.UpsertStockLevel(ctx, level); err != nil {
			return err
		}
		reserved = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return reserved, nil
}

// ReleaseReservedStock releases a previous hold, clamping at zero.
func (s *Service) ReleaseReservedStock(ctx context.Context, itemID, storeID int64, qty float64) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		level, err := tx.GetStockLevelForUpdate(ctx, itemID, storeID)
		if err != nil && !errors.Is(err, ErrStockLevelNotFound) {
			return err
		}
		level.ReservedQty = math.Max(0, level.ReservedQty-qty)
		level.UpdatedAt = time.Now().UTC()
		return tx.UpsertStockLevel(ctx, level)
	})
}

// GetStockLevel returns the aggregate for one (item, store) pair, lazily
// initialised to zero when no movement has been posted yet.
func (s *Service) GetStockLevel(ctx context.Context, itemID, storeID int64) (StockLevel, error) {
	if itemID == 0 {
		return StockLevel{}, ErrMissingItem
	}
	if storeID == 0 {
		return StockLevel{}, ErrMissingStore
	}
	level, err := s.repo.GetStockLevel(ctx, itemID, storeID)
	if errors.Is(err, ErrStockLevelNotFound) {
		return StockLevel{ItemID: itemID, StoreID: storeID}, nil
	}
	return level, err
}

// ListMovements reads the ledger with filters, newest first.
func (s *Service) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	if filter.StoreID == 0 {
		return nil, ErrMissingStore
	}
	return s.repo.ListMovements(ctx, filter)
}

// HasMovementForSource reports whether the source document already produced
// a ledger entry. Callers use it to keep retried processing idempotent.
func (s *Service) HasMovementForSource(ctx context.Context, ref SourceRef) (bool, error) {
	if ref.IsZero() {
		return false, nil
	}
	return s.repo.HasMovementForSource(ctx, ref)
}

// PublishPostEffects emits low stock signals and audit records once a movement has
// committed.
func (s *Service) PublishPostEffects(ctx context.Context, movement Movement, level StockLevel) {
	if s.notifier != nil && level.LowStock() {
		evt := LowStockEvent{
			EventID: uuid.NewString(),
			ItemID:  level.ItemID,
			StoreID: level.StoreID,
			Qty:     level.Qty,
			Minimum: level.MinimumQty,
			At:      level.UpdatedAt,
		}
		if err := s.notifier.NotifyLowStock(ctx, evt); err != nil {
			s.logger.Warn("low stock notify", slog.Any("error", err), slog.Int64("item_id", level.ItemID))
		}
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Action:   fmt.Sprintf("inventory:%s", movement.Type),
			Entity:   "inventory_movement",
			EntityID: fmt.Sprintf("%d", movement.ID),
			Meta: map[string]any{
				"item_id":  movement.ItemID,
				"store_id": movement.StoreID,
				"qty":      movement.Qty,
				"source":   movement.Source.String(),
			},
		})
	}
}

func validateMovementInput(input MovementInput) error {
	if input.ItemID == 0 {
		return ErrMissingItem
	}
	if input.StoreID == 0 {
		return ErrMissingStore
	}
	if input.Qty <= 0 {
		return ErrInvalidQuantity
	}
	if input.UnitCost < 0 {
		return ErrInvalidUnitCost
	}
	if !input.Type.Valid() {
		return ErrInvalidMovementType
	}
	return nil
}
