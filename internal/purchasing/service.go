package purchasing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/abdulaziz27/xpresspos-inventory/internal/inventory"
	"github.com/abdulaziz27/xpresspos-inventory/internal/shared"
)

// RepositoryPort describes repository operations used by ReceiptService.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetPurchaseOrder(ctx context.Context, poID int64) (PurchaseOrder, []PurchaseOrderItem, error)
}

// TxRepository extends the inventory transaction scope with purchase order
// writes so lots, movements, stock updates and the receipt stamp commit
// together.
type TxRepository interface {
	inventory.TxRepository
	SetReceivedAt(ctx context.Context, poID int64, at time.Time) error
}

// InventoryPort exposes the ledger operations used during receipt.
type InventoryPort interface {
	PostMovementTx(ctx context.Context, tx inventory.TxRepository, input inventory.MovementInput) (inventory.Movement, inventory.StockLevel, error)
	PublishPostEffects(ctx context.Context, m inventory.Movement, level inventory.StockLevel)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ReceiptService books received purchase orders into the inventory ledger:
// one lot and one PURCHASE movement per received line, idempotent per line.
type ReceiptService struct {
	repo   RepositoryPort
	stock  InventoryPort
	audit  AuditPort
	logger *slog.Logger
}

// NewReceiptService constructs the processor.
func NewReceiptService(repo RepositoryPort, stock InventoryPort, audit AuditPort, logger *slog.Logger) *ReceiptService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReceiptService{repo: repo, stock: stock, audit: audit, logger: logger}
}

// ProcessReceivedPurchaseOrder books every received line of the PO. Lines
// that already produced a movement are skipped, which means a changed
// received quantity after first processing is not picked up again.
func (s *ReceiptService) ProcessReceivedPurchaseOrder(ctx context.Context, poID int64) error {
	po, lines, err := s.repo.GetPurchaseOrder(ctx, poID)
	if err != nil {
		return err
	}
	if po.Status != POStatusReceived {
		return ErrInvalidState
	}
	if po.StoreID == 0 {
		return ErrMissingStore
	}

	type posted struct {
		movement inventory.Movement
		level    inventory.StockLevel
	}
	var (
		effects   []posted
		processed int
	)
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		effects = effects[:0]
		processed = 0
		now := time.Now().UTC()
		for _, line := range lines {
			if line.QtyReceived <= 0 {
				continue
			}
			ref := inventory.SourceRef{Kind: inventory.SourcePurchaseOrderItem, ID: line.ID}
			exists, err := tx.MovementExistsForSource(ctx, ref)
			if err != nil {
				return err
			}
			if exists {
				s.logger.Info("po line already processed, skipped",
					slog.Int64("po_id", po.ID), slog.Int64("line_id", line.ID))
				continue
			}
			lot, err := inventory.CreateLotTx(ctx, tx, inventory.LotInput{
				ItemID:    line.ItemID,
				StoreID:   po.StoreID,
				Qty:       line.QtyReceived,
				UnitCost:  line.UnitCost,
				Code:      inventory.NewLotCode(po.Number, line.ItemID, now),
				Source:    ref,
				ExpiresAt: line.ExpiresAt,
			})
			if err != nil {
				return err
			}
			movement, level, err := s.stock.PostMovementTx(ctx, tx, inventory.MovementInput{
				ItemID:   line.ItemID,
				StoreID:  po.StoreID,
				Type:     inventory.MovementPurchase,
				Qty:      line.QtyReceived,
				UnitCost: line.UnitCost,
				Note:     fmt.Sprintf("PO %s receipt", po.Number),
				Source:   ref,
				LotID:    lot.ID,
			})
			if err != nil {
				return err
			}
			effects = append(effects, posted{movement: movement, level: level})
			processed++
		}
		if po.ReceivedAt.IsZero() {
			if err := tx.SetReceivedAt(ctx, po.ID, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, e := range effects {
		s.stock.PublishPostEffects(ctx, e.movement, e.level)
	}
	if s.audit != nil && processed > 0 {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Action:   "purchasing:receipt",
			Entity:   "purchase_order",
			EntityID: fmt.Sprintf("%d", po.ID),
			Meta:     map[string]any{"number": po.Number, "lines": processed},
		})
	}
	return nil
}
