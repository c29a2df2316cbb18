package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/procura-erp/procura/internal/shared"
	"github.com/procura-erp/procura/internal/workflow"
)

const qtyEpsilon = 1e-4

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	CreateItem(ctx context.Context, item Item) (Item, error)
	GetItem(ctx context.Context, itemID int64) (Item, error)
	ListItems(ctx context.Context, limit, offset int) ([]Item, error)
	ListEntries(ctx context.Context, itemID int64, limit int) ([]Entry, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// TriggerHandler is notified after every successful adjustment so reorder
// breaches can spawn requisitions. Wired in main to avoid an import cycle
// with the document store.
type TriggerHandler interface {
	HandleStockAdjusted(ctx context.Context, itemID int64) error
}

// Service coordinates ledger operations.
type Service struct {
	repo    RepositoryPort
	audit   AuditPort
	trigger TriggerHandler
}

// NewService builds Service. The trigger handler may be attached later via
// SetTrigger once the scheduler exists.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// SetTrigger attaches the reorder trigger handler.
func (s *Service) SetTrigger(trigger TriggerHandler) {
	s.trigger = trigger
}

// CreateItemInput describes an item master record.
type CreateItemInput struct {
	SKU            string
	Name           string
	UOM            string
	Category       Category
	Available      float64
	ReorderPoint   float64
	MOQ            float64
	OrderMultiple  float64
	DemandForecast float64
}

// CreateItem validates and persists a new item.
func (s *Service) CreateItem(ctx context.Context, input CreateItemInput) (Item, error) {
	input.SKU = strings.TrimSpace(input.SKU)
	input.Name = strings.TrimSpace(input.Name)
	if input.SKU == "" || input.Name == "" {
		return Item{}, fmt.Errorf("%w: sku and name required", ErrValidation)
	}
	if input.Available < 0 || input.ReorderPoint < 0 || input.MOQ < 0 || input.OrderMultiple < 0 || input.DemandForecast < 0 {
		return Item{}, fmt.Errorf("%w: quantities must be non-negative", ErrValidation)
	}
	switch input.Category {
	case CategoryRaw, CategorySemi, CategoryInstallation:
	default:
		return Item{}, fmt.Errorf("%w: unknown category %q", ErrValidation, input.Category)
	}
	item := Item{
		SKU:            input.SKU,
		Name:           input.Name,
		UOM:            strings.TrimSpace(input.UOM),
		Category:       input.Category,
		Available:      input.Available,
		ReorderPoint:   input.ReorderPoint,
		MOQ:            input.MOQ,
		OrderMultiple:  input.OrderMultiple,
		DemandForecast: input.DemandForecast,
	}
	return s.repo.CreateItem(ctx, item)
}

// GetItem loads an item by id.
func (s *Service) GetItem(ctx context.Context, itemID int64) (Item, error) {
	return s.repo.GetItem(ctx, itemID)
}

// ListItems returns the catalog.
func (s *Service) ListItems(ctx context.Context, limit, offset int) ([]Item, error) {
	return s.repo.ListItems(ctx, limit, offset)
}

// ListEntries returns an item's ledger history.
func (s *Service) ListEntries(ctx context.Context, itemID int64, limit int) ([]Entry, error) {
	return s.repo.ListEntries(ctx, itemID, limit)
}

// Snapshot returns the read-only stock view for an item.
func (s *Service) Snapshot(ctx context.Context, itemID int64) (Snapshot, error) {
	item, err := s.repo.GetItem(ctx, itemID)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{ItemID: item.ID, Available: item.Available, Incoming: item.Incoming, ReorderPoint: item.ReorderPoint}, nil
}

// AdjustInput describes signed stock deltas caused by a document.
type AdjustInput struct {
	ItemID         int64
	DeltaAvailable float64
	DeltaIncoming  float64
	CausingDocID   string
	Note           string
	Actor          workflow.Actor
}

// Adjust applies both deltas atomically and appends a ledger entry. It
// fails with NegativeStockError when the result would drive available
// quantity below zero; nothing is applied on failure.
func (s *Service) Adjust(ctx context.Context, input AdjustInput) (Snapshot, error) {
	if math.Abs(input.DeltaAvailable) < qtyEpsilon && math.Abs(input.DeltaIncoming) < qtyEpsilon {
		return Snapshot{}, ErrInvalidQuantity
	}
	snap, err := s.apply(ctx, input, EntryAdjust, false)
	if err != nil {
		return Snapshot{}, err
	}
	s.notifyTrigger(ctx, input.ItemID)
	return snap, nil
}

// WriteOffInput describes an authorised stock write-off.
type WriteOffInput struct {
	ItemID int64
	Qty    float64
	Reason string
	Actor  workflow.Actor
}

// WriteOff removes stock bypassing the non-negative floor. Only managers
// may write stock off.
func (s *Service) WriteOff(ctx context.Context, input WriteOffInput) (Snapshot, error) {
	if input.Actor.Role != workflow.RoleManager {
		return Snapshot{}, ErrManagerRequired
	}
	if input.Qty <= 0 {
		return Snapshot{}, ErrInvalidQuantity
	}
	if strings.TrimSpace(input.Reason) == "" {
		return Snapshot{}, fmt.Errorf("%w: write-off reason required", ErrValidation)
	}
	snap, err := s.apply(ctx, AdjustInput{
		ItemID:         input.ItemID,
		DeltaAvailable: -input.Qty,
		Note:           input.Reason,
		Actor:          input.Actor,
	}, EntryWriteOff, true)
	if err != nil {
		return Snapshot{}, err
	}
	s.notifyTrigger(ctx, input.ItemID)
	return snap, nil
}

func (s *Service) apply(ctx context.Context, input AdjustInput, kind EntryKind, bypassFloor bool) (Snapshot, error) {
	var snap Snapshot
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		item, err := tx.GetItemForUpdate(ctx, input.ItemID)
		if err != nil {
			return err
		}
		newAvailable := item.Available + input.DeltaAvailable
		newIncoming := item.Incoming + input.DeltaIncoming
		if !bypassFloor && newAvailable < -qtyEpsilon {
			return &NegativeStockError{ItemID: item.ID, Available: item.Available, Delta: input.DeltaAvailable}
		}
		if newIncoming < -qtyEpsilon {
			return ErrNegativeIncoming
		}
		if math.Abs(newAvailable) < qtyEpsilon {
			newAvailable = 0
		}
		if math.Abs(newIncoming) < qtyEpsilon {
			newIncoming = 0
		}
		if err := tx.UpdateItemBalances(ctx, item.ID, newAvailable, newIncoming, item.Version); err != nil {
			return err
		}
		entry := Entry{
			ItemID:           item.ID,
			Kind:             kind,
			DeltaAvailable:   input.DeltaAvailable,
			DeltaIncoming:    input.DeltaIncoming,
			BalanceAvailable: newAvailable,
			BalanceIncoming:  newIncoming,
			CausingDocID:     input.CausingDocID,
			ActorID:          input.Actor.ID,
			Note:             input.Note,
		}
		if _, err := tx.InsertEntry(ctx, entry); err != nil {
			return err
		}
		snap = Snapshot{ItemID: item.ID, Available: newAvailable, Incoming: newIncoming, ReorderPoint: item.ReorderPoint}
		return nil
	})
	if err != nil {
		return Snapshot{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.Actor.ID,
			Action:   fmt.Sprintf("ledger:%s", kind),
			Entity:   "item",
			EntityID: fmt.Sprintf("%d", input.ItemID),
			Meta: map[string]any{
				"delta_available": input.DeltaAvailable,
				"delta_incoming":  input.DeltaIncoming,
				"causing_doc_id":  input.CausingDocID,
			},
		})
	}
	return snap, nil
}

func (s *Service) notifyTrigger(ctx context.Context, itemID int64) {
	if s.trigger == nil {
		return
	}
	// Trigger failures must not fail the adjustment that already committed;
	// the periodic sweep job picks up anything missed here.
	if err := s.trigger.HandleStockAdjusted(ctx, itemID); err != nil && !errors.Is(err, context.Canceled) {
		if s.audit != nil {
			_ = s.audit.Record(ctx, shared.AuditLog{
				ActorID:  workflow.SystemActor.ID,
				Action:   "ledger:trigger_failed",
				Entity:   "item",
				EntityID: fmt.Sprintf("%d", itemID),
				Meta:     map[string]any{"error": err.Error()},
			})
		}
	}
}
