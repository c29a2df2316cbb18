// Package scheduler watches the inventory ledger for reorder-point
// breaches and drafts replenishment requisitions.
package scheduler

import (
	"context"
	"log/slog"

	"github.com/procura-erp/procura/internal/ledger"
)

// LedgerPort reads stock state from the inventory ledger.
type LedgerPort interface {
	GetItem(ctx context.Context, itemID int64) (ledger.Item, error)
	ListItems(ctx context.Context, limit, offset int) ([]ledger.Item, error)
}

// DocumentsPort drafts the auto-requisition. The implementation is
// idempotent per item while an open requisition exists.
type DocumentsPort interface {
	EnsureAutoRequisition(ctx context.Context, itemID int64, qty float64) (bool, error)
}

// Service evaluates reorder triggers. It implements the ledger's trigger
// handler so every stock adjustment is checked as it happens; the periodic
// sweep covers items missed while the process was down.
type Service struct {
	logger *slog.Logger
	items  LedgerPort
	docs   DocumentsPort
}

// NewService builds Service.
func NewService(logger *slog.Logger, items LedgerPort, docs DocumentsPort) *Service {
	return &Service{logger: logger, items: items, docs: docs}
}

// HandleStockAdjusted satisfies ledger.TriggerHandler.
func (s *Service) HandleStockAdjusted(ctx context.Context, itemID int64) error {
	return s.Evaluate(ctx, itemID)
}

// Evaluate checks one item against its reorder point and drafts a
// requisition for the suggested quantity on a breach. Items already
// covered by an open requisition are left alone.
func (s *Service) Evaluate(ctx context.Context, itemID int64) error {
	item, err := s.items.GetItem(ctx, itemID)
	if err != nil {
		return err
	}
	if !ledger.BelowReorderPoint(item) {
		return nil
	}
	qty := ledger.SuggestQty(item)
	if qty <= 0 {
		return nil
	}
	created, err := s.docs.EnsureAutoRequisition(ctx, item.ID, qty)
	if err != nil {
		return err
	}
	if created {
		s.logger.Info("auto requisition drafted",
			slog.Int64("item_id", item.ID),
			slog.String("sku", item.SKU),
			slog.Float64("suggested_qty", qty))
	}
	return nil
}

const sweepPageSize = 200

// Sweep evaluates the whole item catalog and returns how many
// requisitions were drafted.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	created := 0
	for offset := 0; ; offset += sweepPageSize {
		items, err := s.items.ListItems(ctx, sweepPageSize, offset)
		if err != nil {
			return created, err
		}
		if len(items) == 0 {
			return created, nil
		}
		for _, item := range items {
			if !ledger.BelowReorderPoint(item) {
				continue
			}
			qty := ledger.SuggestQty(item)
			if qty <= 0 {
				continue
			}
			ok, err := s.docs.EnsureAutoRequisition(ctx, item.ID, qty)
			if err != nil {
				s.logger.Error("sweep evaluate", slog.Int64("item_id", item.ID), slog.Any("error", err))
				continue
			}
			if ok {
				created++
			}
		}
		if len(items) < sweepPageSize {
			return created, nil
		}
	}
}
