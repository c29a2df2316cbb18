// Package projection derives read-only dashboard views from the document
// store and the inventory ledger. Views are cached in Redis behind a
// version key; any mutation bumps the version instead of deleting keys.
package projection

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/procura-erp/procura/internal/documents"
	"github.com/procura-erp/procura/internal/ledger"
	"github.com/procura-erp/procura/internal/shared"
	"github.com/procura-erp/procura/internal/workflow"
)

// DocumentsReader is the read surface of the document store.
type DocumentsReader interface {
	CountByTypeAndStatus(ctx context.Context) (map[workflow.DocType]map[workflow.Status]int, error)
	List(ctx context.Context, filter documents.Filter) ([]documents.Document, shared.Cursor, error)
	ListOverdueQuotations(ctx context.Context, asOf time.Time) ([]documents.Document, error)
	ListEvents(ctx context.Context, docID uuid.UUID) ([]documents.Event, error)
}

// LedgerReader is the read surface of the inventory ledger.
type LedgerReader interface {
	ListItems(ctx context.Context, limit, offset int) ([]ledger.Item, error)
}

// Service resolves projection queries with cache-aware lookups.
type Service struct {
	docs  DocumentsReader
	items LedgerReader
	cache *Cache
	now   func() time.Time
}

// NewService builds Service. The cache may be nil, in which case every
// query hits the store directly.
func NewService(docs DocumentsReader, items LedgerReader, cache *Cache) *Service {
	return &Service{docs: docs, items: items, cache: cache, now: time.Now}
}

// StatusCount is one cell of the status board.
type StatusCount struct {
	Status workflow.Status `json:"status"`
	Count  int             `json:"count"`
}

// StatusBoard groups live document counts by type and status.
type StatusBoard struct {
	Counts      map[workflow.DocType][]StatusCount `json:"counts"`
	GeneratedAt time.Time                          `json:"generated_at"`
}

// GetStatusBoard resolves the per-type status distribution.
func (s *Service) GetStatusBoard(ctx context.Context) (StatusBoard, error) {
	loader := func(ctx context.Context) (interface{}, error) {
		raw, err := s.docs.CountByTypeAndStatus(ctx)
		if err != nil {
			return StatusBoard{}, err
		}
		board := StatusBoard{Counts: map[workflow.DocType][]StatusCount{}, GeneratedAt: s.now()}
		for docType, byStatus := range raw {
			for status, count := range byStatus {
				board.Counts[docType] = append(board.Counts[docType], StatusCount{Status: status, Count: count})
			}
		}
		return board, nil
	}
	var board StatusBoard
	if err := s.fetch(ctx, "projection:status-board", &board, loader); err != nil {
		return StatusBoard{}, err
	}
	return board, nil
}

// PendingApproval is one requisition waiting on a manager.
type PendingApproval struct {
	DocID     string    `json:"doc_id"`
	CreatorID string    `json:"creator_id"`
	CreatedAt time.Time `json:"created_at"`
	AgeHours  float64   `json:"age_hours"`
}

// GetPendingApprovals lists requisitions sitting in the approval queue,
// oldest first.
func (s *Service) GetPendingApprovals(ctx context.Context) ([]PendingApproval, error) {
	loader := func(ctx context.Context) (interface{}, error) {
		docs, _, err := s.docs.List(ctx, documents.Filter{
			Type:   workflow.DocRequisition,
			Status: workflow.StatusPendingApproval,
			Limit:  200,
		})
		if err != nil {
			return nil, err
		}
		now := s.now()
		out := make([]PendingApproval, 0, len(docs))
		for _, doc := range docs {
			out = append(out, PendingApproval{
				DocID:     doc.ID.String(),
				CreatorID: doc.CreatorID,
				CreatedAt: doc.CreatedAt,
				AgeHours:  now.Sub(doc.UpdatedAt).Hours(),
			})
		}
		return out, nil
	}
	var out []PendingApproval
	if err := s.fetch(ctx, "projection:pending-approvals", &out, loader); err != nil {
		return nil, err
	}
	return out, nil
}

// OverdueQuotation is a quotation request past its deadline and still open.
type OverdueQuotation struct {
	DocID       string    `json:"doc_id"`
	DeadlineAt  time.Time `json:"deadline_at"`
	OverdueByHr float64   `json:"overdue_by_hours"`
}

// GetOverdueQuotations lists quotation requests whose deadline passed
// without closure.
func (s *Service) GetOverdueQuotations(ctx context.Context) ([]OverdueQuotation, error) {
	loader := func(ctx context.Context) (interface{}, error) {
		now := s.now()
		docs, err := s.docs.ListOverdueQuotations(ctx, now)
		if err != nil {
			return nil, err
		}
		out := make([]OverdueQuotation, 0, len(docs))
		for _, doc := range docs {
			if doc.DeadlineAt == nil {
				continue
			}
			out = append(out, OverdueQuotation{
				DocID:       doc.ID.String(),
				DeadlineAt:  *doc.DeadlineAt,
				OverdueByHr: now.Sub(*doc.DeadlineAt).Hours(),
			})
		}
		return out, nil
	}
	var out []OverdueQuotation
	if err := s.fetch(ctx, "projection:overdue-quotations", &out, loader); err != nil {
		return nil, err
	}
	return out, nil
}

// OrderProgress reports fulfilment of one open order as a percentage of
// its ordered quantity.
type OrderProgress struct {
	DocID       string          `json:"doc_id"`
	Status      workflow.Status `json:"status"`
	OrderedQty  float64         `json:"ordered_qty"`
	ReceivedQty float64         `json:"received_qty"`
	Percent     float64         `json:"percent"`
}

// GetOrderProgress lists partially delivered orders with their fulfilment
// percentage.
func (s *Service) GetOrderProgress(ctx context.Context) ([]OrderProgress, error) {
	loader := func(ctx context.Context) (interface{}, error) {
		docs, _, err := s.docs.List(ctx, documents.Filter{
			Type:   workflow.DocOrder,
			Status: workflow.StatusPartialDelivery,
			Limit:  200,
		})
		if err != nil {
			return nil, err
		}
		out := make([]OrderProgress, 0, len(docs))
		for _, doc := range docs {
			var ordered, received float64
			for _, line := range doc.Lines {
				ordered += line.Qty
				received += line.FulfilledQty
			}
			progress := OrderProgress{DocID: doc.ID.String(), Status: doc.Status, OrderedQty: ordered, ReceivedQty: received}
			if ordered > 0 {
				progress.Percent = 100 * received / ordered
			}
			out = append(out, progress)
		}
		return out, nil
	}
	var out []OrderProgress
	if err := s.fetch(ctx, "projection:order-progress", &out, loader); err != nil {
		return nil, err
	}
	return out, nil
}

// ReturnProgress is the inspection state of one open return.
type ReturnProgress struct {
	DocID        string              `json:"doc_id"`
	Status       workflow.Status     `json:"status"`
	Kind         workflow.ReturnKind `json:"kind"`
	TotalQty     float64             `json:"total_qty"`
	InspectedQty float64             `json:"inspected_qty"`
	Percent      float64             `json:"percent"`
}

// GetReturnProgress lists open returns with how far their inspection has
// come. The percentage is derived from line quantities on every read and
// never stored.
func (s *Service) GetReturnProgress(ctx context.Context) ([]ReturnProgress, error) {
	loader := func(ctx context.Context) (interface{}, error) {
		out := make([]ReturnProgress, 0)
		for _, status := range []workflow.Status{workflow.StatusSubmitted, workflow.StatusFlagged} {
			docs, _, err := s.docs.List(ctx, documents.Filter{
				Type:   workflow.DocReturn,
				Status: status,
				Limit:  200,
			})
			if err != nil {
				return nil, err
			}
			for _, doc := range docs {
				var total, inspected float64
				for _, line := range doc.Lines {
					total += line.Qty
					inspected += line.FulfilledQty
				}
				progress := ReturnProgress{DocID: doc.ID.String(), Status: doc.Status, Kind: doc.Kind, TotalQty: total, InspectedQty: inspected}
				if total > 0 {
					progress.Percent = 100 * inspected / total
				}
				out = append(out, progress)
			}
		}
		return out, nil
	}
	var out []ReturnProgress
	if err := s.fetch(ctx, "projection:return-progress", &out, loader); err != nil {
		return nil, err
	}
	return out, nil
}

// ShortageItem is an item below its reorder point.
type ShortageItem struct {
	ItemID       int64   `json:"item_id"`
	SKU          string  `json:"sku"`
	Available    float64 `json:"available"`
	Incoming     float64 `json:"incoming"`
	ReorderPoint float64 `json:"reorder_point"`
	SuggestedQty float64 `json:"suggested_qty"`
}

// KPISummary is the dashboard headline card.
type KPISummary struct {
	OpenDocuments    int            `json:"open_documents"`
	PendingApprovals int            `json:"pending_approvals"`
	OverdueRequests  int            `json:"overdue_requests"`
	ShortageItems    []ShortageItem `json:"shortage_items"`
	GeneratedAt      time.Time      `json:"generated_at"`
}

// GetKPISummary aggregates the headline indicators.
func (s *Service) GetKPISummary(ctx context.Context) (KPISummary, error) {
	loader := func(ctx context.Context) (interface{}, error) {
		summary := KPISummary{GeneratedAt: s.now()}
		counts, err := s.docs.CountByTypeAndStatus(ctx)
		if err != nil {
			return KPISummary{}, err
		}
		for docType, byStatus := range counts {
			for status, count := range byStatus {
				if !workflow.IsTerminal(docType, status) {
					summary.OpenDocuments += count
				}
				if docType == workflow.DocRequisition && status == workflow.StatusPendingApproval {
					summary.PendingApprovals += count
				}
			}
		}
		overdue, err := s.docs.ListOverdueQuotations(ctx, s.now())
		if err != nil {
			return KPISummary{}, err
		}
		summary.OverdueRequests = len(overdue)

		for offset := 0; ; offset += 200 {
			items, err := s.items.ListItems(ctx, 200, offset)
			if err != nil {
				return KPISummary{}, err
			}
			if len(items) == 0 {
				break
			}
			for _, item := range items {
				if !ledger.BelowReorderPoint(item) {
					continue
				}
				summary.ShortageItems = append(summary.ShortageItems, ShortageItem{
					ItemID:       item.ID,
					SKU:          item.SKU,
					Available:    item.Available,
					Incoming:     item.Incoming,
					ReorderPoint: item.ReorderPoint,
					SuggestedQty: ledger.SuggestQty(item),
				})
			}
			if len(items) < 200 {
				break
			}
		}
		return summary, nil
	}
	var summary KPISummary
	if err := s.fetch(ctx, "projection:kpi", &summary, loader); err != nil {
		return KPISummary{}, err
	}
	return summary, nil
}

// TimelineEntry is one step of a document's audit trail.
type TimelineEntry struct {
	Action     workflow.Action `json:"action"`
	FromStatus workflow.Status `json:"from_status,omitempty"`
	ToStatus   workflow.Status `json:"to_status"`
	ActorID    string          `json:"actor_id"`
	Comment    string          `json:"comment,omitempty"`
	At         time.Time       `json:"at"`
}

// GetTimeline returns a document's transition history, oldest first.
// Timelines are not cached: they are per-document and already a single
// indexed read.
func (s *Service) GetTimeline(ctx context.Context, docID uuid.UUID) ([]TimelineEntry, error) {
	events, err := s.docs.ListEvents(ctx, docID)
	if err != nil {
		return nil, err
	}
	out := make([]TimelineEntry, 0, len(events))
	for _, e := range events {
		out = append(out, TimelineEntry{
			Action:     e.Action,
			FromStatus: e.FromStatus,
			ToStatus:   e.ToStatus,
			ActorID:    e.ActorID,
			Comment:    e.Comment,
			At:         e.At,
		})
	}
	return out, nil
}

// Refresh rebuilds the hot projections, warming the cache at the current
// version. Used by the periodic refresh job.
func (s *Service) Refresh(ctx context.Context) error {
	if _, err := s.GetStatusBoard(ctx); err != nil {
		return err
	}
	if _, err := s.GetPendingApprovals(ctx); err != nil {
		return err
	}
	if _, err := s.GetOverdueQuotations(ctx); err != nil {
		return err
	}
	if _, err := s.GetReturnProgress(ctx); err != nil {
		return err
	}
	_, err := s.GetKPISummary(ctx)
	return err
}

func (s *Service) fetch(ctx context.Context, keyBase string, dest interface{}, loader func(context.Context) (interface{}, error)) error {
	key, err := s.cache.BuildKey(ctx, keyBase)
	if err != nil {
		return err
	}
	return s.cache.FetchJSON(ctx, key, dest, loader)
}
