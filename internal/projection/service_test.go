package projection

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/procura-erp/procura/internal/documents"
	"github.com/procura-erp/procura/internal/ledger"
	"github.com/procura-erp/procura/internal/shared"
	"github.com/procura-erp/procura/internal/workflow"
)

type mockDocs struct {
	counts     map[workflow.DocType]map[workflow.Status]int
	docs       []documents.Document
	overdue    []documents.Document
	events     []documents.Event
	countCalls int
	listCalls  int
}

func (m *mockDocs) CountByTypeAndStatus(context.Context) (map[workflow.DocType]map[workflow.Status]int, error) {
	m.countCalls++
	return m.counts, nil
}

func (m *mockDocs) List(_ context.Context, filter documents.Filter) ([]documents.Document, shared.Cursor, error) {
	m.listCalls++
	var out []documents.Document
	for _, doc := range m.docs {
		if filter.Type != "" && doc.Type != filter.Type {
			continue
		}
		if filter.Status != "" && doc.Status != filter.Status {
			continue
		}
		out = append(out, doc)
	}
	return out, shared.Cursor{}, nil
}

func (m *mockDocs) ListOverdueQuotations(context.Context, time.Time) ([]documents.Document, error) {
	return m.overdue, nil
}

func (m *mockDocs) ListEvents(context.Context, uuid.UUID) ([]documents.Event, error) {
	return m.events, nil
}

type mockItems struct {
	items []ledger.Item
}

func (m *mockItems) ListItems(_ context.Context, limit, offset int) ([]ledger.Item, error) {
	if offset >= len(m.items) {
		return nil, nil
	}
	end := offset + limit
	if end > len(m.items) {
		end = len(m.items)
	}
	return m.items[offset:end], nil
}

func newProjectionService(t *testing.T, docs *mockDocs, items *mockItems) (*Service, func()) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewCache(client, time.Minute)
	svc := NewService(docs, items, cache)
	return svc, func() {
		_ = client.Close()
		mr.Close()
	}
}

func TestGetStatusBoardCaches(t *testing.T) {
	docs := &mockDocs{
		counts: map[workflow.DocType]map[workflow.Status]int{
			workflow.DocRequisition: {workflow.StatusDraft: 3, workflow.StatusPendingApproval: 2},
		},
	}
	svc, cleanup := newProjectionService(t, docs, &mockItems{})
	defer cleanup()

	ctx := context.Background()
	board, err := svc.GetStatusBoard(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(board.Counts[workflow.DocRequisition]) != 2 {
		t.Fatalf("expected 2 status cells, got %d", len(board.Counts[workflow.DocRequisition]))
	}
	if docs.countCalls != 1 {
		t.Fatalf("expected 1 store call, got %d", docs.countCalls)
	}

	// Second call should hit cache.
	if _, err := svc.GetStatusBoard(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if docs.countCalls != 1 {
		t.Fatalf("expected cached result, store called %d times", docs.countCalls)
	}

	// Bumping the cache should trigger reload.
	if err := svc.cache.Bump(ctx); err != nil {
		t.Fatalf("bump failed: %v", err)
	}
	if _, err := svc.GetStatusBoard(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if docs.countCalls != 2 {
		t.Fatalf("expected store to refresh, calls %d", docs.countCalls)
	}
}

func TestGetKPISummaryAggregates(t *testing.T) {
	docs := &mockDocs{
		counts: map[workflow.DocType]map[workflow.Status]int{
			workflow.DocRequisition: {workflow.StatusPendingApproval: 2, workflow.StatusConverted: 5},
			workflow.DocOrder:       {workflow.StatusInTransit: 1, workflow.StatusDelivered: 4},
		},
		overdue: []documents.Document{{ID: uuid.New()}},
	}
	items := &mockItems{items: []ledger.Item{
		{ID: 1, SKU: "RAW-001", Available: 2, ReorderPoint: 10, DemandForecast: 3},
		{ID: 2, SKU: "RAW-002", Available: 50, ReorderPoint: 10},
	}}
	svc, cleanup := newProjectionService(t, docs, items)
	defer cleanup()

	summary, err := svc.GetKPISummary(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.OpenDocuments != 3 {
		t.Fatalf("expected 3 open documents, got %d", summary.OpenDocuments)
	}
	if summary.PendingApprovals != 2 {
		t.Fatalf("expected 2 pending approvals, got %d", summary.PendingApprovals)
	}
	if summary.OverdueRequests != 1 {
		t.Fatalf("expected 1 overdue request, got %d", summary.OverdueRequests)
	}
	if len(summary.ShortageItems) != 1 || summary.ShortageItems[0].SKU != "RAW-001" {
		t.Fatalf("expected one shortage item for RAW-001, got %+v", summary.ShortageItems)
	}
	if summary.ShortageItems[0].SuggestedQty != 11 {
		t.Fatalf("expected suggested qty 11, got %.2f", summary.ShortageItems[0].SuggestedQty)
	}
}

func TestGetOrderProgressPercent(t *testing.T) {
	orderID := uuid.New()
	docs := &mockDocs{docs: []documents.Document{{
		ID:     orderID,
		Type:   workflow.DocOrder,
		Status: workflow.StatusPartialDelivery,
		Lines: []documents.LineItem{
			{Qty: 10, FulfilledQty: 5},
			{Qty: 10, FulfilledQty: 10},
		},
	}}}
	svc, cleanup := newProjectionService(t, docs, &mockItems{})
	defer cleanup()

	out, err := svc.GetOrderProgress(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 order, got %d", len(out))
	}
	if out[0].Percent != 75 {
		t.Fatalf("expected 75%%, got %.1f", out[0].Percent)
	}
}

func TestGetReturnProgressPercent(t *testing.T) {
	docs := &mockDocs{docs: []documents.Document{
		{
			ID:     uuid.New(),
			Type:   workflow.DocReturn,
			Status: workflow.StatusSubmitted,
			Kind:   workflow.ReturnRefund,
			Lines: []documents.LineItem{
				{Qty: 3, FulfilledQty: 1},
				{Qty: 2, FulfilledQty: 1},
			},
		},
		{
			ID:     uuid.New(),
			Type:   workflow.DocReturn,
			Status: workflow.StatusApproved,
			Kind:   workflow.ReturnDamaged,
			Lines:  []documents.LineItem{{Qty: 4, FulfilledQty: 4}},
		},
	}}
	svc, cleanup := newProjectionService(t, docs, &mockItems{})
	defer cleanup()

	out, err := svc.GetReturnProgress(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected only the open return, got %d", len(out))
	}
	if out[0].TotalQty != 5 || out[0].InspectedQty != 2 {
		t.Fatalf("unexpected quantities %+v", out[0])
	}
	if out[0].Percent != 40 {
		t.Fatalf("expected 40%%, got %.1f", out[0].Percent)
	}
}

func TestGetTimelineSkipsCache(t *testing.T) {
	docID := uuid.New()
	docs := &mockDocs{events: []documents.Event{
		{DocID: docID, Action: documents.ActionCreated, ToStatus: workflow.StatusDraft},
		{DocID: docID, Action: workflow.ActionSubmit, FromStatus: workflow.StatusDraft, ToStatus: workflow.StatusPendingApproval},
	}}
	svc, cleanup := newProjectionService(t, docs, &mockItems{})
	defer cleanup()

	timeline, err := svc.GetTimeline(context.Background(), docID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(timeline) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(timeline))
	}
	if timeline[1].ToStatus != workflow.StatusPendingApproval {
		t.Fatalf("unexpected final status %s", timeline[1].ToStatus)
	}
}

func TestServiceWorksWithoutCache(t *testing.T) {
	docs := &mockDocs{counts: map[workflow.DocType]map[workflow.Status]int{}}
	svc := NewService(docs, &mockItems{}, nil)

	if _, err := svc.GetStatusBoard(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if docs.countCalls != 1 {
		t.Fatalf("expected direct store call, got %d", docs.countCalls)
	}
}
