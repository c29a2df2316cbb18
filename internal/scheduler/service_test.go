package scheduler

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/procura-erp/procura/internal/ledger"
)

type fakeLedger struct {
	items map[int64]ledger.Item
}

func (f *fakeLedger) GetItem(_ context.Context, itemID int64) (ledger.Item, error) {
	item, ok := f.items[itemID]
	if !ok {
		return ledger.Item{}, ledger.ErrItemNotFound
	}
	return item, nil
}

func (f *fakeLedger) ListItems(_ context.Context, limit, offset int) ([]ledger.Item, error) {
	var out []ledger.Item
	for id := int64(1); id <= int64(len(f.items)); id++ {
		out = append(out, f.items[id])
	}
	if offset >= len(out) {
		return nil, nil
	}
	end := offset + limit
	if end > len(out) {
		end = len(out)
	}
	return out[offset:end], nil
}

type fakeDocs struct {
	open  map[int64]bool
	calls []float64
}

func (f *fakeDocs) EnsureAutoRequisition(_ context.Context, itemID int64, qty float64) (bool, error) {
	f.calls = append(f.calls, qty)
	if f.open[itemID] {
		return false, nil
	}
	f.open[itemID] = true
	return true, nil
}

func newTestScheduler(items map[int64]ledger.Item) (*Service, *fakeDocs) {
	docs := &fakeDocs{open: map[int64]bool{}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(logger, &fakeLedger{items: items}, docs), docs
}

func TestEvaluateDraftsSuggestedQuantity(t *testing.T) {
	svc, docs := newTestScheduler(map[int64]ledger.Item{
		1: {ID: 1, SKU: "RAW-001", Available: 8, Incoming: 0, ReorderPoint: 15, DemandForecast: 5, MOQ: 10, OrderMultiple: 5},
	})

	require.NoError(t, svc.Evaluate(context.Background(), 1))
	require.Equal(t, []float64{15}, docs.calls)
}

func TestEvaluateIsIdempotentWhileRequisitionOpen(t *testing.T) {
	svc, docs := newTestScheduler(map[int64]ledger.Item{
		1: {ID: 1, Available: 2, ReorderPoint: 10},
	})

	require.NoError(t, svc.Evaluate(context.Background(), 1))
	require.NoError(t, svc.Evaluate(context.Background(), 1))
	require.Len(t, docs.calls, 2)

	open := 0
	for _, isOpen := range docs.open {
		if isOpen {
			open++
		}
	}
	require.Equal(t, 1, open)
}

func TestEvaluateSkipsHealthyStock(t *testing.T) {
	svc, docs := newTestScheduler(map[int64]ledger.Item{
		1: {ID: 1, Available: 50, ReorderPoint: 10},
	})

	require.NoError(t, svc.Evaluate(context.Background(), 1))
	require.Empty(t, docs.calls)
}

func TestEvaluateSkipsItemsWithoutReorderPoint(t *testing.T) {
	svc, docs := newTestScheduler(map[int64]ledger.Item{
		1: {ID: 1, Available: 0, ReorderPoint: 0},
	})

	require.NoError(t, svc.Evaluate(context.Background(), 1))
	require.Empty(t, docs.calls)
}

func TestSweepCoversCatalog(t *testing.T) {
	svc, docs := newTestScheduler(map[int64]ledger.Item{
		1: {ID: 1, Available: 2, ReorderPoint: 10},
		2: {ID: 2, Available: 50, ReorderPoint: 10},
		3: {ID: 3, Available: 1, ReorderPoint: 5},
	})

	created, err := svc.Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, created)
	require.Len(t, docs.calls, 2)

	created, err = svc.Sweep(context.Background())
	require.NoError(t, err)
	require.Zero(t, created, "open requisitions suppress repeat drafts")
}
