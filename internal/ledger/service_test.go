package ledger

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/procura-erp/procura/internal/workflow"
)

type memoryLedgerRepo struct {
	items    map[int64]*Item
	entries  []Entry
	itemSeq  int64
	entrySeq int64
}

func newMemoryLedgerRepo() *memoryLedgerRepo {
	return &memoryLedgerRepo{items: map[int64]*Item{}}
}

func (m *memoryLedgerRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, m)
}

func (m *memoryLedgerRepo) CreateItem(_ context.Context, item Item) (Item, error) {
	m.itemSeq++
	item.ID = m.itemSeq
	item.Version = 1
	item.CreatedAt = time.Now()
	m.items[item.ID] = &item
	return item, nil
}

func (m *memoryLedgerRepo) GetItem(_ context.Context, itemID int64) (Item, error) {
	item, ok := m.items[itemID]
	if !ok {
		return Item{}, ErrItemNotFound
	}
	return *item, nil
}

func (m *memoryLedgerRepo) ListItems(_ context.Context, limit, offset int) ([]Item, error) {
	var out []Item
	for _, item := range m.items {
		out = append(out, *item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if offset >= len(out) {
		return nil, nil
	}
	end := offset + limit
	if end > len(out) {
		end = len(out)
	}
	return out[offset:end], nil
}

func (m *memoryLedgerRepo) ListEntries(_ context.Context, itemID int64, limit int) ([]Entry, error) {
	var out []Entry
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if m.entries[i].ItemID == itemID {
			out = append(out, m.entries[i])
		}
	}
	return out, nil
}

func (m *memoryLedgerRepo) GetItemForUpdate(ctx context.Context, itemID int64) (Item, error) {
	return m.GetItem(ctx, itemID)
}

func (m *memoryLedgerRepo) UpdateItemBalances(_ context.Context, itemID int64, available, incoming float64, version int64) error {
	item, ok := m.items[itemID]
	if !ok {
		return ErrItemNotFound
	}
	if item.Version != version {
		return ErrItemNotFound
	}
	item.Available = available
	item.Incoming = incoming
	item.Version++
	return nil
}

func (m *memoryLedgerRepo) InsertEntry(_ context.Context, entry Entry) (int64, error) {
	m.entrySeq++
	entry.ID = m.entrySeq
	entry.CreatedAt = time.Now()
	m.entries = append(m.entries, entry)
	return entry.ID, nil
}

type recordingTrigger struct {
	itemIDs []int64
}

func (r *recordingTrigger) HandleStockAdjusted(_ context.Context, itemID int64) error {
	r.itemIDs = append(r.itemIDs, itemID)
	return nil
}

var (
	stockEmployee = workflow.Actor{ID: "emp-1", Role: workflow.RoleEmployee}
	stockManager  = workflow.Actor{ID: "mgr-1", Role: workflow.RoleManager}
)

func newLedgerService(t *testing.T) (*Service, *memoryLedgerRepo, Item) {
	t.Helper()
	repo := newMemoryLedgerRepo()
	svc := NewService(repo, nil)
	item, err := svc.CreateItem(context.Background(), CreateItemInput{
		SKU: "RAW-001", Name: "Copper wire", UOM: "m", Category: CategoryRaw,
		Available: 10, ReorderPoint: 15, MOQ: 10, OrderMultiple: 5, DemandForecast: 5,
	})
	require.NoError(t, err)
	return svc, repo, item
}

func TestCreateItemValidatesInput(t *testing.T) {
	svc := NewService(newMemoryLedgerRepo(), nil)

	_, err := svc.CreateItem(context.Background(), CreateItemInput{Name: "no sku", Category: CategoryRaw})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.CreateItem(context.Background(), CreateItemInput{SKU: "X", Name: "bad category", Category: "LIQUID"})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.CreateItem(context.Background(), CreateItemInput{SKU: "X", Name: "negative", Category: CategoryRaw, Available: -1})
	require.ErrorIs(t, err, ErrValidation)
}

func TestAdjustAppliesBothDeltasAtomically(t *testing.T) {
	svc, repo, item := newLedgerService(t)

	snap, err := svc.Adjust(context.Background(), AdjustInput{
		ItemID: item.ID, DeltaAvailable: 5, CausingDocID: "doc-1", Actor: stockEmployee,
	})
	require.NoError(t, err)
	require.Equal(t, 15.0, snap.Available)

	entries, err := repo.ListEntries(context.Background(), item.ID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, EntryAdjust, entries[0].Kind)
	require.Equal(t, 15.0, entries[0].BalanceAvailable)
	require.Equal(t, "doc-1", entries[0].CausingDocID)
}

func TestAdjustRejectsNegativeStock(t *testing.T) {
	svc, repo, item := newLedgerService(t)

	_, err := svc.Adjust(context.Background(), AdjustInput{
		ItemID: item.ID, DeltaAvailable: -11, Actor: stockEmployee,
	})
	var negative *NegativeStockError
	require.ErrorAs(t, err, &negative)
	require.Equal(t, item.ID, negative.ItemID)
	require.Equal(t, 10.0, negative.Available)

	stored, err := repo.GetItem(context.Background(), item.ID)
	require.NoError(t, err)
	require.Equal(t, 10.0, stored.Available, "failed adjustment leaves balances untouched")
	require.Empty(t, repo.entries)
}

func TestAdjustRejectsZeroDelta(t *testing.T) {
	svc, _, item := newLedgerService(t)

	_, err := svc.Adjust(context.Background(), AdjustInput{ItemID: item.ID, Actor: stockEmployee})
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestAdjustRejectsNegativeIncoming(t *testing.T) {
	svc, _, item := newLedgerService(t)

	_, err := svc.Adjust(context.Background(), AdjustInput{
		ItemID: item.ID, DeltaIncoming: -1, Actor: stockEmployee,
	})
	require.ErrorIs(t, err, ErrNegativeIncoming)
}

func TestAdjustNotifiesTrigger(t *testing.T) {
	svc, _, item := newLedgerService(t)
	trigger := &recordingTrigger{}
	svc.SetTrigger(trigger)

	_, err := svc.Adjust(context.Background(), AdjustInput{
		ItemID: item.ID, DeltaAvailable: -5, Actor: stockEmployee,
	})
	require.NoError(t, err)
	require.Equal(t, []int64{item.ID}, trigger.itemIDs)
}

func TestWriteOffRequiresManager(t *testing.T) {
	svc, _, item := newLedgerService(t)

	_, err := svc.WriteOff(context.Background(), WriteOffInput{
		ItemID: item.ID, Qty: 3, Reason: "water damage", Actor: stockEmployee,
	})
	require.ErrorIs(t, err, ErrManagerRequired)
}

func TestWriteOffRequiresReason(t *testing.T) {
	svc, _, item := newLedgerService(t)

	_, err := svc.WriteOff(context.Background(), WriteOffInput{
		ItemID: item.ID, Qty: 3, Actor: stockManager,
	})
	require.ErrorIs(t, err, ErrValidation)
}

func TestWriteOffBypassesFloor(t *testing.T) {
	svc, repo, item := newLedgerService(t)

	snap, err := svc.WriteOff(context.Background(), WriteOffInput{
		ItemID: item.ID, Qty: 12, Reason: "full batch scrapped", Actor: stockManager,
	})
	require.NoError(t, err)
	require.Equal(t, -2.0, snap.Available)

	entries, err := repo.ListEntries(context.Background(), item.ID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, EntryWriteOff, entries[0].Kind)
}

func TestLedgerReplayReconstructsBalance(t *testing.T) {
	svc, repo, item := newLedgerService(t)

	deltas := []float64{5, -3, 7, -1}
	for _, d := range deltas {
		_, err := svc.Adjust(context.Background(), AdjustInput{ItemID: item.ID, DeltaAvailable: d, Actor: stockEmployee})
		require.NoError(t, err)
	}

	balance := item.Available
	for _, e := range repo.entries {
		balance += e.DeltaAvailable
		require.Equal(t, balance, e.BalanceAvailable)
	}
	stored, err := repo.GetItem(context.Background(), item.ID)
	require.NoError(t, err)
	require.Equal(t, balance, stored.Available)
}
