package ledger

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSuggestQtyRoundsUpAfterMOQ(t *testing.T) {
	item := Item{Available: 8, Incoming: 0, ReorderPoint: 15, DemandForecast: 5, MOQ: 10, OrderMultiple: 5}
	require.Equal(t, 15.0, SuggestQty(item), "12 raw, above moq, rounded up to multiple of 5")
}

func TestSuggestQtyZeroWhenStockCoversDemand(t *testing.T) {
	item := Item{Available: 20, Incoming: 10, ReorderPoint: 15, DemandForecast: 5}
	require.Zero(t, SuggestQty(item))
}

func TestSuggestQtyAppliesMOQFloor(t *testing.T) {
	item := Item{Available: 14, ReorderPoint: 15, MOQ: 10}
	require.Equal(t, 10.0, SuggestQty(item), "raw 1 floored at moq")
}

func TestSuggestQtyMOQFloorStaysOnMultiple(t *testing.T) {
	item := Item{Available: 14, ReorderPoint: 16, MOQ: 13, OrderMultiple: 5}
	require.Equal(t, 15.0, SuggestQty(item), "moq floor then rounded up to a multiple")
}

func TestSuggestQtyCountsIncoming(t *testing.T) {
	item := Item{Available: 2, Incoming: 20, ReorderPoint: 15, DemandForecast: 5}
	require.Zero(t, SuggestQty(item), "incoming stock already covers the breach")
}

func TestSuggestQtyWithoutPolicyFields(t *testing.T) {
	item := Item{Available: 3, ReorderPoint: 10}
	require.Equal(t, 7.0, SuggestQty(item))
}

func TestBelowReorderPoint(t *testing.T) {
	require.True(t, BelowReorderPoint(Item{Available: 5, ReorderPoint: 10}))
	require.False(t, BelowReorderPoint(Item{Available: 10, ReorderPoint: 10}))
	require.False(t, BelowReorderPoint(Item{Available: 0, ReorderPoint: 0}), "no reorder point, never triggers")
}
