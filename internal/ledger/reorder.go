package ledger

import "math"

// SuggestQty computes the replenishment quantity for an item:
// max(0, reorderPoint - (available + incoming) + demandForecast), floored at
// the item's minimum order quantity and rounded up to its order multiple
// when those are defined.
func SuggestQty(item Item) float64 {
	qty := item.ReorderPoint - (item.Available + item.Incoming) + item.DemandForecast
	if qty <= 0 {
		return 0
	}
	if item.MOQ > 0 && qty < item.MOQ {
		qty = item.MOQ
	}
	if item.OrderMultiple > 0 {
		qty = math.Ceil(qty/item.OrderMultiple) * item.OrderMultiple
	}
	return qty
}

// BelowReorderPoint reports whether the item's available stock has breached
// its reorder point. Items without a reorder point never trigger.
func BelowReorderPoint(item Item) bool {
	return item.ReorderPoint > 0 && item.Available < item.ReorderPoint
}
