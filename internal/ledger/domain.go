// Package ledger tracks per-item stock balances with an append-only entry
// log. Balances can be reconstructed by replaying entries in order.
package ledger

import (
	"fmt"
	"net/http"
	"time"

	"github.com/procura-erp/procura/internal/platform/httpx"
)

// Category groups items by production stage.
type Category string

const (
	CategoryRaw          Category = "RAW"
	CategorySemi         Category = "SEMI"
	CategoryInstallation Category = "INSTALLATION"
)

// Item is the stock master record. Available and Incoming are maintained by
// Adjust; Incoming is the sum of open order lines.
type Item struct {
	ID             int64
	SKU            string
	Name           string
	UOM            string
	Category       Category
	Available      float64
	Incoming       float64
	ReorderPoint   float64
	MOQ            float64
	OrderMultiple  float64
	DemandForecast float64
	Version        int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Snapshot is the read-only stock view consumed by the trigger scheduler
// and the projection layer.
type Snapshot struct {
	ItemID       int64
	Available    float64
	Incoming     float64
	ReorderPoint float64
}

// EntryKind distinguishes regular adjustments from authorised write-offs.
type EntryKind string

const (
	EntryAdjust   EntryKind = "ADJUST"
	EntryWriteOff EntryKind = "WRITE_OFF"
)

// Entry is one immutable ledger line: the applied deltas, the resulting
// balances and the document that caused the movement.
type Entry struct {
	ID               int64
	ItemID           int64
	Kind             EntryKind
	DeltaAvailable   float64
	DeltaIncoming    float64
	BalanceAvailable float64
	BalanceIncoming  float64
	CausingDocID     string
	ActorID          string
	Note             string
	CreatedAt        time.Time
}

// NegativeStockError reports an adjustment that would drive available
// quantity below zero. It is never auto-corrected.
type NegativeStockError struct {
	ItemID    int64
	Available float64
	Delta     float64
}

func (e *NegativeStockError) Error() string {
	return fmt.Sprintf("ledger: item %d has %.2f available, delta %.2f would go negative", e.ItemID, e.Available, e.Delta)
}

// Problem implements httpx.Problemer.
func (e *NegativeStockError) Problem() (int, string, string, map[string]any) {
	return http.StatusUnprocessableEntity, "Negative Stock", e.Error(), map[string]any{
		"item_id":   e.ItemID,
		"available": e.Available,
		"delta":     e.Delta,
	}
}

var (
	// ErrItemNotFound indicates a missing item row.
	ErrItemNotFound = fmt.Errorf("ledger: item not found: %w", httpx.ErrNotFound)
	// ErrInvalidQuantity indicates a zero or otherwise unusable delta.
	ErrInvalidQuantity = fmt.Errorf("ledger: invalid quantity: %w", httpx.ErrValidation)
	// ErrNegativeIncoming indicates an adjustment that would drive incoming below zero.
	ErrNegativeIncoming = fmt.Errorf("ledger: incoming quantity below zero: %w", httpx.ErrValidation)
	// ErrManagerRequired indicates a write-off attempted without manager authorization.
	ErrManagerRequired = fmt.Errorf("ledger: write-off requires manager authorization: %w", httpx.ErrForbidden)
	// ErrValidation indicates invalid item input.
	ErrValidation = fmt.Errorf("ledger: invalid input: %w", httpx.ErrValidation)
)
