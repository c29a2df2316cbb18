// Package documents is the document store: typed procurement documents with
// an immutable history of state transitions, governed by the workflow
// engine.
package documents

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/procura-erp/procura/internal/platform/httpx"
	"github.com/procura-erp/procura/internal/workflow"
)

// Priority ranks requisition lines.
type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)

// Document is the polymorphic header shared by all variants. Version backs
// optimistic concurrency: every committed transition increments it, and a
// transition submitted against a stale version fails.
type Document struct {
	ID          uuid.UUID
	Type        workflow.DocType
	Status      workflow.Status
	Kind        workflow.ReturnKind
	CreatorID   string
	CreatorRole workflow.Role
	SupplierID  string
	SourceID    uuid.NullUUID
	QuoteID     uuid.NullUUID
	AutoItemID  *int64
	DeadlineAt  *time.Time
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Lines       []LineItem
	Events      []Event
	Quotes      []Quote
}

// LineItem references an item with requested and fulfilled quantities.
// UnitPrice applies to orders and quotations, Priority to requisitions.
type LineItem struct {
	ID           int64
	DocID        uuid.UUID
	ItemID       int64
	Qty          float64
	FulfilledQty float64
	UnitPrice    float64
	Purpose      string
	Priority     Priority
}

// Event is one append-only status-change record.
type Event struct {
	ID         int64
	DocID      uuid.UUID
	ActorID    string
	ActorRole  workflow.Role
	Action     workflow.Action
	FromStatus workflow.Status
	ToStatus   workflow.Status
	Comment    string
	At         time.Time
}

// Quote is a supplier bid attached to a quotation request. At most one
// quote per request may be accepted.
type Quote struct {
	ID           uuid.UUID
	DocID        uuid.UUID
	SupplierID   string
	TotalPrice   float64
	LeadTimeDays int
	PaymentTerms string
	Status       workflow.QuoteStatus
	Version      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ActionCreated is the synthetic action recorded when a document enters the
// store; replaying events from it reproduces the current status.
const ActionCreated workflow.Action = "created"

// ConcurrentModificationError reports an optimistic-concurrency conflict.
// The caller must re-fetch the document and retry; stale writes are never
// merged.
type ConcurrentModificationError struct {
	DocID   uuid.UUID
	Version int64
}

func (e *ConcurrentModificationError) Error() string {
	return fmt.Sprintf("documents: %s modified concurrently (stale version %d)", e.DocID, e.Version)
}

// Problem implements httpx.Problemer.
func (e *ConcurrentModificationError) Problem() (int, string, string, map[string]any) {
	return http.StatusConflict, "Concurrent Modification", e.Error(), map[string]any{
		"document_id": e.DocID.String(),
	}
}

var (
	// ErrNotFound indicates a missing document or quote.
	ErrNotFound = fmt.Errorf("documents: not found: %w", httpx.ErrNotFound)
	// ErrQuoteAlreadyAccepted guards the at-most-one-accepted invariant.
	ErrQuoteAlreadyAccepted = fmt.Errorf("documents: a quote is already accepted for this request: %w", httpx.ErrConflict)
)

// ReplayStatus folds a document's event sequence into its resulting
// status. The result is deterministic: the store only ever appends events
// whose FromStatus matches the previous ToStatus.
func ReplayStatus(events []Event) (workflow.Status, error) {
	if len(events) == 0 {
		return "", errors.New("documents: no events to replay")
	}
	status := events[0].ToStatus
	for _, e := range events[1:] {
		if e.FromStatus != status {
			return "", fmt.Errorf("documents: broken event chain at event %d: %s != %s", e.ID, e.FromStatus, status)
		}
		status = e.ToStatus
	}
	return status, nil
}
