package documents

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/procura-erp/procura/internal/ledger"
	"github.com/procura-erp/procura/internal/shared"
	"github.com/procura-erp/procura/internal/workflow"
)

const qtyEpsilon = 1e-9

// RepositoryPort is the persistence surface the service needs.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id uuid.UUID) (Document, error)
	List(ctx context.Context, filter Filter) ([]Document, shared.Cursor, error)
	ListEvents(ctx context.Context, docID uuid.UUID) ([]Event, error)
	ListQuotes(ctx context.Context, docID uuid.UUID) ([]Quote, error)
}

// StockPort applies stock movements caused by document transitions.
type StockPort interface {
	Adjust(ctx context.Context, input ledger.AdjustInput) (ledger.Snapshot, error)
}

// AuditPort records who did what.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort deduplicates retried transition requests. Delete releases
// a key whose request failed so the corrected retry is not refused.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// CachePort invalidates downstream read models after a mutation.
type CachePort interface {
	Bump(ctx context.Context) error
}

// Service implements document creation and lifecycle transitions. All
// status changes go through the workflow engine; the service never writes
// a status the transition tables do not produce.
type Service struct {
	repo  RepositoryPort
	stock StockPort
	audit AuditPort
	idem  IdempotencyPort
	cache CachePort
}

// NewService constructs Service. Audit, idempotency and cache ports may be
// nil; the corresponding hooks are skipped.
func NewService(repo RepositoryPort, stock StockPort, audit AuditPort, idem IdempotencyPort, cache CachePort) *Service {
	return &Service{repo: repo, stock: stock, audit: audit, idem: idem, cache: cache}
}

// LineInput is one requested line on a new document.
type LineInput struct {
	ItemID    int64
	Qty       float64
	UnitPrice float64
	Purpose   string
	Priority  Priority
}

// CreateInput describes a new document.
type CreateInput struct {
	Type       workflow.DocType
	Kind       workflow.ReturnKind
	SourceID   uuid.NullUUID
	SupplierID string
	DeadlineAt *time.Time
	Lines      []LineInput
	Actor      workflow.Actor
}

// Create validates and persists a new document in its initial status.
// Quotation requests built from an approved requisition convert the
// requisition in the same transaction, so a request and its source can
// never disagree.
func (s *Service) Create(ctx context.Context, input CreateInput) (Document, error) {
	if !workflow.ValidType(input.Type) {
		return Document{}, &workflow.ValidationError{Reason: fmt.Sprintf("unknown document type %q", input.Type)}
	}
	if !workflow.CanCreate(input.Type, input.Actor.Role) {
		return Document{}, &workflow.ValidationError{Reason: fmt.Sprintf("role %s cannot create %s documents", input.Actor.Role, input.Type)}
	}
	if input.Type == workflow.DocReturn && !workflow.ValidReturnKind(input.Kind) {
		return Document{}, &workflow.ValidationError{Reason: "return requests require a kind of REFUND, EXCHANGE, DAMAGED or MISSING"}
	}
	if input.Type == workflow.DocQuotation && !input.SourceID.Valid {
		return Document{}, &workflow.ValidationError{Reason: "quotation requests require a source requisition"}
	}
	if input.Type != workflow.DocQuotation && len(input.Lines) == 0 {
		return Document{}, &workflow.ValidationError{Reason: "at least one line is required"}
	}
	lines := make([]LineItem, 0, len(input.Lines))
	for i, in := range input.Lines {
		if in.ItemID <= 0 {
			return Document{}, &workflow.ValidationError{Reason: fmt.Sprintf("line %d: item id required", i+1)}
		}
		if in.Qty <= 0 {
			return Document{}, &workflow.ValidationError{Reason: fmt.Sprintf("line %d: quantity must be positive", i+1)}
		}
		priority := in.Priority
		if input.Type == workflow.DocRequisition && priority == "" {
			priority = PriorityMedium
		}
		if priority != "" && priority != PriorityHigh && priority != PriorityMedium && priority != PriorityLow {
			return Document{}, &workflow.ValidationError{Reason: fmt.Sprintf("line %d: unknown priority %q", i+1, priority)}
		}
		lines = append(lines, LineItem{ItemID: in.ItemID, Qty: in.Qty, UnitPrice: in.UnitPrice, Purpose: in.Purpose, Priority: priority})
	}

	doc := Document{
		ID:          uuid.New(),
		Type:        input.Type,
		Status:      workflow.InitialStatus(input.Type),
		Kind:        input.Kind,
		CreatorID:   input.Actor.ID,
		CreatorRole: input.Actor.Role,
		SupplierID:  input.SupplierID,
		SourceID:    input.SourceID,
		DeadlineAt:  input.DeadlineAt,
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if input.Type == workflow.DocQuotation {
			source, err := tx.GetDocumentForUpdate(ctx, input.SourceID.UUID)
			if err != nil {
				return err
			}
			if source.Type != workflow.DocRequisition {
				return &workflow.ValidationError{Reason: "source document is not a requisition"}
			}
			decision, err := workflow.Decide(source.Type, source.Status, workflow.ActionConvert, workflow.RoleSystem, false)
			if err != nil {
				return err
			}
			if err := tx.UpdateStatus(ctx, source.ID, decision.To, source.Version); err != nil {
				return err
			}
			if err := tx.InsertEvent(ctx, Event{
				DocID: source.ID, ActorID: input.Actor.ID, ActorRole: input.Actor.Role,
				Action: workflow.ActionConvert, FromStatus: source.Status, ToStatus: decision.To,
			}); err != nil {
				return err
			}
			if len(lines) == 0 {
				for _, l := range source.Lines {
					lines = append(lines, LineItem{ItemID: l.ItemID, Qty: l.Qty, Purpose: l.Purpose})
				}
			}
		}
		if err := tx.InsertDocument(ctx, doc); err != nil {
			return err
		}
		if err := tx.InsertLines(ctx, doc.ID, lines); err != nil {
			return err
		}
		return tx.InsertEvent(ctx, Event{
			DocID: doc.ID, ActorID: input.Actor.ID, ActorRole: input.Actor.Role,
			Action: ActionCreated, ToStatus: doc.Status,
		})
	})
	if err != nil {
		return Document{}, err
	}
	s.recordAudit(ctx, input.Actor.ID, "document.create", doc.ID.String(), map[string]any{"type": string(doc.Type)})
	s.bumpCache(ctx)
	return s.repo.Get(ctx, doc.ID)
}

// ReceiveLine reports a delivered quantity against one order line.
type ReceiveLine struct {
	LineID int64
	Qty    float64
}

// TransitionInput describes a lifecycle action against a document.
// ExpectedVersion must match the stored version; a mismatch means another
// writer got there first and the caller must re-read.
type TransitionInput struct {
	DocID           uuid.UUID
	Action          workflow.Action
	Comment         string
	Lines           []ReceiveLine
	ExpectedVersion int64
	IdempotencyKey  string
	Actor           workflow.Actor
}

// stockMove is a deferred ledger effect, applied after the document
// transaction commits.
type stockMove struct {
	itemID         int64
	deltaAvailable float64
	deltaIncoming  float64
	note           string
}

// Transition applies one action to a document. The status update, event
// append and any spawned documents commit in a single transaction; stock
// movements follow through the inventory ledger.
func (s *Service) Transition(ctx context.Context, input TransitionInput) (Document, error) {
	switch input.Action {
	case workflow.ActionQuoteReceived, workflow.ActionAcceptQuote:
		return Document{}, &workflow.ValidationError{Reason: fmt.Sprintf("action %s is driven through the quote endpoints", input.Action)}
	}
	idemKey := ""
	if input.IdempotencyKey != "" && s.idem != nil {
		idemKey = input.DocID.String() + ":" + input.IdempotencyKey
		if err := s.idem.CheckAndInsert(ctx, idemKey, "documents"); err != nil {
			return Document{}, err
		}
	}

	var moves []stockMove
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		moves = moves[:0]
		doc, err := tx.GetDocumentForUpdate(ctx, input.DocID)
		if err != nil {
			return err
		}
		if input.ExpectedVersion != 0 && input.ExpectedVersion != doc.Version {
			return &ConcurrentModificationError{DocID: doc.ID, Version: input.ExpectedVersion}
		}
		hasComment := strings.TrimSpace(input.Comment) != ""
		decision, err := workflow.Decide(doc.Type, doc.Status, input.Action, input.Actor.Role, hasComment)
		if err != nil {
			return err
		}
		to := decision.To
		if decision.ToPrevious {
			if to, err = s.statusBeforeHold(ctx, tx, doc.ID); err != nil {
				return err
			}
		}

		switch {
		case doc.Type == workflow.DocOrder && (input.Action == workflow.ActionReceivePartial || input.Action == workflow.ActionReceiveRemainder):
			if moves, err = s.receive(ctx, tx, &doc, input); err != nil {
				return err
			}
		case doc.Type == workflow.DocOrder && input.Action == workflow.ActionCancel:
			for _, line := range doc.Lines {
				remaining := line.Qty - line.FulfilledQty
				if remaining > qtyEpsilon {
					moves = append(moves, stockMove{itemID: line.ItemID, deltaIncoming: -remaining, note: "order cancelled"})
				}
			}
		case doc.Type == workflow.DocReturn && input.Action == workflow.ActionInspect:
			if err := s.inspect(ctx, tx, &doc, input); err != nil {
				return err
			}
		case doc.Type == workflow.DocReturn && input.Action == workflow.ActionApprove && restockable(doc.Kind):
			for _, line := range doc.Lines {
				moves = append(moves, stockMove{itemID: line.ItemID, deltaAvailable: line.Qty, note: "approved return restocked"})
			}
		}

		if err := tx.UpdateStatus(ctx, doc.ID, to, doc.Version); err != nil {
			return err
		}
		return tx.InsertEvent(ctx, Event{
			DocID: doc.ID, ActorID: input.Actor.ID, ActorRole: input.Actor.Role,
			Action: input.Action, FromStatus: doc.Status, ToStatus: to, Comment: input.Comment,
		})
	})
	if err != nil {
		if idemKey != "" {
			// Nothing was applied; free the key for the corrected retry.
			_ = s.idem.Delete(ctx, idemKey)
		}
		return Document{}, err
	}
	s.applyMoves(ctx, input.DocID, input.Actor, moves)
	s.recordAudit(ctx, input.Actor.ID, "document."+string(input.Action), input.DocID.String(), nil)
	s.bumpCache(ctx)
	return s.repo.Get(ctx, input.DocID)
}

// DispatchCreatedOrders moves every created order into transit on behalf of
// the system actor. The worker runs it on a schedule as the stand-in for a
// supplier shipping feed; orders cancelled concurrently are skipped.
func (s *Service) DispatchCreatedOrders(ctx context.Context) (int, error) {
	dispatched := 0
	filter := Filter{Type: workflow.DocOrder, Status: workflow.StatusCreated, Limit: 200}
	for {
		docs, next, err := s.repo.List(ctx, filter)
		if err != nil {
			return dispatched, err
		}
		for _, doc := range docs {
			_, err := s.Transition(ctx, TransitionInput{
				DocID:           doc.ID,
				Action:          workflow.ActionDispatch,
				ExpectedVersion: doc.Version,
				Actor:           workflow.SystemActor,
			})
			switch {
			case err == nil:
				dispatched++
			case isTransitionSkip(err):
			default:
				return dispatched, err
			}
		}
		if next.IsZero() {
			return dispatched, nil
		}
		filter.Cursor = next
	}
}

// isTransitionSkip reports errors that mean another actor moved the
// document first, which the dispatch sweep treats as already handled.
func isTransitionSkip(err error) bool {
	var conflict *ConcurrentModificationError
	var invalid *workflow.InvalidTransitionError
	return errors.As(err, &conflict) || errors.As(err, &invalid)
}

// statusBeforeHold resolves the status a held order returns to: the
// FromStatus of the most recent hold event.
func (s *Service) statusBeforeHold(ctx context.Context, tx TxRepository, docID uuid.UUID) (workflow.Status, error) {
	events, err := tx.ListEvents(ctx, docID)
	if err != nil {
		return "", err
	}
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Action == workflow.ActionQAHold {
			return events[i].FromStatus, nil
		}
	}
	return "", errors.New("documents: no hold event found to resolve from")
}

// receive books delivered quantities, spawns the posted receipt in the same
// transaction and returns the resulting stock moves.
func (s *Service) receive(ctx context.Context, tx TxRepository, doc *Document, input TransitionInput) ([]stockMove, error) {
	byLineID := make(map[int64]*LineItem, len(doc.Lines))
	for i := range doc.Lines {
		byLineID[doc.Lines[i].ID] = &doc.Lines[i]
	}
	received := input.Lines
	if input.Action == workflow.ActionReceiveRemainder && len(received) == 0 {
		for _, line := range doc.Lines {
			if remaining := line.Qty - line.FulfilledQty; remaining > qtyEpsilon {
				received = append(received, ReceiveLine{LineID: line.ID, Qty: remaining})
			}
		}
	}
	if len(received) == 0 {
		return nil, &workflow.ValidationError{Reason: "no quantities to receive"}
	}

	var moves []stockMove
	var receiptLines []LineItem
	for _, rec := range received {
		line, ok := byLineID[rec.LineID]
		if !ok {
			return nil, &workflow.ValidationError{Reason: fmt.Sprintf("line %d does not belong to this order", rec.LineID)}
		}
		if rec.Qty <= 0 {
			return nil, &workflow.ValidationError{Reason: fmt.Sprintf("line %d: received quantity must be positive", rec.LineID)}
		}
		if rec.Qty > line.Qty-line.FulfilledQty+qtyEpsilon {
			return nil, &workflow.ValidationError{Reason: fmt.Sprintf("line %d: received %.3f exceeds outstanding %.3f", rec.LineID, rec.Qty, line.Qty-line.FulfilledQty)}
		}
		line.FulfilledQty += rec.Qty
		if math.Abs(line.Qty-line.FulfilledQty) < qtyEpsilon {
			line.FulfilledQty = line.Qty
		}
		if err := tx.UpdateLineFulfilled(ctx, line.ID, line.FulfilledQty); err != nil {
			return nil, err
		}
		moves = append(moves, stockMove{itemID: line.ItemID, deltaAvailable: rec.Qty, deltaIncoming: -rec.Qty, note: "goods received"})
		receiptLines = append(receiptLines, LineItem{ItemID: line.ItemID, Qty: rec.Qty, FulfilledQty: rec.Qty, UnitPrice: line.UnitPrice})
	}

	outstanding := 0.0
	for _, line := range doc.Lines {
		outstanding += line.Qty - line.FulfilledQty
	}
	if input.Action == workflow.ActionReceiveRemainder && outstanding > qtyEpsilon {
		return nil, &workflow.ValidationError{Reason: "order still has outstanding quantities; use receivePartial"}
	}
	if input.Action == workflow.ActionReceivePartial && outstanding < qtyEpsilon {
		return nil, &workflow.ValidationError{Reason: "all quantities received; use receiveRemainder"}
	}

	receipt := Document{
		ID:          uuid.New(),
		Type:        workflow.DocReceipt,
		Status:      workflow.StatusPosted,
		CreatorID:   input.Actor.ID,
		CreatorRole: workflow.RoleSystem,
		SupplierID:  doc.SupplierID,
		SourceID:    uuid.NullUUID{UUID: doc.ID, Valid: true},
	}
	if err := tx.InsertDocument(ctx, receipt); err != nil {
		return nil, err
	}
	if err := tx.InsertLines(ctx, receipt.ID, receiptLines); err != nil {
		return nil, err
	}
	if err := tx.InsertEvent(ctx, Event{
		DocID: receipt.ID, ActorID: input.Actor.ID, ActorRole: workflow.RoleSystem,
		Action: ActionCreated, ToStatus: workflow.StatusPosted,
	}); err != nil {
		return nil, err
	}
	return moves, nil
}

// inspect books inspected quantities on a return's lines. Progress stays
// derived: the projection layer computes the percentage from these
// fulfilled quantities, nothing is stored as a percentage.
func (s *Service) inspect(ctx context.Context, tx TxRepository, doc *Document, input TransitionInput) error {
	if len(input.Lines) == 0 {
		return &workflow.ValidationError{Reason: "inspect requires at least one line"}
	}
	byLineID := make(map[int64]*LineItem, len(doc.Lines))
	for i := range doc.Lines {
		byLineID[doc.Lines[i].ID] = &doc.Lines[i]
	}
	for _, ins := range input.Lines {
		line, ok := byLineID[ins.LineID]
		if !ok {
			return &workflow.ValidationError{Reason: fmt.Sprintf("line %d does not belong to this return", ins.LineID)}
		}
		if ins.Qty <= 0 {
			return &workflow.ValidationError{Reason: fmt.Sprintf("line %d: inspected quantity must be positive", ins.LineID)}
		}
		if ins.Qty > line.Qty-line.FulfilledQty+qtyEpsilon {
			return &workflow.ValidationError{Reason: fmt.Sprintf("line %d: inspected %.3f exceeds uninspected %.3f", ins.LineID, ins.Qty, line.Qty-line.FulfilledQty)}
		}
		line.FulfilledQty += ins.Qty
		if math.Abs(line.Qty-line.FulfilledQty) < qtyEpsilon {
			line.FulfilledQty = line.Qty
		}
		if err := tx.UpdateLineFulfilled(ctx, line.ID, line.FulfilledQty); err != nil {
			return err
		}
	}
	return nil
}

// SubmitQuoteInput is a supplier bid against an open quotation request.
type SubmitQuoteInput struct {
	DocID        uuid.UUID
	TotalPrice   float64
	LeadTimeDays int
	PaymentTerms string
	Actor        workflow.Actor
}

// SubmitQuote attaches a supplier quote to an open quotation request. The
// request stays open for further quotes; only its version moves.
func (s *Service) SubmitQuote(ctx context.Context, input SubmitQuoteInput) (Quote, error) {
	if input.TotalPrice <= 0 {
		return Quote{}, &workflow.ValidationError{Reason: "quote total price must be positive"}
	}
	if input.LeadTimeDays < 0 {
		return Quote{}, &workflow.ValidationError{Reason: "quote lead time cannot be negative"}
	}
	quote := Quote{
		ID:           uuid.New(),
		DocID:        input.DocID,
		SupplierID:   input.Actor.ID,
		TotalPrice:   input.TotalPrice,
		LeadTimeDays: input.LeadTimeDays,
		PaymentTerms: input.PaymentTerms,
		Status:       workflow.QuoteSubmitted,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		doc, err := tx.GetDocumentForUpdate(ctx, input.DocID)
		if err != nil {
			return err
		}
		if doc.Type != workflow.DocQuotation {
			return &workflow.ValidationError{Reason: "quotes can only be submitted against quotation requests"}
		}
		decision, err := workflow.Decide(doc.Type, doc.Status, workflow.ActionQuoteReceived, input.Actor.Role, false)
		if err != nil {
			return err
		}
		if err := tx.InsertQuote(ctx, quote); err != nil {
			return err
		}
		if err := tx.UpdateStatus(ctx, doc.ID, decision.To, doc.Version); err != nil {
			return err
		}
		return tx.InsertEvent(ctx, Event{
			DocID: doc.ID, ActorID: input.Actor.ID, ActorRole: input.Actor.Role,
			Action: workflow.ActionQuoteReceived, FromStatus: doc.Status, ToStatus: decision.To,
		})
	})
	if err != nil {
		return Quote{}, err
	}
	s.recordAudit(ctx, input.Actor.ID, "quote.submit", quote.ID.String(), map[string]any{"request_id": input.DocID.String()})
	s.bumpCache(ctx)
	return quote, nil
}

// QuoteActionInput drives the quote review loop: reject, request a
// revision, or resubmit a revised bid.
type QuoteActionInput struct {
	DocID        uuid.UUID
	QuoteID      uuid.UUID
	Action       workflow.Action
	TotalPrice   float64
	LeadTimeDays int
	PaymentTerms string
	Actor        workflow.Actor
}

// QuoteAction moves one quote through its review states. Resubmission may
// carry revised terms.
func (s *Service) QuoteAction(ctx context.Context, input QuoteActionInput) (Quote, error) {
	var result Quote
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		quote, err := tx.GetQuoteForUpdate(ctx, input.QuoteID)
		if err != nil {
			return err
		}
		if quote.DocID != input.DocID {
			return ErrNotFound
		}
		to, err := workflow.DecideQuote(quote.Status, input.Action, input.Actor.Role)
		if err != nil {
			return err
		}
		if input.Action == workflow.ActionResubmit && input.TotalPrice > 0 {
			if err := tx.UpdateQuoteTerms(ctx, quote.ID, input.TotalPrice, input.LeadTimeDays, input.PaymentTerms); err != nil {
				return err
			}
			quote.TotalPrice = input.TotalPrice
			quote.LeadTimeDays = input.LeadTimeDays
			quote.PaymentTerms = input.PaymentTerms
		}
		if err := tx.UpdateQuoteStatus(ctx, quote.ID, to, quote.Version); err != nil {
			return err
		}
		quote.Status = to
		quote.Version++
		result = quote
		return nil
	})
	if err != nil {
		return Quote{}, err
	}
	s.recordAudit(ctx, input.Actor.ID, "quote."+string(input.Action), input.QuoteID.String(), nil)
	s.bumpCache(ctx)
	return result, nil
}

// AcceptQuoteInput selects the winning quote on a request.
type AcceptQuoteInput struct {
	DocID   uuid.UUID
	QuoteID uuid.UUID
	Actor   workflow.Actor
}

// AcceptQuote accepts one quote, closes the request and spawns the
// purchase order, all in one transaction. Competing quotes are left in
// whatever review state they hold. Incoming stock is reserved for every
// order line once the order exists.
func (s *Service) AcceptQuote(ctx context.Context, input AcceptQuoteInput) (Document, error) {
	var order Document
	var moves []stockMove
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		moves = moves[:0]
		doc, err := tx.GetDocumentForUpdate(ctx, input.DocID)
		if err != nil {
			return err
		}
		if doc.Type != workflow.DocQuotation {
			return &workflow.ValidationError{Reason: "quotes can only be accepted on quotation requests"}
		}
		quote, err := tx.GetQuoteForUpdate(ctx, input.QuoteID)
		if err != nil {
			return err
		}
		if quote.DocID != doc.ID {
			return ErrNotFound
		}
		taken, err := tx.AcceptedQuoteExists(ctx, doc.ID)
		if err != nil {
			return err
		}
		if taken {
			return ErrQuoteAlreadyAccepted
		}
		quoteTo, err := workflow.DecideQuote(quote.Status, workflow.ActionAcceptQuote, input.Actor.Role)
		if err != nil {
			return err
		}
		decision, err := workflow.Decide(doc.Type, doc.Status, workflow.ActionAcceptQuote, input.Actor.Role, false)
		if err != nil {
			return err
		}
		if err := tx.UpdateQuoteStatus(ctx, quote.ID, quoteTo, quote.Version); err != nil {
			return err
		}
		if err := tx.UpdateStatus(ctx, doc.ID, decision.To, doc.Version); err != nil {
			return err
		}
		if err := tx.InsertEvent(ctx, Event{
			DocID: doc.ID, ActorID: input.Actor.ID, ActorRole: input.Actor.Role,
			Action: workflow.ActionAcceptQuote, FromStatus: doc.Status, ToStatus: decision.To,
		}); err != nil {
			return err
		}

		order = Document{
			ID:          uuid.New(),
			Type:        workflow.DocOrder,
			Status:      workflow.StatusCreated,
			CreatorID:   input.Actor.ID,
			CreatorRole: workflow.RoleSystem,
			SupplierID:  quote.SupplierID,
			SourceID:    uuid.NullUUID{UUID: doc.ID, Valid: true},
			QuoteID:     uuid.NullUUID{UUID: quote.ID, Valid: true},
		}
		orderLines := make([]LineItem, 0, len(doc.Lines))
		for _, l := range doc.Lines {
			orderLines = append(orderLines, LineItem{ItemID: l.ItemID, Qty: l.Qty, UnitPrice: l.UnitPrice, Purpose: l.Purpose})
			moves = append(moves, stockMove{itemID: l.ItemID, deltaIncoming: l.Qty, note: "order placed"})
		}
		if err := tx.InsertDocument(ctx, order); err != nil {
			return err
		}
		if err := tx.InsertLines(ctx, order.ID, orderLines); err != nil {
			return err
		}
		return tx.InsertEvent(ctx, Event{
			DocID: order.ID, ActorID: input.Actor.ID, ActorRole: workflow.RoleSystem,
			Action: ActionCreated, ToStatus: workflow.StatusCreated,
		})
	})
	if err != nil {
		return Document{}, err
	}
	s.applyMoves(ctx, order.ID, input.Actor, moves)
	s.recordAudit(ctx, input.Actor.ID, "quote.accept", input.QuoteID.String(), map[string]any{"order_id": order.ID.String()})
	s.bumpCache(ctx)
	return s.repo.Get(ctx, order.ID)
}

// EnsureAutoRequisition creates a draft requisition for an item whose
// stock fell below its reorder point. It is idempotent: while an open
// requisition for the item exists, repeated calls create nothing.
func (s *Service) EnsureAutoRequisition(ctx context.Context, itemID int64, qty float64) (bool, error) {
	if qty <= 0 {
		return false, nil
	}
	doc := Document{
		ID:          uuid.New(),
		Type:        workflow.DocRequisition,
		Status:      workflow.StatusDraft,
		CreatorID:   workflow.SystemActor.ID,
		CreatorRole: workflow.RoleSystem,
		AutoItemID:  &itemID,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		exists, err := tx.OpenRequisitionExists(ctx, itemID)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateAutoRequisition
		}
		if err := tx.InsertDocument(ctx, doc); err != nil {
			return err
		}
		if err := tx.InsertLines(ctx, doc.ID, []LineItem{{
			ItemID: itemID, Qty: qty, Purpose: "automatic reorder", Priority: PriorityHigh,
		}}); err != nil {
			return err
		}
		return tx.InsertEvent(ctx, Event{
			DocID: doc.ID, ActorID: workflow.SystemActor.ID, ActorRole: workflow.RoleSystem,
			Action: ActionCreated, ToStatus: workflow.StatusDraft,
		})
	})
	if errors.Is(err, ErrDuplicateAutoRequisition) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	s.recordAudit(ctx, workflow.SystemActor.ID, "document.create", doc.ID.String(), map[string]any{"type": string(workflow.DocRequisition), "auto_item_id": itemID})
	s.bumpCache(ctx)
	return true, nil
}

// Get loads one document with its lines, history and quotes.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Document, error) {
	return s.repo.Get(ctx, id)
}

// Query lists document headers matching the filter.
func (s *Service) Query(ctx context.Context, filter Filter) ([]Document, shared.Cursor, error) {
	return s.repo.List(ctx, filter)
}

// History returns the full event trail for a document.
func (s *Service) History(ctx context.Context, id uuid.UUID) ([]Event, error) {
	return s.repo.ListEvents(ctx, id)
}

// Quotes lists all quotes on a quotation request.
func (s *Service) Quotes(ctx context.Context, docID uuid.UUID) ([]Quote, error) {
	return s.repo.ListQuotes(ctx, docID)
}

// AllowedActions reports which actions the actor may take on the document
// in its current state.
func (s *Service) AllowedActions(ctx context.Context, id uuid.UUID, actor workflow.Actor) ([]workflow.Action, error) {
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return workflow.AllowedActions(doc.Type, doc.Status, actor.Role), nil
}

// applyMoves pushes deferred stock effects through the ledger. Failures
// are recorded against the causing document but do not unwind the
// committed transition; the reorder sweep reconciles later.
func (s *Service) applyMoves(ctx context.Context, docID uuid.UUID, actor workflow.Actor, moves []stockMove) {
	if s.stock == nil {
		return
	}
	for _, m := range moves {
		_, err := s.stock.Adjust(ctx, ledger.AdjustInput{
			ItemID:         m.itemID,
			DeltaAvailable: m.deltaAvailable,
			DeltaIncoming:  m.deltaIncoming,
			CausingDocID:   docID.String(),
			Note:           m.note,
			Actor:          actor,
		})
		if err != nil {
			s.recordAudit(ctx, actor.ID, "stock.adjust.failed", docID.String(), map[string]any{
				"item_id": m.itemID, "error": err.Error(),
			})
		}
	}
}

// restockable reports whether approving a return of this kind brings the
// goods back into available stock. Damaged and missing goods never do.
func restockable(kind workflow.ReturnKind) bool {
	return kind == workflow.ReturnRefund || kind == workflow.ReturnExchange
}

func (s *Service) recordAudit(ctx context.Context, actorID, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{ActorID: actorID, Action: action, Entity: "document", EntityID: entityID, Meta: meta})
}

func (s *Service) bumpCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Bump(ctx)
}
