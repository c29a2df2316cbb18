// Package workflow implements the document state machine: per-type
// transition tables, role gates and structural preconditions.
package workflow

// Role tags an acting identity. Roles determine which transitions are
// permitted; RoleSystem is reserved for machine-initiated transitions such
// as auto-drafted requisitions and order dispatch.
type Role string

const (
	RoleEmployee Role = "EMPLOYEE"
	RoleManager  Role = "MANAGER"
	RoleSupplier Role = "SUPPLIER"
	RoleClient   Role = "CLIENT"
	RoleSystem   Role = "SYSTEM"
)

// Actor is a role-tagged identity performing a transition.
type Actor struct {
	ID   string
	Role Role
}

// SystemActor is the creator identity for machine-initiated documents.
var SystemActor = Actor{ID: "system", Role: RoleSystem}

// DocType enumerates document variants.
type DocType string

const (
	DocRequisition DocType = "REQUISITION"
	DocQuotation   DocType = "QUOTATION_REQUEST"
	DocOrder       DocType = "ORDER"
	DocReceipt     DocType = "RECEIPT"
	DocReturn      DocType = "RETURN_REQUEST"
)

// Status is a document lifecycle state. Status sets are variant-specific;
// the transition tables in tables.go define which statuses are reachable
// for each DocType.
type Status string

// Requisition statuses.
const (
	StatusDraft           Status = "DRAFT"
	StatusPendingApproval Status = "PENDING_APPROVAL"
	StatusApproved        Status = "APPROVED"
	StatusRejected        Status = "REJECTED"
	StatusConverted       Status = "CONVERTED"
)

// QuotationRequest statuses. Draft is shared with requisitions.
const (
	StatusAwaitingQuotes Status = "AWAITING_QUOTES"
	StatusClosed         Status = "CLOSED"
)

// Order statuses.
const (
	StatusCreated         Status = "CREATED"
	StatusInTransit       Status = "IN_TRANSIT"
	StatusPartialDelivery Status = "PARTIAL_DELIVERY"
	StatusDelivered       Status = "DELIVERED"
	StatusQAHold          Status = "QA_HOLD"
	StatusCancelled       Status = "CANCELLED"
)

// Receipt and return statuses.
const (
	StatusPosted    Status = "POSTED"
	StatusSubmitted Status = "SUBMITTED"
	StatusFlagged   Status = "FLAGGED"
)

// Action names a transition attempt on a document.
type Action string

const (
	ActionSubmit           Action = "submit"
	ActionApprove          Action = "approve"
	ActionReject           Action = "reject"
	ActionSendBack         Action = "sendBack"
	ActionConvert          Action = "convert"
	ActionSend             Action = "send"
	ActionQuoteReceived    Action = "quoteReceived"
	ActionAcceptQuote      Action = "acceptQuote"
	ActionDispatch         Action = "dispatch"
	ActionReceivePartial   Action = "receivePartial"
	ActionReceiveRemainder Action = "receiveRemainder"
	ActionQAHold           Action = "qaHold"
	ActionResolve          Action = "resolve"
	ActionRequestFollowUp  Action = "requestFollowUp"
	ActionCancel           Action = "cancel"
	ActionFlag             Action = "flag"
	ActionInspect          Action = "inspect"
)

// QuoteStatus is the lifecycle state of a supplier quote.
type QuoteStatus string

const (
	QuoteSubmitted         QuoteStatus = "SUBMITTED"
	QuoteRevisionRequested QuoteStatus = "REVISION_REQUESTED"
	QuoteRejected          QuoteStatus = "REJECTED"
	QuoteAccepted          QuoteStatus = "ACCEPTED"
)

// ReturnKind subtypes a return/incident document. The kind is set
// explicitly at creation; it never cycles.
type ReturnKind string

const (
	ReturnRefund   ReturnKind = "REFUND"
	ReturnExchange ReturnKind = "EXCHANGE"
	ReturnDamaged  ReturnKind = "DAMAGED"
	ReturnMissing  ReturnKind = "MISSING"
)

// ValidReturnKind reports whether k is a known return subtype.
func ValidReturnKind(k ReturnKind) bool {
	switch k {
	case ReturnRefund, ReturnExchange, ReturnDamaged, ReturnMissing:
		return true
	}
	return false
}
