package workflow

// rule describes one permitted transition. A nil Roles slice admits any
// role. ToPrevious marks transitions whose target is the status the
// document held before entering From; the caller resolves it from the
// event history.
type rule struct {
	Action          Action
	From            []Status
	To              Status
	Roles           []Role
	RequiresComment bool
	ToPrevious      bool
}

var transitionTables = map[DocType][]rule{
	DocRequisition: {
		{Action: ActionSubmit, From: []Status{StatusDraft}, To: StatusPendingApproval, Roles: []Role{RoleEmployee}},
		{Action: ActionApprove, From: []Status{StatusPendingApproval}, To: StatusApproved, Roles: []Role{RoleManager}},
		{Action: ActionReject, From: []Status{StatusPendingApproval}, To: StatusRejected, Roles: []Role{RoleManager}, RequiresComment: true},
		{Action: ActionSendBack, From: []Status{StatusPendingApproval}, To: StatusDraft, Roles: []Role{RoleManager}, RequiresComment: true},
		{Action: ActionConvert, From: []Status{StatusApproved}, To: StatusConverted, Roles: []Role{RoleSystem}},
	},
	DocQuotation: {
		{Action: ActionSend, From: []Status{StatusDraft}, To: StatusAwaitingQuotes, Roles: []Role{RoleEmployee, RoleManager}},
		{Action: ActionQuoteReceived, From: []Status{StatusAwaitingQuotes}, To: StatusAwaitingQuotes},
		{Action: ActionAcceptQuote, From: []Status{StatusAwaitingQuotes}, To: StatusClosed, Roles: []Role{RoleManager}},
	},
	DocOrder: {
		{Action: ActionDispatch, From: []Status{StatusCreated}, To: StatusInTransit, Roles: []Role{RoleSystem}},
		{Action: ActionReceivePartial, From: []Status{StatusInTransit, StatusPartialDelivery}, To: StatusPartialDelivery, Roles: []Role{RoleEmployee, RoleSystem}},
		{Action: ActionReceiveRemainder, From: []Status{StatusInTransit, StatusPartialDelivery}, To: StatusDelivered, Roles: []Role{RoleEmployee, RoleSystem}},
		{Action: ActionQAHold, From: []Status{StatusInTransit, StatusPartialDelivery}, To: StatusQAHold, Roles: []Role{RoleEmployee, RoleSystem}},
		{Action: ActionResolve, From: []Status{StatusQAHold}, Roles: []Role{RoleManager}, ToPrevious: true},
		{Action: ActionRequestFollowUp, From: []Status{StatusQAHold}, To: StatusQAHold, Roles: []Role{RoleManager}},
		{Action: ActionCancel, From: []Status{StatusCreated, StatusInTransit, StatusPartialDelivery, StatusQAHold}, To: StatusCancelled, Roles: []Role{RoleManager}, RequiresComment: true},
	},
	// Receipts are spawned already posted and never transition again.
	DocReceipt: {},
	DocReturn: {
		{Action: ActionInspect, From: []Status{StatusSubmitted}, To: StatusSubmitted, Roles: []Role{RoleEmployee, RoleManager}},
		{Action: ActionInspect, From: []Status{StatusFlagged}, To: StatusFlagged, Roles: []Role{RoleEmployee, RoleManager}},
		{Action: ActionFlag, From: []Status{StatusSubmitted}, To: StatusFlagged, Roles: []Role{RoleManager}},
		{Action: ActionApprove, From: []Status{StatusSubmitted, StatusFlagged}, To: StatusApproved, Roles: []Role{RoleManager}},
	},
}

// initialStatuses maps each document type to its creation status.
var initialStatuses = map[DocType]Status{
	DocRequisition: StatusDraft,
	DocQuotation:   StatusDraft,
	DocOrder:       StatusCreated,
	DocReceipt:     StatusPosted,
	DocReturn:      StatusSubmitted,
}

// creatorRoles maps each document type to the roles allowed to create it.
// Orders and receipts are only ever spawned by the engine itself.
var creatorRoles = map[DocType][]Role{
	DocRequisition: {RoleEmployee, RoleManager, RoleSystem},
	DocQuotation:   {RoleEmployee, RoleManager},
	DocOrder:       {RoleSystem},
	DocReceipt:     {RoleSystem},
	DocReturn:      {RoleEmployee, RoleClient},
}

// terminalStatuses lists the statuses from which no transition is defined,
// per document type.
var terminalStatuses = map[DocType]map[Status]bool{
	DocRequisition: {StatusRejected: true, StatusConverted: true},
	DocQuotation:   {StatusClosed: true},
	DocOrder:       {StatusDelivered: true, StatusCancelled: true},
	DocReceipt:     {StatusPosted: true},
	DocReturn:      {StatusApproved: true},
}
