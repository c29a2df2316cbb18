package workflow

// Quote actions handled by the quote sub-machine.
const (
	ActionRequestRevision Action = "requestRevision"
	ActionResubmit        Action = "resubmit"
)

type quoteRule struct {
	Action Action
	From   QuoteStatus
	To     QuoteStatus
	Roles  []Role
}

var quoteRules = []quoteRule{
	{Action: ActionReject, From: QuoteSubmitted, To: QuoteRejected, Roles: []Role{RoleManager}},
	{Action: ActionRequestRevision, From: QuoteSubmitted, To: QuoteRevisionRequested, Roles: []Role{RoleManager}},
	{Action: ActionResubmit, From: QuoteRevisionRequested, To: QuoteSubmitted, Roles: []Role{RoleSupplier}},
	{Action: ActionAcceptQuote, From: QuoteSubmitted, To: QuoteAccepted, Roles: []Role{RoleManager}},
}

// DecideQuote validates a transition attempt on a supplier quote.
// Acceptance is terminal; the caller enforces the at-most-one-accepted
// invariant and spawns the resulting order.
func DecideQuote(from QuoteStatus, action Action, role Role) (QuoteStatus, error) {
	var fromMatch bool
	for _, r := range quoteRules {
		if r.Action != action || r.From != from {
			continue
		}
		fromMatch = true
		if roleAllowed(role, r.Roles) {
			return r.To, nil
		}
	}
	reason := "action not defined for current quote status"
	if fromMatch {
		reason = "role " + string(role) + " not permitted"
	}
	return "", &InvalidTransitionError{
		DocType: DocQuotation,
		From:    Status(from),
		Action:  action,
		Role:    role,
		Reason:  reason,
		Allowed: allowedQuoteActions(from, role),
	}
}

func allowedQuoteActions(from QuoteStatus, role Role) []Action {
	var actions []Action
	for _, r := range quoteRules {
		if r.From == from && roleAllowed(role, r.Roles) {
			actions = append(actions, r.Action)
		}
	}
	return actions
}
