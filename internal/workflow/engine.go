package workflow

// Decision is the outcome of a validated transition attempt.
type Decision struct {
	To Status
	// ToPrevious marks a decision whose target is the status held before
	// the current one; the caller resolves it from the event history.
	ToPrevious bool
}

// ValidType reports whether t is a known document type.
func ValidType(t DocType) bool {
	_, ok := initialStatuses[t]
	return ok
}

// InitialStatus returns the creation status for a document type.
func InitialStatus(t DocType) Status {
	return initialStatuses[t]
}

// CanCreate reports whether a role may create documents of the given type.
func CanCreate(t DocType, role Role) bool {
	for _, r := range creatorRoles[t] {
		if r == role {
			return true
		}
	}
	return false
}

// IsTerminal reports whether status is terminal for the document type.
func IsTerminal(t DocType, status Status) bool {
	return terminalStatuses[t][status]
}

// AllowedActions returns the actions the given role may attempt from the
// current status, in table order.
func AllowedActions(t DocType, from Status, role Role) []Action {
	var actions []Action
	for _, r := range transitionTables[t] {
		if !statusIn(from, r.From) || !roleAllowed(role, r.Roles) {
			continue
		}
		actions = append(actions, r.Action)
	}
	return actions
}

// Decide validates a transition attempt against the document type's table.
// It returns the target status, or InvalidTransitionError when the action is
// not permitted from the current status or for the acting role, or
// ValidationError when a mandatory comment is missing. Decide never mutates
// anything; applying the decision is the caller's job.
func Decide(t DocType, from Status, action Action, role Role, hasComment bool) (Decision, error) {
	var fromMatch *rule
	for i := range transitionTables[t] {
		r := &transitionTables[t][i]
		if r.Action != action || !statusIn(from, r.From) {
			continue
		}
		fromMatch = r
		if !roleAllowed(role, r.Roles) {
			continue
		}
		if r.RequiresComment && !hasComment {
			return Decision{}, &ValidationError{Reason: "action " + string(action) + " requires a comment"}
		}
		return Decision{To: r.To, ToPrevious: r.ToPrevious}, nil
	}
	reason := "action not defined for current status"
	if fromMatch != nil {
		reason = "role " + string(role) + " not permitted"
	}
	return Decision{}, &InvalidTransitionError{
		DocType: t,
		From:    from,
		Action:  action,
		Role:    role,
		Reason:  reason,
		Allowed: AllowedActions(t, from, role),
	}
}

func statusIn(s Status, set []Status) bool {
	for _, candidate := range set {
		if candidate == s {
			return true
		}
	}
	return false
}

func roleAllowed(role Role, set []Role) bool {
	if len(set) == 0 {
		return true
	}
	for _, candidate := range set {
		if candidate == role {
			return true
		}
	}
	return false
}
