package workflow

import (
	"fmt"
	"net/http"
)

// ValidationError marks a structurally malformed request. It is raised
// before any state change is attempted and is always recoverable by the
// caller correcting input.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("workflow: validation failed: %s", e.Reason)
}

// Problem implements httpx.Problemer.
func (e *ValidationError) Problem() (int, string, string, map[string]any) {
	return http.StatusBadRequest, "Validation Failed", e.Reason, nil
}

// InvalidTransitionError reports a transition that is not permitted from the
// document's current status or for the acting role. Allowed carries the
// action set available to the actor so a client can self-correct.
type InvalidTransitionError struct {
	DocType DocType
	From    Status
	Action  Action
	Role    Role
	Reason  string
	Allowed []Action
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("workflow: %s cannot %q from %s as %s: %s", e.DocType, e.Action, e.From, e.Role, e.Reason)
}

// Problem implements httpx.Problemer.
func (e *InvalidTransitionError) Problem() (int, string, string, map[string]any) {
	allowed := make([]string, 0, len(e.Allowed))
	for _, a := range e.Allowed {
		allowed = append(allowed, string(a))
	}
	return http.StatusConflict, "Invalid Transition", e.Error(), map[string]any{
		"allowed_actions": allowed,
	}
}
