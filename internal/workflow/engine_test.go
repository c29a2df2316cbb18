package workflow

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRequisitionHappyPath(t *testing.T) {
	d, err := Decide(DocRequisition, StatusDraft, ActionSubmit, RoleEmployee, false)
	require.NoError(t, err)
	require.Equal(t, StatusPendingApproval, d.To)

	d, err = Decide(DocRequisition, StatusPendingApproval, ActionApprove, RoleManager, false)
	require.NoError(t, err)
	require.Equal(t, StatusApproved, d.To)

	d, err = Decide(DocRequisition, StatusApproved, ActionConvert, RoleSystem, false)
	require.NoError(t, err)
	require.Equal(t, StatusConverted, d.To)
	require.True(t, IsTerminal(DocRequisition, StatusConverted))
}

func TestSendBackRequiresComment(t *testing.T) {
	_, err := Decide(DocRequisition, StatusPendingApproval, ActionSendBack, RoleManager, false)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	d, err := Decide(DocRequisition, StatusPendingApproval, ActionSendBack, RoleManager, true)
	require.NoError(t, err)
	require.Equal(t, StatusDraft, d.To)
}

func TestRejectRequiresCommentAndIsTerminal(t *testing.T) {
	_, err := Decide(DocRequisition, StatusPendingApproval, ActionReject, RoleManager, false)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	d, err := Decide(DocRequisition, StatusPendingApproval, ActionReject, RoleManager, true)
	require.NoError(t, err)
	require.Equal(t, StatusRejected, d.To)
	require.True(t, IsTerminal(DocRequisition, StatusRejected))
}

func TestWrongRoleCarriesAllowedSet(t *testing.T) {
	_, err := Decide(DocRequisition, StatusPendingApproval, ActionApprove, RoleEmployee, false)
	var terr *InvalidTransitionError
	require.ErrorAs(t, err, &terr)
	require.Equal(t, "role EMPLOYEE not permitted", terr.Reason)
	require.Empty(t, terr.Allowed)

	_, err = Decide(DocRequisition, StatusPendingApproval, ActionApprove, RoleSupplier, false)
	require.ErrorAs(t, err, &terr)
	require.Empty(t, terr.Allowed)
}

func TestWrongStatusCarriesAllowedSet(t *testing.T) {
	_, err := Decide(DocRequisition, StatusDraft, ActionApprove, RoleManager, false)
	var terr *InvalidTransitionError
	require.ErrorAs(t, err, &terr)
	require.Equal(t, DocRequisition, terr.DocType)
	require.Equal(t, StatusDraft, terr.From)
	require.Empty(t, terr.Allowed)

	allowed := AllowedActions(DocRequisition, StatusPendingApproval, RoleManager)
	require.Equal(t, []Action{ActionApprove, ActionReject, ActionSendBack}, allowed)
}

func TestQuotationLifecycle(t *testing.T) {
	d, err := Decide(DocQuotation, StatusDraft, ActionSend, RoleEmployee, false)
	require.NoError(t, err)
	require.Equal(t, StatusAwaitingQuotes, d.To)

	// quoteReceived is re-entrant and open to any role.
	d, err = Decide(DocQuotation, StatusAwaitingQuotes, ActionQuoteReceived, RoleSupplier, false)
	require.NoError(t, err)
	require.Equal(t, StatusAwaitingQuotes, d.To)

	_, err = Decide(DocQuotation, StatusAwaitingQuotes, ActionAcceptQuote, RoleEmployee, false)
	var terr *InvalidTransitionError
	require.ErrorAs(t, err, &terr)

	d, err = Decide(DocQuotation, StatusAwaitingQuotes, ActionAcceptQuote, RoleManager, false)
	require.NoError(t, err)
	require.Equal(t, StatusClosed, d.To)
}

func TestOrderDeliveryAndQAHold(t *testing.T) {
	d, err := Decide(DocOrder, StatusCreated, ActionDispatch, RoleSystem, false)
	require.NoError(t, err)
	require.Equal(t, StatusInTransit, d.To)

	d, err = Decide(DocOrder, StatusInTransit, ActionReceivePartial, RoleEmployee, false)
	require.NoError(t, err)
	require.Equal(t, StatusPartialDelivery, d.To)

	d, err = Decide(DocOrder, StatusPartialDelivery, ActionQAHold, RoleEmployee, false)
	require.NoError(t, err)
	require.Equal(t, StatusQAHold, d.To)

	d, err = Decide(DocOrder, StatusQAHold, ActionResolve, RoleManager, false)
	require.NoError(t, err)
	require.True(t, d.ToPrevious)

	d, err = Decide(DocOrder, StatusQAHold, ActionRequestFollowUp, RoleManager, false)
	require.NoError(t, err)
	require.Equal(t, StatusQAHold, d.To)

	d, err = Decide(DocOrder, StatusPartialDelivery, ActionReceiveRemainder, RoleEmployee, false)
	require.NoError(t, err)
	require.Equal(t, StatusDelivered, d.To)
}

func TestOrderDispatchIsSystemOnly(t *testing.T) {
	for _, role := range []Role{RoleEmployee, RoleManager, RoleSupplier, RoleClient} {
		_, err := Decide(DocOrder, StatusCreated, ActionDispatch, role, false)
		var terr *InvalidTransitionError
		require.ErrorAs(t, err, &terr, "role %s must not dispatch", role)
	}
}

func TestOrderCancelPreDeliveredOnly(t *testing.T) {
	for _, from := range []Status{StatusCreated, StatusInTransit, StatusPartialDelivery, StatusQAHold} {
		d, err := Decide(DocOrder, from, ActionCancel, RoleManager, true)
		require.NoError(t, err)
		require.Equal(t, StatusCancelled, d.To)
	}

	_, err := Decide(DocOrder, StatusDelivered, ActionCancel, RoleManager, true)
	var terr *InvalidTransitionError
	require.ErrorAs(t, err, &terr)

	_, err = Decide(DocOrder, StatusCreated, ActionCancel, RoleManager, false)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestReceiptHasNoTransitions(t *testing.T) {
	_, err := Decide(DocReceipt, StatusPosted, ActionCancel, RoleManager, true)
	var terr *InvalidTransitionError
	require.ErrorAs(t, err, &terr)
	require.Empty(t, terr.Allowed)
	require.True(t, IsTerminal(DocReceipt, StatusPosted))
}

func TestReturnLifecycle(t *testing.T) {
	d, err := Decide(DocReturn, StatusSubmitted, ActionFlag, RoleManager, false)
	require.NoError(t, err)
	require.Equal(t, StatusFlagged, d.To)

	d, err = Decide(DocReturn, StatusFlagged, ActionApprove, RoleManager, false)
	require.NoError(t, err)
	require.Equal(t, StatusApproved, d.To)
	require.True(t, IsTerminal(DocReturn, StatusApproved))
}

func TestReturnInspectKeepsStatus(t *testing.T) {
	d, err := Decide(DocReturn, StatusSubmitted, ActionInspect, RoleEmployee, false)
	require.NoError(t, err)
	require.Equal(t, StatusSubmitted, d.To)

	d, err = Decide(DocReturn, StatusFlagged, ActionInspect, RoleManager, false)
	require.NoError(t, err)
	require.Equal(t, StatusFlagged, d.To)

	_, err = Decide(DocReturn, StatusSubmitted, ActionInspect, RoleSupplier, false)
	var terr *InvalidTransitionError
	require.ErrorAs(t, err, &terr)

	_, err = Decide(DocReturn, StatusApproved, ActionInspect, RoleEmployee, false)
	require.ErrorAs(t, err, &terr)
}

func TestEveryRuleTargetsDefinedStatus(t *testing.T) {
	for docType, rules := range transitionTables {
		for _, r := range rules {
			if r.ToPrevious {
				continue
			}
			require.NotEmpty(t, r.To, "rule %s/%s has no target", docType, r.Action)
			require.False(t, IsTerminal(docType, r.From[0]), "rule %s/%s leaves a terminal status", docType, r.Action)
		}
	}
}

func TestCreatorRoles(t *testing.T) {
	require.True(t, CanCreate(DocRequisition, RoleSystem))
	require.True(t, CanCreate(DocRequisition, RoleEmployee))
	require.False(t, CanCreate(DocOrder, RoleManager))
	require.True(t, CanCreate(DocReturn, RoleClient))
	require.False(t, CanCreate(DocQuotation, RoleSupplier))
}

func TestValidationErrorIsNotTransitionError(t *testing.T) {
	_, err := Decide(DocRequisition, StatusPendingApproval, ActionReject, RoleManager, false)
	var terr *InvalidTransitionError
	require.False(t, errors.As(err, &terr))
}
