package model

// WorkflowState tracks where an activation request stopped.
type WorkflowState string

const (
	StateInitiated         WorkflowState = "INITIATED"
	StateOrderCreated      WorkflowState = "ORDER_CREATED"
	StateSignaturePending  WorkflowState = "SIGNATURE_PENDING"
	StateVerified          WorkflowState = "VERIFIED"
	StateRejected          WorkflowState = "REJECTED"
	StateLedgerWritten     WorkflowState = "LEDGER_WRITTEN"
	StateProfileActivated  WorkflowState = "PROFILE_ACTIVATED"
	StateLedgerFailed      WorkflowState = "LEDGER_FAILED"
	StateProfileUpdateFail WorkflowState = "PROFILE_UPDATE_FAILED"
	StateGeneralError      WorkflowState = "GENERAL_ERROR"
)

// IsTerminal reports whether no further transition is possible.
func (s WorkflowState) IsTerminal() bool {
	switch s {
	case StateRejected, StateProfileActivated, StateLedgerFailed, StateProfileUpdateFail, StateGeneralError:
		return true
	}
	return false
}

// ActivationResult is returned by the workflow for every request, successful or not.
type ActivationResult struct {
	State    WorkflowState
	RecordID string
	Profile  *Profile
	// Replayed is set when the payment had already been activated by an earlier request.
	Replayed bool
}
