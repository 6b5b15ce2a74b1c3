package workflow

// State represents a trip request state in the approval lifecycle
type State string

const (
	StateDraft               State = "draft"
	StateSubmitted           State = "submitted"
	StateReturned            State = "returned"
	StateRejected            State = "rejected"
	StatePendingOrganization State = "pending_organization"
	StateOrganizationDone    State = "organization_done"
	StateExpenseSubmitted    State = "expense_submitted"
	StateExpenseReturned     State = "expense_returned"
	StateCompleted           State = "completed"
	StateCancelled           State = "cancelled"
)

// StateAwaitingExpense is the name the employee sees for OrganizationDone.
// Both names refer to the same stored state.
const StateAwaitingExpense = StateOrganizationDone

var validStates = map[State]bool{
	StateDraft:               true,
	StateSubmitted:           true,
	StateReturned:            true,
	StateRejected:            true,
	StatePendingOrganization: true,
	StateOrganizationDone:    true,
	StateExpenseSubmitted:    true,
	StateExpenseReturned:     true,
	StateCompleted:           true,
	StateCancelled:           true,
}

var terminalStates = map[State]bool{
	StateRejected:  true,
	StateCompleted: true,
	StateCancelled: true,
}

// AllStates returns every state in lifecycle order
func AllStates() []State {
	return []State{
		StateDraft,
		StateSubmitted,
		StateReturned,
		StateRejected,
		StatePendingOrganization,
		StateOrganizationDone,
		StateExpenseSubmitted,
		StateExpenseReturned,
		StateCompleted,
		StateCancelled,
	}
}

// IsTerminal returns true if the state is a terminal state (no further transitions allowed).
// Completed can still be reopened by an explicit undo of the expense approval.
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// IsEditable returns true if the requester may still change the trip details
func (s State) IsEditable() bool {
	return s == StateDraft || s == StateReturned
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a valid workflow state
func (s State) IsValid() bool {
	return validStates[s]
}

// FormState tracks whether the request-detail form itself is filled in.
// It moves independently of State.
type FormState string

const (
	FormAwaitingCompletion FormState = "awaiting_completion"
	FormCompleted          FormState = "form_completed"
	FormCancelled          FormState = "cancelled"
)

// IsValid returns true if the form state is known
func (f FormState) IsValid() bool {
	switch f {
	case FormAwaitingCompletion, FormCompleted, FormCancelled:
		return true
	default:
		return false
	}
}
