package workflow

// Trigger represents a command that can cause a state transition
type Trigger string

const (
	TriggerUpdateDetails       Trigger = "UPDATE_DETAILS"
	TriggerCompleteForm        Trigger = "COMPLETE_FORM"
	TriggerSubmit              Trigger = "SUBMIT"
	TriggerAssignOrganizer     Trigger = "ASSIGN_ORGANIZER_AND_BUDGET"
	TriggerReturn              Trigger = "RETURN"
	TriggerReject              Trigger = "REJECT"
	TriggerCancel              Trigger = "CANCEL"
	TriggerReturnToDraft       Trigger = "RETURN_TO_DRAFT"
	TriggerConfirmPlan         Trigger = "CONFIRM_PLAN"
	TriggerSubmitExpenses      Trigger = "SUBMIT_EXPENSES"
	TriggerApproveExpenses     Trigger = "APPROVE_EXPENSES"
	TriggerReturnExpenses      Trigger = "RETURN_EXPENSES"
	TriggerUndoExpenseRecall   Trigger = "UNDO_EXPENSE_RECALL"
	TriggerUndoExpenseApproval Trigger = "UNDO_EXPENSE_APPROVAL"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
