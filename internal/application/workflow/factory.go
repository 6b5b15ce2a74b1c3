package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/garyjia/trip-approval/internal/domain/access"
	"github.com/garyjia/trip-approval/internal/domain/budget"
	"github.com/garyjia/trip-approval/internal/domain/entity"
	domainwf "github.com/garyjia/trip-approval/internal/domain/workflow"
)

// commandContext is what a guard sees while a command is evaluated
type commandContext struct {
	trigger domainwf.Trigger
	actor   *entity.User
	acting  bool
	payload interface{}

	// set inside the atomic update
	trip *entity.TripRequest
	caps access.Capabilities
	now  time.Time

	// resolved before the update
	defaultApprover *entity.User
	manager         *entity.User
	organizer       *entity.User

	undoDaysLimit int
	ledger        *budget.Ledger
}

type commandContextKey struct{}

func withCommand(ctx context.Context, cc *commandContext) context.Context {
	return context.WithValue(ctx, commandContextKey{}, cc)
}

func commandFrom(ctx context.Context) *commandContext {
	cc, _ := ctx.Value(commandContextKey{}).(*commandContext)
	return cc
}

func (cc *commandContext) isRequester() bool {
	return cc.actor != nil && cc.actor.ID == cc.trip.RequesterID
}

// guard adapts a check on the command context to a state machine guard
func guard(check func(cc *commandContext) error) domainwf.GuardFunc {
	return func(ctx context.Context) error {
		cc := commandFrom(ctx)
		if cc == nil || cc.trip == nil {
			return fmt.Errorf("%w: no command context", domainwf.ErrGuardFailed)
		}
		return check(cc)
	}
}

// BuildTripStateMachineBuilder configures every trip transition with its guard.
// Guards check permission before payload so that dry runs report availability by role.
func BuildTripStateMachineBuilder() domainwf.StateMachineBuilder {
	builder := domainwf.NewBuilder()

	// Draft and Returned are the editable states
	for _, s := range []domainwf.State{domainwf.StateDraft, domainwf.StateReturned} {
		builder.Configure(s).
			PermitReentryIf(domainwf.TriggerUpdateDetails, guard(checkEditDetails)).
			PermitReentryIf(domainwf.TriggerCompleteForm, guard(checkCompleteForm)).
			PermitIf(domainwf.TriggerSubmit, domainwf.StateSubmitted, guard(checkSubmit)).
			PermitIf(domainwf.TriggerCancel, domainwf.StateCancelled, guard(checkRequesterWithdraw))
	}

	builder.Configure(domainwf.StateReturned).
		PermitIf(domainwf.TriggerReturnToDraft, domainwf.StateDraft, guard(checkRequesterWithdraw))

	builder.Configure(domainwf.StateSubmitted).
		PermitIf(domainwf.TriggerAssignOrganizer, domainwf.StatePendingOrganization, guard(checkAssign)).
		PermitIf(domainwf.TriggerReturn, domainwf.StateReturned, guard(checkReturn)).
		PermitIf(domainwf.TriggerReject, domainwf.StateRejected, guard(checkReject)).
		PermitIf(domainwf.TriggerCancel, domainwf.StateCancelled, guard(checkRequesterWithdraw)).
		PermitIf(domainwf.TriggerReturnToDraft, domainwf.StateDraft, guard(checkRequesterWithdraw))

	builder.Configure(domainwf.StatePendingOrganization).
		PermitIf(domainwf.TriggerConfirmPlan, domainwf.StateOrganizationDone, guard(checkConfirmPlan))

	// The no-expenses branch is tried first and falls through otherwise
	for _, s := range []domainwf.State{domainwf.StateOrganizationDone, domainwf.StateExpenseReturned} {
		builder.Configure(s).
			PermitIf(domainwf.TriggerSubmitExpenses, domainwf.StateCompleted, guard(checkNoExpenses)).
			PermitIf(domainwf.TriggerSubmitExpenses, domainwf.StateExpenseSubmitted, guard(checkSubmitExpenses))
	}

	builder.Configure(domainwf.StateExpenseSubmitted).
		PermitIf(domainwf.TriggerApproveExpenses, domainwf.StateCompleted, guard(checkReviewExpenses)).
		PermitIf(domainwf.TriggerReturnExpenses, domainwf.StateExpenseReturned, guard(checkReturnExpenses)).
		PermitIf(domainwf.TriggerUndoExpenseRecall, domainwf.StateOrganizationDone, guard(checkUndoRecall))

	builder.Configure(domainwf.StateCompleted).
		PermitIf(domainwf.TriggerUndoExpenseApproval, domainwf.StateExpenseSubmitted, guard(checkUndoApproval))

	// REJECTED and CANCELLED are terminal states - no outgoing transitions

	return builder
}

func requireRequester(cc *commandContext) error {
	if !cc.isRequester() {
		return domainwf.PermissionDenied(cc.trigger, "only the requester may do this")
	}
	return nil
}

// checkApprover accepts managerID only when it names a known travel approver or admin.
// A requester who is an approver may name themselves; management then needs the acting flag.
func checkApprover(trigger domainwf.Trigger, managerID string, user *entity.User) error {
	if user == nil || user.ID != managerID || !access.EligibleApprover(user) {
		return domainwf.Validation(trigger, "managerId")
	}
	return nil
}

func checkEditDetails(cc *commandContext) error {
	if err := requireRequester(cc); err != nil {
		return err
	}
	if in, ok := cc.payload.(UpdateDetailsInput); ok && in.ManagerID != nil && *in.ManagerID != "" {
		return checkApprover(cc.trigger, *in.ManagerID, cc.manager)
	}
	return nil
}

func checkCompleteForm(cc *commandContext) error {
	if err := requireRequester(cc); err != nil {
		return err
	}
	if missing := cc.trip.Details.MissingFields(); len(missing) > 0 {
		return domainwf.Validation(cc.trigger, missing...)
	}
	return nil
}

func checkSubmit(cc *commandContext) error {
	if err := checkCompleteForm(cc); err != nil {
		return err
	}
	switch {
	case cc.trip.ManagerID != "":
		return checkApprover(cc.trigger, cc.trip.ManagerID, cc.manager)
	case cc.defaultApprover == nil:
		return domainwf.Validation(cc.trigger, "managerId")
	default:
		return checkApprover(cc.trigger, cc.defaultApprover.ID, cc.defaultApprover)
	}
}

// checkRequesterWithdraw guards Cancel and ReturnToDraft
func checkRequesterWithdraw(cc *commandContext) error {
	if err := requireRequester(cc); err != nil {
		return err
	}
	if cc.trip.ActionedByManager() {
		return domainwf.InvalidTransition(cc.trigger, cc.trip.State, "the travel approver already acted on this request")
	}
	return nil
}

func requireManager(cc *commandContext) error {
	if !cc.caps.CanManageRequest() {
		return domainwf.PermissionDenied(cc.trigger, "only the travel approver or an admin may do this")
	}
	return nil
}

func checkAssign(cc *commandContext) error {
	if err := requireManager(cc); err != nil {
		return err
	}

	in, _ := cc.payload.(AssignInput)
	if in.OrganizerID == cc.trip.RequesterID && !cc.acting {
		return domainwf.PermissionDenied(cc.trigger, "the requester cannot organize their own trip")
	}
	if !in.Budget.IsPositive() {
		return domainwf.Budget(cc.trigger, "approved budget must be positive")
	}
	if in.OrganizerID == "" || cc.organizer == nil {
		return domainwf.Validation(cc.trigger, "organizerId")
	}
	return nil
}

func checkReturn(cc *commandContext) error {
	if err := requireManager(cc); err != nil {
		return err
	}
	in, _ := cc.payload.(ReturnInput)
	if in.Comments == "" {
		return domainwf.Validation(cc.trigger, "comments")
	}
	return nil
}

func checkReject(cc *commandContext) error {
	if err := requireManager(cc); err != nil {
		return err
	}
	if cc.isRequester() {
		return domainwf.PermissionDenied(cc.trigger, "the requester cannot reject their own trip")
	}
	in, _ := cc.payload.(RejectInput)
	if !in.Reason.IsValid() {
		return domainwf.Validation(cc.trigger, "reason")
	}
	return nil
}

func checkConfirmPlan(cc *commandContext) error {
	if !cc.caps.CanOrganize() {
		return domainwf.PermissionDenied(cc.trigger, "only the organizer or an admin may confirm the plan")
	}

	in, _ := cc.payload.(ConfirmPlanInput)
	if in.PlanDetail == "" && len(in.LineItems) == 0 {
		return domainwf.Validation(cc.trigger, "planDetail")
	}
	if !plannedCost(cc.ledger, in).IsPositive() {
		return domainwf.Budget(cc.trigger, "planned cost must be positive")
	}
	return nil
}

func plannedCost(ledger *budget.Ledger, in ConfirmPlanInput) decimal.Decimal {
	manual := in.ManualOverride || len(in.LineItems) == 0
	return ledger.ComputePlannedCost(in.LineItems, manual, in.PlannedCost)
}

func isNoExpenses(in SubmitExpensesInput) bool {
	return in.HasNoExpenses || in.Amount.IsZero()
}

func checkNoExpenses(cc *commandContext) error {
	if err := requireRequester(cc); err != nil {
		return err
	}
	in, _ := cc.payload.(SubmitExpensesInput)
	if in.HasNoExpenses && !in.Amount.IsZero() {
		return domainwf.Validation(cc.trigger, "amount")
	}
	if !isNoExpenses(in) {
		return domainwf.ErrGuardFailed
	}
	return nil
}

func checkSubmitExpenses(cc *commandContext) error {
	if err := requireRequester(cc); err != nil {
		return err
	}
	in, _ := cc.payload.(SubmitExpensesInput)
	if !in.Amount.IsPositive() {
		return domainwf.Budget(cc.trigger, "expense amount must be positive")
	}
	return nil
}

func requireExpenseReviewer(cc *commandContext) error {
	if !cc.caps.CanReviewExpenses() {
		return domainwf.PermissionDenied(cc.trigger, "only the organizer, finance or an admin may review expenses")
	}
	if cc.isRequester() {
		return domainwf.PermissionDenied(cc.trigger, "the requester cannot review their own expenses")
	}
	return nil
}

func checkReviewExpenses(cc *commandContext) error {
	return requireExpenseReviewer(cc)
}

func checkReturnExpenses(cc *commandContext) error {
	if err := requireExpenseReviewer(cc); err != nil {
		return err
	}
	in, _ := cc.payload.(ReturnInput)
	if in.Comments == "" {
		return domainwf.Validation(cc.trigger, "comments")
	}
	return nil
}

func checkUndoRecall(cc *commandContext) error {
	if err := requireRequester(cc); err != nil {
		return err
	}
	if cc.trip.ExpenseApprovedAt != nil {
		return domainwf.InvalidTransition(cc.trigger, cc.trip.State, "expenses were already reviewed")
	}
	return nil
}

func checkUndoApproval(cc *commandContext) error {
	if !cc.caps.CanReopenApproval() {
		return domainwf.PermissionDenied(cc.trigger, "only finance or an admin may reopen an approval")
	}
	if cc.isRequester() {
		return domainwf.PermissionDenied(cc.trigger, "the requester cannot reopen their own approval")
	}

	approvedAt := cc.trip.ExpenseApprovedAt
	if approvedAt == nil {
		return domainwf.InvalidTransition(cc.trigger, cc.trip.State, "the trip has no expense approval to undo")
	}
	if cc.undoDaysLimit > 0 {
		deadline := approvedAt.Add(time.Duration(cc.undoDaysLimit) * 24 * time.Hour)
		if cc.now.After(deadline) {
			return domainwf.InvalidTransition(cc.trigger, cc.trip.State,
				fmt.Sprintf("approvals can only be undone within %d days", cc.undoDaysLimit))
		}
	}
	return nil
}
