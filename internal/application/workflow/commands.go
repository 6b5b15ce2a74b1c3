package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/garyjia/trip-approval/internal/application/port"
	"github.com/garyjia/trip-approval/internal/domain/entity"
	"github.com/garyjia/trip-approval/internal/domain/event"
	domainwf "github.com/garyjia/trip-approval/internal/domain/workflow"
)

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func tripLabel(t *entity.TripRequest) string {
	if t.Details.Destination == "" {
		return fmt.Sprintf("#%d", t.ID)
	}
	return fmt.Sprintf("#%d to %s", t.ID, t.Details.Destination)
}

func withComments(body, comments string) string {
	if comments == "" {
		return body
	}
	return body + " Comments: " + comments
}

// budgetHolders lists the trip's manager and organizer once each
func budgetHolders(t *entity.TripRequest) []string {
	var ids []string
	for _, id := range []string{t.ManagerID, t.OrganizerID} {
		if id != "" && (len(ids) == 0 || ids[0] != id) {
			ids = append(ids, id)
		}
	}
	return ids
}

// budgetOutcome summarizes a closed trip's cost against its approved budget
func budgetOutcome(t *entity.TripRequest) string {
	final := decimal.Zero
	if t.FinalTotalCost != nil {
		final = *t.FinalTotalCost
	}
	body := fmt.Sprintf("Trip %s closed at a total cost of %s against a budget of %s",
		tripLabel(t), money(final), money(t.ApprovedBudget))

	switch t.BudgetStatus {
	case entity.BudgetUnder:
		return body + fmt.Sprintf(", %s under budget.", money(t.BudgetDifference.Abs()))
	case entity.BudgetOver:
		return body + fmt.Sprintf(", %s over budget.", money(t.BudgetDifference.Abs()))
	case entity.BudgetOn:
		return body + ", on budget."
	default:
		return body + "."
	}
}

// closingNotices tells the budget holders how the trip ended
func closingNotices(after *entity.TripRequest) []notice {
	holders := budgetHolders(after)
	if len(holders) == 0 {
		return nil
	}
	return []notice{{restricted: true, body: budgetOutcome(after), recipients: holders}}
}

// CreateTrip stores a new draft owned by the actor
func (w *tripWorkflow) CreateTrip(ctx context.Context, actor Actor, in CreateTripInput) (*entity.TripRequest, error) {
	user, err := w.resolveActor(ctx, "", actor.ID)
	if err != nil {
		return nil, err
	}
	if in.ManagerID != "" {
		manager, err := w.lookupUser(ctx, in.ManagerID)
		if err != nil {
			return nil, err
		}
		if err := checkApprover("", in.ManagerID, manager); err != nil {
			w.logger.Info("Trip creation rejected", "actor_id", user.ID, "manager_id", in.ManagerID, "error", err)
			return nil, err
		}
	}

	now := w.clock.Now()
	trip := &entity.TripRequest{
		RequesterID: user.ID,
		ManagerID:   in.ManagerID,
		State:       domainwf.StateDraft,
		FormState:   domainwf.FormAwaitingCompletion,
		Details:     in.Details,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = w.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := w.trips.Create(txCtx, trip); err != nil {
			return fmt.Errorf("failed to create trip: %w", err)
		}
		return w.history.Create(txCtx, &entity.TransitionHistory{
			TripID:    trip.ID,
			ActorID:   user.ID,
			Command:   CommandCreate,
			NewState:  trip.State.String(),
			Timestamp: now,
		})
	})
	if err != nil {
		w.logger.Error("Failed to create trip", "actor_id", user.ID, "error", err)
		return nil, err
	}

	w.logger.Info("Trip created", "trip_id", trip.ID, "requester_id", user.ID)
	if w.dispatcher != nil {
		w.dispatcher.DispatchAsync(ctx, event.NewEvent(event.TypeTripCreated, trip.ID, map[string]interface{}{
			event.KeyActorID: user.ID,
			event.KeyToState: trip.State.String(),
		}))
	}
	return trip, nil
}

// UpdateDetails replaces the request details while the trip is editable
func (w *tripWorkflow) UpdateDetails(ctx context.Context, tripID int64, actor Actor, in UpdateDetailsInput) (*entity.TripRequest, error) {
	return w.execute(ctx, command{
		trigger: domainwf.TriggerUpdateDetails,
		tripID:  tripID,
		actor:   actor,
		payload: in,
		prepare: func(ctx context.Context, cc *commandContext) error {
			if in.ManagerID == nil || *in.ManagerID == "" {
				return nil
			}
			manager, err := w.lookupUser(ctx, *in.ManagerID)
			cc.manager = manager
			return err
		},
		mutate: func(cc *commandContext, trip *entity.TripRequest) {
			trip.Details = in.Details
			if in.ManagerID != nil {
				trip.ManagerID = *in.ManagerID
			}
			if len(trip.Details.MissingFields()) > 0 {
				trip.FormState = domainwf.FormAwaitingCompletion
			}
		},
	})
}

// CompleteForm marks the detail form as filled in
func (w *tripWorkflow) CompleteForm(ctx context.Context, tripID int64, actor Actor) (*entity.TripRequest, error) {
	return w.execute(ctx, command{
		trigger: domainwf.TriggerCompleteForm,
		tripID:  tripID,
		actor:   actor,
		mutate: func(cc *commandContext, trip *entity.TripRequest) {
			trip.FormState = domainwf.FormCompleted
		},
	})
}

// Submit sends the request to its travel approver
func (w *tripWorkflow) Submit(ctx context.Context, tripID int64, actor Actor) (*entity.TripRequest, error) {
	return w.execute(ctx, command{
		trigger: domainwf.TriggerSubmit,
		tripID:  tripID,
		actor:   actor,
		prepare: func(ctx context.Context, cc *commandContext) error {
			approver, err := w.users.DefaultTravelApprover(ctx)
			if err != nil && !errors.Is(err, port.ErrUserNotFound) {
				return fmt.Errorf("lookup travel approver: %w", err)
			}
			cc.defaultApprover = approver

			// the guard re-checks this id against the trip read inside the update
			current, err := w.trips.Get(ctx, tripID)
			if errors.Is(err, port.ErrTripNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			if current.ManagerID != "" {
				cc.manager, err = w.lookupUser(ctx, current.ManagerID)
			}
			return err
		},
		mutate: func(cc *commandContext, trip *entity.TripRequest) {
			if trip.ManagerID == "" {
				trip.ManagerID = cc.defaultApprover.ID
			}
			trip.FormState = domainwf.FormCompleted
			trip.SubmittedAt = &cc.now
		},
		notify: func(cc *commandContext, before, after *entity.TripRequest) []notice {
			return []notice{
				{body: fmt.Sprintf("Your trip request %s was submitted for approval.", tripLabel(after))},
				{
					restricted: true,
					body:       fmt.Sprintf("Trip request %s from %s awaits your approval.", tripLabel(after), cc.actor.DisplayName()),
					recipients: []string{after.ManagerID},
				},
			}
		},
	})
}

// AssignOrganizerAndBudget approves the request with a budget and hands it to an organizer
func (w *tripWorkflow) AssignOrganizerAndBudget(ctx context.Context, tripID int64, actor Actor, in AssignInput) (*entity.TripRequest, error) {
	return w.execute(ctx, command{
		trigger: domainwf.TriggerAssignOrganizer,
		tripID:  tripID,
		actor:   actor,
		payload: in,
		prepare: func(ctx context.Context, cc *commandContext) error {
			if in.OrganizerID == "" {
				return nil
			}
			organizer, err := w.lookupUser(ctx, in.OrganizerID)
			cc.organizer = organizer
			return err
		},
		mutate: func(cc *commandContext, trip *entity.TripRequest) {
			trip.OrganizerID = in.OrganizerID
			trip.ApprovedBudget = in.Budget
			trip.ManagerComments = in.Comments
			trip.InternalNotes = in.InternalNotes
			trip.ManagerApprovedAt = &cc.now
		},
		notify: func(cc *commandContext, before, after *entity.TripRequest) []notice {
			internal := fmt.Sprintf("Trip %s approved with a budget of %s. %s organizes the trip.",
				tripLabel(after), money(after.ApprovedBudget), cc.organizer.DisplayName())
			if after.InternalNotes != "" {
				internal += " Notes: " + after.InternalNotes
			}
			return []notice{
				{body: withComments(fmt.Sprintf("Your trip request %s was approved. %s will organize it.",
					tripLabel(after), cc.organizer.DisplayName()), after.ManagerComments)},
				{restricted: true, body: internal},
			}
		},
	})
}

// Return sends the request back to the requester for revision
func (w *tripWorkflow) Return(ctx context.Context, tripID int64, actor Actor, in ReturnInput) (*entity.TripRequest, error) {
	return w.execute(ctx, command{
		trigger: domainwf.TriggerReturn,
		tripID:  tripID,
		actor:   actor,
		payload: in,
		mutate: func(cc *commandContext, trip *entity.TripRequest) {
			trip.ReturnComments = in.Comments
			trip.ReturnedAt = &cc.now
		},
		note: func(before, after *entity.TripRequest) string {
			return in.Comments
		},
		notify: func(cc *commandContext, before, after *entity.TripRequest) []notice {
			return []notice{
				{body: withComments(fmt.Sprintf("Your trip request %s was returned for revision.", tripLabel(after)), in.Comments)},
			}
		},
	})
}

// Reject closes the request with a reason
func (w *tripWorkflow) Reject(ctx context.Context, tripID int64, actor Actor, in RejectInput) (*entity.TripRequest, error) {
	return w.execute(ctx, command{
		trigger: domainwf.TriggerReject,
		tripID:  tripID,
		actor:   actor,
		payload: in,
		mutate: func(cc *commandContext, trip *entity.TripRequest) {
			trip.RejectionReason = in.Reason
			trip.RejectionComments = in.Comments
			trip.RejectedAt = &cc.now
		},
		note: func(before, after *entity.TripRequest) string {
			return string(in.Reason)
		},
		notify: func(cc *commandContext, before, after *entity.TripRequest) []notice {
			return []notice{
				{body: withComments(fmt.Sprintf("Your trip request %s was rejected (%s).", tripLabel(after), in.Reason), in.Comments)},
			}
		},
	})
}

// Cancel withdraws the request before the travel approver acted on it
func (w *tripWorkflow) Cancel(ctx context.Context, tripID int64, actor Actor) (*entity.TripRequest, error) {
	return w.execute(ctx, command{
		trigger: domainwf.TriggerCancel,
		tripID:  tripID,
		actor:   actor,
		mutate: func(cc *commandContext, trip *entity.TripRequest) {
			trip.CancelledAt = &cc.now
			trip.CancelledBy = cc.actor.ID
			trip.FormState = domainwf.FormCancelled
		},
		notify: func(cc *commandContext, before, after *entity.TripRequest) []notice {
			return []notice{
				{restricted: true, body: fmt.Sprintf("Trip request %s was cancelled by %s.", tripLabel(after), cc.actor.DisplayName())},
			}
		},
	})
}

// ReturnToDraft pulls a request back for editing and clears its approval data
func (w *tripWorkflow) ReturnToDraft(ctx context.Context, tripID int64, actor Actor) (*entity.TripRequest, error) {
	return w.execute(ctx, command{
		trigger: domainwf.TriggerReturnToDraft,
		tripID:  tripID,
		actor:   actor,
		mutate: func(cc *commandContext, trip *entity.TripRequest) {
			trip.ManagerID = ""
			trip.SubmittedAt = nil
			trip.ManagerApprovedAt = nil
			trip.ManagerComments = ""
			trip.ExpenseReturnComments = ""
			trip.RejectionReason = ""
			trip.RejectionComments = ""
			trip.RejectedAt = nil
			trip.FormState = domainwf.FormAwaitingCompletion
		},
		notify: func(cc *commandContext, before, after *entity.TripRequest) []notice {
			if before.ManagerID == "" {
				return nil
			}
			return []notice{
				{
					restricted: true,
					body:       fmt.Sprintf("Trip request %s was withdrawn to draft by %s.", tripLabel(after), cc.actor.DisplayName()),
					recipients: []string{before.ManagerID},
				},
			}
		},
	})
}

// ConfirmPlan records the organizer's plan and its planned cost
func (w *tripWorkflow) ConfirmPlan(ctx context.Context, tripID int64, actor Actor, in ConfirmPlanInput) (*entity.TripRequest, error) {
	return w.execute(ctx, command{
		trigger: domainwf.TriggerConfirmPlan,
		tripID:  tripID,
		actor:   actor,
		payload: in,
		mutate: func(cc *commandContext, trip *entity.TripRequest) {
			trip.PlanDetail = in.PlanDetail
			trip.LineItems = append([]entity.PlanLineItem(nil), in.LineItems...)
			trip.ManualCostOverride = in.ManualOverride || len(in.LineItems) == 0
			trip.ManualPlannedCost = in.PlannedCost
			trip.PlannedCost = plannedCost(cc.ledger, in)
			trip.OrganizerConfirmedAt = &cc.now
		},
		notify: func(cc *commandContext, before, after *entity.TripRequest) []notice {
			return []notice{
				{body: fmt.Sprintf("The plan for trip %s is confirmed. Submit your expenses after travelling, or declare that you had none.", tripLabel(after))},
				{restricted: true, body: fmt.Sprintf("Plan for trip %s confirmed with a planned cost of %s (budget %s).",
					tripLabel(after), money(after.PlannedCost), money(after.ApprovedBudget))},
			}
		},
	})
}

// SubmitExpenses records the requester's actual expenses.
// A declaration of no expenses, or a zero amount, closes the trip directly.
func (w *tripWorkflow) SubmitExpenses(ctx context.Context, tripID int64, actor Actor, in SubmitExpensesInput) (*entity.TripRequest, error) {
	return w.execute(ctx, command{
		trigger: domainwf.TriggerSubmitExpenses,
		tripID:  tripID,
		actor:   actor,
		payload: in,
		mutate: func(cc *commandContext, trip *entity.TripRequest) {
			trip.ExpenseComments = in.Comments
			trip.ExpenseSubmittedAt = &cc.now

			if trip.State == domainwf.StateCompleted {
				final := cc.ledger.ComputeFinalCost(trip.PlannedCost, decimal.Zero)
				trip.ActualExpenseTotal = decimal.Zero
				trip.HasNoExpenses = true
				trip.FinalTotalCost = &final
				trip.ExpenseApprovedAt = &cc.now
				trip.ExpenseApprovedBy = cc.actor.ID
				return
			}
			trip.ActualExpenseTotal = in.Amount
			trip.HasNoExpenses = false
		},
		notify: func(cc *commandContext, before, after *entity.TripRequest) []notice {
			if after.State == domainwf.StateCompleted {
				return append([]notice{
					{body: fmt.Sprintf("Trip %s was closed with no expenses.", tripLabel(after))},
				}, closingNotices(after)...)
			}
			return []notice{
				{restricted: true, body: fmt.Sprintf("Expenses of %s were submitted for trip %s and await review.",
					money(after.ActualExpenseTotal), tripLabel(after))},
			}
		},
	})
}

// ApproveExpenses accepts the submitted expenses and fixes the final cost
func (w *tripWorkflow) ApproveExpenses(ctx context.Context, tripID int64, actor Actor) (*entity.TripRequest, error) {
	return w.execute(ctx, command{
		trigger: domainwf.TriggerApproveExpenses,
		tripID:  tripID,
		actor:   actor,
		mutate: func(cc *commandContext, trip *entity.TripRequest) {
			final := cc.ledger.ComputeFinalCost(trip.PlannedCost, trip.ActualExpenseTotal)
			trip.FinalTotalCost = &final
			trip.ExpenseApprovedAt = &cc.now
			trip.ExpenseApprovedBy = cc.actor.ID
			trip.ExpenseReturnComments = ""
		},
		notify: func(cc *commandContext, before, after *entity.TripRequest) []notice {
			return append([]notice{
				{body: fmt.Sprintf("Your expenses for trip %s were approved. The trip is closed.", tripLabel(after))},
			}, closingNotices(after)...)
		},
	})
}

// ReturnExpenses sends the expenses back to the requester for correction
func (w *tripWorkflow) ReturnExpenses(ctx context.Context, tripID int64, actor Actor, in ReturnInput) (*entity.TripRequest, error) {
	return w.execute(ctx, command{
		trigger: domainwf.TriggerReturnExpenses,
		tripID:  tripID,
		actor:   actor,
		payload: in,
		mutate: func(cc *commandContext, trip *entity.TripRequest) {
			trip.ExpenseReturnComments = in.Comments
		},
		note: func(before, after *entity.TripRequest) string {
			return in.Comments
		},
		notify: func(cc *commandContext, before, after *entity.TripRequest) []notice {
			return []notice{
				{body: withComments(fmt.Sprintf("Your expenses for trip %s were returned for correction.", tripLabel(after)), in.Comments)},
			}
		},
	})
}

// UndoExpenseRecall lets the requester take back submitted expenses before review
func (w *tripWorkflow) UndoExpenseRecall(ctx context.Context, tripID int64, actor Actor) (*entity.TripRequest, error) {
	return w.execute(ctx, command{
		trigger: domainwf.TriggerUndoExpenseRecall,
		tripID:  tripID,
		actor:   actor,
		mutate: func(cc *commandContext, trip *entity.TripRequest) {
			trip.ExpenseSubmittedAt = nil
		},
		notify: func(cc *commandContext, before, after *entity.TripRequest) []notice {
			return []notice{
				{restricted: true, body: fmt.Sprintf("%s recalled the expenses of trip %s.", cc.actor.DisplayName(), tripLabel(after))},
			}
		},
	})
}

// UndoExpenseApproval reopens an approved trip for expense review
func (w *tripWorkflow) UndoExpenseApproval(ctx context.Context, tripID int64, actor Actor) (*entity.TripRequest, error) {
	return w.execute(ctx, command{
		trigger: domainwf.TriggerUndoExpenseApproval,
		tripID:  tripID,
		actor:   actor,
		mutate: func(cc *commandContext, trip *entity.TripRequest) {
			trip.FinalTotalCost = nil
			trip.ExpenseApprovedAt = nil
			trip.ExpenseApprovedBy = ""
		},
		note: func(before, after *entity.TripRequest) string {
			if before.FinalTotalCost == nil {
				return ""
			}
			return "reverted final cost " + money(*before.FinalTotalCost)
		},
		notify: func(cc *commandContext, before, after *entity.TripRequest) []notice {
			return []notice{
				{body: fmt.Sprintf("The expense approval of trip %s was reopened by %s.", tripLabel(after), cc.actor.DisplayName())},
			}
		},
	})
}
