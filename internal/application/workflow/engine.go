package workflow

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/garyjia/trip-approval/internal/domain/entity"
	domainwf "github.com/garyjia/trip-approval/internal/domain/workflow"
)

// Actor identifies who issues a command.
// ActingAsAssignee lets a requester who is also the assigned manager or
// organizer perform management actions on their own trip.
type Actor struct {
	ID               string
	ActingAsAssignee bool
}

// CreateTripInput is the payload of CreateTrip
type CreateTripInput struct {
	ManagerID string
	Details   entity.TripDetails
}

// UpdateDetailsInput is the payload of UpdateDetails.
// A nil ManagerID keeps the current travel approver.
type UpdateDetailsInput struct {
	ManagerID *string
	Details   entity.TripDetails
}

// AssignInput is the payload of AssignOrganizerAndBudget
type AssignInput struct {
	OrganizerID   string
	Budget        decimal.Decimal
	Comments      string
	InternalNotes string
}

// ReturnInput is the payload of Return and ReturnExpenses
type ReturnInput struct {
	Comments string
}

// RejectInput is the payload of Reject
type RejectInput struct {
	Reason   entity.RejectionReason
	Comments string
}

// ConfirmPlanInput is the payload of ConfirmPlan.
// PlannedCost is used when ManualOverride is set or no line items are given.
type ConfirmPlanInput struct {
	PlanDetail     string
	LineItems      []entity.PlanLineItem
	ManualOverride bool
	PlannedCost    decimal.Decimal
}

// SubmitExpensesInput is the payload of SubmitExpenses
type SubmitExpensesInput struct {
	Amount        decimal.Decimal
	HasNoExpenses bool
	AttachmentIDs []string
	Comments      string
}

// TripWorkflow is the command API of the trip approval state machine.
// Every command either applies completely or returns an error and leaves the trip unchanged.
// Expected failures are *domainwf.Error values; match them with errors.Is on the domainwf sentinels.
type TripWorkflow interface {
	CreateTrip(ctx context.Context, actor Actor, in CreateTripInput) (*entity.TripRequest, error)
	UpdateDetails(ctx context.Context, tripID int64, actor Actor, in UpdateDetailsInput) (*entity.TripRequest, error)
	CompleteForm(ctx context.Context, tripID int64, actor Actor) (*entity.TripRequest, error)

	Submit(ctx context.Context, tripID int64, actor Actor) (*entity.TripRequest, error)
	AssignOrganizerAndBudget(ctx context.Context, tripID int64, actor Actor, in AssignInput) (*entity.TripRequest, error)
	Return(ctx context.Context, tripID int64, actor Actor, in ReturnInput) (*entity.TripRequest, error)
	Reject(ctx context.Context, tripID int64, actor Actor, in RejectInput) (*entity.TripRequest, error)
	Cancel(ctx context.Context, tripID int64, actor Actor) (*entity.TripRequest, error)
	ReturnToDraft(ctx context.Context, tripID int64, actor Actor) (*entity.TripRequest, error)

	ConfirmPlan(ctx context.Context, tripID int64, actor Actor, in ConfirmPlanInput) (*entity.TripRequest, error)

	SubmitExpenses(ctx context.Context, tripID int64, actor Actor, in SubmitExpensesInput) (*entity.TripRequest, error)
	ApproveExpenses(ctx context.Context, tripID int64, actor Actor) (*entity.TripRequest, error)
	ReturnExpenses(ctx context.Context, tripID int64, actor Actor, in ReturnInput) (*entity.TripRequest, error)
	UndoExpenseRecall(ctx context.Context, tripID int64, actor Actor) (*entity.TripRequest, error)
	UndoExpenseApproval(ctx context.Context, tripID int64, actor Actor) (*entity.TripRequest, error)

	// AvailableCommands returns the commands actor may attempt on the trip right now.
	// Payload checks are not applied.
	AvailableCommands(ctx context.Context, tripID int64, actor Actor) ([]domainwf.Trigger, error)
}
