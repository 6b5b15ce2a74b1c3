package entity

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/garyjia/trip-approval/internal/domain/workflow"
)

// TripRequest tracks an employee's travel request from draft to financial close
type TripRequest struct {
	ID          int64  `json:"id"`
	RequesterID string `json:"requester_id"`
	ManagerID   string `json:"manager_id,omitempty"`
	OrganizerID string `json:"organizer_id,omitempty"`

	State     workflow.State     `json:"state"`
	FormState workflow.FormState `json:"form_state"`

	Details TripDetails `json:"details"`

	// Set by the manager together with OrganizerID
	ApprovedBudget  decimal.Decimal `json:"approved_budget"`
	ManagerComments string          `json:"manager_comments,omitempty"`
	InternalNotes   string          `json:"internal_notes,omitempty"`
	ReturnComments  string          `json:"return_comments,omitempty"`

	// Set by the organizer at plan confirmation
	PlanDetail         string          `json:"plan_detail,omitempty"`
	LineItems          []PlanLineItem  `json:"line_items,omitempty"`
	ManualCostOverride bool            `json:"manual_cost_override"`
	ManualPlannedCost  decimal.Decimal `json:"manual_planned_cost"`
	PlannedCost        decimal.Decimal `json:"planned_cost"`

	// Set by the requester at expense submission
	ActualExpenseTotal    decimal.Decimal `json:"actual_expense_total"`
	HasNoExpenses         bool            `json:"has_no_expenses"`
	ExpenseComments       string          `json:"expense_comments,omitempty"`
	ExpenseReturnComments string          `json:"expense_return_comments,omitempty"`

	// FinalTotalCost is nil until the expenses are approved
	FinalTotalCost    *decimal.Decimal `json:"final_total_cost,omitempty"`
	ExpenseApprovedBy string           `json:"expense_approved_by,omitempty"`

	// Derived by the budget ledger, empty while no budget is approved
	BudgetStatus     BudgetStatus    `json:"budget_status,omitempty"`
	BudgetDifference decimal.Decimal `json:"budget_difference"`

	RejectionReason   RejectionReason `json:"rejection_reason,omitempty"`
	RejectionComments string          `json:"rejection_comments,omitempty"`
	CancelledBy       string          `json:"cancelled_by,omitempty"`

	SubmittedAt          *time.Time `json:"submitted_at,omitempty"`
	ManagerApprovedAt    *time.Time `json:"manager_approved_at,omitempty"`
	ReturnedAt           *time.Time `json:"returned_at,omitempty"`
	OrganizerConfirmedAt *time.Time `json:"organizer_confirmed_at,omitempty"`
	ExpenseSubmittedAt   *time.Time `json:"expense_submitted_at,omitempty"`
	ExpenseApprovedAt    *time.Time `json:"expense_approved_at,omitempty"`
	CancelledAt          *time.Time `json:"cancelled_at,omitempty"`
	RejectedAt           *time.Time `json:"rejected_at,omitempty"`
	LastReminderAt       *time.Time `json:"last_reminder_at,omitempty"`

	// Version is bumped by the store on every write
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TripDetails holds the fields the requester fills in before submitting
type TripDetails struct {
	Destination        string     `json:"destination"`
	Purpose            string     `json:"purpose"`
	StartDate          *time.Time `json:"start_date,omitempty"`
	EndDate            *time.Time `json:"end_date,omitempty"`
	DurationType       string     `json:"duration_type"`
	ApprovingColleague string     `json:"approving_colleague"`

	NeedsAccommodation  bool       `json:"needs_accommodation"`
	AccommodationPeople int        `json:"accommodation_people,omitempty"`
	AccommodationCity   string     `json:"accommodation_city,omitempty"`
	CheckInDate         *time.Time `json:"check_in_date,omitempty"`
	CheckOutDate        *time.Time `json:"check_out_date,omitempty"`
}

// PlanLineItem is one costed entry of the organizer's plan
type PlanLineItem struct {
	ItemType    string          `json:"item_type"`
	Description string          `json:"description"`
	PlannedCost decimal.Decimal `json:"planned_cost"`
}

// MissingFields returns the names of required detail fields that are absent or
// inconsistent, in a stable order for the UI to highlight.
func (d TripDetails) MissingFields() []string {
	var missing []string
	if d.Destination == "" {
		missing = append(missing, "destination")
	}
	if d.Purpose == "" {
		missing = append(missing, "purpose")
	}
	if d.StartDate == nil {
		missing = append(missing, "startDate")
	}
	if d.EndDate == nil {
		missing = append(missing, "endDate")
	} else if d.StartDate != nil && d.EndDate.Before(*d.StartDate) {
		missing = append(missing, "endDate")
	}
	if d.DurationType == "" {
		missing = append(missing, "durationType")
	}
	if d.ApprovingColleague == "" {
		missing = append(missing, "approvingColleague")
	}

	if d.NeedsAccommodation {
		if d.AccommodationPeople <= 0 {
			missing = append(missing, "accommodationPeople")
		}
		if d.AccommodationCity == "" {
			missing = append(missing, "accommodationCity")
		}
		if d.CheckInDate == nil {
			missing = append(missing, "checkInDate")
		}
		if d.CheckOutDate == nil {
			missing = append(missing, "checkOutDate")
		} else if d.CheckInDate != nil && d.CheckOutDate.Before(*d.CheckInDate) {
			missing = append(missing, "checkOutDate")
		}
	}

	return missing
}

// ActionedByManager reports whether the travel approver already acted on the request
func (t *TripRequest) ActionedByManager() bool {
	return t.ManagerApprovedAt != nil || t.OrganizerID != ""
}

// Clone returns a deep copy so a mutation can be discarded without touching the original
func (t *TripRequest) Clone() *TripRequest {
	if t == nil {
		return nil
	}

	c := *t
	c.Details = t.Details.clone()
	if t.LineItems != nil {
		c.LineItems = append([]PlanLineItem(nil), t.LineItems...)
	}
	if t.FinalTotalCost != nil {
		v := *t.FinalTotalCost
		c.FinalTotalCost = &v
	}

	c.SubmittedAt = cloneTime(t.SubmittedAt)
	c.ManagerApprovedAt = cloneTime(t.ManagerApprovedAt)
	c.ReturnedAt = cloneTime(t.ReturnedAt)
	c.OrganizerConfirmedAt = cloneTime(t.OrganizerConfirmedAt)
	c.ExpenseSubmittedAt = cloneTime(t.ExpenseSubmittedAt)
	c.ExpenseApprovedAt = cloneTime(t.ExpenseApprovedAt)
	c.CancelledAt = cloneTime(t.CancelledAt)
	c.RejectedAt = cloneTime(t.RejectedAt)
	c.LastReminderAt = cloneTime(t.LastReminderAt)

	return &c
}

func (d TripDetails) clone() TripDetails {
	c := d
	c.StartDate = cloneTime(d.StartDate)
	c.EndDate = cloneTime(d.EndDate)
	c.CheckInDate = cloneTime(d.CheckInDate)
	c.CheckOutDate = cloneTime(d.CheckOutDate)
	return c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
