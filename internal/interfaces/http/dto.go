package http

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	appwf "github.com/garyjia/trip-approval/internal/application/workflow"
	"github.com/garyjia/trip-approval/internal/domain/entity"
	domainwf "github.com/garyjia/trip-approval/internal/domain/workflow"
)

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	// Kind is the workflow error kind when Success is false
	Kind          string   `json:"kind,omitempty"`
	MissingFields []string `json:"missing_fields,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// DetailsRequest carries the editable trip details. Dates accept YYYY-MM-DD or RFC 3339.
type DetailsRequest struct {
	Destination        string `json:"destination"`
	Purpose            string `json:"purpose"`
	StartDate          string `json:"start_date"`
	EndDate            string `json:"end_date"`
	DurationType       string `json:"duration_type"`
	ApprovingColleague string `json:"approving_colleague"`

	NeedsAccommodation  bool   `json:"needs_accommodation"`
	AccommodationPeople int    `json:"accommodation_people"`
	AccommodationCity   string `json:"accommodation_city"`
	CheckInDate         string `json:"check_in_date"`
	CheckOutDate        string `json:"check_out_date"`
}

// CreateTripRequest is the body of POST /api/trips
type CreateTripRequest struct {
	ManagerID string         `json:"manager_id"`
	Details   DetailsRequest `json:"details"`
}

// UpdateDetailsRequest is the body of PUT /api/trips/:id/details
type UpdateDetailsRequest struct {
	ManagerID *string        `json:"manager_id"`
	Details   DetailsRequest `json:"details"`
}

// AssignRequest is the body of POST /api/trips/:id/assign
type AssignRequest struct {
	OrganizerID   string          `json:"organizer_id"`
	Budget        decimal.Decimal `json:"budget"`
	Comments      string          `json:"comments"`
	InternalNotes string          `json:"internal_notes"`
}

// CommentsRequest is the body of the return commands
type CommentsRequest struct {
	Comments string `json:"comments"`
}

// RejectRequest is the body of POST /api/trips/:id/reject
type RejectRequest struct {
	Reason   string `json:"reason"`
	Comments string `json:"comments"`
}

// LineItemRequest is one plan entry
type LineItemRequest struct {
	ItemType    string          `json:"item_type"`
	Description string          `json:"description"`
	PlannedCost decimal.Decimal `json:"planned_cost"`
}

// ConfirmPlanRequest is the body of POST /api/trips/:id/confirm-plan
type ConfirmPlanRequest struct {
	PlanDetail     string            `json:"plan_detail"`
	LineItems      []LineItemRequest `json:"line_items"`
	ManualOverride bool              `json:"manual_override"`
	PlannedCost    decimal.Decimal   `json:"planned_cost"`
}

// SubmitExpensesRequest is the body of POST /api/trips/:id/expenses
type SubmitExpensesRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	HasNoExpenses bool            `json:"has_no_expenses"`
	AttachmentIDs []string        `json:"attachment_ids"`
	Comments      string          `json:"comments"`
}

// CommandsResponse lists the commands an actor may attempt
type CommandsResponse struct {
	Commands []domainwf.Trigger `json:"commands"`
}

func (r DetailsRequest) toEntity() (entity.TripDetails, error) {
	d := entity.TripDetails{
		Destination:         strings.TrimSpace(r.Destination),
		Purpose:             strings.TrimSpace(r.Purpose),
		DurationType:        r.DurationType,
		ApprovingColleague:  strings.TrimSpace(r.ApprovingColleague),
		NeedsAccommodation:  r.NeedsAccommodation,
		AccommodationPeople: r.AccommodationPeople,
		AccommodationCity:   strings.TrimSpace(r.AccommodationCity),
	}

	dates := []struct {
		field string
		raw   string
		dst   **time.Time
	}{
		{"startDate", r.StartDate, &d.StartDate},
		{"endDate", r.EndDate, &d.EndDate},
		{"checkInDate", r.CheckInDate, &d.CheckInDate},
		{"checkOutDate", r.CheckOutDate, &d.CheckOutDate},
	}

	var bad []string
	for _, dt := range dates {
		t, ok := parseDate(dt.raw)
		if !ok {
			bad = append(bad, dt.field)
			continue
		}
		*dt.dst = t
	}
	if len(bad) > 0 {
		return d, domainwf.Validation("", bad...)
	}
	return d, nil
}

// parseDate returns nil for an empty string and false for an unparseable one
func parseDate(raw string) (*time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, true
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, true
		}
	}
	return nil, false
}

func (r ConfirmPlanRequest) toInput() appwf.ConfirmPlanInput {
	in := appwf.ConfirmPlanInput{
		PlanDetail:     strings.TrimSpace(r.PlanDetail),
		ManualOverride: r.ManualOverride,
		PlannedCost:    r.PlannedCost,
	}
	for _, item := range r.LineItems {
		in.LineItems = append(in.LineItems, entity.PlanLineItem{
			ItemType:    item.ItemType,
			Description: item.Description,
			PlannedCost: item.PlannedCost,
		})
	}
	return in
}
