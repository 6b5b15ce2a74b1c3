package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/garyjia/trip-approval/internal/application/port"
	"github.com/garyjia/trip-approval/internal/domain/entity"
	"github.com/garyjia/trip-approval/internal/domain/workflow"
	"github.com/garyjia/trip-approval/internal/infrastructure/persistence/sqlite"
)

const tripColumns = `
	id, requester_id, manager_id, organizer_id, state, form_state, details,
	approved_budget, manager_comments, internal_notes, return_comments,
	plan_detail, line_items, manual_cost_override, manual_planned_cost, planned_cost,
	actual_expense_total, has_no_expenses, expense_comments, expense_return_comments,
	final_total_cost, expense_approved_by, budget_status, budget_difference,
	rejection_reason, rejection_comments, cancelled_by,
	submitted_at, manager_approved_at, returned_at, organizer_confirmed_at,
	expense_submitted_at, expense_approved_at, cancelled_at, rejected_at, last_reminder_at,
	version, created_at, updated_at`

// TripRepository implements port.TripRepository
type TripRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTripRepository creates a new trip repository
func NewTripRepository(db *sql.DB, logger *zap.Logger) *TripRepository {
	return &TripRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new trip and sets its ID and Version
func (r *TripRepository) Create(ctx context.Context, trip *entity.TripRequest) error {
	details, items, err := encodeTripJSON(trip)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO trip_requests (
			requester_id, manager_id, organizer_id, state, form_state, details,
			approved_budget, line_items, manual_planned_cost, planned_cost,
			actual_expense_total, budget_difference, version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
	`

	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		trip.RequesterID,
		trip.ManagerID,
		trip.OrganizerID,
		trip.State,
		trip.FormState,
		details,
		trip.ApprovedBudget,
		items,
		trip.ManualPlannedCost,
		trip.PlannedCost,
		trip.ActualExpenseTotal,
		trip.BudgetDifference,
		trip.CreatedAt,
		trip.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create trip", zap.String("requester_id", trip.RequesterID), zap.Error(err))
		return fmt.Errorf("failed to create trip: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	trip.ID = id
	trip.Version = 1
	return nil
}

// Get retrieves a trip by ID
func (r *TripRepository) Get(ctx context.Context, id int64) (*entity.TripRequest, error) {
	query := `SELECT ` + tripColumns + ` FROM trip_requests WHERE id = ?`

	trip, err := scanTrip(sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", port.ErrTripNotFound, id)
	}
	if err != nil {
		r.logger.Error("Failed to get trip by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get trip: %w", err)
	}
	return trip, nil
}

// AtomicUpdate applies mutate to the stored trip and writes it back if the
// version is unchanged since the read
func (r *TripRepository) AtomicUpdate(ctx context.Context, id int64, mutate port.TripMutator) (*entity.TripRequest, error) {
	current, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updated := current.Clone()
	if err := mutate(updated); err != nil {
		return nil, err
	}

	details, items, err := encodeTripJSON(updated)
	if err != nil {
		return nil, err
	}

	var finalCost decimal.NullDecimal
	if updated.FinalTotalCost != nil {
		finalCost = decimal.NewNullDecimal(*updated.FinalTotalCost)
	}

	query := `
		UPDATE trip_requests SET
			manager_id = ?, organizer_id = ?, state = ?, form_state = ?, details = ?,
			approved_budget = ?, manager_comments = ?, internal_notes = ?, return_comments = ?,
			plan_detail = ?, line_items = ?, manual_cost_override = ?, manual_planned_cost = ?, planned_cost = ?,
			actual_expense_total = ?, has_no_expenses = ?, expense_comments = ?, expense_return_comments = ?,
			final_total_cost = ?, expense_approved_by = ?, budget_status = ?, budget_difference = ?,
			rejection_reason = ?, rejection_comments = ?, cancelled_by = ?,
			submitted_at = ?, manager_approved_at = ?, returned_at = ?, organizer_confirmed_at = ?,
			expense_submitted_at = ?, expense_approved_at = ?, cancelled_at = ?, rejected_at = ?,
			last_reminder_at = ?, updated_at = ?, version = version + 1
		WHERE id = ? AND version = ?
	`

	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		updated.ManagerID, updated.OrganizerID, updated.State, updated.FormState, details,
		updated.ApprovedBudget, updated.ManagerComments, updated.InternalNotes, updated.ReturnComments,
		updated.PlanDetail, items, updated.ManualCostOverride, updated.ManualPlannedCost, updated.PlannedCost,
		updated.ActualExpenseTotal, updated.HasNoExpenses, updated.ExpenseComments, updated.ExpenseReturnComments,
		finalCost, updated.ExpenseApprovedBy, updated.BudgetStatus, updated.BudgetDifference,
		updated.RejectionReason, updated.RejectionComments, updated.CancelledBy,
		updated.SubmittedAt, updated.ManagerApprovedAt, updated.ReturnedAt, updated.OrganizerConfirmedAt,
		updated.ExpenseSubmittedAt, updated.ExpenseApprovedAt, updated.CancelledAt, updated.RejectedAt,
		updated.LastReminderAt, updated.UpdatedAt,
		id, current.Version,
	)
	if err != nil {
		r.logger.Error("Failed to update trip", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to update trip: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return nil, workflow.StaleWrite(fmt.Sprintf("trip %d changed since version %d", id, current.Version))
	}

	updated.Version = current.Version + 1
	return updated, nil
}

// ListByState retrieves trips in any of the given states, oldest first
func (r *TripRepository) ListByState(ctx context.Context, states ...workflow.State) ([]*entity.TripRequest, error) {
	if len(states) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(states))
	args := make([]interface{}, len(states))
	for i, s := range states {
		placeholders[i] = "?"
		args[i] = s
	}

	query := `SELECT ` + tripColumns + ` FROM trip_requests
		WHERE state IN (` + strings.Join(placeholders, ", ") + `)
		ORDER BY id ASC`

	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list trips by state", zap.Error(err))
		return nil, fmt.Errorf("failed to list trips: %w", err)
	}
	defer rows.Close()

	var trips []*entity.TripRequest
	for rows.Next() {
		trip, err := scanTrip(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trip: %w", err)
		}
		trips = append(trips, trip)
	}

	return trips, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTrip(row rowScanner) (*entity.TripRequest, error) {
	var (
		trip      entity.TripRequest
		details   string
		items     string
		finalCost decimal.NullDecimal

		submittedAt, managerApprovedAt, returnedAt, organizerConfirmedAt sql.NullTime
		expenseSubmittedAt, expenseApprovedAt, cancelledAt, rejectedAt   sql.NullTime
		lastReminderAt                                                   sql.NullTime
	)

	err := row.Scan(
		&trip.ID, &trip.RequesterID, &trip.ManagerID, &trip.OrganizerID,
		&trip.State, &trip.FormState, &details,
		&trip.ApprovedBudget, &trip.ManagerComments, &trip.InternalNotes, &trip.ReturnComments,
		&trip.PlanDetail, &items, &trip.ManualCostOverride, &trip.ManualPlannedCost, &trip.PlannedCost,
		&trip.ActualExpenseTotal, &trip.HasNoExpenses, &trip.ExpenseComments, &trip.ExpenseReturnComments,
		&finalCost, &trip.ExpenseApprovedBy, &trip.BudgetStatus, &trip.BudgetDifference,
		&trip.RejectionReason, &trip.RejectionComments, &trip.CancelledBy,
		&submittedAt, &managerApprovedAt, &returnedAt, &organizerConfirmedAt,
		&expenseSubmittedAt, &expenseApprovedAt, &cancelledAt, &rejectedAt, &lastReminderAt,
		&trip.Version, &trip.CreatedAt, &trip.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(details), &trip.Details); err != nil {
		return nil, fmt.Errorf("failed to decode trip details: %w", err)
	}
	if items != "" && items != "null" {
		if err := json.Unmarshal([]byte(items), &trip.LineItems); err != nil {
			return nil, fmt.Errorf("failed to decode line items: %w", err)
		}
		if len(trip.LineItems) == 0 {
			trip.LineItems = nil
		}
	}
	if finalCost.Valid {
		v := finalCost.Decimal
		trip.FinalTotalCost = &v
	}

	trip.SubmittedAt = nullTime(submittedAt)
	trip.ManagerApprovedAt = nullTime(managerApprovedAt)
	trip.ReturnedAt = nullTime(returnedAt)
	trip.OrganizerConfirmedAt = nullTime(organizerConfirmedAt)
	trip.ExpenseSubmittedAt = nullTime(expenseSubmittedAt)
	trip.ExpenseApprovedAt = nullTime(expenseApprovedAt)
	trip.CancelledAt = nullTime(cancelledAt)
	trip.RejectedAt = nullTime(rejectedAt)
	trip.LastReminderAt = nullTime(lastReminderAt)

	return &trip, nil
}

func encodeTripJSON(trip *entity.TripRequest) (details, items string, err error) {
	d, err := json.Marshal(trip.Details)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode trip details: %w", err)
	}
	lineItems := trip.LineItems
	if lineItems == nil {
		lineItems = []entity.PlanLineItem{}
	}
	i, err := json.Marshal(lineItems)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode line items: %w", err)
	}
	return string(d), string(i), nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// Verify interface compliance
var _ port.TripRepository = (*TripRepository)(nil)
