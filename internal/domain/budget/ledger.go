// Package budget computes a trip's derived financial fields.
package budget

import (
	"github.com/shopspring/decimal"

	"github.com/garyjia/trip-approval/internal/domain/entity"
)

// Ledger derives planned cost, final cost and budget status
type Ledger struct{}

// NewLedger creates a budget ledger
func NewLedger() *Ledger {
	return &Ledger{}
}

// ComputePlannedCost returns the manual cost when the override is enabled,
// otherwise the sum of the line item costs.
func (l *Ledger) ComputePlannedCost(lineItems []entity.PlanLineItem, manualOverride bool, manualCost decimal.Decimal) decimal.Decimal {
	if manualOverride {
		return manualCost
	}

	total := decimal.Zero
	for _, item := range lineItems {
		total = total.Add(item.PlannedCost)
	}
	return total
}

// ComputeBudgetStatus compares the approved budget with planned plus actual spend.
// ok is false when no positive budget has been approved.
func (l *Ledger) ComputeBudgetStatus(approvedBudget, plannedCost, actualExpense decimal.Decimal) (status entity.BudgetStatus, difference decimal.Decimal, ok bool) {
	if !approvedBudget.IsPositive() {
		return "", decimal.Zero, false
	}

	difference = approvedBudget.Sub(plannedCost.Add(actualExpense))
	switch difference.Sign() {
	case -1:
		status = entity.BudgetOver
	case 0:
		status = entity.BudgetOn
	default:
		status = entity.BudgetUnder
	}
	return status, difference, true
}

// ComputeFinalCost returns the cost recorded at expense approval
func (l *Ledger) ComputeFinalCost(plannedCost, actualExpense decimal.Decimal) decimal.Decimal {
	return plannedCost.Add(actualExpense)
}

// Apply recomputes the stored derived fields of trip after a mutation
func (l *Ledger) Apply(trip *entity.TripRequest) {
	status, difference, ok := l.ComputeBudgetStatus(trip.ApprovedBudget, trip.PlannedCost, trip.ActualExpenseTotal)
	if !ok {
		trip.BudgetStatus = ""
		trip.BudgetDifference = decimal.Zero
		return
	}
	trip.BudgetStatus = status
	trip.BudgetDifference = difference
}
