// Package export renders trip data as spreadsheets.
package export

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/trip-approval/internal/domain/entity"
)

const (
	summarySheet   = "Budget"
	lineItemsSheet = "Plan"
)

// BudgetReport builds the budget reconciliation workbook of a trip
type BudgetReport struct {
	logger *zap.Logger
}

// NewBudgetReport creates a new report builder
func NewBudgetReport(logger *zap.Logger) *BudgetReport {
	return &BudgetReport{logger: logger}
}

// Render returns the XLSX bytes for trip
func (r *BudgetReport) Render(trip *entity.TripRequest) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to create style: %w", err)
	}

	final := "pending"
	if trip.FinalTotalCost != nil {
		final = trip.FinalTotalCost.StringFixed(2)
	}

	rows := [][]interface{}{
		{"Trip", trip.ID},
		{"Requester", trip.RequesterID},
		{"Destination", trip.Details.Destination},
		{"State", trip.State.String()},
		{"Approved budget", money(trip.ApprovedBudget)},
		{"Planned cost", money(trip.PlannedCost)},
		{"Actual expenses", money(trip.ActualExpenseTotal)},
		{"Final total cost", final},
		{"Budget difference", money(trip.BudgetDifference)},
		{"Budget status", string(trip.BudgetStatus)},
		{"Expense approved by", trip.ExpenseApprovedBy},
		{"Expense approved at", formatTime(trip.ExpenseApprovedAt)},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}
	last, _ := excelize.CoordinatesToCellName(1, len(rows))
	if err := f.SetCellStyle(summarySheet, "A1", last, bold); err != nil {
		return nil, fmt.Errorf("failed to style labels: %w", err)
	}
	_ = f.SetColWidth(summarySheet, "A", "A", 22)
	_ = f.SetColWidth(summarySheet, "B", "B", 28)

	if err := r.writeLineItems(f, trip, bold); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}

	r.logger.Info("Budget report rendered",
		zap.Int64("trip_id", trip.ID),
		zap.Int("line_items", len(trip.LineItems)))
	return buf.Bytes(), nil
}

func (r *BudgetReport) writeLineItems(f *excelize.File, trip *entity.TripRequest, header int) error {
	if _, err := f.NewSheet(lineItemsSheet); err != nil {
		return fmt.Errorf("failed to create plan sheet: %w", err)
	}

	titles := []interface{}{"Type", "Description", "Planned cost"}
	if err := f.SetSheetRow(lineItemsSheet, "A1", &titles); err != nil {
		return fmt.Errorf("failed to write plan header: %w", err)
	}
	_ = f.SetCellStyle(lineItemsSheet, "A1", "C1", header)

	row := 2
	for _, item := range trip.LineItems {
		cell, _ := excelize.CoordinatesToCellName(1, row)
		values := []interface{}{item.ItemType, item.Description, money(item.PlannedCost)}
		if err := f.SetSheetRow(lineItemsSheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write line item: %w", err)
		}
		row++
	}

	if trip.ManualCostOverride || len(trip.LineItems) == 0 {
		cell, _ := excelize.CoordinatesToCellName(1, row)
		values := []interface{}{"manual", trip.PlanDetail, money(trip.ManualPlannedCost)}
		if err := f.SetSheetRow(lineItemsSheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write manual cost: %w", err)
		}
	}

	_ = f.SetColWidth(lineItemsSheet, "B", "B", 40)
	return nil
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}
