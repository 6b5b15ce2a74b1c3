package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/trip-approval/internal/domain/entity"
	"github.com/garyjia/trip-approval/internal/domain/workflow"
)

func costedTrip() *entity.TripRequest {
	final := decimal.NewFromInt(950)
	return &entity.TripRequest{
		ID:                 1,
		RequesterID:        "emp-1",
		ManagerID:          "mgr-1",
		OrganizerID:        "org-1",
		State:              workflow.StateCompleted,
		ApprovedBudget:     decimal.NewFromInt(1000),
		InternalNotes:      "prefer the cheaper hotel",
		PlannedCost:        decimal.NewFromInt(800),
		ActualExpenseTotal: decimal.NewFromInt(150),
		LineItems: []entity.PlanLineItem{
			{ItemType: entity.ItemTypeTransport, Description: "Train", PlannedCost: decimal.NewFromInt(800)},
		},
		FinalTotalCost:   &final,
		BudgetStatus:     entity.BudgetUnder,
		BudgetDifference: decimal.NewFromInt(50),
	}
}

func newQueryFixture() (TripQueryService, *mockSink, *mockHistoryRepo) {
	trips := newMockTripRepo(costedTrip())
	sink := &mockSink{}
	history := &mockHistoryRepo{}
	users := newMockDirectory(
		&entity.User{ID: "emp-1"},
		&entity.User{ID: "mgr-1"},
		&entity.User{ID: "org-1"},
		&entity.User{ID: "fin-1", Groups: []string{entity.GroupFinance}},
		&entity.User{ID: "other"},
	)
	attachments := &mockAttachments{links: []*entity.AttachmentLink{{TripID: 1, AttachmentID: "receipt-1"}}}
	return NewTripQueryService(trips, sink, history, attachments, users, &mockLogger{}), sink, history
}

func TestTripQueryService_GetTripRedactsForRequester(t *testing.T) {
	svc, _, _ := newQueryFixture()

	view, err := svc.GetTrip(context.Background(), "emp-1", 1)
	require.NoError(t, err)

	assert.True(t, view.CostsRedacted)
	assert.True(t, view.Trip.ApprovedBudget.IsZero())
	assert.True(t, view.Trip.PlannedCost.IsZero())
	assert.Empty(t, view.Trip.InternalNotes)
	assert.Nil(t, view.Trip.FinalTotalCost)
	assert.Empty(t, view.Trip.BudgetStatus)
	assert.True(t, view.Trip.LineItems[0].PlannedCost.IsZero())
	assert.True(t, view.Trip.ActualExpenseTotal.Equal(decimal.NewFromInt(150)), "requester keeps their own expenses")
	assert.Len(t, view.Attachments, 1)
}

func TestTripQueryService_GetTripFullForCostViewers(t *testing.T) {
	svc, _, _ := newQueryFixture()

	for _, actor := range []string{"mgr-1", "org-1", "fin-1"} {
		t.Run(actor, func(t *testing.T) {
			view, err := svc.GetTrip(context.Background(), actor, 1)
			require.NoError(t, err)
			assert.False(t, view.CostsRedacted)
			assert.True(t, view.Trip.ApprovedBudget.Equal(decimal.NewFromInt(1000)))
			assert.True(t, view.Capabilities.CanSeeCosts)
		})
	}
}

func TestTripQueryService_GetTripRedactsForOutsider(t *testing.T) {
	svc, _, _ := newQueryFixture()

	view, err := svc.GetTrip(context.Background(), "other", 1)
	require.NoError(t, err)
	assert.True(t, view.CostsRedacted)
	assert.True(t, view.Trip.ActualExpenseTotal.IsZero())
}

func TestTripQueryService_UnknownActor(t *testing.T) {
	svc, _, _ := newQueryFixture()

	_, err := svc.GetTrip(context.Background(), "ghost", 1)
	assert.True(t, errors.Is(err, workflow.ErrPermissionDenied))
}

func TestTripQueryService_ListMessagesFiltersRestricted(t *testing.T) {
	svc, sink, _ := newQueryFixture()
	ctx := context.Background()

	_, _ = sink.PostPublic(ctx, 1, "mgr-1", "approved", []string{"emp-1"})
	_, _ = sink.PostRestricted(ctx, 1, "mgr-1", "budget 1000", []string{"org-1"})

	msgs, err := svc.ListMessages(ctx, "emp-1", 1)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "approved", msgs[0].Body)

	msgs, err = svc.ListMessages(ctx, "org-1", 1)
	require.NoError(t, err)
	assert.Len(t, msgs, 2)

	msgs, err = svc.ListMessages(ctx, "mgr-1", 1)
	require.NoError(t, err)
	assert.Len(t, msgs, 2, "author sees their own restricted message")
}

func TestTripQueryService_ListHistoryDropsNotes(t *testing.T) {
	svc, _, history := newQueryFixture()
	ctx := context.Background()

	require.NoError(t, history.Create(ctx, &entity.TransitionHistory{
		TripID:    1,
		ActorID:   "fin-1",
		Command:   string(workflow.TriggerUndoExpenseApproval),
		Note:      "reverted final cost 950",
		Timestamp: time.Now(),
	}))

	records, err := svc.ListHistory(ctx, "emp-1", 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Empty(t, records[0].Note)

	records, err = svc.ListHistory(ctx, "fin-1", 1)
	require.NoError(t, err)
	assert.Equal(t, "reverted final cost 950", records[0].Note)
}

func TestTripQueryService_CostReport(t *testing.T) {
	svc, _, _ := newQueryFixture()
	ctx := context.Background()

	_, err := svc.CostReport(ctx, "emp-1", 1)
	assert.True(t, errors.Is(err, workflow.ErrPermissionDenied))

	trip, err := svc.CostReport(ctx, "fin-1", 1)
	require.NoError(t, err)
	assert.True(t, trip.PlannedCost.Equal(decimal.NewFromInt(800)))
}

func TestRedactCosts_DoesNotMutateInput(t *testing.T) {
	trip := costedTrip()
	_ = RedactCosts(trip, false)

	assert.True(t, trip.ApprovedBudget.Equal(decimal.NewFromInt(1000)))
	assert.True(t, trip.LineItems[0].PlannedCost.Equal(decimal.NewFromInt(800)))
}
