package entity

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func datePtr(y int, m time.Month, day int) *time.Time {
	t := time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
	return &t
}

func completeDetails() TripDetails {
	return TripDetails{
		Destination:        "Berlin",
		Purpose:            "Customer workshop",
		StartDate:          datePtr(2026, 3, 2),
		EndDate:            datePtr(2026, 3, 4),
		DurationType:       DurationMultiDay,
		ApprovingColleague: "lead-7",
	}
}

func TestTripDetails_MissingFields(t *testing.T) {
	tests := []struct {
		name   string
		modify func(d *TripDetails)
		want   []string
	}{
		{"complete", func(d *TripDetails) {}, nil},
		{"empty", func(d *TripDetails) { *d = TripDetails{} }, []string{
			"destination", "purpose", "startDate", "endDate", "durationType", "approvingColleague",
		}},
		{"end before start", func(d *TripDetails) { d.EndDate = datePtr(2026, 3, 1) }, []string{"endDate"}},
		{"same day", func(d *TripDetails) { d.EndDate = datePtr(2026, 3, 2) }, nil},
		{"accommodation incomplete", func(d *TripDetails) {
			d.NeedsAccommodation = true
			d.AccommodationCity = "Berlin"
		}, []string{"accommodationPeople", "checkInDate", "checkOutDate"}},
		{"accommodation check-out before check-in", func(d *TripDetails) {
			d.NeedsAccommodation = true
			d.AccommodationPeople = 1
			d.AccommodationCity = "Berlin"
			d.CheckInDate = datePtr(2026, 3, 3)
			d.CheckOutDate = datePtr(2026, 3, 2)
		}, []string{"checkOutDate"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			details := completeDetails()
			tt.modify(&details)
			assert.Equal(t, tt.want, details.MissingFields())
		})
	}
}

func TestTripRequest_CloneIsDeep(t *testing.T) {
	now := time.Now()
	final := decimal.NewFromInt(120)
	orig := &TripRequest{
		ID:             7,
		Details:        completeDetails(),
		LineItems:      []PlanLineItem{{ItemType: ItemTypeTransport, PlannedCost: decimal.NewFromInt(80)}},
		FinalTotalCost: &final,
		SubmittedAt:    &now,
	}

	c := orig.Clone()
	require.Equal(t, orig, c)

	c.LineItems[0].Description = "changed"
	*c.FinalTotalCost = decimal.NewFromInt(1)
	*c.SubmittedAt = now.Add(time.Hour)
	*c.Details.StartDate = now

	assert.Empty(t, orig.LineItems[0].Description)
	assert.True(t, orig.FinalTotalCost.Equal(decimal.NewFromInt(120)))
	assert.Equal(t, now, *orig.SubmittedAt)
	assert.Equal(t, *datePtr(2026, 3, 2), *orig.Details.StartDate)
}

func TestTripRequest_ActionedByManager(t *testing.T) {
	trip := &TripRequest{}
	assert.False(t, trip.ActionedByManager())

	trip.OrganizerID = "org"
	assert.True(t, trip.ActionedByManager())
}

func TestMessage_VisibleTo(t *testing.T) {
	public := &Message{Visibility: VisibilityPublic}
	assert.True(t, public.VisibleTo("anyone"))

	restricted := &Message{Visibility: VisibilityRestricted, AuthorID: "mgr", RecipientIDs: []string{"org"}}
	assert.True(t, restricted.VisibleTo("org"))
	assert.True(t, restricted.VisibleTo("mgr"))
	assert.False(t, restricted.VisibleTo("emp"))
}

func TestRejectionReason_IsValid(t *testing.T) {
	assert.True(t, RejectionPolicyViolation.IsValid())
	assert.False(t, RejectionReason("bored").IsValid())
	assert.False(t, RejectionReason("").IsValid())
}

func TestUser_InGroup(t *testing.T) {
	u := &User{ID: "u1", Groups: []string{GroupFinance}}
	assert.True(t, u.InGroup(GroupFinance))
	assert.False(t, u.InGroup(GroupAdmin))

	var nilUser *User
	assert.False(t, nilUser.InGroup(GroupAdmin))
	assert.Equal(t, "u1", u.DisplayName())
}
