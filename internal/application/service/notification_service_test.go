package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/trip-approval/internal/application/dispatcher"
	"github.com/garyjia/trip-approval/internal/domain/entity"
	"github.com/garyjia/trip-approval/internal/domain/event"
)

func testTrip() *entity.TripRequest {
	return &entity.TripRequest{
		ID:          7,
		RequesterID: "emp-1",
		ManagerID:   "mgr-1",
		OrganizerID: "org-1",
	}
}

func TestNotificationRouter_NotifyPublicDefaultsToRequester(t *testing.T) {
	sink := &mockSink{}
	router := NewNotificationRouter(sink, &fixedClock{now: time.Now()}, &mockLogger{})

	err := router.NotifyPublic(context.Background(), testTrip(), "mgr-1", "Your trip was approved", nil)
	require.NoError(t, err)

	require.Len(t, sink.messages, 1)
	msg := sink.messages[0]
	assert.Equal(t, entity.VisibilityPublic, msg.Visibility)
	assert.Equal(t, []string{"emp-1"}, msg.RecipientIDs)
	assert.Equal(t, "mgr-1", msg.AuthorID)
}

func TestNotificationRouter_NotifyRestrictedDefaultRecipients(t *testing.T) {
	sink := &mockSink{}
	router := NewNotificationRouter(sink, &fixedClock{now: time.Now()}, &mockLogger{})

	posted, err := router.NotifyRestricted(context.Background(), testTrip(), "mgr-1", "Budget is 1200", nil)
	require.NoError(t, err)
	assert.True(t, posted)

	require.Len(t, sink.messages, 1)
	assert.Equal(t, []string{"org-1"}, sink.messages[0].RecipientIDs, "author is excluded")
}

func TestNotificationRouter_NotifyRestrictedNoRecipients(t *testing.T) {
	sink := &mockSink{}
	router := NewNotificationRouter(sink, &fixedClock{now: time.Now()}, &mockLogger{})

	trip := testTrip()
	trip.OrganizerID = ""

	posted, err := router.NotifyRestricted(context.Background(), trip, "mgr-1", "internal note", nil)
	require.NoError(t, err)
	assert.False(t, posted)
	assert.Empty(t, sink.messages)
}

func TestNotificationRouter_DeduplicatesWithinWindow(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	clock := &fixedClock{now: now}
	sink := &mockSink{now: clock.Now}
	router := NewNotificationRouter(sink, clock, &mockLogger{})
	ctx := context.Background()

	posted, err := router.NotifyRestricted(ctx, testTrip(), "mgr-1", "<p>Plan   confirmed &amp; booked</p>", nil)
	require.NoError(t, err)
	require.True(t, posted)

	clock.now = now.Add(2 * time.Minute)
	posted, err = router.NotifyRestricted(ctx, testTrip(), "mgr-1", "Plan confirmed & booked", nil)
	require.NoError(t, err)
	assert.False(t, posted, "same normalized body inside the window is skipped")

	clock.now = now.Add(6 * time.Minute)
	posted, err = router.NotifyRestricted(ctx, testTrip(), "mgr-1", "Plan confirmed & booked", nil)
	require.NoError(t, err)
	assert.True(t, posted, "outside the window the message is posted again")

	assert.Equal(t, 2, sink.count(entity.VisibilityRestricted))
}

func TestNotificationRouter_PublicMessagesAreNotDeduplicated(t *testing.T) {
	sink := &mockSink{}
	router := NewNotificationRouter(sink, &fixedClock{now: time.Now()}, &mockLogger{})
	ctx := context.Background()

	require.NoError(t, router.NotifyPublic(ctx, testTrip(), "system", "Reminder", nil))
	require.NoError(t, router.NotifyPublic(ctx, testTrip(), "system", "Reminder", nil))

	assert.Equal(t, 2, sink.count(entity.VisibilityPublic))
}

func TestNotificationRouter_LookupFailureStillPosts(t *testing.T) {
	sink := &mockSink{
		listSinceFunc: func(ctx context.Context, tripID int64, since time.Time) ([]*entity.Message, error) {
			return nil, errors.New("db down")
		},
	}
	router := NewNotificationRouter(sink, &fixedClock{now: time.Now()}, &mockLogger{})

	posted, err := router.NotifyRestricted(context.Background(), testTrip(), "mgr-1", "note", nil)
	require.NoError(t, err)
	assert.True(t, posted)
}

func TestNotificationRouter_PostFailureEmitsEvent(t *testing.T) {
	sink := &mockSink{
		postFunc: func(visibility string, body string) error {
			return errors.New("sink unavailable")
		},
	}

	d := dispatcher.NewDispatcher()
	var failed []string
	d.Subscribe(event.TypeNotificationFailed, func(ctx context.Context, evt *event.Event) error {
		failed = append(failed, evt.GetPayloadString(event.KeyVisibility))
		return nil
	})

	router := NewNotificationRouter(sink, &fixedClock{now: time.Now()}, &mockLogger{}, WithRouterDispatcher(d))
	err := router.NotifyPublic(context.Background(), testTrip(), "mgr-1", "hello", nil)

	assert.Error(t, err)
	assert.Equal(t, []string{entity.VisibilityPublic}, failed)
}

func TestNotificationRouter_CustomDedupWindow(t *testing.T) {
	now := time.Now()
	clock := &fixedClock{now: now}
	sink := &mockSink{now: clock.Now}
	router := NewNotificationRouter(sink, clock, &mockLogger{}, WithDedupWindow(time.Minute))
	ctx := context.Background()

	_, err := router.NotifyRestricted(ctx, testTrip(), "mgr-1", "same", nil)
	require.NoError(t, err)

	clock.now = now.Add(90 * time.Second)
	posted, err := router.NotifyRestricted(ctx, testTrip(), "mgr-1", "same", nil)
	require.NoError(t, err)
	assert.True(t, posted)
}

func TestNormalizeBody(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "hello world", "hello world"},
		{"markup", "<b>hello</b><br/>world", "hello world"},
		{"entities", "fish &amp; chips", "fish & chips"},
		{"whitespace", "  a\n\tb   c ", "a b c"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeBody(tt.in))
		})
	}
}

func TestUniqueIDs(t *testing.T) {
	got := uniqueIDs([]string{"a", "", "b", "a", "c", "b"}, "c")
	assert.Equal(t, []string{"a", "b"}, got)
}
