package metrics

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/trip-approval/internal/application/dispatcher"
	"github.com/garyjia/trip-approval/internal/domain/event"
)

func TestRecorder_CountsEvents(t *testing.T) {
	r := NewRecorder()
	d := dispatcher.NewDispatcher()
	r.Subscribe(d)
	ctx := context.Background()

	require.NoError(t, d.Dispatch(ctx, event.NewEvent(event.TypeTripCreated, 1, nil)))
	require.NoError(t, d.Dispatch(ctx, event.NewEvent(event.TypeTripTransitioned, 1, map[string]interface{}{
		event.KeyCommand:   "SUBMIT",
		event.KeyFromState: "draft",
		event.KeyToState:   "submitted",
	})))
	require.NoError(t, d.Dispatch(ctx, event.NewEvent(event.TypeCommandRejected, 1, map[string]interface{}{
		event.KeyCommand:   "REJECT",
		event.KeyErrorKind: "permission_denied",
	})))
	require.NoError(t, d.Dispatch(ctx, event.NewEvent(event.TypeCommandRejected, 1, map[string]interface{}{
		event.KeyCommand: "REJECT",
	})))
	require.NoError(t, d.Dispatch(ctx, event.NewEvent(event.TypeMessageDeduplicated, 1, map[string]interface{}{
		event.KeyVisibility: "restricted",
	})))
	require.NoError(t, d.Dispatch(ctx, event.NewEvent(event.TypeReminderSent, 1, nil)))

	assert.Equal(t, 1.0, testutil.ToFloat64(r.tripsCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.commands.WithLabelValues("SUBMIT", "applied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.commands.WithLabelValues("REJECT", "permission_denied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.commands.WithLabelValues("REJECT", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.transitions.WithLabelValues("draft", "submitted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.messages.WithLabelValues("restricted", "deduplicated")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.remindersSent))
}

func TestRecorder_Handler(t *testing.T) {
	r := NewRecorder()
	r.tripsCreated.Inc()

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "trip_approval_trips_created_total 1"))
}
