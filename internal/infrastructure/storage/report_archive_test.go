package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/trip-approval/internal/application/dispatcher"
	"github.com/garyjia/trip-approval/internal/application/port"
	"github.com/garyjia/trip-approval/internal/domain/entity"
	"github.com/garyjia/trip-approval/internal/domain/event"
	"github.com/garyjia/trip-approval/internal/domain/workflow"
)

type stubTrips struct {
	port.TripRepository
	trips map[int64]*entity.TripRequest
}

func (s *stubTrips) Get(_ context.Context, id int64) (*entity.TripRequest, error) {
	trip, ok := s.trips[id]
	if !ok {
		return nil, port.ErrTripNotFound
	}
	return trip, nil
}

type stubRenderer struct {
	calls int
}

func (r *stubRenderer) Render(trip *entity.TripRequest) ([]byte, error) {
	r.calls++
	return []byte("xlsx:" + trip.Details.Destination), nil
}

func newArchive(t *testing.T) (*ReportArchive, *stubRenderer) {
	t.Helper()
	trips := &stubTrips{trips: map[int64]*entity.TripRequest{
		7: {ID: 7, State: workflow.StateCompleted, Details: entity.TripDetails{Destination: "Oslo"}},
	}}
	renderer := &stubRenderer{}
	return NewReportArchive(t.TempDir(), trips, renderer, zap.NewNop()), renderer
}

func transition(tripID int64, to workflow.State) *event.Event {
	return event.NewEvent(event.TypeTripTransitioned, tripID, map[string]interface{}{
		event.KeyToState: to.String(),
	})
}

func TestReportArchive_ArchivesOnCompletion(t *testing.T) {
	archive, renderer := newArchive(t)
	d := dispatcher.NewDispatcher()
	archive.Subscribe(d)

	require.NoError(t, d.Dispatch(context.Background(), transition(7, workflow.StateExpenseSubmitted)))
	assert.Equal(t, 0, renderer.calls)
	assert.NoFileExists(t, archive.Path(7))

	require.NoError(t, d.Dispatch(context.Background(), transition(7, workflow.StateCompleted)))
	assert.Equal(t, 1, renderer.calls)

	content, err := archive.Read(7)
	require.NoError(t, err)
	assert.Equal(t, "xlsx:Oslo", string(content))

	entries, err := os.ReadDir(filepath.Dir(archive.Path(7)))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestReportArchive_MissingTrip(t *testing.T) {
	archive, _ := newArchive(t)

	_, err := archive.Archive(context.Background(), 99)
	assert.ErrorIs(t, err, port.ErrTripNotFound)
}

func TestReportArchive_RejectsEscapingPath(t *testing.T) {
	archive, _ := newArchive(t)
	assert.Error(t, archive.save(filepath.Join(archive.baseDir, "..", "evil.xlsx"), []byte("x")))
}
