package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/trip-approval/internal/application/dispatcher"
	"github.com/garyjia/trip-approval/internal/application/port"
	"github.com/garyjia/trip-approval/internal/domain/entity"
	"github.com/garyjia/trip-approval/internal/domain/event"
	"github.com/garyjia/trip-approval/internal/domain/workflow"
)

var errNoLongerEligible = errors.New("trip left the reminder-eligible state")

// SweepResult summarizes one reminder sweep
type SweepResult struct {
	Checked int
	Sent    int
	Failed  int
}

// ReminderService nudges requesters whose trips await expense submission
type ReminderService interface {
	// Sweep sends every due reminder once. It stops between trips when ctx is done.
	Sweep(ctx context.Context) (SweepResult, error)
}

type reminderService struct {
	trips      port.TripRepository
	router     NotificationRouter
	clock      port.Clock
	interval   time.Duration
	dispatcher dispatcher.Dispatcher
	logger     Logger
}

// ReminderOption configures the reminder service
type ReminderOption func(*reminderService)

// WithReminderDispatcher emits a reminder event per sent reminder
func WithReminderDispatcher(d dispatcher.Dispatcher) ReminderOption {
	return func(s *reminderService) {
		s.dispatcher = d
	}
}

// NewReminderService creates a new ReminderService
func NewReminderService(
	trips port.TripRepository,
	router NotificationRouter,
	clock port.Clock,
	interval time.Duration,
	logger Logger,
	opts ...ReminderOption,
) ReminderService {
	s := &reminderService{
		trips:    trips,
		router:   router,
		clock:    clock,
		interval: interval,
		logger:   logger,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Sweep sends reminders for trips in OrganizationDone whose baseline is older than the interval
func (s *reminderService) Sweep(ctx context.Context) (SweepResult, error) {
	var result SweepResult

	trips, err := s.trips.ListByState(ctx, workflow.StateAwaitingExpense)
	if err != nil {
		return result, fmt.Errorf("list trips awaiting expenses: %w", err)
	}

	now := s.clock.Now()
	for _, trip := range trips {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Checked++

		if !ReminderDue(trip, now, s.interval) {
			continue
		}

		if err := s.remind(ctx, trip, now); err != nil {
			result.Failed++
			s.logger.Error("Failed to send expense reminder", "trip_id", trip.ID, "error", err)
			continue
		}
		result.Sent++
	}

	s.logger.Info("Reminder sweep finished",
		"checked", result.Checked,
		"sent", result.Sent,
		"failed", result.Failed,
	)
	return result, nil
}

func (s *reminderService) remind(ctx context.Context, trip *entity.TripRequest, now time.Time) error {
	body := fmt.Sprintf(
		"Reminder: please submit your expenses for trip #%d to %s, or declare that you had none.",
		trip.ID, trip.Details.Destination,
	)
	if err := s.router.NotifyPublic(ctx, trip, entity.SystemActorID, body, []string{trip.RequesterID}); err != nil {
		return err
	}

	mark := func(t *entity.TripRequest) error {
		if t.State != workflow.StateAwaitingExpense {
			return errNoLongerEligible
		}
		t.LastReminderAt = &now
		return nil
	}

	_, err := s.trips.AtomicUpdate(ctx, trip.ID, mark)
	if errors.Is(err, workflow.ErrStaleWrite) {
		_, err = s.trips.AtomicUpdate(ctx, trip.ID, mark)
	}
	switch {
	case errors.Is(err, errNoLongerEligible):
		s.logger.Info("Trip left the awaiting-expense state during the sweep", "trip_id", trip.ID)
	case err != nil:
		return fmt.Errorf("record reminder time: %w", err)
	}

	if s.dispatcher != nil {
		s.dispatcher.DispatchAsync(ctx, event.NewEvent(event.TypeReminderSent, trip.ID, map[string]interface{}{
			event.KeyActorID: trip.RequesterID,
		}))
	}
	return nil
}

// ReminderDue reports whether a reminder is due for trip at now.
// The baseline is the last reminder, else the organization date, else the last modification.
func ReminderDue(trip *entity.TripRequest, now time.Time, interval time.Duration) bool {
	baseline := trip.UpdatedAt
	switch {
	case trip.LastReminderAt != nil:
		baseline = *trip.LastReminderAt
	case trip.OrganizerConfirmedAt != nil:
		baseline = *trip.OrganizerConfirmedAt
	}
	return !now.Before(baseline.Add(interval))
}
