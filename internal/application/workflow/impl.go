package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/trip-approval/internal/application/dispatcher"
	"github.com/garyjia/trip-approval/internal/application/port"
	"github.com/garyjia/trip-approval/internal/application/service"
	"github.com/garyjia/trip-approval/internal/domain/access"
	"github.com/garyjia/trip-approval/internal/domain/budget"
	"github.com/garyjia/trip-approval/internal/domain/entity"
	"github.com/garyjia/trip-approval/internal/domain/event"
	domainwf "github.com/garyjia/trip-approval/internal/domain/workflow"
)

// maxAttempts bounds how often a command is run when the store reports a stale write
const maxAttempts = 2

// CommandCreate is the history command recorded for a new trip
const CommandCreate = "CREATE"

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// tripWorkflow is the concrete implementation of TripWorkflow
type tripWorkflow struct {
	trips      port.TripRepository
	history    port.HistoryRepository
	txManager  port.TransactionManager
	users      port.UserDirectory
	router     service.NotificationRouter
	dispatcher dispatcher.Dispatcher
	attach     port.AttachmentStore
	clock      port.Clock
	logger     service.Logger

	builder       domainwf.StateMachineBuilder
	roles         *access.RoleResolver
	ledger        *budget.Ledger
	undoDaysLimit int
}

// Option configures the trip workflow
type Option func(*tripWorkflow)

// WithDispatcher sets the event dispatcher for emitting events
func WithDispatcher(d dispatcher.Dispatcher) Option {
	return func(w *tripWorkflow) {
		w.dispatcher = d
	}
}

// WithClock replaces the wall clock
func WithClock(c port.Clock) Option {
	return func(w *tripWorkflow) {
		w.clock = c
	}
}

// WithUndoApprovalDayLimit sets how many days after approval an expense approval
// may be undone. Zero means unlimited.
func WithUndoApprovalDayLimit(days int) Option {
	return func(w *tripWorkflow) {
		w.undoDaysLimit = days
	}
}

// WithAttachmentStore links expense attachments on submission
func WithAttachmentStore(s port.AttachmentStore) Option {
	return func(w *tripWorkflow) {
		w.attach = s
	}
}

// NewTripWorkflow creates a new trip workflow
func NewTripWorkflow(
	trips port.TripRepository,
	history port.HistoryRepository,
	txManager port.TransactionManager,
	users port.UserDirectory,
	router service.NotificationRouter,
	logger service.Logger,
	opts ...Option,
) TripWorkflow {
	w := &tripWorkflow{
		trips:     trips,
		history:   history,
		txManager: txManager,
		users:     users,
		router:    router,
		clock:     systemClock{},
		logger:    logger,
		builder:   BuildTripStateMachineBuilder(),
		roles:     access.NewRoleResolver(),
		ledger:    budget.NewLedger(),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// notice is one message sent after a successful command
type notice struct {
	restricted bool
	body       string
	// nil uses the router's default recipients
	recipients []string
}

// command describes one transition request
type command struct {
	trigger domainwf.Trigger
	tripID  int64
	actor   Actor
	payload interface{}

	// prepare runs lookups outside the atomic update
	prepare func(ctx context.Context, cc *commandContext) error
	// mutate applies the transition's field changes; the state is already set
	mutate func(cc *commandContext, trip *entity.TripRequest)
	note   func(before, after *entity.TripRequest) string
	notify func(cc *commandContext, before, after *entity.TripRequest) []notice
}

func (w *tripWorkflow) execute(ctx context.Context, cmd command) (*entity.TripRequest, error) {
	user, err := w.resolveActor(ctx, cmd.trigger, cmd.actor.ID)
	if err != nil {
		return nil, w.reject(ctx, cmd, err)
	}

	cc := &commandContext{
		trigger:       cmd.trigger,
		actor:         user,
		acting:        cmd.actor.ActingAsAssignee,
		payload:       cmd.payload,
		undoDaysLimit: w.undoDaysLimit,
		ledger:        w.ledger,
	}
	if cmd.prepare != nil {
		if err := cmd.prepare(ctx, cc); err != nil {
			return nil, w.reject(ctx, cmd, err)
		}
	}

	var before, after *entity.TripRequest
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		before, after, err = w.apply(ctx, cmd, cc)
		if !errors.Is(err, domainwf.ErrStaleWrite) {
			break
		}
		w.logger.Warn("Concurrent modification detected",
			"trip_id", cmd.tripID,
			"command", cmd.trigger,
			"attempt", attempt,
		)
	}
	if err != nil {
		return nil, w.reject(ctx, cmd, err)
	}

	w.afterCommit(ctx, cmd, cc, before, after)
	return after, nil
}

// apply runs guard, mutation and history record as one transaction
func (w *tripWorkflow) apply(ctx context.Context, cmd command, cc *commandContext) (before, after *entity.TripRequest, err error) {
	err = w.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		updated, err := w.trips.AtomicUpdate(txCtx, cmd.tripID, func(trip *entity.TripRequest) error {
			if !trip.State.IsValid() {
				return fmt.Errorf("%w: trip %d has state %q", domainwf.ErrInvalidState, trip.ID, trip.State)
			}

			before = trip.Clone()
			cc.trip = before
			cc.now = w.clock.Now()
			cc.caps = w.roles.Resolve(cc.actor, before, cc.acting)

			machine := w.builder.Build(trip.State)
			if err := machine.Fire(withCommand(txCtx, cc), cmd.trigger); err != nil {
				if errors.Is(err, domainwf.ErrGuardFailed) {
					return domainwf.InvalidTransition(cmd.trigger, trip.State, "no transition applies")
				}
				return err
			}

			trip.State = machine.State()
			if cmd.mutate != nil {
				cmd.mutate(cc, trip)
			}
			w.ledger.Apply(trip)
			trip.UpdatedAt = cc.now
			return nil
		})
		if err != nil {
			return err
		}
		after = updated

		record := &entity.TransitionHistory{
			TripID:        cmd.tripID,
			ActorID:       cc.actor.ID,
			Command:       cmd.trigger.String(),
			PreviousState: before.State.String(),
			NewState:      updated.State.String(),
			Timestamp:     cc.now,
		}
		if cmd.note != nil {
			record.Note = cmd.note(before, updated)
		}
		if err := w.history.Create(txCtx, record); err != nil {
			return fmt.Errorf("failed to create history record: %w", err)
		}
		return nil
	})
	return before, after, err
}

// afterCommit runs the best-effort side effects of a committed command
func (w *tripWorkflow) afterCommit(ctx context.Context, cmd command, cc *commandContext, before, after *entity.TripRequest) {
	w.logger.Info("Trip transitioned",
		"trip_id", after.ID,
		"command", cmd.trigger,
		"actor_id", cc.actor.ID,
		"from", before.State,
		"to", after.State,
	)

	if w.dispatcher != nil {
		w.dispatcher.DispatchAsync(ctx, event.NewEvent(event.TypeTripTransitioned, after.ID, map[string]interface{}{
			event.KeyCommand:   cmd.trigger.String(),
			event.KeyActorID:   cc.actor.ID,
			event.KeyFromState: before.State.String(),
			event.KeyToState:   after.State.String(),
		}))
	}

	if in, ok := cmd.payload.(SubmitExpensesInput); ok && len(in.AttachmentIDs) > 0 && w.attach != nil {
		if err := w.attach.Link(ctx, in.AttachmentIDs, after.ID); err != nil {
			w.logger.Error("Failed to link attachments", "trip_id", after.ID, "error", err)
		}
	}

	if cmd.notify == nil || w.router == nil {
		return
	}
	for _, n := range cmd.notify(cc, before, after) {
		var err error
		if n.restricted {
			_, err = w.router.NotifyRestricted(ctx, after, cc.actor.ID, n.body, n.recipients)
		} else {
			err = w.router.NotifyPublic(ctx, after, cc.actor.ID, n.body, n.recipients)
		}
		if err != nil {
			w.logger.Error("Failed to notify stakeholders",
				"trip_id", after.ID,
				"command", cmd.trigger,
				"error", err,
			)
		}
	}
}

// reject logs a failed command and emits a rejection event
func (w *tripWorkflow) reject(ctx context.Context, cmd command, err error) error {
	kind := domainwf.KindOf(err)
	fields := []interface{}{
		"trip_id", cmd.tripID,
		"command", cmd.trigger,
		"actor_id", cmd.actor.ID,
		"acting_as_assignee", cmd.actor.ActingAsAssignee,
		"error", err,
	}

	switch {
	case kind == domainwf.KindPermissionDenied:
		w.logger.Warn("Command denied", fields...)
	case kind != "" || errors.Is(err, port.ErrTripNotFound):
		w.logger.Info("Command rejected", fields...)
	default:
		w.logger.Error("Command failed", fields...)
	}

	if w.dispatcher != nil {
		w.dispatcher.DispatchAsync(ctx, event.NewEvent(event.TypeCommandRejected, cmd.tripID, map[string]interface{}{
			event.KeyCommand:   cmd.trigger.String(),
			event.KeyActorID:   cmd.actor.ID,
			event.KeyErrorKind: string(kind),
		}))
	}
	return err
}

func (w *tripWorkflow) resolveActor(ctx context.Context, trigger domainwf.Trigger, actorID string) (*entity.User, error) {
	if actorID == "" {
		return nil, domainwf.PermissionDenied(trigger, "no actor")
	}
	user, err := w.users.GetUser(ctx, actorID)
	if errors.Is(err, port.ErrUserNotFound) {
		return nil, domainwf.PermissionDenied(trigger, "unknown actor")
	}
	if err != nil {
		return nil, fmt.Errorf("resolve actor: %w", err)
	}
	return user, nil
}

// lookupUser returns nil for an unknown id
func (w *tripWorkflow) lookupUser(ctx context.Context, id string) (*entity.User, error) {
	user, err := w.users.GetUser(ctx, id)
	if errors.Is(err, port.ErrUserNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user %s: %w", id, err)
	}
	return user, nil
}

// AvailableCommands dry-runs every configured trigger on a copy of the trip
func (w *tripWorkflow) AvailableCommands(ctx context.Context, tripID int64, actor Actor) ([]domainwf.Trigger, error) {
	user, err := w.resolveActor(ctx, "", actor.ID)
	if err != nil {
		return nil, err
	}
	trip, err := w.trips.Get(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if !trip.State.IsValid() {
		return nil, fmt.Errorf("%w: trip %d has state %q", domainwf.ErrInvalidState, trip.ID, trip.State)
	}

	caps := w.roles.Resolve(user, trip, actor.ActingAsAssignee)
	now := w.clock.Now()

	var available []domainwf.Trigger
	for _, trigger := range w.builder.Build(trip.State).PermittedTriggers() {
		cc := &commandContext{
			trigger:       trigger,
			actor:         user,
			acting:        actor.ActingAsAssignee,
			trip:          trip.Clone(),
			caps:          caps,
			now:           now,
			undoDaysLimit: w.undoDaysLimit,
			ledger:        w.ledger,
		}
		err := w.builder.Build(trip.State).Fire(withCommand(ctx, cc), trigger)
		if errors.Is(err, domainwf.ErrPermissionDenied) || errors.Is(err, domainwf.ErrInvalidTransition) {
			continue
		}
		available = append(available, trigger)
	}
	return available, nil
}
