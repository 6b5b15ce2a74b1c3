package service

import (
	"context"
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/garyjia/trip-approval/internal/application/dispatcher"
	"github.com/garyjia/trip-approval/internal/application/port"
	"github.com/garyjia/trip-approval/internal/domain/entity"
	"github.com/garyjia/trip-approval/internal/domain/event"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// DefaultDedupWindow is how far back restricted messages are compared for duplicates
const DefaultDedupWindow = 5 * time.Minute

// NotificationRouter posts public and restricted messages on trips
type NotificationRouter interface {
	// NotifyPublic posts a requester-facing status update.
	// A nil recipient list defaults to the requester.
	NotifyPublic(ctx context.Context, trip *entity.TripRequest, authorID, body string, recipientIDs []string) error

	// NotifyRestricted posts a message visible only to its recipients.
	// A nil recipient list defaults to the manager and organizer minus the author.
	// It reports false when the message was skipped as a duplicate or had no recipients.
	NotifyRestricted(ctx context.Context, trip *entity.TripRequest, authorID, body string, recipientIDs []string) (bool, error)
}

type notificationRouter struct {
	sink        port.NotificationSink
	clock       port.Clock
	dispatcher  dispatcher.Dispatcher
	dedupWindow time.Duration
	logger      Logger
}

// RouterOption configures the notification router
type RouterOption func(*notificationRouter)

// WithDedupWindow overrides the restricted-message duplicate window
func WithDedupWindow(window time.Duration) RouterOption {
	return func(r *notificationRouter) {
		r.dedupWindow = window
	}
}

// WithRouterDispatcher emits message events to d
func WithRouterDispatcher(d dispatcher.Dispatcher) RouterOption {
	return func(r *notificationRouter) {
		r.dispatcher = d
	}
}

// NewNotificationRouter creates a new NotificationRouter
func NewNotificationRouter(sink port.NotificationSink, clock port.Clock, logger Logger, opts ...RouterOption) NotificationRouter {
	r := &notificationRouter{
		sink:        sink,
		clock:       clock,
		dedupWindow: DefaultDedupWindow,
		logger:      logger,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// NotifyPublic posts a public message on the trip
func (r *notificationRouter) NotifyPublic(ctx context.Context, trip *entity.TripRequest, authorID, body string, recipientIDs []string) error {
	if recipientIDs == nil {
		recipientIDs = []string{trip.RequesterID}
	}

	msg, err := r.sink.PostPublic(ctx, trip.ID, authorID, body, uniqueIDs(recipientIDs, ""))
	if err != nil {
		r.emit(ctx, event.TypeNotificationFailed, trip.ID, entity.VisibilityPublic)
		return fmt.Errorf("post public message: %w", err)
	}

	r.logger.Info("Public message posted", "trip_id", trip.ID, "message_id", msg.ID, "recipients", len(msg.RecipientIDs))
	r.emit(ctx, event.TypeMessagePosted, trip.ID, entity.VisibilityPublic)
	return nil
}

// NotifyRestricted posts a restricted message unless an identical one was
// posted on the same trip within the dedup window
func (r *notificationRouter) NotifyRestricted(ctx context.Context, trip *entity.TripRequest, authorID, body string, recipientIDs []string) (bool, error) {
	if recipientIDs == nil {
		recipientIDs = []string{trip.ManagerID, trip.OrganizerID}
	}
	recipients := uniqueIDs(recipientIDs, authorID)
	if len(recipients) == 0 {
		r.logger.Info("Restricted message has no recipients, skipping", "trip_id", trip.ID)
		return false, nil
	}

	duplicate, err := r.isDuplicate(ctx, trip.ID, body)
	if err != nil {
		// A failed lookup must not suppress the message
		r.logger.Error("Failed to check recent restricted messages", "trip_id", trip.ID, "error", err)
	}
	if duplicate {
		r.logger.Info("Duplicate restricted message skipped", "trip_id", trip.ID)
		r.emit(ctx, event.TypeMessageDeduplicated, trip.ID, entity.VisibilityRestricted)
		return false, nil
	}

	msg, err := r.sink.PostRestricted(ctx, trip.ID, authorID, body, recipients)
	if err != nil {
		r.emit(ctx, event.TypeNotificationFailed, trip.ID, entity.VisibilityRestricted)
		return false, fmt.Errorf("post restricted message: %w", err)
	}

	r.logger.Info("Restricted message posted", "trip_id", trip.ID, "message_id", msg.ID, "recipients", len(recipients))
	r.emit(ctx, event.TypeMessagePosted, trip.ID, entity.VisibilityRestricted)
	return true, nil
}

func (r *notificationRouter) isDuplicate(ctx context.Context, tripID int64, body string) (bool, error) {
	since := r.clock.Now().Add(-r.dedupWindow)
	recent, err := r.sink.ListRestrictedSince(ctx, tripID, since)
	if err != nil {
		return false, err
	}

	normalized := NormalizeBody(body)
	for _, msg := range recent {
		if NormalizeBody(msg.Body) == normalized {
			return true, nil
		}
	}
	return false, nil
}

func (r *notificationRouter) emit(ctx context.Context, eventType event.Type, tripID int64, visibility string) {
	if r.dispatcher == nil {
		return
	}
	_ = r.dispatcher.Dispatch(ctx, event.NewEvent(eventType, tripID, map[string]interface{}{
		event.KeyVisibility: visibility,
	}))
}

var markupPattern = regexp.MustCompile(`<[^>]+>`)

// NormalizeBody strips markup, decodes entities and collapses whitespace
func NormalizeBody(body string) string {
	text := markupPattern.ReplaceAllString(body, " ")
	text = html.UnescapeString(text)
	return strings.Join(strings.Fields(text), " ")
}

// uniqueIDs drops empty ids, duplicates and exclude, keeping the input order
func uniqueIDs(ids []string, exclude string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || id == exclude || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
