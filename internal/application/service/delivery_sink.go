package service

import (
	"context"
	"time"

	"github.com/garyjia/trip-approval/internal/application/port"
	"github.com/garyjia/trip-approval/internal/domain/entity"
)

// DeliveringSink stores messages in the wrapped sink and then pushes them to
// each recipient's IM inbox. Delivery failures never fail the post.
type DeliveringSink struct {
	inner     port.NotificationSink
	users     port.UserDirectory
	deliverer port.MessageDeliverer
	logger    Logger
}

// NewDeliveringSink wraps inner with IM delivery
func NewDeliveringSink(inner port.NotificationSink, users port.UserDirectory, deliverer port.MessageDeliverer, logger Logger) *DeliveringSink {
	return &DeliveringSink{
		inner:     inner,
		users:     users,
		deliverer: deliverer,
		logger:    logger,
	}
}

// PostPublic implements port.NotificationSink
func (s *DeliveringSink) PostPublic(ctx context.Context, tripID int64, authorID, body string, recipientIDs []string) (*entity.Message, error) {
	msg, err := s.inner.PostPublic(ctx, tripID, authorID, body, recipientIDs)
	if err != nil {
		return nil, err
	}
	s.deliver(ctx, msg)
	return msg, nil
}

// PostRestricted implements port.NotificationSink
func (s *DeliveringSink) PostRestricted(ctx context.Context, tripID int64, authorID, body string, recipientIDs []string) (*entity.Message, error) {
	msg, err := s.inner.PostRestricted(ctx, tripID, authorID, body, recipientIDs)
	if err != nil {
		return nil, err
	}
	s.deliver(ctx, msg)
	return msg, nil
}

// ListRestrictedSince implements port.NotificationSink
func (s *DeliveringSink) ListRestrictedSince(ctx context.Context, tripID int64, since time.Time) ([]*entity.Message, error) {
	return s.inner.ListRestrictedSince(ctx, tripID, since)
}

func (s *DeliveringSink) deliver(ctx context.Context, msg *entity.Message) {
	for _, id := range msg.RecipientIDs {
		if id == msg.AuthorID {
			continue
		}
		user, err := s.users.GetUser(ctx, id)
		if err != nil {
			s.logger.Warn("Skipping delivery to unknown recipient", "trip_id", msg.TripID, "user_id", id, "error", err)
			continue
		}
		if err := s.deliverer.Deliver(ctx, user, msg); err != nil {
			s.logger.Error("Failed to deliver message", "trip_id", msg.TripID, "user_id", id, "error", err)
		}
	}
}

var _ port.NotificationSink = (*DeliveringSink)(nil)
