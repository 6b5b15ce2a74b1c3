package port

import (
	"context"
	"time"

	"github.com/garyjia/trip-approval/internal/domain/entity"
)

// NotificationSink stores posted messages.
// Recipients are user ids; restricted messages are visible only to them.
type NotificationSink interface {
	PostPublic(ctx context.Context, tripID int64, authorID, body string, recipientIDs []string) (*entity.Message, error)
	PostRestricted(ctx context.Context, tripID int64, authorID, body string, recipientIDs []string) (*entity.Message, error)
	ListRestrictedSince(ctx context.Context, tripID int64, since time.Time) ([]*entity.Message, error)
}

// UserDirectory resolves actors and the default travel approver
type UserDirectory interface {
	GetUser(ctx context.Context, id string) (*entity.User, error)
	DefaultTravelApprover(ctx context.Context) (*entity.User, error)
}

// MessageDeliverer pushes a posted message to a user's IM inbox
type MessageDeliverer interface {
	Deliver(ctx context.Context, user *entity.User, msg *entity.Message) error
}

// Clock returns the current time
type Clock interface {
	Now() time.Time
}
