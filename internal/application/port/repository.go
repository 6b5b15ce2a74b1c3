package port

import (
	"context"
	"errors"
	"time"

	"github.com/garyjia/trip-approval/internal/domain/entity"
	"github.com/garyjia/trip-approval/internal/domain/workflow"
)

var (
	// ErrTripNotFound is returned when no trip exists for an id
	ErrTripNotFound = errors.New("trip not found")

	// ErrUserNotFound is returned when the directory has no such user
	ErrUserNotFound = errors.New("user not found")
)

// TripMutator changes a trip in place. Returning an error discards the change.
type TripMutator func(trip *entity.TripRequest) error

// TripRepository is the entity store for trip requests.
// AtomicUpdate loads the trip, applies the mutator to a copy and writes it back
// only if nobody else wrote the trip in between; otherwise it returns a
// workflow.ErrStaleWrite error.
type TripRepository interface {
	Create(ctx context.Context, trip *entity.TripRequest) error
	Get(ctx context.Context, id int64) (*entity.TripRequest, error)
	AtomicUpdate(ctx context.Context, id int64, mutate TripMutator) (*entity.TripRequest, error)
	ListByState(ctx context.Context, states ...workflow.State) ([]*entity.TripRequest, error)
}

// HistoryRepository persists the transition audit trail
type HistoryRepository interface {
	Create(ctx context.Context, history *entity.TransitionHistory) error
	ListByTrip(ctx context.Context, tripID int64) ([]*entity.TransitionHistory, error)
}

// MessageRepository persists posted messages
type MessageRepository interface {
	Create(ctx context.Context, msg *entity.Message) error
	ListByTrip(ctx context.Context, tripID int64) ([]*entity.Message, error)
	ListRestrictedSince(ctx context.Context, tripID int64, since time.Time) ([]*entity.Message, error)
}

// UserRepository persists the user directory
type UserRepository interface {
	Upsert(ctx context.Context, user *entity.User) error
	GetByID(ctx context.Context, id string) (*entity.User, error)
	ListByGroup(ctx context.Context, group string) ([]*entity.User, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
