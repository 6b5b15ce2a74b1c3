package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/garyjia/trip-approval/internal/application/port"
	"github.com/garyjia/trip-approval/internal/domain/entity"
	"github.com/garyjia/trip-approval/internal/infrastructure/persistence/sqlite"
)

// MessageRepository stores trip messages and serves as the notification sink
type MessageRepository struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

// MessageOption configures the message repository
type MessageOption func(*MessageRepository)

// WithMessageClock stamps new messages with c instead of the wall clock
func WithMessageClock(c port.Clock) MessageOption {
	return func(r *MessageRepository) {
		if c != nil {
			r.now = c.Now
		}
	}
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(db *sql.DB, logger *zap.Logger, opts ...MessageOption) *MessageRepository {
	r := &MessageRepository{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create inserts msg, assigning an ID and timestamp when missing
func (r *MessageRepository) Create(ctx context.Context, msg *entity.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = r.now()
	}
	// stored as UTC text so created_at compares lexically
	msg.CreatedAt = msg.CreatedAt.UTC()
	if msg.RecipientIDs == nil {
		msg.RecipientIDs = []string{}
	}

	recipients, err := json.Marshal(msg.RecipientIDs)
	if err != nil {
		return fmt.Errorf("failed to encode recipients: %w", err)
	}

	query := `
		INSERT INTO trip_messages (
			id, trip_id, author_id, visibility, body, recipient_ids, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err = sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		msg.ID,
		msg.TripID,
		msg.AuthorID,
		msg.Visibility,
		msg.Body,
		string(recipients),
		msg.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create message",
			zap.Int64("trip_id", msg.TripID),
			zap.String("visibility", msg.Visibility),
			zap.Error(err))
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

// PostPublic implements port.NotificationSink
func (r *MessageRepository) PostPublic(ctx context.Context, tripID int64, authorID, body string, recipientIDs []string) (*entity.Message, error) {
	return r.post(ctx, tripID, authorID, entity.VisibilityPublic, body, recipientIDs)
}

// PostRestricted implements port.NotificationSink
func (r *MessageRepository) PostRestricted(ctx context.Context, tripID int64, authorID, body string, recipientIDs []string) (*entity.Message, error) {
	return r.post(ctx, tripID, authorID, entity.VisibilityRestricted, body, recipientIDs)
}

func (r *MessageRepository) post(ctx context.Context, tripID int64, authorID, visibility, body string, recipientIDs []string) (*entity.Message, error) {
	msg := &entity.Message{
		TripID:       tripID,
		AuthorID:     authorID,
		Visibility:   visibility,
		Body:         body,
		RecipientIDs: append([]string(nil), recipientIDs...),
	}
	if err := r.Create(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// ListByTrip retrieves every message of a trip, oldest first
func (r *MessageRepository) ListByTrip(ctx context.Context, tripID int64) ([]*entity.Message, error) {
	query := `
		SELECT id, trip_id, author_id, visibility, body, recipient_ids, created_at
		FROM trip_messages
		WHERE trip_id = ?
		ORDER BY created_at ASC, rowid ASC
	`
	return r.query(ctx, query, tripID)
}

// ListRestrictedSince retrieves restricted messages created at or after since
func (r *MessageRepository) ListRestrictedSince(ctx context.Context, tripID int64, since time.Time) ([]*entity.Message, error) {
	query := `
		SELECT id, trip_id, author_id, visibility, body, recipient_ids, created_at
		FROM trip_messages
		WHERE trip_id = ? AND visibility = ? AND created_at >= ?
		ORDER BY created_at ASC, rowid ASC
	`
	return r.query(ctx, query, tripID, entity.VisibilityRestricted, since.UTC())
}

func (r *MessageRepository) query(ctx context.Context, query string, args ...interface{}) ([]*entity.Message, error) {
	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list messages", zap.Error(err))
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var messages []*entity.Message
	for rows.Next() {
		var msg entity.Message
		var recipients string
		if err := rows.Scan(
			&msg.ID,
			&msg.TripID,
			&msg.AuthorID,
			&msg.Visibility,
			&msg.Body,
			&recipients,
			&msg.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		if err := json.Unmarshal([]byte(recipients), &msg.RecipientIDs); err != nil {
			return nil, fmt.Errorf("failed to decode recipients: %w", err)
		}
		messages = append(messages, &msg)
	}

	return messages, rows.Err()
}

// Verify interface compliance
var (
	_ port.MessageRepository = (*MessageRepository)(nil)
	_ port.NotificationSink  = (*MessageRepository)(nil)
)
