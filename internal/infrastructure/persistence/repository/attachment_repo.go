package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/trip-approval/internal/application/port"
	"github.com/garyjia/trip-approval/internal/domain/entity"
	"github.com/garyjia/trip-approval/internal/infrastructure/persistence/sqlite"
)

// AttachmentRepository implements port.AttachmentStore
type AttachmentRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAttachmentRepository creates a new attachment repository
func NewAttachmentRepository(db *sql.DB, logger *zap.Logger) *AttachmentRepository {
	return &AttachmentRepository{
		db:     db,
		logger: logger,
	}
}

// Link ties attachment ids to a trip. Linking an id twice is a no-op.
func (r *AttachmentRepository) Link(ctx context.Context, attachmentIDs []string, tripID int64) error {
	if len(attachmentIDs) == 0 {
		return nil
	}

	query := `
		INSERT INTO trip_attachments (trip_id, attachment_id, linked_at)
		VALUES (?, ?, ?)
		ON CONFLICT (trip_id, attachment_id) DO NOTHING
	`

	now := time.Now()
	exec := sqlite.ExecutorFor(ctx, r.db)
	for _, id := range attachmentIDs {
		if id == "" {
			continue
		}
		if _, err := exec.ExecContext(ctx, query, tripID, id, now); err != nil {
			r.logger.Error("Failed to link attachment",
				zap.Int64("trip_id", tripID),
				zap.String("attachment_id", id),
				zap.Error(err))
			return fmt.Errorf("failed to link attachment %s: %w", id, err)
		}
	}
	return nil
}

// ListByTrip retrieves the attachments linked to a trip
func (r *AttachmentRepository) ListByTrip(ctx context.Context, tripID int64) ([]*entity.AttachmentLink, error) {
	query := `
		SELECT trip_id, attachment_id, linked_at
		FROM trip_attachments
		WHERE trip_id = ?
		ORDER BY linked_at ASC, attachment_id ASC
	`

	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx, query, tripID)
	if err != nil {
		r.logger.Error("Failed to list attachments", zap.Int64("trip_id", tripID), zap.Error(err))
		return nil, fmt.Errorf("failed to list attachments: %w", err)
	}
	defer rows.Close()

	var links []*entity.AttachmentLink
	for rows.Next() {
		var link entity.AttachmentLink
		if err := rows.Scan(&link.TripID, &link.AttachmentID, &link.LinkedAt); err != nil {
			return nil, fmt.Errorf("failed to scan attachment: %w", err)
		}
		links = append(links, &link)
	}

	return links, rows.Err()
}

// Verify interface compliance
var _ port.AttachmentStore = (*AttachmentRepository)(nil)
