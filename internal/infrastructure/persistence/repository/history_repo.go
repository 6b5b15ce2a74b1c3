package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/trip-approval/internal/application/port"
	"github.com/garyjia/trip-approval/internal/domain/entity"
	"github.com/garyjia/trip-approval/internal/infrastructure/persistence/sqlite"
)

// HistoryRepository implements port.HistoryRepository
type HistoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *sql.DB, logger *zap.Logger) *HistoryRepository {
	return &HistoryRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends a transition record
func (r *HistoryRepository) Create(ctx context.Context, history *entity.TransitionHistory) error {
	query := `
		INSERT INTO trip_history (
			trip_id, actor_id, command, previous_state, new_state, note, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		history.TripID,
		history.ActorID,
		history.Command,
		history.PreviousState,
		history.NewState,
		history.Note,
		history.Timestamp,
	)
	if err != nil {
		r.logger.Error("Failed to create history record", zap.Int64("trip_id", history.TripID), zap.Error(err))
		return fmt.Errorf("failed to create history: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	history.ID = id
	return nil
}

// ListByTrip retrieves the audit trail of a trip in the order it was written
func (r *HistoryRepository) ListByTrip(ctx context.Context, tripID int64) ([]*entity.TransitionHistory, error) {
	query := `
		SELECT id, trip_id, actor_id, command, previous_state, new_state, note, timestamp
		FROM trip_history
		WHERE trip_id = ?
		ORDER BY timestamp ASC, id ASC
	`

	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx, query, tripID)
	if err != nil {
		r.logger.Error("Failed to list history", zap.Int64("trip_id", tripID), zap.Error(err))
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	defer rows.Close()

	var records []*entity.TransitionHistory
	for rows.Next() {
		var record entity.TransitionHistory
		err := rows.Scan(
			&record.ID,
			&record.TripID,
			&record.ActorID,
			&record.Command,
			&record.PreviousState,
			&record.NewState,
			&record.Note,
			&record.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history record: %w", err)
		}
		records = append(records, &record)
	}

	return records, rows.Err()
}

// Verify interface compliance
var _ port.HistoryRepository = (*HistoryRepository)(nil)
