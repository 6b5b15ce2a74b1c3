package port

import (
	"context"

	"github.com/garyjia/trip-approval/internal/domain/entity"
)

// AttachmentStore links externally stored documents to trips
type AttachmentStore interface {
	Link(ctx context.Context, attachmentIDs []string, tripID int64) error
	ListByTrip(ctx context.Context, tripID int64) ([]*entity.AttachmentLink, error)
}
