package entity

import "time"

// AttachmentLink ties an externally stored document to a trip
type AttachmentLink struct {
	TripID       int64     `json:"trip_id"`
	AttachmentID string    `json:"attachment_id"`
	LinkedAt     time.Time `json:"linked_at"`
}
