package entity

import "time"

// Message is a notification posted on a trip.
// Restricted messages are visible only to their recipients.
type Message struct {
	ID           string    `json:"id"`
	TripID       int64     `json:"trip_id"`
	AuthorID     string    `json:"author_id"`
	Visibility   string    `json:"visibility"`
	Body         string    `json:"body"`
	RecipientIDs []string  `json:"recipient_ids"`
	CreatedAt    time.Time `json:"created_at"`
}

// IsRestricted reports whether the message has restricted visibility
func (m *Message) IsRestricted() bool {
	return m.Visibility == VisibilityRestricted
}

// VisibleTo reports whether userID may read the message
func (m *Message) VisibleTo(userID string) bool {
	if !m.IsRestricted() {
		return true
	}
	if m.AuthorID == userID {
		return true
	}
	for _, id := range m.RecipientIDs {
		if id == userID {
			return true
		}
	}
	return false
}
