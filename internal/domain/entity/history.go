package entity

import "time"

// TransitionHistory is one entry of a trip's audit trail
type TransitionHistory struct {
	ID            int64     `json:"id"`
	TripID        int64     `json:"trip_id"`
	ActorID       string    `json:"actor_id"`
	Command       string    `json:"command"`
	PreviousState string    `json:"previous_state"`
	NewState      string    `json:"new_state"`
	Note          string    `json:"note,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}
