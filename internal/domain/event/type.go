package event

// Type identifies the type of domain event
type Type string

const (
	TypeTripCreated         Type = "trip.created"
	TypeTripTransitioned    Type = "trip.transitioned"
	TypeCommandRejected     Type = "trip.command_rejected"
	TypeReminderSent        Type = "trip.reminder_sent"
	TypeMessagePosted       Type = "message.posted"
	TypeMessageDeduplicated Type = "message.deduplicated"
	TypeNotificationFailed  Type = "notification.failed"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeTripCreated,
		TypeTripTransitioned,
		TypeCommandRejected,
		TypeReminderSent,
		TypeMessagePosted,
		TypeMessageDeduplicated,
		TypeNotificationFailed:
		return true
	default:
		return false
	}
}

// AllTypes returns every defined event type
func AllTypes() []Type {
	return []Type{
		TypeTripCreated,
		TypeTripTransitioned,
		TypeCommandRejected,
		TypeReminderSent,
		TypeMessagePosted,
		TypeMessageDeduplicated,
		TypeNotificationFailed,
	}
}
