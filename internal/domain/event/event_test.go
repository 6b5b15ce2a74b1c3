package event

import (
	"testing"
	"time"
)

type stringer string

func (s stringer) String() string { return string(s) }

func TestType_IsValid(t *testing.T) {
	for _, typ := range AllTypes() {
		if !typ.IsValid() {
			t.Errorf("%s should be valid", typ)
		}
	}
	if Type("instance.created").IsValid() {
		t.Error("unknown type should be invalid")
	}
}

func TestType_String(t *testing.T) {
	if got := TypeTripTransitioned.String(); got != "trip.transitioned" {
		t.Errorf("Type.String() = %v, want %v", got, "trip.transitioned")
	}
}

func TestNewEvent(t *testing.T) {
	before := time.Now()
	evt := NewEvent(TypeTripCreated, 42, map[string]interface{}{KeyActorID: "emp"})

	if evt.ID == "" {
		t.Error("event ID should be generated")
	}
	if evt.CorrelationID != evt.ID {
		t.Error("a new chain should correlate to its own ID")
	}
	if evt.TripID != 42 {
		t.Errorf("TripID = %d, want 42", evt.TripID)
	}
	if evt.Timestamp.Before(before) {
		t.Error("timestamp should not precede creation")
	}

	other := NewEvent(TypeTripCreated, 42, nil)
	if other.ID == evt.ID {
		t.Error("event IDs should be unique")
	}
}

func TestNewEventWithCorrelation(t *testing.T) {
	evt := NewEventWithCorrelation(TypeReminderSent, 1, nil, "chain-1")
	if evt.CorrelationID != "chain-1" {
		t.Errorf("CorrelationID = %s, want chain-1", evt.CorrelationID)
	}
}

func TestEvent_WithPayloadKeepsOriginal(t *testing.T) {
	evt := NewEvent(TypeTripTransitioned, 1, map[string]interface{}{KeyCommand: "SUBMIT"})
	next := evt.WithPayload(KeyToState, "submitted")

	if _, ok := evt.Payload[KeyToState]; ok {
		t.Error("original payload should not be modified")
	}
	if next.GetPayloadString(KeyToState) != "submitted" {
		t.Error("new payload should contain the added key")
	}
	if next.ID != evt.ID {
		t.Error("WithPayload should keep the event ID")
	}
}

func TestEvent_GetPayload(t *testing.T) {
	evt := NewEvent(TypeCommandRejected, 1, map[string]interface{}{
		KeyCommand:   stringer("CANCEL"),
		KeyErrorKind: "permission_denied",
		"flag":       true,
		"number":     3,
	})

	if got := evt.GetPayloadString(KeyCommand); got != "CANCEL" {
		t.Errorf("GetPayloadString(stringer) = %q", got)
	}
	if got := evt.GetPayloadString("number"); got != "" {
		t.Errorf("GetPayloadString(non-string) = %q, want empty", got)
	}
	if !evt.GetPayloadBool("flag") {
		t.Error("GetPayloadBool should return true")
	}
	if evt.GetPayloadBool("missing") {
		t.Error("GetPayloadBool should default to false")
	}
}
