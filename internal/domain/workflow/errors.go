package workflow

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidTransition is returned when a command is not allowed from the current state
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrInvalidState is returned when a state is not valid
	ErrInvalidState = errors.New("invalid state")

	// ErrGuardFailed is returned by a guard to fall through to the next permitted transition
	ErrGuardFailed = errors.New("guard condition failed")

	// ErrPermissionDenied is returned when the actor lacks the role a command requires
	ErrPermissionDenied = errors.New("permission denied")

	// ErrValidation is returned when required fields are missing or malformed
	ErrValidation = errors.New("validation failed")

	// ErrBudget is returned when a budget or cost is not positive where it must be
	ErrBudget = errors.New("budget error")

	// ErrStaleWrite is returned when the trip was modified concurrently
	ErrStaleWrite = errors.New("stale write")
)

// Kind classifies a workflow failure
type Kind string

const (
	KindInvalidTransition Kind = "invalid_transition"
	KindPermissionDenied  Kind = "permission_denied"
	KindValidation        Kind = "validation_error"
	KindBudget            Kind = "budget_error"
	KindStaleWrite        Kind = "stale_write"
)

var kindSentinels = map[Kind]error{
	KindInvalidTransition: ErrInvalidTransition,
	KindPermissionDenied:  ErrPermissionDenied,
	KindValidation:        ErrValidation,
	KindBudget:            ErrBudget,
	KindStaleWrite:        ErrStaleWrite,
}

// Error is the value returned for every expected command failure.
// errors.Is matches it against the sentinel of its Kind.
type Error struct {
	Kind          Kind
	Trigger       Trigger
	State         State
	Message       string
	MissingFields []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Trigger != "" {
		fmt.Fprintf(&b, ": %s", e.Trigger)
	}
	if e.State != "" {
		fmt.Fprintf(&b, " from %s", e.State)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	if len(e.MissingFields) > 0 {
		fmt.Fprintf(&b, " [%s]", strings.Join(e.MissingFields, ", "))
	}
	return b.String()
}

// Unwrap exposes the kind sentinel
func (e *Error) Unwrap() error {
	return kindSentinels[e.Kind]
}

// InvalidTransition builds a KindInvalidTransition error
func InvalidTransition(trigger Trigger, state State, msg string) *Error {
	return &Error{Kind: KindInvalidTransition, Trigger: trigger, State: state, Message: msg}
}

// PermissionDenied builds a KindPermissionDenied error
func PermissionDenied(trigger Trigger, msg string) *Error {
	return &Error{Kind: KindPermissionDenied, Trigger: trigger, Message: msg}
}

// Validation builds a KindValidation error listing the offending fields
func Validation(trigger Trigger, fields ...string) *Error {
	return &Error{Kind: KindValidation, Trigger: trigger, Message: "missing or invalid fields", MissingFields: fields}
}

// Budget builds a KindBudget error
func Budget(trigger Trigger, msg string) *Error {
	return &Error{Kind: KindBudget, Trigger: trigger, Message: msg}
}

// StaleWrite builds a KindStaleWrite error
func StaleWrite(msg string) *Error {
	return &Error{Kind: KindStaleWrite, Message: msg}
}

// KindOf returns the kind of a workflow error, or "" for any other error
func KindOf(err error) Kind {
	var wfErr *Error
	if errors.As(err, &wfErr) {
		return wfErr.Kind
	}
	return ""
}
