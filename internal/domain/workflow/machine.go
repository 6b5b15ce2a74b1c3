package workflow

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// StateMachine tracks the current state and validates transitions
type StateMachine interface {
	// State returns the current state
	State() State

	// CanFire returns true if the trigger is configured for the current state.
	// Guards are not evaluated.
	CanFire(trigger Trigger) bool

	// Fire attempts to execute the trigger, transitioning to the new state if allowed
	Fire(ctx context.Context, trigger Trigger) error

	// PermittedTriggers returns all triggers configured for the current state
	PermittedTriggers() []Trigger
}

// State returns the current state
func (m *stateMachine) State() State {
	return m.currentState
}

// CanFire returns true if the trigger is configured for the current state
func (m *stateMachine) CanFire(trigger Trigger) bool {
	config, exists := m.configurations[m.currentState]
	if !exists {
		return false
	}
	return len(config.transitions[trigger]) > 0
}

// Fire evaluates the transitions configured for trigger in order and takes the
// first one whose guard passes. The state is left untouched on any error.
func (m *stateMachine) Fire(ctx context.Context, trigger Trigger) error {
	if !m.CanFire(trigger) {
		return InvalidTransition(trigger, m.currentState, "command not allowed in this state")
	}

	for _, t := range m.configurations[m.currentState].transitions[trigger] {
		if t.guard == nil {
			m.currentState = t.toState
			return nil
		}
		err := t.guard(ctx)
		if err == nil {
			m.currentState = t.toState
			return nil
		}
		if !errors.Is(err, ErrGuardFailed) {
			return err
		}
	}

	return fmt.Errorf("%w: trigger %s from state %s", ErrGuardFailed, trigger, m.currentState)
}

// PermittedTriggers returns all triggers configured for the current state, sorted by name
func (m *stateMachine) PermittedTriggers() []Trigger {
	config, exists := m.configurations[m.currentState]
	if !exists {
		return []Trigger{}
	}

	triggers := make([]Trigger, 0, len(config.transitions))
	for trigger := range config.transitions {
		triggers = append(triggers, trigger)
	}
	sort.Slice(triggers, func(i, j int) bool { return triggers[i] < triggers[j] })

	return triggers
}
