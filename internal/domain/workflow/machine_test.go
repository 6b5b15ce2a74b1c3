package workflow

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestState_IsTerminal(t *testing.T) {
	tests := []struct {
		state    State
		expected bool
	}{
		{StateDraft, false},
		{StateSubmitted, false},
		{StateReturned, false},
		{StatePendingOrganization, false},
		{StateOrganizationDone, false},
		{StateExpenseSubmitted, false},
		{StateExpenseReturned, false},
		{StateRejected, true},
		{StateCompleted, true},
		{StateCancelled, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			if got := tt.state.IsTerminal(); got != tt.expected {
				t.Errorf("State.IsTerminal() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestState_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		state    State
		expected bool
	}{
		{"draft", StateDraft, true},
		{"completed", StateCompleted, true},
		{"awaiting expense alias", StateAwaitingExpense, true},
		{"invalid state", State("INVALID"), false},
		{"empty state", State(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsValid(); got != tt.expected {
				t.Errorf("State.IsValid() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestState_AllStatesAreValid(t *testing.T) {
	states := AllStates()
	if len(states) != len(validStates) {
		t.Fatalf("AllStates() returned %d states, want %d", len(states), len(validStates))
	}
	for _, s := range states {
		if !s.IsValid() {
			t.Errorf("state %s should be valid", s)
		}
	}
}

func TestState_IsEditable(t *testing.T) {
	if !StateDraft.IsEditable() || !StateReturned.IsEditable() {
		t.Error("draft and returned should be editable")
	}
	if StateSubmitted.IsEditable() {
		t.Error("submitted should not be editable")
	}
}

func TestFormState_IsValid(t *testing.T) {
	if !FormCompleted.IsValid() {
		t.Error("form_completed should be valid")
	}
	if FormState("half_done").IsValid() {
		t.Error("unknown form state should be invalid")
	}
}

func TestTrigger_String(t *testing.T) {
	if got := TriggerSubmit.String(); got != "SUBMIT" {
		t.Errorf("Trigger.String() = %v, want %v", got, "SUBMIT")
	}
}

func TestBuilder_Configure(t *testing.T) {
	builder := NewBuilder()

	config := builder.Configure(StateDraft)
	if config == nil {
		t.Fatal("Configure() returned nil")
	}

	config2 := builder.Configure(StateDraft)
	if config != config2 {
		t.Error("Configure() should return same config for same state")
	}
}

func TestBuilder_ConfigurePanicsOnInvalidState(t *testing.T) {
	builder := NewBuilder()

	defer func() {
		if r := recover(); r == nil {
			t.Error("Configure() should panic on invalid state")
		}
	}()

	builder.Configure(State("INVALID"))
}

func TestBuilder_BuildPanicsOnInvalidInitialState(t *testing.T) {
	builder := NewBuilder()

	defer func() {
		if r := recover(); r == nil {
			t.Error("Build() should panic on invalid initial state")
		}
	}()

	builder.Build(State("INVALID"))
}

func TestStateConfiguration_PermitIfPanicsOnInvalidTarget(t *testing.T) {
	builder := NewBuilder()

	defer func() {
		if r := recover(); r == nil {
			t.Error("PermitIf() should panic on invalid target state")
		}
	}()

	builder.Configure(StateDraft).Permit(TriggerSubmit, State("nowhere"))
}

func TestStateConfiguration_Permit(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StateDraft).
		Permit(TriggerSubmit, StateSubmitted)

	machine := builder.Build(StateDraft)

	if !machine.CanFire(TriggerSubmit) {
		t.Error("CanFire() should return true for permitted trigger")
	}
	if machine.CanFire(TriggerReject) {
		t.Error("CanFire() should return false for unconfigured trigger")
	}

	if err := machine.Fire(context.Background(), TriggerSubmit); err != nil {
		t.Fatalf("Fire() error = %v", err)
	}
	if machine.State() != StateSubmitted {
		t.Errorf("State() = %v, want %v", machine.State(), StateSubmitted)
	}
}

func TestStateMachine_FireUnconfiguredTrigger(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StateDraft).Permit(TriggerSubmit, StateSubmitted)
	machine := builder.Build(StateDraft)

	err := machine.Fire(context.Background(), TriggerApproveExpenses)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Fire() error = %v, want ErrInvalidTransition", err)
	}
	if KindOf(err) != KindInvalidTransition {
		t.Errorf("KindOf() = %v, want %v", KindOf(err), KindInvalidTransition)
	}
	if machine.State() != StateDraft {
		t.Errorf("state changed to %v on failed fire", machine.State())
	}
}

func TestStateMachine_FireStateWithoutConfiguration(t *testing.T) {
	machine := NewBuilder().Build(StateCancelled)

	if err := machine.Fire(context.Background(), TriggerSubmit); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Fire() error = %v, want ErrInvalidTransition", err)
	}
	if triggers := machine.PermittedTriggers(); len(triggers) != 0 {
		t.Errorf("PermittedTriggers() = %v, want empty", triggers)
	}
}

func TestStateMachine_GuardErrorAborts(t *testing.T) {
	denied := PermissionDenied(TriggerSubmit, "not the requester")
	builder := NewBuilder()
	builder.Configure(StateDraft).
		PermitIf(TriggerSubmit, StateSubmitted, func(ctx context.Context) error { return denied })

	machine := builder.Build(StateDraft)
	err := machine.Fire(context.Background(), TriggerSubmit)

	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("Fire() error = %v, want ErrPermissionDenied", err)
	}
	if machine.State() != StateDraft {
		t.Errorf("state changed to %v on failed guard", machine.State())
	}
}

func TestStateMachine_GuardFallThrough(t *testing.T) {
	noExpenses := false
	builder := NewBuilder()
	builder.Configure(StateOrganizationDone).
		PermitIf(TriggerSubmitExpenses, StateCompleted, func(ctx context.Context) error {
			if !noExpenses {
				return ErrGuardFailed
			}
			return nil
		}).
		Permit(TriggerSubmitExpenses, StateExpenseSubmitted)

	machine := builder.Build(StateOrganizationDone)
	if err := machine.Fire(context.Background(), TriggerSubmitExpenses); err != nil {
		t.Fatalf("Fire() error = %v", err)
	}
	if machine.State() != StateExpenseSubmitted {
		t.Errorf("State() = %v, want %v", machine.State(), StateExpenseSubmitted)
	}

	noExpenses = true
	machine = builder.Build(StateOrganizationDone)
	if err := machine.Fire(context.Background(), TriggerSubmitExpenses); err != nil {
		t.Fatalf("Fire() error = %v", err)
	}
	if machine.State() != StateCompleted {
		t.Errorf("State() = %v, want %v", machine.State(), StateCompleted)
	}
}

func TestStateMachine_AllGuardsFallThrough(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StateDraft).
		PermitIf(TriggerSubmit, StateSubmitted, func(ctx context.Context) error {
			return fmt.Errorf("%w: not ready", ErrGuardFailed)
		})

	machine := builder.Build(StateDraft)
	if err := machine.Fire(context.Background(), TriggerSubmit); !errors.Is(err, ErrGuardFailed) {
		t.Errorf("Fire() error = %v, want ErrGuardFailed", err)
	}
}

func TestStateConfiguration_PermitReentryIf(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StateReturned).
		PermitReentryIf(TriggerUpdateDetails, nil)

	machine := builder.Build(StateReturned)
	if err := machine.Fire(context.Background(), TriggerUpdateDetails); err != nil {
		t.Fatalf("Fire() error = %v", err)
	}
	if machine.State() != StateReturned {
		t.Errorf("State() = %v, want %v", machine.State(), StateReturned)
	}
}

func TestBuilder_BuildIsolatesConfiguration(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StateDraft).Permit(TriggerSubmit, StateSubmitted)
	machine := builder.Build(StateDraft)

	builder.Configure(StateDraft).Permit(TriggerCancel, StateCancelled)

	if machine.CanFire(TriggerCancel) {
		t.Error("machine built earlier should not see later configuration")
	}
}

func TestStateMachine_PermittedTriggersSorted(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StateSubmitted).
		Permit(TriggerReject, StateRejected).
		Permit(TriggerAssignOrganizer, StatePendingOrganization).
		Permit(TriggerReturn, StateReturned)

	got := builder.Build(StateSubmitted).PermittedTriggers()
	want := []Trigger{TriggerAssignOrganizer, TriggerReject, TriggerReturn}
	if len(got) != len(want) {
		t.Fatalf("PermittedTriggers() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("PermittedTriggers()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestError_Formatting(t *testing.T) {
	err := Validation(TriggerSubmit, "destination", "startDate")

	if !errors.Is(err, ErrValidation) {
		t.Error("validation error should match ErrValidation")
	}
	if errors.Is(err, ErrBudget) {
		t.Error("validation error should not match ErrBudget")
	}
	want := "validation_error: SUBMIT: missing or invalid fields [destination, startDate]"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"budget", Budget(TriggerAssignOrganizer, "budget must be positive"), KindBudget},
		{"stale", StaleWrite("version mismatch"), KindStaleWrite},
		{"wrapped", fmt.Errorf("command: %w", PermissionDenied(TriggerCancel, "x")), KindPermissionDenied},
		{"plain", errors.New("disk full"), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %v, want %v", got, tt.want)
			}
		})
	}
}
