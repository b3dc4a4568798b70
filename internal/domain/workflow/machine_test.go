package workflow

import (
	"context"
	"errors"
	"testing"
)

type guardKey struct{}

func TestState_IsEditable(t *testing.T) {
	tests := []struct {
		state    State
		expected bool
	}{
		{StateDraft, true},
		{StateReturned, true},
		{StateSubmitted, false},
		{StateApproved, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			if got := tt.state.IsEditable(); got != tt.expected {
				t.Errorf("State.IsEditable() = %v, want %v", got, tt.expected)
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
		{"approved", StateApproved, true},
		{"invalid state", State("LOCKED"), false},
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

func TestBuilder_ConfigurePanicsOnInvalidState(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Configure() should panic on invalid state")
		}
	}()

	NewBuilder().Configure(State("INVALID"))
}

func TestBuilder_BuildPanicsOnInvalidInitialState(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Build() should panic on invalid initial state")
		}
	}()

	NewBuilder().Build(State("INVALID"))
}

func TestStateConfiguration_PermitPanicsOnInvalidTarget(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Permit() should panic on invalid target state")
		}
	}()

	NewBuilder().Configure(StateDraft).Permit(TriggerSubmit, State("INVALID"))
}

func TestStateConfiguration_PermitIf(t *testing.T) {
	b := NewBuilder()
	b.Configure(StateSubmitted).
		PermitIf(TriggerApprove, StateApproved, func(ctx context.Context) bool {
			allowed, _ := ctx.Value(guardKey{}).(bool)
			return allowed
		})

	t.Run("guard passes", func(t *testing.T) {
		m := b.Build(StateSubmitted)
		ctx := context.WithValue(context.Background(), guardKey{}, true)
		tr, err := m.Fire(ctx, TriggerApprove)
		if err != nil {
			t.Fatalf("Fire() failed: %v", err)
		}
		if tr.From != StateSubmitted || tr.To != StateApproved {
			t.Errorf("Fire() transition = %+v", tr)
		}
	})

	t.Run("guard fails", func(t *testing.T) {
		m := b.Build(StateSubmitted)
		_, err := m.Fire(context.Background(), TriggerApprove)
		if !errors.Is(err, ErrGuardFailed) {
			t.Errorf("Fire() error = %v, want %v", err, ErrGuardFailed)
		}
		if m.State() != StateSubmitted {
			t.Errorf("State should remain %v after failed Fire(), got %v", StateSubmitted, m.State())
		}
	})
}

func TestStateMachine_Immutability(t *testing.T) {
	b := TimesheetLifecycle()

	m1 := b.Build(StateDraft)
	m2 := b.Build(StateDraft)

	if _, err := m1.Fire(context.Background(), TriggerSubmit); err != nil {
		t.Fatalf("Fire() failed: %v", err)
	}

	if m2.State() != StateDraft {
		t.Errorf("m2 state = %v, want %v (machines should be independent)", m2.State(), StateDraft)
	}

	// Configuring the builder after Build must not leak into built machines
	b.Configure(StateDraft).Permit(TriggerApprove, StateApproved)
	if m2.CanFire(TriggerApprove) {
		t.Error("built machine picked up a later configuration")
	}
}

func TestTimesheetLifecycle_Transitions(t *testing.T) {
	tests := []struct {
		from    State
		trigger Trigger
		to      State
		allowed bool
	}{
		{StateDraft, TriggerSubmit, StateSubmitted, true},
		{StateReturned, TriggerSubmit, StateSubmitted, true},
		{StateSubmitted, TriggerApprove, StateApproved, true},
		{StateSubmitted, TriggerReturn, StateReturned, true},
		{StateSubmitted, TriggerWithdraw, StateDraft, true},
		{StateReturned, TriggerWithdraw, StateDraft, true},
		{StateApproved, TriggerUnlock, StateApproved, true},
		{StateApproved, TriggerSubmit, StateSubmitted, true},

		{StateDraft, TriggerApprove, "", false},
		{StateDraft, TriggerReturn, "", false},
		{StateDraft, TriggerWithdraw, "", false},
		{StateApproved, TriggerApprove, "", false},
		{StateApproved, TriggerWithdraw, "", false},
		{StateSubmitted, TriggerSubmit, "", false},
		{StateSubmitted, TriggerUnlock, "", false},
		{StateReturned, TriggerApprove, "", false},
	}

	lifecycle := TimesheetLifecycle()

	for _, tt := range tests {
		t.Run(string(tt.from)+"_"+string(tt.trigger), func(t *testing.T) {
			m := lifecycle.Build(tt.from)
			// Unlock needs a locked timesheet, resubmitting an approval an unlocked one
			ctx := WithLocked(context.Background(), tt.trigger != TriggerSubmit)
			tr, err := m.Fire(ctx, tt.trigger)

			if !tt.allowed {
				if !errors.Is(err, ErrInvalidTransition) {
					t.Errorf("Fire() error = %v, want %v", err, ErrInvalidTransition)
				}
				if m.State() != tt.from {
					t.Errorf("State should remain %v, got %v", tt.from, m.State())
				}
				return
			}

			if err != nil {
				t.Fatalf("Fire() failed: %v", err)
			}
			if tr.To != tt.to || m.State() != tt.to {
				t.Errorf("State after Fire() = %v, want %v", m.State(), tt.to)
			}
		})
	}
}

func TestStateMachine_PermittedTriggers(t *testing.T) {
	m := TimesheetLifecycle().Build(StateSubmitted)

	got := m.PermittedTriggers()
	want := []Trigger{TriggerApprove, TriggerReturn, TriggerWithdraw}

	if len(got) != len(want) {
		t.Fatalf("PermittedTriggers() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("PermittedTriggers()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestStateMachine_PermittedTriggers_NoConfiguration(t *testing.T) {
	m := NewBuilder().Build(StateDraft)

	if triggers := m.PermittedTriggers(); len(triggers) != 0 {
		t.Errorf("PermittedTriggers() returned %d triggers, want 0", len(triggers))
	}
}

func TestStateMachine_RoundTrip(t *testing.T) {
	m := TimesheetLifecycle().Build(StateDraft)

	steps := []struct {
		trigger       Trigger
		expectedState State
	}{
		{TriggerSubmit, StateSubmitted},
		{TriggerReturn, StateReturned},
		{TriggerSubmit, StateSubmitted},
		{TriggerWithdraw, StateDraft},
		{TriggerSubmit, StateSubmitted},
		{TriggerApprove, StateApproved},
	}

	for i, step := range steps {
		if _, err := m.Fire(context.Background(), step.trigger); err != nil {
			t.Fatalf("Step %d: Fire(%v) failed: %v", i, step.trigger, err)
		}
		if m.State() != step.expectedState {
			t.Errorf("Step %d: State after Fire(%v) = %v, want %v", i, step.trigger, m.State(), step.expectedState)
		}
	}
}

func TestTimesheetLifecycle_LockGuards(t *testing.T) {
	lifecycle := TimesheetLifecycle()

	t.Run("locked approval cannot be resubmitted", func(t *testing.T) {
		m := lifecycle.Build(StateApproved)
		_, err := m.Fire(WithLocked(context.Background(), true), TriggerSubmit)
		if !errors.Is(err, ErrGuardFailed) {
			t.Errorf("Fire() error = %v, want %v", err, ErrGuardFailed)
		}
	})

	t.Run("unlocked approval cannot be unlocked again", func(t *testing.T) {
		m := lifecycle.Build(StateApproved)
		_, err := m.Fire(WithLocked(context.Background(), false), TriggerUnlock)
		if !errors.Is(err, ErrGuardFailed) {
			t.Errorf("Fire() error = %v, want %v", err, ErrGuardFailed)
		}
	})

	t.Run("missing lock flag is treated as locked", func(t *testing.T) {
		m := lifecycle.Build(StateApproved)
		if _, err := m.Fire(context.Background(), TriggerUnlock); err != nil {
			t.Errorf("Fire() failed: %v", err)
		}
		if _, err := m.Fire(context.Background(), TriggerSubmit); !errors.Is(err, ErrGuardFailed) {
			t.Errorf("Fire() error = %v, want %v", err, ErrGuardFailed)
		}
	})
}

func TestAvailableTriggers(t *testing.T) {
	tests := []struct {
		state  State
		locked bool
		want   []Trigger
	}{
		{StateDraft, false, []Trigger{TriggerSubmit}},
		{StateSubmitted, false, []Trigger{TriggerApprove, TriggerReturn, TriggerWithdraw}},
		{StateReturned, false, []Trigger{TriggerSubmit, TriggerWithdraw}},
		{StateApproved, true, []Trigger{TriggerUnlock}},
		{StateApproved, false, []Trigger{TriggerSubmit}},
		{State("ARCHIVED"), false, nil},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			got := AvailableTriggers(tt.state, tt.locked)
			if len(got) != len(tt.want) {
				t.Fatalf("AvailableTriggers(%s, %v) = %v, want %v", tt.state, tt.locked, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("AvailableTriggers(%s, %v)[%d] = %v, want %v", tt.state, tt.locked, i, got[i], tt.want[i])
				}
			}
		})
	}
}
