package workflow

import "context"

type lockKey struct{}

// WithLocked records the timesheet's lock flag for guards evaluated by Fire
func WithLocked(ctx context.Context, locked bool) context.Context {
	return context.WithValue(ctx, lockKey{}, locked)
}

// isUnlocked reports whether the context carries an explicit unlocked flag
func isUnlocked(ctx context.Context) bool {
	locked, ok := ctx.Value(lockKey{}).(bool)
	return ok && !locked
}

func isLocked(ctx context.Context) bool {
	locked, ok := ctx.Value(lockKey{}).(bool)
	return !ok || locked
}

// TimesheetLifecycle returns the builder configured with the timesheet
// transition table. Unlock keeps the APPROVED status and only clears the
// lock, so it is a self-transition; an unlocked approval can be resubmitted.
func TimesheetLifecycle() Builder {
	b := NewBuilder()

	b.Configure(StateDraft).
		Permit(TriggerSubmit, StateSubmitted)

	b.Configure(StateReturned).
		Permit(TriggerSubmit, StateSubmitted).
		Permit(TriggerWithdraw, StateDraft)

	b.Configure(StateSubmitted).
		Permit(TriggerApprove, StateApproved).
		Permit(TriggerReturn, StateReturned).
		Permit(TriggerWithdraw, StateDraft)

	b.Configure(StateApproved).
		PermitIf(TriggerUnlock, StateApproved, isLocked).
		PermitIf(TriggerSubmit, StateSubmitted, isUnlocked)

	return b
}

// AvailableTriggers lists the lifecycle triggers whose transition and guard
// both allow firing from state with the given lock flag, sorted.
func AvailableTriggers(state State, locked bool) []Trigger {
	lifecycle := TimesheetLifecycle()
	ctx := WithLocked(context.Background(), locked)

	var out []Trigger
	for _, trigger := range lifecycle.Build(state).PermittedTriggers() {
		if _, err := lifecycle.Build(state).Fire(ctx, trigger); err == nil {
			out = append(out, trigger)
		}
	}
	return out
}
