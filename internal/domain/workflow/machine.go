package workflow

import "context"

// Transition describes one completed state change
type Transition struct {
	Trigger Trigger `json:"trigger"`
	From    State   `json:"from"`
	To      State   `json:"to"`
}

// StateMachine tracks the state of one timesheet and validates transitions
type StateMachine interface {
	// State returns the current state
	State() State

	// CanFire returns true if the trigger has at least one transition from the current state
	CanFire(trigger Trigger) bool

	// Fire executes the trigger and returns the transition taken
	Fire(ctx context.Context, trigger Trigger) (Transition, error)

	// PermittedTriggers returns all triggers configured for the current state
	PermittedTriggers() []Trigger
}
