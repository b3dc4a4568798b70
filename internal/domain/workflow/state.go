// Package workflow holds the timesheet lifecycle: its states, the triggers
// that move between them, and a small transition-table state machine.
package workflow

// State is a timesheet lifecycle state
type State string

const (
	StateDraft     State = "DRAFT"
	StateSubmitted State = "SUBMITTED"
	StateApproved  State = "APPROVED"
	StateReturned  State = "RETURNED"
)

var validStates = map[State]bool{
	StateDraft:     true,
	StateSubmitted: true,
	StateApproved:  true,
	StateReturned:  true,
}

// editableStates are the states in which the owner may change entries
var editableStates = map[State]bool{
	StateDraft:    true,
	StateReturned: true,
}

// IsEditable returns true if the owner may edit entries in this state
func (s State) IsEditable() bool {
	return editableStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a valid lifecycle state
func (s State) IsValid() bool {
	return validStates[s]
}
