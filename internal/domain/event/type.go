package event

// Type identifies the type of domain event
type Type string

const (
	TypeDelegationCreated  Type = "delegation.created"
	TypeDelegationRevoked  Type = "delegation.revoked"
	TypeTimesheetSubmitted Type = "timesheet.submitted"
	TypeTimesheetApproved  Type = "timesheet.approved"
	TypeTimesheetReturned  Type = "timesheet.returned"
	TypeTimesheetUnlocked  Type = "timesheet.unlocked"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeDelegationCreated,
		TypeDelegationRevoked,
		TypeTimesheetSubmitted,
		TypeTimesheetApproved,
		TypeTimesheetReturned,
		TypeTimesheetUnlocked:
		return true
	default:
		return false
	}
}
