package workflow

// Trigger is an action that can move a timesheet between states
type Trigger string

const (
	TriggerSubmit   Trigger = "SUBMIT"
	TriggerApprove  Trigger = "APPROVE"
	TriggerReturn   Trigger = "RETURN"
	TriggerWithdraw Trigger = "WITHDRAW"
	TriggerUnlock   Trigger = "UNLOCK"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
