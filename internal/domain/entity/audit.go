package entity

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AuditAction is the kind of action recorded in the audit trail
type AuditAction string

const (
	AuditActionCreated   AuditAction = "CREATED"
	AuditActionRevoked   AuditAction = "REVOKED"
	AuditActionSubmitted AuditAction = "SUBMITTED"
	AuditActionApproved  AuditAction = "APPROVED"
	AuditActionReturned  AuditAction = "RETURNED"
	AuditActionWithdrawn AuditAction = "WITHDRAWN"
	AuditActionUnlocked  AuditAction = "UNLOCKED"
)

// SubjectKind identifies what an audit entry is about
type SubjectKind string

const (
	SubjectTimesheet  SubjectKind = "TIMESHEET"
	SubjectDelegation SubjectKind = "DELEGATION"
)

// AuditDetails is the action-specific payload of an audit entry.
// Each action has exactly one implementation.
type AuditDetails interface {
	Action() AuditAction
	Subject() SubjectKind
}

// DelegationCreated records a new delegation grant
type DelegationCreated struct {
	DelegatorID string `json:"delegator_id"`
	DelegateID  string `json:"delegate_id"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	Reason      string `json:"reason,omitempty"`
}

// DelegationRevoked records a revocation
type DelegationRevoked struct {
	DelegatorID string `json:"delegator_id"`
	DelegateID  string `json:"delegate_id"`
	ActorRole   Role   `json:"actor_role"`
}

// TimesheetSubmitted records a submission
type TimesheetSubmitted struct {
	TotalHours string `json:"total_hours"`
	EntryCount int    `json:"entry_count"`
}

// TimesheetApproved records an approval and the entitlement behind it
type TimesheetApproved struct {
	Basis        Basis  `json:"basis"`
	DelegationID *int64 `json:"delegation_id,omitempty"`
}

// TimesheetReturned records a return to the employee
type TimesheetReturned struct {
	Reason       string `json:"reason"`
	Basis        Basis  `json:"basis"`
	DelegationID *int64 `json:"delegation_id,omitempty"`
}

// TimesheetWithdrawn records the owner pulling a timesheet back to draft
type TimesheetWithdrawn struct {
	FromStatus string `json:"from_status"`
}

// TimesheetUnlocked records an approved timesheet being reopened for edits
type TimesheetUnlocked struct {
	Reason string `json:"reason"`
	Basis  Basis  `json:"basis"`
}

func (DelegationCreated) Action() AuditAction  { return AuditActionCreated }
func (DelegationRevoked) Action() AuditAction  { return AuditActionRevoked }
func (TimesheetSubmitted) Action() AuditAction { return AuditActionSubmitted }
func (TimesheetApproved) Action() AuditAction  { return AuditActionApproved }
func (TimesheetReturned) Action() AuditAction  { return AuditActionReturned }
func (TimesheetWithdrawn) Action() AuditAction { return AuditActionWithdrawn }
func (TimesheetUnlocked) Action() AuditAction  { return AuditActionUnlocked }

func (DelegationCreated) Subject() SubjectKind  { return SubjectDelegation }
func (DelegationRevoked) Subject() SubjectKind  { return SubjectDelegation }
func (TimesheetSubmitted) Subject() SubjectKind { return SubjectTimesheet }
func (TimesheetApproved) Subject() SubjectKind  { return SubjectTimesheet }
func (TimesheetReturned) Subject() SubjectKind  { return SubjectTimesheet }
func (TimesheetWithdrawn) Subject() SubjectKind { return SubjectTimesheet }
func (TimesheetUnlocked) Subject() SubjectKind  { return SubjectTimesheet }

// AuditEntry is one immutable record in the audit trail
type AuditEntry struct {
	ID             string       `json:"id"`
	SubjectKind    SubjectKind  `json:"subject_kind"`
	SubjectID      int64        `json:"subject_id"`
	Action         AuditAction  `json:"action"`
	ActorID        string       `json:"actor_id"`
	Timestamp      time.Time    `json:"timestamp"`
	PreviousStatus string       `json:"previous_status,omitempty"`
	NewStatus      string       `json:"new_status,omitempty"`
	Notes          string       `json:"notes,omitempty"`
	Details        AuditDetails `json:"details"`
}

// NewAuditEntry builds an entry whose action and subject come from details
func NewAuditEntry(subjectID int64, actorID string, at time.Time, details AuditDetails) *AuditEntry {
	return &AuditEntry{
		ID:          uuid.NewString(),
		SubjectKind: details.Subject(),
		SubjectID:   subjectID,
		Action:      details.Action(),
		ActorID:     actorID,
		Timestamp:   at,
		Details:     details,
	}
}

// WithStatus sets the before/after status and returns the entry
func (e *AuditEntry) WithStatus(previous, next string) *AuditEntry {
	e.PreviousStatus = previous
	e.NewStatus = next
	return e
}

// WithNotes sets free-text notes and returns the entry
func (e *AuditEntry) WithNotes(notes string) *AuditEntry {
	e.Notes = notes
	return e
}

// DecodeAuditDetails restores the typed payload stored for an action
func DecodeAuditDetails(subject SubjectKind, action AuditAction, data []byte) (AuditDetails, error) {
	var details AuditDetails
	switch {
	case subject == SubjectDelegation && action == AuditActionCreated:
		details = &DelegationCreated{}
	case subject == SubjectDelegation && action == AuditActionRevoked:
		details = &DelegationRevoked{}
	case subject == SubjectTimesheet && action == AuditActionSubmitted:
		details = &TimesheetSubmitted{}
	case subject == SubjectTimesheet && action == AuditActionApproved:
		details = &TimesheetApproved{}
	case subject == SubjectTimesheet && action == AuditActionReturned:
		details = &TimesheetReturned{}
	case subject == SubjectTimesheet && action == AuditActionWithdrawn:
		details = &TimesheetWithdrawn{}
	case subject == SubjectTimesheet && action == AuditActionUnlocked:
		details = &TimesheetUnlocked{}
	default:
		return nil, fmt.Errorf("unknown audit action %s for %s", action, subject)
	}

	if len(data) > 0 {
		if err := json.Unmarshal(data, details); err != nil {
			return nil, fmt.Errorf("failed to decode %s details: %w", action, err)
		}
	}

	return derefDetails(details), nil
}

// derefDetails returns the value form so decoded entries compare equal to
// entries built in memory
func derefDetails(d AuditDetails) AuditDetails {
	switch v := d.(type) {
	case *DelegationCreated:
		return *v
	case *DelegationRevoked:
		return *v
	case *TimesheetSubmitted:
		return *v
	case *TimesheetApproved:
		return *v
	case *TimesheetReturned:
		return *v
	case *TimesheetWithdrawn:
		return *v
	case *TimesheetUnlocked:
		return *v
	}
	return d
}
