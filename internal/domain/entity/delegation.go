package entity

import (
	"time"

	"github.com/garyjia/timesheet-approval/internal/domain/period"
)

// Delegation grants a delegator's approval authority to a delegate for a
// window of whole days. A revoked delegation is never modified again.
type Delegation struct {
	ID          int64        `json:"id"`
	DelegatorID string       `json:"delegator_id"`
	DelegateID  string       `json:"delegate_id"`
	Period      period.Range `json:"period"`
	Reason      string       `json:"reason,omitempty"`
	IsActive    bool         `json:"is_active"`
	CreatedBy   string       `json:"created_by"`
	CreatedAt   time.Time    `json:"created_at"`
	RevokedAt   *time.Time   `json:"revoked_at,omitempty"`
	RevokedBy   string       `json:"revoked_by,omitempty"`
}

// InForce reports whether the delegation grants authority on asOf's date.
// Expiry is evaluated here, never stored.
func (d *Delegation) InForce(asOf time.Time) bool {
	return d.IsActive && d.Period.Contains(asOf)
}

// Status derives the display status of the delegation on asOf's date
func (d *Delegation) Status(asOf time.Time) string {
	if !d.IsActive {
		return DelegationStatusRevoked
	}

	day := period.Date(asOf)
	switch {
	case day.Before(d.Period.Start):
		return DelegationStatusScheduled
	case day.After(d.Period.End):
		return DelegationStatusExpired
	default:
		return DelegationStatusActive
	}
}
