package entity

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/garyjia/timesheet-approval/internal/domain/workflow"
)

// Timesheet is one employee's week of time entries
type Timesheet struct {
	ID               int64          `json:"id"`
	UserID           string         `json:"user_id"`
	PeriodStart      time.Time      `json:"period_start"`
	PeriodEnd        time.Time      `json:"period_end"`
	Status           workflow.State `json:"status"`
	SubmittedAt      *time.Time     `json:"submitted_at,omitempty"`
	ApprovedAt       *time.Time     `json:"approved_at,omitempty"`
	ApprovedByUserID string         `json:"approved_by_user_id,omitempty"`
	ReturnReason     string         `json:"return_reason,omitempty"`
	IsLocked         bool           `json:"is_locked"`

	// Version is bumped on every status write and guards concurrent transitions
	Version int64 `json:"version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsOwnedBy returns true if userID is the timesheet's employee
func (t *Timesheet) IsOwnedBy(userID string) bool {
	return t.UserID == userID
}

// IsEditable returns true if the owner may change entries
func (t *Timesheet) IsEditable() bool {
	return t.Status.IsEditable() && !t.IsLocked
}

// TimeEntry is hours booked against one day of a timesheet
type TimeEntry struct {
	ID          int64           `json:"id"`
	TimesheetID int64           `json:"timesheet_id"`
	WorkDate    time.Time       `json:"work_date"`
	Hours       decimal.Decimal `json:"hours"`
	ProjectCode string          `json:"project_code,omitempty"`
	Notes       string          `json:"notes,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ErrNegativeHours is returned for a time entry booking fewer than zero hours
var ErrNegativeHours = errors.New("time entry hours must not be negative")

// Validate checks the entry can be stored
func (e *TimeEntry) Validate() error {
	if e.Hours.IsNegative() {
		return ErrNegativeHours
	}
	return nil
}

// HasWorkedHours reports whether at least one entry books more than zero hours
func HasWorkedHours(entries []*TimeEntry) bool {
	for _, e := range entries {
		if e.Hours.IsPositive() {
			return true
		}
	}
	return false
}

// TotalHours sums the hours of the given entries
func TotalHours(entries []*TimeEntry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.Hours)
	}
	return total
}
