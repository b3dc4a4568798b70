package port

import (
	"context"
	"errors"
	"time"

	"github.com/garyjia/timesheet-approval/internal/domain/entity"
	"github.com/garyjia/timesheet-approval/internal/domain/workflow"
)

var (
	// ErrNotFound is returned (wrapped) by repositories when a record does not exist
	ErrNotFound = errors.New("record not found")

	// ErrVersionConflict is returned when a guarded update finds a newer version
	ErrVersionConflict = errors.New("record was modified concurrently")
)

// DelegationOrder selects the ordering of a delegation query
type DelegationOrder int

const (
	// OrderNewestFirst orders by creation time, newest first
	OrderNewestFirst DelegationOrder = iota
	// OrderStartAscending orders by start date, earliest first
	OrderStartAscending
)

// DelegationFilter narrows a delegation query. Empty fields do not filter.
type DelegationFilter struct {
	DelegatorID string
	DelegateID  string
	ActiveOnly  bool

	// CoversDate keeps delegations whose period contains the date, when set
	CoversDate *time.Time

	OrderBy DelegationOrder
}

// DelegationPatch carries the fields a revocation may change
type DelegationPatch struct {
	IsActive  bool
	RevokedAt *time.Time
	RevokedBy string
}

// DelegationRepository defines persistence operations for Delegation
type DelegationRepository interface {
	GetByID(ctx context.Context, id int64) (*entity.Delegation, error)
	Insert(ctx context.Context, d *entity.Delegation) error
	Update(ctx context.Context, id int64, patch DelegationPatch) error
	Query(ctx context.Context, filter DelegationFilter) ([]*entity.Delegation, error)
}

// TimesheetPatch replaces the lifecycle fields of a timesheet. The write
// succeeds only if the stored version equals ExpectedVersion.
type TimesheetPatch struct {
	ExpectedVersion  int64
	Status           workflow.State
	SubmittedAt      *time.Time
	ApprovedAt       *time.Time
	ApprovedByUserID string
	ReturnReason     string
	IsLocked         bool
}

// TimesheetRepository defines persistence operations for Timesheet and its entries
type TimesheetRepository interface {
	GetByID(ctx context.Context, id int64) (*entity.Timesheet, error)
	UpdateStatus(ctx context.Context, id int64, patch TimesheetPatch) error
	GetEntries(ctx context.Context, timesheetID int64) ([]*entity.TimeEntry, error)
	CountEntries(ctx context.Context, timesheetID int64) (int, error)
}

// AuditSink appends audit entries. It must never drop an entry silently.
type AuditSink interface {
	Append(ctx context.Context, entry *entity.AuditEntry) error
}

// DetachedAuditSink is implemented by sinks that cannot take part in the
// store's transaction, e.g. a remote audit service. Their writes happen after
// the primary write commits.
type DetachedAuditSink interface {
	AuditSink
	Detached() bool
}

// AuditReader reads the audit trail
type AuditReader interface {
	ListBySubject(ctx context.Context, kind entity.SubjectKind, subjectID int64) ([]*entity.AuditEntry, error)
	ListBetween(ctx context.Context, from, to time.Time) ([]*entity.AuditEntry, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
