package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/timesheet-approval/internal/application/port"
	"github.com/garyjia/timesheet-approval/internal/domain/apperr"
	"github.com/garyjia/timesheet-approval/internal/domain/entity"
	"github.com/garyjia/timesheet-approval/internal/domain/event"
	"github.com/garyjia/timesheet-approval/internal/domain/workflow"
)

// TransitionResult is the outcome of a successful lifecycle action
type TransitionResult struct {
	Timesheet   *entity.Timesheet   `json:"timesheet"`
	Transition  workflow.Transition `json:"transition"`
	Entitlement entity.Entitlement  `json:"entitlement"`
}

// ApprovalService drives the timesheet lifecycle
type ApprovalService interface {
	Submit(ctx context.Context, timesheetID int64, actorID string) (*TransitionResult, error)
	Approve(ctx context.Context, timesheetID int64, actorID string) (*TransitionResult, error)
	Return(ctx context.Context, timesheetID int64, actorID, reason string) (*TransitionResult, error)
	Withdraw(ctx context.Context, timesheetID int64, actorID string) (*TransitionResult, error)

	// Unlock clears the lock of an approved timesheet. The status stays
	// APPROVED until the owner resubmits.
	Unlock(ctx context.Context, timesheetID int64, actorID, reason string) (*TransitionResult, error)

	GetTimesheet(ctx context.Context, timesheetID int64) (*entity.Timesheet, error)
}

type approvalServiceImpl struct {
	timesheetRepo port.TimesheetRepository
	entitlements  EntitlementService
	unit          *auditedUnit
	publisher     port.EventPublisher
	clock         port.Clock
	logger        Logger
}

// NewApprovalService creates a new ApprovalService. publisher may be nil.
func NewApprovalService(
	timesheetRepo port.TimesheetRepository,
	entitlements EntitlementService,
	auditSink port.AuditSink,
	txManager port.TransactionManager,
	publisher port.EventPublisher,
	clock port.Clock,
	logger Logger,
) ApprovalService {
	return &approvalServiceImpl{
		timesheetRepo: timesheetRepo,
		entitlements:  entitlements,
		unit:          &auditedUnit{txManager: txManager, sink: auditSink, logger: logger},
		publisher:     publisher,
		clock:         clock,
		logger:        logger,
	}
}

// action describes one lifecycle action. authorize runs after the
// transition is known to be structurally legal; apply edits the patch and
// returns the audit details.
type action struct {
	trigger   workflow.Trigger
	authorize func(ctx context.Context, ts *entity.Timesheet) (entity.Entitlement, error)
	apply     func(ctx context.Context, ts *entity.Timesheet, patch *port.TimesheetPatch, ent entity.Entitlement) (entity.AuditDetails, error)
	notes     string
	eventType event.Type
}

// Submit moves a DRAFT or RETURNED timesheet, or an unlocked APPROVED one, to SUBMITTED
func (s *approvalServiceImpl) Submit(ctx context.Context, timesheetID int64, actorID string) (*TransitionResult, error) {
	return s.transition(ctx, timesheetID, actorID, action{
		trigger:   workflow.TriggerSubmit,
		authorize: s.ownerOnly(actorID),
		apply: func(ctx context.Context, ts *entity.Timesheet, patch *port.TimesheetPatch, _ entity.Entitlement) (entity.AuditDetails, error) {
			count, err := s.timesheetRepo.CountEntries(ctx, ts.ID)
			if err != nil {
				return nil, storeError(err, "failed to count time entries")
			}
			if count == 0 {
				return nil, apperr.Validation("timesheet %d has no entries to submit", ts.ID)
			}

			entries, err := s.timesheetRepo.GetEntries(ctx, ts.ID)
			if err != nil {
				return nil, storeError(err, "failed to load time entries")
			}
			if !entity.HasWorkedHours(entries) {
				return nil, apperr.Validation("timesheet %d has no hours to submit", ts.ID)
			}
			total := entity.TotalHours(entries)

			now := s.clock.Now()
			patch.SubmittedAt = &now
			patch.IsLocked = false
			patch.ApprovedAt = nil
			patch.ApprovedByUserID = ""

			return entity.TimesheetSubmitted{
				TotalHours: total.StringFixed(2),
				EntryCount: len(entries),
			}, nil
		},
		eventType: event.TypeTimesheetSubmitted,
	})
}

// Approve approves a SUBMITTED timesheet and locks it
func (s *approvalServiceImpl) Approve(ctx context.Context, timesheetID int64, actorID string) (*TransitionResult, error) {
	return s.transition(ctx, timesheetID, actorID, action{
		trigger:   workflow.TriggerApprove,
		authorize: s.entitled(actorID),
		apply: func(_ context.Context, _ *entity.Timesheet, patch *port.TimesheetPatch, ent entity.Entitlement) (entity.AuditDetails, error) {
			now := s.clock.Now()
			patch.ApprovedAt = &now
			patch.ApprovedByUserID = actorID
			patch.IsLocked = true

			return entity.TimesheetApproved{Basis: ent.Basis, DelegationID: ent.DelegationID}, nil
		},
		eventType: event.TypeTimesheetApproved,
	})
}

// Return sends a SUBMITTED timesheet back to its owner with a reason
func (s *approvalServiceImpl) Return(ctx context.Context, timesheetID int64, actorID, reason string) (*TransitionResult, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperr.Validation("a reason is required to return a timesheet")
	}

	return s.transition(ctx, timesheetID, actorID, action{
		trigger:   workflow.TriggerReturn,
		authorize: s.entitled(actorID),
		apply: func(_ context.Context, _ *entity.Timesheet, patch *port.TimesheetPatch, ent entity.Entitlement) (entity.AuditDetails, error) {
			patch.ReturnReason = reason
			patch.IsLocked = false

			return entity.TimesheetReturned{Reason: reason, Basis: ent.Basis, DelegationID: ent.DelegationID}, nil
		},
		notes:     reason,
		eventType: event.TypeTimesheetReturned,
	})
}

// Withdraw pulls a SUBMITTED or RETURNED timesheet back to DRAFT
func (s *approvalServiceImpl) Withdraw(ctx context.Context, timesheetID int64, actorID string) (*TransitionResult, error) {
	return s.transition(ctx, timesheetID, actorID, action{
		trigger:   workflow.TriggerWithdraw,
		authorize: s.ownerOnly(actorID),
		apply: func(_ context.Context, ts *entity.Timesheet, patch *port.TimesheetPatch, _ entity.Entitlement) (entity.AuditDetails, error) {
			patch.IsLocked = false
			return entity.TimesheetWithdrawn{FromStatus: ts.Status.String()}, nil
		},
	})
}

// Unlock clears the lock on an APPROVED timesheet
func (s *approvalServiceImpl) Unlock(ctx context.Context, timesheetID int64, actorID, reason string) (*TransitionResult, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperr.Validation("a reason is required to unlock a timesheet")
	}

	return s.transition(ctx, timesheetID, actorID, action{
		trigger:   workflow.TriggerUnlock,
		authorize: s.entitled(actorID),
		apply: func(_ context.Context, _ *entity.Timesheet, patch *port.TimesheetPatch, ent entity.Entitlement) (entity.AuditDetails, error) {
			patch.IsLocked = false
			return entity.TimesheetUnlocked{Reason: reason, Basis: ent.Basis}, nil
		},
		notes:     reason,
		eventType: event.TypeTimesheetUnlocked,
	})
}

// GetTimesheet retrieves a timesheet by ID
func (s *approvalServiceImpl) GetTimesheet(ctx context.Context, timesheetID int64) (*entity.Timesheet, error) {
	ts, err := s.timesheetRepo.GetByID(ctx, timesheetID)
	if err != nil {
		return nil, storeError(err, fmt.Sprintf("timesheet %d not found", timesheetID))
	}
	return ts, nil
}

// transition loads the timesheet, checks the structural rule, authorizes the
// actor, then writes the patch and audit entry as one unit
func (s *approvalServiceImpl) transition(ctx context.Context, timesheetID int64, actorID string, a action) (*TransitionResult, error) {
	var (
		before  *entity.Timesheet
		after   *entity.Timesheet
		tr      workflow.Transition
		ent     entity.Entitlement
		details entity.AuditDetails
		at      time.Time
	)

	write := func(txCtx context.Context) error {
		ts, err := s.timesheetRepo.GetByID(txCtx, timesheetID)
		if err != nil {
			return storeError(err, fmt.Sprintf("timesheet %d not found", timesheetID))
		}
		if !ts.Status.IsValid() {
			return apperr.State("timesheet %d has unknown status %q", ts.ID, ts.Status)
		}

		verb := strings.ToLower(a.trigger.String())
		sm := workflow.TimesheetLifecycle().Build(ts.Status)
		if !sm.CanFire(a.trigger) {
			return apperr.State("cannot %s timesheet %d in status %s", verb, ts.ID, ts.Status)
		}
		tr, err = sm.Fire(workflow.WithLocked(txCtx, ts.IsLocked), a.trigger)
		if err != nil {
			return apperr.Wrap(apperr.KindState, err,
				fmt.Sprintf("cannot %s timesheet %d in status %s while locked=%t", verb, ts.ID, ts.Status, ts.IsLocked))
		}

		ent, err = a.authorize(txCtx, ts)
		if err != nil {
			return err
		}

		patch := patchFrom(ts)
		patch.Status = tr.To
		details, err = a.apply(txCtx, ts, &patch, ent)
		if err != nil {
			return err
		}

		if err := s.timesheetRepo.UpdateStatus(txCtx, ts.ID, patch); err != nil {
			return storeError(err, fmt.Sprintf("timesheet %d was modified concurrently", ts.ID))
		}

		at = s.clock.Now()
		before = ts
		after = applyPatch(ts, patch, at)
		return nil
	}

	entry := func() *entity.AuditEntry {
		return entity.NewAuditEntry(timesheetID, actorID, at, details).
			WithStatus(tr.From.String(), tr.To.String()).
			WithNotes(a.notes)
	}

	if err := s.unit.run(ctx, write, entry); err != nil {
		s.logger.Error("Timesheet transition failed",
			"error", err,
			"timesheet_id", timesheetID,
			"trigger", a.trigger,
			"actor_id", actorID,
		)
		return nil, err
	}

	s.logger.Info("Timesheet transition",
		"timesheet_id", timesheetID,
		"trigger", a.trigger,
		"from", tr.From,
		"to", tr.To,
		"actor_id", actorID,
		"basis", ent.Basis,
	)

	if a.eventType != "" {
		payload := map[string]interface{}{
			event.KeyBasis: string(ent.Basis),
		}
		if a.eventType != event.TypeTimesheetSubmitted {
			payload[event.KeyRecipientUserID] = before.UserID
		}
		if a.notes != "" {
			payload[event.KeyReason] = a.notes
		}
		publish(ctx, s.publisher, event.NewEvent(a.eventType, timesheetID, actorID, payload))
	}

	return &TransitionResult{Timesheet: after, Transition: tr, Entitlement: ent}, nil
}

// ownerOnly allows the timesheet's owner and nobody else
func (s *approvalServiceImpl) ownerOnly(actorID string) func(context.Context, *entity.Timesheet) (entity.Entitlement, error) {
	return func(_ context.Context, ts *entity.Timesheet) (entity.Entitlement, error) {
		if !ts.IsOwnedBy(actorID) {
			return entity.Denied(), apperr.Unauthorized("only the owner may act on timesheet %d", ts.ID)
		}
		return entity.Entitlement{Authorized: true, Basis: entity.BasisNone}, nil
	}
}

// entitled requires the resolver to authorize actorID over the owner
func (s *approvalServiceImpl) entitled(actorID string) func(context.Context, *entity.Timesheet) (entity.Entitlement, error) {
	return func(ctx context.Context, ts *entity.Timesheet) (entity.Entitlement, error) {
		ent := s.entitlements.Resolve(ctx, actorID, ts.UserID)
		if !ent.Authorized {
			return ent, apperr.Unauthorized("user %s is not entitled to act on timesheets of %s", actorID, ts.UserID)
		}
		return ent, nil
	}
}

func patchFrom(ts *entity.Timesheet) port.TimesheetPatch {
	return port.TimesheetPatch{
		ExpectedVersion:  ts.Version,
		Status:           ts.Status,
		SubmittedAt:      ts.SubmittedAt,
		ApprovedAt:       ts.ApprovedAt,
		ApprovedByUserID: ts.ApprovedByUserID,
		ReturnReason:     ts.ReturnReason,
		IsLocked:         ts.IsLocked,
	}
}

func applyPatch(ts *entity.Timesheet, patch port.TimesheetPatch, at time.Time) *entity.Timesheet {
	updated := *ts
	updated.Status = patch.Status
	updated.SubmittedAt = patch.SubmittedAt
	updated.ApprovedAt = patch.ApprovedAt
	updated.ApprovedByUserID = patch.ApprovedByUserID
	updated.ReturnReason = patch.ReturnReason
	updated.IsLocked = patch.IsLocked
	updated.Version = ts.Version + 1
	updated.UpdatedAt = at
	return &updated
}
