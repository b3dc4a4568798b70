package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/garyjia/timesheet-approval/internal/application/port"
	"github.com/garyjia/timesheet-approval/internal/domain/apperr"
	"github.com/garyjia/timesheet-approval/internal/domain/entity"
	"github.com/garyjia/timesheet-approval/internal/domain/event"
	"github.com/garyjia/timesheet-approval/internal/domain/period"
)

// CreateDelegationInput holds the arguments of a delegation grant
type CreateDelegationInput struct {
	DelegatorID string
	DelegateID  string
	StartDate   time.Time
	EndDate     time.Time
	Reason      string
	CreatedBy   string
}

// DelegationService owns delegation records and their invariants
type DelegationService interface {
	CreateDelegation(ctx context.Context, in CreateDelegationInput) (*entity.Delegation, error)
	// RevokeDelegation takes the actor's role from the user directory
	RevokeDelegation(ctx context.Context, delegationID int64, actingUserID string) (*entity.Delegation, error)
	GetDelegation(ctx context.Context, delegationID int64) (*entity.Delegation, error)
	DelegationsGivenBy(ctx context.Context, userID string) ([]*entity.Delegation, error)
	DelegationsReceivedBy(ctx context.Context, userID string) ([]*entity.Delegation, error)

	// ActiveDelegationsFor returns delegations naming delegateID that are in
	// force on asOf's date, earliest start first. A zero asOf means today.
	ActiveDelegationsFor(ctx context.Context, delegateID string, asOf time.Time) ([]*entity.Delegation, error)

	EligibleDelegates(ctx context.Context, excludingUserID string) ([]*entity.User, error)
}

type delegationServiceImpl struct {
	delegationRepo port.DelegationRepository
	directory      port.UserDirectory
	unit           *auditedUnit
	publisher      port.EventPublisher
	clock          port.Clock
	logger         Logger
}

// NewDelegationService creates a new DelegationService. publisher may be nil.
func NewDelegationService(
	delegationRepo port.DelegationRepository,
	directory port.UserDirectory,
	auditSink port.AuditSink,
	txManager port.TransactionManager,
	publisher port.EventPublisher,
	clock port.Clock,
	logger Logger,
) DelegationService {
	return &delegationServiceImpl{
		delegationRepo: delegationRepo,
		directory:      directory,
		unit:           &auditedUnit{txManager: txManager, sink: auditSink, logger: logger},
		publisher:      publisher,
		clock:          clock,
		logger:         logger,
	}
}

// CreateDelegation validates and persists a new delegation
func (s *delegationServiceImpl) CreateDelegation(ctx context.Context, in CreateDelegationInput) (*entity.Delegation, error) {
	if in.DelegatorID == in.DelegateID {
		return nil, apperr.Validation("self-delegation")
	}

	window, err := period.New(in.StartDate, in.EndDate)
	if err != nil {
		return nil, apperr.Validation("invalid range")
	}

	delegator, err := s.activeUser(ctx, in.DelegatorID)
	if err != nil {
		return nil, err
	}
	delegate, err := s.activeUser(ctx, in.DelegateID)
	if err != nil {
		return nil, err
	}
	if !delegate.Role.IsApprovalCapable() {
		return nil, apperr.Validation("ineligible delegate: %s holds role %s", delegate.ID, delegate.Role)
	}

	if in.CreatedBy != delegator.ID {
		creator, err := actorOf(ctx, s.directory, in.CreatedBy)
		if err != nil {
			return nil, err
		}
		if !creator.Role.IsAdmin() {
			return nil, apperr.Unauthorized("only the delegator or an administrator may grant a delegation")
		}
	}

	now := s.clock.Now()
	d := &entity.Delegation{
		DelegatorID: delegator.ID,
		DelegateID:  delegate.ID,
		Period:      window,
		Reason:      strings.TrimSpace(in.Reason),
		IsActive:    true,
		CreatedBy:   in.CreatedBy,
		CreatedAt:   now,
	}

	write := func(txCtx context.Context) error {
		existing, err := s.delegationRepo.Query(txCtx, port.DelegationFilter{
			DelegatorID: d.DelegatorID,
			ActiveOnly:  true,
			OrderBy:     port.OrderStartAscending,
		})
		if err != nil {
			return storeError(err, "failed to load existing delegations")
		}

		for _, other := range existing {
			if other.Period.Overlaps(d.Period) {
				return apperr.Conflict(other,
					"delegation overlaps active delegation %d to %s for %s",
					other.ID, other.DelegateID, other.Period)
			}
		}

		return storeError(s.delegationRepo.Insert(txCtx, d), "failed to insert delegation")
	}

	entry := func() *entity.AuditEntry {
		return entity.NewAuditEntry(d.ID, in.CreatedBy, now, entity.DelegationCreated{
			DelegatorID: d.DelegatorID,
			DelegateID:  d.DelegateID,
			StartDate:   d.Period.Start.Format(period.DateLayout),
			EndDate:     d.Period.End.Format(period.DateLayout),
			Reason:      d.Reason,
		}).WithNotes(d.Reason)
	}

	if err := s.unit.run(ctx, write, entry); err != nil {
		s.logger.Error("Failed to create delegation",
			"error", err,
			"delegator_id", in.DelegatorID,
			"delegate_id", in.DelegateID,
			"period", window.String(),
		)
		return nil, err
	}

	s.logger.Info("Delegation created",
		"id", d.ID,
		"delegator_id", d.DelegatorID,
		"delegate_id", d.DelegateID,
		"period", d.Period.String(),
	)

	publish(ctx, s.publisher, event.NewEvent(event.TypeDelegationCreated, d.ID, in.CreatedBy, map[string]interface{}{
		event.KeyRecipientUserID: d.DelegateID,
		event.KeyDelegatorID:     d.DelegatorID,
		event.KeyDelegateID:      d.DelegateID,
		event.KeyStartDate:       d.Period.Start.Format(period.DateLayout),
		event.KeyEndDate:         d.Period.End.Format(period.DateLayout),
		event.KeyReason:          d.Reason,
	}))

	return d, nil
}

// RevokeDelegation deactivates a delegation
func (s *delegationServiceImpl) RevokeDelegation(ctx context.Context, delegationID int64, actingUserID string) (*entity.Delegation, error) {
	now := s.clock.Now()
	var (
		revoked    *entity.Delegation
		actingRole entity.Role
	)

	write := func(txCtx context.Context) error {
		d, err := s.delegationRepo.GetByID(txCtx, delegationID)
		if err != nil {
			return storeError(err, "delegation not found")
		}
		if !d.IsActive {
			return apperr.State("delegation %d is already revoked", delegationID)
		}

		actor, err := actorOf(txCtx, s.directory, actingUserID)
		if err != nil {
			return err
		}
		if d.DelegatorID != actor.ID && !actor.Role.IsAdmin() {
			return apperr.Unauthorized("only the delegator or an administrator may revoke delegation %d", delegationID)
		}
		actingRole = actor.Role

		patch := port.DelegationPatch{IsActive: false, RevokedAt: &now, RevokedBy: actingUserID}
		if err := s.delegationRepo.Update(txCtx, delegationID, patch); err != nil {
			return storeError(err, "failed to revoke delegation")
		}

		d.IsActive = false
		d.RevokedAt = &now
		d.RevokedBy = actingUserID
		revoked = d
		return nil
	}

	entry := func() *entity.AuditEntry {
		return entity.NewAuditEntry(delegationID, actingUserID, now, entity.DelegationRevoked{
			DelegatorID: revoked.DelegatorID,
			DelegateID:  revoked.DelegateID,
			ActorRole:   actingRole,
		})
	}

	if err := s.unit.run(ctx, write, entry); err != nil {
		s.logger.Error("Failed to revoke delegation", "error", err, "id", delegationID, "actor_id", actingUserID)
		return nil, err
	}

	s.logger.Info("Delegation revoked", "id", delegationID, "actor_id", actingUserID)

	publish(ctx, s.publisher, event.NewEvent(event.TypeDelegationRevoked, delegationID, actingUserID, map[string]interface{}{
		event.KeyRecipientUserID: revoked.DelegateID,
		event.KeyDelegatorID:     revoked.DelegatorID,
		event.KeyDelegateID:      revoked.DelegateID,
	}))

	return revoked, nil
}

// GetDelegation retrieves a delegation by ID
func (s *delegationServiceImpl) GetDelegation(ctx context.Context, delegationID int64) (*entity.Delegation, error) {
	d, err := s.delegationRepo.GetByID(ctx, delegationID)
	if err != nil {
		return nil, storeError(err, "delegation not found")
	}
	return d, nil
}

// DelegationsGivenBy returns the full history granted by userID, newest first
func (s *delegationServiceImpl) DelegationsGivenBy(ctx context.Context, userID string) ([]*entity.Delegation, error) {
	return s.query(ctx, port.DelegationFilter{DelegatorID: userID, OrderBy: port.OrderNewestFirst})
}

// DelegationsReceivedBy returns the full history received by userID, newest first
func (s *delegationServiceImpl) DelegationsReceivedBy(ctx context.Context, userID string) ([]*entity.Delegation, error) {
	return s.query(ctx, port.DelegationFilter{DelegateID: userID, OrderBy: port.OrderNewestFirst})
}

// ActiveDelegationsFor returns delegations in force for the delegate on asOf
func (s *delegationServiceImpl) ActiveDelegationsFor(ctx context.Context, delegateID string, asOf time.Time) ([]*entity.Delegation, error) {
	if asOf.IsZero() {
		asOf = s.clock.Now()
	}

	candidates, err := s.query(ctx, port.DelegationFilter{
		DelegateID: delegateID,
		ActiveOnly: true,
		CoversDate: &asOf,
		OrderBy:    port.OrderStartAscending,
	})
	if err != nil {
		return nil, err
	}

	// The repository filter is an optimisation; InForce is authoritative
	active := make([]*entity.Delegation, 0, len(candidates))
	for _, d := range candidates {
		if d.InForce(asOf) {
			active = append(active, d)
		}
	}

	sort.SliceStable(active, func(i, j int) bool {
		return active[i].Period.Start.Before(active[j].Period.Start)
	})

	return active, nil
}

// EligibleDelegates returns active approval-capable users other than excludingUserID
func (s *delegationServiceImpl) EligibleDelegates(ctx context.Context, excludingUserID string) ([]*entity.User, error) {
	users, err := s.directory.ListActiveUsers(ctx)
	if err != nil {
		return nil, storeError(err, "failed to list users")
	}

	eligible := make([]*entity.User, 0, len(users))
	for _, u := range users {
		if u.ID == excludingUserID || !u.IsActive || !u.Role.IsApprovalCapable() {
			continue
		}
		eligible = append(eligible, u)
	}

	sort.Slice(eligible, func(i, j int) bool {
		return eligible[i].DisplayName < eligible[j].DisplayName
	})

	return eligible, nil
}

func (s *delegationServiceImpl) query(ctx context.Context, filter port.DelegationFilter) ([]*entity.Delegation, error) {
	delegations, err := s.delegationRepo.Query(ctx, filter)
	if err != nil {
		s.logger.Error("Failed to query delegations", "error", err,
			"delegator_id", filter.DelegatorID, "delegate_id", filter.DelegateID)
		return nil, storeError(err, "failed to query delegations")
	}
	return delegations, nil
}

// activeUser loads a user that must exist and be active
func (s *delegationServiceImpl) activeUser(ctx context.Context, userID string) (*entity.User, error) {
	u, err := s.directory.GetUser(ctx, userID)
	if err != nil {
		return nil, storeError(err, "failed to look up user")
	}
	if u == nil || !u.IsActive {
		return nil, apperr.Validation("inactive user: %s", userID)
	}
	return u, nil
}
