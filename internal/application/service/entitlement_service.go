package service

import (
	"context"

	"github.com/garyjia/timesheet-approval/internal/application/port"
	"github.com/garyjia/timesheet-approval/internal/domain/entity"
)

// EntitlementService decides whether an approver may act on an employee's timesheet
type EntitlementService interface {
	// Resolve never returns an error. Any collaborator failure resolves to
	// entity.Denied() and is logged.
	Resolve(ctx context.Context, approverID, employeeID string) entity.Entitlement
}

type entitlementServiceImpl struct {
	directory   port.UserDirectory
	org         port.OrgRelationship
	delegations DelegationService
	clock       port.Clock
	logger      Logger
}

// NewEntitlementService creates a new EntitlementService
func NewEntitlementService(
	directory port.UserDirectory,
	org port.OrgRelationship,
	delegations DelegationService,
	clock port.Clock,
	logger Logger,
) EntitlementService {
	return &entitlementServiceImpl{
		directory:   directory,
		org:         org,
		delegations: delegations,
		clock:       clock,
		logger:      logger,
	}
}

// Resolve checks admin override, then direct management, then delegation.
// Delegation pivots through the employee's manager: only a delegation granted
// by that manager to the approver counts.
func (s *entitlementServiceImpl) Resolve(ctx context.Context, approverID, employeeID string) entity.Entitlement {
	if approverID == "" || employeeID == "" {
		return entity.Denied()
	}

	approver, err := s.directory.GetUser(ctx, approverID)
	if err != nil {
		s.logger.Error("Entitlement denied: user lookup failed",
			"error", err, "approver_id", approverID, "employee_id", employeeID)
		return entity.Denied()
	}
	if approver == nil || !approver.IsActive {
		return entity.Denied()
	}

	if approver.Role.IsAdmin() {
		return entity.Granted(entity.BasisAdmin)
	}

	managerID, err := s.org.GetDirectManager(ctx, employeeID)
	if err != nil {
		s.logger.Error("Entitlement denied: org lookup failed",
			"error", err, "approver_id", approverID, "employee_id", employeeID)
		return entity.Denied()
	}
	if managerID == "" {
		return entity.Denied()
	}

	if managerID == approverID {
		return entity.Granted(entity.BasisDirectManager)
	}

	now := s.clock.Now()
	active, err := s.delegations.ActiveDelegationsFor(ctx, approverID, now)
	if err != nil {
		s.logger.Error("Entitlement denied: delegation lookup failed",
			"error", err, "approver_id", approverID, "employee_id", employeeID)
		return entity.Denied()
	}

	for _, d := range active {
		if d.DelegatorID == managerID && d.InForce(now) {
			return entity.GrantedByDelegation(d.ID)
		}
	}

	return entity.Denied()
}
