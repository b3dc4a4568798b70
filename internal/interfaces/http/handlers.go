package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/timesheet-approval/internal/application/port"
	"github.com/garyjia/timesheet-approval/internal/application/service"
	"github.com/garyjia/timesheet-approval/internal/domain/apperr"
	"github.com/garyjia/timesheet-approval/internal/domain/period"
	"github.com/garyjia/timesheet-approval/pkg/utils"
)

// Version is reported by the health check
const Version = "1.0.0"

// Handlers contains all HTTP request handlers
type Handlers struct {
	delegations  service.DelegationService
	entitlements service.EntitlementService
	approvals    service.ApprovalService
	audit        service.AuditService
	health       HealthFunc
	clock        port.Clock
	logger       Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(services Services, clock port.Clock, logger Logger) *Handlers {
	if clock == nil {
		clock = port.SystemClock
	}
	return &Handlers{
		delegations:  services.Delegations,
		entitlements: services.Entitlements,
		approvals:    services.Approvals,
		audit:        services.Audit,
		health:       services.Health,
		clock:        clock,
		logger:       logger,
	}
}

// CreateDelegationRequest is the body of POST /api/delegations.
// DelegatorID defaults to the caller.
type CreateDelegationRequest struct {
	DelegatorID string `json:"delegator_id"`
	DelegateID  string `json:"delegate_id" binding:"required"`
	StartDate   string `json:"start_date" binding:"required"`
	EndDate     string `json:"end_date" binding:"required"`
	Reason      string `json:"reason"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: h.clock.Now().UTC().Format(time.RFC3339),
		Version:   Version,
	}

	if h.health != nil {
		healthy, details := h.health(c.Request.Context())
		resp.Components = details
		if !healthy {
			resp.Status = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, Response{Success: false, Data: resp, Error: "unhealthy"})
			return
		}
	}

	respondOK(c, http.StatusOK, resp)
}

// CreateDelegation handles POST /api/delegations
func (h *Handlers) CreateDelegation(c *gin.Context) {
	var req CreateDelegationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, apperr.Validation("invalid request body: %v", err))
		return
	}

	start, err := period.ParseDate(req.StartDate)
	if err != nil {
		h.respondError(c, apperr.Validation("invalid start_date: %s", req.StartDate))
		return
	}
	end, err := period.ParseDate(req.EndDate)
	if err != nil {
		h.respondError(c, apperr.Validation("invalid end_date: %s", req.EndDate))
		return
	}

	reason := utils.SanitizeText(req.Reason)
	if err := utils.ValidateReason(reason); err != nil {
		h.respondError(c, apperr.Validation("%v", err))
		return
	}

	delegatorID := req.DelegatorID
	if delegatorID == "" {
		delegatorID = actorID(c)
	}
	for _, id := range []string{delegatorID, req.DelegateID} {
		if err := utils.ValidateUserID(id); err != nil {
			h.respondError(c, apperr.Validation("%v", err))
			return
		}
	}

	d, err := h.delegations.CreateDelegation(c.Request.Context(), service.CreateDelegationInput{
		DelegatorID: delegatorID,
		DelegateID:  req.DelegateID,
		StartDate:   start,
		EndDate:     end,
		Reason:      reason,
		CreatedBy:   actorID(c),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	respondOK(c, http.StatusCreated, toDelegationResponse(d, h.clock.Now()))
}

// RevokeDelegation handles DELETE /api/delegations/:id
func (h *Handlers) RevokeDelegation(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	d, err := h.delegations.RevokeDelegation(c.Request.Context(), id, actorID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, toDelegationResponse(d, h.clock.Now()))
}

// GetDelegation handles GET /api/delegations/:id
func (h *Handlers) GetDelegation(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	d, err := h.delegations.GetDelegation(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, toDelegationResponse(d, h.clock.Now()))
}

// DelegationsGiven handles GET /api/delegations/given
func (h *Handlers) DelegationsGiven(c *gin.Context) {
	ds, err := h.delegations.DelegationsGivenBy(c.Request.Context(), actorID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, toDelegationResponses(ds, h.clock.Now()))
}

// DelegationsReceived handles GET /api/delegations/received
func (h *Handlers) DelegationsReceived(c *gin.Context) {
	ds, err := h.delegations.DelegationsReceivedBy(c.Request.Context(), actorID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, toDelegationResponses(ds, h.clock.Now()))
}

// ActiveDelegations handles GET /api/delegations/active?as_of=YYYY-MM-DD
func (h *Handlers) ActiveDelegations(c *gin.Context) {
	var asOf time.Time
	if raw := c.Query("as_of"); raw != "" {
		d, err := period.ParseDate(raw)
		if err != nil {
			h.respondError(c, apperr.Validation("invalid as_of: %s", raw))
			return
		}
		asOf = d
	}

	ds, err := h.delegations.ActiveDelegationsFor(c.Request.Context(), actorID(c), asOf)
	if err != nil {
		h.respondError(c, err)
		return
	}

	now := asOf
	if now.IsZero() {
		now = h.clock.Now()
	}
	respondOK(c, http.StatusOK, toDelegationResponses(ds, now))
}

// EligibleDelegates handles GET /api/delegations/eligible
func (h *Handlers) EligibleDelegates(c *gin.Context) {
	users, err := h.delegations.EligibleDelegates(c.Request.Context(), actorID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, toUserResponses(users))
}

// ResolveEntitlement handles GET /api/entitlements/:employeeId
func (h *Handlers) ResolveEntitlement(c *gin.Context) {
	employeeID := c.Param("employeeId")
	if err := utils.ValidateUserID(employeeID); err != nil {
		h.respondError(c, apperr.Validation("%v", err))
		return
	}

	respondOK(c, http.StatusOK, h.entitlements.Resolve(c.Request.Context(), actorID(c), employeeID))
}

// pathID parses a positive integer path parameter, answering 400 otherwise
func (h *Handlers) pathID(c *gin.Context, name string) (int64, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		h.respondError(c, apperr.Validation("invalid %s: %s", name, raw))
		return 0, false
	}
	return id, true
}
