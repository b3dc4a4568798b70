package http

import (
	"bytes"
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/timesheet-approval/internal/application/service"
	"github.com/garyjia/timesheet-approval/internal/domain/apperr"
	"github.com/garyjia/timesheet-approval/internal/domain/entity"
	"github.com/garyjia/timesheet-approval/internal/domain/period"
	"github.com/garyjia/timesheet-approval/pkg/utils"
)

// ReasonRequest is the body of return and unlock requests
type ReasonRequest struct {
	Reason string `json:"reason"`
}

// GetTimesheet handles GET /api/timesheets/:id
func (h *Handlers) GetTimesheet(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	ts, err := h.approvals.GetTimesheet(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, toTimesheetResponse(ts))
}

// TimesheetAudit handles GET /api/timesheets/:id/audit
func (h *Handlers) TimesheetAudit(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	entries, err := h.audit.TrailFor(c.Request.Context(), entity.SubjectTimesheet, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if entries == nil {
		entries = []*entity.AuditEntry{}
	}
	respondOK(c, http.StatusOK, entries)
}

// SubmitTimesheet handles POST /api/timesheets/:id/submit
func (h *Handlers) SubmitTimesheet(c *gin.Context) {
	h.transition(c, func(ctx context.Context, id int64, actor, _ string) (*service.TransitionResult, error) {
		return h.approvals.Submit(ctx, id, actor)
	})
}

// ApproveTimesheet handles POST /api/timesheets/:id/approve
func (h *Handlers) ApproveTimesheet(c *gin.Context) {
	h.transition(c, func(ctx context.Context, id int64, actor, _ string) (*service.TransitionResult, error) {
		return h.approvals.Approve(ctx, id, actor)
	})
}

// ReturnTimesheet handles POST /api/timesheets/:id/return
func (h *Handlers) ReturnTimesheet(c *gin.Context) {
	h.transitionWithReason(c, h.approvals.Return)
}

// WithdrawTimesheet handles POST /api/timesheets/:id/withdraw
func (h *Handlers) WithdrawTimesheet(c *gin.Context) {
	h.transition(c, func(ctx context.Context, id int64, actor, _ string) (*service.TransitionResult, error) {
		return h.approvals.Withdraw(ctx, id, actor)
	})
}

// UnlockTimesheet handles POST /api/timesheets/:id/unlock
func (h *Handlers) UnlockTimesheet(c *gin.Context) {
	h.transitionWithReason(c, h.approvals.Unlock)
}

type transitionFunc func(ctx context.Context, id int64, actor, reason string) (*service.TransitionResult, error)

func (h *Handlers) transition(c *gin.Context, fn transitionFunc) {
	h.runTransition(c, "", fn)
}

func (h *Handlers) transitionWithReason(c *gin.Context, fn transitionFunc) {
	var req ReasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, apperr.Validation("invalid request body: %v", err))
		return
	}

	reason := utils.SanitizeText(req.Reason)
	if err := utils.ValidateReason(reason); err != nil {
		h.respondError(c, apperr.Validation("%v", err))
		return
	}
	h.runTransition(c, reason, fn)
}

func (h *Handlers) runTransition(c *gin.Context, reason string, fn transitionFunc) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	result, err := fn(c.Request.Context(), id, actorID(c), reason)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, result)
}

// ExportAudit handles GET /api/audit/export?from=YYYY-MM-DD&to=YYYY-MM-DD.
// Both dates are inclusive. Only admins may export.
func (h *Handlers) ExportAudit(c *gin.Context) {
	from, err := period.ParseDate(c.Query("from"))
	if err != nil {
		h.respondError(c, apperr.Validation("invalid from: %q", c.Query("from")))
		return
	}
	to, err := period.ParseDate(c.Query("to"))
	if err != nil {
		h.respondError(c, apperr.Validation("invalid to: %q", c.Query("to")))
		return
	}

	var buf bytes.Buffer
	contentType, err := h.audit.Export(c.Request.Context(), actorID(c), from, to.AddDate(0, 0, 1), &buf)
	if err != nil {
		h.respondError(c, err)
		return
	}

	filename := "audit_" + strings.ReplaceAll(from.Format(period.DateLayout), "-", "") +
		"_" + strings.ReplaceAll(to.Format(period.DateLayout), "-", "") + ".xlsx"
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, contentType, buf.Bytes())
}
