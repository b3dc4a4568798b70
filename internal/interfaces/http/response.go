package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/timesheet-approval/internal/domain/apperr"
	"github.com/garyjia/timesheet-approval/internal/domain/entity"
	"github.com/garyjia/timesheet-approval/internal/domain/period"
	"github.com/garyjia/timesheet-approval/internal/domain/workflow"
)

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Kind    string      `json:"kind,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`

	Components interface{} `json:"components,omitempty"`
}

// DelegationResponse represents a delegation in API responses
type DelegationResponse struct {
	ID          int64   `json:"id"`
	DelegatorID string  `json:"delegator_id"`
	DelegateID  string  `json:"delegate_id"`
	StartDate   string  `json:"start_date"`
	EndDate     string  `json:"end_date"`
	Days        int     `json:"days"`
	Reason      string  `json:"reason,omitempty"`
	Status      string  `json:"status"`
	CreatedBy   string  `json:"created_by"`
	CreatedAt   string  `json:"created_at"`
	RevokedAt   *string `json:"revoked_at,omitempty"`
	RevokedBy   string  `json:"revoked_by,omitempty"`
}

// TimesheetResponse is a timesheet with the lifecycle actions open to it
type TimesheetResponse struct {
	*entity.Timesheet
	Editable bool               `json:"editable"`
	Actions  []workflow.Trigger `json:"actions"`
}

func toTimesheetResponse(ts *entity.Timesheet) TimesheetResponse {
	actions := workflow.AvailableTriggers(ts.Status, ts.IsLocked)
	if actions == nil {
		actions = []workflow.Trigger{}
	}
	return TimesheetResponse{Timesheet: ts, Editable: ts.IsEditable(), Actions: actions}
}

// UserResponse represents a directory user in API responses
type UserResponse struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email,omitempty"`
	Role        string `json:"role"`
}

func toDelegationResponse(d *entity.Delegation, now time.Time) DelegationResponse {
	resp := DelegationResponse{
		ID:          d.ID,
		DelegatorID: d.DelegatorID,
		DelegateID:  d.DelegateID,
		StartDate:   d.Period.Start.Format(period.DateLayout),
		EndDate:     d.Period.End.Format(period.DateLayout),
		Days:        d.Period.Days(),
		Reason:      d.Reason,
		Status:      d.Status(now),
		CreatedBy:   d.CreatedBy,
		CreatedAt:   d.CreatedAt.UTC().Format(time.RFC3339),
		RevokedBy:   d.RevokedBy,
	}
	if d.RevokedAt != nil {
		s := d.RevokedAt.UTC().Format(time.RFC3339)
		resp.RevokedAt = &s
	}
	return resp
}

func toDelegationResponses(ds []*entity.Delegation, now time.Time) []DelegationResponse {
	out := make([]DelegationResponse, 0, len(ds))
	for _, d := range ds {
		out = append(out, toDelegationResponse(d, now))
	}
	return out
}

func toUserResponses(users []*entity.User) []UserResponse {
	out := make([]UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, UserResponse{ID: u.ID, DisplayName: u.DisplayName, Email: u.Email, Role: u.Role.String()})
	}
	return out
}

// statusFor maps an error kind to an HTTP status code
func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation, apperr.KindConflict, apperr.KindState:
		return http.StatusBadRequest
	case apperr.KindAuthorization:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err with the status its kind maps to. Overlap conflicts
// carry the conflicting delegation in data.
func (h *Handlers) respondError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	status := statusFor(kind)

	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", "path", c.FullPath(), "kind", kind, "error", err)
	}

	resp := Response{Success: false, Error: err.Error(), Kind: kind.String()}
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		resp.Error = "internal error"
	}
	if existing, ok := apperr.DetailOf(err).(*entity.Delegation); ok && existing != nil {
		resp.Data = toDelegationResponse(existing, h.clock.Now())
	}

	c.JSON(status, resp)
}

func respondOK(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{Success: true, Data: data})
}
