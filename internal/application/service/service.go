// Package service implements the approval core: the delegation store, the
// entitlement resolver and the timesheet approval state machine.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/garyjia/timesheet-approval/internal/application/port"
	"github.com/garyjia/timesheet-approval/internal/domain/apperr"
	"github.com/garyjia/timesheet-approval/internal/domain/entity"
	"github.com/garyjia/timesheet-approval/internal/domain/event"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// auditedUnit runs a state change and its audit record as one unit.
//
// With a sink that joins the store's transaction, an audit failure rolls the
// state change back. With a detached sink the state change commits first and
// an audit failure is reported as a partial failure.
type auditedUnit struct {
	txManager port.TransactionManager
	sink      port.AuditSink
	logger    Logger
}

func (u *auditedUnit) run(ctx context.Context, write func(ctx context.Context) error, entry func() *entity.AuditEntry) error {
	if detached, ok := u.sink.(port.DetachedAuditSink); ok && detached.Detached() {
		if err := u.txManager.WithTransaction(ctx, write); err != nil {
			return err
		}

		e := entry()
		if err := u.sink.Append(ctx, e); err != nil {
			u.logger.Error("Audit record lost after commit",
				"error", err,
				"subject_kind", e.SubjectKind,
				"subject_id", e.SubjectID,
				"action", e.Action,
				"actor_id", e.ActorID,
			)
			return apperr.Wrap(apperr.KindPartialFailure, err,
				fmt.Sprintf("%s %s %d committed without audit record", e.Action, e.SubjectKind, e.SubjectID))
		}
		return nil
	}

	return u.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := write(txCtx); err != nil {
			return err
		}
		e := entry()
		if err := u.sink.Append(txCtx, e); err != nil {
			return apperr.Wrap(apperr.KindInternal, err,
				fmt.Sprintf("audit write failed, %s rolled back", e.Action))
		}
		return nil
	})
}

// storeError classifies a repository or directory error
func storeError(err error, message string) error {
	var appErr *apperr.Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, port.ErrNotFound):
		return apperr.Wrap(apperr.KindNotFound, err, message)
	case errors.Is(err, port.ErrVersionConflict):
		return apperr.Wrap(apperr.KindConflict, err, message)
	default:
		return apperr.Wrap(apperr.KindServiceUnavailable, err, message)
	}
}

// actorOf loads the acting user from the directory. A blank, unknown or
// inactive actor is an authorization failure.
func actorOf(ctx context.Context, directory port.UserDirectory, actorID string) (*entity.User, error) {
	if actorID == "" {
		return nil, apperr.Unauthorized("no acting user")
	}
	u, err := directory.GetUser(ctx, actorID)
	if err != nil {
		return nil, storeError(err, "failed to look up acting user")
	}
	if u == nil || !u.IsActive {
		return nil, apperr.Unauthorized("unknown or inactive acting user: %s", actorID)
	}
	return u, nil
}

// publish hands an event to the publisher, detached from request cancellation
func publish(ctx context.Context, publisher port.EventPublisher, evt *event.Event) {
	if publisher == nil {
		return
	}
	publisher.DispatchAsync(context.WithoutCancel(ctx), evt)
}
