package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/garyjia/timesheet-approval/internal/application/port"
	"github.com/garyjia/timesheet-approval/internal/domain/apperr"
	"github.com/garyjia/timesheet-approval/internal/domain/entity"
)

// AuditService reads and exports the audit trail
type AuditService interface {
	// TrailFor returns the audit entries of one subject, oldest first
	TrailFor(ctx context.Context, kind entity.SubjectKind, subjectID int64) ([]*entity.AuditEntry, error)

	// Export writes every entry recorded in [from, to) and returns the
	// content type. Only an active administrator may export.
	Export(ctx context.Context, actorID string, from, to time.Time, w io.Writer) (string, error)
}

type auditServiceImpl struct {
	reader    port.AuditReader
	exporter  port.AuditExporter
	directory port.UserDirectory
	logger    Logger
}

// NewAuditService creates a new AuditService
func NewAuditService(reader port.AuditReader, exporter port.AuditExporter, directory port.UserDirectory, logger Logger) AuditService {
	return &auditServiceImpl{
		reader:    reader,
		exporter:  exporter,
		directory: directory,
		logger:    logger,
	}
}

// TrailFor returns the audit entries of one subject
func (s *auditServiceImpl) TrailFor(ctx context.Context, kind entity.SubjectKind, subjectID int64) ([]*entity.AuditEntry, error) {
	if kind != entity.SubjectTimesheet && kind != entity.SubjectDelegation {
		return nil, apperr.Validation("unknown audit subject %q", kind)
	}

	entries, err := s.reader.ListBySubject(ctx, kind, subjectID)
	if err != nil {
		s.logger.Error("Failed to read audit trail", "error", err, "subject_kind", kind, "subject_id", subjectID)
		return nil, storeError(err, "failed to read audit trail")
	}
	return entries, nil
}

// Export writes the entries of a time window through the configured exporter
func (s *auditServiceImpl) Export(ctx context.Context, actorID string, from, to time.Time, w io.Writer) (string, error) {
	actor, err := actorOf(ctx, s.directory, actorID)
	if err != nil {
		return "", err
	}
	if !actor.Role.IsAdmin() {
		return "", apperr.Unauthorized("only admins may export the audit trail")
	}

	if !from.Before(to) {
		return "", apperr.Validation("export window %s..%s is empty", from.Format(time.RFC3339), to.Format(time.RFC3339))
	}

	entries, err := s.reader.ListBetween(ctx, from, to)
	if err != nil {
		return "", storeError(err, "failed to read audit trail")
	}

	if err := s.exporter.Export(ctx, entries, w); err != nil {
		s.logger.Error("Audit export failed", "error", err, "entries", len(entries))
		return "", apperr.Wrap(apperr.KindInternal, err, fmt.Sprintf("failed to export %d audit entries", len(entries)))
	}

	s.logger.Info("Audit trail exported", "actor_id", actorID, "entries", len(entries), "from", from, "to", to)
	return s.exporter.ContentType(), nil
}
