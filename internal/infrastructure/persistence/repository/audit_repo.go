package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/timesheet-approval/internal/application/port"
	"github.com/garyjia/timesheet-approval/internal/domain/entity"
	"github.com/garyjia/timesheet-approval/internal/infrastructure/persistence/sqlite"
)

// occurredAtLayout is fixed-width so stored timestamps sort as text
const occurredAtLayout = "2006-01-02T15:04:05.000000000Z"

// AuditRepository appends to and reads the audit_log table. Appends join the
// caller's transaction, so an audit failure rolls back the state change.
type AuditRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *sql.DB, logger *zap.Logger) *AuditRepository {
	return &AuditRepository{
		db:     db,
		logger: logger,
	}
}

// Append inserts an audit entry
func (r *AuditRepository) Append(ctx context.Context, e *entity.AuditEntry) error {
	details, err := json.Marshal(e.Details)
	if err != nil {
		return fmt.Errorf("failed to encode %s details: %w", e.Action, err)
	}

	query := `
		INSERT INTO audit_log (
			id, subject_kind, subject_id, action, actor_id, occurred_at,
			previous_status, new_status, notes, details
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		e.ID,
		e.SubjectKind,
		e.SubjectID,
		e.Action,
		e.ActorID,
		e.Timestamp.UTC().Format(occurredAtLayout),
		e.PreviousStatus,
		e.NewStatus,
		e.Notes,
		string(details),
	)
	if err != nil {
		r.logger.Error("Failed to append audit entry",
			zap.String("subject_kind", string(e.SubjectKind)),
			zap.Int64("subject_id", e.SubjectID),
			zap.String("action", string(e.Action)),
			zap.Error(err))
		return fmt.Errorf("failed to append audit entry: %w", err)
	}

	return nil
}

// ListBySubject returns the entries of one subject, oldest first
func (r *AuditRepository) ListBySubject(ctx context.Context, kind entity.SubjectKind, subjectID int64) ([]*entity.AuditEntry, error) {
	query := auditSelect + ` WHERE subject_kind = ? AND subject_id = ? ORDER BY occurred_at ASC, rowid ASC`
	return r.list(ctx, query, kind, subjectID)
}

// ListBetween returns the entries recorded in [from, to), oldest first
func (r *AuditRepository) ListBetween(ctx context.Context, from, to time.Time) ([]*entity.AuditEntry, error) {
	query := auditSelect + ` WHERE occurred_at >= ? AND occurred_at < ? ORDER BY occurred_at ASC, rowid ASC`
	return r.list(ctx, query, from.UTC().Format(occurredAtLayout), to.UTC().Format(occurredAtLayout))
}

const auditSelect = `
	SELECT id, subject_kind, subject_id, action, actor_id, occurred_at,
		previous_status, new_status, notes, details
	FROM audit_log`

func (r *AuditRepository) list(ctx context.Context, query string, args ...interface{}) ([]*entity.AuditEntry, error) {
	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to read audit log", zap.Error(err))
		return nil, fmt.Errorf("failed to read audit log: %w", err)
	}
	defer rows.Close()

	var entries []*entity.AuditEntry
	for rows.Next() {
		var (
			e          entity.AuditEntry
			occurredAt string
			details    string
		)
		if err := rows.Scan(
			&e.ID,
			&e.SubjectKind,
			&e.SubjectID,
			&e.Action,
			&e.ActorID,
			&occurredAt,
			&e.PreviousStatus,
			&e.NewStatus,
			&e.Notes,
			&details,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}

		if e.Timestamp, err = time.Parse(occurredAtLayout, occurredAt); err != nil {
			return nil, fmt.Errorf("audit entry %s timestamp: %w", e.ID, err)
		}
		if e.Details, err = entity.DecodeAuditDetails(e.SubjectKind, e.Action, []byte(details)); err != nil {
			return nil, fmt.Errorf("audit entry %s: %w", e.ID, err)
		}
		entries = append(entries, &e)
	}

	return entries, rows.Err()
}

var (
	_ port.AuditSink   = (*AuditRepository)(nil)
	_ port.AuditReader = (*AuditRepository)(nil)
)
