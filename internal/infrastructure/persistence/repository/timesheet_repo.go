package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/garyjia/timesheet-approval/internal/application/port"
	"github.com/garyjia/timesheet-approval/internal/domain/entity"
	"github.com/garyjia/timesheet-approval/internal/domain/period"
	"github.com/garyjia/timesheet-approval/internal/infrastructure/persistence/sqlite"
)

// TimesheetRepository implements port.TimesheetRepository
type TimesheetRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTimesheetRepository creates a new timesheet repository
func NewTimesheetRepository(db *sql.DB, logger *zap.Logger) *TimesheetRepository {
	return &TimesheetRepository{
		db:     db,
		logger: logger,
	}
}

// Create stores a new DRAFT timesheet for one week
func (r *TimesheetRepository) Create(ctx context.Context, ts *entity.Timesheet) error {
	query := `
		INSERT INTO timesheets (user_id, period_start, period_end, status, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, 1, ?, ?)
	`

	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		ts.UserID,
		ts.PeriodStart.Format(period.DateLayout),
		ts.PeriodEnd.Format(period.DateLayout),
		ts.Status,
		ts.CreatedAt.UTC(),
		ts.CreatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create timesheet", zap.String("user_id", ts.UserID), zap.Error(err))
		return fmt.Errorf("failed to create timesheet: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	ts.ID = id
	ts.Version = 1
	return nil
}

// AddEntry stores a time entry and sets its ID
func (r *TimesheetRepository) AddEntry(ctx context.Context, e *entity.TimeEntry) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("time entry for timesheet %d: %w", e.TimesheetID, err)
	}

	query := `
		INSERT INTO time_entries (timesheet_id, work_date, hours, project_code, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		e.TimesheetID,
		e.WorkDate.Format(period.DateLayout),
		e.Hours.String(),
		e.ProjectCode,
		e.Notes,
		e.CreatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to add time entry", zap.Int64("timesheet_id", e.TimesheetID), zap.Error(err))
		return fmt.Errorf("failed to add time entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	e.ID = id
	return nil
}

// GetByID retrieves a timesheet by ID
func (r *TimesheetRepository) GetByID(ctx context.Context, id int64) (*entity.Timesheet, error) {
	query := `
		SELECT id, user_id, period_start, period_end, status,
			submitted_at, approved_at, approved_by_user_id, return_reason,
			is_locked, version, created_at, updated_at
		FROM timesheets
		WHERE id = ?
	`

	var (
		ts                      entity.Timesheet
		start, end              string
		submittedAt, approvedAt sql.NullTime
	)

	err := sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx, query, id).Scan(
		&ts.ID,
		&ts.UserID,
		&start,
		&end,
		&ts.Status,
		&submittedAt,
		&approvedAt,
		&ts.ApprovedByUserID,
		&ts.ReturnReason,
		&ts.IsLocked,
		&ts.Version,
		&ts.CreatedAt,
		&ts.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("timesheet %d: %w", id, port.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to get timesheet", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get timesheet: %w", err)
	}

	week, err := period.Parse(start, end)
	if err != nil {
		return nil, fmt.Errorf("timesheet %d: %w", id, err)
	}
	ts.PeriodStart, ts.PeriodEnd = week.Start, week.End

	if submittedAt.Valid {
		t := submittedAt.Time.UTC()
		ts.SubmittedAt = &t
	}
	if approvedAt.Valid {
		t := approvedAt.Time.UTC()
		ts.ApprovedAt = &t
	}

	return &ts, nil
}

// UpdateStatus writes the lifecycle fields if the stored version matches
func (r *TimesheetRepository) UpdateStatus(ctx context.Context, id int64, patch port.TimesheetPatch) error {
	query := `
		UPDATE timesheets
		SET status = ?, submitted_at = ?, approved_at = ?, approved_by_user_id = ?,
			return_reason = ?, is_locked = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND version = ?
	`

	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		patch.Status,
		nullableTime(patch.SubmittedAt),
		nullableTime(patch.ApprovedAt),
		patch.ApprovedByUserID,
		patch.ReturnReason,
		patch.IsLocked,
		id,
		patch.ExpectedVersion,
	)
	if err != nil {
		r.logger.Error("Failed to update timesheet status", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to update timesheet status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}

	var exists int
	err = sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx, `SELECT 1 FROM timesheets WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("timesheet %d: %w", id, port.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to check timesheet: %w", err)
	}
	return fmt.Errorf("timesheet %d version %d: %w", id, patch.ExpectedVersion, port.ErrVersionConflict)
}

// GetEntries lists the entries of a timesheet by work date
func (r *TimesheetRepository) GetEntries(ctx context.Context, timesheetID int64) ([]*entity.TimeEntry, error) {
	query := `
		SELECT id, timesheet_id, work_date, hours, project_code, notes, created_at
		FROM time_entries
		WHERE timesheet_id = ?
		ORDER BY work_date ASC, id ASC
	`

	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx, query, timesheetID)
	if err != nil {
		r.logger.Error("Failed to get time entries", zap.Int64("timesheet_id", timesheetID), zap.Error(err))
		return nil, fmt.Errorf("failed to get time entries: %w", err)
	}
	defer rows.Close()

	var entries []*entity.TimeEntry
	for rows.Next() {
		var (
			e        entity.TimeEntry
			workDate string
			hours    string
		)
		if err := rows.Scan(&e.ID, &e.TimesheetID, &workDate, &hours, &e.ProjectCode, &e.Notes, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan time entry: %w", err)
		}

		if e.WorkDate, err = period.ParseDate(workDate); err != nil {
			return nil, fmt.Errorf("time entry %d: %w", e.ID, err)
		}
		if e.Hours, err = decimal.NewFromString(hours); err != nil {
			return nil, fmt.Errorf("time entry %d hours %q: %w", e.ID, hours, err)
		}
		entries = append(entries, &e)
	}

	return entries, rows.Err()
}

// CountEntries returns the number of entries of a timesheet
func (r *TimesheetRepository) CountEntries(ctx context.Context, timesheetID int64) (int, error) {
	var n int
	err := sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM time_entries WHERE timesheet_id = ?`, timesheetID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count time entries: %w", err)
	}
	return n, nil
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}

var _ port.TimesheetRepository = (*TimesheetRepository)(nil)
