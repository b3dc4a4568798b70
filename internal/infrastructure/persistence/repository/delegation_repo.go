package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/garyjia/timesheet-approval/internal/application/port"
	"github.com/garyjia/timesheet-approval/internal/domain/entity"
	"github.com/garyjia/timesheet-approval/internal/domain/period"
	"github.com/garyjia/timesheet-approval/internal/infrastructure/persistence/sqlite"
)

// DelegationRepository implements port.DelegationRepository
type DelegationRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDelegationRepository creates a new delegation repository
func NewDelegationRepository(db *sql.DB, logger *zap.Logger) port.DelegationRepository {
	return &DelegationRepository{
		db:     db,
		logger: logger,
	}
}

const delegationColumns = `id, delegator_id, delegate_id, start_date, end_date, reason,
	is_active, created_by, created_at, revoked_at, revoked_by`

// Insert stores a new delegation and sets its ID
func (r *DelegationRepository) Insert(ctx context.Context, d *entity.Delegation) error {
	query := `
		INSERT INTO delegations (
			delegator_id, delegate_id, start_date, end_date, reason,
			is_active, created_by, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		d.DelegatorID,
		d.DelegateID,
		d.Period.Start.Format(period.DateLayout),
		d.Period.End.Format(period.DateLayout),
		d.Reason,
		d.IsActive,
		d.CreatedBy,
		d.CreatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to insert delegation", zap.Error(err))
		return fmt.Errorf("failed to insert delegation: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	d.ID = id
	return nil
}

// GetByID retrieves a delegation by ID
func (r *DelegationRepository) GetByID(ctx context.Context, id int64) (*entity.Delegation, error) {
	query := `SELECT ` + delegationColumns + ` FROM delegations WHERE id = ?`

	d, err := scanDelegation(sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("delegation %d: %w", id, port.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to get delegation", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get delegation: %w", err)
	}

	return d, nil
}

// Update applies a revocation patch. Only active rows are updated, so a
// revoked delegation is never modified again.
func (r *DelegationRepository) Update(ctx context.Context, id int64, patch port.DelegationPatch) error {
	query := `
		UPDATE delegations
		SET is_active = ?, revoked_at = ?, revoked_by = ?
		WHERE id = ? AND is_active = 1
	`

	var revokedAt interface{}
	if patch.RevokedAt != nil {
		revokedAt = patch.RevokedAt.UTC()
	}

	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		patch.IsActive, revokedAt, patch.RevokedBy, id)
	if err != nil {
		r.logger.Error("Failed to update delegation", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to update delegation: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("active delegation %d: %w", id, port.ErrNotFound)
	}

	return nil
}

// Query lists delegations matching the filter
func (r *DelegationRepository) Query(ctx context.Context, filter port.DelegationFilter) ([]*entity.Delegation, error) {
	var (
		where []string
		args  []interface{}
	)

	if filter.DelegatorID != "" {
		where = append(where, "delegator_id = ?")
		args = append(args, filter.DelegatorID)
	}
	if filter.DelegateID != "" {
		where = append(where, "delegate_id = ?")
		args = append(args, filter.DelegateID)
	}
	if filter.ActiveOnly {
		where = append(where, "is_active = 1")
	}
	if filter.CoversDate != nil {
		date := period.Date(*filter.CoversDate).Format(period.DateLayout)
		where = append(where, "start_date <= ? AND end_date >= ?")
		args = append(args, date, date)
	}

	query := `SELECT ` + delegationColumns + ` FROM delegations`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	switch filter.OrderBy {
	case port.OrderStartAscending:
		query += " ORDER BY start_date ASC, id ASC"
	default:
		query += " ORDER BY created_at DESC, id DESC"
	}

	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query delegations", zap.Error(err))
		return nil, fmt.Errorf("failed to query delegations: %w", err)
	}
	defer rows.Close()

	var delegations []*entity.Delegation
	for rows.Next() {
		d, err := scanDelegation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan delegation: %w", err)
		}
		delegations = append(delegations, d)
	}

	return delegations, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDelegation(row rowScanner) (*entity.Delegation, error) {
	var (
		d          entity.Delegation
		start, end string
		revokedAt  sql.NullTime
	)

	if err := row.Scan(
		&d.ID,
		&d.DelegatorID,
		&d.DelegateID,
		&start,
		&end,
		&d.Reason,
		&d.IsActive,
		&d.CreatedBy,
		&d.CreatedAt,
		&revokedAt,
		&d.RevokedBy,
	); err != nil {
		return nil, err
	}

	window, err := period.Parse(start, end)
	if err != nil {
		return nil, fmt.Errorf("delegation %d: %w", d.ID, err)
	}
	d.Period = window
	d.CreatedAt = d.CreatedAt.UTC()

	if revokedAt.Valid {
		t := revokedAt.Time.UTC()
		d.RevokedAt = &t
	}

	return &d, nil
}
