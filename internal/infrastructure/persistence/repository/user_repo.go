package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/timesheet-approval/internal/application/port"
	"github.com/garyjia/timesheet-approval/internal/domain/entity"
	"github.com/garyjia/timesheet-approval/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/timesheet-approval/pkg/utils"
)

// UserRepository serves the user directory and the manager-of relation
// from the users table
type UserRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sql.DB, logger *zap.Logger) *UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

const userColumns = `id, display_name, email, open_id, role, is_active, COALESCE(manager_id, ''), created_at`

// Upsert inserts or replaces a directory user
func (r *UserRepository) Upsert(ctx context.Context, u *entity.User) error {
	if u.Email != "" {
		if err := utils.ValidateEmail(u.Email); err != nil {
			return fmt.Errorf("user %s: %w", u.ID, err)
		}
	}

	query := `
		INSERT INTO users (id, display_name, email, open_id, role, is_active, manager_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, NULLIF(?, ''), ?)
		ON CONFLICT(id) DO UPDATE SET
			display_name = excluded.display_name,
			email = excluded.email,
			open_id = excluded.open_id,
			role = excluded.role,
			is_active = excluded.is_active,
			manager_id = excluded.manager_id
	`

	_, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		u.ID, u.DisplayName, u.Email, u.OpenID, u.Role, u.IsActive, u.ManagerID, u.CreatedAt.UTC())
	if err != nil {
		r.logger.Error("Failed to upsert user", zap.String("user_id", u.ID), zap.Error(err))
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

// GetUser returns the user, or nil if unknown
func (r *UserRepository) GetUser(ctx context.Context, userID string) (*entity.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`

	u, err := scanUser(sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx, query, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get user", zap.String("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// ListActiveUsers returns active users ordered by display name
func (r *UserRepository) ListActiveUsers(ctx context.Context) ([]*entity.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE is_active = 1 ORDER BY display_name, id`

	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list users", zap.Error(err))
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*entity.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// GetDirectManager returns the manager ID recorded for the user
func (r *UserRepository) GetDirectManager(ctx context.Context, userID string) (string, error) {
	var managerID sql.NullString
	err := sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx,
		`SELECT manager_id FROM users WHERE id = ?`, userID).Scan(&managerID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		r.logger.Error("Failed to get manager", zap.String("user_id", userID), zap.Error(err))
		return "", fmt.Errorf("failed to get manager of %s: %w", userID, err)
	}
	return managerID.String, nil
}

func scanUser(row rowScanner) (*entity.User, error) {
	var u entity.User
	if err := row.Scan(
		&u.ID,
		&u.DisplayName,
		&u.Email,
		&u.OpenID,
		&u.Role,
		&u.IsActive,
		&u.ManagerID,
		&u.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &u, nil
}

var (
	_ port.UserDirectory   = (*UserRepository)(nil)
	_ port.OrgRelationship = (*UserRepository)(nil)
)
