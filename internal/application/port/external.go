package port

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/garyjia/timesheet-approval/internal/domain/entity"
	"github.com/garyjia/timesheet-approval/internal/domain/event"
)

// ErrServiceUnavailable is returned (wrapped) when an external collaborator cannot be reached
var ErrServiceUnavailable = errors.New("service unavailable")

// OrgRelationship resolves manager-of relationships from the org chart.
// Implementations may cache; the core tolerates answers as stale as their TTL.
type OrgRelationship interface {
	// GetDirectManager returns the user's manager ID, or "" if the user has none
	GetDirectManager(ctx context.Context, userID string) (string, error)
}

// UserDirectory looks up users
type UserDirectory interface {
	// GetUser returns the user, or nil with no error if the user does not exist
	GetUser(ctx context.Context, userID string) (*entity.User, error)

	// ListActiveUsers returns every active user
	ListActiveUsers(ctx context.Context) ([]*entity.User, error)
}

// Notifier delivers a text message to a user. Delivery is best-effort.
type Notifier interface {
	Notify(ctx context.Context, user *entity.User, message string) error
}

// AuditExporter renders audit entries to a document
type AuditExporter interface {
	Export(ctx context.Context, entries []*entity.AuditEntry, w io.Writer) error
	ContentType() string
}

// Clock supplies the current time
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock
type ClockFunc func() time.Time

// Now implements Clock
func (f ClockFunc) Now() time.Time {
	return f()
}

// SystemClock is the wall clock
var SystemClock Clock = ClockFunc(time.Now)

// EventPublisher hands domain events to notification handlers without waiting
type EventPublisher interface {
	DispatchAsync(ctx context.Context, evt *event.Event)
}
