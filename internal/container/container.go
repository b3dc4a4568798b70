package container

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/garyjia/timesheet-approval/internal/application/dispatcher"
	"github.com/garyjia/timesheet-approval/internal/application/port"
	"github.com/garyjia/timesheet-approval/internal/application/service"
	"github.com/garyjia/timesheet-approval/internal/config"
	"github.com/garyjia/timesheet-approval/internal/infrastructure/orgcache"
	"github.com/garyjia/timesheet-approval/internal/infrastructure/persistence/repository"
	"github.com/garyjia/timesheet-approval/pkg/database"
)

// Container manages all application dependencies and lifecycle.
// Components start in dependency order and close in reverse order.
type Container struct {
	config *config.Config
	logger *zap.Logger
	clock  port.Clock

	database     *DatabaseBundle
	repositories *RepositoryBundle
	notifier     port.Notifier
	dispatcher   dispatcher.Dispatcher
	services     *ServiceBundle

	mu     sync.Mutex
	ready  atomic.Bool
	closed atomic.Bool
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Users       *repository.UserRepository
	Org         *orgcache.Cache
	Delegations port.DelegationRepository
	Timesheets  *repository.TimesheetRepository
	Audit       *repository.AuditRepository
}

// ServiceBundle groups all application services.
// Notification is nil when no notifier is configured.
type ServiceBundle struct {
	Delegations  service.DelegationService
	Entitlements service.EntitlementService
	Approvals    service.ApprovalService
	Audit        service.AuditService
	Notification service.NotificationService
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *config.Config, clock port.Clock, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if clock == nil {
		clock = port.SystemClock
	}

	return &Container{
		config: cfg,
		logger: logger,
		clock:  clock,
	}, nil
}

// Start initializes all components:
// 1. Database, migrations and repositories
// 2. Notifier and event dispatcher
// 3. Application services
func (c *Container) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.logger.Info("Starting container initialization")

	db, err := ProvideDatabase(c.config.Database, c.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.database = db
	c.repositories = ProvideRepositories(db.DB, c.config.OrgCache.TTL, c.clock, c.logger)
	c.logger.Info("Database initialized", zap.String("path", c.config.Database.Path))

	c.notifier = ProvideNotifier(c.config.Lark, c.logger)
	c.dispatcher = ProvideDispatcher(c.config.Dispatcher, c.logger)
	if c.notifier == nil {
		c.logger.Info("Lark notifications disabled")
	}

	services, err := ProvideServices(&ServiceDeps{
		Repos:      c.repositories,
		TxManager:  db.TransactionMgr,
		Dispatcher: c.dispatcher,
		Notifier:   c.notifier,
		Clock:      c.clock,
		Logger:     c.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	c.services = services
	c.logger.Info("Application services initialized")

	c.ready.Store(true)
	c.logger.Info("Container started successfully")
	return nil
}

// Close drains in-flight notifications, then closes the database.
func (c *Container) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")
	var errs []error

	if c.dispatcher != nil {
		if err := c.dispatcher.Close(ctx); err != nil {
			c.logger.Error("Failed to close dispatcher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		} else {
			c.logger.Info("Dispatcher closed")
		}
	}

	if c.database != nil {
		if err := c.database.DB.Close(); err != nil {
			c.logger.Error("Failed to close database", zap.Error(err))
			errs = append(errs, fmt.Errorf("close database: %w", err))
		} else {
			c.logger.Info("Database closed")
		}
	}

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return fmt.Errorf("container closed with %d errors", len(errs))
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Services returns the application services. It is nil before Start.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Repositories returns the repositories. It is nil before Start.
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// Health returns health status of all components.
func (c *Container) Health(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}

	set := func(name string, h ComponentHealth) {
		status.Components[name] = h
		if !h.Healthy {
			status.Overall = false
		}
	}

	switch {
	case c.database == nil:
		set("database", ComponentHealth{Message: "not initialized"})
	default:
		if err := c.database.DB.PingContext(ctx); err != nil {
			set("database", ComponentHealth{Message: fmt.Sprintf("ping failed: %v", err)})
		} else {
			set("database", ComponentHealth{Healthy: true})
		}
	}

	if c.dispatcher == nil {
		set("dispatcher", ComponentHealth{Message: "not initialized"})
	} else {
		set("dispatcher", ComponentHealth{Healthy: true})
	}

	if c.repositories == nil {
		set("org_cache", ComponentHealth{Message: "not initialized"})
	} else {
		set("org_cache", ComponentHealth{Healthy: true, Message: fmt.Sprintf("cached users: %d", c.repositories.Org.Len())})
	}

	// Lark is optional; report its mode without affecting overall health.
	if c.notifier == nil {
		status.Components["lark"] = ComponentHealth{Healthy: true, Message: "disabled"}
	} else {
		status.Components["lark"] = ComponentHealth{Healthy: true}
	}

	return status
}

// DB returns the underlying database handle, for seeding and tests.
func (c *Container) DB() *database.DB {
	if c.database == nil {
		return nil
	}
	return c.database.DB
}
