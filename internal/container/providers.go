// Package container provides dependency injection and lifecycle management
// for the timesheet approval service.
package container

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/timesheet-approval/internal/application/dispatcher"
	"github.com/garyjia/timesheet-approval/internal/application/port"
	"github.com/garyjia/timesheet-approval/internal/application/service"
	"github.com/garyjia/timesheet-approval/internal/config"
	"github.com/garyjia/timesheet-approval/internal/infrastructure/export"
	infraLark "github.com/garyjia/timesheet-approval/internal/infrastructure/external/lark"
	"github.com/garyjia/timesheet-approval/internal/infrastructure/orgcache"
	"github.com/garyjia/timesheet-approval/internal/infrastructure/persistence/repository"
	"github.com/garyjia/timesheet-approval/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/timesheet-approval/migrations"
	"github.com/garyjia/timesheet-approval/pkg/database"
	"github.com/garyjia/timesheet-approval/pkg/utils"
)

var (
	_ service.Logger    = (*utils.SugarLogger)(nil)
	_ dispatcher.Logger = (*utils.SugarLogger)(nil)
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	DB             *database.DB
	TransactionMgr *sqlite.DB
}

// ProvideDatabase opens SQLite and applies the embedded migrations.
func ProvideDatabase(cfg config.DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		BusyTimeout:     cfg.BusyTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := database.NewMigrator(db, logger).Run(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		DB:             db,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories on one database handle.
func ProvideRepositories(db *database.DB, orgTTL time.Duration, clock port.Clock, logger *zap.Logger) *RepositoryBundle {
	users := repository.NewUserRepository(db.DB, logger)
	return &RepositoryBundle{
		Users:       users,
		Org:         orgcache.New(users, orgTTL, clock, logger),
		Delegations: repository.NewDelegationRepository(db.DB, logger),
		Timesheets:  repository.NewTimesheetRepository(db.DB, logger),
		Audit:       repository.NewAuditRepository(db.DB, logger),
	}
}

// ProvideDispatcher creates the event dispatcher used for notifications.
func ProvideDispatcher(cfg config.DispatcherConfig, logger *zap.Logger) dispatcher.Dispatcher {
	return dispatcher.NewDispatcher(
		dispatcher.WithLogger(utils.NewSugarLogger(logger)),
		dispatcher.WithHandlerTimeout(cfg.HandlerTimeout),
		dispatcher.WithMaxInFlight(cfg.MaxInFlight),
	)
}

// ProvideNotifier returns the Lark notifier, or nil when Lark is disabled.
func ProvideNotifier(cfg config.LarkConfig, logger *zap.Logger) port.Notifier {
	if !cfg.Enabled {
		return nil
	}
	sdk := infraLark.NewSDKClient(infraLark.Config{AppID: cfg.AppID, AppSecret: cfg.AppSecret}, logger)
	return infraLark.NewNotifier(sdk, logger)
}

// ServiceDeps holds what the application services are built from.
type ServiceDeps struct {
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	Dispatcher dispatcher.Dispatcher
	Notifier   port.Notifier
	Clock      port.Clock
	Logger     *zap.Logger
}

// ProvideServices creates the application services and subscribes the
// notification handlers when a notifier is configured.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil || deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.TxManager == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}

	sugar := utils.NewSugarLogger(deps.Logger)
	repos := deps.Repos

	delegations := service.NewDelegationService(
		repos.Delegations, repos.Users, repos.Audit, deps.TxManager, deps.Dispatcher, deps.Clock, sugar)
	entitlements := service.NewEntitlementService(repos.Users, repos.Org, delegations, deps.Clock, sugar)
	approvals := service.NewApprovalService(
		repos.Timesheets, entitlements, repos.Audit, deps.TxManager, deps.Dispatcher, deps.Clock, sugar)
	audit := service.NewAuditService(repos.Audit, export.NewXLSXExporter(deps.Logger), repos.Users, sugar)

	bundle := &ServiceBundle{
		Delegations:  delegations,
		Entitlements: entitlements,
		Approvals:    approvals,
		Audit:        audit,
	}

	if deps.Notifier != nil && deps.Dispatcher != nil {
		bundle.Notification = service.NewNotificationService(repos.Users, repos.Org, deps.Notifier, sugar)
		bundle.Notification.Register(deps.Dispatcher)
	}

	return bundle, nil
}
