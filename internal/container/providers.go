package container

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/trip-approval/internal/application/dispatcher"
	"github.com/garyjia/trip-approval/internal/application/port"
	"github.com/garyjia/trip-approval/internal/application/service"
	appwf "github.com/garyjia/trip-approval/internal/application/workflow"
	"github.com/garyjia/trip-approval/internal/config"
	"github.com/garyjia/trip-approval/internal/domain/entity"
	"github.com/garyjia/trip-approval/internal/infrastructure/cache"
	infraLark "github.com/garyjia/trip-approval/internal/infrastructure/external/lark"
	"github.com/garyjia/trip-approval/internal/infrastructure/persistence/repository"
	"github.com/garyjia/trip-approval/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/trip-approval/internal/infrastructure/worker"
	"github.com/garyjia/trip-approval/pkg/database"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	DB             *database.DB
	TransactionMgr *sqlite.DB
	// Applied is the number of migrations run while opening
	Applied int
}

// RepositoryBundle holds the sqlite repositories.
type RepositoryBundle struct {
	Trips       *repository.TripRepository
	History     *repository.HistoryRepository
	Messages    *repository.MessageRepository
	Attachments *repository.AttachmentRepository
	Users       *repository.UserRepository
}

// ServiceBundle holds the application services.
type ServiceBundle struct {
	Router    service.NotificationRouter
	Reminders service.ReminderService
	Queries   service.TripQueryService
}

// ProvideDatabase opens the database and applies pending migrations.
func ProvideDatabase(cfg *config.DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		BusyTimeout:     cfg.BusyTimeout,
	}, logger)
	if err != nil {
		return nil, err
	}

	applied, err := database.NewMigrator(db, logger).Run()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		DB:             db,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
		Applied:        applied,
	}, nil
}

// ProvideRepositories creates all repositories over an open database.
// Messages are stamped with clock, the same clock the notification router dedups with.
func ProvideRepositories(db *database.DB, clock port.Clock, logger *zap.Logger) (*RepositoryBundle, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		Trips:       repository.NewTripRepository(db.DB, logger),
		History:     repository.NewHistoryRepository(db.DB, logger),
		Messages:    repository.NewMessageRepository(db.DB, logger, repository.WithMessageClock(clock)),
		Attachments: repository.NewAttachmentRepository(db.DB, logger),
		Users:       repository.NewUserRepository(db.DB, logger),
	}, nil
}

// ProvideDirectory creates the cached user directory and seeds it with the configured users.
func ProvideDirectory(ctx context.Context, cfg *config.DirectoryConfig, users port.UserRepository, logger *zap.Logger) (*cache.DirectoryCache, error) {
	if cfg == nil {
		return nil, fmt.Errorf("directory config is required")
	}

	var opts []cache.Option
	if cfg.DefaultApprover != "" {
		opts = append(opts, cache.WithDefaultApprover(cfg.DefaultApprover))
	}
	directory := cache.NewDirectoryCache(users, cfg.CacheTTL, logger, opts...)

	for _, seed := range cfg.Users {
		user := &entity.User{
			ID:         seed.ID,
			Name:       seed.Name,
			Groups:     seed.Groups,
			LarkOpenID: seed.LarkOpenID,
		}
		if err := directory.Upsert(ctx, user); err != nil {
			return nil, fmt.Errorf("seed user %s: %w", seed.ID, err)
		}
	}

	logger.Info("User directory ready", zap.Int("seeded_users", len(cfg.Users)))
	return directory, nil
}

// ProvideNotificationSink returns the message store, delivering each message to Lark when enabled.
func ProvideNotificationSink(cfg *config.LarkConfig, messages port.NotificationSink, directory port.UserDirectory, logger *zap.Logger) (port.NotificationSink, error) {
	if messages == nil {
		return nil, fmt.Errorf("message store is required")
	}
	if cfg == nil || !cfg.Enabled {
		logger.Info("Lark delivery disabled, messages are stored only")
		return messages, nil
	}

	sdk := infraLark.NewSDKClient(infraLark.Config{
		AppID:          cfg.AppID,
		AppSecret:      cfg.AppSecret,
		International:  cfg.International,
		RequestTimeout: cfg.APITimeout,
	}, logger)
	messenger := infraLark.NewMessenger(infraLark.NewTextSender(sdk, logger), logger)

	return service.NewDeliveringSink(messages, directory, messenger, newLoggerAdapter(logger)), nil
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(logger *zap.Logger) (dispatcher.Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return dispatcher.NewDispatcher(dispatcher.WithLogger(newLoggerAdapter(logger))), nil
}

// ServiceDeps holds dependencies for creating services.
type ServiceDeps struct {
	Repos      *RepositoryBundle
	Directory  port.UserDirectory
	Sink       port.NotificationSink
	Dispatcher dispatcher.Dispatcher
	Clock      port.Clock
	Workflow   *config.WorkflowConfig
	Reminder   *config.ReminderConfig
	Logger     *zap.Logger
}

// ProvideServices creates the notification router, reminder and query services.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}
	if deps.Repos == nil || deps.Directory == nil || deps.Sink == nil {
		return nil, fmt.Errorf("repositories, directory and sink are required")
	}

	logger := newLoggerAdapter(deps.Logger)
	clock := deps.Clock
	if clock == nil {
		clock = systemClock{}
	}

	routerOpts := []service.RouterOption{service.WithRouterDispatcher(deps.Dispatcher)}
	if deps.Workflow != nil && deps.Workflow.DedupWindow > 0 {
		routerOpts = append(routerOpts, service.WithDedupWindow(deps.Workflow.DedupWindow))
	}
	router := service.NewNotificationRouter(deps.Sink, clock, logger, routerOpts...)

	interval := config.ReminderConfig{IntervalValue: 7, IntervalUnit: config.UnitDays}.Interval()
	if deps.Reminder != nil {
		interval = deps.Reminder.Interval()
	}
	reminders := service.NewReminderService(
		deps.Repos.Trips,
		router,
		clock,
		interval,
		logger,
		service.WithReminderDispatcher(deps.Dispatcher),
	)

	queries := service.NewTripQueryService(
		deps.Repos.Trips,
		deps.Repos.Messages,
		deps.Repos.History,
		deps.Repos.Attachments,
		deps.Directory,
		logger,
	)

	return &ServiceBundle{
		Router:    router,
		Reminders: reminders,
		Queries:   queries,
	}, nil
}

// WorkflowDeps holds dependencies for creating the trip workflow.
type WorkflowDeps struct {
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	Directory  port.UserDirectory
	Router     service.NotificationRouter
	Dispatcher dispatcher.Dispatcher
	Clock      port.Clock
	Config     *config.WorkflowConfig
	Logger     *zap.Logger
}

// ProvideWorkflow creates the trip workflow.
func ProvideWorkflow(deps *WorkflowDeps) (appwf.TripWorkflow, error) {
	if deps == nil {
		return nil, fmt.Errorf("workflow dependencies are required")
	}
	if deps.Repos == nil || deps.TxManager == nil || deps.Directory == nil {
		return nil, fmt.Errorf("repositories, transaction manager and directory are required")
	}

	opts := []appwf.Option{
		appwf.WithDispatcher(deps.Dispatcher),
		appwf.WithAttachmentStore(deps.Repos.Attachments),
	}
	if deps.Config != nil {
		opts = append(opts, appwf.WithUndoApprovalDayLimit(deps.Config.UndoApprovalDaysLimit))
	}
	if deps.Clock != nil {
		opts = append(opts, appwf.WithClock(deps.Clock))
	}

	return appwf.NewTripWorkflow(
		deps.Repos.Trips,
		deps.Repos.History,
		deps.TxManager,
		deps.Directory,
		deps.Router,
		newLoggerAdapter(deps.Logger),
		opts...,
	), nil
}

// ProvideWorkers registers the background workers enabled by cfg.
func ProvideWorkers(cfg *config.ReminderConfig, reminders service.ReminderService, logger *zap.Logger) (*worker.WorkerManager, error) {
	if logger == nil {
		return nil, errors.New("logger is required")
	}

	manager := worker.NewWorkerManager(logger)
	if cfg == nil || !cfg.Enabled {
		logger.Info("Reminder worker disabled")
		return manager, nil
	}
	if reminders == nil {
		return nil, errors.New("reminder service is required")
	}

	workerCfg := worker.DefaultReminderWorkerConfig()
	if cfg.SweepEvery > 0 {
		workerCfg.SweepEvery = cfg.SweepEvery
	}
	if cfg.SweepTimeout > 0 {
		workerCfg.SweepTimeout = cfg.SweepTimeout
	}
	manager.Register(worker.NewReminderWorker(workerCfg, reminders, logger))

	return manager, nil
}
