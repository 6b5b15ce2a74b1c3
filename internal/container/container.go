// Package container wires the trip approval components together and owns
// their start and shutdown order.
package container

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/trip-approval/internal/application/dispatcher"
	"github.com/garyjia/trip-approval/internal/application/port"
	appwf "github.com/garyjia/trip-approval/internal/application/workflow"
	"github.com/garyjia/trip-approval/internal/config"
	"github.com/garyjia/trip-approval/internal/infrastructure/cache"
	"github.com/garyjia/trip-approval/internal/infrastructure/export"
	"github.com/garyjia/trip-approval/internal/infrastructure/metrics"
	"github.com/garyjia/trip-approval/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/trip-approval/internal/infrastructure/storage"
	"github.com/garyjia/trip-approval/internal/infrastructure/worker"
	httpapi "github.com/garyjia/trip-approval/internal/interfaces/http"
	"github.com/garyjia/trip-approval/pkg/database"
)

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents the health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// Container holds every wired component.
type Container struct {
	config *config.Config
	logger *zap.Logger
	clock  port.Clock

	db           *database.DB
	txManager    *sqlite.DB
	repositories *RepositoryBundle
	directory    *cache.DirectoryCache
	sink         port.NotificationSink
	dispatcher   dispatcher.Dispatcher
	metrics      *metrics.Recorder
	services     *ServiceBundle
	workflow     appwf.TripWorkflow
	reports      *export.BudgetReport
	archive      *storage.ReportArchive
	workers      *worker.WorkerManager

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	ready  atomic.Bool
	closed atomic.Bool
}

// Option configures the container
type Option func(*Container)

// WithClock replaces the wall clock used by the services and the workflow
func WithClock(c port.Clock) Option {
	return func(ct *Container) {
		ct.clock = c
	}
}

// NewContainer creates a container over a validated configuration.
// Nothing is opened until Start.
func NewContainer(cfg *config.Config, logger *zap.Logger, opts ...Option) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	c := &Container{
		config: cfg,
		logger: logger,
		clock:  systemClock{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Start initializes the components in dependency order and starts the workers.
// When startWorkers is false the workers are built but not run.
func (c *Container) Start(ctx context.Context, startWorkers bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}
	if c.closed.Load() {
		return fmt.Errorf("container is closed")
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	start := time.Now()

	steps := []struct {
		name string
		fn   func() error
	}{
		{"database", c.initDatabase},
		{"directory", c.initDirectory},
		{"dispatcher", c.initDispatcher},
		{"notifications", c.initNotifications},
		{"services", c.initServices},
		{"workflow", c.initWorkflow},
		{"workers", c.initWorkers},
	}

	for _, step := range steps {
		if err := step.fn(); err != nil {
			c.logger.Error("Container init failed", zap.String("step", step.name), zap.Error(err))
			c.closeLocked()
			return fmt.Errorf("init %s: %w", step.name, err)
		}
		c.logger.Debug("Container step initialized", zap.String("step", step.name))
	}

	if startWorkers {
		if err := c.workers.StartAll(c.ctx); err != nil {
			c.closeLocked()
			return fmt.Errorf("failed to start workers: %w", err)
		}
	}

	c.ready.Store(true)
	c.logger.Info("Container started",
		zap.Duration("elapsed", time.Since(start)),
		zap.Bool("workers", startWorkers))
	return nil
}

// Close shuts the components down in reverse initialization order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return nil
	}
	return c.closeLocked()
}

func (c *Container) closeLocked() error {
	var errs []error

	if c.cancel != nil {
		c.cancel()
	}

	if c.workers != nil {
		if err := c.workers.StopAll(); err != nil {
			c.logger.Error("Failed to stop workers", zap.Error(err))
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		}
	}

	// in-flight async handlers finish before the database goes away
	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			c.logger.Error("Failed to close dispatcher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		}
	}

	if c.db != nil {
		if err := c.db.Close(); err != nil {
			c.logger.Error("Failed to close database", zap.Error(err))
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return fmt.Errorf("container closed with %d errors", len(errs))
	}

	c.logger.Info("Container closed")
	return nil
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health() *HealthStatus {
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
	case c.db == nil:
		set("database", ComponentHealth{Message: "not initialized"})
	default:
		if err := c.db.Ping(); err != nil {
			set("database", ComponentHealth{Message: fmt.Sprintf("ping failed: %v", err)})
		} else {
			set("database", ComponentHealth{Healthy: true})
		}
	}

	if c.directory == nil {
		set("directory", ComponentHealth{Message: "not initialized"})
	} else {
		set("directory", ComponentHealth{Healthy: true, Message: fmt.Sprintf("cached users: %d", c.directory.ItemCount())})
	}

	if c.dispatcher == nil {
		set("dispatcher", ComponentHealth{Message: "not initialized"})
	} else {
		set("dispatcher", ComponentHealth{Healthy: true})
	}

	// a disabled reminder worker is healthy
	if c.workers == nil {
		set("workers", ComponentHealth{Message: "not initialized"})
	} else {
		count := c.workers.GetWorkerCount()
		set("workers", ComponentHealth{
			Healthy: count == 0 || c.workers.IsRunning(),
			Message: fmt.Sprintf("worker count: %d", count),
		})
	}

	return status
}

func (c *Container) initDatabase() error {
	bundle, err := ProvideDatabase(&c.config.Database, c.logger)
	if err != nil {
		return err
	}
	c.db = bundle.DB
	c.txManager = bundle.TransactionMgr

	repos, err := ProvideRepositories(c.db, c.clock, c.logger)
	if err != nil {
		return err
	}
	c.repositories = repos
	return nil
}

func (c *Container) initDirectory() error {
	directory, err := ProvideDirectory(c.ctx, &c.config.Directory, c.repositories.Users, c.logger)
	if err != nil {
		return err
	}
	c.directory = directory
	return nil
}

func (c *Container) initDispatcher() error {
	disp, err := ProvideDispatcher(c.logger)
	if err != nil {
		return err
	}
	c.dispatcher = disp

	c.metrics = metrics.NewRecorder()
	c.metrics.Subscribe(c.dispatcher)
	return nil
}

func (c *Container) initNotifications() error {
	sink, err := ProvideNotificationSink(&c.config.Lark, c.repositories.Messages, c.directory, c.logger)
	if err != nil {
		return err
	}
	c.sink = sink
	return nil
}

func (c *Container) initServices() error {
	services, err := ProvideServices(&ServiceDeps{
		Repos:      c.repositories,
		Directory:  c.directory,
		Sink:       c.sink,
		Dispatcher: c.dispatcher,
		Clock:      c.clock,
		Workflow:   &c.config.Workflow,
		Reminder:   &c.config.Reminder,
		Logger:     c.logger,
	})
	if err != nil {
		return err
	}
	c.services = services
	c.reports = export.NewBudgetReport(c.logger)

	if c.config.Archive.Enabled {
		c.archive = storage.NewReportArchive(c.config.Archive.Dir, c.repositories.Trips, c.reports, c.logger)
		c.archive.Subscribe(c.dispatcher)
	}
	return nil
}

func (c *Container) initWorkflow() error {
	wf, err := ProvideWorkflow(&WorkflowDeps{
		Repos:      c.repositories,
		TxManager:  c.txManager,
		Directory:  c.directory,
		Router:     c.services.Router,
		Dispatcher: c.dispatcher,
		Clock:      c.clock,
		Config:     &c.config.Workflow,
		Logger:     c.logger,
	})
	if err != nil {
		return err
	}
	c.workflow = wf
	return nil
}

func (c *Container) initWorkers() error {
	workers, err := ProvideWorkers(&c.config.Reminder, c.services.Reminders, c.logger)
	if err != nil {
		return err
	}
	c.workers = workers
	return nil
}

// HTTPServer builds the API server over the started container.
func (c *Container) HTTPServer() (*httpapi.Server, error) {
	if !c.ready.Load() {
		return nil, fmt.Errorf("container not started")
	}

	srv := c.config.Server
	return httpapi.NewServer(
		httpapi.ServerConfig{
			Host:            srv.Host,
			Port:            srv.Port,
			ReadTimeout:     srv.ReadTimeout,
			WriteTimeout:    srv.WriteTimeout,
			ShutdownTimeout: srv.ShutdownTimeout,
		},
		c.workflow,
		c.services.Queries,
		c.reports,
		newLoggerAdapter(c.logger),
		httpapi.WithMetricsHandler(c.MetricsHandler()),
	), nil
}

// Workflow returns the trip workflow.
func (c *Container) Workflow() appwf.TripWorkflow {
	return c.workflow
}

// Services returns the application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Repositories returns all repositories.
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// Directory returns the cached user directory.
func (c *Container) Directory() *cache.DirectoryCache {
	return c.directory
}

// Archive returns the report archive, nil when disabled.
func (c *Container) Archive() *storage.ReportArchive {
	return c.archive
}

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// Workers returns the worker manager.
func (c *Container) Workers() *worker.WorkerManager {
	return c.workers
}

// MetricsHandler serves the Prometheus registry.
func (c *Container) MetricsHandler() http.Handler {
	if c.metrics == nil {
		return http.NotFoundHandler()
	}
	return c.metrics.Handler()
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// zapLoggerAdapter adapts zap.Logger to the key-value Logger interfaces of the
// application and interface layers.
type zapLoggerAdapter struct {
	logger *zap.Logger
}

func newLoggerAdapter(logger *zap.Logger) *zapLoggerAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &zapLoggerAdapter{logger: logger.WithOptions(zap.AddCallerSkip(1))}
}

func (a *zapLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info(msg, convertToZapFields(keysAndValues...)...)
}

func (a *zapLoggerAdapter) Warn(msg string, keysAndValues ...interface{}) {
	a.logger.Warn(msg, convertToZapFields(keysAndValues...)...)
}

func (a *zapLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, convertToZapFields(keysAndValues...)...)
}

// convertToZapFields converts key-value pairs to zap fields.
func convertToZapFields(keysAndValues ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		if err, isErr := keysAndValues[i+1].(error); isErr {
			fields = append(fields, zap.NamedError(key, err))
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}
