// Package http exposes the trip workflow over a JSON API.
// Handlers translate requests to workflow commands and queries and map
// workflow error kinds to status codes.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/trip-approval/internal/application/service"
	appwf "github.com/garyjia/trip-approval/internal/application/workflow"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:            "0.0.0.0",
		Port:            8080,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	handlers   *Handlers
	metrics    http.Handler
	logger     Logger
}

// ServerOption configures the server
type ServerOption func(*Server)

// WithMetricsHandler serves h at GET /metrics
func WithMetricsHandler(h http.Handler) ServerOption {
	return func(s *Server) {
		s.metrics = h
	}
}

// NewServer creates a new HTTP server over the workflow and its read side
func NewServer(
	config ServerConfig,
	workflow appwf.TripWorkflow,
	queries service.TripQueryService,
	reports ReportRenderer,
	logger Logger,
	opts ...ServerOption,
) *Server {
	gin.SetMode(gin.ReleaseMode)

	server := &Server{
		config:   config,
		router:   gin.New(),
		handlers: NewHandlers(workflow, queries, reports, logger),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(server)
	}

	server.router.Use(gin.Recovery(), server.loggingMiddleware())
	server.setupRoutes()

	return server
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		s.logger.Info("HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"actor_id", c.GetHeader(HeaderActorID),
		)
	}
}

func (s *Server) setupRoutes() {
	h := s.handlers

	s.router.GET("/health", h.HealthCheck)
	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.metrics))
	}

	trips := s.router.Group("/api/trips", h.RequireActor())
	{
		trips.POST("", h.CreateTrip)
		trips.GET("/:id", h.GetTrip)
		trips.PUT("/:id/details", h.UpdateDetails)
		trips.POST("/:id/complete-form", h.CompleteForm)

		trips.POST("/:id/submit", h.Submit)
		trips.POST("/:id/assign", h.Assign)
		trips.POST("/:id/return", h.Return)
		trips.POST("/:id/reject", h.Reject)
		trips.POST("/:id/cancel", h.Cancel)
		trips.POST("/:id/return-to-draft", h.ReturnToDraft)

		trips.POST("/:id/confirm-plan", h.ConfirmPlan)

		trips.POST("/:id/expenses", h.SubmitExpenses)
		trips.POST("/:id/expenses/approve", h.ApproveExpenses)
		trips.POST("/:id/expenses/return", h.ReturnExpenses)
		trips.POST("/:id/expenses/recall", h.UndoExpenseRecall)
		trips.POST("/:id/expenses/undo-approval", h.UndoExpenseApproval)

		trips.GET("/:id/messages", h.ListMessages)
		trips.GET("/:id/history", h.ListHistory)
		trips.GET("/:id/commands", h.AvailableCommands)
		trips.GET("/:id/report.xlsx", h.BudgetReport)
	}
}

// Start runs the server until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	addr := s.Address()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
