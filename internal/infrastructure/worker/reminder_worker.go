package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/trip-approval/internal/application/service"
)

// ReminderWorkerConfig holds configuration for the reminder worker
type ReminderWorkerConfig struct {
	SweepEvery   time.Duration
	SweepTimeout time.Duration
	// RunOnStart performs a sweep immediately instead of waiting a full period
	RunOnStart bool
}

// DefaultReminderWorkerConfig returns default configuration
func DefaultReminderWorkerConfig() ReminderWorkerConfig {
	return ReminderWorkerConfig{
		SweepEvery:   5 * time.Minute,
		SweepTimeout: time.Minute,
		RunOnStart:   true,
	}
}

// ReminderWorker runs the expense reminder sweep on a ticker
type ReminderWorker struct {
	config    ReminderWorkerConfig
	reminders service.ReminderService
	logger    *zap.Logger

	mu        sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	isRunning bool
	sweeps    int
	lastSweep service.SweepResult
	lastError error
}

// NewReminderWorker creates a new reminder worker
func NewReminderWorker(config ReminderWorkerConfig, reminders service.ReminderService, logger *zap.Logger) *ReminderWorker {
	if config.SweepEvery <= 0 {
		config.SweepEvery = DefaultReminderWorkerConfig().SweepEvery
	}
	return &ReminderWorker{
		config:    config,
		reminders: reminders,
		logger:    logger,
	}
}

// Start begins the sweep loop
func (w *ReminderWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.isRunning {
		return fmt.Errorf("reminder worker already running")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.isRunning = true

	w.logger.Info("ReminderWorker started", zap.Duration("sweep_every", w.config.SweepEvery))

	go w.loop(loopCtx, w.done)
	return nil
}

// Stop cancels the loop and waits for an in-flight sweep to finish
func (w *ReminderWorker) Stop() error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = false
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()
	<-done

	w.logger.Info("ReminderWorker stopped", zap.Int("sweeps", w.Sweeps()))
	return nil
}

// Name returns the worker name for identification
func (w *ReminderWorker) Name() string {
	return "ReminderWorker"
}

// Sweeps returns how many sweeps have completed
func (w *ReminderWorker) Sweeps() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sweeps
}

// LastSweep returns the result and error of the most recent sweep
func (w *ReminderWorker) LastSweep() (service.SweepResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastSweep, w.lastError
}

func (w *ReminderWorker) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.config.SweepEvery)
	defer ticker.Stop()

	if w.config.RunOnStart {
		w.sweep(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *ReminderWorker) sweep(ctx context.Context) {
	sweepCtx := ctx
	if w.config.SweepTimeout > 0 {
		var cancel context.CancelFunc
		sweepCtx, cancel = context.WithTimeout(ctx, w.config.SweepTimeout)
		defer cancel()
	}

	result, err := w.reminders.Sweep(sweepCtx)

	w.mu.Lock()
	w.sweeps++
	w.lastSweep = result
	w.lastError = err
	w.mu.Unlock()

	if err != nil {
		w.logger.Error("Reminder sweep failed", zap.Error(err))
		return
	}
	if result.Sent > 0 || result.Failed > 0 {
		w.logger.Info("Reminder sweep finished",
			zap.Int("checked", result.Checked),
			zap.Int("sent", result.Sent),
			zap.Int("failed", result.Failed))
	}
}
