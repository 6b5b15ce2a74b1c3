package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/garyjia/trip-approval/internal/application/dispatcher"
	"github.com/garyjia/trip-approval/internal/application/port"
	"github.com/garyjia/trip-approval/internal/domain/entity"
	"github.com/garyjia/trip-approval/internal/domain/event"
	"github.com/garyjia/trip-approval/internal/domain/workflow"
)

// Renderer produces the budget workbook of a trip
type Renderer interface {
	Render(trip *entity.TripRequest) ([]byte, error)
}

// ReportArchive writes the budget workbook of every completed trip below baseDir.
// A trip completed again after an undone approval overwrites its earlier workbook.
type ReportArchive struct {
	baseDir string
	trips   port.TripRepository
	reports Renderer
	logger  *zap.Logger
}

// NewReportArchive creates a new ReportArchive
func NewReportArchive(baseDir string, trips port.TripRepository, reports Renderer, logger *zap.Logger) *ReportArchive {
	return &ReportArchive{
		baseDir: baseDir,
		trips:   trips,
		reports: reports,
		logger:  logger,
	}
}

// Subscribe archives on every transition into Completed
func (a *ReportArchive) Subscribe(d dispatcher.Dispatcher) {
	d.SubscribeNamed(event.TypeTripTransitioned, "storage.report_archive", a.onTransition)
}

func (a *ReportArchive) onTransition(ctx context.Context, evt *event.Event) error {
	if to, _ := evt.Payload[event.KeyToState].(string); to != workflow.StateCompleted.String() {
		return nil
	}
	_, err := a.Archive(ctx, evt.TripID)
	return err
}

// Archive renders the trip's workbook and stores it, returning the file path
func (a *ReportArchive) Archive(ctx context.Context, tripID int64) (string, error) {
	trip, err := a.trips.Get(ctx, tripID)
	if err != nil {
		return "", fmt.Errorf("load trip %d: %w", tripID, err)
	}

	content, err := a.reports.Render(trip)
	if err != nil {
		return "", fmt.Errorf("render budget report for trip %d: %w", tripID, err)
	}

	path := a.Path(tripID)
	if err := a.save(path, content); err != nil {
		return "", err
	}

	a.logger.Info("Budget report archived",
		zap.Int64("trip_id", tripID),
		zap.String("path", path),
		zap.Int("size", len(content)))
	return path, nil
}

// Read returns the archived workbook of a trip
func (a *ReportArchive) Read(tripID int64) ([]byte, error) {
	content, err := os.ReadFile(a.Path(tripID))
	if err != nil {
		return nil, fmt.Errorf("failed to read archived report: %w", err)
	}
	return content, nil
}

// Path returns where the workbook of a trip is stored
func (a *ReportArchive) Path(tripID int64) string {
	return filepath.Join(a.baseDir, fmt.Sprintf("trip-%d", tripID), "budget.xlsx")
}

// save writes through a temp file so readers never see a partial workbook
func (a *ReportArchive) save(fullPath string, content []byte) error {
	if err := a.validatePath(fullPath); err != nil {
		return err
	}

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		a.logger.Error("Failed to create archive directory", zap.String("path", dir), zap.Error(err))
		return fmt.Errorf("failed to create directories: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".budget-*.xlsx")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		a.logger.Error("Failed to move report into place", zap.String("path", fullPath), zap.Error(err))
		return fmt.Errorf("failed to store file: %w", err)
	}
	return nil
}

// validatePath checks that the path stays within baseDir
func (a *ReportArchive) validatePath(fullPath string) error {
	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	absBase, err := filepath.Abs(a.baseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base path: %w", err)
	}

	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) {
		return fmt.Errorf("path escapes archive directory: %s", fullPath)
	}
	return nil
}
