// Package database holds the run ledger: a gorm-managed history of pipeline runs and their steps.
package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/giobale/dog-breed-explorer/internal/config"
	"github.com/giobale/dog-breed-explorer/internal/models"
)

// ErrRunNotFound is returned when a run id is not in the ledger.
var ErrRunNotFound = errors.New("pipeline run not found")

// Connect opens the ledger database and migrates its schema.
func Connect(cfg config.LedgerConfig, log *zap.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported ledger driver %q", cfg.Driver)
	}

	gormLogger := logger.New(
		zap.NewStdLog(log.Named("gorm")),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ledger database: %w", err)
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	log.Info("Ledger database ready", zap.String("driver", cfg.Driver))
	return db, nil
}

// Migrate creates or updates the ledger tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.PipelineRun{}, &models.StepResult{}); err != nil {
		return fmt.Errorf("failed to auto-migrate ledger schema: %w", err)
	}
	return nil
}

// RunStore reads and writes pipeline runs.
type RunStore struct {
	db *gorm.DB
}

// NewRunStore wraps a migrated gorm handle.
func NewRunStore(db *gorm.DB) *RunStore {
	return &RunStore{db: db}
}

// Ping checks the underlying connection.
func (s *RunStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// StartRun inserts a run in running state.
func (s *RunStore) StartRun(ctx context.Context, stage, trigger string) (*models.PipelineRun, error) {
	run := &models.PipelineRun{
		ID:        uuid.New(),
		Stage:     stage,
		Trigger:   trigger,
		Status:    models.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Omit("Steps").Create(run).Error; err != nil {
		return nil, fmt.Errorf("failed to record start of %s run: %w", stage, err)
	}
	return run, nil
}

// FinishRun stores the final state of the run and its steps in one transaction.
func (s *RunStore) FinishRun(ctx context.Context, run *models.PipelineRun) error {
	if run.FinishedAt == nil {
		now := time.Now().UTC()
		run.FinishedAt = &now
	}
	for i := range run.Steps {
		if run.Steps[i].ID == uuid.Nil {
			run.Steps[i].ID = uuid.New()
		}
		run.Steps[i].RunID = run.ID
		run.Steps[i].Seq = i + 1
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&models.PipelineRun{}).Where("id = ?", run.ID).Updates(map[string]interface{}{
			"status":      run.Status,
			"load_id":     run.LoadID,
			"rows_loaded": run.RowsLoaded,
			"error":       run.Error,
			"finished_at": run.FinishedAt,
		}).Error
		if err != nil {
			return fmt.Errorf("failed to update run %s: %w", run.ID, err)
		}
		if len(run.Steps) > 0 {
			if err := tx.Create(&run.Steps).Error; err != nil {
				return fmt.Errorf("failed to record steps of run %s: %w", run.ID, err)
			}
		}
		return nil
	})
}

// ListRuns returns runs newest first, without steps, plus the total count.
func (s *RunStore) ListRuns(ctx context.Context, limit, offset int) ([]models.PipelineRun, int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&models.PipelineRun{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count runs: %w", err)
	}
	runs := []models.PipelineRun{}
	err := s.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&runs).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, total, nil
}

// GetRun returns one run with its steps in execution order.
func (s *RunStore) GetRun(ctx context.Context, id uuid.UUID) (*models.PipelineRun, error) {
	var run models.PipelineRun
	err := s.db.WithContext(ctx).
		Preload("Steps", func(db *gorm.DB) *gorm.DB { return db.Order("seq ASC") }).
		First(&run, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", id, err)
	}
	return &run, nil
}
