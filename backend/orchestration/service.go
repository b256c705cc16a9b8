// Package orchestration runs pipeline stages and records every run in the ledger.
package orchestration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/giobale/dog-breed-explorer/backend/ingestion"
	"github.com/giobale/dog-breed-explorer/backend/notify"
	"github.com/giobale/dog-breed-explorer/backend/processing"
	"github.com/giobale/dog-breed-explorer/internal/metrics"
	"github.com/giobale/dog-breed-explorer/internal/models"
)

// ErrStageFailed is returned when a stage completed but a model errored or a test failed.
var ErrStageFailed = errors.New("pipeline stage failed")

// Extractor loads the breed catalog into the raw table.
type Extractor interface {
	IngestBreeds(ctx context.Context) (*ingestion.LoadInfo, error)
}

// Processor evaluates the transformation graph and its tests.
type Processor interface {
	Run(ctx context.Context) (*processing.RunResult, error)
	Test(ctx context.Context) (*processing.RunResult, error)
	Build(ctx context.Context) (*processing.RunResult, error)
}

// Ledger records pipeline runs.
type Ledger interface {
	StartRun(ctx context.Context, stage, trigger string) (*models.PipelineRun, error)
	FinishRun(ctx context.Context, run *models.PipelineRun) error
}

// Service runs one pipeline stage at a time.
type Service struct {
	extractor Extractor
	processor Processor
	ledger    Ledger
	notifier  notify.Notifier
	log       *zap.Logger

	mu  sync.Mutex
	now func() time.Time
}

// NewService creates a new Service. A nil notifier disables notifications.
func NewService(extractor Extractor, processor Processor, ledger Ledger, notifier notify.Notifier, log *zap.Logger) *Service {
	if notifier == nil {
		notifier = notify.Multi(nil)
	}
	return &Service{
		extractor: extractor,
		processor: processor,
		ledger:    ledger,
		notifier:  notifier,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Extract loads the breed catalog into the raw table.
func (s *Service) Extract(ctx context.Context, trigger string) (*models.PipelineRun, error) {
	return s.RunStage(ctx, models.StageExtract, trigger)
}

// Run evaluates every model.
func (s *Service) Run(ctx context.Context, trigger string) (*models.PipelineRun, error) {
	return s.RunStage(ctx, models.StageRun, trigger)
}

// Test runs every data test against the current tables.
func (s *Service) Test(ctx context.Context, trigger string) (*models.PipelineRun, error) {
	return s.RunStage(ctx, models.StageTest, trigger)
}

// Build evaluates every model, then runs the tests.
func (s *Service) Build(ctx context.Context, trigger string) (*models.PipelineRun, error) {
	return s.RunStage(ctx, models.StageBuild, trigger)
}

// All extracts, then builds. A failed extract skips the build.
func (s *Service) All(ctx context.Context, trigger string) (*models.PipelineRun, error) {
	return s.RunStage(ctx, models.StageAll, trigger)
}

// Trigger runs a stage requested over HTTP.
func (s *Service) Trigger(ctx context.Context, stage string) (*models.PipelineRun, error) {
	return s.RunStage(ctx, stage, TriggerAPI)
}

// RunStage executes a stage and records it. It returns models.ErrPipelineBusy when another
// stage is running. The returned run is non-nil whenever the ledger accepted it, even on error.
func (s *Service) RunStage(ctx context.Context, stage, trigger string) (*models.PipelineRun, error) {
	if !models.ValidStages[stage] {
		return nil, fmt.Errorf("unknown pipeline stage %q", stage)
	}
	if !s.mu.TryLock() {
		return nil, models.ErrPipelineBusy
	}
	defer s.mu.Unlock()

	run, err := s.ledger.StartRun(ctx, stage, trigger)
	if err != nil {
		return nil, fmt.Errorf("failed to record start of %s run: %w", stage, err)
	}
	log := s.log.With(zap.String("run_id", run.ID.String()), zap.String("stage", stage), zap.String("trigger", trigger))
	log.Info("Pipeline stage started")

	start := time.Now()
	stageErr := s.execute(ctx, stage, run)
	elapsed := time.Since(start)

	finished := s.now()
	run.FinishedAt = &finished
	if stageErr != nil {
		run.Status = models.RunStatusFailed
		run.Error = stageErr.Error()
	} else {
		run.Status = models.RunStatusSuccess
	}

	metrics.StageRunsTotal.WithLabelValues(stage, run.Status).Inc()
	metrics.StageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())

	// Record the outcome even if the caller's context is gone.
	if err := s.ledger.FinishRun(context.WithoutCancel(ctx), run); err != nil {
		log.Error("Failed to record pipeline run", zap.Error(err))
		stageErr = errors.Join(stageErr, fmt.Errorf("failed to record %s run: %w", stage, err))
	}

	if err := s.notifier.Notify(context.WithoutCancel(ctx), notify.EventFromRun(run)); err != nil {
		log.Warn("Failed to deliver run notification", zap.Error(err))
	}

	if stageErr != nil {
		log.Error("Pipeline stage failed", zap.Duration("duration", elapsed), zap.Error(stageErr))
	} else {
		log.Info("Pipeline stage completed", zap.Duration("duration", elapsed), zap.Int64("rows_loaded", run.RowsLoaded))
	}
	return run, stageErr
}

func (s *Service) execute(ctx context.Context, stage string, run *models.PipelineRun) error {
	switch stage {
	case models.StageExtract:
		return s.extract(ctx, run)
	case models.StageRun:
		return s.process(ctx, run, s.processor.Run)
	case models.StageTest:
		return s.process(ctx, run, s.processor.Test)
	case models.StageBuild:
		return s.process(ctx, run, s.processor.Build)
	case models.StageAll:
		if err := s.extract(ctx, run); err != nil {
			return err
		}
		return s.process(ctx, run, s.processor.Build)
	}
	return fmt.Errorf("unknown pipeline stage %q", stage)
}

func (s *Service) extract(ctx context.Context, run *models.PipelineRun) error {
	start := time.Now()
	info, err := s.extractor.IngestBreeds(ctx)
	run.Steps = append(run.Steps, extractStep(info, err, time.Since(start)))
	if err != nil {
		return fmt.Errorf("extract failed: %w", err)
	}

	run.LoadID = info.LoadID
	run.RowsLoaded = info.RowsLoaded
	metrics.RowsLoadedTotal.Add(float64(info.RowsLoaded))
	metrics.LastLoadTimestamp.Set(float64(info.FinishedAt.Unix()))
	return nil
}

func (s *Service) process(ctx context.Context, run *models.PipelineRun, fn func(context.Context) (*processing.RunResult, error)) error {
	result, err := fn(ctx)
	if err != nil {
		return fmt.Errorf("processing failed: %w", err)
	}
	run.Steps = append(run.Steps, processingSteps(result)...)

	for _, m := range result.Models {
		if m.Status == models.StepStatusSuccess {
			metrics.ModelRows.WithLabelValues(m.Name).Set(float64(m.Rows))
		}
	}
	for _, t := range result.Tests {
		if t.Status == models.StepStatusFail || t.Status == models.StepStatusError {
			metrics.TestFailuresTotal.WithLabelValues(t.Name).Inc()
		}
	}

	if result.Failed() {
		modelErrors, testFailures := failureSummary(result)
		return fmt.Errorf("%w: %d model errors, %d failed tests", ErrStageFailed, modelErrors, testFailures)
	}
	return nil
}
