// Package scheduler runs the full pipeline on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/giobale/dog-breed-explorer/internal/models"
)

// DefaultSpec runs the pipeline every Monday at 06:00.
const DefaultSpec = "0 0 6 * * 1"

// stopTimeout bounds how long Stop waits for a running job.
const stopTimeout = 15 * time.Second

// Pipeline is the scheduled job.
type Pipeline interface {
	All(ctx context.Context, trigger string) (*models.PipelineRun, error)
}

// SchedulerService triggers the full pipeline on a cron schedule.
type SchedulerService struct {
	cronRunner *cron.Cron
	pipeline   Pipeline
	spec       string
	trigger    string
	log        *zap.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	entryID cron.EntryID
}

// NewSchedulerService creates a new SchedulerService. An empty spec uses DefaultSpec.
func NewSchedulerService(pipeline Pipeline, spec, trigger string, log *zap.Logger) *SchedulerService {
	if spec == "" {
		spec = DefaultSpec
	}
	cronLog := cronLogger{log: log.Named("cron").Sugar()}
	ctx, cancel := context.WithCancel(context.Background())
	return &SchedulerService{
		cronRunner: cron.New(
			cron.WithSeconds(), // Use seconds field in cron expressions
			cron.WithChain(
				cron.SkipIfStillRunning(cronLog),
				cron.Recover(cronLog),
			),
		),
		pipeline: pipeline,
		spec:     spec,
		trigger:  trigger,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// runPipeline is called by the cron runner.
func (s *SchedulerService) runPipeline() {
	s.log.Info("Executing scheduled pipeline run", zap.String("spec", s.spec))
	run, err := s.pipeline.All(s.ctx, s.trigger)
	switch {
	case errors.Is(err, models.ErrPipelineBusy):
		s.log.Warn("Scheduled run skipped; another stage is running")
	case err != nil:
		fields := []zap.Field{zap.Error(err)}
		if run != nil {
			fields = append(fields, zap.String("run_id", run.ID.String()))
		}
		s.log.Error("Scheduled pipeline run failed", fields...)
	default:
		s.log.Info("Scheduled pipeline run completed",
			zap.String("run_id", run.ID.String()),
			zap.Int64("rows_loaded", run.RowsLoaded))
	}
}

// Start registers the job and starts the cron runner. It does not block.
func (s *SchedulerService) Start() error {
	entryID, err := s.cronRunner.AddFunc(s.spec, s.runPipeline)
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", s.spec, err)
	}
	s.entryID = entryID
	s.cronRunner.Start()
	s.log.Info("Scheduler started", zap.String("spec", s.spec), zap.Time("next_run", s.Next()))
	return nil
}

// Next returns the next scheduled run time, or the zero time before Start.
func (s *SchedulerService) Next() time.Time {
	if s.entryID == 0 {
		return time.Time{}
	}
	return s.cronRunner.Entry(s.entryID).Next
}

// Stop halts the cron runner and waits for a running job to complete.
// A job still running after the timeout has its context cancelled.
func (s *SchedulerService) Stop() {
	s.log.Info("Stopping scheduler, waiting for running jobs to complete")
	ctx := s.cronRunner.Stop()
	select {
	case <-ctx.Done():
		s.log.Info("Scheduler stopped gracefully")
	case <-time.After(stopTimeout):
		s.log.Warn("Scheduler shutdown timed out; cancelling running job")
	}
	s.cancel()
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
