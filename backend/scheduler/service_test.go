package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/giobale/dog-breed-explorer/internal/models"
)

// --- Mock Pipeline ---
type MockPipeline struct {
	AllFunc func(ctx context.Context, trigger string) (*models.PipelineRun, error)
	calls   atomic.Int32
}

func (m *MockPipeline) All(ctx context.Context, trigger string) (*models.PipelineRun, error) {
	m.calls.Add(1)
	return m.AllFunc(ctx, trigger)
}

func successfulRun(ctx context.Context, trigger string) (*models.PipelineRun, error) {
	return &models.PipelineRun{ID: uuid.New(), Stage: models.StageAll, Trigger: trigger, Status: models.RunStatusSuccess, RowsLoaded: 3}, nil
}

func TestNewSchedulerService_DefaultSpec(t *testing.T) {
	s := NewSchedulerService(&MockPipeline{AllFunc: successfulRun}, "", "schedule", zap.NewNop())
	assert.Equal(t, DefaultSpec, s.spec)
	assert.True(t, s.Next().IsZero())
}

func TestSchedulerService_Start(t *testing.T) {
	t.Run("Invalid spec", func(t *testing.T) {
		s := NewSchedulerService(&MockPipeline{AllFunc: successfulRun}, "every monday", "schedule", zap.NewNop())
		err := s.Start()
		require.Error(t, err)
		assert.Contains(t, err.Error(), `invalid schedule "every monday"`)
	})

	t.Run("Weekly default schedule", func(t *testing.T) {
		s := NewSchedulerService(&MockPipeline{AllFunc: successfulRun}, DefaultSpec, "schedule", zap.NewNop())
		require.NoError(t, s.Start())
		defer s.Stop()

		next := s.Next().Local()
		assert.Equal(t, time.Monday, next.Weekday())
		assert.Equal(t, 6, next.Hour())
		assert.Zero(t, next.Minute())
		assert.True(t, next.After(time.Now()))
	})

	t.Run("Job runs the full pipeline", func(t *testing.T) {
		var trigger atomic.Value
		p := &MockPipeline{AllFunc: func(ctx context.Context, tr string) (*models.PipelineRun, error) {
			trigger.Store(tr)
			return successfulRun(ctx, tr)
		}}
		s := NewSchedulerService(p, "@every 1s", "schedule", zap.NewNop())
		require.NoError(t, s.Start())

		assert.Eventually(t, func() bool { return p.calls.Load() >= 1 }, 5*time.Second, 50*time.Millisecond)
		s.Stop()
		assert.Equal(t, "schedule", trigger.Load())
	})
}

func TestSchedulerService_RunPipelineLogging(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)

	t.Run("Busy pipeline is a warning", func(t *testing.T) {
		p := &MockPipeline{AllFunc: func(ctx context.Context, trigger string) (*models.PipelineRun, error) {
			return nil, models.ErrPipelineBusy
		}}
		NewSchedulerService(p, "", "schedule", zap.New(core)).runPipeline()
		assert.Equal(t, 1, logs.FilterMessage("Scheduled run skipped; another stage is running").Len())
	})

	t.Run("Failure is logged with the run id", func(t *testing.T) {
		id := uuid.New()
		p := &MockPipeline{AllFunc: func(ctx context.Context, trigger string) (*models.PipelineRun, error) {
			return &models.PipelineRun{ID: id, Status: models.RunStatusFailed}, errors.New("1 failed test")
		}}
		NewSchedulerService(p, "", "schedule", zap.New(core)).runPipeline()

		entries := logs.FilterMessage("Scheduled pipeline run failed").All()
		require.Len(t, entries, 1)
		assert.Equal(t, id.String(), entries[0].ContextMap()["run_id"])
	})
}

func TestSchedulerService_StopReleasesJobContext(t *testing.T) {
	p := &MockPipeline{AllFunc: successfulRun}
	s := NewSchedulerService(p, "", "schedule", zap.NewNop())
	require.NoError(t, s.Start())
	s.Stop()
	assert.ErrorIs(t, s.ctx.Err(), context.Canceled, "job context is released on stop")
}
