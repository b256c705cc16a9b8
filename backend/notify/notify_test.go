package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/giobale/dog-breed-explorer/internal/models"
)

// --- Mock JetStreamPublisher ---
type MockJetStream struct {
	mock.Mock
	Published map[string][]byte
}

func NewMockJetStream() *MockJetStream {
	return &MockJetStream{Published: make(map[string][]byte)}
}

func (m *MockJetStream) StreamInfo(stream string, opts ...nats.JSOpt) (*nats.StreamInfo, error) {
	args := m.Called(stream)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*nats.StreamInfo), args.Error(1)
}

func (m *MockJetStream) AddStream(cfg *nats.StreamConfig, opts ...nats.JSOpt) (*nats.StreamInfo, error) {
	args := m.Called(cfg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*nats.StreamInfo), args.Error(1)
}

func (m *MockJetStream) Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error) {
	args := m.Called(subj)
	m.Published[subj] = data
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*nats.PubAck), args.Error(1)
}

// --- Func-field notifier ---
type MockNotifier struct {
	NotifyFunc func(ctx context.Context, ev RunEvent) error
}

func (m *MockNotifier) Notify(ctx context.Context, ev RunEvent) error {
	return m.NotifyFunc(ctx, ev)
}

func sampleRun(status string) *models.PipelineRun {
	started := time.Date(2024, 3, 4, 6, 0, 0, 0, time.UTC)
	finished := started.Add(42 * time.Second)
	run := &models.PipelineRun{
		ID:         uuid.MustParse("6f1c1a36-6f0e-4a53-9d6b-2f0f1d1b8a11"),
		Stage:      models.StageAll,
		Trigger:    "schedule",
		Status:     status,
		LoadID:     "load-1",
		RowsLoaded: 172,
		StartedAt:  started,
		FinishedAt: &finished,
		Steps: []models.StepResult{
			{Name: "extract", Kind: models.StepKindExtract, Status: models.StepStatusSuccess},
			{Name: "dim_dog_breeds", Kind: models.StepKindModel, Status: models.StepStatusSuccess},
		},
	}
	if status == models.RunStatusFailed {
		run.Error = `1 test failed`
		run.Steps = append(run.Steps, models.StepResult{Name: "assert_dim_dog_breeds_null_rate", Kind: models.StepKindTest, Status: models.StepStatusFail})
	}
	return run
}

func TestEventFromRun(t *testing.T) {
	ev := EventFromRun(sampleRun(models.RunStatusFailed))
	assert.Equal(t, "6f1c1a36-6f0e-4a53-9d6b-2f0f1d1b8a11", ev.RunID)
	assert.Equal(t, models.StageAll, ev.Stage)
	assert.Equal(t, int64(172), ev.RowsLoaded)
	assert.Equal(t, []string{"assert_dim_dog_breeds_null_rate"}, ev.FailedSteps)
	assert.True(t, ev.Failed())
	assert.Equal(t,
		"dog breed pipeline all failed (run 6f1c1a36-6f0e-4a53-9d6b-2f0f1d1b8a11): 1 test failed [failed: assert_dim_dog_breeds_null_rate]",
		ev.Summary())

	ok := EventFromRun(sampleRun(models.RunStatusSuccess))
	assert.False(t, ok.Failed())
	assert.Empty(t, ok.FailedSteps)
}

func TestNATSNotifier(t *testing.T) {
	t.Run("Publishes on stage and status subject", func(t *testing.T) {
		js := NewMockJetStream()
		js.On("Publish", "pipeline.runs.all.success").Return(&nats.PubAck{Stream: StreamName, Sequence: 7}, nil).Once()

		n := NewNATSNotifier(js, "pipeline.runs.", zap.NewNop())
		ev := EventFromRun(sampleRun(models.RunStatusSuccess))
		require.NoError(t, n.Notify(context.Background(), ev))
		js.AssertExpectations(t)

		var got RunEvent
		require.NoError(t, json.Unmarshal(js.Published["pipeline.runs.all.success"], &got))
		assert.Equal(t, ev.RunID, got.RunID)
		assert.Equal(t, ev.RowsLoaded, got.RowsLoaded)
	})

	t.Run("Publish error is wrapped", func(t *testing.T) {
		js := NewMockJetStream()
		js.On("Publish", "pipeline.runs.all.failed").Return(nil, nats.ErrNoResponders)

		err := NewNATSNotifier(js, "pipeline.runs", zap.NewNop()).Notify(context.Background(), EventFromRun(sampleRun(models.RunStatusFailed)))
		require.Error(t, err)
		assert.ErrorIs(t, err, nats.ErrNoResponders)
	})

	t.Run("EnsureStream creates a missing stream", func(t *testing.T) {
		js := NewMockJetStream()
		js.On("StreamInfo", StreamName).Return(nil, nats.ErrStreamNotFound)
		js.On("AddStream", mock.MatchedBy(func(cfg *nats.StreamConfig) bool {
			return cfg.Name == StreamName && len(cfg.Subjects) == 1 && cfg.Subjects[0] == "pipeline.runs.>"
		})).Return(&nats.StreamInfo{}, nil).Once()

		require.NoError(t, NewNATSNotifier(js, "pipeline.runs", zap.NewNop()).EnsureStream())
		js.AssertExpectations(t)
	})

	t.Run("EnsureStream keeps an existing stream", func(t *testing.T) {
		js := NewMockJetStream()
		js.On("StreamInfo", StreamName).Return(&nats.StreamInfo{}, nil)

		require.NoError(t, NewNATSNotifier(js, "pipeline.runs", zap.NewNop()).EnsureStream())
		js.AssertNotCalled(t, "AddStream", mock.Anything)
	})

	t.Run("EnsureStream lookup failure", func(t *testing.T) {
		js := NewMockJetStream()
		js.On("StreamInfo", StreamName).Return(nil, nats.ErrConnectionClosed)

		err := NewNATSNotifier(js, "pipeline.runs", zap.NewNop()).EnsureStream()
		assert.ErrorIs(t, err, nats.ErrConnectionClosed)
		js.AssertNotCalled(t, "AddStream", mock.Anything)
	})
}

func TestWebhookNotifier(t *testing.T) {
	var received []map[string]any
	status := http.StatusOK
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		var payload map[string]any
		assert.NoError(t, json.Unmarshal(body, &payload))
		received = append(received, payload)
		w.WriteHeader(status)
		w.Write([]byte("nope"))
	}))
	defer server.Close()

	t.Run("Failures only skips successful runs", func(t *testing.T) {
		received = nil
		w, err := NewWebhookNotifier(server.URL, "", true, zap.NewNop())
		require.NoError(t, err)

		require.NoError(t, w.Notify(context.Background(), EventFromRun(sampleRun(models.RunStatusSuccess))))
		assert.Empty(t, received)

		require.NoError(t, w.Notify(context.Background(), EventFromRun(sampleRun(models.RunStatusFailed))))
		require.Len(t, received, 1)
		assert.Contains(t, received[0]["text"], "all failed")
	})

	t.Run("All runs with custom template", func(t *testing.T) {
		received = nil
		w, err := NewWebhookNotifier(server.URL, `{"stage": {{json .Stage}}, "rows": {{.RowsLoaded}}}`, false, zap.NewNop())
		require.NoError(t, err)

		require.NoError(t, w.Notify(context.Background(), EventFromRun(sampleRun(models.RunStatusSuccess))))
		require.Len(t, received, 1)
		assert.Equal(t, "all", received[0]["stage"])
		assert.EqualValues(t, 172, received[0]["rows"])
	})

	t.Run("Non-2xx is an error", func(t *testing.T) {
		status = http.StatusBadGateway
		defer func() { status = http.StatusOK }()

		w, err := NewWebhookNotifier(server.URL, "", false, zap.NewNop())
		require.NoError(t, err)
		err = w.Notify(context.Background(), EventFromRun(sampleRun(models.RunStatusFailed)))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "returned HTTP 502: nope")
	})

	t.Run("Template syntax error", func(t *testing.T) {
		_, err := NewWebhookNotifier(server.URL, `{"text": {{.Stage}`, false, zap.NewNop())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "template parsing error")
	})

	t.Run("Error text is JSON escaped", func(t *testing.T) {
		w, err := NewWebhookNotifier(server.URL, "", false, zap.NewNop())
		require.NoError(t, err)
		ev := EventFromRun(sampleRun(models.RunStatusFailed))
		ev.Error = `quote " and newline` + "\n"

		payload, err := w.Render(ev)
		require.NoError(t, err)
		var decoded map[string]string
		require.NoError(t, json.Unmarshal(payload, &decoded))
		assert.Contains(t, decoded["text"], `quote " and newline`)
	})
}

func TestMulti(t *testing.T) {
	var calls int
	ok := &MockNotifier{NotifyFunc: func(ctx context.Context, ev RunEvent) error { calls++; return nil }}
	boomA := &MockNotifier{NotifyFunc: func(ctx context.Context, ev RunEvent) error { calls++; return errors.New("nats down") }}
	boomB := &MockNotifier{NotifyFunc: func(ctx context.Context, ev RunEvent) error { calls++; return errors.New("webhook down") }}

	err := Multi{boomA, ok, boomB}.Notify(context.Background(), RunEvent{})
	assert.Equal(t, 3, calls, "every notifier is attempted")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nats down")
	assert.Contains(t, err.Error(), "webhook down")

	assert.NoError(t, Multi{ok}.Notify(context.Background(), RunEvent{}))
	assert.NoError(t, Multi(nil).Notify(context.Background(), RunEvent{}))
}
