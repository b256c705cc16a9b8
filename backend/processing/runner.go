package processing

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/giobale/dog-breed-explorer/internal/models"
	"github.com/giobale/dog-breed-explorer/internal/warehouse"
)

// maxSampleRows bounds the failing rows kept on a test result.
const maxSampleRows = 5

// Warehouse is what the runner needs from the warehouse.
type Warehouse interface {
	RawSource
	ReplaceTable(ctx context.Context, table warehouse.Table, rows [][]any) error
	QueryRows(ctx context.Context, query string, args ...any) ([]warehouse.Row, error)
}

// ModelResult is the outcome of evaluating one model.
type ModelResult struct {
	Name         string        `json:"name"`
	Materialized string        `json:"materialized"`
	Status       string        `json:"status"` // success | error | skipped
	Rows         int           `json:"rows"`
	Message      string        `json:"message,omitempty"`
	Duration     time.Duration `json:"duration"`
}

// TestResult is the outcome of one data test.
type TestResult struct {
	Name        string          `json:"name"`
	Model       string          `json:"model"`
	Status      string          `json:"status"` // pass | fail | error | skipped
	FailingRows int             `json:"failing_rows"`
	Samples     []warehouse.Row `json:"samples,omitempty"`
	Message     string          `json:"message,omitempty"`
	Duration    time.Duration   `json:"duration"`
}

// RunResult collects model and test outcomes.
type RunResult struct {
	Models []ModelResult `json:"models"`
	Tests  []TestResult  `json:"tests"`
}

// Failed reports whether any model errored or any test failed or errored.
func (r *RunResult) Failed() bool {
	for _, m := range r.Models {
		if m.Status == models.StepStatusError {
			return true
		}
	}
	for _, t := range r.Tests {
		if t.Status == models.StepStatusFail || t.Status == models.StepStatusError {
			return true
		}
	}
	return false
}

// Runner evaluates the project graph against a warehouse.
type Runner struct {
	project *Project
	wh      Warehouse
	dataset string
	log     *zap.Logger
	now     func() time.Time
}

// NewRunner creates a new Runner writing tables into dataset.
func NewRunner(project *Project, wh Warehouse, dataset string, log *zap.Logger) *Runner {
	return &Runner{
		project: project,
		wh:      wh,
		dataset: dataset,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Run evaluates every model leaves first. Views stay in memory; tables are replaced in the warehouse.
// A model whose input did not succeed is skipped.
func (r *Runner) Run(ctx context.Context) (*RunResult, error) {
	order, err := r.project.Graph().Order()
	if err != nil {
		return nil, err
	}

	rc := NewRunContext(r.now(), r.wh, r.log)
	result := &RunResult{}
	failed := make(map[string]bool)

	for _, t := range order {
		cfg, _ := r.project.Model(t.Name())
		mr := ModelResult{Name: t.Name(), Materialized: cfg.Materialized}

		if upstream := firstFailed(t.Inputs(), failed); upstream != "" {
			mr.Status = models.StepStatusSkipped
			mr.Message = fmt.Sprintf("upstream model %s did not succeed", upstream)
			failed[t.Name()] = true
			result.Models = append(result.Models, mr)
			r.log.Warn("Skipping model", zap.String("model", t.Name()), zap.String("upstream", upstream))
			continue
		}

		start := time.Now()
		rows, err := r.evaluate(ctx, rc, t, cfg)
		mr.Duration = time.Since(start)
		if err != nil {
			mr.Status = models.StepStatusError
			mr.Message = err.Error()
			failed[t.Name()] = true
			r.log.Error("Model failed", zap.String("model", t.Name()), zap.Error(err))
		} else {
			mr.Status = models.StepStatusSuccess
			mr.Rows = rows
			r.log.Info("Model built",
				zap.String("model", t.Name()),
				zap.String("materialized", cfg.Materialized),
				zap.Int("rows", rows),
				zap.Duration("duration", mr.Duration))
		}
		result.Models = append(result.Models, mr)
	}
	return result, nil
}

func (r *Runner) evaluate(ctx context.Context, rc *RunContext, t Transform, cfg *ModelConfig) (int, error) {
	rel, err := t.Apply(ctx, rc)
	if err != nil {
		return 0, err
	}
	rc.Set(t.Name(), rel)

	if cfg.Materialized != MaterializedTable {
		return rel.Len(), nil
	}
	tableRel, ok := rel.(TableRelation)
	if !ok {
		return 0, fmt.Errorf("model %s produced %T, which cannot be materialized as a table", t.Name(), rel)
	}
	table, err := r.project.TableFor(r.dataset, t.Name())
	if err != nil {
		return 0, err
	}
	if err := r.wh.ReplaceTable(ctx, table, tableRel.Values()); err != nil {
		return 0, fmt.Errorf("failed to materialize %s: %w", table.Qualified(), err)
	}
	return rel.Len(), nil
}

// Test runs every data test against the current warehouse tables.
func (r *Runner) Test(ctx context.Context) (*RunResult, error) {
	return r.test(ctx, nil), nil
}

// Build runs the models, then the tests. Tests of models that did not succeed are skipped.
func (r *Runner) Build(ctx context.Context) (*RunResult, error) {
	result, err := r.Run(ctx)
	if err != nil {
		return nil, err
	}
	built := make(map[string]bool, len(result.Models))
	for _, m := range result.Models {
		built[m.Name] = m.Status == models.StepStatusSuccess
	}
	result.Tests = r.test(ctx, built).Tests
	return result, nil
}

// test runs the tests; when built is non-nil, tests on models not marked built are skipped.
func (r *Runner) test(ctx context.Context, built map[string]bool) *RunResult {
	result := &RunResult{}
	for _, dt := range r.project.Tests() {
		tr := TestResult{Name: dt.Name, Model: dt.Model}
		if built != nil && !built[dt.Model] {
			tr.Status = models.StepStatusSkipped
			tr.Message = fmt.Sprintf("model %s was not built", dt.Model)
			result.Tests = append(result.Tests, tr)
			continue
		}

		start := time.Now()
		rows, err := r.wh.QueryRows(ctx, dt.SQL(r.dataset))
		tr.Duration = time.Since(start)
		switch {
		case err != nil:
			tr.Status = models.StepStatusError
			tr.Message = err.Error()
			r.log.Error("Test errored", zap.String("test", dt.Name), zap.Error(err))
		case len(rows) > 0:
			tr.Status = models.StepStatusFail
			tr.FailingRows = len(rows)
			tr.Samples = rows
			if len(rows) > maxSampleRows {
				tr.Samples = rows[:maxSampleRows]
			}
			tr.Message = fmt.Sprintf("%d failing rows", len(rows))
			r.log.Warn("Test failed", zap.String("test", dt.Name), zap.Int("failing_rows", len(rows)))
		default:
			tr.Status = models.StepStatusPass
			r.log.Debug("Test passed", zap.String("test", dt.Name))
		}
		result.Tests = append(result.Tests, tr)
	}
	return result
}

func firstFailed(inputs []string, failed map[string]bool) string {
	for _, in := range inputs {
		if failed[in] {
			return in
		}
	}
	return ""
}
