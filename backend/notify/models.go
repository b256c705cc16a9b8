package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/giobale/dog-breed-explorer/internal/models"
)

// RunEvent is the payload published when a pipeline stage finishes.
type RunEvent struct {
	RunID       string     `json:"run_id"`
	Stage       string     `json:"stage"`
	Trigger     string     `json:"trigger"`
	Status      string     `json:"status"`
	LoadID      string     `json:"load_id,omitempty"`
	RowsLoaded  int64      `json:"rows_loaded"`
	Error       string     `json:"error,omitempty"`
	FailedSteps []string   `json:"failed_steps,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// Failed reports whether the run did not succeed.
func (e RunEvent) Failed() bool {
	return e.Status != models.RunStatusSuccess
}

// EventFromRun builds the event for a finished run.
func EventFromRun(run *models.PipelineRun) RunEvent {
	ev := RunEvent{
		RunID:      run.ID.String(),
		Stage:      run.Stage,
		Trigger:    run.Trigger,
		Status:     run.Status,
		LoadID:     run.LoadID,
		RowsLoaded: run.RowsLoaded,
		Error:      run.Error,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
	}
	for _, step := range run.Steps {
		if step.Status == models.StepStatusError || step.Status == models.StepStatusFail {
			ev.FailedSteps = append(ev.FailedSteps, step.Name)
		}
	}
	return ev
}

// Summary is a one-line human readable description of the event.
func (e RunEvent) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "dog breed pipeline %s %s (run %s)", e.Stage, e.Status, e.RunID)
	if e.Error != "" {
		fmt.Fprintf(&b, ": %s", e.Error)
	}
	if len(e.FailedSteps) > 0 {
		fmt.Fprintf(&b, " [failed: %s]", strings.Join(e.FailedSteps, ", "))
	}
	return b.String()
}
