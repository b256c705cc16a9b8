package models

import (
	"time"

	"github.com/google/uuid"
)

// Run statuses.
const (
	RunStatusRunning = "running"
	RunStatusSuccess = "success"
	RunStatusFailed  = "failed"
)

// Step statuses. Models and tests share them; "fail" is a test that returned rows.
const (
	StepStatusSuccess = "success"
	StepStatusError   = "error"
	StepStatusSkipped = "skipped"
	StepStatusPass    = "pass"
	StepStatusFail    = "fail"
)

// Step kinds.
const (
	StepKindExtract = "extract"
	StepKindModel   = "model"
	StepKindTest    = "test"
)

// Pipeline stages. StageAll is extract followed by build.
const (
	StageExtract = "extract"
	StageRun     = "run"
	StageTest    = "test"
	StageBuild   = "build"
	StageAll     = "all"
)

// ValidStages lists every stage that can be triggered.
var ValidStages = map[string]bool{
	StageExtract: true,
	StageRun:     true,
	StageTest:    true,
	StageBuild:   true,
	StageAll:     true,
}

// PipelineRun is one execution of a pipeline stage.
type PipelineRun struct {
	ID         uuid.UUID    `json:"id" gorm:"type:uuid;primary_key"`
	Stage      string       `json:"stage" gorm:"type:varchar(32);not null;index"`
	Trigger    string       `json:"trigger" gorm:"type:varchar(32);not null"` // cli | schedule | api
	Status     string       `json:"status" gorm:"type:varchar(32);not null"`
	LoadID     string       `json:"load_id,omitempty" gorm:"type:varchar(64)"`
	RowsLoaded int64        `json:"rows_loaded"`
	Error      string       `json:"error,omitempty" gorm:"type:text"`
	StartedAt  time.Time    `json:"started_at" gorm:"index"`
	FinishedAt *time.Time   `json:"finished_at,omitempty"`
	Steps      []StepResult `json:"steps,omitempty" gorm:"foreignKey:RunID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

// StepResult is the outcome of one extract, model or test step within a run.
type StepResult struct {
	ID         uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	RunID      uuid.UUID `json:"run_id" gorm:"type:uuid;not null;index"`
	Seq        int       `json:"seq"`
	Name       string    `json:"name" gorm:"type:varchar(255);not null"`
	Kind       string    `json:"kind" gorm:"type:varchar(32);not null"`
	Status     string    `json:"status" gorm:"type:varchar(32);not null"`
	Rows       int64     `json:"rows"`
	Message    string    `json:"message,omitempty" gorm:"type:text"`
	DurationMs int64     `json:"duration_ms"`
}

// Failed reports whether the run ended in failure.
func (r *PipelineRun) Failed() bool { return r.Status == RunStatusFailed }

// PaginatedRuns is the list response for pipeline runs.
type PaginatedRuns struct {
	Runs   []PipelineRun `json:"runs"`
	Total  int64         `json:"total"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}
