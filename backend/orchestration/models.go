package orchestration

import (
	"time"

	"github.com/giobale/dog-breed-explorer/backend/ingestion"
	"github.com/giobale/dog-breed-explorer/backend/processing"
	"github.com/giobale/dog-breed-explorer/internal/models"
)

// Run triggers.
const (
	TriggerCLI      = "cli"
	TriggerSchedule = "schedule"
	TriggerAPI      = "api"
)

// ExtractStepName names the extract step in the run ledger.
const ExtractStepName = "extract_dog_breeds"

func extractStep(info *ingestion.LoadInfo, err error, elapsed time.Duration) models.StepResult {
	step := models.StepResult{
		Name:       ExtractStepName,
		Kind:       models.StepKindExtract,
		DurationMs: elapsed.Milliseconds(),
	}
	if err != nil {
		step.Status = models.StepStatusError
		step.Message = err.Error()
		return step
	}
	step.Status = models.StepStatusSuccess
	step.Rows = info.RowsLoaded
	step.Message = "load " + info.LoadID
	if info.ArchiveKey != "" {
		step.Message += ", archived to " + info.ArchiveKey
	}
	return step
}

func processingSteps(result *processing.RunResult) []models.StepResult {
	steps := make([]models.StepResult, 0, len(result.Models)+len(result.Tests))
	for _, m := range result.Models {
		steps = append(steps, models.StepResult{
			Name:       m.Name,
			Kind:       models.StepKindModel,
			Status:     m.Status,
			Rows:       int64(m.Rows),
			Message:    m.Message,
			DurationMs: m.Duration.Milliseconds(),
		})
	}
	for _, t := range result.Tests {
		steps = append(steps, models.StepResult{
			Name:       t.Name,
			Kind:       models.StepKindTest,
			Status:     t.Status,
			Rows:       int64(t.FailingRows),
			Message:    t.Message,
			DurationMs: t.Duration.Milliseconds(),
		})
	}
	return steps
}

// failureSummary describes why a processing result failed.
func failureSummary(result *processing.RunResult) (modelErrors, testFailures int) {
	for _, m := range result.Models {
		if m.Status == models.StepStatusError {
			modelErrors++
		}
	}
	for _, t := range result.Tests {
		if t.Status == models.StepStatusFail || t.Status == models.StepStatusError {
			testFailures++
		}
	}
	return modelErrors, testFailures
}
