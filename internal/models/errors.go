package models

import "errors"

// ErrPipelineBusy is returned when a stage is triggered while another is still running.
var ErrPipelineBusy = errors.New("pipeline is already running")

// APIError represents a standardized error response format for the API.
type APIError struct {
	Code    string      `json:"code"`              // Application-specific error code (e.g., "NOT_FOUND")
	Message string      `json:"message"`           // Human-readable message describing the error
	Details interface{} `json:"details,omitempty"` // Optional field for additional error details
}

// Predefined application-specific error codes
const (
	ErrorCodeInternalServerError = "INTERNAL_SERVER_ERROR"
	ErrorCodeServiceUnavailable  = "SERVICE_UNAVAILABLE"

	ErrorCodeValidation       = "VALIDATION_ERROR"
	ErrorCodeInvalidIDFormat  = "INVALID_ID_FORMAT"
	ErrorCodeInvalidEnumValue = "INVALID_ENUM_VALUE"

	ErrorCodeRunNotFound   = "RUN_NOT_FOUND"
	ErrorCodeModelNotFound = "MODEL_NOT_FOUND"

	ErrorCodePipelineFailed = "PIPELINE_FAILED"
	ErrorCodePipelineBusy   = "PIPELINE_BUSY"
)
