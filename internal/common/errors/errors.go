// Package errors provides the structured error taxonomy shared by the agent,
// its capabilities and the BPMN job workers.
package errors

import (
	"fmt"
	"strings"
	"time"
)

// ErrorCode is a stable, machine-readable error identifier.
type ErrorCode string

const (
	ErrCodeConfiguration       ErrorCode = "CONFIGURATION_ERROR"
	ErrCodePlanningFailed      ErrorCode = "PLANNING_FAILED"
	ErrCodeStepBudgetExhausted ErrorCode = "STEP_BUDGET_EXHAUSTED"
	ErrCodeLLMRequestFailed    ErrorCode = "LLM_REQUEST_FAILED"
	ErrCodeLLMTimeout          ErrorCode = "LLM_TIMEOUT"

	ErrCodeExtractionDegraded ErrorCode = "EXTRACTION_DEGRADED"
	ErrCodeEnrichmentDegraded ErrorCode = "ENRICHMENT_DEGRADED"

	ErrCodeCRMInsertFailed        ErrorCode = "CRM_INSERT_FAILED"
	ErrCodeCRMNotInstalled        ErrorCode = "CRM_NOT_INSTALLED"
	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeQueryTimeout             ErrorCode = "QUERY_TIMEOUT"
	ErrCodeSearchQueryFailed        ErrorCode = "SEARCH_QUERY_FAILED"

	ErrCodeEventLogFailed ErrorCode = "EVENT_LOG_FAILED"
	ErrCodeEventTimeout   ErrorCode = "EVENT_TIMEOUT"

	ErrCodeWorkflowEngine ErrorCode = "WORKFLOW_ENGINE_ERROR"

	ErrCodeInvalidInput          ErrorCode = "INVALID_INPUT"
	ErrCodeInvalidSlackSignature ErrorCode = "INVALID_SLACK_SIGNATURE"
	ErrCodeInternal              ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithCause records the underlying error for errors.Is and errors.As.
func (e *StandardError) WithCause(err error) *StandardError {
	e.cause = err
	return e
}

// WithMetadata returns the error with key set in its metadata.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

// BPMNError is what a job worker throws back to the workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns the variables attached to a failed or thrown job.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

func NewConfigurationError(teamID, details string) *StandardError {
	return newError(ErrCodeConfiguration, "No usable capabilities for team", details, false).
		WithMetadata("teamId", teamID)
}

func NewPlanningFailedError(details string) *StandardError {
	return newError(ErrCodePlanningFailed, "Planner output could not be turned into an action", details, false)
}

func NewStepBudgetExhaustedError(maxSteps int) *StandardError {
	return newError(ErrCodeStepBudgetExhausted, "Planner did not finish within the step budget",
		fmt.Sprintf("maxSteps: %d", maxSteps), false)
}

func NewLLMRequestFailedError(err error) *StandardError {
	return newError(ErrCodeLLMRequestFailed, "Language model request failed", err.Error(), true).
		WithCause(err)
}

func NewLLMTimeoutError() *StandardError {
	return newError(ErrCodeLLMTimeout, "Language model request timed out", "", true)
}

func NewExtractionDegradedError(err error) *StandardError {
	return newError(ErrCodeExtractionDegraded, "Lead extraction fell back to an empty lead", err.Error(), false).
		WithCause(err)
}

func NewEnrichmentDegradedError(source string, err error) *StandardError {
	return newError(ErrCodeEnrichmentDegraded, "Catalog enrichment returned no matches",
		fmt.Sprintf("source: %s, error: %s", source, err.Error()), false).
		WithCause(err)
}

func NewCRMInsertFailedError(provider string, err error) *StandardError {
	return newError(ErrCodeCRMInsertFailed, fmt.Sprintf("Lead insert into %s failed", provider), err.Error(), true).
		WithCause(err)
}

func NewCRMNotInstalledError(provider, teamID string) *StandardError {
	return newError(ErrCodeCRMNotInstalled, fmt.Sprintf("%s is not connected for this team", provider),
		fmt.Sprintf("teamId: %s", teamID), false)
}

func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return newError(ErrCodeNotificationSendFailed, "Notification delivery failed",
		fmt.Sprintf("channel: %s, error: %s", channel, err.Error()), true).
		WithCause(err)
}

func NewDatabaseConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseConnectionFailed, "Database connection error", err.Error(), true).
		WithCause(err)
}

func NewQueryExecutionFailedError(queryType string, err error) *StandardError {
	return newError(ErrCodeQueryExecutionFailed, "Database query execution error",
		fmt.Sprintf("queryType: %s, error: %s", queryType, err.Error()), true).
		WithCause(err)
}

func NewQueryTimeoutError(queryType string) *StandardError {
	return newError(ErrCodeQueryTimeout, "Database query timeout", fmt.Sprintf("queryType: %s", queryType), true)
}

func NewSearchQueryFailedError(index string, err error) *StandardError {
	return newError(ErrCodeSearchQueryFailed, "Search query failed",
		fmt.Sprintf("index: %s, error: %s", index, err.Error()), true).
		WithCause(err)
}

func NewEventLogFailedError(op string, err error) *StandardError {
	return newError(ErrCodeEventLogFailed, "Event log write failed", fmt.Sprintf("op: %s, error: %s", op, err.Error()), true).
		WithCause(err)
}

func NewEventTimeoutError(minutes int) *StandardError {
	return newError(ErrCodeEventTimeout, fmt.Sprintf("Event timed out after %d minutes", minutes), "", false)
}

func NewWorkflowEngineError(operation string, retryable bool, err error) *StandardError {
	return newError(ErrCodeWorkflowEngine, fmt.Sprintf("Zeebe operation '%s' failed", operation), err.Error(), retryable).
		WithCause(err)
}

func NewInvalidInputError(details string) *StandardError {
	return newError(ErrCodeInvalidInput, "Invalid input", details, false)
}

func NewInvalidSlackSignatureError(err error) *StandardError {
	return newError(ErrCodeInvalidSlackSignature, "Slack request signature verification failed", err.Error(), false).
		WithCause(err)
}

// GetRetryCount returns how many times a job failing with code should be retried.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodeSearchQueryFailed,
		ErrCodeCRMInsertFailed,
		ErrCodeEventLogFailed,
		ErrCodeWorkflowEngine,
		ErrCodeLLMRequestFailed:
		return 3
	case ErrCodeQueryTimeout:
		return 2
	case ErrCodeLLMTimeout, ErrCodeNotificationSendFailed:
		return 1
	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError into the engine-facing form.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           string(stdErr.Code),
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// GetErrorCategory groups codes for logging and dashboards.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "CONFIGURATION"):
		return "CONFIGURATION"
	case strings.Contains(codeStr, "PLANNING") || strings.Contains(codeStr, "STEP_BUDGET") || strings.Contains(codeStr, "LLM"):
		return "AGENT"
	case strings.Contains(codeStr, "EXTRACTION") || strings.Contains(codeStr, "ENRICHMENT"):
		return "DEGRADATION"
	case strings.Contains(codeStr, "CRM") || strings.Contains(codeStr, "NOTIFICATION") || strings.Contains(codeStr, "WORKFLOW"):
		return "INTEGRATION"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY") || strings.Contains(codeStr, "SEARCH"):
		return "DATABASE"
	case strings.Contains(codeStr, "EVENT"):
		return "EVENT_LOG"
	case strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
