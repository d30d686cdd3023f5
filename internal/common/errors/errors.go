// Package errors provides standardized error handling for the design
// pipeline and its Zeebe job workers.
package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeInvalidRequest ErrorCode = "INVALID_REQUEST"

	ErrCodeNormalizationFailed ErrorCode = "NORMALIZATION_FAILED"
	ErrCodeLLMTimeout          ErrorCode = "LLM_TIMEOUT"

	ErrCodeRetrievalFailed ErrorCode = "RETRIEVAL_FAILED"
	ErrCodeEmbeddingFailed ErrorCode = "EMBEDDING_FAILED"
	ErrCodeCacheFailed     ErrorCode = "CACHE_FAILED"

	ErrCodePlanSchemaInvalid ErrorCode = "PLAN_SCHEMA_INVALID"
	ErrCodeSynthesisFailed   ErrorCode = "SYNTHESIS_FAILED"
	ErrCodeQAFailed          ErrorCode = "QA_FAILED"
	ErrCodeRenderFailed      ErrorCode = "RENDER_FAILED"

	ErrCodeKnowledgeValidationFailed ErrorCode = "KNOWLEDGE_VALIDATION_FAILED"
	ErrCodeKnowledgeNotFound         ErrorCode = "KNOWLEDGE_NOT_FOUND"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeSearchQueryFailed        ErrorCode = "SEARCH_QUERY_FAILED"
	ErrCodeNotificationSendFailed   ErrorCode = "NOTIFICATION_SEND_FAILED"
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

// Unwrap exposes the underlying cause so errors.Is keeps working through
// pipeline stages.
func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithMetadata attaches a metadata key and returns the error for chaining.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

func newError(code ErrorCode, message string, cause error, retryable bool) *StandardError {
	details := ""
	if cause != nil {
		details = cause.Error()
	}
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
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

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
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

func NewInvalidRequestError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidRequest,
		Message:   "Invalid generation request",
		Details:   details,
		Timestamp: time.Now().UTC(),
	}
}

// NewNormalizationFailedError is recovered locally by the rule-based
// normalizer and never reaches a caller in normal operation.
func NewNormalizationFailedError(err error) *StandardError {
	return newError(ErrCodeNormalizationFailed, "Intent normalization failed", err, true)
}

func NewLLMTimeoutError(err error) *StandardError {
	return newError(ErrCodeLLMTimeout, "LLM call timed out", err, true)
}

func NewRetrievalFailedError(err error) *StandardError {
	return newError(ErrCodeRetrievalFailed, "Grounding retrieval failed", err, true)
}

func NewEmbeddingFailedError(err error) *StandardError {
	return newError(ErrCodeEmbeddingFailed, "Embedding provider error", err, true)
}

func NewCacheFailedError(err error) *StandardError {
	return newError(ErrCodeCacheFailed, "Grounding cache error", err, true)
}

func NewPlanSchemaInvalidError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodePlanSchemaInvalid,
		Message:   "Composition plan failed schema validation",
		Details:   details,
		Timestamp: time.Now().UTC(),
	}
}

func NewSynthesisFailedError(err error) *StandardError {
	return newError(ErrCodeSynthesisFailed, "SVG synthesis failed", err, false)
}

// NewQAFailedError carries the joined quality issues in its message, the
// form callers and logs expect: "QA failed: <issues>".
func NewQAFailedError(joinedIssues string) *StandardError {
	return &StandardError{
		Code:      ErrCodeQAFailed,
		Message:   "QA failed: " + joinedIssues,
		Timestamp: time.Now().UTC(),
	}
}

func NewRenderFailedError(err error) *StandardError {
	return newError(ErrCodeRenderFailed, "SVG rendering failed", err, false)
}

func NewKnowledgeValidationFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeKnowledgeValidationFailed,
		Message:   "Knowledge object rejected",
		Details:   details,
		Timestamp: time.Now().UTC(),
	}
}

func NewKnowledgeNotFoundError(id string) *StandardError {
	return &StandardError{
		Code:      ErrCodeKnowledgeNotFound,
		Message:   "Knowledge object not found",
		Details:   fmt.Sprintf("id: %s", id),
		Timestamp: time.Now().UTC(),
	}
}

func NewDatabaseConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseConnectionFailed, "Database connection error", err, true)
}

func NewQueryExecutionFailedError(operation string, err error) *StandardError {
	se := newError(ErrCodeQueryExecutionFailed, "Database query execution error", err, true)
	se.Details = fmt.Sprintf("operation: %s, error: %v", operation, err)
	return se
}

func NewSearchQueryFailedError(err error) *StandardError {
	return newError(ErrCodeSearchQueryFailed, "Elasticsearch query error", err, true)
}

func NewNotificationSendFailedError(err error) *StandardError {
	return newError(ErrCodeNotificationSendFailed, "Governance notification failed", err, true)
}

// BPMNErrorMapping maps internal error codes to BPMN error codes.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeInvalidRequest:            "INVALID_REQUEST",
	ErrCodeNormalizationFailed:       "NORMALIZATION_FAILED",
	ErrCodeLLMTimeout:                "LLM_TIMEOUT",
	ErrCodeRetrievalFailed:           "RETRIEVAL_FAILED",
	ErrCodeEmbeddingFailed:           "EMBEDDING_FAILED",
	ErrCodeCacheFailed:               "CACHE_FAILED",
	ErrCodePlanSchemaInvalid:         "PLAN_SCHEMA_INVALID",
	ErrCodeSynthesisFailed:           "SYNTHESIS_FAILED",
	ErrCodeQAFailed:                  "QA_FAILED",
	ErrCodeRenderFailed:              "RENDER_FAILED",
	ErrCodeKnowledgeValidationFailed: "KNOWLEDGE_VALIDATION_FAILED",
	ErrCodeKnowledgeNotFound:         "KNOWLEDGE_NOT_FOUND",
	ErrCodeDatabaseConnectionFailed:  "DATABASE_CONNECTION_FAILED",
	ErrCodeQueryExecutionFailed:      "QUERY_EXECUTION_FAILED",
	ErrCodeSearchQueryFailed:         "SEARCH_QUERY_FAILED",
	ErrCodeNotificationSendFailed:    "NOTIFICATION_SEND_FAILED",
}

// GetRetryCount returns the recommended job retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodeSearchQueryFailed,
		ErrCodeRetrievalFailed,
		ErrCodeNotificationSendFailed:
		return 3

	case ErrCodeEmbeddingFailed,
		ErrCodeCacheFailed,
		ErrCodeNormalizationFailed:
		return 2

	case ErrCodeLLMTimeout:
		return 1

	default:
		return 0
	}
}

// GetErrorCategory groups codes for logging and dashboards.
func GetErrorCategory(code ErrorCode) string {
	switch code {
	case ErrCodeInvalidRequest, ErrCodeKnowledgeValidationFailed, ErrCodeKnowledgeNotFound:
		return "business"
	case ErrCodePlanSchemaInvalid, ErrCodeSynthesisFailed, ErrCodeQAFailed, ErrCodeRenderFailed:
		return "pipeline"
	case ErrCodeNormalizationFailed, ErrCodeLLMTimeout, ErrCodeEmbeddingFailed:
		return "external_api"
	case ErrCodeDatabaseConnectionFailed, ErrCodeQueryExecutionFailed,
		ErrCodeSearchQueryFailed, ErrCodeCacheFailed, ErrCodeRetrievalFailed:
		return "data_access"
	case ErrCodeNotificationSendFailed:
		return "notification"
	default:
		return "unknown"
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      bpmnCode,
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// AsStandardError finds a StandardError in err's chain.
func AsStandardError(err error) (*StandardError, bool) {
	var se *StandardError
	if stderrors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code ErrorCode) bool {
	se, ok := AsStandardError(err)
	return ok && se.Code == code
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}
