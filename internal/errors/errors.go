package errors

import (
	"errors"
	"fmt"
)

// BetaError is the structured error type for amanbeta.
// It carries enough context for logging, CLI output and HTTP responses.
type BetaError struct {
	// Code is the unique error code (e.g., "ERR_407_MAPPING_RULE").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Validation, Internal).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *BetaError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *BetaError) Unwrap() error {
	return e.Cause
}

// Is matches by code, so a sentinel such as ErrFullTextSyntax works with errors.Is.
func (e *BetaError) Is(target error) bool {
	if t, ok := target.(*BetaError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *BetaError) WithDetail(key, value string) *BetaError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *BetaError) WithSuggestion(suggestion string) *BetaError {
	e.Suggestion = suggestion
	return e
}

// New creates a new BetaError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *BetaError {
	return &BetaError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a BetaError from an existing error.
func Wrap(code string, err error) *BetaError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// Sentinels for errors.Is checks. Only the code is compared.
var (
	ErrFullTextSyntax = &BetaError{Code: ErrCodeFTSSyntax}
	ErrInvalidQuery   = &BetaError{Code: ErrCodeInvalidQuery}
	ErrMappingRule    = &BetaError{Code: ErrCodeMappingRule}
	ErrConfigInvalid  = &BetaError{Code: ErrCodeConfigInvalid}
	ErrRender         = &BetaError{Code: ErrCodeRenderFailed}
	ErrIndexLocked    = &BetaError{Code: ErrCodeIndexLocked}
	ErrDatabaseBusy   = &BetaError{Code: ErrCodeDatabaseBusy}
)

// ConfigError creates a configuration or mapping document error.
func ConfigError(message string, cause error) *BetaError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// MappingRuleError reports a rule whose SQL failed while indexing.
func MappingRuleError(source, recordType string, cause error) *BetaError {
	return New(ErrCodeMappingRule,
		fmt.Sprintf("mapping rule %s/%s failed: %v", source, recordType, cause), cause).
		WithDetail("source", source).
		WithDetail("record_type", recordType).
		WithSuggestion("Check the rule's sql against the source database schema")
}

// FullTextSyntaxError marks a query the full-text engine could not parse.
func FullTextSyntaxError(query string, cause error) *BetaError {
	return New(ErrCodeFTSSyntax, "full-text syntax error", cause).WithDetail("q", query)
}

// QueryError is the user-facing error for a query that cannot be run, even escaped.
func QueryError(query string, cause error) *BetaError {
	return New(ErrCodeInvalidQuery, fmt.Sprintf("could not run search for %q", query), cause).
		WithDetail("q", query).
		WithSuggestion("Remove unbalanced quotes or operators from the search terms")
}

// RenderError reports a display template that failed for a record.
func RenderError(recordType, key string, cause error) *BetaError {
	return New(ErrCodeRenderFailed,
		fmt.Sprintf("render %s %s: %v", recordType, key, cause), cause).
		WithDetail("type", recordType).
		WithDetail("key", key)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *BetaError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *BetaError {
	return New(ErrCodeInternal, message, cause)
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var be *BetaError
	if errors.As(err, &be) {
		return be.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
func IsFatal(err error) bool {
	var be *BetaError
	if errors.As(err, &be) {
		return be.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a BetaError anywhere in the chain.
// Returns empty string if there is none.
func GetCode(err error) string {
	var be *BetaError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}

// IsUserFacing reports whether err should be shown to the caller as a bad request
// rather than an internal failure.
func IsUserFacing(err error) bool {
	var be *BetaError
	if !errors.As(err, &be) {
		return false
	}
	return be.Category == CategoryValidation || be.Category == CategoryConfig
}
