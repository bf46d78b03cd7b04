package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// FormatForCLI formats an error for terminal output.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}

	var be *BetaError
	if !errors.As(err, &be) {
		be = Wrap(ErrCodeInternal, err)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Error: %s\n", be.Message))
	if be.Suggestion != "" {
		sb.WriteString(fmt.Sprintf("  Hint: %s\n", be.Suggestion))
	}
	sb.WriteString(fmt.Sprintf("  Code: %s\n", be.Code))
	return sb.String()
}

// jsonError is the JSON representation of an error.
type jsonError struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Category   string            `json:"category"`
	Severity   string            `json:"severity"`
	Details    map[string]string `json:"details,omitempty"`
	Suggestion string            `json:"suggestion,omitempty"`
	Cause      string            `json:"cause,omitempty"`
}

// FormatJSON returns a JSON representation of the error for HTTP and MCP responses.
// The cause is only included when debug is set.
func FormatJSON(err error, debug bool) ([]byte, error) {
	if err == nil {
		return json.Marshal(nil)
	}

	var be *BetaError
	if !errors.As(err, &be) {
		be = Wrap(ErrCodeInternal, err)
	}

	je := jsonError{
		Code:       be.Code,
		Message:    be.Message,
		Category:   string(be.Category),
		Severity:   string(be.Severity),
		Details:    be.Details,
		Suggestion: be.Suggestion,
	}
	if debug && be.Cause != nil {
		je.Cause = be.Cause.Error()
	}

	return json.Marshal(je)
}

// LogAttrs flattens an error into slog key-value pairs.
func LogAttrs(err error) []any {
	if err == nil {
		return nil
	}

	var be *BetaError
	if !errors.As(err, &be) {
		return []any{"error", err.Error()}
	}

	attrs := []any{
		"error_code", be.Code,
		"error", be.Message,
		"category", string(be.Category),
	}
	if be.Cause != nil {
		attrs = append(attrs, "cause", be.Cause.Error())
	}
	for k, v := range be.Details {
		attrs = append(attrs, "detail_"+k, v)
	}
	return attrs
}
