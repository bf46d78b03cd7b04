// Package mcp implements the Model Context Protocol (MCP) server for amanbeta.
package mcp

import (
	"context"
	"errors"
	"fmt"

	berrors "github.com/Aman-CERP/amanbeta/internal/errors"
)

// Custom MCP error codes.
const (
	// ErrCodeIndexNotFound indicates the index database is missing or unreadable.
	ErrCodeIndexNotFound = -32001

	// ErrCodeRenderFailed indicates a display template or display_sql failed.
	ErrCodeRenderFailed = -32002

	// ErrCodeTimeout indicates the request timed out or was cancelled.
	ErrCodeTimeout = -32003

	// Standard JSON-RPC error codes.
	ErrCodeInvalidParams = -32602
	ErrCodeInternalError = -32603
)

// MCPError represents an MCP protocol error with code and message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError converts internal errors to MCP errors.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var be *berrors.BetaError
	if errors.As(err, &be) {
		return mapBetaError(be)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request timed out."}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request was canceled."}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: "Internal server error."}
	}
}

// NewInvalidParamsError creates an error for invalid parameters with a custom message.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}

func mapBetaError(be *berrors.BetaError) *MCPError {
	message := be.Message
	if be.Suggestion != "" {
		message = fmt.Sprintf("%s. %s", be.Message, be.Suggestion)
	}

	switch be.Code {
	case berrors.ErrCodeFileNotFound, berrors.ErrCodeCorruptIndex:
		return &MCPError{Code: ErrCodeIndexNotFound, Message: message}
	case berrors.ErrCodeRenderFailed:
		return &MCPError{Code: ErrCodeRenderFailed, Message: message}
	}

	switch be.Category {
	case berrors.CategoryValidation, berrors.CategoryConfig:
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	}
}
