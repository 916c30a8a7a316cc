// Package tool defines the Executor contract consumed by the driver: a
// single synchronous-in-effect operation that turns a ToolCall into a
// ToolResult, converting every failure mode (schema violation, transport
// error, timeout, remote tool-server error) into Result.Error=true rather
// than a Go error, so the model can observe and react to it.
package tool

import (
	"context"
	"fmt"

	"cueso/internal/model"
)

// Executor executes a single tool call. Implementations may perform
// blocking I/O; the driver schedules calls so execution never blocks its
// own provider-event intake.
type Executor interface {
	Execute(ctx context.Context, call model.ToolCall) model.ToolResult
}

// Error is a structured tool failure, preserving a cause chain so callers
// can errors.Is/As while still rendering a flat human-readable message into
// ToolResult.Content.
type Error struct {
	Message string
	Cause   error
}

// Errorf constructs an Error from a format string.
func Errorf(format string, args ...any) *Error {
	return &Error{Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs an Error that chains an underlying error.
func Wrap(message string, cause error) *Error {
	return &Error{Message: message, Cause: cause}
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// ErrorResult builds a failed ToolResult for the given call and error.
func ErrorResult(call model.ToolCall, err error) model.ToolResult {
	return model.ToolResult{
		ToolCallID: call.ID,
		Content:    err.Error(),
		Error:      true,
	}
}

// SuccessResult builds a successful ToolResult carrying content.
func SuccessResult(call model.ToolCall, content string) model.ToolResult {
	return model.ToolResult{
		ToolCallID: call.ID,
		Content:    content,
		Error:      false,
	}
}
