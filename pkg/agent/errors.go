package agent

import (
	"errors"
	"fmt"
)

var (
	// ErrTurnBudgetExceeded is reported when a session needs more turns than
	// its budget allows. The run still returns its accumulated state.
	ErrTurnBudgetExceeded = errors.New("turn budget exceeded")

	// ErrUnknownTool indicates a tool call named a tool outside the toolset.
	ErrUnknownTool = errors.New("unknown tool")
)

// ToolArgumentError indicates a tool call could not be resolved or its
// arguments could not be parsed or validated. Recovered locally.
type ToolArgumentError struct {
	Tool   string
	CallID string
	Err    error
}

func (e *ToolArgumentError) Error() string {
	return fmt.Sprintf("invalid call to tool %q: %v", e.Tool, e.Err)
}

func (e *ToolArgumentError) Unwrap() error { return e.Err }

// ToolExecutionError indicates a tool body failed, panicked or hit its
// deadline. Recovered locally.
type ToolExecutionError struct {
	Tool   string
	CallID string
	Err    error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %q failed: %v", e.Tool, e.Err)
}

func (e *ToolExecutionError) Unwrap() error { return e.Err }

// UpstreamError indicates the completion service call failed (transport,
// protocol, timeout or cancellation). Aborts the session.
type UpstreamError struct {
	Turn int
	Err  error
}

func (e *UpstreamError) Error() string {
	if e.Turn > 0 {
		return fmt.Sprintf("completion service failed on turn %d: %v", e.Turn, e.Err)
	}
	return fmt.Sprintf("completion service failed: %v", e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// IsUpstreamError reports whether err is or wraps an *UpstreamError.
func IsUpstreamError(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue)
}
