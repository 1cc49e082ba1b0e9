package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"
	"unicode/utf8"

	"github.com/yuy4o/ChatBI/pkg/agent"
	"github.com/yuy4o/ChatBI/pkg/events"
	"github.com/yuy4o/ChatBI/pkg/tools"
)

// Tool call outcome labels for metrics.
const (
	toolStatusOK          = "ok"
	toolStatusInvalid     = "invalid_arguments"
	toolStatusFailed      = "failed"
	toolStatusUnknownTool = "unknown_tool"
)

// maxLoggedArgumentBytes caps the argument text echoed in live logs.
const maxLoggedArgumentBytes = 2000

// ToolResult is the outcome of dispatching one tool call.
type ToolResult struct {
	Call agent.ToolCall
	// Message is the tool-role message appended to the conversation.
	Message agent.Message
	// Output is the raw text returned by the tool body; empty on failure.
	Output string
	// Err is a *agent.ToolArgumentError or *agent.ToolExecutionError when
	// the call failed. Failures are reported to the model, never raised.
	Err error
}

// dispatchToolCall resolves a tool call against the toolset, validates its
// arguments, invokes it under the configured deadline and wraps the outcome
// as a tool-role message. It never fails: argument and execution errors
// become the message content so the model can react to them.
func dispatchToolCall(
	ctx context.Context,
	execCtx *agent.ExecutionContext,
	conv *agent.Conversation,
	toolset *tools.Toolset,
	call agent.ToolCall,
) ToolResult {
	summary := turnSummary(conv.AgentName, conv.Turn)
	events.Log(execCtx.Publisher, conv.SessionID, events.SourceAI,
		fmt.Sprintf("call tool %s with arguments %s", call.Name, truncate(call.Arguments, maxLoggedArgumentBytes)),
		summary+"-"+call.Name)

	start := time.Now()
	output, status, err := invokeTool(ctx, execCtx, toolset, call)
	execCtx.Metrics.RecordToolCall(call.Name, status, time.Since(start))

	content := output
	if err != nil {
		slog.Warn("Tool call failed",
			"session_id", conv.SessionID, "turn", conv.Turn, "tool", call.Name,
			"call_id", call.ID, "status", status, "error", err)
		content = failureContent(err)
		output = ""
	}

	events.Log(execCtx.Publisher, conv.SessionID, events.SourceAI, content, summary+"-"+call.Name+"-result")

	return ToolResult{
		Call: call,
		Message: agent.Message{
			Role:       agent.RoleTool,
			Content:    content,
			ToolCallID: call.ID,
			ToolName:   call.Name,
		},
		Output: output,
		Err:    err,
	}
}

func invokeTool(
	ctx context.Context,
	execCtx *agent.ExecutionContext,
	toolset *tools.Toolset,
	call agent.ToolCall,
) (output, status string, err error) {
	def, ok := toolset.Lookup(call.Name)
	if !ok {
		return "", toolStatusUnknownTool, &agent.ToolArgumentError{
			Tool: call.Name, CallID: call.ID, Err: agent.ErrUnknownTool,
		}
	}

	args, err := def.ParseArguments(call.Arguments)
	if err != nil {
		return "", toolStatusInvalid, &agent.ToolArgumentError{Tool: call.Name, CallID: call.ID, Err: err}
	}

	toolCtx := ctx
	if timeout := agentConfig(execCtx).ToolTimeout; timeout > 0 {
		var cancel context.CancelFunc
		toolCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	output, err = runTool(toolCtx, def, args)
	if err == nil {
		// A body that ignores its context still loses once the deadline passed.
		err = toolCtx.Err()
	}
	if err != nil {
		return "", toolStatusFailed, &agent.ToolExecutionError{Tool: call.Name, CallID: call.ID, Err: err}
	}
	return output, toolStatusOK, nil
}

// runTool invokes the tool body, converting a panic into an error.
func runTool(ctx context.Context, def *tools.Definition, args tools.Arguments) (output string, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Tool panicked", "tool", def.Name, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("tool panicked: %v", r)
		}
	}()
	return def.Invoke(ctx, args)
}

// failureContent renders a dispatch failure as the JSON object the tools
// themselves use for errors.
func failureContent(err error) string {
	msg := err.Error()
	var argErr *agent.ToolArgumentError
	if errors.As(err, &argErr) && errors.Is(err, agent.ErrUnknownTool) {
		msg = fmt.Sprintf("unknown tool %q", argErr.Tool)
	}
	data, _ := json.Marshal(struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}{Success: false, Error: msg})
	return string(data)
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
