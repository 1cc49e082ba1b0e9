// Package controller runs the turn loop of an agent: it alternates
// completion calls with sequential tool dispatch until the model answers
// without tool calls, the turn budget runs out or the completion service
// fails.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/yuy4o/ChatBI/pkg/agent"
	"github.com/yuy4o/ChatBI/pkg/events"
	"github.com/yuy4o/ChatBI/pkg/tools"
)

// Hooks observe the loop without changing its outcome. All fields are
// optional and are called on the goroutine running the loop.
type Hooks struct {
	// OnToolResult is called after each tool call has been dispatched and
	// its result appended to the conversation.
	OnToolResult func(res ToolResult)
}

// IteratingController implements the multi-turn tool-calling loop.
// Completion signal: a response without any tool calls.
type IteratingController struct{}

// NewIteratingController creates a new iterating controller.
func NewIteratingController() *IteratingController {
	return &IteratingController{}
}

// Run drives conv until it reaches a terminal state. The returned result
// always carries the state reached; Err on the result explains budget
// exhaustion or an upstream failure. The error return is reserved for an
// unusable execution context.
func (c *IteratingController) Run(
	ctx context.Context,
	execCtx *agent.ExecutionContext,
	conv *agent.Conversation,
	toolset *tools.Toolset,
	hooks *Hooks,
) (*agent.RunResult, error) {
	if execCtx == nil || execCtx.Client == nil {
		return nil, errors.New("execution context has no completion client")
	}
	if hooks == nil {
		hooks = &Hooks{}
	}

	result := &agent.RunResult{}
	finish := func(state agent.TurnState, content string, err error) (*agent.RunResult, error) {
		conv.State = state
		result.State = state
		result.Content = content
		result.Err = err
		execCtx.Metrics.RecordRun(conv.AgentName, string(state))
		return result, nil
	}

	for {
		conv.Turn++
		if conv.Turn > conv.MaxTurns {
			slog.Warn("Turn budget exhausted",
				"session_id", conv.SessionID, "agent", conv.AgentName, "max_turns", conv.MaxTurns)
			events.Log(execCtx.Publisher, conv.SessionID, events.SourceSystem,
				fmt.Sprintf("stopped after %d turns without a final answer", conv.MaxTurns),
				conv.AgentName+"-budget-exhausted")
			return finish(agent.StateBudgetExhausted, conv.LastAssistantContent(),
				fmt.Errorf("%w: %d turns used", agent.ErrTurnBudgetExceeded, conv.MaxTurns))
		}

		conv.State = agent.StateAwaitingResponse
		result.Turns++
		execCtx.Metrics.RecordTurn(conv.AgentName)

		resp, err := callCompletion(ctx, execCtx, conv, toolset)
		if err != nil {
			slog.Error("Completion call failed",
				"session_id", conv.SessionID, "agent", conv.AgentName, "turn", conv.Turn, "error", err)
			return finish(agent.StateUpstreamFailed, conv.LastAssistantContent(), err)
		}
		result.TokensUsed.Add(resp.Usage)

		msg := resp.Message
		if !msg.HasToolCalls() {
			conv.Append(msg)
			slog.Debug("Agent finished",
				"session_id", conv.SessionID, "agent", conv.AgentName, "turns", conv.Turn)
			return finish(agent.StateFinished, msg.Content, nil)
		}

		ensureCallIDs(&msg)
		conv.Append(msg)
		conv.State = agent.StateDispatching

		// Tools run one at a time in the order the model requested them.
		for _, call := range msg.ToolCalls {
			res := dispatchToolCall(ctx, execCtx, conv, toolset, call)
			conv.Append(res.Message)
			if hooks.OnToolResult != nil {
				hooks.OnToolResult(res)
			}
		}
	}
}
