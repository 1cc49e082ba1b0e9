// Package runner implements the SQL agent and the feedback agent: two
// configurations of the same turn loop that differ in toolset and in what
// they accumulate from tool results.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/yuy4o/ChatBI/pkg/agent"
	"github.com/yuy4o/ChatBI/pkg/agent/controller"
	"github.com/yuy4o/ChatBI/pkg/agent/prompt"
	"github.com/yuy4o/ChatBI/pkg/events"
	"github.com/yuy4o/ChatBI/pkg/tools"
)

// Agent names used in logs, metrics and live log summaries.
const (
	SQLAgentName      = "SQLAgent"
	FeedbackAgentName = "FeedbackAgent"
)

// DefaultFeedbackContent is returned when the feedback agent finishes
// without producing text.
const DefaultFeedbackContent = "Metadata descriptions updated from user feedback"

// Request is the input of both agents: retrieved context plus the
// conversation so far.
type Request struct {
	SessionID string          `json:"-"`
	Metadata  prompt.Metadata `json:"metadata"`
	Messages  []agent.Message `json:"messages"`
}

// Agent is one configured agent: its toolset and its execution context.
type Agent struct {
	Exec    *agent.ExecutionContext
	Toolset *tools.Toolset
}

// Runner runs the specialized agents.
type Runner struct {
	sql        Agent
	feedback   Agent
	prompts    *prompt.PromptBuilder
	controller *controller.IteratingController
}

// New creates a runner.
func New(sqlAgent, feedbackAgent Agent, prompts *prompt.PromptBuilder) *Runner {
	return &Runner{
		sql:        sqlAgent,
		feedback:   feedbackAgent,
		prompts:    prompts,
		controller: controller.NewIteratingController(),
	}
}

// newConversation seeds a session with the system prompt followed by the
// caller's history.
func newConversation(req Request, a Agent, systemPrompt string) *agent.Conversation {
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	maxTurns := 0
	if a.Exec.Config != nil {
		maxTurns = a.Exec.Config.MaxTurns
	}
	history := make([]agent.Message, 0, len(req.Messages)+1)
	history = append(history, agent.Message{Role: agent.RoleSystem, Content: systemPrompt})
	history = append(history, req.Messages...)
	return agent.NewConversation(sessionID, a.Exec.AgentName, maxTurns, history...)
}

func (r *Runner) run(
	ctx context.Context,
	a Agent,
	conv *agent.Conversation,
	hooks *controller.Hooks,
) (*agent.RunResult, error) {
	events.Log(a.Exec.Publisher, conv.SessionID, events.SourceAI, "", a.Exec.AgentName+"-reasoning")

	result, err := r.controller.Run(ctx, a.Exec, conv, a.Toolset, hooks)
	if err != nil {
		return nil, err
	}

	slog.Info("Agent run completed",
		"session_id", conv.SessionID, "agent", a.Exec.AgentName, "state", result.State,
		"turns", result.Turns, "total_tokens", result.TokensUsed.TotalTokens)
	events.Log(a.Exec.Publisher, conv.SessionID, events.SourceAI, result.Content, a.Exec.AgentName+"-done")
	return result, nil
}

// failureMessage renders a run error for the caller.
func failureMessage(err error) string {
	switch {
	case errors.Is(err, agent.ErrTurnBudgetExceeded):
		return fmt.Sprintf("The agent stopped before reaching an answer: %v", err)
	case errors.Is(err, context.Canceled):
		return "The request was cancelled."
	default:
		return fmt.Sprintf("An error occurred during execution: %v", err)
	}
}

// outcome derives the response content and error text from a run. Text the
// model produced before an upstream failure is kept ahead of the failure
// message; budget exhaustion keeps the last answer text when there is one.
func outcome(result *agent.RunResult) (content, errText string) {
	content = result.Content
	if result.Err == nil {
		return content, ""
	}
	switch {
	case content == "":
		content = failureMessage(result.Err)
	case result.State == agent.StateUpstreamFailed:
		content += "\n\n" + failureMessage(result.Err)
	}
	return content, result.Err.Error()
}
