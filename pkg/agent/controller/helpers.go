package controller

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/yuy4o/ChatBI/pkg/agent"
)

// generateCallID creates a unique ID for a tool call the completion service
// left unnamed.
func generateCallID() string {
	return "call_" + uuid.New().String()
}

// ensureCallIDs fills in missing tool call IDs so every tool-result message
// can be correlated with its request.
func ensureCallIDs(msg *agent.Message) {
	for i := range msg.ToolCalls {
		if msg.ToolCalls[i].ID == "" {
			msg.ToolCalls[i].ID = generateCallID()
		}
	}
}

// turnSummary labels live log lines of one turn, e.g. "SQLAgent-R2".
func turnSummary(agentName string, turn int) string {
	return fmt.Sprintf("%s-R%d", agentName, turn)
}

// agentConfig returns the resolved configuration, falling back to zero
// values (no deadlines, whole-message mode) when none is set.
func agentConfig(execCtx *agent.ExecutionContext) agent.ResolvedAgentConfig {
	if execCtx.Config == nil {
		return agent.ResolvedAgentConfig{}
	}
	return *execCtx.Config
}
