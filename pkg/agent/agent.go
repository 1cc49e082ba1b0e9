// Package agent provides the core types of the ChatBI agent engine:
// conversation messages, completion-service contracts, the delta
// reconstructor and per-request session state.
package agent

import "encoding/json"

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return true
	}
	return false
}

// Message is one turn of conversation history.
// ToolCalls is set only on assistant messages requesting tool use;
// ToolCallID and ToolName only on tool-role messages.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolName   string     `json:"name,omitempty"`
}

// HasToolCalls reports whether the message requests tool invocations.
func (m Message) HasToolCalls() bool {
	return len(m.ToolCalls) > 0
}

// ToolCall is one invocation request emitted by the completion service.
// Arguments holds the raw JSON object text as assembled from the stream.
type ToolCall struct {
	ID        string `json:"id"`
	Index     int    `json:"index"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolSchema is the completion-service-facing description of a tool.
type ToolSchema struct {
	Name        string
	Description string
	Parameters  json.RawMessage // JSON Schema object
}

// TokenUsage aggregates token consumption across completion calls.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Add accumulates u into t. A nil u is ignored.
func (t *TokenUsage) Add(u *TokenUsage) {
	if u == nil {
		return
	}
	t.PromptTokens += u.PromptTokens
	t.CompletionTokens += u.CompletionTokens
	t.TotalTokens += u.TotalTokens
}
