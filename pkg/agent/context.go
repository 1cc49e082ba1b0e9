package agent

import (
	"time"

	"github.com/yuy4o/ChatBI/pkg/events"
	"github.com/yuy4o/ChatBI/pkg/metrics"
)

// Conversation is the per-request session: the ordered message history and
// the turn counter. It is created for one request, owned by the goroutine
// serving it and discarded afterwards. History is append-only.
type Conversation struct {
	SessionID string
	AgentName string
	MaxTurns  int
	Turn      int
	State     TurnState

	messages []Message
	seeded   int
}

// NewConversation creates a session seeded with the given history.
func NewConversation(sessionID, agentName string, maxTurns int, history ...Message) *Conversation {
	c := &Conversation{
		SessionID: sessionID,
		AgentName: agentName,
		MaxTurns:  maxTurns,
		State:     StateInit,
	}
	c.messages = append(c.messages, history...)
	c.seeded = len(c.messages)
	return c
}

// Append adds messages to the end of the history.
func (c *Conversation) Append(msgs ...Message) {
	c.messages = append(c.messages, msgs...)
}

// Messages returns a copy of the history.
func (c *Conversation) Messages() []Message {
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the number of messages in the history.
func (c *Conversation) Len() int {
	return len(c.messages)
}

// LastAssistantContent returns the content of the most recent assistant
// message with non-empty content produced during this run, or "". Assistant
// turns from the seeded history are not considered.
func (c *Conversation) LastAssistantContent() string {
	for i := len(c.messages) - 1; i >= c.seeded; i-- {
		m := c.messages[i]
		if m.Role == RoleAssistant && m.Content != "" {
			return m.Content
		}
	}
	return ""
}

// ExecutionContext carries the dependencies shared by every run of one
// agent: completion client, live log publisher, metrics and the resolved
// configuration. It holds no per-request state and may be reused.
type ExecutionContext struct {
	AgentName string
	Config    *ResolvedAgentConfig

	Client    CompletionClient
	Publisher events.Publisher // nil = no live logs
	Metrics   *metrics.Metrics // nil = no metrics
}

// ResolvedAgentConfig is the effective configuration of one agent after
// defaults have been applied.
type ResolvedAgentConfig struct {
	MaxTurns    int
	TurnTimeout time.Duration // per completion call; 0 = none
	ToolTimeout time.Duration // per tool invocation; 0 = none
	Stream      bool
	Tools       []string
}
