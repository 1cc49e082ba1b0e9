package api

import (
	"fmt"

	"github.com/yuy4o/ChatBI/pkg/agent"
	"github.com/yuy4o/ChatBI/pkg/agent/prompt"
	"github.com/yuy4o/ChatBI/pkg/events"
)

// AgentRequest is the body of POST /sql-agent and POST /feedback_good.
type AgentRequest struct {
	Metadata prompt.Metadata `json:"metadata"`
	Messages []agent.Message `json:"messages"`
}

func (r *AgentRequest) validate() error {
	if len(r.Messages) == 0 {
		return NewValidationError("messages", "at least one message is required")
	}
	for i, m := range r.Messages {
		if !m.Role.Valid() {
			return NewValidationError("messages", fmt.Sprintf("message %d has invalid role %q", i, m.Role))
		}
	}
	return nil
}

// LogRequest is the body of POST /api/log.
type LogRequest struct {
	Type    events.Source `json:"type"`
	Message *string       `json:"message"`
	Summary string        `json:"summary"`
}

func (r *LogRequest) validate() error {
	if r.Type == "" || r.Message == nil {
		return NewValidationError("type", "Invalid request. Required fields: 'type', 'message'")
	}
	if !r.Type.Valid() {
		return NewValidationError("type", "Invalid log type. Must be 'system' or 'ai'")
	}
	return nil
}
