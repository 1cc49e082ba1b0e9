package agent

import (
	"fmt"

	"github.com/yuy4o/ChatBI/pkg/config"
)

// DefaultMaxTurns applies when neither the defaults section nor the agent
// sets a turn budget.
const DefaultMaxTurns = 10

// ResolveAgentConfig builds the effective configuration of the named agent
// by applying the hierarchy: built-in → defaults section → agent section.
func ResolveAgentConfig(cfg *config.Config, name string) (*ResolvedAgentConfig, error) {
	agentDef, err := cfg.GetAgent(name)
	if err != nil {
		return nil, fmt.Errorf("agent %q not found: %w", name, err)
	}
	defaults := cfg.Defaults
	if defaults == nil {
		defaults = &config.AgentDefaults{}
	}

	maxTurns := DefaultMaxTurns
	if defaults.MaxTurns > 0 {
		maxTurns = defaults.MaxTurns
	}
	if agentDef.MaxTurns > 0 {
		maxTurns = agentDef.MaxTurns
	}

	turnTimeout := defaults.TurnTimeout
	if agentDef.TurnTimeout > 0 {
		turnTimeout = agentDef.TurnTimeout
	}
	toolTimeout := defaults.ToolTimeout
	if agentDef.ToolTimeout > 0 {
		toolTimeout = agentDef.ToolTimeout
	}

	stream := false
	if defaults.Stream != nil {
		stream = *defaults.Stream
	}
	if agentDef.Stream != nil {
		stream = *agentDef.Stream
	}

	return &ResolvedAgentConfig{
		MaxTurns:    maxTurns,
		TurnTimeout: turnTimeout,
		ToolTimeout: toolTimeout,
		Stream:      stream,
		Tools:       append([]string(nil), agentDef.Tools...),
	}, nil
}
