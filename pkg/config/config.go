package config

import (
	"fmt"
	"maps"
	"slices"
)

// Config is the umbrella configuration object returned by Initialize and
// used throughout the application.
type Config struct {
	configDir string

	LLM      *LLMConfig
	Defaults *AgentDefaults
	Agents   map[string]*AgentConfig
	Database *DatabaseConfig
	Events   *EventsConfig
	Server   *ServerConfig
}

// Agent names as used in chatbi.yaml.
const (
	AgentSQL      = "sql"
	AgentFeedback = "feedback"
)

// ConfigDir returns the configuration directory path.
func (c *Config) ConfigDir() string {
	return c.configDir
}

// GetAgent retrieves an agent configuration by name.
func (c *Config) GetAgent(name string) (*AgentConfig, error) {
	a, ok := c.Agents[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAgentNotFound, name)
	}
	return a, nil
}

// AgentNames returns the configured agent names, sorted.
func (c *Config) AgentNames() []string {
	return slices.Sorted(maps.Keys(c.Agents))
}
