package config

import "time"

// LLMConfig describes the OpenAI-compatible completion service.
type LLMConfig struct {
	BaseURL     string        `yaml:"base_url"`
	APIKeyEnv   string        `yaml:"api_key_env"`
	Model       string        `yaml:"model"`
	Temperature *float32      `yaml:"temperature,omitempty"`
	Timeout     time.Duration `yaml:"timeout"`
}

// AgentDefaults apply to every agent that does not override them.
type AgentDefaults struct {
	MaxTurns    int           `yaml:"max_turns"`
	TurnTimeout time.Duration `yaml:"turn_timeout"`
	ToolTimeout time.Duration `yaml:"tool_timeout"`
	Stream      *bool         `yaml:"stream,omitempty"`
}

// AgentConfig is the per-agent section. Unset fields fall back to
// AgentDefaults.
type AgentConfig struct {
	MaxTurns    int           `yaml:"max_turns"`
	TurnTimeout time.Duration `yaml:"turn_timeout"`
	ToolTimeout time.Duration `yaml:"tool_timeout"`
	Stream      *bool         `yaml:"stream,omitempty"`
	Tools       []string      `yaml:"tools"`
}

// DatabaseConfig locates the data source and the metadata store.
type DatabaseConfig struct {
	DataDriver   string `yaml:"data_driver"` // sqlite or postgres
	DataDSN      string `yaml:"data_dsn"`
	MetadataPath string `yaml:"metadata_path"`
	SeedFile     string `yaml:"seed_file,omitempty"`
}

// EventsConfig sizes the live log hub.
type EventsConfig struct {
	BufferSize   int           `yaml:"buffer_size"`
	HistorySize  int           `yaml:"history_size"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr             string   `yaml:"addr"`
	AllowedWSOrigins []string `yaml:"allowed_ws_origins,omitempty"`
}

// ChatBIYAMLConfig represents the complete chatbi.yaml file structure.
type ChatBIYAMLConfig struct {
	LLM      *LLMConfig             `yaml:"llm"`
	Defaults *AgentDefaults         `yaml:"defaults"`
	Agents   map[string]AgentConfig `yaml:"agents"`
	Database *DatabaseConfig        `yaml:"database"`
	Events   *EventsConfig          `yaml:"events"`
	Server   *ServerConfig          `yaml:"server"`
}
