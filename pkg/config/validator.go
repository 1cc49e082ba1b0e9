package config

import (
	"fmt"
	"os"
)

// ConfigValidator validates configuration with clear error messages
type ConfigValidator struct {
	cfg *Config
}

// NewValidator creates a validator for the given configuration
func NewValidator(cfg *Config) *ConfigValidator {
	return &ConfigValidator{cfg: cfg}
}

// ValidateAll validates every section, stopping at the first error.
func (v *ConfigValidator) ValidateAll() error {
	if err := v.validateLLM(); err != nil {
		return fmt.Errorf("LLM validation failed: %w", err)
	}
	if err := v.validateAgents(); err != nil {
		return fmt.Errorf("agent validation failed: %w", err)
	}
	if err := v.validateDatabase(); err != nil {
		return fmt.Errorf("database validation failed: %w", err)
	}
	if err := v.validateServer(); err != nil {
		return fmt.Errorf("server validation failed: %w", err)
	}
	return nil
}

func (v *ConfigValidator) validateLLM() error {
	llm := v.cfg.LLM
	if llm.Model == "" {
		return NewValidationError("llm", "default", "model", ErrMissingRequiredField)
	}
	if llm.BaseURL == "" {
		return NewValidationError("llm", "default", "base_url", ErrMissingRequiredField)
	}
	if llm.APIKeyEnv != "" && os.Getenv(llm.APIKeyEnv) == "" {
		return NewValidationError("llm", "default", "api_key_env",
			fmt.Errorf("%w: environment variable %s is not set", ErrMissingRequiredField, llm.APIKeyEnv))
	}
	if llm.Temperature != nil && (*llm.Temperature < 0 || *llm.Temperature > 2) {
		return NewValidationError("llm", "default", "temperature",
			fmt.Errorf("%w: must be between 0 and 2", ErrInvalidValue))
	}
	if llm.Timeout < 0 {
		return NewValidationError("llm", "default", "timeout", fmt.Errorf("%w: must not be negative", ErrInvalidValue))
	}
	return nil
}

func (v *ConfigValidator) validateAgents() error {
	d := v.cfg.Defaults
	if d.MaxTurns < 1 {
		return NewValidationError("defaults", "agents", "max_turns", fmt.Errorf("%w: must be at least 1", ErrInvalidValue))
	}
	if d.TurnTimeout < 0 || d.ToolTimeout < 0 {
		return NewValidationError("defaults", "agents", "timeouts", fmt.Errorf("%w: must not be negative", ErrInvalidValue))
	}

	for _, name := range []string{AgentSQL, AgentFeedback} {
		if _, ok := v.cfg.Agents[name]; !ok {
			return NewValidationError("agent", name, "", ErrAgentNotFound)
		}
	}
	for _, name := range v.cfg.AgentNames() {
		a := v.cfg.Agents[name]
		if a.MaxTurns < 0 {
			return NewValidationError("agent", name, "max_turns", fmt.Errorf("%w: must not be negative", ErrInvalidValue))
		}
		if a.TurnTimeout < 0 || a.ToolTimeout < 0 {
			return NewValidationError("agent", name, "timeouts", fmt.Errorf("%w: must not be negative", ErrInvalidValue))
		}
		if len(a.Tools) == 0 {
			return NewValidationError("agent", name, "tools", fmt.Errorf("%w: at least one tool required", ErrMissingRequiredField))
		}
	}
	return nil
}

func (v *ConfigValidator) validateDatabase() error {
	db := v.cfg.Database
	switch db.DataDriver {
	case "sqlite", "postgres":
	default:
		return NewValidationError("database", "data", "data_driver",
			fmt.Errorf("%w: %q (want sqlite or postgres)", ErrInvalidValue, db.DataDriver))
	}
	if db.DataDSN == "" {
		return NewValidationError("database", "data", "data_dsn", ErrMissingRequiredField)
	}
	if db.MetadataPath == "" {
		return NewValidationError("database", "metadata", "metadata_path", ErrMissingRequiredField)
	}
	return nil
}

func (v *ConfigValidator) validateServer() error {
	if v.cfg.Server.Addr == "" {
		return NewValidationError("server", "http", "addr", ErrMissingRequiredField)
	}
	if v.cfg.Events.BufferSize < 1 {
		return NewValidationError("events", "hub", "buffer_size", fmt.Errorf("%w: must be at least 1", ErrInvalidValue))
	}
	return nil
}
