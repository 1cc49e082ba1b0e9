package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// Initialize loads, validates, and returns ready-to-use configuration.
// This is the primary entry point for configuration loading.
//
// Steps performed:
//  1. Load chatbi.yaml from configDir (a missing file means built-ins only)
//  2. Expand environment variables
//  3. Parse YAML into structs
//  4. Merge user values over the built-in configuration
//  5. Validate
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("Initializing configuration")

	cfg, err := load(ctx, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	log.Info("Configuration initialized successfully",
		"model", cfg.LLM.Model,
		"agents", len(cfg.Agents),
		"data_driver", cfg.Database.DataDriver)
	return cfg, nil
}

func load(_ context.Context, configDir string) (*Config, error) {
	loader := &configLoader{configDir: configDir}

	user, err := loader.loadChatBIYAML()
	if err != nil {
		if !errors.Is(err, ErrConfigNotFound) {
			return nil, NewLoadError(ConfigFileName, err)
		}
		slog.Info("No configuration file found, using built-in configuration",
			"path", filepath.Join(configDir, ConfigFileName))
		user = &ChatBIYAMLConfig{}
	}

	merged, err := merge(BuiltinConfig(), user)
	if err != nil {
		return nil, err
	}
	merged.configDir = configDir
	return merged, nil
}

// merge applies user values over builtin, section by section. Non-zero
// user values override; pointer flags are taken as set.
func merge(builtin, user *ChatBIYAMLConfig) (*Config, error) {
	cfg := &Config{
		LLM:      builtin.LLM,
		Defaults: builtin.Defaults,
		Database: builtin.Database,
		Events:   builtin.Events,
		Server:   builtin.Server,
		Agents:   make(map[string]*AgentConfig, len(builtin.Agents)),
	}

	if err := errors.Join(
		mergeSection("llm", cfg.LLM, user.LLM),
		mergeSection("defaults", cfg.Defaults, user.Defaults),
		mergeSection("database", cfg.Database, user.Database),
		mergeSection("events", cfg.Events, user.Events),
		mergeSection("server", cfg.Server, user.Server),
	); err != nil {
		return nil, err
	}
	if user.LLM != nil && user.LLM.Temperature != nil {
		cfg.LLM.Temperature = user.LLM.Temperature
	}
	if user.Defaults != nil && user.Defaults.Stream != nil {
		cfg.Defaults.Stream = user.Defaults.Stream
	}

	for name, a := range builtin.Agents {
		agentCfg := a
		cfg.Agents[name] = &agentCfg
	}
	for name, ua := range user.Agents {
		dst, ok := cfg.Agents[name]
		if !ok {
			agentCfg := ua
			cfg.Agents[name] = &agentCfg
			continue
		}
		if err := mergo.Merge(dst, ua, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge agent %s config: %w", name, err)
		}
		if ua.Stream != nil {
			dst.Stream = ua.Stream
		}
	}
	return cfg, nil
}

func mergeSection[T any](name string, dst, src *T) error {
	if src == nil {
		return nil
	}
	if err := mergo.Merge(dst, src, mergo.WithOverride); err != nil {
		return fmt.Errorf("failed to merge %s config: %w", name, err)
	}
	return nil
}

// validate performs validation on loaded configuration
func validate(cfg *Config) error {
	validator := NewValidator(cfg)
	return validator.ValidateAll()
}

type configLoader struct {
	configDir string
}

func (l *configLoader) loadYAML(filename string, target any) error {
	path := filepath.Join(l.configDir, filename)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return err
	}

	// Expand environment variables using {{.VAR}} template syntax
	data = ExpandEnv(data)

	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	return nil
}

func (l *configLoader) loadChatBIYAML() (*ChatBIYAMLConfig, error) {
	var config ChatBIYAMLConfig
	config.Agents = make(map[string]AgentConfig)

	if err := l.loadYAML(ConfigFileName, &config); err != nil {
		return nil, err
	}
	return &config, nil
}
