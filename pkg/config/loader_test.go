package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(content), 0o600))
	return dir
}

func TestInitialize_BuiltinsWhenFileMissing(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")

	cfg, err := Initialize(context.Background(), t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, []string{AgentFeedback, AgentSQL}, cfg.AgentNames())

	sql, err := cfg.GetAgent(AgentSQL)
	require.NoError(t, err)
	assert.Equal(t, 10, sql.MaxTurns)
	assert.Len(t, sql.Tools, 4)

	feedback, err := cfg.GetAgent(AgentFeedback)
	require.NoError(t, err)
	assert.Equal(t, 5, feedback.MaxTurns)
	require.NotNil(t, feedback.Stream)
	assert.True(t, *feedback.Stream)
	assert.Equal(t, []string{"tool_update_metadata_description", "tool_update_business_term"}, feedback.Tools)

	assert.Equal(t, "sqlite", cfg.Database.DataDriver)
	assert.Equal(t, ":8000", cfg.Server.Addr)
}

func TestInitialize_UserValuesOverrideBuiltins(t *testing.T) {
	t.Setenv("CHATBI_KEY", "secret")
	t.Setenv("CHATBI_PG", "postgres://bi@db/bi")

	dir := writeConfig(t, `
llm:
  base_url: http://llm.local/v1
  api_key_env: CHATBI_KEY
  model: qwen-plus
  temperature: 0
defaults:
  stream: true
  turn_timeout: 45s
agents:
  sql:
    max_turns: 4
  feedback:
    stream: false
database:
  data_driver: postgres
  data_dsn: "{{.CHATBI_PG}}"
server:
  addr: 127.0.0.1:9000
`)

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.ConfigDir())

	assert.Equal(t, "http://llm.local/v1", cfg.LLM.BaseURL)
	assert.Equal(t, "qwen-plus", cfg.LLM.Model)
	require.NotNil(t, cfg.LLM.Temperature)
	assert.Zero(t, *cfg.LLM.Temperature)
	assert.Equal(t, 2*time.Minute, cfg.LLM.Timeout, "unset fields keep built-in values")

	assert.True(t, *cfg.Defaults.Stream)
	assert.Equal(t, 45*time.Second, cfg.Defaults.TurnTimeout)
	assert.Equal(t, 30*time.Second, cfg.Defaults.ToolTimeout)

	assert.Equal(t, 4, cfg.Agents[AgentSQL].MaxTurns)
	assert.Len(t, cfg.Agents[AgentSQL].Tools, 4)
	assert.False(t, *cfg.Agents[AgentFeedback].Stream)
	assert.Equal(t, 5, cfg.Agents[AgentFeedback].MaxTurns)

	assert.Equal(t, "postgres", cfg.Database.DataDriver)
	assert.Equal(t, "postgres://bi@db/bi", cfg.Database.DataDSN)
	assert.Equal(t, "data/metadata.db", cfg.Database.MetadataPath)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
}

func TestInitialize_InvalidYAML(t *testing.T) {
	dir := writeConfig(t, "llm: [unclosed")

	_, err := Initialize(context.Background(), dir)
	require.Error(t, err)

	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, ConfigFileName, loadErr.File)
	assert.ErrorIs(t, err, ErrInvalidYAML)
}

func TestInitialize_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		field   string
		wantErr error
	}{
		{
			name:    "api key env not set",
			yaml:    "llm:\n  api_key_env: CHATBI_UNSET_KEY\n",
			field:   "api_key_env",
			wantErr: ErrMissingRequiredField,
		},
		{
			name:    "temperature out of range",
			yaml:    "llm:\n  temperature: 3\n",
			field:   "temperature",
			wantErr: ErrInvalidValue,
		},
		{
			name:    "negative agent max turns",
			yaml:    "agents:\n  sql:\n    max_turns: -1\n",
			field:   "max_turns",
			wantErr: ErrInvalidValue,
		},
		{
			name:    "unknown data driver",
			yaml:    "database:\n  data_driver: oracle\n",
			field:   "data_driver",
			wantErr: ErrInvalidValue,
		},
		{
			name:    "extra agent without tools",
			yaml:    "agents:\n  report:\n    max_turns: 3\n",
			field:   "tools",
			wantErr: ErrMissingRequiredField,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("OPENAI_API_KEY", "test-key")
			dir := writeConfig(t, tt.yaml)

			_, err := Initialize(context.Background(), dir)
			require.Error(t, err)

			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestGetAgent_NotFound(t *testing.T) {
	cfg := &Config{Agents: map[string]*AgentConfig{}}
	_, err := cfg.GetAgent("report")
	assert.ErrorIs(t, err, ErrAgentNotFound)
}

func TestBuiltinConfig_IsFreshEachCall(t *testing.T) {
	a := BuiltinConfig()
	a.Agents[AgentSQL] = AgentConfig{MaxTurns: 99}
	b := BuiltinConfig()
	assert.Equal(t, 10, b.Agents[AgentSQL].MaxTurns)
}
