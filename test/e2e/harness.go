// Package e2e provides end-to-end test infrastructure for the ChatBI server:
// real configuration loading, SQLite stores, agents, HTTP API and live log
// WebSocket, backed by a scripted OpenAI-compatible completion service.
package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yuy4o/ChatBI/pkg/agent"
	"github.com/yuy4o/ChatBI/pkg/agent/prompt"
	"github.com/yuy4o/ChatBI/pkg/agent/runner"
	"github.com/yuy4o/ChatBI/pkg/api"
	"github.com/yuy4o/ChatBI/pkg/config"
	"github.com/yuy4o/ChatBI/pkg/database"
	"github.com/yuy4o/ChatBI/pkg/events"
	"github.com/yuy4o/ChatBI/pkg/llm"
	"github.com/yuy4o/ChatBI/pkg/metrics"
	"github.com/yuy4o/ChatBI/pkg/tools"
	"github.com/yuy4o/ChatBI/pkg/tools/sqltools"
	"github.com/yuy4o/ChatBI/test/util"
)

const apiKeyEnv = "CHATBI_E2E_API_KEY"

// TestApp boots a complete ChatBI instance for e2e testing.
type TestApp struct {
	// Core
	Config   *config.Config
	DBClient *database.Client

	// Mocks
	LLM *MockLLMServer

	// Real infrastructure
	Hub         *events.Hub
	ConnManager *events.ConnectionManager
	Metrics     *metrics.Metrics
	Registry    *tools.Registry
	Server      *api.Server

	// Runtime
	BaseURL string // e.g. "http://127.0.0.1:54321"
	WSURL   string // e.g. "ws://127.0.0.1:54321/ws"
}

// testAppConfig holds options accumulated before creating the TestApp.
type testAppConfig struct {
	yaml string
}

// TestAppOption configures the test app.
type TestAppOption func(*testAppConfig)

// WithYAML appends raw YAML to the generated chatbi.yaml. Top-level keys
// must not repeat the generated ones (llm, database).
func WithYAML(extra string) TestAppOption {
	return func(c *testAppConfig) { c.yaml += "\n" + extra }
}

// NewTestApp creates and starts a full ChatBI test instance.
// Shutdown is registered via t.Cleanup automatically.
func NewTestApp(t *testing.T, opts ...TestAppOption) *TestApp {
	t.Helper()
	tc := &testAppConfig{}
	for _, opt := range opts {
		opt(tc)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	// 1. Completion service and configuration directory.
	mock := NewMockLLMServer(t)
	t.Setenv(apiKeyEnv, "e2e-key")
	configDir := writeConfigDir(t, mock.BaseURL(), tc.yaml)

	cfg, err := config.Initialize(ctx, configDir)
	require.NoError(t, err)

	// 2. Stores: sample data source plus the seed file from the config dir.
	dbClient, err := database.NewClient(ctx, database.Config{
		DataDriver:   database.Driver(cfg.Database.DataDriver),
		DataDSN:      cfg.Database.DataDSN,
		MetadataPath: cfg.Database.MetadataPath,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = dbClient.Close() })
	for _, stmt := range util.SampleDataDDL {
		_, err := dbClient.Data().ExecContext(ctx, stmt)
		require.NoError(t, err)
	}
	seed, err := database.LoadSeedFile(filepath.Join(configDir, cfg.Database.SeedFile))
	require.NoError(t, err)
	applied, err := database.ApplySeed(ctx, dbClient.Metadata(), seed)
	require.NoError(t, err)
	require.True(t, applied)

	// 3. Metrics and live logs.
	m := metrics.New()
	hub := events.NewHub(cfg.Events.BufferSize, cfg.Events.HistorySize)
	connManager := events.NewConnectionManager(hub, cfg.Events.WriteTimeout)
	hub.AddSink(connManager)
	hub.Start(ctx)
	t.Cleanup(hub.Stop)
	m.RegisterDroppedEvents(hub.Dropped)

	// 4. Tools.
	registry := tools.NewRegistry()
	require.NoError(t, sqltools.New(dbClient).Register(registry))
	registry.Freeze()

	// 5. Agents.
	llmClient, err := llm.NewClient(llm.Config{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      os.Getenv(cfg.LLM.APIKeyEnv),
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	})
	require.NoError(t, err)
	build := func(configName, agentName string) runner.Agent {
		resolved, err := agent.ResolveAgentConfig(cfg, configName)
		require.NoError(t, err)
		toolset, err := registry.Toolset(resolved.Tools...)
		require.NoError(t, err)
		return runner.Agent{
			Exec: &agent.ExecutionContext{
				AgentName: agentName,
				Config:    resolved,
				Client:    llmClient,
				Publisher: hub,
				Metrics:   m,
			},
			Toolset: toolset,
		}
	}
	agents := runner.New(
		build(config.AgentSQL, runner.SQLAgentName),
		build(config.AgentFeedback, runner.FeedbackAgentName),
		prompt.NewPromptBuilder("SQLite"),
	)

	// 6. HTTP server on random port.
	server := api.NewServer(agents, dbClient, hub, m)
	server.SetConnManager(connManager, nil)
	server.SetToolCount(registry.Len())
	server.SetDroppedEvents(hub.Dropped)
	server.SetCatalog(database.NewMetadataStore(dbClient.Metadata()), dbClient)

	httpServer := httptest.NewServer(server.Handler())
	t.Cleanup(httpServer.Close)

	return &TestApp{
		Config:      cfg,
		DBClient:    dbClient,
		LLM:         mock,
		Hub:         hub,
		ConnManager: connManager,
		Metrics:     m,
		Registry:    registry,
		Server:      server,
		BaseURL:     httpServer.URL,
		WSURL:       "ws" + strings.TrimPrefix(httpServer.URL, "http") + "/ws",
	}
}

// writeConfigDir creates a config directory holding chatbi.yaml and the
// sample metadata seed.
func writeConfigDir(t *testing.T, llmBaseURL, extra string) string {
	t.Helper()
	dir := t.TempDir()

	seed, err := json.MarshalIndent(util.SampleSeed(), "", "  ")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "seed.json"), seed, 0o600))

	yaml := fmt.Sprintf(`llm:
  base_url: %s
  api_key_env: %s
  model: mock-model
  timeout: 10s
database:
  data_driver: sqlite
  data_dsn: %s
  metadata_path: %s
  seed_file: seed.json
%s
`, llmBaseURL, apiKeyEnv,
		filepath.Join(dir, "data.db"), filepath.Join(dir, "metadata.db"), extra)
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.ConfigFileName), []byte(yaml), 0o600))
	return dir
}

// waitFor polls cond until it holds or the timeout elapses.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, timeout, 20*time.Millisecond)
}
