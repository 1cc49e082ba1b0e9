// ChatBI server: answers data questions with the SQL agent, learns from
// liked answers with the feedback agent, and streams agent logs to
// WebSocket clients.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

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
	"github.com/yuy4o/ChatBI/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	// Load .env file from config directory
	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment",
			"path", envPath, "error", err)
	} else {
		slog.Info("Loaded environment", "path", envPath)
	}

	slog.Info("Starting ChatBI", "version", version.Full(), "config_dir", *configDir)

	if err := run(*configDir); err != nil {
		slog.Error("ChatBI stopped with error", "error", err)
		os.Exit(1)
	}
	slog.Info("Shutdown complete")
}

func run(configDir string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. Configuration
	cfg, err := config.Initialize(ctx, configDir)
	if err != nil {
		return fmt.Errorf("initialize configuration: %w", err)
	}

	// 2. Data source and metadata store
	dbClient, err := database.NewClient(ctx, database.Config{
		DataDriver:   database.Driver(cfg.Database.DataDriver),
		DataDSN:      cfg.Database.DataDSN,
		MetadataPath: cfg.Database.MetadataPath,
	})
	if err != nil {
		return fmt.Errorf("open databases: %w", err)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			slog.Error("Error closing database client", "error", err)
		}
	}()
	if err := applySeed(ctx, dbClient, configDir, cfg.Database.SeedFile); err != nil {
		return err
	}

	// 3. Metrics and live logs
	m := metrics.New()
	hub := events.NewHub(cfg.Events.BufferSize, cfg.Events.HistorySize)
	connManager := events.NewConnectionManager(hub, cfg.Events.WriteTimeout)
	hub.AddSink(events.SlogSink())
	hub.AddSink(connManager)
	hub.Start(ctx)
	defer hub.Stop()
	m.RegisterDroppedEvents(hub.Dropped)

	// 4. Tool registry, frozen before any request is served
	registry := tools.NewRegistry()
	if err := sqltools.New(dbClient).Register(registry); err != nil {
		return fmt.Errorf("register tools: %w", err)
	}
	registry.Freeze()
	slog.Info("Tool registry frozen", "tools", registry.Len())

	// 5. Completion service
	llmClient, err := llm.NewClient(llm.Config{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      os.Getenv(cfg.LLM.APIKeyEnv),
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	})
	if err != nil {
		return fmt.Errorf("create LLM client: %w", err)
	}

	// 6. Agents
	build := func(configName, agentName string) (runner.Agent, error) {
		resolved, err := agent.ResolveAgentConfig(cfg, configName)
		if err != nil {
			return runner.Agent{}, err
		}
		toolset, err := registry.Toolset(resolved.Tools...)
		if err != nil {
			return runner.Agent{}, fmt.Errorf("agent %s: %w", configName, err)
		}
		slog.Info("Agent configured",
			"agent", agentName,
			"max_turns", resolved.MaxTurns,
			"stream", resolved.Stream,
			"tools", toolset.Names())
		return runner.Agent{
			Exec: &agent.ExecutionContext{
				AgentName: agentName,
				Config:    resolved,
				Client:    llmClient,
				Publisher: hub,
				Metrics:   m,
			},
			Toolset: toolset,
		}, nil
	}
	sqlAgent, err := build(config.AgentSQL, runner.SQLAgentName)
	if err != nil {
		return err
	}
	feedbackAgent, err := build(config.AgentFeedback, runner.FeedbackAgentName)
	if err != nil {
		return err
	}
	agents := runner.New(sqlAgent, feedbackAgent, prompt.NewPromptBuilder(dialectName(dbClient.Dialect().Name())))

	// 7. HTTP server
	httpServer := api.NewServer(agents, dbClient, hub, m)
	httpServer.SetConnManager(connManager, cfg.Server.AllowedWSOrigins)
	httpServer.SetToolCount(registry.Len())
	httpServer.SetDroppedEvents(hub.Dropped)
	httpServer.SetCatalog(database.NewMetadataStore(dbClient.Metadata()), dbClient)

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Start(cfg.Server.Addr)
	}()
	slog.Info("ChatBI started successfully", "addr", cfg.Server.Addr)

	// 8. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	var serveErr error
	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case serveErr = <-errCh:
		slog.Error("Server error triggered shutdown", "error", serveErr)
	}

	// 9. Graceful shutdown: stop accepting requests, then stop the hub
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}
	return serveErr
}

// applySeed loads the metadata seed into an empty metadata store. Relative
// paths are resolved against the config directory.
func applySeed(ctx context.Context, dbClient *database.Client, configDir, seedFile string) error {
	if seedFile == "" {
		return nil
	}
	if !filepath.IsAbs(seedFile) {
		seedFile = filepath.Join(configDir, seedFile)
	}
	seed, err := database.LoadSeedFile(seedFile)
	if err != nil {
		return err
	}
	applied, err := database.ApplySeed(ctx, dbClient.Metadata(), seed)
	if err != nil {
		return fmt.Errorf("apply seed: %w", err)
	}
	slog.Info("Metadata seed checked", "path", seedFile, "applied", applied)
	return nil
}

// dialectName is the SQL dialect named in the agent prompt.
func dialectName(d database.Driver) string {
	if d == database.DriverPostgres {
		return "PostgreSQL"
	}
	return "SQLite"
}
