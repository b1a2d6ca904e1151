// Cognia coordination server — runs the loop engine, the event bridge, and
// the HTTP API over them.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/cognia-ai/cognia/pkg/api"
	"github.com/cognia-ai/cognia/pkg/bridge"
	"github.com/cognia-ai/cognia/pkg/bus"
	"github.com/cognia-ai/cognia/pkg/config"
	"github.com/cognia-ai/cognia/pkg/database"
	"github.com/cognia-ai/cognia/pkg/events"
	"github.com/cognia-ai/cognia/pkg/llm"
	"github.com/cognia-ai/cognia/pkg/loop"
	"github.com/cognia-ai/cognia/pkg/memory"
	"github.com/cognia-ai/cognia/pkg/models"
	"github.com/cognia-ai/cognia/pkg/notify"
	"github.com/cognia-ai/cognia/pkg/store"
	"github.com/cognia-ai/cognia/pkg/tools"
	"github.com/cognia-ai/cognia/pkg/validation"
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
		slog.Warn("No .env file loaded", "path", envPath)
	}

	ctx := context.Background()

	// 1. Initialize configuration
	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		slog.Error("Failed to initialize configuration", "error", err)
		os.Exit(1)
	}
	stats := cfg.Stats()
	slog.Info("Configuration loaded",
		"config_dir", *configDir,
		"tool_servers", stats.ToolServers,
		"llm_providers", stats.LLMProviders)

	// 2. Connect to the database. The process is fully functional without
	// one: in-process state is authoritative and the database is only the
	// write-behind recovery substrate.
	var dbClient *database.Client
	if os.Getenv(cfg.Database.DSNEnv) != "" {
		dbClient, err = database.NewClient(ctx, cfg.Database)
		if err != nil {
			slog.Error("Failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer dbClient.Close()
		slog.Info("Database connected", "migrate_on_start", cfg.Database.MigrateOnStart)
	} else {
		slog.Warn("Database disabled: DSN env var is empty — state will not survive restarts",
			"dsn_env", cfg.Database.DSNEnv)
	}

	// 3. Event bus
	eventBus := bus.New()
	defer eventBus.Close()

	// 4. Tool infrastructure: client sessions, registry, circuit breakers,
	// validation pipeline, executor.
	toolClient := tools.NewClient(cfg.ToolServerRegistry)
	if err := toolClient.Initialize(ctx); err != nil {
		slog.Error("Tool server initialization failed", "error", err)
		os.Exit(1)
	}
	if failed := toolClient.FailedServers(); len(failed) > 0 {
		slog.Warn("Some tool servers failed to connect", "failed_servers", failed)
	}
	defer func() {
		if err := toolClient.Close(); err != nil {
			slog.Error("Error closing tool client", "error", err)
		}
	}()

	breakers := tools.NewCircuitSet(cfg.Validation)
	registry := tools.NewRegistry(breakers)
	for serverID, serverCfg := range cfg.ToolServerRegistry.GetAll() {
		discovered, listErr := toolClient.ListTools(ctx, serverID)
		if listErr != nil {
			slog.Warn("Initial tool discovery failed", "server_id", serverID, "error", listErr)
			continue
		}
		registry.RefreshServer(serverID, serverCfg, discovered)
	}
	slog.Info("Tool registry populated", "tools", registry.Len())

	pipeline := validation.NewPipeline(cfg.Validation, validation.NewRuleSet())
	executor := tools.NewExecutor(registry, toolClient, breakers, pipeline)

	var healthMonitor *tools.HealthMonitor
	if cfg.ToolServerRegistry.Len() > 0 {
		healthMonitor = tools.NewHealthMonitor(toolClient, registry, cfg.ToolServerRegistry)
		healthMonitor.Start(ctx)
		defer healthMonitor.Stop()
		slog.Info("Tool health monitor started")
	}

	// 5. LLM client
	providers, err := llm.BuildProviders(cfg.LLMProviderRegistry)
	if err != nil {
		slog.Error("Failed to build LLM providers", "error", err)
		os.Exit(1)
	}
	llmClient := llm.NewClient(cfg.LLM, providers)
	llmClient.Start(ctx)
	defer llmClient.Stop()
	slog.Info("LLM client started", "providers", len(providers))

	// 6. Memory store. The embedding backend is an external collaborator;
	// without one recall comes back empty while rewards, consolidation, TTL
	// sweep, and persistence all still run.
	memPath := getEnv("MEMORY_PATH", "./data/memory")
	index, err := memory.NewChromemIndex(memPath, true)
	if err != nil {
		slog.Error("Failed to open memory index", "path", memPath, "error", err)
		os.Exit(1)
	}
	memStore := memory.NewStore(cfg.Memory, index)
	memStore.StartSweeper(ctx)
	defer func() {
		if err := memStore.Close(); err != nil {
			slog.Error("Error closing memory store", "error", err)
		}
	}()
	memHooks := memory.NewLoopHooks(memStore, nil)
	slog.Info("Memory store started", "path", memPath)

	// 7. Loop manager
	loopManager := loop.NewManager(cfg.Loop, eventBus, llmClient, executor, registry, memHooks)
	if slack := notify.NewService(cfg.Slack); slack != nil {
		loopManager.SetNotifier(slack)
		slog.Info("Slack notifications enabled", "channel", cfg.Slack.Channel)
	}
	loopManager.Start(ctx)

	// 8. Bridge: inbound observations feed the owner's loop; everything else
	// fans back out on the channel room.
	inbound := func(identity bridge.Identity, env events.Envelope) {
		if env.EventName == events.EventObservation {
			var payload events.ObservationPayload
			if err := env.Decode(&payload); err != nil {
				slog.Warn("Malformed inbound observation", "agent_id", identity.AgentID, "error", err)
				return
			}
			if err := loopManager.SubmitObservation(identity.AgentID, payload.Observation); err != nil {
				slog.Warn("Inbound observation rejected",
					"agent_id", identity.AgentID, "error", err)
			}
			return
		}
		if err := eventBus.Emit(ctx, events.ChannelRoom(env.ChannelID), env); err != nil {
			slog.Warn("Inbound event dropped", "event", env.EventName, "error", err)
		}
	}
	connManager := bridge.NewConnectionManager(cfg.Bridge, eventBus, cfg.Bus.DedupeWindow, inbound)
	connManager.OnAgentConnected = loopManager.AgentReconnected
	connManager.OnAgentDisconnected = loopManager.AgentDisconnected

	// 9. Write-behind persistence
	var flusher *store.Flusher
	if dbClient != nil {
		if snaps, loadErr := store.NewPatternRepo(dbClient.Pool()).LoadAll(ctx); loadErr != nil {
			slog.Warn("Pattern store recovery failed", "error", loadErr)
		} else if len(snaps) > 0 {
			pipeline.Patterns().Restore(snaps)
			slog.Info("Pattern store recovered", "patterns", len(snaps))
		}

		flusher = store.NewFlusher(dbClient.Pool(), store.Sources{
			Loops:    loopManager,
			Memory:   memStore,
			Patterns: pipeline.Patterns(),
			Circuits: breakers,
		}, cfg.Database.FlushInterval)
		f := flusher
		loopManager.SetTerminalHook(func(snap models.Loop) {
			markCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			f.MarkStopped(markCtx, snap)
		})
		flusher.Start(ctx)
		slog.Info("Write-behind flusher started", "interval", cfg.Database.FlushInterval)
	}

	// 10. HTTP server (non-blocking)
	httpServer := api.NewServer(cfg.Bridge, connManager, loopManager, dbClient, healthMonitor)
	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	slog.Info("Cognia started successfully",
		"addr", cfg.Bridge.Addr,
		"max_concurrent_loops", cfg.Loop.MaxConcurrentLoops)

	// 11. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// 12. Graceful shutdown: stop accepting HTTP first, then drain loops,
	// then close sockets, then take the final flush.
	httpShutdownCtx, httpCancel := context.WithTimeout(ctx, 5*time.Second)
	defer httpCancel()
	if err := httpServer.Shutdown(httpShutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	loopShutdownCtx, loopCancel := context.WithTimeout(ctx, cfg.Loop.GracefulShutdownTimeout)
	defer loopCancel()
	if err := loopManager.Shutdown(loopShutdownCtx); err != nil {
		slog.Warn("Loop shutdown incomplete", "error", err)
	} else {
		slog.Info("All loops stopped gracefully")
	}

	connManager.Close()

	if flusher != nil {
		flusher.Stop(ctx)
		slog.Info("Final state flush complete")
	}

	slog.Info("Shutdown complete")
}
