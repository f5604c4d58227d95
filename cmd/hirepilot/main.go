// HirePilot server — single-gateway LLM task orchestration for recruiting
// campaigns: intake copilot, asset generation, and the video render pipeline.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/hirepilot/hirepilot/pkg/api"
	"github.com/hirepilot/hirepilot/pkg/company"
	"github.com/hirepilot/hirepilot/pkg/config"
	"github.com/hirepilot/hirepilot/pkg/copilot"
	"github.com/hirepilot/hirepilot/pkg/credits"
	"github.com/hirepilot/hirepilot/pkg/docstore"
	"github.com/hirepilot/hirepilot/pkg/llm"
	"github.com/hirepilot/hirepilot/pkg/llm/anthropicadapter"
	"github.com/hirepilot/hirepilot/pkg/llm/gemini"
	"github.com/hirepilot/hirepilot/pkg/llm/openaiadapter"
	"github.com/hirepilot/hirepilot/pkg/orchestrator"
	"github.com/hirepilot/hirepilot/pkg/prompt"
	"github.com/hirepilot/hirepilot/pkg/queue"
	"github.com/hirepilot/hirepilot/pkg/services"
	"github.com/hirepilot/hirepilot/pkg/version"
	"github.com/hirepilot/hirepilot/pkg/video"
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

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment",
			"path", envPath, "error", err)
	} else {
		slog.Info("Loaded environment", "path", envPath)
	}

	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	slog.Info("Starting HirePilot",
		"version", version.Full(),
		"http_port", cfg.HTTPPort,
		"config_dir", *configDir)

	// Document store: PostgreSQL by default, in-memory for local development.
	var store docstore.Store
	if getEnv("HP_STORE", "postgres") == "memory" {
		store = docstore.NewMemoryStore()
		slog.Info("Using in-memory document store")
	} else {
		dbCfg, err := docstore.LoadConfigFromEnv()
		if err != nil {
			slog.Error("Failed to load database config", "error", err)
			os.Exit(1)
		}
		pg, err := docstore.NewPostgresStore(ctx, dbCfg)
		if err != nil {
			slog.Error("Failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := pg.Close(); err != nil {
				slog.Error("Error closing database", "error", err)
			}
		}()
		store = pg
		slog.Info("Connected to PostgreSQL document store")
	}

	// Provider registry. Vendors without an API key are simply absent; task
	// types mapped to them fail at invocation, not at startup.
	traffic := llm.SlogTraffic{}
	registry := llm.NewRegistry()
	if cfg.GeminiAPIKey != "" {
		adapter, err := gemini.New(ctx, cfg.GeminiAPIKey, traffic)
		if err != nil {
			slog.Error("Failed to initialize Gemini adapter", "error", err)
			os.Exit(1)
		}
		registry.RegisterText(adapter)
		registry.RegisterImage("gemini", adapter)
		registry.RegisterVideo("gemini", adapter)
		slog.Info("Registered Gemini adapter")
	}
	if cfg.OpenAIAPIKey != "" {
		adapter, err := openaiadapter.New(cfg.OpenAIAPIKey, traffic)
		if err != nil {
			slog.Error("Failed to initialize OpenAI adapter", "error", err)
			os.Exit(1)
		}
		registry.RegisterText(adapter)
		slog.Info("Registered OpenAI adapter")
	}
	if cfg.AnthropicAPIKey != "" {
		adapter, err := anthropicadapter.New(cfg.AnthropicAPIKey, traffic)
		if err != nil {
			slog.Error("Failed to initialize Anthropic adapter", "error", err)
			os.Exit(1)
		}
		registry.RegisterText(adapter)
		slog.Info("Registered Anthropic adapter")
	}

	prompts := prompt.NewRegistry()
	if err := prompts.LoadOverrides(*configDir); err != nil {
		slog.Error("Failed to load prompt overrides", "error", err)
		os.Exit(1)
	}

	ledger := credits.NewLedger(store, credits.DefaultRates())
	jobs := services.NewJobService(store)
	chats := services.NewChatService(store)
	videos := services.NewVideoService(store)
	companies := company.NewLoader(store)

	engine := orchestrator.NewEngine(prompts, registry, ledger, cfg)
	orch := orchestrator.New(engine, store, jobs, chats, companies)
	orch.SetAgentRunner(copilot.NewRunner(engine, store, jobs, chats, companies))

	pipeline := video.NewPipeline(engine, store, jobs, videos)
	orch.SetVideoRunner(pipeline)
	slog.Info("Task orchestrator initialized")

	// Render poll pool drives async video segments to completion.
	pool := queue.NewWorkerPool(pipeline, cfg.RenderWorkers, cfg.RenderPollInterval)
	pool.Start(ctx)

	server := api.NewServer(cfg, orch, jobs, chats, videos, ledger)

	runCtx, cancel := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	if err := server.Run(runCtx); err != nil {
		slog.Error("HTTP server error", "error", err)
	}

	pool.Stop()
	slog.Info("Shutdown complete")
}
