package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cassidy/journal-core/internal/agent"
	"github.com/cassidy/journal-core/internal/auth"
	"github.com/cassidy/journal-core/internal/config"
	"github.com/cassidy/journal-core/internal/draft"
	"github.com/cassidy/journal-core/internal/httpapi"
	"github.com/cassidy/journal-core/internal/providers"
	"github.com/cassidy/journal-core/internal/server"
	"github.com/cassidy/journal-core/internal/storage"
	"github.com/cassidy/journal-core/internal/store"
	"github.com/cassidy/journal-core/internal/structurer"
	"github.com/cassidy/journal-core/internal/tasks"
	"github.com/cassidy/journal-core/internal/template"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("config load failed", slog.Any("error", err))
		os.Exit(1)
	}

	ctx := context.Background()

	db, err := storage.NewDatabase(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	if err := storage.RunMigrations(ctx, db); err != nil {
		logger.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}

	st := store.New(db, cfg.Debug)
	authSvc := auth.New(st, cfg.Security.JWTSecret, cfg.Security.JWTAlgorithm, cfg.Security.TokenLifetimeHours)
	templates := template.NewProvider(st)
	drafts := draft.New(st)
	taskMgr := tasks.New(st)

	llm := newLLMClient(cfg.LLM, logger)
	structurerSvc := structurer.New(llm, cfg.LLM.Model)

	runtime := agent.New(&agent.Deps{
		Store:      st,
		Templates:  templates,
		Drafts:     drafts,
		Structurer: structurerSvc,
		Tasks:      taskMgr,
		LLM:        llm,
		Model:      cfg.LLM.Model,
	})

	handler := httpapi.NewRouter(st, authSvc, templates, drafts, taskMgr, runtime, logger, cfg.CORS, cfg.Debug)
	srv := server.New(cfg, handler, logger)

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(runCtx); err != nil {
		logger.Error("server stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
}

// newLLMClient resolves the configured provider out of a Registry, the
// way the teacher's SessionService resolves session.ProviderName through
// providers.Registry.Client (internal/service/session_service.go): the
// real OpenAI-compatible client registers as "openai" behind the
// transport-retry policy, the deterministic stub always registers as
// "stub" so the server can boot in a demo/offline mode instead of
// failing to start.
func newLLMClient(cfg config.LLMConfig, logger *slog.Logger) providers.LLMClient {
	registry := providers.NewRegistry()
	registry.Register("stub", &providers.StubClient{})
	if cfg.APIKey != "" {
		registry.Register("openai", providers.NewRetryingClient(providers.NewOpenAIClient(cfg.APIKey, cfg.BaseURL)))
	}

	name := cfg.Provider
	if name == "" {
		name = "openai"
		if cfg.APIKey == "" {
			name = "stub"
		}
	}

	client, ok := registry.Client(name)
	if !ok {
		logger.Warn("LLM provider not registered, falling back to stub", slog.String("provider", name))
		client, _ = registry.Client("stub")
	}
	if _, usingStub := client.(*providers.StubClient); usingStub && cfg.APIKey == "" {
		logger.Warn("LLM_API_KEY not set, using stub LLM client")
	}
	return client
}
