package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/sandevgo/chorus/internal/config"
	"github.com/sandevgo/chorus/internal/metrics"
	"github.com/sandevgo/chorus/internal/providers/fetch"
	"github.com/sandevgo/chorus/internal/providers/llm"
	"github.com/sandevgo/chorus/internal/providers/rag"
	"github.com/sandevgo/chorus/internal/providers/search"
	"github.com/sandevgo/chorus/internal/service/abstractor"
	"github.com/sandevgo/chorus/internal/service/command"
	"github.com/sandevgo/chorus/internal/service/gateway"
	"github.com/sandevgo/chorus/internal/service/pipeline"
	"github.com/sandevgo/chorus/internal/service/planner"
	"github.com/sandevgo/chorus/internal/service/retrieval"
	"github.com/sandevgo/chorus/internal/service/session"
	"github.com/sandevgo/chorus/internal/service/synthesis"
	"github.com/sandevgo/chorus/internal/service/validation"
	"github.com/sandevgo/chorus/internal/storage/sqlite"
	"github.com/sandevgo/chorus/internal/transport/telegram"
	"github.com/sandevgo/chorus/pkg/log"
	"github.com/sandevgo/chorus/pkg/srv"
)

// App is the wired object graph shared by every subcommand.
type App struct {
	Config   *config.AppConfig
	Sessions *session.Manager
	Router   *command.Router
	Focus    *command.Focus

	// in start order; shut down in reverse
	services []srv.Service
}

// openDB is replaced in tests.
var openDB = sqlite.NewDB

func NewApp(ctx context.Context) (_ *App, err error) {
	if err := initEnv(ctx, config.GetRuntimePath()); err != nil {
		return nil, fmt.Errorf("failed to init env: %w", err)
	}

	// 1. Configuration
	appCfg := config.NewAppConfig(ctx)
	providerCfg := config.NewProviderConfig(ctx)
	pipelineCfg := config.NewPipelineConfig(ctx)
	retrievalCfg := config.NewRetrievalConfig(ctx)

	prompts, err := config.LoadPrompts(appCfg.PromptsPath)
	if err != nil {
		return nil, err
	}
	ranking, err := config.LoadRankingTable(appCfg.RankingPath)
	if err != nil {
		return nil, err
	}

	// 2. Storage
	db, err := openDB(ctx, appCfg.GetDatabasePath())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() {
		if err != nil {
			_ = db.Close()
		}
	}()
	app := &App{Config: appCfg}
	app.services = append(app.services, srv.NewNamedCleanup("sqlite", db.Close))
	repo := sqlite.NewHistoryRepo(db)

	// 3. Providers
	provider, err := llm.NewProvider(ctx, providerCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM provider: %w", err)
	}
	embedder, err := rag.NewEmbedder(providerCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	searcher := search.NewSearXNG(retrievalCfg)
	fetcher := fetch.NewFetcher(retrievalCfg)

	// 4. Pipeline
	gw := gateway.New(provider, pipelineCfg.Profiles())
	controller := pipeline.NewController(pipeline.Stages{
		Planner:     planner.New(gw, prompts, pipelineCfg.MaxTopics),
		Retriever:   retrieval.NewExecutor(searcher, fetcher, ranking, retrievalCfg),
		Validator:   validation.New(gw, prompts),
		Refiner:     planner.NewRefiner(gw, prompts, pipelineCfg.MaxTopics),
		Abstractor:  abstractor.New(gw, prompts, pipelineCfg.AbstractRetries),
		Synthesizer: synthesis.New(gw, prompts),
		Summarizer:  synthesis.NewSummarizer(gw, prompts),
	}, pipelineCfg)

	// 5. Sessions and commands
	app.Sessions = session.NewManager(controller, repo, embedder, synthesis.NewTitler(gw, prompts), pipelineCfg.SessionIdleTTL)
	app.services = append(app.services, app.Sessions)

	app.Focus = command.NewFocus()
	app.Router = command.New(command.NewCommands(app.Sessions, app.Focus))

	log.FromCtx(ctx).Debug().
		Str("provider", providerCfg.Provider).
		Str("searxng", retrievalCfg.SearxURL).
		Str("db", appCfg.GetDatabasePath()).
		Msg("chorus wired")
	return app, nil
}

// Services returns the long-running services for `chorus start`.
func (a *App) Services(ctx context.Context) ([]srv.Service, error) {
	services := append([]srv.Service(nil), a.services...)

	if a.Config.MetricsAddr != "" {
		services = append(services, metrics.NewServer(a.Config.MetricsAddr))
	}

	if a.Config.IsTelegramSelected() {
		tgCfg := config.NewTelegramConfig(ctx)
		bot, err := telegram.NewBot(ctx, tgCfg, a.Sessions, a.Router, a.Focus)
		if err != nil {
			return nil, err
		}
		services = append(services, bot)
	}

	return services, nil
}

// Close stops the in-process services of a one-shot command.
func (a *App) Close(ctx context.Context) {
	for i := len(a.services) - 1; i >= 0; i-- {
		if err := a.services[i].Shutdown(ctx); err != nil {
			log.FromCtx(ctx).Error().Err(err).Msgf("%T failed to shutdown", a.services[i])
		}
	}
}

func initEnv(ctx context.Context, runtimePath string) error {
	logger := log.FromCtx(ctx)
	envFile := filepath.Join(runtimePath, ".env")

	if _, err := os.Stat(envFile); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if err := godotenv.Load(envFile); err != nil {
		logger.Warn().Err(err).Str("path", envFile).Msg("failed to load .env file")
		return err
	}

	logger.Debug().Str("path", envFile).Msg("loaded .env file")
	return nil
}
