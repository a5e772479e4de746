package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sauruslabs/osseus/internal/backend"
	"github.com/sauruslabs/osseus/internal/capability"
	"github.com/sauruslabs/osseus/internal/config"
	"github.com/sauruslabs/osseus/internal/core"
	"github.com/sauruslabs/osseus/internal/engine"
	"github.com/sauruslabs/osseus/internal/skills"
	"github.com/sauruslabs/osseus/internal/tools"
	"github.com/sauruslabs/osseus/pkg/log"
	"github.com/sauruslabs/osseus/pkg/srv"
)

// app bundles everything a command needs: the engine, the conversation
// record, and the running services.
type app struct {
	cfg      *config.AppConfig
	engine   *engine.Engine
	conv     *engine.Conversation
	selector *capability.Selector
	router   *backend.Router
	services srv.Group
}

func (a *app) Shutdown(ctx context.Context) {
	a.services.Shutdown(ctx)
}

func newApp(ctx context.Context) *app {
	logger := log.FromCtx(ctx)

	if err := initEnv(ctx, config.GetRuntimePath()); err != nil {
		logger.Fatal().Err(err).Msg("failed to init env")
	}

	// 1. Configuration
	appCfg := config.NewAppConfig(ctx)
	remoteCfg := config.NewRemoteConfig(ctx)
	localCfg := config.NewLocalConfig(ctx)

	a := &app{cfg: appCfg}

	// 2. Backends and routing
	var backends []backend.Backend
	if remoteCfg.Enabled() {
		backends = append(backends, backend.NewRemote(backend.RemoteConfig{
			Name:         "remote",
			BaseURL:      remoteCfg.BaseURL,
			APIKey:       remoteCfg.APIKey,
			DefaultModel: remoteCfg.Model,
			IsDefault:    true,
			Models:       remoteCfg.Models,
		}))
	}
	backends = append(backends, backend.NewLocal(backend.LocalConfig{
		Name:      "local",
		BaseURL:   localCfg.BaseURL,
		GateLimit: localCfg.GateLimit,
	}))
	a.router = backend.NewRouter(backends...)

	// 3. Tools
	var executor *tools.Executor
	if appCfg.EnableTools {
		executor = initTools(ctx, appCfg, a)
	}

	// 4. Skills and capability disclosure
	registry, err := skills.Discover(appCfg.GetSkillsPath())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to discover skills")
	}
	skillInfos := registry.List()

	var toolList []core.Tool
	if executor != nil {
		toolList, err = executor.ListTools(ctx)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to list tools")
		}
	}
	if executor != nil || len(skillInfos) > 0 {
		a.selector = capability.NewSelector(toolList, skillInfos, registry, nil)
	}

	// 5. Engine
	a.conv = engine.NewConversation(loadSystemPrompt(appCfg))

	var est engine.Estimator
	if appCfg.TokenEstimator == "bpe" {
		bpe, err := engine.NewBPEEstimator()
		if err != nil {
			logger.Warn().Err(err).Msg("bpe estimator unavailable, using heuristic")
		} else {
			est = bpe
		}
	}

	var execOpt core.ToolExecutor
	if executor != nil {
		execOpt = executor
	}
	a.engine = engine.New(engine.Options{
		Router:            a.router,
		Executor:          execOpt,
		Selector:          a.selector,
		Budgeter:          engine.NewBudgeter(est),
		ContextLength:     appCfg.ContextLength,
		MaxToolIterations: appCfg.MaxToolIterations,
		OnTurn:            a.conv.Append,
	})

	return a
}

func initTools(ctx context.Context, cfg *config.AppConfig, a *app) *tools.Executor {
	logger := log.FromCtx(ctx)

	executor := tools.NewExecutor()
	executor.RegisterSet(tools.NewFetch())
	executor.RegisterSet(tools.NewFilesystem(cfg.ToolsRoot))

	bridge, err := tools.NewBridge(cfg.GetMCPConfigPath())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load mcp config")
	}
	if err := a.services.Start(ctx, bridge); err != nil {
		logger.Fatal().Err(err).Msg("failed to start mcp servers")
	}
	executor.AttachBridge(bridge)

	return executor
}

func loadSystemPrompt(cfg *config.AppConfig) string {
	data, err := os.ReadFile(cfg.GetSystemPath())
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
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
