package config

import (
	"context"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/sauruslabs/osseus/pkg/log"
)

type AppConfig struct {
	RuntimePath string `env:"OSSEUS_RUNTIME_PATH" envDefault:".osseus"`

	// Context Management
	ContextLength     int `env:"OSSEUS_CONTEXT_LENGTH" envDefault:"8192"`
	MaxToolIterations int `env:"OSSEUS_MAX_TOOL_ITERATIONS" envDefault:"15"`

	// Token accounting: "heuristic" or "bpe"
	TokenEstimator string `env:"OSSEUS_TOKEN_ESTIMATOR" envDefault:"heuristic"`

	// Tool Flags
	EnableTools bool   `env:"OSSEUS_ENABLE_TOOLS" envDefault:"true"`
	ToolsRoot   string `env:"OSSEUS_TOOLS_ROOT"` // filesystem tools base, cwd when empty
}

func NewAppConfig(ctx context.Context) *AppConfig {
	c := &AppConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse App config")
	}
	return c
}

func (c AppConfig) GetRuntimePath() string {
	return c.RuntimePath
}

func (c AppConfig) GetSystemPath() string {
	return filepath.Join(c.RuntimePath, "SYSTEM.md")
}

func (c AppConfig) GetSkillsPath() string {
	return filepath.Join(c.RuntimePath, "skills")
}

func (c AppConfig) GetMCPConfigPath() string {
	return filepath.Join(c.RuntimePath, "mcp_config.json")
}
