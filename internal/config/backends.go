package config

import (
	"context"

	"github.com/caarlos0/env/v11"
	"github.com/sauruslabs/osseus/pkg/log"
)

// RemoteConfig configures the OpenAI-compatible remote backend.
type RemoteConfig struct {
	BaseURL string   `env:"OSSEUS_REMOTE_BASE_URL"`
	APIKey  string   `env:"OSSEUS_REMOTE_API_KEY"`
	Model   string   `env:"OSSEUS_REMOTE_MODEL" envDefault:"gpt-4o-mini"`
	Models  []string `env:"OSSEUS_REMOTE_MODELS" envSeparator:","`
}

func NewRemoteConfig(ctx context.Context) *RemoteConfig {
	c := &RemoteConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse Remote config")
	}
	return c
}

func (c RemoteConfig) Enabled() bool {
	return c.BaseURL != ""
}

// LocalConfig configures the llama-server/Ollama-style local backend.
type LocalConfig struct {
	BaseURL   string `env:"OSSEUS_LOCAL_BASE_URL" envDefault:"http://127.0.0.1:11434"`
	GateLimit int    `env:"OSSEUS_LOCAL_GATE_LIMIT" envDefault:"1"`
}

func NewLocalConfig(ctx context.Context) *LocalConfig {
	c := &LocalConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse Local config")
	}
	return c
}
