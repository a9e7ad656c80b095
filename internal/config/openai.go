package config

import (
	"context"

	"github.com/caarlos0/env/v11"

	"github.com/sandevgo/tutorbot/pkg/log"
)

type OpenAIConfig struct {
	APIKey      string  `env:"OPENAI_API_KEY,required,notEmpty"`
	Model       string  `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	BaseURL     string  `env:"OPENAI_BASE_URL"` // any OpenAI-compatible endpoint
	Temperature float32 `env:"OPENAI_TEMPERATURE" envDefault:"0.7"`
	MaxTokens   int     `env:"OPENAI_MAX_TOKENS" envDefault:"1024"`
}

func NewOpenAIConfig(ctx context.Context) *OpenAIConfig {
	c := &OpenAIConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse OpenAI config")
	}
	return c
}
