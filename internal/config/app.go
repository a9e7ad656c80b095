package config

import (
	"context"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/sandevgo/tutorbot/pkg/log"
)

type AppConfig struct {
	Locale           string `env:"ASSISTANT_LOCALE" envDefault:"ru"`
	MaxMessageLength int    `env:"ASSISTANT_MAX_MESSAGE_LENGTH" envDefault:"2000"`

	// Conversation context
	RecentWindow   int           `env:"ASSISTANT_RECENT_WINDOW" envDefault:"5"`
	SessionIdleTTL time.Duration `env:"ASSISTANT_SESSION_IDLE_TTL" envDefault:"2h"`

	// Response cache
	CacheTTL time.Duration `env:"ASSISTANT_CACHE_TTL" envDefault:"30m"`

	// Completion-service scheduling
	MaxConcurrentRequests int64 `env:"ASSISTANT_MAX_CONCURRENT" envDefault:"3"`
	SlowServiceRetry      bool  `env:"ASSISTANT_SLOW_SERVICE_RETRY" envDefault:"false"`
}

func NewAppConfig(ctx context.Context) *AppConfig {
	c := &AppConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse App config")
	}
	return c
}
