package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"

	"github.com/sandevgo/tutorbot/internal/assistant"
	"github.com/sandevgo/tutorbot/internal/config"
	"github.com/sandevgo/tutorbot/internal/core"
	"github.com/sandevgo/tutorbot/internal/providers/course"
	"github.com/sandevgo/tutorbot/internal/providers/llm"
	"github.com/sandevgo/tutorbot/internal/transport/httpapi"
	"github.com/sandevgo/tutorbot/pkg/log"
	"github.com/sandevgo/tutorbot/pkg/retry"
	"github.com/sandevgo/tutorbot/pkg/srv"
)

func NewServices(ctx context.Context) []srv.Service {
	logger := log.FromCtx(ctx)
	services := make([]srv.Service, 0)

	initEnv(ctx)

	// 1. Configuration
	appCfg := config.NewAppConfig(ctx)
	serverCfg := config.NewServerConfig(ctx)
	openaiCfg := config.NewOpenAIConfig(ctx)
	courseCfg := config.NewCourseAPIConfig(ctx)

	locale := core.Locale(appCfg.Locale)

	// 2. Course platform collaborators
	courseClient := course.NewClient(courseCfg.BaseURL, courseCfg.Token, courseCfg.Timeout)

	// 3. Completion service
	completion := llm.NewOpenAIClient(llm.OpenAIClientConfig{
		APIKey:  openaiCfg.APIKey,
		Model:   openaiCfg.Model,
		BaseURL: openaiCfg.BaseURL,
	})

	// 4. Pipeline state: session store and response cache
	sessions := assistant.NewSessionStore(appCfg.SessionIdleTTL)
	services = append(services, sessions)

	cache := assistant.NewResponseCache()
	services = append(services, srv.NewCleanup(func() error {
		cache.Clear()
		return nil
	}))

	// 5. Request queue
	policy := retry.NewDefaultPolicy()
	if appCfg.SlowServiceRetry {
		policy = retry.NewSlowServicePolicy()
	}
	queue := assistant.NewRequestQueue(appCfg.MaxConcurrentRequests, policy)
	services = append(services, queue)

	// 6. Orchestrator
	orchestrator := assistant.NewOrchestrator(
		assistant.NewContentFilter(appCfg.MaxMessageLength, locale),
		assistant.NewContextAggregator(courseClient, courseClient, courseClient),
		sessions,
		cache,
		queue,
		completion,
		assistant.Options{
			Locale:       locale,
			RecentWindow: appCfg.RecentWindow,
			CacheTTL:     appCfg.CacheTTL,
			Temperature:  openaiCfg.Temperature,
			MaxTokens:    openaiCfg.MaxTokens,
		},
	)

	// 7. HTTP transport
	handler := httpapi.NewHandler(orchestrator, courseClient)
	services = append(services, httpapi.NewServer(serverCfg.Addr, handler))

	logger.Info().
		Str("addr", serverCfg.Addr).
		Str("model", openaiCfg.Model).
		Str("locale", appCfg.Locale).
		Msg("tutorbot services configured")

	return services
}

func initEnv(ctx context.Context) {
	logger := log.FromCtx(ctx)

	if _, err := os.Stat(".env"); err != nil {
		return
	}
	if err := godotenv.Load(".env"); err != nil {
		logger.Warn().Err(err).Msg("failed to load .env file")
		return
	}
	logger.Debug().Msg("loaded .env file")
}
