package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/sandevgo/tutorbot/internal/config"
	"github.com/sandevgo/tutorbot/pkg/log"
)

var (
	debug bool
)

var rootCmd = &cobra.Command{
	Use:   "tutor",
	Short: "TutorBot — AI tutoring service for the 90-day course",
	Long:  `TutorBot turns learner chat messages into moderated, context-enriched completion-service calls.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", config.IsDebug(), "enable debug logging")
}

func setupLogger(ctx context.Context) (context.Context, func()) {
	isDebug := debug || config.IsDebug()
	return log.NewContextWithLogger(ctx, isDebug)
}
