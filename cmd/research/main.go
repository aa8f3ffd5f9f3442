// Command research runs the web research loop from a terminal.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"deepresearch/backend/internal/config"
	"deepresearch/backend/internal/grounding"
	"deepresearch/backend/internal/logging"
	"deepresearch/backend/internal/providers"
	"deepresearch/backend/internal/research"
)

type researchRunner interface {
	Run(ctx context.Context, req research.Request, onProgress func(research.Progress)) (research.Result, error)
}

type app struct {
	loadConfig func() (config.Config, error)
	newRunner  func(ctx context.Context, cfg config.Config, logger *zap.Logger) (researchRunner, error)
	logLevel   string
	logger     *zap.Logger
}

func newApp() *app {
	return &app{
		loadConfig: config.Load,
		newRunner:  buildRunner,
	}
}

func buildRunner(ctx context.Context, cfg config.Config, logger *zap.Logger) (researchRunner, error) {
	var cache redis.UniversalClient
	if cfg.RedisURL != "" {
		client, err := grounding.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn("search cache disabled", zap.Error(err))
		} else {
			cache = client
		}
	}
	return providers.NewOrchestrator(ctx, cfg, cache, logger)
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "research",
		Short:         "Iterative web research with cited answers",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if a.logger != nil {
				return nil
			}
			logger, err := logging.New(a.logLevel, "console")
			if err != nil {
				return err
			}
			a.logger = logger
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(a.askCmd())
	root.AddCommand(a.providersCmd())
	return root
}

func main() {
	if err := newApp().rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
