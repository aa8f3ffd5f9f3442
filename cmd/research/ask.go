package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"deepresearch/backend/internal/config"
	"deepresearch/backend/internal/research"
)

type askOptions struct {
	queries  int
	loops    int
	provider string
	mode     string
	format   string
	quiet    bool
}

func (a *app) askCmd() *cobra.Command {
	opts := &askOptions{}
	cmd := &cobra.Command{
		Use:   "ask <topic>",
		Short: "Research a topic and print a cited answer",
		Long: `Plans search queries for the topic, searches, reflects on the gathered
evidence and repeats until the evidence is sufficient or the loop bound is
reached. Progress goes to stderr; the answer goes to stdout.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runAsk(cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVar(&opts.queries, "queries", 0, "number of initial search queries (default from config)")
	cmd.Flags().IntVar(&opts.loops, "loops", 0, "maximum research loops (default from config)")
	cmd.Flags().StringVar(&opts.provider, "provider", "", "llm provider: "+strings.Join(config.SupportedProviders(), ", "))
	cmd.Flags().StringVar(&opts.mode, "mode", "", "research profile: quick, standard or deep_research")
	cmd.Flags().StringVar(&opts.format, "format", formatText, "output format: text, json or yaml")
	cmd.Flags().BoolVar(&opts.quiet, "quiet", false, "do not print progress")
	return cmd
}

func (a *app) runAsk(cmd *cobra.Command, topic string, opts *askOptions) error {
	if !validFormat(opts.format) {
		return fmt.Errorf("unknown format %q", opts.format)
	}
	if opts.queries < 0 || opts.loops < 0 {
		return fmt.Errorf("--queries and --loops must not be negative")
	}

	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	if opts.provider != "" {
		cfg, err = withProvider(cfg, opts.provider)
		if err != nil {
			return err
		}
	}

	runner, err := a.newRunner(cmd.Context(), cfg, a.logger)
	if err != nil {
		return err
	}

	req := research.Request{
		Topic:             topic,
		InitialQueryCount: opts.queries,
		MaxLoops:          opts.loops,
	}
	if opts.mode != "" {
		req = research.RequestForMode(req, research.ParseMode(opts.mode))
	}

	progressOut := cmd.ErrOrStderr()
	onProgress := func(progress research.Progress) {
		if opts.quiet {
			return
		}
		fmt.Fprintln(progressOut, formatProgress(progress))
	}

	result, err := runner.Run(cmd.Context(), req, onProgress)
	if err != nil {
		return err
	}
	return renderResult(cmd.OutOrStdout(), result, opts.format)
}

// withProvider switches provider and resets role models to that provider's
// defaults.
func withProvider(cfg config.Config, provider string) (config.Config, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	models, ok := config.DefaultModels(provider)
	if !ok {
		return cfg, fmt.Errorf("provider %q is not supported (use one of %s)", provider, strings.Join(config.SupportedProviders(), ", "))
	}
	if provider != cfg.LLMProvider {
		cfg.LLMProvider = provider
		cfg.Models = models
	}
	return cfg, nil
}

func formatProgress(progress research.Progress) string {
	var b strings.Builder
	b.WriteString("› ")
	if progress.Title != "" {
		b.WriteString(progress.Title)
	} else {
		b.WriteString(progress.Message)
	}
	if progress.Loop > 0 && progress.MaxLoops > 0 {
		fmt.Fprintf(&b, " (loop %d/%d)", progress.Loop, progress.MaxLoops)
	}
	if progress.Detail != "" {
		b.WriteString(": ")
		b.WriteString(progress.Detail)
	}
	return b.String()
}
