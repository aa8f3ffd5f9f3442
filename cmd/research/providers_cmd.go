package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"deepresearch/backend/internal/config"
	"deepresearch/backend/internal/providers"
)

func (a *app) providersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "Show which llm providers and search APIs are configured",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			return renderProviders(cmd.OutOrStdout(), cfg)
		},
	}
}

func renderProviders(w io.Writer, cfg config.Config) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PROVIDER\tSTATUS\tMODELS")
	for _, provider := range providers.SupportedProviders() {
		status := "available"
		if err := providers.CheckAvailability(cfg, provider); err != nil {
			status = err.Error()
		}
		models := ""
		if defaults, ok := config.DefaultModels(provider); ok {
			models = strings.Join([]string{defaults.QueryGenerator, defaults.Reflection, defaults.Answer}, ", ")
		}
		name := provider
		if provider == cfg.LLMProvider {
			name += " (selected)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", name, status, models)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	searchAPIs := providers.AvailableSearchAPIs(cfg)
	if len(searchAPIs) == 0 {
		_, err := fmt.Fprintln(w, "\nsearch apis: none configured (non-gemini providers answer from model knowledge)")
		return err
	}
	_, err := fmt.Fprintf(w, "\nsearch apis: %s\n", strings.Join(searchAPIs, " > "))
	return err
}
