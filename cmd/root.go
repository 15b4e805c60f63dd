// Package cmd wires the concierge CLI.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hungryunicorn/concierge/internal/config"
	"github.com/hungryunicorn/concierge/internal/nlu"
	"github.com/hungryunicorn/concierge/internal/provider"
)

var (
	cfgFile      string
	portFlag     int
	providerFlag string
	modelFlag    string

	// Package-level version info, set by Execute().
	appVersion string
	appCommit  string
	appDate    string
)

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date

	rootCmd := &cobra.Command{
		Use:   "concierge",
		Short: "Restaurant reservation assistant",
		Long:  "concierge is a conversational assistant for checking availability and managing restaurant bookings.",
		// Running concierge with no subcommand starts the server.
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default ~/.config/concierge/config.yaml)")
	rootCmd.PersistentFlags().IntVar(&portFlag, "port", 0, "override listen port")
	rootCmd.PersistentFlags().StringVarP(&providerFlag, "provider", "p", "", "override LLM provider")
	rootCmd.PersistentFlags().StringVarP(&modelFlag, "model", "m", "", "override LLM model")

	// Subcommands
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newChatCmd())
	rootCmd.AddCommand(newVersionCmd(version, commit, date))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initConfig loads configuration, applying CLI flag overrides.
func initConfig() *config.Config {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	// CLI flags override config values
	if portFlag > 0 {
		cfg.Port = portFlag
	}
	if providerFlag != "" {
		cfg.LLM.Provider = providerFlag
	}
	if modelFlag != "" {
		cfg.LLM.Model = modelFlag
	}

	return cfg
}

// buildExtractor picks the slot extractor: a model-backed one when a
// credential is configured, keyword heuristics otherwise.
func buildExtractor(cfg *config.Config) nlu.Extractor {
	if cfg.LLM.APIKey == "" {
		fmt.Fprintln(os.Stderr, "No LLM API key configured, using heuristic extraction.")
		return nlu.NewHeuristicExtractor()
	}

	var gen provider.Generator
	switch cfg.LLM.Provider {
	case "anthropic":
		gen = provider.NewAnthropicProvider(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.LLM.Model)
	default:
		gen = provider.NewOpenAIProvider(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.LLM.Model)
	}
	return nlu.NewModelExtractor(gen, 0)
}
