package main

import (
	"fmt"
	"os"

	"github.com/apex/log"
	"github.com/apex/log/handlers/json"
	"github.com/apex/log/handlers/text"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"harvest_service/internal/config"
)

func main() {
	// .env is optional; real deployments set the environment directly
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Warning: failed to load .env: %v\n", err)
	}

	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := config.Load()

	cmd := &cobra.Command{
		Use:           "harvest",
		Short:         "Harvest recommendation engine",
		Long:          "Combines satellite, weather, market and post-harvest rule data into explainable harvest and sell advice.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging(cfg.LogLevel, cfg.LogFormat)
		},
	}

	cmd.PersistentFlags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug|info|warn|error)")
	cmd.PersistentFlags().StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format (text|json)")

	cmd.AddCommand(newServeCommand(cfg))
	cmd.AddCommand(newRecommendCommand(cfg))
	cmd.AddCommand(newRulesCommand(cfg))
	cmd.AddCommand(newPrefetchCommand(cfg))
	return cmd
}

func setupLogging(level, format string) error {
	switch format {
	case "json":
		log.SetHandler(json.New(os.Stderr))
	case "text", "":
		log.SetHandler(text.New(os.Stderr))
	default:
		return fmt.Errorf("invalid log format %q: must be text or json", format)
	}
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	log.SetLevel(lvl)
	return nil
}
