// Package cmd holds the tripgen command tree.
package cmd

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	slogcontext "github.com/veqryn/slog-context"

	"github.com/suPer8Hu/tripgen/internal/config"
	"github.com/suPer8Hu/tripgen/internal/logging"
)

// NewRootCommand returns the tripgen CLI with its api, worker and
// standalone subcommands.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "tripgen",
		Short:         "Asynchronous itinerary generation service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("log-level", "", "Log level: debug|info|warn|error (overrides LOG_LEVEL)")
	root.PersistentFlags().String("log-format", "", "Log format: json|text (overrides LOG_FORMAT)")

	root.AddCommand(NewAPICommand(), NewWorkerCommand(), NewStandaloneCommand())
	return root
}

// setup loads the configuration, applies flag overrides and builds the
// process logger. The returned context carries the logger.
func setup(cmd *cobra.Command, standalone bool) (context.Context, config.Config, *slog.Logger, error) {
	cfg := config.Load()
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.LogLevel = v
	}
	if v, _ := cmd.Flags().GetString("log-format"); v != "" {
		cfg.LogFormat = v
	}
	if f := cmd.Flags().Lookup("addr"); f != nil && f.Changed {
		cfg.HTTPAddr = f.Value.String()
	}
	if f := cmd.Flags().Lookup("store"); f != nil && (f.Changed || os.Getenv("STORE_BACKEND") == "") {
		cfg.StoreBackend = f.Value.String()
	}
	if f := cmd.Flags().Lookup("queue"); f != nil && (f.Changed || os.Getenv("QUEUE_BACKEND") == "") {
		cfg.QueueBackend = f.Value.String()
	}

	logger, err := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, cfg, nil, err
	}
	slog.SetDefault(logger)

	if err := cfg.Validate(standalone); err != nil {
		return nil, cfg, nil, err
	}
	return slogcontext.NewCtx(cmd.Context(), logger), cfg, logger, nil
}
