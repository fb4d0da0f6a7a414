package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func NewWorkerCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the primary and retry tier worker pools",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cfg, logger, err := setup(cmd, false)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			gen, err := newGenerator(ctx, cfg)
			if err != nil {
				return err
			}
			s, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			b, err := openBroker(cfg, logger)
			if err != nil {
				_ = s.Close()
				return err
			}
			defer func() {
				if err := closeAll(b, s); err != nil {
					logger.Error("shutdown", "err", err)
				}
			}()

			p := newPipeline(cfg, s, b, gen)
			if err := p.Start(ctx); err != nil {
				return err
			}
			logger.Info("worker started",
				"queue", cfg.RabbitQueue,
				"primary", cfg.PrimaryConcurrency,
				"tier1", cfg.Tier1Concurrency,
				"tier2", cfg.Tier2Concurrency,
				"provider", cfg.AIProvider,
			)

			failed := make(chan error, 1)
			go func() { failed <- p.Wait() }()

			select {
			case err := <-failed:
				return err
			case <-ctx.Done():
			}
			logger.Info("worker shutting down")
			stopPipeline(logger, p, cfg.GenerationTimeout)
			return nil
		},
	}
}
