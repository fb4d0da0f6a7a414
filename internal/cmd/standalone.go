package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/suPer8Hu/tripgen/internal/config"
)

func NewStandaloneCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "standalone",
		Short: "Run the HTTP gateways and the worker pools in one process",
		Long: "Runs api and worker together. The store and queue default to in-process\n" +
			"backends; use --store pebble to keep results across restarts.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cfg, logger, err := setup(cmd, true)
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

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return serveHTTP(gctx, cfg, logger, s, b) })
			g.Go(func() error {
				failed := make(chan error, 1)
				go func() { failed <- p.Wait() }()
				select {
				case err := <-failed:
					return err
				case <-gctx.Done():
				}
				stopPipeline(logger, p, cfg.GenerationTimeout)
				return nil
			})
			return g.Wait()
		},
	}
	c.Flags().String("addr", ":8080", "HTTP listen address (overrides HTTP_ADDR)")
	c.Flags().String("store", config.BackendMemory, "Store backend: memory|pebble|redis")
	c.Flags().String("queue", config.BackendMemory, "Queue backend: memory|rabbitmq")
	return c
}
