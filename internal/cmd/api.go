package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/suPer8Hu/tripgen/internal/config"
	"github.com/suPer8Hu/tripgen/internal/httpapi"
	"github.com/suPer8Hu/tripgen/internal/httpapi/handlers"
	"github.com/suPer8Hu/tripgen/internal/jobs"
	"github.com/suPer8Hu/tripgen/internal/store"
)

func NewAPICommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "api",
		Short: "Serve the submit and poll endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cfg, logger, err := setup(cmd, false)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

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

			return serveHTTP(ctx, cfg, logger, s, b)
		},
	}
	c.Flags().String("addr", ":8080", "HTTP listen address (overrides HTTP_ADDR)")
	return c
}

// serveHTTP runs the HTTP gateways until ctx is done, then drains open
// requests.
func serveHTTP(ctx context.Context, cfg config.Config, logger *slog.Logger, s store.Store, b jobs.Broker) error {
	gin.SetMode(gin.ReleaseMode)
	gw, lookup := newGateway(cfg, s, b)
	router := httpapi.NewRouter(handlers.NewHandler(gw, lookup, s), logger)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("http shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
