package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/suPer8Hu/tripgen/internal/ai"
	"github.com/suPer8Hu/tripgen/internal/config"
	"github.com/suPer8Hu/tripgen/internal/itinerary"
	"github.com/suPer8Hu/tripgen/internal/jobs"
	"github.com/suPer8Hu/tripgen/internal/store"
	"github.com/suPer8Hu/tripgen/internal/store/memqueue"
	"github.com/suPer8Hu/tripgen/internal/store/memstore"
	"github.com/suPer8Hu/tripgen/internal/store/pebblestore"
	"github.com/suPer8Hu/tripgen/internal/store/rabbitmq"
	"github.com/suPer8Hu/tripgen/internal/store/redisstore"
)

func keys(cfg config.Config) jobs.Keys {
	return jobs.Keys{Prefix: cfg.KeyPrefix}
}

func openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	var (
		s   store.Store
		err error
	)
	switch cfg.StoreBackend {
	case config.BackendRedis:
		s = redisstore.New(redisstore.Options{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	case config.BackendPebble:
		s, err = pebblestore.Open(pebblestore.Options{DataDir: cfg.PebbleDir, SweepInterval: time.Minute})
		if err != nil {
			return nil, fmt.Errorf("open pebble store: %w", err)
		}
	case config.BackendMemory:
		s = memstore.New()
	default:
		return nil, fmt.Errorf("unsupported store backend %q", cfg.StoreBackend)
	}

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.Ping(pctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("%s store: %w", cfg.StoreBackend, err)
	}
	return s, nil
}

func delays(cfg config.Config) map[jobs.Tier]time.Duration {
	return map[jobs.Tier]time.Duration{
		jobs.TierPrimary: 0,
		jobs.TierRetry1:  cfg.Tier1Delay,
		jobs.TierRetry2:  cfg.Tier2Delay,
	}
}

func openBroker(cfg config.Config, logger *slog.Logger) (jobs.Broker, error) {
	switch cfg.QueueBackend {
	case config.BackendRabbitMQ:
		b, err := rabbitmq.NewBroker(rabbitmq.Options{
			URL:    cfg.RabbitURL,
			Queue:  cfg.RabbitQueue,
			Delays: delays(cfg),
			Logger: logger.With("component", "rabbitmq"),
		})
		if err != nil {
			return nil, fmt.Errorf("rabbitmq: %w", err)
		}
		return b, nil
	case config.BackendMemory:
		return memqueue.New(delays(cfg)), nil
	default:
		return nil, fmt.Errorf("unsupported queue backend %q", cfg.QueueBackend)
	}
}

func newGenerator(ctx context.Context, cfg config.Config) (*itinerary.Generator, error) {
	reg := ai.DefaultRegistry(ai.Settings{
		OllamaBaseURL:     cfg.OllamaBaseURL,
		OllamaModel:       cfg.OllamaModel,
		OpenRouterBaseURL: cfg.OpenRouterBaseURL,
		OpenRouterAPIKey:  cfg.OpenRouterAPIKey,
		OpenRouterModel:   cfg.OpenRouterModel,
		OpenRouterSiteURL: cfg.OpenRouterSiteURL,
		OpenRouterAppName: cfg.OpenRouterAppName,
	})
	provider, err := reg.Get(ctx, cfg.AIProvider, "")
	if err != nil {
		return nil, err
	}
	return itinerary.NewGenerator(provider), nil
}

func newGateway(cfg config.Config, s store.Store, b jobs.Broker) (*jobs.Gateway, *jobs.Lookup) {
	gw := jobs.NewGateway(s, b, jobs.GatewayOptions{Keys: keys(cfg), LockTTL: cfg.ProcessingLockTTL})
	return gw, jobs.NewLookup(s, keys(cfg))
}

func newPipeline(cfg config.Config, s store.Store, b jobs.Broker, gen jobs.Generator) *jobs.Pipeline {
	w := jobs.NewWorker(s, b, gen, jobs.WorkerOptions{
		Keys:            keys(cfg),
		InputResultTTL:  cfg.InputResultTTL,
		HandleResultTTL: cfg.HandleResultTTL,
		Timeout:         cfg.GenerationTimeout,
	})
	return jobs.NewPipeline(b, w, map[jobs.Tier]int{
		jobs.TierPrimary: cfg.PrimaryConcurrency,
		jobs.TierRetry1:  cfg.Tier1Concurrency,
		jobs.TierRetry2:  cfg.Tier2Concurrency,
	})
}

// stopPipeline waits for in-flight jobs, at most one generation timeout
// plus a grace period.
func stopPipeline(logger *slog.Logger, p *jobs.Pipeline, timeout time.Duration) {
	done := make(chan error, 1)
	go func() { done <- p.Stop() }()

	select {
	case err := <-done:
		if err != nil {
			logger.Error("pipeline stop", "err", err)
		}
	case <-time.After(timeout + 5*time.Second):
		logger.Warn("pipeline stop timed out; in-flight jobs are left to the lock TTL")
	}
}

// closeAll closes in order and reports every failure.
func closeAll(closers ...interface{ Close() error }) error {
	var errs []error
	for _, c := range closers {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
