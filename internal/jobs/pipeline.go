package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Pipeline owns one worker pool per tier.
type Pipeline struct {
	broker      Broker
	worker      *Worker
	concurrency map[Tier]int

	mu      sync.Mutex
	cancel  context.CancelFunc
	group   *errgroup.Group
	stopped bool
}

// NewPipeline builds a pipeline. Tiers missing from concurrency, or with a
// size below one, get DefaultConcurrency.
func NewPipeline(b Broker, w *Worker, concurrency map[Tier]int) *Pipeline {
	sizes := DefaultConcurrency()
	for t, n := range concurrency {
		if n > 0 {
			sizes[t] = n
		}
	}
	return &Pipeline{broker: b, worker: w, concurrency: sizes}
}

// Start subscribes every tier and starts its pool. It returns once all
// subscriptions succeeded; the pools keep running until Stop or until ctx
// is done.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.group != nil || p.stopped {
		return errors.New("jobs: pipeline already started")
	}

	ctx, cancel := context.WithCancel(ctx)
	streams := make(map[Tier]<-chan Delivery, len(Tiers))
	for _, t := range Tiers {
		ch, err := p.broker.Consume(ctx, t, p.concurrency[t])
		if err != nil {
			cancel()
			return fmt.Errorf("jobs: consume %s: %w", t, err)
		}
		streams[t] = ch
	}

	g := new(errgroup.Group)
	for _, t := range Tiers {
		pl := &pool{tier: t, size: p.concurrency[t], worker: p.worker}
		ch := streams[t]
		g.Go(func() error {
			if err := pl.run(ctx, ch); err != nil {
				// One tier down stops the rest; Wait reports why.
				cancel()
				return err
			}
			return nil
		})
	}

	p.cancel = cancel
	p.group = g
	return nil
}

// Stop stops consuming and waits for in-flight jobs to finish. It returns
// the failure of a pool that had already stopped on its own.
func (p *Pipeline) Stop() error {
	p.mu.Lock()
	cancel, g := p.cancel, p.group
	p.stopped = true
	p.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	return g.Wait()
}

// Wait blocks until every pool has exited. It returns an error wrapping
// ErrDeliveriesClosed when a tier lost its delivery stream, and nil after Stop.
func (p *Pipeline) Wait() error {
	p.mu.Lock()
	g := p.group
	p.mu.Unlock()
	if g == nil {
		return nil
	}
	return g.Wait()
}
