package jobs

import (
	"context"
	"fmt"
	"sync"

	slogcontext "github.com/veqryn/slog-context"
)

// pool drains one tier's deliveries with a fixed number of workers.
type pool struct {
	tier   Tier
	size   int
	worker *Worker
}

// run blocks until deliveries is closed and every in-flight job finished.
// It returns ErrDeliveriesClosed when the stream ended while ctx was live.
// Jobs run on a context detached from ctx so shutdown does not abort a
// generation call; the worker's timeout still bounds it.
func (p *pool) run(ctx context.Context, deliveries <-chan Delivery) error {
	logger := slogcontext.FromCtx(ctx).With("tier", p.tier.String())
	jobCtx := context.WithoutCancel(ctx)

	var wg sync.WaitGroup
	wg.Add(p.size)
	for i := 0; i < p.size; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range deliveries {
				if err := p.worker.Process(jobCtx, d.Job); err != nil {
					logger.Error("job failed", "worker", workerID, "key", d.Job.Key, "err", err)
					if err := d.Reject(); err != nil {
						logger.Error("reject failed", "worker", workerID, "key", d.Job.Key, "err", err)
					}
					continue
				}
				if err := d.Ack(); err != nil {
					logger.Error("ack failed", "worker", workerID, "key", d.Job.Key, "err", err)
				}
			}
		}(i)
	}

	logger.Info("pool started", "concurrency", p.size)
	wg.Wait()
	if ctx.Err() == nil {
		logger.Error("pool stopped: delivery stream closed")
		return fmt.Errorf("jobs: %s: %w", p.tier, ErrDeliveriesClosed)
	}
	logger.Info("pool stopped")
	return nil
}
