package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	slogcontext "github.com/veqryn/slog-context"

	"github.com/suPer8Hu/tripgen/internal/store"
)

type WorkerOptions struct {
	Keys            Keys
	InputResultTTL  time.Duration
	HandleResultTTL time.Duration
	// Timeout bounds each generation call.
	Timeout time.Duration
	Now     func() time.Time
}

// Worker runs one attempt of a job. Workers hold no state of their own and
// any worker may process a job of any tier.
type Worker struct {
	store     store.Store
	broker    Broker
	gen       Generator
	keys      Keys
	inputTTL  time.Duration
	handleTTL time.Duration
	timeout   time.Duration
	now       func() time.Time
}

func NewWorker(s store.Store, b Broker, gen Generator, opts WorkerOptions) *Worker {
	if opts.InputResultTTL <= 0 {
		opts.InputResultTTL = 24 * time.Hour
	}
	if opts.HandleResultTTL <= 0 {
		opts.HandleResultTTL = time.Hour
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 90 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Worker{
		store:     s,
		broker:    b,
		gen:       gen,
		keys:      opts.Keys,
		inputTTL:  opts.InputResultTTL,
		handleTTL: opts.HandleResultTTL,
		timeout:   opts.Timeout,
		now:       opts.Now,
	}
}

// Process runs the generation call for job. A failed generation is routed
// to the next tier, or discarded after the last one, and is not returned.
// Only store failures (ErrStore) and routing failures (ErrEnqueue) are
// returned; the processing lock's TTL frees the input hash in that case.
func (w *Worker) Process(ctx context.Context, job Job) error {
	logger := slogcontext.FromCtx(ctx).With(
		"key", job.Key,
		"input_hash", job.InputHash,
		"tier", job.Tier.String(),
		"attempt", job.Attempt(),
	)
	ctx = slogcontext.NewCtx(ctx, logger)

	start := w.now()
	genCtx, cancel := context.WithTimeout(ctx, w.timeout)
	out, err := w.gen.Generate(genCtx, job.Payload)
	cancel()
	genCost := w.now().Sub(start)

	if err == nil && !json.Valid(out) {
		err = errors.New("generator returned invalid JSON")
	}
	if err != nil {
		logger.Warn("job_attempt_failed", "gen", genCost, "err", err)
		return w.route(ctx, job, err)
	}

	if err := w.complete(ctx, job, out); err != nil {
		logger.Error("job_complete_failed", "gen", genCost, "err", err)
		return err
	}

	logger.Info("job_completed", "gen", genCost, "total", w.now().Sub(job.CreatedAt))
	return nil
}

// route moves a failed job one tier down the cascade, keeping its key,
// input hash and payload.
func (w *Worker) route(ctx context.Context, job Job, cause error) error {
	logger := slogcontext.FromCtx(ctx)

	next, ok := job.Tier.Next()
	if !ok {
		logger.Warn("job_discarded", "attempts", job.Attempt(), "err", cause)
		return nil
	}

	retry := job
	retry.Tier = next
	retry.EnqueuedAt = w.now()
	if err := w.broker.Publish(ctx, retry); err != nil {
		return enqueueError("route to "+next.String(), err)
	}
	logger.Info("job_routed", "next_tier", next.String())
	return nil
}

// complete stores the result under the job key and the input hash, then
// clears the lock and marker. The result is written first so the input is
// never without both a result and a lock.
func (w *Worker) complete(ctx context.Context, job Job, out json.RawMessage) error {
	rec := ResultRecord{
		Key:         job.Key,
		InputHash:   job.InputHash,
		Result:      out,
		CompletedAt: w.now(),
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	if err := w.store.Set(ctx, w.keys.Result(job.Key), b, w.handleTTL); err != nil {
		return storeError("write result", err)
	}
	if err := w.store.Set(ctx, w.keys.Input(job.InputHash), b, w.inputTTL); err != nil {
		return storeError("write input result", err)
	}
	if _, err := w.store.CompareAndDelete(ctx, w.keys.Lock(job.InputHash), []byte(job.Key)); err != nil {
		return storeError("clear lock", err)
	}
	if err := w.store.Delete(ctx, w.keys.Processing(job.Key)); err != nil {
		return storeError("clear processing marker", err)
	}
	return nil
}
