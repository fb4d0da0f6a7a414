package jobs_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/suPer8Hu/tripgen/internal/jobs"
	"github.com/suPer8Hu/tripgen/internal/store"
	"github.com/suPer8Hu/tripgen/internal/store/memqueue"
	"github.com/suPer8Hu/tripgen/internal/store/memstore"
)

type harness struct {
	store    *memstore.Store
	broker   *memqueue.Broker
	gateway  *jobs.Gateway
	lookup   *jobs.Lookup
	pipeline *jobs.Pipeline
}

type harnessConfig struct {
	gen     jobs.Generator
	delays  map[jobs.Tier]time.Duration
	lockTTL time.Duration
}

func startHarness(t *testing.T, cfg harnessConfig) *harness {
	t.Helper()
	if cfg.lockTTL == 0 {
		cfg.lockTTL = time.Minute
	}
	s := memstore.New()
	b := memqueue.New(cfg.delays)
	w := jobs.NewWorker(s, b, cfg.gen, jobs.WorkerOptions{
		Keys:            testKeys,
		InputResultTTL:  time.Hour,
		HandleResultTTL: time.Hour,
		Timeout:         5 * time.Second,
	})
	p := jobs.NewPipeline(b, w, nil)
	require.NoError(t, p.Start(context.Background()))
	t.Cleanup(func() {
		_ = p.Stop()
		_ = b.Close()
	})

	return &harness{
		store:    s,
		broker:   b,
		gateway:  jobs.NewGateway(s, b, jobs.GatewayOptions{Keys: testKeys, LockTTL: cfg.lockTTL}),
		lookup:   jobs.NewLookup(s, testKeys),
		pipeline: p,
	}
}

func (h *harness) status(t *testing.T, handle string) jobs.Status {
	t.Helper()
	out, err := h.lookup.Poll(context.Background(), handle)
	require.NoError(t, err)
	return out.Status
}

func TestPipeline_FreshSubmissionCompletes(t *testing.T) {
	gen := &stubGenerator{fn: succeedWith(`{"summary":"Paris"}`)}
	h := startHarness(t, harnessConfig{gen: gen})
	ctx := context.Background()

	out, err := h.gateway.Submit(ctx, paris)
	require.NoError(t, err)
	require.Equal(t, jobs.StatusQueued, out.Status)

	require.Eventually(t, func() bool {
		return h.status(t, out.Handle) == jobs.StatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	again, err := h.gateway.Submit(ctx, paris)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusCompleted, again.Status)
	assert.Equal(t, out.Handle, again.Handle)
	require.NotNil(t, again.Record)
	assert.JSONEq(t, `{"summary":"Paris"}`, string(again.Record.Result))
	assert.EqualValues(t, 1, gen.calls.Load())
}

func TestPipeline_DuplicateWhileInFlight(t *testing.T) {
	release := make(chan struct{})
	gen := &stubGenerator{fn: func(ctx context.Context, _ int32) (json.RawMessage, error) {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return json.RawMessage(`{"summary":"slow"}`), nil
	}}
	h := startHarness(t, harnessConfig{gen: gen})
	ctx := context.Background()

	first, err := h.gateway.Submit(ctx, paris)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return gen.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	second, err := h.gateway.Submit(ctx, paris)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusProcessing, second.Status)
	assert.Equal(t, first.Handle, second.Handle)
	assert.Equal(t, jobs.StatusProcessing, h.status(t, first.Handle))

	close(release)
	require.Eventually(t, func() bool {
		return h.status(t, first.Handle) == jobs.StatusCompleted
	}, 2*time.Second, 10*time.Millisecond)
	assert.EqualValues(t, 1, gen.calls.Load())
}

func TestPipeline_AllAttemptsFailThenDiscard(t *testing.T) {
	const (
		tier1   = 60 * time.Millisecond
		tier2   = 120 * time.Millisecond
		lockTTL = 800 * time.Millisecond
	)
	gen := &stubGenerator{fn: alwaysFail}
	h := startHarness(t, harnessConfig{
		gen:     gen,
		delays:  map[jobs.Tier]time.Duration{jobs.TierRetry1: tier1, jobs.TierRetry2: tier2},
		lockTTL: lockTTL,
	})
	ctx := context.Background()

	out, err := h.gateway.Submit(ctx, paris)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return gen.calls.Load() == 3 }, 2*time.Second, 5*time.Millisecond)

	times := gen.callTimes()
	require.Len(t, times, 3)
	assert.GreaterOrEqual(t, times[1].Sub(times[0]), tier1)
	assert.GreaterOrEqual(t, times[2].Sub(times[1]), tier2)

	// Discarded but still inside the lock TTL: indistinguishable from running.
	assert.Equal(t, jobs.StatusProcessing, h.status(t, out.Handle))

	require.Eventually(t, func() bool {
		return h.status(t, out.Handle) == jobs.StatusNotFound
	}, 3*time.Second, 20*time.Millisecond)

	_, err = h.store.Get(ctx, testKeys.Input(inputHash(paris)))
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.EqualValues(t, jobs.MaxAttempts, gen.calls.Load(), "no fourth attempt")

	// The expired lock frees the input for a fresh submission.
	again, err := h.gateway.Submit(ctx, paris)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusQueued, again.Status)
	assert.NotEqual(t, out.Handle, again.Handle)
}

func TestPipeline_RecoversOnFirstRetry(t *testing.T) {
	const tier1 = 100 * time.Millisecond
	gen := &stubGenerator{fn: func(_ context.Context, call int32) (json.RawMessage, error) {
		if call == 1 {
			return nil, errors.New("upstream: 503")
		}
		return json.RawMessage(`{"summary":"second time lucky"}`), nil
	}}
	h := startHarness(t, harnessConfig{
		gen:    gen,
		delays: map[jobs.Tier]time.Duration{jobs.TierRetry1: tier1, jobs.TierRetry2: time.Hour},
	})
	ctx := context.Background()

	start := time.Now()
	out, err := h.gateway.Submit(ctx, paris)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return h.status(t, out.Handle) == jobs.StatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	assert.GreaterOrEqual(t, time.Since(start), tier1)
	assert.EqualValues(t, 2, gen.calls.Load())

	polled, err := h.lookup.Poll(ctx, out.Handle)
	require.NoError(t, err)
	assert.JSONEq(t, `{"summary":"second time lucky"}`, string(polled.Record.Result))
}

func TestPipeline_StopWaitsForInFlightJob(t *testing.T) {
	started := make(chan struct{})
	gen := &stubGenerator{fn: func(ctx context.Context, _ int32) (json.RawMessage, error) {
		close(started)
		time.Sleep(100 * time.Millisecond)
		return json.RawMessage(`{"summary":"finished during shutdown"}`), nil
	}}
	h := startHarness(t, harnessConfig{gen: gen})

	out, err := h.gateway.Submit(context.Background(), paris)
	require.NoError(t, err)
	<-started

	require.NoError(t, h.pipeline.Stop())
	assert.Equal(t, jobs.StatusCompleted, h.status(t, out.Handle))
}

func TestPipeline_StartTwice(t *testing.T) {
	h := startHarness(t, harnessConfig{gen: &stubGenerator{fn: succeedWith(`{}`)}})
	require.Error(t, h.pipeline.Start(context.Background()))
}

func TestPipeline_ConsumeFailureCancelsStart(t *testing.T) {
	b := new(mockBroker)
	primary := make(chan jobs.Delivery)
	b.On("Consume", mock.Anything, jobs.TierPrimary, 2).Return((<-chan jobs.Delivery)(primary), nil)
	b.On("Consume", mock.Anything, jobs.TierRetry1, 1).Return(nil, errors.New("queue not found"))

	w := jobs.NewWorker(memstore.New(), b, &stubGenerator{fn: succeedWith(`{}`)}, jobs.WorkerOptions{Keys: testKeys})
	err := jobs.NewPipeline(b, w, nil).Start(context.Background())
	require.ErrorContains(t, err, "tier1")
	b.AssertNotCalled(t, "Consume", mock.Anything, jobs.TierRetry2, mock.Anything)
}

func TestPipeline_LostDeliveryStreamIsReported(t *testing.T) {
	h := startHarness(t, harnessConfig{gen: &stubGenerator{fn: succeedWith(`{}`)}})

	// The broker going away ends every tier's stream without Stop.
	require.NoError(t, h.broker.Close())

	done := make(chan error, 1)
	go func() { done <- h.pipeline.Wait() }()
	select {
	case err := <-done:
		require.ErrorIs(t, err, jobs.ErrDeliveriesClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline kept running after its broker closed")
	}
}

func TestPipeline_WaitAfterStopIsClean(t *testing.T) {
	h := startHarness(t, harnessConfig{gen: &stubGenerator{fn: succeedWith(`{}`)}})
	require.NoError(t, h.pipeline.Stop())
	require.NoError(t, h.pipeline.Wait())
}
