package memqueue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suPer8Hu/tripgen/internal/jobs"
)

func receive(t *testing.T, ch <-chan jobs.Delivery, within time.Duration) jobs.Delivery {
	t.Helper()
	select {
	case d, ok := <-ch:
		require.True(t, ok, "delivery channel closed")
		return d
	case <-time.After(within):
		t.Fatalf("no delivery within %s", within)
		return jobs.Delivery{}
	}
}

func TestPrimaryIsFIFO(t *testing.T) {
	b := New(nil)
	t.Cleanup(func() { _ = b.Close() })
	ctx := context.Background()

	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, b.Publish(ctx, jobs.Job{Key: k, Tier: jobs.TierPrimary}))
	}

	ch, err := b.Consume(ctx, jobs.TierPrimary, 1)
	require.NoError(t, err)
	for _, want := range []string{"a", "b", "c"} {
		d := receive(t, ch, time.Second)
		assert.Equal(t, want, d.Job.Key)
		require.NoError(t, d.Ack())
	}
}

func TestRetryTierDelaysVisibility(t *testing.T) {
	delay := 150 * time.Millisecond
	b := New(map[jobs.Tier]time.Duration{jobs.TierRetry1: delay})
	t.Cleanup(func() { _ = b.Close() })
	ctx := context.Background()

	ch, err := b.Consume(ctx, jobs.TierRetry1, 1)
	require.NoError(t, err)

	published := time.Now()
	require.NoError(t, b.Publish(ctx, jobs.Job{Key: "late", Tier: jobs.TierRetry1}))

	select {
	case <-ch:
		t.Fatal("job visible before its delay")
	case <-time.After(delay / 2):
	}

	d := receive(t, ch, 2*time.Second)
	assert.Equal(t, "late", d.Job.Key)
	assert.GreaterOrEqual(t, time.Since(published), delay)
}

func TestTiersAreIndependent(t *testing.T) {
	b := New(nil)
	t.Cleanup(func() { _ = b.Close() })
	ctx := context.Background()

	require.NoError(t, b.Publish(ctx, jobs.Job{Key: "p", Tier: jobs.TierPrimary}))
	require.NoError(t, b.Publish(ctx, jobs.Job{Key: "r2", Tier: jobs.TierRetry2}))

	assert.Equal(t, 1, b.Pending(jobs.TierPrimary))
	assert.Equal(t, 0, b.Pending(jobs.TierRetry1))
	assert.Equal(t, 1, b.Pending(jobs.TierRetry2))

	ch, err := b.Consume(ctx, jobs.TierRetry2, 1)
	require.NoError(t, err)
	assert.Equal(t, "r2", receive(t, ch, time.Second).Job.Key)
}

func TestConsumeStopsOnContext(t *testing.T) {
	b := New(nil)
	t.Cleanup(func() { _ = b.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := b.Consume(ctx, jobs.TierPrimary, 1)
	require.NoError(t, err)

	cancel()
	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
}

func TestCloseDropsPendingDelayedJobs(t *testing.T) {
	b := New(map[jobs.Tier]time.Duration{jobs.TierRetry1: 50 * time.Millisecond})
	ctx := context.Background()

	require.NoError(t, b.Publish(ctx, jobs.Job{Key: "x", Tier: jobs.TierRetry1}))
	require.NoError(t, b.Close())
	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, 0, b.Pending(jobs.TierRetry1))
	require.ErrorIs(t, b.Publish(ctx, jobs.Job{Key: "y"}), ErrClosed)
	_, err := b.Consume(ctx, jobs.TierPrimary, 1)
	require.ErrorIs(t, err, ErrClosed)
}

func TestPublishHookMayUseBroker(t *testing.T) {
	var b *Broker
	pending := make(chan int, 1)
	b = New(nil, WithPublishHook(func(j jobs.Job) {
		pending <- b.Pending(j.Tier)
	}))
	t.Cleanup(func() { _ = b.Close() })

	done := make(chan error, 1)
	go func() { done <- b.Publish(context.Background(), jobs.Job{Key: "a", Tier: jobs.TierPrimary}) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("publish hook deadlocked on the broker")
	}
	assert.Equal(t, 1, <-pending)
}

func TestPublishHookSkipsRejectedJobs(t *testing.T) {
	calls := 0
	b := New(nil, WithPublishHook(func(jobs.Job) { calls++ }))
	require.NoError(t, b.Close())

	require.ErrorIs(t, b.Publish(context.Background(), jobs.Job{Key: "a", Tier: jobs.TierPrimary}), ErrClosed)
	assert.Zero(t, calls)
}
