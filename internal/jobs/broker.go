package jobs

import (
	"context"
	"encoding/json"
	"time"
)

// Broker moves jobs between the gateway and the tier worker pools. Each
// tier has its own FIFO queue; jobs published to a retry tier only become
// visible to consumers after that tier's delay.
type Broker interface {
	// Publish enqueues job on the queue of job.Tier.
	Publish(ctx context.Context, job Job) error

	// Consume streams deliveries for tier until ctx is done, then closes
	// the channel. prefetch bounds unacknowledged deliveries where the
	// transport supports it.
	Consume(ctx context.Context, tier Tier, prefetch int) (<-chan Delivery, error)

	Close() error
}

// Delivery is one job handed to a consumer. Exactly one of Ack or Reject
// must be called.
type Delivery struct {
	Job    Job
	ack    func() error
	reject func() error
}

func NewDelivery(job Job, ack, reject func() error) Delivery {
	return Delivery{Job: job, ack: ack, reject: reject}
}

// Ack removes the job from its queue.
func (d Delivery) Ack() error {
	if d.ack == nil {
		return nil
	}
	return d.ack()
}

// Reject drops the job without redelivery; transports with a dead-letter
// queue move it there.
func (d Delivery) Reject() error {
	if d.reject == nil {
		return nil
	}
	return d.reject()
}

// Generator is the external generation call. A returned error, including a
// context deadline, is a failed attempt.
type Generator interface {
	Generate(ctx context.Context, payload json.RawMessage) (json.RawMessage, error)
}

type GeneratorFunc func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error)

func (f GeneratorFunc) Generate(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	return f(ctx, payload)
}

// DefaultDelays are the visibility delays of the retry tiers.
func DefaultDelays() map[Tier]time.Duration {
	return map[Tier]time.Duration{
		TierPrimary: 0,
		TierRetry1:  5 * time.Second,
		TierRetry2:  10 * time.Second,
	}
}

// DefaultConcurrency is the worker pool size of each tier.
func DefaultConcurrency() map[Tier]int {
	return map[Tier]int{
		TierPrimary: 2,
		TierRetry1:  1,
		TierRetry2:  1,
	}
}
