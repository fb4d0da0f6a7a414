// Package memqueue is an in-process jobs.Broker: one FIFO per tier, with the
// tier's delay applied before a published job becomes visible. It backs the
// standalone command and the pipeline tests.
package memqueue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/suPer8Hu/tripgen/internal/jobs"
)

var ErrClosed = errors.New("memqueue: broker closed")

type queue struct {
	ready  []jobs.Job
	notify chan struct{}
}

func (q *queue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Broker is safe for concurrent use.
type Broker struct {
	mu     sync.Mutex
	delays map[jobs.Tier]time.Duration
	queues map[jobs.Tier]*queue
	timers map[*time.Timer]struct{}
	closed bool
	done   chan struct{}

	onPublish func(jobs.Job)
}

type Option func(*Broker)

// WithPublishHook makes fn observe every accepted publish. fn runs after
// the broker's lock is released and may call back into the broker.
func WithPublishHook(fn func(jobs.Job)) Option {
	return func(b *Broker) { b.onPublish = fn }
}

// New returns a broker with the given per-tier delays; missing tiers get
// no delay.
func New(delays map[jobs.Tier]time.Duration, opts ...Option) *Broker {
	b := &Broker{
		delays: make(map[jobs.Tier]time.Duration, len(jobs.Tiers)),
		queues: make(map[jobs.Tier]*queue, len(jobs.Tiers)),
		timers: make(map[*time.Timer]struct{}),
		done:   make(chan struct{}),
	}
	for _, t := range jobs.Tiers {
		b.delays[t] = delays[t]
		b.queues[t] = &queue{notify: make(chan struct{}, 1)}
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Broker) Publish(ctx context.Context, job jobs.Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := b.enqueue(job); err != nil {
		return err
	}
	if b.onPublish != nil {
		b.onPublish(job)
	}
	return nil
}

func (b *Broker) enqueue(job jobs.Job) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	q, ok := b.queues[job.Tier]
	if !ok {
		return fmt.Errorf("memqueue: unknown tier %s", job.Tier)
	}

	delay := b.delays[job.Tier]
	if delay <= 0 {
		q.ready = append(q.ready, job)
		q.signal()
		return nil
	}

	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.timers, t)
		if b.closed {
			return
		}
		q.ready = append(q.ready, job)
		q.signal()
	})
	b.timers[t] = struct{}{}
	return nil
}

// Consume hands out jobs one at a time over an unbuffered channel, so the
// number of jobs held by consumers never exceeds the number of receivers.
// prefetch is ignored.
func (b *Broker) Consume(ctx context.Context, tier jobs.Tier, prefetch int) (<-chan jobs.Delivery, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	q, ok := b.queues[tier]
	if !ok {
		return nil, fmt.Errorf("memqueue: unknown tier %s", tier)
	}

	out := make(chan jobs.Delivery)
	go func() {
		defer close(out)
		for {
			job, ok := b.pop(q)
			if !ok {
				select {
				case <-ctx.Done():
					return
				case <-b.done:
					return
				case <-q.notify:
					continue
				}
			}

			select {
			case out <- jobs.NewDelivery(job, nil, nil):
			case <-ctx.Done():
				b.unpop(q, job)
				return
			case <-b.done:
				return
			}
		}
	}()
	return out, nil
}

// Pending reports how many visible jobs wait on tier.
func (b *Broker) Pending(tier jobs.Tier) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if q, ok := b.queues[tier]; ok {
		return len(q.ready)
	}
	return 0
}

func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for t := range b.timers {
		t.Stop()
	}
	b.timers = nil
	close(b.done)
	return nil
}

func (b *Broker) pop(q *queue) (jobs.Job, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(q.ready) == 0 {
		return jobs.Job{}, false
	}
	job := q.ready[0]
	q.ready = q.ready[1:]
	return job, true
}

// unpop returns a job taken by a consumer that stopped before handing it out.
func (b *Broker) unpop(q *queue, job jobs.Job) {
	b.mu.Lock()
	defer b.mu.Unlock()
	q.ready = append([]jobs.Job{job}, q.ready...)
	q.signal()
}

var _ jobs.Broker = (*Broker)(nil)
