package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/suPer8Hu/tripgen/internal/jobs"
)

type Options struct {
	URL string
	// Queue is the base name; tier and dead-letter queues derive from it.
	Queue  string
	Delays map[jobs.Tier]time.Duration
	Logger *slog.Logger
}

// Broker maps the retry cascade onto RabbitMQ:
//
//	{queue}                       primary work queue
//	{queue}.tier1, {queue}.tier2  retry work queues
//	{queue}.tierN.wait.{ms}ms     per-tier delay queue: message TTL, then
//	                              dead-lettered into the tier's work queue
//	{queue}.dlq                   rejected deliveries from any work queue
type Broker struct {
	conn   *amqp.Connection
	queue  string
	delays map[jobs.Tier]time.Duration
	logger *slog.Logger

	pubMu sync.Mutex
	pub   *amqp.Channel

	mu        sync.Mutex
	consumers []*amqp.Channel
}

func WorkQueue(base string, t jobs.Tier) string {
	if t == jobs.TierPrimary {
		return base
	}
	return base + "." + t.String()
}

// DelayQueue embeds the delay in the name: RabbitMQ refuses to redeclare a
// queue with a different x-message-ttl.
func DelayQueue(base string, t jobs.Tier, d time.Duration) string {
	return fmt.Sprintf("%s.wait.%dms", WorkQueue(base, t), d.Milliseconds())
}

func DeadLetterQueue(base string) string {
	return base + ".dlq"
}

func NewBroker(opts Options) (*Broker, error) {
	if opts.Queue == "" {
		return nil, errors.New("rabbitmq: queue name is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	delays := make(map[jobs.Tier]time.Duration, len(jobs.Tiers))
	for _, t := range jobs.Tiers {
		delays[t] = opts.Delays[t]
	}

	conn, err := amqp.Dial(opts.URL)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	if err := declareTopology(ch, opts.Queue, delays); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	return &Broker{
		conn:   conn,
		pub:    ch,
		queue:  opts.Queue,
		delays: delays,
		logger: opts.Logger,
	}, nil
}

func declareTopology(ch *amqp.Channel, base string, delays map[jobs.Tier]time.Duration) error {
	dlq := DeadLetterQueue(base)
	if _, err := ch.QueueDeclare(
		dlq,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false,
		nil,
	); err != nil {
		return fmt.Errorf("declare %s: %w", dlq, err)
	}

	for _, t := range jobs.Tiers {
		work := WorkQueue(base, t)

		// work queue: dead-letter to DLQ on reject/nack(requeue=false)
		if _, err := ch.QueueDeclare(
			work,
			true,
			false,
			false,
			false,
			amqp.Table{
				"x-dead-letter-exchange":    "",
				"x-dead-letter-routing-key": dlq,
			},
		); err != nil {
			return fmt.Errorf("declare %s: %w", work, err)
		}

		d := delays[t]
		if d <= 0 {
			continue
		}

		// delay queue: message TTL -> dead-letter into the work queue
		wait := DelayQueue(base, t, d)
		if _, err := ch.QueueDeclare(
			wait,
			true,
			false,
			false,
			false,
			amqp.Table{
				"x-message-ttl":             d.Milliseconds(),
				"x-dead-letter-exchange":    "",
				"x-dead-letter-routing-key": work,
			},
		); err != nil {
			return fmt.Errorf("declare %s: %w", wait, err)
		}
	}
	return nil
}

// Publish sends job to its tier, through the tier's delay queue when the
// tier has a delay.
func (b *Broker) Publish(ctx context.Context, job jobs.Job) error {
	if !job.Tier.Valid() {
		return fmt.Errorf("rabbitmq: invalid tier %d", int(job.Tier))
	}
	body, err := json.Marshal(job)
	if err != nil {
		return err
	}

	routingKey := WorkQueue(b.queue, job.Tier)
	if d := b.delays[job.Tier]; d > 0 {
		routingKey = DelayQueue(b.queue, job.Tier, d)
	}

	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	b.pubMu.Lock()
	defer b.pubMu.Unlock()
	return b.pub.PublishWithContext(cctx,
		"",         // default exchange
		routingKey, // routing key = queue
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    job.Key,
			Headers: amqp.Table{
				"x-tier":    job.Tier.String(),
				"x-attempt": int32(job.Attempt()),
			},
			Body:      body,
			Timestamp: time.Now(),
		},
	)
}

// Consume opens a dedicated channel for tier with prefetch as its QoS.
// Undecodable messages are rejected straight to the DLQ. When ctx is done
// the consumer is cancelled and prefetched, undelivered messages are
// requeued; the channel itself stays open until Close so in-flight
// deliveries can still be acknowledged.
func (b *Broker) Consume(ctx context.Context, tier jobs.Tier, prefetch int) (<-chan jobs.Delivery, error) {
	if prefetch <= 0 {
		prefetch = 1
	}
	ch, err := b.conn.Channel()
	if err != nil {
		return nil, err
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("qos: %w", err)
	}

	queue := WorkQueue(b.queue, tier)
	tag := "tripgen." + tier.String() + "." + uuid.NewString()
	msgs, err := ch.Consume(queue, tag, false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("consume %s: %w", queue, err)
	}

	b.mu.Lock()
	b.consumers = append(b.consumers, ch)
	b.mu.Unlock()

	logger := b.logger.With("queue", queue)
	out := make(chan jobs.Delivery)

	go func() {
		defer close(out)

		drain := func() {
			_ = ch.Cancel(tag, false)
			for d := range msgs {
				_ = d.Nack(false, true)
			}
		}

		for {
			select {
			case <-ctx.Done():
				drain()
				return

			case d, ok := <-msgs:
				if !ok {
					logger.Warn("delivery channel closed")
					return
				}

				var job jobs.Job
				if err := json.Unmarshal(d.Body, &job); err != nil || job.Key == "" {
					logger.Error("bad message", "message_id", d.MessageId, "err", err)
					_ = d.Nack(false, false)
					continue
				}

				delivery := jobs.NewDelivery(job,
					func() error { return d.Ack(false) },
					func() error { return d.Nack(false, false) },
				)
				select {
				case out <- delivery:
				case <-ctx.Done():
					_ = d.Nack(false, true)
					drain()
					return
				}
			}
		}
	}()

	return out, nil
}

func (b *Broker) Close() error {
	b.mu.Lock()
	consumers := b.consumers
	b.consumers = nil
	b.mu.Unlock()

	for _, ch := range consumers {
		_ = ch.Close()
	}
	if b.pub != nil {
		_ = b.pub.Close()
	}
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}

var _ jobs.Broker = (*Broker)(nil)
