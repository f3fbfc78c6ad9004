// Package publisher streams security audit events to a Kafka topic for
// out-of-process consumers (SIEM, alerting). Delivery is strictly
// best-effort: events queue in a bounded ring buffer, a background flusher
// produces them in batches, and the oldest are dropped under pressure.
package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"palisade/internal/audit"
)

const (
	DefaultTopic         = "audit.security-events"
	DefaultBufferSize    = 4096
	DefaultFlushInterval = time.Second
	DefaultCloseTimeout  = 5 * time.Second

	flushBatchSize = 256
	produceTimeout = 5 * time.Second
)

type Config struct {
	Brokers       []string
	Topic         string
	BufferSize    int
	FlushInterval time.Duration
	CloseTimeout  time.Duration
}

// Publisher owns the Kafka client and the buffer between it and callers.
// Records are keyed by event ID so replays land on the same partition.
type Publisher struct {
	client        *kgo.Client
	topic         string
	buffer        *ringBuffer
	logger        *slog.Logger
	metrics       *Metrics
	flushInterval time.Duration
	closeTimeout  time.Duration

	notify    chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func WithMetrics(metrics *Metrics) Option {
	return func(p *Publisher) {
		p.metrics = metrics
	}
}

// New connects to the brokers, ensures the topic exists, and starts the
// background flusher. With no brokers configured it returns (nil, nil): a
// nil Publisher is valid and publishes nothing.
func New(ctx context.Context, cfg Config, opts ...Option) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, nil
	}
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}
	if cfg.CloseTimeout <= 0 {
		cfg.CloseTimeout = DefaultCloseTimeout
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.ProducerLinger(50*time.Millisecond),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	if err := ensureTopic(ctx, client, cfg.Topic); err != nil {
		client.Close()
		return nil, err
	}

	p := &Publisher{
		client:        client,
		topic:         cfg.Topic,
		buffer:        newRingBuffer(cfg.BufferSize),
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		flushInterval: cfg.FlushInterval,
		closeTimeout:  cfg.CloseTimeout,
		notify:        make(chan struct{}, 1),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.wg.Add(1)
	go p.flushLoop()
	return p, nil
}

// Publish enqueues a security event for delivery. It never blocks: when the
// buffer is full the oldest event is dropped and counted.
func (p *Publisher) Publish(event audit.Event) {
	if p == nil {
		return
	}
	if dropped := p.buffer.enqueue(event); dropped && p.metrics != nil {
		p.metrics.RecordDrop()
	}
	if p.metrics != nil {
		p.metrics.SetBufferDepth(p.buffer.len())
	}
	select {
	case p.notify <- struct{}{}:
	default:
	}
}

// Close stops the flusher, draining buffered events first, then closes the
// client. The drain waits at most the configured close timeout.
func (p *Publisher) Close() {
	if p == nil {
		return
	}
	p.closeOnce.Do(func() {
		close(p.done)

		drained := make(chan struct{})
		go func() {
			p.wg.Wait()
			close(drained)
		}()
		select {
		case <-drained:
		case <-time.After(p.closeTimeout):
			p.logger.Warn("security event drain timed out",
				"remaining", p.buffer.len(),
			)
		}
		p.client.Close()
	})
}

func (p *Publisher) flushLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			p.flush(context.Background())
			return
		case <-p.notify:
			p.flush(context.Background())
		case <-ticker.C:
			p.flush(context.Background())
		}
	}
}

// flush drains the buffer in batches. A failed produce drops the batch after
// logging; buffered delivery is best-effort and never retries into a backlog.
func (p *Publisher) flush(ctx context.Context) {
	for {
		batch := p.buffer.dequeueBatch(flushBatchSize)
		if p.metrics != nil {
			p.metrics.SetBufferDepth(p.buffer.len())
		}
		if len(batch) == 0 {
			return
		}

		records := make([]*kgo.Record, 0, len(batch))
		for _, event := range batch {
			payload, err := json.Marshal(event)
			if err != nil {
				p.logger.WarnContext(ctx, "failed to encode security event",
					"error", err,
					"event_id", event.ID.String(),
				)
				continue
			}
			records = append(records, &kgo.Record{
				Topic: p.topic,
				Key:   []byte(event.ID.String()),
				Value: payload,
			})
		}
		if len(records) == 0 {
			continue
		}

		produceCtx, cancel := context.WithTimeout(ctx, produceTimeout)
		err := p.client.ProduceSync(produceCtx, records...).FirstErr()
		cancel()
		if err != nil {
			p.logger.WarnContext(ctx, "failed to publish security events",
				"error", err,
				"count", len(records),
			)
			if p.metrics != nil {
				p.metrics.RecordPublishFailures(len(records))
			}
			continue
		}
		if p.metrics != nil {
			p.metrics.RecordPublished(len(records))
		}
	}
}

// ensureTopic creates the topic when it does not exist yet. An existing
// topic is fine; anything else fails startup.
func ensureTopic(ctx context.Context, client *kgo.Client, topic string) error {
	adm := kadm.NewClient(client)
	responses, err := adm.CreateTopics(ctx, 1, 1, nil, topic)
	if err != nil {
		return fmt.Errorf("create topic %q: %w", topic, err)
	}
	for _, response := range responses {
		if response.Err != nil && !errors.Is(response.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %q: %w", topic, response.Err)
		}
	}
	return nil
}
