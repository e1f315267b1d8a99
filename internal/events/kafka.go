package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"airwatch/internal/config"
	"airwatch/internal/logger"
	"airwatch/internal/metrics"
)

// Publisher errors
var (
	ErrPublisherClosed = errors.New("publisher is closed")
)

// KafkaPublisher queues alert transitions on a channel and drains them with a
// background worker that batches writes to a Kafka topic. Events are keyed by
// serial number so transitions for one device stay in partition order.
type KafkaPublisher struct {
	cfg    config.KafkaConfig
	writer *kafka.Writer
	queue  chan AlertEvent
	closed atomic.Bool
	wg     sync.WaitGroup

	published atomic.Uint64
	dropped   atomic.Uint64
}

// NewKafkaPublisher creates a publisher and starts its drain worker.
func NewKafkaPublisher(cfg config.KafkaConfig) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("at least one broker is required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("topic is required")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 100 * time.Millisecond
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}

	p := &KafkaPublisher{
		cfg: cfg,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{}, // Partition by key
			BatchSize:    cfg.BatchSize,
			BatchTimeout: cfg.BatchTimeout,
			WriteTimeout: cfg.WriteTimeout,
			RequiredAcks: kafka.RequireOne,
			MaxAttempts:  cfg.MaxRetries + 1,
			Async:        false, // Sync writes inside the worker for reliability
		},
		queue: make(chan AlertEvent, cfg.QueueSize),
	}

	metrics.AlertEventQueueCapacity.Set(float64(cfg.QueueSize))

	p.wg.Add(1)
	go p.drain()

	return p, nil
}

// Publish enqueues an event without blocking. Events are dropped when the
// queue is full; the engine never waits on the event stream.
func (p *KafkaPublisher) Publish(ev AlertEvent) {
	if p.closed.Load() {
		return
	}

	select {
	case p.queue <- ev:
		metrics.AlertEventQueueSize.Set(float64(len(p.queue)))
	default:
		p.dropped.Add(1)
		metrics.AlertEventsDroppedTotal.Inc()
		log := logger.WithComponent("events")
		log.Warn().
			Str("serial_number", ev.SerialNumber).
			Str("transition", string(ev.Transition)).
			Msg("alert event queue full, dropping event")
	}
}

// drain batches queued events and publishes them to Kafka.
func (p *KafkaPublisher) drain() {
	defer p.wg.Done()

	log := logger.WithComponent("events")
	log.Info().
		Int("batch_size", p.cfg.BatchSize).
		Dur("batch_timeout", p.cfg.BatchTimeout).
		Msg("alert event worker started")
	defer log.Info().Msg("alert event worker stopped")

	batch := make([]AlertEvent, 0, p.cfg.BatchSize)
	timer := time.NewTimer(p.cfg.BatchTimeout)
	defer timer.Stop()

	for {
		select {
		case ev, ok := <-p.queue:
			if !ok {
				// Channel closed, flush and exit
				if len(batch) > 0 {
					p.publishBatch(batch)
				}
				return
			}

			batch = append(batch, ev)
			if len(batch) >= p.cfg.BatchSize {
				p.publishBatch(batch)
				batch = batch[:0]
				timer.Reset(p.cfg.BatchTimeout)
			}

		case <-timer.C:
			if len(batch) > 0 {
				p.publishBatch(batch)
				batch = batch[:0]
			}
			timer.Reset(p.cfg.BatchTimeout)
		}
	}
}

// publishBatch writes one batch with exponential backoff retry.
func (p *KafkaPublisher) publishBatch(batch []AlertEvent) {
	log := logger.WithComponent("events")
	start := time.Now()

	messages := make([]kafka.Message, 0, len(batch))
	for _, ev := range batch {
		value, err := json.Marshal(ev)
		if err != nil {
			p.dropped.Add(1)
			metrics.AlertEventsDroppedTotal.Inc()
			log.Error().Err(err).Int64("alert_id", ev.AlertID).Msg("failed to serialize alert event")
			continue
		}
		messages = append(messages, kafka.Message{
			Key:   []byte(ev.SerialNumber),
			Value: value,
			Time:  ev.EmittedAt,
		})
	}
	if len(messages) == 0 {
		return
	}

	err := p.writeWithRetry(messages)
	metrics.PublishBatchDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		p.dropped.Add(uint64(len(messages)))
		metrics.AlertEventsDroppedTotal.Add(float64(len(messages)))
		log.Error().
			Err(err).
			Int("batch_size", len(messages)).
			Msg("failed to publish alert event batch")
		return
	}

	p.published.Add(uint64(len(messages)))
	metrics.AlertEventsPublishedTotal.Add(float64(len(messages)))
	metrics.AlertEventQueueSize.Set(float64(len(p.queue)))
	log.Debug().
		Int("batch_size", len(messages)).
		Dur("duration", time.Since(start)).
		Msg("alert event batch published")
}

func (p *KafkaPublisher) writeWithRetry(messages []kafka.Message) error {
	log := logger.WithComponent("events")
	backoff := p.cfg.RetryBackoff
	if backoff <= 0 {
		backoff = 100 * time.Millisecond
	}

	var lastErr error
	for attempt := 0; attempt <= p.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			log.Warn().
				Int("attempt", attempt).
				Int("batch_size", len(messages)).
				Dur("backoff", backoff).
				Msg("retrying alert event publish")
			metrics.KafkaPublishRetries.Inc()
			time.Sleep(backoff)
			backoff *= 2
		}

		ctx, cancel := context.WithTimeout(context.Background(), p.cfg.WriteTimeout)
		err := p.writer.WriteMessages(ctx, messages...)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
	}

	return fmt.Errorf("failed after %d attempts: %w", p.cfg.MaxRetries+1, lastErr)
}

// Close stops the worker after flushing queued events and closes the writer.
func (p *KafkaPublisher) Close() error {
	if p.closed.Swap(true) {
		return nil // Already closed
	}

	close(p.queue)
	p.wg.Wait()

	return p.writer.Close()
}

// Stats returns publisher counters.
func (p *KafkaPublisher) Stats() PublisherStats {
	return PublisherStats{
		Published: p.published.Load(),
		Dropped:   p.dropped.Load(),
	}
}

// PublisherStats holds publisher metrics.
type PublisherStats struct {
	Published uint64
	Dropped   uint64
}
