package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"lifeline/pkg/logger"
	"lifeline/pkg/metrics"
	"lifeline/pkg/producer"
	"lifeline/pkg/retry"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

// Publisher emits player events. Publish must not block the request that committed the write.
type Publisher interface {
	Publish(ctx context.Context, event PlayerEvent)
	Close() error
}

// Discard drops every event. Used when no brokers are configured.
type Discard struct{}

func (Discard) Publish(context.Context, PlayerEvent) {}
func (Discard) Close() error                         { return nil }

// KafkaPublisher serializes events and publishes them keyed by SKU, so one player's events
// stay ordered within a partition.
type KafkaPublisher struct {
	logger    *logger.Logger
	producer  producer.Producer
	retryOpts retry.Options
	timeout   time.Duration
	wg        sync.WaitGroup
}

// NewKafkaPublisher creates a publisher on top of p.
func NewKafkaPublisher(l *logger.Logger, p producer.Producer) *KafkaPublisher {
	opts := retry.DefaultOptions()
	opts.MaxAttempts = 3
	opts.InitialInterval = 200 * time.Millisecond
	opts.MaxInterval = 2 * time.Second

	return &KafkaPublisher{
		logger:    l.Named("events"),
		producer:  p,
		retryOpts: opts,
		timeout:   10 * time.Second,
	}
}

// Publish hands the event to a background goroutine. Failures are logged and counted; the
// committed write is never rolled back.
func (p *KafkaPublisher) Publish(ctx context.Context, event PlayerEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("failed to serialize player event", err, zap.String("sku", event.SKU))
		metrics.EventPublishErrorsTotal.Inc()
		return
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		// Detached from the request: the response may be written before delivery.
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
		defer cancel()

		if err := p.publish(pubCtx, []byte(event.SKU), data); err != nil {
			p.logger.Error("failed to publish player event", err,
				zap.String("sku", event.SKU),
				zap.String("event_type", string(event.Type)))
			metrics.EventPublishErrorsTotal.Inc()
			return
		}
		metrics.EventsPublishedTotal.WithLabelValues(string(event.Type)).Inc()
	}()
}

func (p *KafkaPublisher) publish(ctx context.Context, key, value []byte) error {
	return retry.Do(ctx, func(int) error {
		result := <-p.producer.PublishAsync(ctx, key, value)
		return result.Error
	}, p.retryOpts)
}

// Close waits for in-flight events and closes the producer.
func (p *KafkaPublisher) Close() error {
	p.wg.Wait()
	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("failed to close producer: %w", err)
	}
	return nil
}
