package producer

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
)

// ProduceResult holds the delivery outcome of one message.
type ProduceResult struct {
	Error error
}

// Producer publishes keyed messages to Kafka.
type Producer interface {
	// PublishAsync starts the write and returns immediately. The channel yields exactly one
	// result once the broker acknowledged or rejected the message.
	PublishAsync(ctx context.Context, key, value []byte) <-chan ProduceResult

	Close() error
}

// Config holds Kafka producer configuration
type Config struct {
	Brokers      []string
	Topic        string
	BatchTimeout time.Duration
}

// KafkaProducer implements Producer with kafka-go. Messages are partitioned by key hash so all
// events of one player land on the same partition in order.
type KafkaProducer struct {
	writer *kafka.Writer
}

// NewKafkaProducer creates a new KafkaProducer instance
func NewKafkaProducer(cfg Config) *KafkaProducer {
	batchTimeout := cfg.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = 10 * time.Millisecond
	}

	return &KafkaProducer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: batchTimeout,
		},
	}
}

// PublishAsync writes synchronously on its own goroutine so the caller gets a real delivery
// result rather than kafka-go's fire-and-forget async mode.
func (p *KafkaProducer) PublishAsync(ctx context.Context, key, value []byte) <-chan ProduceResult {
	resultChan := make(chan ProduceResult, 1)

	go func() {
		defer close(resultChan)
		err := p.writer.WriteMessages(ctx, kafka.Message{Key: key, Value: value})
		resultChan <- ProduceResult{Error: err}
	}()

	return resultChan
}

// Close flushes pending batches and closes the writer.
func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}
