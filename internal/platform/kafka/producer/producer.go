package producer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"registrar/internal/platform/config"
)

// Message represents a message to be published to Kafka.
type Message struct {
	Topic   string
	Key     []byte
	Value   []byte
	Headers map[string]string
}

// Producer wraps the franz-go client with a simpler interface.
type Producer struct {
	client *kgo.Client
	logger *slog.Logger
	mu     sync.RWMutex
	closed bool
}

// New creates a new Kafka producer.
func New(cfg config.KafkaConfig, logger *slog.Logger) (*Producer, error) {
	if cfg.Brokers == "" {
		return nil, fmt.Errorf("kafka brokers not configured")
	}

	var acks kgo.Acks
	switch cfg.Acks {
	case "0":
		acks = kgo.NoAck()
	case "1":
		acks = kgo.LeaderAck()
	default:
		acks = kgo.AllISRAcks()
	}

	opts := []kgo.Opt{
		kgo.SeedBrokers(strings.Split(cfg.Brokers, ",")...),
		kgo.RequiredAcks(acks),
		kgo.RecordRetries(cfg.Retries),
		kgo.ProducerLinger(5 * time.Millisecond),
		kgo.AllowAutoTopicCreation(),
	}
	// Idempotent writes require acks=all.
	if cfg.Acks == "0" || cfg.Acks == "1" {
		opts = append(opts, kgo.DisableIdempotentWrite())
	}
	if cfg.DeliveryTimeout > 0 {
		opts = append(opts, kgo.RecordDeliveryTimeout(cfg.DeliveryTimeout))
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	return &Producer{
		client: client,
		logger: logger,
	}, nil
}

func toRecord(msg *Message) *kgo.Record {
	var headers []kgo.RecordHeader
	for k, v := range msg.Headers {
		headers = append(headers, kgo.RecordHeader{Key: k, Value: []byte(v)})
	}
	return &kgo.Record{
		Topic:   msg.Topic,
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: headers,
	}
}

// Produce sends a message to Kafka synchronously.
// It waits for the delivery report before returning.
func (p *Producer) Produce(ctx context.Context, msg *Message) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return fmt.Errorf("producer is closed")
	}

	if err := p.client.ProduceSync(ctx, toRecord(msg)).FirstErr(); err != nil {
		return fmt.Errorf("produce message: %w", err)
	}
	return nil
}

// ProduceAsync buffers a message for background delivery. Delivery failures are logged.
func (p *Producer) ProduceAsync(msg *Message) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return fmt.Errorf("producer is closed")
	}

	p.client.Produce(context.Background(), toRecord(msg), func(r *kgo.Record, err error) {
		if err != nil && p.logger != nil {
			p.logger.Error("kafka delivery failed",
				"topic", r.Topic,
				"partition", r.Partition,
				"error", err,
			)
		}
	})
	return nil
}

// Flush waits for buffered messages to be delivered.
func (p *Producer) Flush(ctx context.Context) error {
	return p.client.Flush(ctx)
}

// Close flushes remaining messages and shuts down the producer.
func (p *Producer) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := p.client.Flush(ctx); err != nil && p.logger != nil {
		p.logger.Warn("kafka producer closed with unflushed messages",
			"error", err,
		)
	}

	p.client.Close()
	return nil
}

// Healthy checks if the producer can communicate with brokers.
func (p *Producer) Healthy(ctx context.Context) bool {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return false
	}
	return p.client.Ping(ctx) == nil
}

// Len returns the number of messages in the producer buffer.
func (p *Producer) Len() int {
	return int(p.client.BufferedProduceRecords())
}

// NewNoopProducer creates a producer that discards all messages.
// Used when Kafka is not configured.
func NewNoopProducer() *NoopProducer {
	return &NoopProducer{}
}

// NoopProducer is a producer that discards all messages.
type NoopProducer struct{}

func (p *NoopProducer) Produce(ctx context.Context, msg *Message) error { return nil }

func (p *NoopProducer) ProduceAsync(msg *Message) error { return nil }

func (p *NoopProducer) Flush(ctx context.Context) error { return nil }

func (p *NoopProducer) Close() error { return nil }

func (p *NoopProducer) Healthy(ctx context.Context) bool { return true }

func (p *NoopProducer) Len() int { return 0 }
