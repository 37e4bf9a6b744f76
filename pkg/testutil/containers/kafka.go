//go:build integration

package containers

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/redpanda"
	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaContainer wraps a Redpanda broker, which speaks the Kafka protocol and starts faster.
type KafkaContainer struct {
	Container testcontainers.Container
	Brokers   string
}

// NewKafkaContainer starts a new Redpanda container.
func NewKafkaContainer(t *testing.T) *KafkaContainer {
	t.Helper()

	ctx := context.Background()

	container, err := redpanda.Run(ctx,
		"docker.redpanda.com/redpandadata/redpanda:v24.2.4",
		redpanda.WithAutoCreateTopics(),
	)
	if err != nil {
		t.Fatalf("failed to start redpanda container: %v", err)
	}

	broker, err := container.KafkaSeedBroker(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get kafka seed broker: %v", err)
	}

	return &KafkaContainer{
		Container: container,
		Brokers:   broker,
	}
}

// NewConsumer creates a franz-go consumer reading topics from the start.
func (k *KafkaContainer) NewConsumer(groupID string, topics ...string) (*kgo.Client, error) {
	return kgo.NewClient(
		kgo.SeedBrokers(k.Brokers),
		kgo.ConsumerGroup(groupID),
		kgo.ConsumeTopics(topics...),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
		kgo.DisableAutoCommit(),
	)
}

// WaitForMessage polls until a record matches or the timeout elapses. Returns nil on timeout.
func (k *KafkaContainer) WaitForMessage(ctx context.Context, client *kgo.Client, timeout time.Duration, match func(*kgo.Record) bool) *kgo.Record {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for {
		if ctx.Err() != nil {
			return nil
		}
		fetches := client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil
		}

		var found *kgo.Record
		fetches.EachRecord(func(r *kgo.Record) {
			if found == nil && match(r) {
				found = r
			}
		})
		if found != nil {
			return found
		}
	}
}
