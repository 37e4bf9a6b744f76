//go:build integration

package events

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"registrar/internal/platform/config"
	"registrar/internal/platform/kafka"
	"registrar/internal/platform/kafka/producer"
	"registrar/internal/registration/models"
	"registrar/pkg/testutil/containers"
)

func TestPublisher_DeliversToKafka(t *testing.T) {
	kc := containers.GetManager().GetKafka(t)
	ctx := context.Background()
	topic := "registrar.registrations.it"

	require.NoError(t, kafka.EnsureTopic(ctx, kc.Brokers, topic, 1, 1))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	prod, err := producer.New(config.KafkaConfig{Brokers: kc.Brokers, Acks: "all", Retries: 3}, logger)
	require.NoError(t, err)
	defer prod.Close()

	p := New(prod, WithTopic(topic), WithLogger(logger))
	p.Published(ctx, &models.Record{CourseID: "py-101", Sequence: 7, Kind: models.KindRegistration, SubmitterID: "s-7"})
	require.NoError(t, prod.Flush(ctx))

	consumer, err := kc.NewConsumer("registrar-it", topic)
	require.NoError(t, err)
	defer consumer.Close()

	rec := kc.WaitForMessage(ctx, consumer, 30*time.Second, func(r *kgo.Record) bool {
		return string(r.Key) == "py-101"
	})
	require.NotNil(t, rec, "event not delivered")

	var evt Event
	require.NoError(t, json.Unmarshal(rec.Value, &evt))
	require.Equal(t, int64(7), evt.Sequence)
	require.Equal(t, "s-7", evt.SubmitterID)
}
