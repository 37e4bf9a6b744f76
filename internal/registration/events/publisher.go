// Package events publishes registration ledger changes to Kafka.
//
// Publishing is best effort and happens after the ledger commit: the ledger is the
// source of truth and a lost event never changes a decision. Consumers dedupe on
// (course_id, sequence), which is unique per committed record.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"registrar/internal/platform/kafka/producer"
	"registrar/internal/registration/models"
	"registrar/pkg/requestcontext"
)

// Event types.
const (
	TypeRegistrationAccepted = "registration_accepted"
	TypeRegistrationCanceled = "registration_canceled"
)

// DefaultTopic carries every registration event, keyed by course.
const DefaultTopic = "registrar.registrations"

// Event is the wire payload.
type Event struct {
	EventID         string    `json:"event_id"`
	Type            string    `json:"type"`
	CourseID        string    `json:"course_id"`
	Sequence        int64     `json:"sequence"`
	SubmitterID     string    `json:"submitter_id"`
	CancelsSequence int64     `json:"cancels_sequence,omitempty"`
	ActorID         string    `json:"actor_id,omitempty"`
	AcceptedAt      time.Time `json:"accepted_at"`
	RequestID       string    `json:"request_id,omitempty"`
}

// Producer is the subset of the Kafka producer the publisher needs.
type Producer interface {
	ProduceAsync(msg *producer.Message) error
}

// Publisher converts committed records into Kafka messages.
type Publisher struct {
	producer Producer
	topic    string
	logger   *slog.Logger
}

// Option configures the Publisher.
type Option func(*Publisher)

func WithTopic(topic string) Option {
	return func(p *Publisher) {
		if topic != "" {
			p.topic = topic
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func New(producer Producer, opts ...Option) *Publisher {
	p := &Publisher{
		producer: producer,
		topic:    DefaultTopic,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Topic is where events are written.
func (p *Publisher) Topic() string { return p.topic }

// Published logs and drops failures; it never fails the caller's operation.
func (p *Publisher) Published(ctx context.Context, record *models.Record) {
	if p == nil || record == nil {
		return
	}
	msg, err := p.message(ctx, record)
	if err == nil {
		err = p.producer.ProduceAsync(msg)
	}
	if err != nil && p.logger != nil {
		p.logger.WarnContext(ctx, "registration event not published",
			"course_id", record.CourseID,
			"sequence", record.Sequence,
			"error", err,
		)
	}
}

func (p *Publisher) message(ctx context.Context, record *models.Record) (*producer.Message, error) {
	eventType := TypeRegistrationAccepted
	if record.Kind == models.KindCancel {
		eventType = TypeRegistrationCanceled
	}

	evt := Event{
		EventID:         uuid.NewString(),
		Type:            eventType,
		CourseID:        record.CourseID,
		Sequence:        record.Sequence,
		SubmitterID:     record.SubmitterID,
		CancelsSequence: record.CancelsSequence,
		ActorID:         record.ActorID,
		AcceptedAt:      record.AcceptedAt,
		RequestID:       requestcontext.RequestID(ctx),
	}
	value, err := json.Marshal(evt)
	if err != nil {
		return nil, fmt.Errorf("marshal registration event: %w", err)
	}

	return &producer.Message{
		Topic: p.topic,
		Key:   []byte(record.CourseID),
		Value: value,
		Headers: map[string]string{
			"event_type": eventType,
			"event_id":   evt.EventID,
		},
	}, nil
}
