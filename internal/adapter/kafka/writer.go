// Package kafka publishes accepted closures to a Kafka topic so downstream
// consumers see the same stream the webhook destinations do.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/closure-relay-service/internal/domain"
)

// StreamItem is one accepted closure with its region assignment.
type StreamItem struct {
	Event  domain.ClosureEvent
	Region string
	Env    string
}

// Writer produces closure events to the configured topic.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the closure stream topic.
func NewWriter(brokers []string, topic string, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// streamRecord is the published form of an accepted closure.
type streamRecord struct {
	domain.ClosureEvent

	Region     string    `json:"region"`
	AcceptedAt time.Time `json:"acceptedAt"`
}

// PublishAccepted writes the batch of newly accepted closures in a single
// WriteMessages call. Each message is keyed by closure id so downstream
// compaction keeps the latest state per closure.
func (w *Writer) PublishAccepted(ctx context.Context, items []StreamItem) error {
	if len(items) == 0 {
		return nil
	}
	now := domain.Now().UTC()

	msgs := make([]kafkago.Message, len(items))
	for i, it := range items {
		msg, err := serializeItem(it, now)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write closure stream: %w", err)
	}
	w.logger.Debug("closure stream published", "messages", len(msgs))
	return nil
}

func serializeItem(it StreamItem, now time.Time) (kafkago.Message, error) {
	rec := streamRecord{ClosureEvent: it.Event, Region: it.Region, AcceptedAt: now}
	data, err := json.Marshal(rec)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize closure %s: %w", it.Event.ID, err)
	}
	return kafkago.Message{
		Key:   []byte(it.Event.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "region", Value: []byte(it.Region)},
			{Key: "env", Value: []byte(it.Env)},
		},
	}, nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}
