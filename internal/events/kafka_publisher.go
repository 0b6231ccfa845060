package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

type KafkaPublisher struct {
	logger *slog.Logger
	writer KafkaWriter // Interface for testability
	topic  string
}

// NewKafkaPublisher builds a synchronous producer keyed by loan ID, so events
// of one loan land on one partition in commit order.
func NewKafkaPublisher(logger *slog.Logger, brokers []string, topic string, writeTimeout time.Duration) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are not configured")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka loan event topic is not configured")
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		WriteTimeout:           writeTimeout,
		AllowAutoTopicCreation: true,
	}

	return newKafkaPublisher(logger, writer, topic), nil
}

func newKafkaPublisher(logger *slog.Logger, writer KafkaWriter, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		logger: logger,
		writer: writer,
		topic:  topic,
	}
}

func (p *KafkaPublisher) PublishLoanStateChanged(ctx context.Context, event *LoanStateChanged) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal loan event: %w", err)
	}

	key := event.LoanID.String()
	msg := kafka.Message{
		Key:   []byte(key),
		Value: value,
		Headers: []kafka.Header{
			{Key: "reason", Value: []byte(event.Reason)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish loan event",
			"topic", p.topic,
			"loan_id", key,
			"reason", event.Reason,
			"error", err,
		)
		return fmt.Errorf("failed to publish loan event to %s: %w", p.topic, err)
	}

	p.logger.Debug("Published loan event",
		"topic", p.topic,
		"loan_id", key,
		"reason", event.Reason,
	)
	return nil
}

func (p *KafkaPublisher) Close() error {
	p.logger.Info("Closing kafka loan event publisher", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka writer for topic %s: %w", p.topic, err)
	}
	return nil
}
