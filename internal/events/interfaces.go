package events

import (
	"context"

	"github.com/segmentio/kafka-go"
)

// Publisher emits loan events after a state change has been committed.
type Publisher interface {
	PublishLoanStateChanged(ctx context.Context, event *LoanStateChanged) error
	Close() error
}

// KafkaWriter wraps kafka.Writer methods for testing
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}
