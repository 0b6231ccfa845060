package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segyhp/loan-ledger/internal/domain"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockKafkaWriter mocks KafkaWriter interface
type MockKafkaWriter struct {
	mock.Mock
}

func (m *MockKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *MockKafkaWriter) Close() error {
	args := m.Called()
	return args.Error(0)
}

func testEvent() *LoanStateChanged {
	next := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	return NewLoanStateChanged(uuid.New(), ReasonRepaymentAdded, domain.DerivedState{
		RemainingAmount: decimal.NewFromInt(9000),
		Status:          domain.LoanStatusActive,
		NextPaymentDate: &next,
		OverdueAmount:   decimal.Zero,
	}, time.Date(2024, 4, 2, 10, 0, 0, 0, time.UTC))
}

func TestKafkaPublisher_PublishLoanStateChanged(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	topic := "loan-state-changed"
	ctx := context.Background()

	t.Run("SuccessfulPublish", func(t *testing.T) {
		mockWriter := new(MockKafkaWriter)
		publisher := newKafkaPublisher(logger, mockWriter, topic)
		event := testEvent()

		mockWriter.On("WriteMessages", ctx, mock.MatchedBy(func(msgs []kafka.Message) bool {
			if len(msgs) != 1 {
				return false
			}
			var decoded LoanStateChanged
			if err := json.Unmarshal(msgs[0].Value, &decoded); err != nil {
				return false
			}
			return string(msgs[0].Key) == event.LoanID.String() &&
				decoded.EventID == event.EventID &&
				decoded.Reason == ReasonRepaymentAdded &&
				decoded.State.RemainingAmount.Equal(decimal.NewFromInt(9000))
		})).Return(nil).Once()

		require.NoError(t, publisher.PublishLoanStateChanged(ctx, event))
		mockWriter.AssertExpectations(t)
	})

	t.Run("WriterError", func(t *testing.T) {
		mockWriter := new(MockKafkaWriter)
		publisher := newKafkaPublisher(logger, mockWriter, topic)
		writerError := errors.New("kafka write error")

		mockWriter.On("WriteMessages", ctx, mock.AnythingOfType("[]kafka.Message")).Return(writerError).Once()

		err := publisher.PublishLoanStateChanged(ctx, testEvent())
		require.Error(t, err)
		assert.ErrorIs(t, err, writerError)
		assert.Contains(t, err.Error(), topic)
		mockWriter.AssertExpectations(t)
	})
}

func TestKafkaPublisher_Close(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	mockWriter := new(MockKafkaWriter)
	mockWriter.On("Close").Return(errors.New("already closed")).Once()

	err := newKafkaPublisher(logger, mockWriter, "loans").Close()
	assert.Error(t, err)
	mockWriter.AssertExpectations(t)
}

func TestNewKafkaPublisher_RequiresConfig(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	_, err := NewKafkaPublisher(logger, nil, "loans", time.Second)
	assert.Error(t, err)

	_, err = NewKafkaPublisher(logger, []string{"localhost:9092"}, "", time.Second)
	assert.Error(t, err)

	publisher, err := NewKafkaPublisher(logger, []string{"localhost:9092"}, "loans", time.Second)
	require.NoError(t, err)
	assert.NoError(t, publisher.Close())
}

func TestNopPublisher(t *testing.T) {
	var publisher Publisher = NopPublisher{}
	assert.NoError(t, publisher.PublishLoanStateChanged(context.Background(), testEvent()))
	assert.NoError(t, publisher.Close())
}
