package consumer

import (
	"context"
	"encoding/json"
	"errors"

	"minerva/backend/go/internal/database/kafka"
	"minerva/backend/go/internal/models"
	"minerva/backend/go/pkg/logger"

	kafkago "github.com/segmentio/kafka-go"
)

// KafkaQueue publishes exchanges to a topic, keyed by conversation id so the
// exchanges of one conversation stay ordered.
type KafkaQueue struct {
	publisher *kafka.Publisher
}

// NewKafkaQueue creates a KafkaQueue.
func NewKafkaQueue(client *kafka.Client, topic string) *KafkaQueue {
	return &KafkaQueue{publisher: kafka.NewPublisher(client, topic)}
}

func (q *KafkaQueue) Enqueue(ctx context.Context, ex models.Exchange) error {
	return q.publisher.Publish(ctx, ex.ConversationID, ex)
}

// Close flushes and closes the writer.
func (q *KafkaQueue) Close() error {
	return q.publisher.Close()
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// KafkaConsumer consumes exchanges from a Kafka topic and hands them to a Handler.
// Offsets are committed after the handler returns, so delivery is at-least-once.
type KafkaConsumer struct {
	reader  messageReader
	handler Handler
	logger  *logger.Logger
	done    chan struct{}
}

// NewKafkaConsumer creates a new KafkaConsumer reading topic with the client's consumer group.
func NewKafkaConsumer(client *kafka.Client, topic string, handler Handler, log *logger.Logger) *KafkaConsumer {
	return newKafkaConsumer(client.NewReader(topic), handler, log)
}

func newKafkaConsumer(r messageReader, handler Handler, log *logger.Logger) *KafkaConsumer {
	if log == nil {
		log = logger.Discard()
	}
	return &KafkaConsumer{reader: r, handler: handler, logger: log, done: make(chan struct{})}
}

// Start starts the Kafka consumer. It returns immediately; the loop ends when ctx is done.
func (c *KafkaConsumer) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		defer c.reader.Close()
		for {
			msg, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, context.Canceled) {
					return
				}
				c.logger.WithError(models.ErrorInfo{Message: err.Error()}).Error("failed to fetch message")
				continue
			}

			var ex models.Exchange
			if err := json.Unmarshal(msg.Value, &ex); err != nil {
				// Unparseable messages are committed so they do not block the partition.
				c.logger.WithError(models.ErrorInfo{Message: err.Error()}).Error("failed to unmarshal message")
			} else if err := c.handler.Ingest(ctx, ex); err != nil {
				c.logger.WithTrace(ex.ConversationID).WithError(models.ErrorInfo{Message: err.Error()}).Error("failed to extract facts")
			}

			if err := c.reader.CommitMessages(ctx, msg); err != nil {
				c.logger.WithError(models.ErrorInfo{Message: err.Error()}).Error("failed to commit message")
			}
		}
	}()
}

// Done is closed once the consume loop has exited.
func (c *KafkaConsumer) Done() <-chan struct{} {
	return c.done
}
