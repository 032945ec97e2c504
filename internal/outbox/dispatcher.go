// Package outbox persists and delivers run events to Kafka.
package outbox

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

// Message is one claimed outbox row awaiting delivery.
type Message struct {
	EventID      int64
	AggregateID  string
	EventType    string
	Topic        string
	PartitionKey string
	Payload      []byte
}

type messageWriter interface {
	WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error
}

// Store abstracts the outbox table so delivery logic is testable
// without a database.
type Store interface {
	// FetchAndClaim claims up to limit unpublished rows.
	FetchAndClaim(ctx context.Context, limit int) ([]Message, error)
	// MarkPublished stamps rows as delivered.
	MarkPublished(ctx context.Context, eventIDs []int64) error
}

// Dispatcher drains the outbox table and delivers events to Kafka.
// Rows that fail to deliver stay unpublished and are retried on the
// next poll.
type Dispatcher struct {
	store            Store
	producer         messageWriter
	pollInterval     time.Duration
	batchSize        int
	logger           *log.Logger
	shutdownComplete chan struct{}
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(store Store, producer messageWriter, pollInterval time.Duration, batchSize int) *Dispatcher {
	return &Dispatcher{
		store:            store,
		producer:         producer,
		pollInterval:     pollInterval,
		batchSize:        batchSize,
		logger:           log.New(log.Writer(), "[outbox] ", log.LstdFlags),
		shutdownComplete: make(chan struct{}),
	}
}

// Start launches the polling loop. It should be called in a goroutine.
func (d *Dispatcher) Start(ctx context.Context) {
	ticker := time.NewTicker(d.pollInterval)
	defer func() {
		ticker.Stop()
		close(d.shutdownComplete)
	}()

	for {
		if err := d.processBatch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Printf("dispatcher error: %v", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Wait blocks until the dispatcher stops.
func (d *Dispatcher) Wait() {
	<-d.shutdownComplete
}

func (d *Dispatcher) processBatch(ctx context.Context) error {
	start := time.Now()

	messages, err := d.store.FetchAndClaim(ctx, d.batchSize)
	if err != nil {
		return err
	}
	if len(messages) == 0 {
		return nil
	}
	defer func() { batchDuration.Observe(time.Since(start).Seconds()) }()

	byTopic := make(map[string][]kafka.Message)
	ids := make([]int64, 0, len(messages))
	for _, msg := range messages {
		byTopic[msg.Topic] = append(byTopic[msg.Topic], toKafkaMessage(msg))
		ids = append(ids, msg.EventID)
	}

	for topic, batch := range byTopic {
		if err := d.producer.WriteMessages(ctx, topic, batch...); err != nil {
			// Leave the whole claim unpublished; the next poll retries it.
			failedCounter.Add(float64(len(messages)))
			d.logger.Printf("delivery failure on topic %s, will retry: %v", topic, err)
			return nil
		}
	}

	if err := d.store.MarkPublished(ctx, ids); err != nil {
		return err
	}

	deliveredCounter.Add(float64(len(messages)))
	return nil
}

func toKafkaMessage(msg Message) kafka.Message {
	return kafka.Message{
		Key:   []byte(msg.PartitionKey),
		Value: msg.Payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(msg.EventType)},
			{Key: "aggregate_id", Value: []byte(msg.AggregateID)},
		},
	}
}
