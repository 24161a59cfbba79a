// Package events fans committed ledger receipts out to off-chain consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"marpelink-escrow-server/internal/ledger"
)

// MessageWriter is the subset of *kafka.Writer used by KafkaPublisher.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes one message per receipt, keyed by transaction hash.
type KafkaPublisher struct {
	writer  MessageWriter
	topic   string
	timeout time.Duration
	logger  *logrus.Logger
}

// NewKafkaPublisher creates a publisher writing to topic on the given brokers.
func NewKafkaPublisher(brokers []string, topic string, logger *logrus.Logger) *KafkaPublisher {
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers:      brokers,
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: int(kafka.RequireOne),
	})
	return NewKafkaPublisherWithWriter(writer, topic, logger)
}

// NewKafkaPublisherWithWriter wraps an existing writer.
func NewKafkaPublisherWithWriter(writer MessageWriter, topic string, logger *logrus.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, topic: topic, timeout: 5 * time.Second, logger: logger}
}

// Publish implements ledger.Publisher.
func (p *KafkaPublisher) Publish(ctx context.Context, r ledger.Receipt) error {
	value, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal receipt: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(r.TxHash),
		Value: value,
		Headers: []kafka.Header{
			{Key: "operation", Value: []byte(r.Operation)},
		},
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to produce message: %w", err)
	}

	p.logger.WithFields(logrus.Fields{
		"Topic":  p.topic,
		"TxHash": r.TxHash,
		"Height": r.Height,
	}).Debug("Receipt delivered")
	return nil
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
