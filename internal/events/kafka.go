package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/newtube/backend/pkg/metrics"
)

// messageWriter is the subset of *kafka.Writer used here.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes events to a topic keyed by video id.
type Kafka struct {
	writer messageWriter
	logger *zap.Logger
}

// NewKafka creates a Kafka publisher for topic.
func NewKafka(brokers []string, topic string, logger *zap.Logger) (*Kafka, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	logger.Info("kafka event publisher configured", zap.Strings("brokers", brokers), zap.String("topic", topic))
	return &Kafka{writer: w, logger: logger}, nil
}

func (k *Kafka) Publish(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(ev.VideoID.String()),
		Value: body,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(ev.Type)},
		},
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		metrics.EventsPublishedTotal.WithLabelValues("kafka", "error").Inc()
		return fmt.Errorf("write %s: %w", ev.Type, err)
	}
	metrics.EventsPublishedTotal.WithLabelValues("kafka", "ok").Inc()
	return nil
}

func (k *Kafka) Close() error {
	return k.writer.Close()
}
