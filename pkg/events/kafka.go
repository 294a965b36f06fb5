package events

import (
	"context"
	"slotkeeper/pkg/config"
	"slotkeeper/pkg/kafka"
	kafka_middleware "slotkeeper/pkg/kafka/middleware"
	"slotkeeper/pkg/logger"
)

type KafkaPublisher struct {
	producer *kafka.Producer
	source   string
}

func NewKafkaPublisher(cfg config.KafkaConfig, source string, log *logger.Logger) (*KafkaPublisher, error) {
	producer, err := kafka.NewProducer(cfg, cfg.EventsTopic, cfg.DLQTopic, log)
	if err != nil {
		return nil, err
	}
	producer.Use(kafka_middleware.LoggingProducerMiddleware(log))

	return &KafkaPublisher{producer: producer, source: source}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	msg, err := NewKafkaMessage(ctx, event, p.source)
	if err != nil {
		return err
	}
	return p.producer.Publish(ctx, msg)
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

// NewKafkaMessage wraps event in the shared header envelope. The request id
// travels as the correlation id.
func NewKafkaMessage(ctx context.Context, event Event, source string) (kafka.Message, error) {
	return kafka.NewMessage().
		WithKey(event.Key).
		WithValue(event).
		WithEventType(event.Type).
		WithCorrelationID(logger.RequestIDFromContext(ctx)).
		WithSchemaVersion(schemaVersion).
		WithSource(source).
		WithTimestamp(event.OccurredAt).
		Build()
}
