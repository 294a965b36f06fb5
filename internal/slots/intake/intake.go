// Package intake feeds slot batches published on Kafka, typically by the
// template expander, into the slot store.
package intake

import (
	"context"
	"fmt"
	"slotkeeper/pkg/config"
	apperrors "slotkeeper/pkg/errors"
	"slotkeeper/pkg/kafka"
	kafka_middleware "slotkeeper/pkg/kafka/middleware"
	"slotkeeper/pkg/logger"
	"slotkeeper/pkg/model"
)

type BatchCreator interface {
	CreateSlotsBatch(ctx context.Context, entries []model.BatchEntry) (*model.BatchResult, error)
}

type Intake struct {
	creator BatchCreator
	log     *logger.Logger
}

func NewIntake(creator BatchCreator, log *logger.Logger) *Intake {
	return &Intake{creator: creator, log: log}
}

// Handle decodes one message as a JSON array of batch entries. Undecodable
// payloads and rejected batches are permanent; a busy store is retried.
func (i *Intake) Handle(ctx context.Context, msg kafka.Message) error {
	if id := msg.GetCorrelationID(); id != "" {
		ctx = logger.ContextWithRequestID(ctx, id)
	}

	var entries []model.BatchEntry
	if err := msg.DecodeValue(&entries); err != nil {
		return kafka.NewPermanentError("invalid slot batch payload", err)
	}

	result, err := i.creator.CreateSlotsBatch(ctx, entries)
	if err != nil {
		if apperrors.IsCode(err, apperrors.CodeTransient) {
			return kafka.NewTransientError("slot store busy", err)
		}
		if apperrors.IsCode(err, apperrors.CodeInternal) {
			return kafka.NewTransientError("slot batch failed", err)
		}
		return kafka.NewPermanentError("slot batch rejected", err)
	}

	i.log.FromContext(ctx).Info("Slot batch imported",
		"key", msg.Key,
		"entries", len(entries),
		"created", len(result.Created),
		"skipped", len(result.Skipped),
	)
	return nil
}

// NewConsumer subscribes the intake to the configured batch topic.
func NewConsumer(cfg *config.Config, creator BatchCreator) (*kafka.Consumer, error) {
	if cfg.Kafka.SlotBatchTopic == "" {
		return nil, fmt.Errorf("slot batch topic is not configured")
	}

	in := NewIntake(creator, cfg.Log)
	consumer, err := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.SlotBatchTopic, cfg.Kafka.ConsumerGroup, in.Handle, cfg.Log)
	if err != nil {
		return nil, err
	}
	consumer.Use(kafka_middleware.LoggingConsumerMiddleware(cfg.Log))
	return consumer, nil
}
