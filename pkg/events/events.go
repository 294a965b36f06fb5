package events

import (
	"context"
	"fmt"
	"slotkeeper/pkg/config"
	"slotkeeper/pkg/logger"
	"sync"
	"time"
)

const (
	BookingCreated   = "booking.created"
	BookingCancelled = "booking.cancelled"
	SlotDeleted      = "slot.deleted"
	SlotsCreated     = "slots.created"
)

const (
	schemaVersion  = "1"
	publishTimeout = 2 * time.Second
)

// Event is a committed state change. Key groups events for ordering,
// normally the slot id.
type Event struct {
	Type       string    `json:"type"`
	Key        string    `json:"key"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// New builds the publisher selected by EVENTS_DRIVER.
func New(cfg *config.Config, service string) (Publisher, error) {
	switch cfg.EventsDriver {
	case config.EventsKafka:
		return NewKafkaPublisher(cfg.Kafka, service, cfg.Log)
	case config.EventsRabbitMQ:
		return NewRabbitMQPublisher(cfg.RabbitMQURL, cfg.RabbitMQExchange, service)
	case config.EventsNone, "":
		return Noop{}, nil
	default:
		return nil, fmt.Errorf("unknown events driver %q", cfg.EventsDriver)
	}
}

// Dispatch publishes event once the write it describes has committed.
// A failed publish never undoes the write, so errors are logged only.
func Dispatch(ctx context.Context, p Publisher, log *logger.Logger, event Event) {
	if p == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := p.Publish(ctx, event); err != nil {
		log.FromContext(ctx).Warn("Failed to publish event",
			"event_type", event.Type,
			"key", event.Key,
			"error", err,
		)
	}
}

type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close() error                         { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	Err    error
}

func (r *Recorder) Publish(_ context.Context, event Event) error {
	if r.Err != nil {
		return r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *Recorder) Close() error { return nil }

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]string, len(r.events))
	for i, e := range r.events {
		types[i] = e.Type
	}
	return types
}
