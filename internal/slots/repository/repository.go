package repository

import (
	"context"
	"fmt"
	"iter"
	"slotkeeper/pkg/config"
	"slotkeeper/pkg/model"
	"time"
)

type SlotRepository interface {
	// Create inserts slot. An empty slot.ResourceID resolves resourceName
	// through get-or-create inside the same transaction.
	Create(ctx context.Context, slot *model.Slot, resourceName string) error
	// CreateBatch inserts drafts in one transaction, skipping those whose
	// (resource, start) already exists.
	CreateBatch(ctx context.Context, drafts []model.SlotDraft) (*model.BatchResult, error)
	FindByID(ctx context.Context, id string) (*model.Slot, error)
	// Delete removes the slot together with the booking that references it,
	// which is returned resolved, or nil when the slot was free.
	Delete(ctx context.Context, id string) (*model.Booking, error)
	// ListBetween yields slots starting in [from, to) ordered by start. Each
	// range over the sequence runs a fresh query.
	ListBetween(ctx context.Context, resourceID string, from, to time.Time) iter.Seq2[*model.Slot, error]
}

func New(cfg *config.Config) (SlotRepository, error) {
	switch cfg.StoreDriver {
	case config.DriverMongo:
		return NewMongoSlotRepository(cfg), nil
	case config.DriverPostgres:
		return NewPostgresSlotRepository(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
	}
}

func newSlot(id, resourceID string, start time.Time, duration time.Duration, now time.Time) *model.Slot {
	return &model.Slot{
		ID:         id,
		ResourceID: resourceID,
		Start:      start,
		Duration:   duration,
		Status:     model.SlotAvailable,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func skipped(d model.SlotDraft) model.SkippedEntry {
	return model.SkippedEntry{
		Table:  d.ResourceName,
		Start:  d.Start,
		Reason: model.SkipReasonDuplicate,
	}
}
