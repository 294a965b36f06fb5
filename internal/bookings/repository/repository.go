package repository

import (
	"context"
	"fmt"
	"slotkeeper/pkg/config"
	"slotkeeper/pkg/model"
	"time"
)

// BookingRepository owns the Booking rows and is the only writer of slot
// status. Reserve, Release and ReleaseBySlot each change a booking and its
// slot in a single transaction. Returned bookings are resolved against their
// slot and resource.
type BookingRepository interface {
	// Reserve claims booking.SlotID. It fails with ErrSlotNotFound or
	// ErrSlotUnavailable and leaves nothing behind.
	Reserve(ctx context.Context, booking *model.Booking) error
	// Release deletes the booking if allow accepts it, freeing its slot.
	// A rejected or missing booking is ErrNotFound.
	Release(ctx context.Context, id string, allow func(*model.Booking) bool) (*model.Booking, error)
	// ReleaseBySlot deletes whatever booking references the slot.
	ReleaseBySlot(ctx context.Context, slotID string) (*model.Booking, error)
	FindByID(ctx context.Context, id string) (*model.Booking, error)
	FindBySlot(ctx context.Context, slotID string) (*model.Booking, error)
	// FindUpcoming lists bookings whose slot starts at or after now, earliest
	// first. An empty holder lists every holder.
	FindUpcoming(ctx context.Context, holder string, now time.Time) ([]*model.Booking, error)
}

func New(cfg *config.Config) (BookingRepository, error) {
	switch cfg.StoreDriver {
	case config.DriverMongo:
		return NewMongoBookingRepository(cfg), nil
	case config.DriverPostgres:
		return NewPostgresBookingRepository(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
	}
}
