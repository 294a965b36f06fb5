package repository

import (
	"context"
	"errors"
	"fmt"
	bookingserrors "slotkeeper/internal/bookings/errors"
	resourcerepo "slotkeeper/internal/resources/repository"
	"slotkeeper/pkg/config"
	"slotkeeper/pkg/db/postgres"
	"slotkeeper/pkg/model"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type postgresBookingRepository struct {
	cfg       *config.Config
	db        *gorm.DB
	txManager postgres.TransactionManager
}

func NewPostgresBookingRepository(cfg *config.Config) BookingRepository {
	return &postgresBookingRepository{
		cfg:       cfg,
		db:        cfg.Client.Postgres,
		txManager: postgres.NewTransactionManager(cfg.Client.Postgres, cfg.RetryPolicy(), cfg.LockTimeout),
	}
}

func (r *postgresBookingRepository) now() time.Time {
	return r.cfg.Clock.Now().UTC().Truncate(time.Microsecond)
}

// lockSlot takes the slot row lock. Every writer of a booking holds it
// first, so two transactions never wait on each other in opposite order.
func lockSlot(tx *gorm.DB, slotID string) (*model.Slot, error) {
	var slot model.Slot
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", slotID).Take(&slot).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", bookingserrors.ErrSlotNotFound, slotID)
		}
		return nil, fmt.Errorf("failed to lock slot: %w", err)
	}
	return &slot, nil
}

func setSlotStatus(tx *gorm.DB, slot *model.Slot, status model.SlotStatus, now time.Time) error {
	err := tx.Model(&model.Slot{}).Where("id = ?", slot.ID).Updates(map[string]any{
		"status":     status,
		"updated_at": now,
	}).Error
	if err != nil {
		return fmt.Errorf("failed to update slot status: %w", err)
	}
	slot.Status = status
	slot.UpdatedAt = now
	return nil
}

func (r *postgresBookingRepository) Reserve(ctx context.Context, booking *model.Booking) error {
	if _, err := uuid.Parse(booking.SlotID); err != nil {
		return fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, booking.SlotID)
	}
	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}

	return r.txManager.ExecuteTransaction(ctx, func(tx *gorm.DB) error {
		now := r.now()

		slot, err := lockSlot(tx, booking.SlotID)
		if err != nil {
			return err
		}
		if slot.Status != model.SlotAvailable {
			return fmt.Errorf("%w: %s", bookingserrors.ErrSlotUnavailable, booking.SlotID)
		}

		booking.CreatedAt = now
		if err := tx.Create(booking).Error; err != nil {
			if postgres.IsUniqueViolation(err) {
				return fmt.Errorf("%w: %s", bookingserrors.ErrSlotUnavailable, booking.SlotID)
			}
			return fmt.Errorf("failed to create booking: %w", err)
		}
		if err := setSlotStatus(tx, slot, model.SlotBooked, now); err != nil {
			return err
		}

		name, err := resourcerepo.PostgresResourceName(tx, slot.ResourceID)
		if err != nil {
			return err
		}
		booking.Resolve(slot, name)
		return nil
	})
}

func (r *postgresBookingRepository) Release(ctx context.Context, id string, allow func(*model.Booking) bool) (*model.Booking, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	var released *model.Booking
	err := r.txManager.ExecuteTransaction(ctx, func(tx *gorm.DB) error {
		released = nil

		var slotIDs []string
		if err := tx.Model(&model.Booking{}).Where("id = ?", id).Limit(1).Pluck("slot_id", &slotIDs).Error; err != nil {
			return fmt.Errorf("failed to find booking: %w", err)
		}
		if len(slotIDs) == 0 {
			return fmt.Errorf("%w: %s", bookingserrors.ErrNotFound, id)
		}

		slot, err := lockSlot(tx, slotIDs[0])
		if errors.Is(err, bookingserrors.ErrSlotNotFound) {
			return fmt.Errorf("%w: %s", bookingserrors.ErrNotFound, id)
		}
		if err != nil {
			return err
		}

		// Re-read under the slot lock; the booking may have gone meanwhile.
		booking, err := r.lockedBooking(tx, "id = ? AND slot_id = ?", id, slot.ID)
		if err != nil {
			return err
		}
		if booking == nil || (allow != nil && !allow(booking)) {
			return fmt.Errorf("%w: %s", bookingserrors.ErrNotFound, id)
		}

		if err := r.release(tx, booking, slot); err != nil {
			return err
		}
		released = booking
		return nil
	})
	if err != nil {
		return nil, err
	}
	return released, nil
}

func (r *postgresBookingRepository) ReleaseBySlot(ctx context.Context, slotID string) (*model.Booking, error) {
	if _, err := uuid.Parse(slotID); err != nil {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, slotID)
	}

	var released *model.Booking
	err := r.txManager.ExecuteTransaction(ctx, func(tx *gorm.DB) error {
		released = nil

		slot, err := lockSlot(tx, slotID)
		if err != nil {
			return err
		}

		booking, err := r.lockedBooking(tx, "slot_id = ?", slotID)
		if err != nil {
			return err
		}
		if booking == nil {
			return fmt.Errorf("%w: %s", bookingserrors.ErrNoBooking, slotID)
		}

		if err := r.release(tx, booking, slot); err != nil {
			return err
		}
		released = booking
		return nil
	})
	if err != nil {
		return nil, err
	}
	return released, nil
}

func (r *postgresBookingRepository) lockedBooking(tx *gorm.DB, query string, args ...any) (*model.Booking, error) {
	var bookings []model.Booking
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where(query, args...).Limit(1).Find(&bookings).Error
	if err != nil {
		return nil, fmt.Errorf("failed to lock booking: %w", err)
	}
	if len(bookings) == 0 {
		return nil, nil
	}
	return &bookings[0], nil
}

func (r *postgresBookingRepository) release(tx *gorm.DB, booking *model.Booking, slot *model.Slot) error {
	if err := tx.Delete(&model.Booking{}, "id = ?", booking.ID).Error; err != nil {
		return fmt.Errorf("failed to delete booking: %w", err)
	}
	if err := setSlotStatus(tx, slot, model.SlotAvailable, r.now()); err != nil {
		return err
	}

	name, err := resourcerepo.PostgresResourceName(tx, slot.ResourceID)
	if err != nil {
		return err
	}
	booking.Resolve(slot, name)
	return nil
}

// bookingRow is a booking joined with its slot and resource.
type bookingRow struct {
	ID           string
	SlotID       string
	Holder       string
	Notes        string
	CreatedAt    time.Time
	SlotStart    time.Time
	DurationNs   int64
	ResourceID   string
	ResourceName string
}

func (row bookingRow) booking() *model.Booking {
	return &model.Booking{
		ID:           row.ID,
		SlotID:       row.SlotID,
		Holder:       row.Holder,
		Notes:        row.Notes,
		CreatedAt:    row.CreatedAt,
		SlotStart:    row.SlotStart,
		SlotEnd:      row.SlotStart.Add(time.Duration(row.DurationNs)),
		ResourceID:   row.ResourceID,
		ResourceName: row.ResourceName,
	}
}

func (r *postgresBookingRepository) joined(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table(postgres.TableBookings+" AS b").
		Select("b.id, b.slot_id, b.holder, b.notes, b.created_at, " +
			"s.start AS slot_start, s.duration_ns, s.resource_id, r.name AS resource_name").
		Joins("JOIN " + postgres.TableSlots + " AS s ON s.id = b.slot_id").
		Joins("JOIN " + postgres.TableResources + " AS r ON r.id = s.resource_id")
}

func (r *postgresBookingRepository) findOne(ctx context.Context, key, query string, args ...any) (*model.Booking, error) {
	var rows []bookingRow
	if err := r.joined(ctx).Where(query, args...).Limit(1).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrNotFound, key)
	}
	return rows[0].booking(), nil
}

func (r *postgresBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}
	return r.findOne(ctx, id, "b.id = ?", id)
}

func (r *postgresBookingRepository) FindBySlot(ctx context.Context, slotID string) (*model.Booking, error) {
	if _, err := uuid.Parse(slotID); err != nil {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, slotID)
	}
	return r.findOne(ctx, slotID, "b.slot_id = ?", slotID)
}

func (r *postgresBookingRepository) FindUpcoming(ctx context.Context, holder string, now time.Time) ([]*model.Booking, error) {
	query := r.joined(ctx).Where("s.start >= ?", now.UTC()).Order("s.start, b.id")
	if holder != "" {
		query = query.Where("b.holder = ?", holder)
	}

	var rows []bookingRow
	if err := query.Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query upcoming bookings: %w", err)
	}

	bookings := make([]*model.Booking, 0, len(rows))
	for _, row := range rows {
		bookings = append(bookings, row.booking())
	}
	return bookings, nil
}
