package repository

import (
	"context"
	"errors"
	"fmt"
	"iter"
	resourcerepo "slotkeeper/internal/resources/repository"
	slotserrors "slotkeeper/internal/slots/errors"
	"slotkeeper/pkg/config"
	"slotkeeper/pkg/db/postgres"
	"slotkeeper/pkg/model"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type postgresSlotRepository struct {
	cfg       *config.Config
	db        *gorm.DB
	txManager postgres.TransactionManager
}

func NewPostgresSlotRepository(cfg *config.Config) SlotRepository {
	return &postgresSlotRepository{
		cfg:       cfg,
		db:        cfg.Client.Postgres,
		txManager: postgres.NewTransactionManager(cfg.Client.Postgres, cfg.RetryPolicy(), cfg.LockTimeout),
	}
}

func (r *postgresSlotRepository) now() time.Time {
	return r.cfg.Clock.Now().UTC().Truncate(time.Microsecond)
}

func (r *postgresSlotRepository) Create(ctx context.Context, slot *model.Slot, resourceName string) error {
	if slot.ResourceID != "" {
		if _, err := uuid.Parse(slot.ResourceID); err != nil {
			return fmt.Errorf("%w: %s", slotserrors.ErrInvalidID, slot.ResourceID)
		}
	}
	if slot.ID == "" {
		slot.ID = uuid.NewString()
	}
	slot.Start = slot.Start.UTC().Truncate(time.Microsecond)
	slot.Status = model.SlotAvailable

	requestedID := slot.ResourceID
	return r.txManager.ExecuteTransaction(ctx, func(tx *gorm.DB) error {
		now := r.now()
		slot.ResourceID = requestedID
		if requestedID == "" {
			res, err := resourcerepo.PostgresGetOrCreate(tx, resourceName, now)
			if err != nil {
				return err
			}
			slot.ResourceID = res.ID
		} else {
			var count int64
			if err := tx.Model(&model.Resource{}).Where("id = ?", requestedID).Count(&count).Error; err != nil {
				return fmt.Errorf("failed to check resource existence: %w", err)
			}
			if count == 0 {
				return fmt.Errorf("%w: %s", slotserrors.ErrResourceNotFound, requestedID)
			}
		}

		slot.CreatedAt = now
		slot.UpdatedAt = now
		if err := tx.Create(slot).Error; err != nil {
			if postgres.IsUniqueViolation(err) {
				return fmt.Errorf("%w: %s", slotserrors.ErrDuplicate, slot.Start)
			}
			return fmt.Errorf("failed to create slot: %w", err)
		}
		return nil
	})
}

func (r *postgresSlotRepository) CreateBatch(ctx context.Context, drafts []model.SlotDraft) (*model.BatchResult, error) {
	var result *model.BatchResult

	err := r.txManager.ExecuteTransaction(ctx, func(tx *gorm.DB) error {
		result = &model.BatchResult{}
		resourceIDs := make(map[string]string)
		now := r.now()

		for _, d := range drafts {
			resourceID, ok := resourceIDs[d.ResourceName]
			if !ok {
				res, err := resourcerepo.PostgresGetOrCreate(tx, d.ResourceName, now)
				if err != nil {
					return err
				}
				resourceID = res.ID
				resourceIDs[d.ResourceName] = resourceID
			}

			slot := newSlot(uuid.NewString(), resourceID, d.Start.UTC().Truncate(time.Microsecond), d.Duration, now)
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(slot)
			if res.Error != nil {
				return fmt.Errorf("failed to insert slot: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				result.Skipped = append(result.Skipped, skipped(d))
				continue
			}
			result.Created = append(result.Created, slot)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *postgresSlotRepository) FindByID(ctx context.Context, id string) (*model.Slot, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %s", slotserrors.ErrInvalidID, id)
	}

	var slot model.Slot
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&slot).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", slotserrors.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to find slot: %w", err)
	}
	return &slot, nil
}

// Delete locks the slot row before touching its booking, the same order
// Reserve and Release use.
func (r *postgresSlotRepository) Delete(ctx context.Context, id string) (*model.Booking, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %s", slotserrors.ErrInvalidID, id)
	}

	var cascaded *model.Booking
	err := r.txManager.ExecuteTransaction(ctx, func(tx *gorm.DB) error {
		cascaded = nil

		var slot model.Slot
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).Take(&slot).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %s", slotserrors.ErrNotFound, id)
			}
			return fmt.Errorf("failed to lock slot: %w", err)
		}

		var bookings []model.Booking
		if err := tx.Where("slot_id = ?", id).Limit(1).Find(&bookings).Error; err != nil {
			return fmt.Errorf("failed to find booking of slot: %w", err)
		}
		if len(bookings) > 0 {
			if err := tx.Delete(&model.Booking{}, "id = ?", bookings[0].ID).Error; err != nil {
				return fmt.Errorf("failed to delete booking of slot: %w", err)
			}
			name, err := resourcerepo.PostgresResourceName(tx, slot.ResourceID)
			if err != nil {
				return err
			}
			bookings[0].Resolve(&slot, name)
			cascaded = &bookings[0]
		}

		if err := tx.Delete(&model.Slot{}, "id = ?", id).Error; err != nil {
			return fmt.Errorf("failed to delete slot: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cascaded, nil
}

func (r *postgresSlotRepository) ListBetween(ctx context.Context, resourceID string, from, to time.Time) iter.Seq2[*model.Slot, error] {
	return func(yield func(*model.Slot, error) bool) {
		query := r.db.WithContext(ctx).Model(&model.Slot{}).
			Where("start >= ? AND start < ?", from.UTC(), to.UTC()).
			Order("start, resource_id")
		if resourceID != "" {
			query = query.Where("resource_id = ?", resourceID)
		}

		rows, err := query.Rows()
		if err != nil {
			yield(nil, fmt.Errorf("failed to query slots: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var slot model.Slot
			if err := r.db.ScanRows(rows, &slot); err != nil {
				yield(nil, fmt.Errorf("failed to scan slot: %w", err))
				return
			}
			if !yield(&slot, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, fmt.Errorf("slot rows failed: %w", err))
		}
	}
}
