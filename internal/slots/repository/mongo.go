package repository

import (
	"context"
	"errors"
	"fmt"
	"iter"
	resourcerepo "slotkeeper/internal/resources/repository"
	slotserrors "slotkeeper/internal/slots/errors"
	"slotkeeper/pkg/config"
	mongodb "slotkeeper/pkg/db/mongo"
	"slotkeeper/pkg/model"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoSlotRepository struct {
	cfg       *config.Config
	resources *mongo.Collection
	slots     *mongo.Collection
	bookings  *mongo.Collection
	txManager mongodb.TransactionManager
}

func NewMongoSlotRepository(cfg *config.Config) SlotRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoSlotRepository{
		cfg:       cfg,
		resources: db.Collection(mongodb.ResourcesCollection),
		slots:     db.Collection(mongodb.SlotsCollection),
		bookings:  db.Collection(mongodb.BookingsCollection),
		txManager: mongodb.NewTransactionManager(cfg.Client.Mongo, cfg.RetryPolicy()),
	}
}

// BSON dates carry milliseconds only.
func (r *mongoSlotRepository) now() time.Time {
	return r.cfg.Clock.Now().UTC().Truncate(time.Millisecond)
}

func (r *mongoSlotRepository) Create(ctx context.Context, slot *model.Slot, resourceName string) error {
	if slot.ResourceID != "" {
		if _, err := uuid.Parse(slot.ResourceID); err != nil {
			return fmt.Errorf("%w: %s", slotserrors.ErrInvalidID, slot.ResourceID)
		}
	}
	if slot.ID == "" {
		slot.ID = uuid.NewString()
	}
	slot.Start = slot.Start.UTC().Truncate(time.Millisecond)
	slot.Status = model.SlotAvailable

	requestedID := slot.ResourceID
	return r.txManager.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		now := r.now()
		slot.ResourceID = requestedID
		if requestedID == "" {
			res, err := resourcerepo.MongoGetOrCreate(sessCtx, r.resources, resourceName, now)
			if err != nil {
				return err
			}
			slot.ResourceID = res.ID
		} else {
			count, err := r.resources.CountDocuments(sessCtx, bson.M{"_id": slot.ResourceID})
			if err != nil {
				return fmt.Errorf("failed to check resource existence: %w", err)
			}
			if count == 0 {
				return fmt.Errorf("%w: %s", slotserrors.ErrResourceNotFound, slot.ResourceID)
			}
		}

		slot.CreatedAt = now
		slot.UpdatedAt = now
		if _, err := r.slots.InsertOne(sessCtx, slot); err != nil {
			if mongodb.IsDuplicateKey(err) {
				return fmt.Errorf("%w: %s", slotserrors.ErrDuplicate, slot.Start)
			}
			return fmt.Errorf("failed to create slot: %w", err)
		}
		return nil
	})
}

func (r *mongoSlotRepository) CreateBatch(ctx context.Context, drafts []model.SlotDraft) (*model.BatchResult, error) {
	var result *model.BatchResult

	err := r.txManager.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		// Rebuilt on every attempt so a retried transaction starts clean.
		result = &model.BatchResult{}
		resourceIDs := make(map[string]string)
		now := r.now()

		for _, d := range drafts {
			resourceID, ok := resourceIDs[d.ResourceName]
			if !ok {
				res, err := resourcerepo.MongoGetOrCreate(sessCtx, r.resources, d.ResourceName, now)
				if err != nil {
					return err
				}
				resourceID = res.ID
				resourceIDs[d.ResourceName] = resourceID
			}

			slot := newSlot(uuid.NewString(), resourceID, d.Start.UTC().Truncate(time.Millisecond), d.Duration, now)
			filter := bson.M{"resource_id": slot.ResourceID, "start": slot.Start}
			update := bson.M{"$setOnInsert": bson.M{
				"_id":         slot.ID,
				"duration_ns": slot.Duration,
				"status":      slot.Status,
				"created_at":  slot.CreatedAt,
				"updated_at":  slot.UpdatedAt,
			}}

			res, err := r.slots.UpdateOne(sessCtx, filter, update, options.Update().SetUpsert(true))
			if err != nil {
				return fmt.Errorf("failed to insert slot: %w", err)
			}
			if res.UpsertedCount == 0 {
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

func (r *mongoSlotRepository) FindByID(ctx context.Context, id string) (*model.Slot, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %s", slotserrors.ErrInvalidID, id)
	}

	var slot model.Slot
	if err := r.slots.FindOne(ctx, bson.M{"_id": id}).Decode(&slot); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", slotserrors.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to find slot: %w", err)
	}
	return &slot, nil
}

func (r *mongoSlotRepository) Delete(ctx context.Context, id string) (*model.Booking, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %s", slotserrors.ErrInvalidID, id)
	}

	var cascaded *model.Booking
	err := r.txManager.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		cascaded = nil

		var slot model.Slot
		if err := r.slots.FindOneAndDelete(sessCtx, bson.M{"_id": id}).Decode(&slot); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return fmt.Errorf("%w: %s", slotserrors.ErrNotFound, id)
			}
			return fmt.Errorf("failed to delete slot: %w", err)
		}

		var booking model.Booking
		err := r.bookings.FindOneAndDelete(sessCtx, bson.M{"slot_id": id}).Decode(&booking)
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
			return nil
		case err != nil:
			return fmt.Errorf("failed to delete booking of slot: %w", err)
		}

		name, err := resourcerepo.MongoResourceName(sessCtx, r.resources, slot.ResourceID)
		if err != nil {
			return err
		}
		booking.Resolve(&slot, name)
		cascaded = &booking
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cascaded, nil
}

func (r *mongoSlotRepository) ListBetween(ctx context.Context, resourceID string, from, to time.Time) iter.Seq2[*model.Slot, error] {
	return func(yield func(*model.Slot, error) bool) {
		ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
		defer cancel()

		filter := bson.M{"start": bson.M{"$gte": from.UTC(), "$lt": to.UTC()}}
		if resourceID != "" {
			filter["resource_id"] = resourceID
		}
		opts := options.Find().SetSort(bson.D{{Key: "start", Value: 1}, {Key: "resource_id", Value: 1}})

		cursor, err := r.slots.Find(ctx, filter, opts)
		if err != nil {
			yield(nil, fmt.Errorf("failed to query slots: %w", err))
			return
		}
		defer cursor.Close(ctx)

		for cursor.Next(ctx) {
			var slot model.Slot
			if err := cursor.Decode(&slot); err != nil {
				yield(nil, fmt.Errorf("failed to decode slot: %w", err))
				return
			}
			if !yield(&slot, nil) {
				return
			}
		}
		if err := cursor.Err(); err != nil {
			yield(nil, fmt.Errorf("slot cursor failed: %w", err))
		}
	}
}
