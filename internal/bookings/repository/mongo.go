package repository

import (
	"context"
	"errors"
	"fmt"
	bookingserrors "slotkeeper/internal/bookings/errors"
	resourcerepo "slotkeeper/internal/resources/repository"
	"slotkeeper/pkg/config"
	mongodb "slotkeeper/pkg/db/mongo"
	"slotkeeper/pkg/model"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoBookingRepository struct {
	cfg       *config.Config
	resources *mongo.Collection
	slots     *mongo.Collection
	bookings  *mongo.Collection
	txManager mongodb.TransactionManager
}

func NewMongoBookingRepository(cfg *config.Config) BookingRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoBookingRepository{
		cfg:       cfg,
		resources: db.Collection(mongodb.ResourcesCollection),
		slots:     db.Collection(mongodb.SlotsCollection),
		bookings:  db.Collection(mongodb.BookingsCollection),
		txManager: mongodb.NewTransactionManager(cfg.Client.Mongo, cfg.RetryPolicy()),
	}
}

func (r *mongoBookingRepository) now() time.Time {
	return r.cfg.Clock.Now().UTC().Truncate(time.Millisecond)
}

// Reserve claims the slot with a compare-and-swap on its status. A concurrent
// claim of the same slot surfaces as a write conflict, so the retried
// transaction observes the slot as booked.
func (r *mongoBookingRepository) Reserve(ctx context.Context, booking *model.Booking) error {
	if _, err := uuid.Parse(booking.SlotID); err != nil {
		return fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, booking.SlotID)
	}
	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}

	return r.txManager.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		now := r.now()

		var slot model.Slot
		err := r.slots.FindOneAndUpdate(sessCtx,
			bson.M{"_id": booking.SlotID, "status": model.SlotAvailable},
			bson.M{"$set": bson.M{"status": model.SlotBooked, "updated_at": now}},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&slot)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return r.unclaimable(sessCtx, booking.SlotID)
		}
		if err != nil {
			return fmt.Errorf("failed to claim slot: %w", err)
		}

		booking.CreatedAt = now
		if _, err := r.bookings.InsertOne(sessCtx, booking); err != nil {
			if mongodb.IsDuplicateKey(err) {
				return fmt.Errorf("%w: %s", bookingserrors.ErrSlotUnavailable, booking.SlotID)
			}
			return fmt.Errorf("failed to create booking: %w", err)
		}

		name, err := resourcerepo.MongoResourceName(sessCtx, r.resources, slot.ResourceID)
		if err != nil {
			return err
		}
		booking.Resolve(&slot, name)
		return nil
	})
}

// unclaimable tells a missing slot from one that is already taken.
func (r *mongoBookingRepository) unclaimable(ctx context.Context, slotID string) error {
	count, err := r.slots.CountDocuments(ctx, bson.M{"_id": slotID})
	if err != nil {
		return fmt.Errorf("failed to check slot existence: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("%w: %s", bookingserrors.ErrSlotNotFound, slotID)
	}
	return fmt.Errorf("%w: %s", bookingserrors.ErrSlotUnavailable, slotID)
}

func (r *mongoBookingRepository) Release(ctx context.Context, id string, allow func(*model.Booking) bool) (*model.Booking, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	var released *model.Booking
	err := r.txManager.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		released = nil

		var booking model.Booking
		if err := r.bookings.FindOne(sessCtx, bson.M{"_id": id}).Decode(&booking); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return fmt.Errorf("%w: %s", bookingserrors.ErrNotFound, id)
			}
			return fmt.Errorf("failed to find booking: %w", err)
		}
		if allow != nil && !allow(&booking) {
			return fmt.Errorf("%w: %s", bookingserrors.ErrNotFound, id)
		}

		if err := r.release(sessCtx, &booking); err != nil {
			return err
		}
		released = &booking
		return nil
	})
	if err != nil {
		return nil, err
	}
	return released, nil
}

func (r *mongoBookingRepository) ReleaseBySlot(ctx context.Context, slotID string) (*model.Booking, error) {
	if _, err := uuid.Parse(slotID); err != nil {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, slotID)
	}

	var released *model.Booking
	err := r.txManager.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		released = nil

		count, err := r.slots.CountDocuments(sessCtx, bson.M{"_id": slotID})
		if err != nil {
			return fmt.Errorf("failed to check slot existence: %w", err)
		}
		if count == 0 {
			return fmt.Errorf("%w: %s", bookingserrors.ErrSlotNotFound, slotID)
		}

		var booking model.Booking
		if err := r.bookings.FindOne(sessCtx, bson.M{"slot_id": slotID}).Decode(&booking); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return fmt.Errorf("%w: %s", bookingserrors.ErrNoBooking, slotID)
			}
			return fmt.Errorf("failed to find booking: %w", err)
		}

		if err := r.release(sessCtx, &booking); err != nil {
			return err
		}
		released = &booking
		return nil
	})
	if err != nil {
		return nil, err
	}
	return released, nil
}

// release deletes booking and reverts its slot, then resolves booking.
func (r *mongoBookingRepository) release(sessCtx mongo.SessionContext, booking *model.Booking) error {
	res, err := r.bookings.DeleteOne(sessCtx, bson.M{"_id": booking.ID})
	if err != nil {
		return fmt.Errorf("failed to delete booking: %w", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%w: %s", bookingserrors.ErrNotFound, booking.ID)
	}

	var slot model.Slot
	err = r.slots.FindOneAndUpdate(sessCtx,
		bson.M{"_id": booking.SlotID},
		bson.M{"$set": bson.M{"status": model.SlotAvailable, "updated_at": r.now()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&slot)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to free slot: %w", err)
	}

	name, err := resourcerepo.MongoResourceName(sessCtx, r.resources, slot.ResourceID)
	if err != nil {
		return err
	}
	booking.Resolve(&slot, name)
	return nil
}

func (r *mongoBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}
	return r.findOne(ctx, bson.M{"_id": id}, id)
}

func (r *mongoBookingRepository) FindBySlot(ctx context.Context, slotID string) (*model.Booking, error) {
	if _, err := uuid.Parse(slotID); err != nil {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, slotID)
	}
	return r.findOne(ctx, bson.M{"slot_id": slotID}, slotID)
}

func (r *mongoBookingRepository) findOne(ctx context.Context, match bson.M, key string) (*model.Booking, error) {
	bookings, err := r.aggregate(ctx, match, bson.M{}, 1)
	if err != nil {
		return nil, err
	}
	if len(bookings) == 0 {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrNotFound, key)
	}
	return bookings[0], nil
}

func (r *mongoBookingRepository) FindUpcoming(ctx context.Context, holder string, now time.Time) ([]*model.Booking, error) {
	match := bson.M{}
	if holder != "" {
		match["holder"] = holder
	}
	return r.aggregate(ctx, match, bson.M{"slot.start": bson.M{"$gte": now.UTC()}}, 0)
}

// bookingDocument is a booking joined with its slot and resource.
type bookingDocument struct {
	model.Booking `bson:",inline"`
	Slot          model.Slot `bson:"slot"`
	Resource      struct {
		Name string `bson:"name"`
	} `bson:"resource"`
}

func (r *mongoBookingRepository) aggregate(ctx context.Context, match, slotMatch bson.M, limit int64) ([]*model.Booking, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$lookup", Value: bson.M{
			"from":         mongodb.SlotsCollection,
			"localField":   "slot_id",
			"foreignField": "_id",
			"as":           "slot",
		}}},
		{{Key: "$unwind", Value: "$slot"}},
		{{Key: "$match", Value: slotMatch}},
		{{Key: "$lookup", Value: bson.M{
			"from":         mongodb.ResourcesCollection,
			"localField":   "slot.resource_id",
			"foreignField": "_id",
			"as":           "resource",
		}}},
		{{Key: "$unwind", Value: bson.M{"path": "$resource", "preserveNullAndEmptyArrays": true}}},
		{{Key: "$sort", Value: bson.D{{Key: "slot.start", Value: 1}, {Key: "_id", Value: 1}}}},
	}
	if limit > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: limit}})
	}

	cursor, err := r.bookings.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []bookingDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}

	bookings := make([]*model.Booking, 0, len(docs))
	for i := range docs {
		b := docs[i].Booking
		b.Resolve(&docs[i].Slot, docs[i].Resource.Name)
		bookings = append(bookings, &b)
	}
	return bookings, nil
}
