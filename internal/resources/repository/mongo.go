package repository

import (
	"context"
	"errors"
	"fmt"
	resourceserrors "slotkeeper/internal/resources/errors"
	"slotkeeper/pkg/config"
	mongodb "slotkeeper/pkg/db/mongo"
	"slotkeeper/pkg/model"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoResourceRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoResourceRepository(cfg *config.Config) ResourceRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoResourceRepository{
		cfg:        cfg,
		collection: db.Collection(mongodb.ResourcesCollection),
	}
}

func (r *mongoResourceRepository) now() time.Time {
	return r.cfg.Clock.Now().UTC().Truncate(time.Millisecond)
}

func (r *mongoResourceRepository) Create(ctx context.Context, res *model.Resource) error {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if res.ID == "" {
		res.ID = uuid.NewString()
	}
	res.CreatedAt = r.now()
	res.UpdatedAt = res.CreatedAt

	if _, err := r.collection.InsertOne(ctx, res); err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}
	return nil
}

func (r *mongoResourceRepository) FindByID(ctx context.Context, id string) (*model.Resource, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %s", resourceserrors.ErrInvalidID, id)
	}

	var res model.Resource
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&res); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", resourceserrors.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to find resource: %w", err)
	}
	return &res, nil
}

func (r *mongoResourceRepository) FindByIDs(ctx context.Context, ids []string) ([]*model.Resource, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return r.find(ctx, bson.M{"_id": bson.M{"$in": ids}})
}

func (r *mongoResourceRepository) FindAll(ctx context.Context, activeOnly bool) ([]*model.Resource, error) {
	filter := bson.M{}
	if activeOnly {
		filter["active"] = true
	}
	return r.find(ctx, filter)
}

func (r *mongoResourceRepository) find(ctx context.Context, filter bson.M) ([]*model.Resource, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}, {Key: "created_at", Value: 1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query resources: %w", err)
	}
	defer cursor.Close(ctx)

	var resources []*model.Resource
	if err := cursor.All(ctx, &resources); err != nil {
		return nil, fmt.Errorf("failed to decode resources: %w", err)
	}
	return resources, nil
}

func (r *mongoResourceRepository) Update(ctx context.Context, res *model.Resource) error {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	res.UpdatedAt = r.now()
	update := bson.M{"$set": bson.M{
		"name":       res.Name,
		"capacity":   res.Capacity,
		"info":       res.Info,
		"active":     res.Active,
		"updated_at": res.UpdatedAt,
	}}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": res.ID}, update)
	if err != nil {
		return fmt.Errorf("failed to update resource: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", resourceserrors.ErrNotFound, res.ID)
	}
	return nil
}

func (r *mongoResourceRepository) GetOrCreateByName(ctx context.Context, name string) (*model.Resource, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	return MongoGetOrCreate(ctx, r.collection, name, r.now())
}

// MongoGetOrCreate returns the oldest resource called name, inserting a
// default one when none exists. ctx may be a transaction's SessionContext.
func MongoGetOrCreate(ctx context.Context, coll *mongo.Collection, name string, now time.Time) (*model.Resource, error) {
	fresh := NewDefaultResource(uuid.NewString(), name, now)
	update := bson.M{"$setOnInsert": bson.M{
		"_id":        fresh.ID,
		"capacity":   fresh.Capacity,
		"active":     fresh.Active,
		"created_at": fresh.CreatedAt,
		"updated_at": fresh.UpdatedAt,
	}}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After).
		SetSort(bson.D{{Key: "created_at", Value: 1}})

	var res model.Resource
	if err := coll.FindOneAndUpdate(ctx, bson.M{"name": name}, update, opts).Decode(&res); err != nil {
		return nil, fmt.Errorf("failed to get or create resource %q: %w", name, err)
	}
	return &res, nil
}

// MongoResourceName resolves a resource id to its name, or "" when absent.
func MongoResourceName(ctx context.Context, coll *mongo.Collection, id string) (string, error) {
	var res struct {
		Name string `bson:"name"`
	}
	opts := options.FindOne().SetProjection(bson.M{"name": 1})
	if err := coll.FindOne(ctx, bson.M{"_id": id}, opts).Decode(&res); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", nil
		}
		return "", fmt.Errorf("failed to resolve resource name: %w", err)
	}
	return res.Name, nil
}
