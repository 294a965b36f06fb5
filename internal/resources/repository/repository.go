package repository

import (
	"context"
	"fmt"
	"slotkeeper/pkg/config"
	"slotkeeper/pkg/model"
	"time"
)

type ResourceRepository interface {
	Create(ctx context.Context, r *model.Resource) error
	FindByID(ctx context.Context, id string) (*model.Resource, error)
	FindByIDs(ctx context.Context, ids []string) ([]*model.Resource, error)
	FindAll(ctx context.Context, activeOnly bool) ([]*model.Resource, error)
	Update(ctx context.Context, r *model.Resource) error
	GetOrCreateByName(ctx context.Context, name string) (*model.Resource, error)
}

// New returns the repository for the configured store driver.
func New(cfg *config.Config) (ResourceRepository, error) {
	switch cfg.StoreDriver {
	case config.DriverMongo:
		return NewMongoResourceRepository(cfg), nil
	case config.DriverPostgres:
		return NewPostgresResourceRepository(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
	}
}

// NewDefaultResource is the resource created implicitly when a slot names an
// unknown table.
func NewDefaultResource(id, name string, now time.Time) *model.Resource {
	return &model.Resource{
		ID:        id,
		Name:      name,
		Capacity:  1,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
