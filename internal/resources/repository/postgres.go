package repository

import (
	"context"
	"errors"
	"fmt"
	resourceserrors "slotkeeper/internal/resources/errors"
	"slotkeeper/pkg/config"
	"slotkeeper/pkg/model"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type postgresResourceRepository struct {
	cfg *config.Config
	db  *gorm.DB
}

func NewPostgresResourceRepository(cfg *config.Config) ResourceRepository {
	return &postgresResourceRepository{
		cfg: cfg,
		db:  cfg.Client.Postgres,
	}
}

func (r *postgresResourceRepository) now() time.Time {
	return r.cfg.Clock.Now().UTC().Truncate(time.Microsecond)
}

func (r *postgresResourceRepository) Create(ctx context.Context, res *model.Resource) error {
	if res.ID == "" {
		res.ID = uuid.NewString()
	}
	res.CreatedAt = r.now()
	res.UpdatedAt = res.CreatedAt

	if err := r.db.WithContext(ctx).Create(res).Error; err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}
	return nil
}

func (r *postgresResourceRepository) FindByID(ctx context.Context, id string) (*model.Resource, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %s", resourceserrors.ErrInvalidID, id)
	}

	var res model.Resource
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&res).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", resourceserrors.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to find resource: %w", err)
	}
	return &res, nil
}

func (r *postgresResourceRepository) FindByIDs(ctx context.Context, ids []string) ([]*model.Resource, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var resources []*model.Resource
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("name, created_at").Find(&resources).Error; err != nil {
		return nil, fmt.Errorf("failed to query resources: %w", err)
	}
	return resources, nil
}

func (r *postgresResourceRepository) FindAll(ctx context.Context, activeOnly bool) ([]*model.Resource, error) {
	query := r.db.WithContext(ctx).Order("name, created_at")
	if activeOnly {
		query = query.Where("active = ?", true)
	}

	var resources []*model.Resource
	if err := query.Find(&resources).Error; err != nil {
		return nil, fmt.Errorf("failed to query resources: %w", err)
	}
	return resources, nil
}

func (r *postgresResourceRepository) Update(ctx context.Context, res *model.Resource) error {
	res.UpdatedAt = r.now()
	result := r.db.WithContext(ctx).Model(&model.Resource{}).Where("id = ?", res.ID).Updates(map[string]any{
		"name":       res.Name,
		"capacity":   res.Capacity,
		"info":       res.Info,
		"active":     res.Active,
		"updated_at": res.UpdatedAt,
	})
	if result.Error != nil {
		return fmt.Errorf("failed to update resource: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", resourceserrors.ErrNotFound, res.ID)
	}
	return nil
}

func (r *postgresResourceRepository) GetOrCreateByName(ctx context.Context, name string) (*model.Resource, error) {
	return PostgresGetOrCreate(r.db.WithContext(ctx), name, r.now())
}

// PostgresGetOrCreate returns the first resource called name, inserting a
// default one when none exists. tx may be an open transaction.
func PostgresGetOrCreate(tx *gorm.DB, name string, now time.Time) (*model.Resource, error) {
	var res model.Resource
	fresh := NewDefaultResource(uuid.NewString(), name, now)
	err := tx.Where(&model.Resource{Name: name}).
		Order("created_at").
		Attrs(fresh).
		FirstOrCreate(&res).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get or create resource %q: %w", name, err)
	}
	return &res, nil
}

// PostgresResourceName resolves a resource id to its name, or "" when absent.
func PostgresResourceName(tx *gorm.DB, id string) (string, error) {
	var names []string
	if err := tx.Model(&model.Resource{}).Where("id = ?", id).Limit(1).Pluck("name", &names).Error; err != nil {
		return "", fmt.Errorf("failed to resolve resource name: %w", err)
	}
	if len(names) == 0 {
		return "", nil
	}
	return names[0], nil
}
