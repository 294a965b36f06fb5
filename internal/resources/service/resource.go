package service

import (
	"context"
	"errors"
	resourceserrors "slotkeeper/internal/resources/errors"
	"slotkeeper/internal/resources/repository"
	"slotkeeper/internal/resources/validator"
	"slotkeeper/pkg/config"
	apperrors "slotkeeper/pkg/errors"
	"slotkeeper/pkg/model"
	"slotkeeper/pkg/sanitizer"
)

type ResourceService interface {
	Create(ctx context.Context, r *model.Resource) error
	GetByID(ctx context.Context, id string) (*model.Resource, error)
	List(ctx context.Context, activeOnly bool) ([]*model.Resource, error)
	Update(ctx context.Context, id string, updates *model.ResourceUpdate) (*model.Resource, error)
	GetOrCreateByName(ctx context.Context, name string) (*model.Resource, error)
}

type resourceService struct {
	repo      repository.ResourceRepository
	validator *validator.ResourceValidator
	cfg       *config.Config
}

func NewResourceService(
	repo repository.ResourceRepository,
	validator *validator.ResourceValidator,
	cfg *config.Config,
) ResourceService {
	return &resourceService{
		repo:      repo,
		validator: validator,
		cfg:       cfg,
	}
}

func (s *resourceService) Create(ctx context.Context, r *model.Resource) error {
	r.Name = sanitizer.NormalizeName(r.Name)
	r.Info = sanitizer.NormalizeNotes(r.Info)

	if err := s.validator.Validate(r); err != nil {
		s.cfg.Log.Warn("Resource validation failed",
			"name", r.Name,
			"error", err,
		)
		return validationError("Resource validation failed", err)
	}

	if err := s.repo.Create(ctx, r); err != nil {
		s.cfg.Log.Error("Failed to create resource",
			"name", r.Name,
			"error", err,
		)
		return apperrors.Internal("Failed to create resource", err)
	}

	s.cfg.Log.Info("Resource created successfully",
		"id", r.ID,
		"name", r.Name,
		"capacity", r.Capacity,
	)
	return nil
}

func (s *resourceService) GetByID(ctx context.Context, id string) (*model.Resource, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Resource ID cannot be empty")
	}

	r, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapError("Failed to retrieve resource", id, err)
	}
	return r, nil
}

func (s *resourceService) List(ctx context.Context, activeOnly bool) ([]*model.Resource, error) {
	resources, err := s.repo.FindAll(ctx, activeOnly)
	if err != nil {
		s.cfg.Log.Error("Failed to list resources", "active_only", activeOnly, "error", err)
		return nil, apperrors.Internal("Failed to retrieve resources", err)
	}
	return resources, nil
}

func (s *resourceService) Update(ctx context.Context, id string, updates *model.ResourceUpdate) (*model.Resource, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Resource ID cannot be empty")
	}
	if updates.IsEmpty() {
		return nil, apperrors.InvalidInput("No fields to update")
	}
	if updates.Name != nil {
		normalized := sanitizer.NormalizeName(*updates.Name)
		updates.Name = &normalized
	}
	if err := s.validator.ValidateUpdate(updates); err != nil {
		return nil, validationError("Resource update validation failed", err)
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapError("Failed to check resource existence", id, err)
	}

	updates.Apply(existing)
	if err := s.repo.Update(ctx, existing); err != nil {
		return nil, s.mapError("Failed to update resource", id, err)
	}

	s.cfg.Log.Info("Resource updated successfully", "id", id)
	return existing, nil
}

func (s *resourceService) GetOrCreateByName(ctx context.Context, name string) (*model.Resource, error) {
	name = sanitizer.NormalizeName(name)
	if name == "" {
		return nil, apperrors.InvalidInput("Resource name cannot be empty")
	}

	r, err := s.repo.GetOrCreateByName(ctx, name)
	if err != nil {
		s.cfg.Log.Error("Failed to get or create resource", "name", name, "error", err)
		return nil, apperrors.Internal("Failed to resolve resource", err)
	}
	return r, nil
}

func (s *resourceService) mapError(msg, id string, err error) error {
	switch {
	case errors.Is(err, resourceserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Resource", id)
	case errors.Is(err, resourceserrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid resource ID format")
	default:
		s.cfg.Log.Error(msg, "id", id, "error", err)
		return apperrors.Internal(msg, err)
	}
}

func validationError(msg string, err error) error {
	details := map[string]any{"error": err.Error()}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		details["fields"] = fieldErrs
	}
	return apperrors.Validation(msg, details)
}
