package service

import (
	"context"
	"errors"
	bookingserrors "slotkeeper/internal/bookings/errors"
	"slotkeeper/internal/bookings/repository"
	"slotkeeper/pkg/config"
	apperrors "slotkeeper/pkg/errors"
	"slotkeeper/pkg/model"
	"slotkeeper/pkg/sanitizer"
)

// BookingService is the read side of the ledger.
type BookingService interface {
	GetByID(ctx context.Context, id string, requester model.Requester) (*model.Booking, error)
	GetBySlot(ctx context.Context, slotID string) (*model.Booking, error)
	Upcoming(ctx context.Context, holder string) ([]*model.Booking, error)
}

type bookingService struct {
	repo   repository.BookingRepository
	policy model.AccessPolicy
	cfg    *config.Config
}

// NewBookingService uses model.HolderOrStaff when policy is nil.
func NewBookingService(repo repository.BookingRepository, policy model.AccessPolicy, cfg *config.Config) BookingService {
	if policy == nil {
		policy = model.HolderOrStaff
	}
	return &bookingService{
		repo:   repo,
		policy: policy,
		cfg:    cfg,
	}
}

// GetByID hides bookings the requester may not see behind NotFound.
func (s *bookingService) GetByID(ctx context.Context, id string, requester model.Requester) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapError("Failed to retrieve booking", id, err)
	}
	if !s.policy(requester, booking) {
		s.cfg.Log.FromContext(ctx).Debug("Booking hidden from requester", "id", id, "requester", requester.ID)
		return nil, apperrors.NotFoundWithID("Booking", id)
	}
	return booking, nil
}

func (s *bookingService) GetBySlot(ctx context.Context, slotID string) (*model.Booking, error) {
	if slotID == "" {
		return nil, apperrors.InvalidInput("Slot ID cannot be empty")
	}

	booking, err := s.repo.FindBySlot(ctx, slotID)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return nil, apperrors.NotFound("Booking").WithDetails(map[string]any{"slot_id": slotID})
		}
		return nil, s.mapError("Failed to retrieve booking", slotID, err)
	}
	return booking, nil
}

func (s *bookingService) Upcoming(ctx context.Context, holder string) ([]*model.Booking, error) {
	holder = sanitizer.NormalizeName(holder)
	bookings, err := s.repo.FindUpcoming(ctx, holder, s.cfg.Clock.Now())
	if err != nil {
		s.cfg.Log.Error("Failed to list upcoming bookings", "holder", holder, "error", err)
		return nil, apperrors.Internal("Failed to retrieve bookings", err)
	}
	return bookings, nil
}

func (s *bookingService) mapError(msg, id string, err error) error {
	switch {
	case errors.Is(err, bookingserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Booking", id)
	case errors.Is(err, bookingserrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid booking ID format")
	default:
		s.cfg.Log.Error(msg, "id", id, "error", err)
		return apperrors.Internal(msg, err)
	}
}
