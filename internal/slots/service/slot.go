package service

import (
	"context"
	"errors"
	"iter"
	"slices"
	resourcerepo "slotkeeper/internal/resources/repository"
	slotserrors "slotkeeper/internal/slots/errors"
	"slotkeeper/internal/slots/repository"
	"slotkeeper/internal/slots/validator"
	"slotkeeper/pkg/clock"
	"slotkeeper/pkg/config"
	"slotkeeper/pkg/db"
	apperrors "slotkeeper/pkg/errors"
	"slotkeeper/pkg/events"
	httputil "slotkeeper/pkg/http"
	"slotkeeper/pkg/model"
	"slotkeeper/pkg/sanitizer"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxCalendarRange bounds a single calendar query.
const MaxCalendarRange = 93 * 24 * time.Hour

type SlotService interface {
	CreateSlot(ctx context.Context, req *model.SlotRequest) (*model.Slot, error)
	CreateSlotsBatch(ctx context.Context, entries []model.BatchEntry) (*model.BatchResult, error)
	DeleteSlot(ctx context.Context, id string) (*model.Booking, error)
	GetByID(ctx context.Context, id string) (*model.Slot, error)
	ListByDate(ctx context.Context, resourceID, date string) (iter.Seq2[*model.Slot, error], error)
	Calendar(ctx context.Context, resourceID string, from, to time.Time) ([]model.CalendarEvent, error)
}

type slotService struct {
	repo      repository.SlotRepository
	resources resourcerepo.ResourceRepository
	validator *validator.SlotValidator
	publisher events.Publisher
	cfg       *config.Config
}

func NewSlotService(
	repo repository.SlotRepository,
	resources resourcerepo.ResourceRepository,
	validator *validator.SlotValidator,
	publisher events.Publisher,
	cfg *config.Config,
) SlotService {
	return &slotService{
		repo:      repo,
		resources: resources,
		validator: validator,
		publisher: publisher,
		cfg:       cfg,
	}
}

func (s *slotService) CreateSlot(ctx context.Context, req *model.SlotRequest) (*model.Slot, error) {
	req.ResourceName = sanitizer.NormalizeName(req.ResourceName)
	if err := s.validator.Validate(req); err != nil {
		return nil, invalidInput("Invalid slot request", err)
	}

	start, err := s.resolveStart(req)
	if err != nil {
		return nil, err
	}
	if req.DurationMinutes < 0 {
		return nil, apperrors.InvalidInput("Slot duration must be positive")
	}

	slot := &model.Slot{
		ResourceID: req.ResourceID,
		Start:      start,
		Duration:   s.duration(req.DurationMinutes),
	}
	if err := s.repo.Create(ctx, slot, req.ResourceName); err != nil {
		return nil, s.mapCreateError(req, err)
	}

	s.cfg.Log.Info("Slot created successfully",
		"id", slot.ID,
		"resource_id", slot.ResourceID,
		"start", slot.Start,
		"duration", slot.Duration,
	)
	events.Dispatch(ctx, s.publisher, s.cfg.Log, events.Event{
		Type:       events.SlotsCreated,
		Key:        slot.ResourceID,
		OccurredAt: s.cfg.Clock.Now(),
		Payload:    []*model.Slot{slot},
	})
	return slot, nil
}

func (s *slotService) resolveStart(req *model.SlotRequest) (time.Time, error) {
	if req.Start != nil {
		if req.Start.IsZero() {
			return time.Time{}, apperrors.InvalidInput("Slot start cannot be empty")
		}
		return *req.Start, nil
	}
	start, err := httputil.ParseDateTime(req.Date, req.Time, s.cfg.Location)
	if err != nil {
		return time.Time{}, apperrors.InvalidInput("Invalid date or time format")
	}
	return start, nil
}

func (s *slotService) duration(minutes int) time.Duration {
	if minutes == 0 {
		return s.cfg.DefaultSlotDuration
	}
	return time.Duration(minutes) * time.Minute
}

// CreateSlotsBatch inserts every well-formed entry. Malformed entries are
// dropped without a trace; duplicates are reported as skipped.
func (s *slotService) CreateSlotsBatch(ctx context.Context, entries []model.BatchEntry) (*model.BatchResult, error) {
	drafts := make([]model.SlotDraft, 0, len(entries))
	for _, e := range entries {
		if d, ok := s.draft(e); ok {
			drafts = append(drafts, d)
		}
	}
	if dropped := len(entries) - len(drafts); dropped > 0 {
		s.cfg.Log.Debug("Dropped malformed batch entries", "dropped", dropped, "total", len(entries))
	}
	if len(drafts) == 0 {
		return &model.BatchResult{}, nil
	}

	result, err := s.repo.CreateBatch(ctx, drafts)
	if err != nil {
		if errors.Is(err, db.ErrTransient) {
			return nil, apperrors.Transient("Slot store is busy, please retry", err)
		}
		s.cfg.Log.Error("Failed to create slots batch", "entries", len(drafts), "error", err)
		return nil, apperrors.Internal("Failed to create slots", err)
	}

	s.cfg.Log.Info("Slots batch created successfully",
		"created", len(result.Created),
		"skipped", len(result.Skipped),
	)
	if len(result.Created) > 0 {
		events.Dispatch(ctx, s.publisher, s.cfg.Log, events.Event{
			Type:       events.SlotsCreated,
			OccurredAt: s.cfg.Clock.Now(),
			Payload:    result.Created,
		})
	}
	return result, nil
}

func (s *slotService) draft(e model.BatchEntry) (model.SlotDraft, bool) {
	table := sanitizer.NormalizeName(e.Table)
	if table == "" || e.Date == "" || e.Time == "" ||
		e.DurationMinutes < 0 || e.DurationMinutes > model.MaxSlotDurationMinutes {
		return model.SlotDraft{}, false
	}
	start, err := httputil.ParseDateTime(strings.TrimSpace(e.Date), strings.TrimSpace(e.Time), s.cfg.Location)
	if err != nil {
		return model.SlotDraft{}, false
	}
	return model.SlotDraft{
		ResourceName: table,
		Start:        start,
		Duration:     s.duration(e.DurationMinutes),
	}, true
}

// DeleteSlot removes the slot and any booking attached to it.
func (s *slotService) DeleteSlot(ctx context.Context, id string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Slot ID cannot be empty")
	}

	cascaded, err := s.repo.Delete(ctx, id)
	if err != nil {
		return nil, s.mapError("Failed to delete slot", id, err)
	}

	now := s.cfg.Clock.Now()
	s.cfg.Log.Info("Slot deleted successfully", "id", id, "booking_cascaded", cascaded != nil)
	events.Dispatch(ctx, s.publisher, s.cfg.Log, events.Event{
		Type:       events.SlotDeleted,
		Key:        id,
		OccurredAt: now,
		Payload:    map[string]string{"slot_id": id},
	})
	if cascaded != nil {
		s.cfg.Log.Info("Booking cancelled by slot deletion", "id", cascaded.ID, "slot_id", id, "holder", cascaded.Holder)
		events.Dispatch(ctx, s.publisher, s.cfg.Log, events.Event{
			Type:       events.BookingCancelled,
			Key:        id,
			OccurredAt: now,
			Payload:    cascaded,
		})
	}
	return cascaded, nil
}

func (s *slotService) GetByID(ctx context.Context, id string) (*model.Slot, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Slot ID cannot be empty")
	}

	slot, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapError("Failed to retrieve slot", id, err)
	}
	return slot, nil
}

// ListByDate streams the slots starting on date in the calendar location.
// An empty or unparseable date means today.
func (s *slotService) ListByDate(ctx context.Context, resourceID, date string) (iter.Seq2[*model.Slot, error], error) {
	if resourceID != "" {
		if _, err := uuid.Parse(resourceID); err != nil {
			return nil, apperrors.InvalidInput("Invalid resource ID format")
		}
	}

	day, ok := httputil.ParseDate(date, s.cfg.Location)
	if !ok {
		day = s.cfg.Clock.Now()
	}
	from, to := clock.DayBounds(day, s.cfg.Location)

	slots := s.repo.ListBetween(ctx, resourceID, from, to)
	return func(yield func(*model.Slot, error) bool) {
		for slot, err := range slots {
			if err != nil {
				s.cfg.Log.Error("Failed to list slots", "resource_id", resourceID, "from", from, "error", err)
				yield(nil, apperrors.Internal("Failed to retrieve slots", err))
				return
			}
			if !yield(slot, nil) {
				return
			}
		}
	}, nil
}

func (s *slotService) Calendar(ctx context.Context, resourceID string, from, to time.Time) ([]model.CalendarEvent, error) {
	if resourceID != "" {
		if _, err := uuid.Parse(resourceID); err != nil {
			return nil, apperrors.InvalidInput("Invalid resource ID format")
		}
	}
	if !to.After(from) {
		return nil, apperrors.InvalidInput("Calendar range end must be after its start")
	}
	if to.Sub(from) > MaxCalendarRange {
		return nil, apperrors.InvalidInput("Calendar range is too long")
	}

	var slots []*model.Slot
	var resourceIDs []string
	for slot, err := range s.repo.ListBetween(ctx, resourceID, from, to) {
		if err != nil {
			s.cfg.Log.Error("Failed to list calendar slots", "from", from, "to", to, "error", err)
			return nil, apperrors.Internal("Failed to retrieve calendar", err)
		}
		slots = append(slots, slot)
		if !slices.Contains(resourceIDs, slot.ResourceID) {
			resourceIDs = append(resourceIDs, slot.ResourceID)
		}
	}

	resources, err := s.resources.FindByIDs(ctx, resourceIDs)
	if err != nil {
		s.cfg.Log.Error("Failed to resolve calendar resources", "count", len(resourceIDs), "error", err)
		return nil, apperrors.Internal("Failed to retrieve calendar", err)
	}
	names := make(map[string]string, len(resources))
	for _, r := range resources {
		names[r.ID] = r.Name
	}

	calendar := make([]model.CalendarEvent, 0, len(slots))
	for _, slot := range slots {
		calendar = append(calendar, model.NewCalendarEvent(slot, names[slot.ResourceID]))
	}
	return calendar, nil
}

func (s *slotService) mapCreateError(req *model.SlotRequest, err error) error {
	switch {
	case errors.Is(err, slotserrors.ErrDuplicate):
		return apperrors.Conflict("A slot already exists for this item at this time")
	case errors.Is(err, slotserrors.ErrResourceNotFound):
		return apperrors.NotFoundWithID("Resource", req.ResourceID)
	case errors.Is(err, slotserrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid resource ID format")
	case errors.Is(err, db.ErrTransient):
		return apperrors.Transient("Slot store is busy, please retry", err)
	default:
		s.cfg.Log.Error("Failed to create slot",
			"resource_id", req.ResourceID,
			"resource_name", req.ResourceName,
			"error", err,
		)
		return apperrors.Internal("Failed to create slot", err)
	}
}

func (s *slotService) mapError(msg, id string, err error) error {
	switch {
	case errors.Is(err, slotserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Slot", id)
	case errors.Is(err, slotserrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid slot ID format")
	case errors.Is(err, db.ErrTransient):
		return apperrors.Transient("Slot is busy, please retry", err)
	default:
		s.cfg.Log.Error(msg, "id", id, "error", err)
		return apperrors.Internal(msg, err)
	}
}

// Rejected slot requests answer 400 with the field details attached.
func invalidInput(msg string, err error) error {
	details := map[string]any{"error": err.Error()}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		details["fields"] = fieldErrs
	}
	return apperrors.InvalidInput(msg).WithDetails(details)
}
