package service

import (
	"context"
	"errors"
	"net/http"
	bookingserrors "slotkeeper/internal/bookings/errors"
	"slotkeeper/internal/bookings/repository"
	"slotkeeper/internal/reservations/validator"
	"slotkeeper/pkg/config"
	"slotkeeper/pkg/db"
	apperrors "slotkeeper/pkg/errors"
	"slotkeeper/pkg/events"
	"slotkeeper/pkg/model"
	"slotkeeper/pkg/obs"
	"slotkeeper/pkg/sanitizer"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "slotkeeper/reservations"

	msgSlotUnavailable = "This time slot is no longer available"
	msgNoBooking       = "No booking found for this slot"
	msgBusy            = "Slot is busy, please retry"
)

// Engine is the only path that books or frees a slot.
type Engine interface {
	Book(ctx context.Context, slotID, holder, notes string) (*model.Booking, error)
	Cancel(ctx context.Context, bookingID string, requester model.Requester) (*model.FreedSlot, error)
	CancelBySlot(ctx context.Context, slotID string) (*model.Booking, error)
}

type engine struct {
	repo      repository.BookingRepository
	validator *validator.ReservationValidator
	publisher events.Publisher
	policy    model.AccessPolicy
	tracer    trace.Tracer
	cfg       *config.Config
}

// NewEngine uses model.HolderOrStaff to authorize cancellations when policy
// is nil.
func NewEngine(
	repo repository.BookingRepository,
	validator *validator.ReservationValidator,
	publisher events.Publisher,
	policy model.AccessPolicy,
	cfg *config.Config,
) Engine {
	if policy == nil {
		policy = model.HolderOrStaff
	}
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &engine{
		repo:      repo,
		validator: validator,
		publisher: publisher,
		policy:    policy,
		tracer:    obs.Tracer(tracerName),
		cfg:       cfg,
	}
}

func (e *engine) Book(ctx context.Context, slotID, holder, notes string) (booking *model.Booking, err error) {
	ctx, span := e.tracer.Start(ctx, "reservations.Book", trace.WithAttributes(attribute.String("slot.id", slotID)))
	defer func() { endSpan(span, err) }()

	req := &model.BookRequest{
		SlotID: strings.TrimSpace(slotID),
		Holder: sanitizer.NormalizeName(holder),
		Notes:  sanitizer.NormalizeNotes(notes),
	}
	if err := e.validator.Validate(req); err != nil {
		return nil, invalidRequest(err)
	}

	booking = &model.Booking{
		SlotID: req.SlotID,
		Holder: req.Holder,
		Notes:  req.Notes,
	}
	if err := e.repo.Reserve(ctx, booking); err != nil {
		return nil, e.mapError(ctx, "Failed to book slot", req.SlotID, err)
	}

	span.SetAttributes(attribute.String("booking.id", booking.ID))
	e.cfg.Log.FromContext(ctx).Info("Booking created successfully",
		"id", booking.ID,
		"slot_id", booking.SlotID,
		"holder", booking.Holder,
		"start", booking.SlotStart,
	)
	events.Dispatch(ctx, e.publisher, e.cfg.Log, events.Event{
		Type:       events.BookingCreated,
		Key:        booking.SlotID,
		OccurredAt: e.cfg.Clock.Now(),
		Payload:    booking,
	})
	return booking, nil
}

// Cancel frees the booking's slot when the engine's access policy admits
// requester. Bookings the requester may not touch are reported as missing.
func (e *engine) Cancel(ctx context.Context, bookingID string, requester model.Requester) (freed *model.FreedSlot, err error) {
	ctx, span := e.tracer.Start(ctx, "reservations.Cancel", trace.WithAttributes(
		attribute.String("booking.id", bookingID),
		attribute.Bool("requester.staff", requester.Staff),
	))
	defer func() { endSpan(span, err) }()

	if strings.TrimSpace(bookingID) == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	allow := func(b *model.Booking) bool { return e.policy(requester, b) }
	booking, err := e.repo.Release(ctx, bookingID, allow)
	if err != nil {
		return nil, e.mapError(ctx, "Failed to cancel booking", bookingID, err)
	}

	e.cfg.Log.FromContext(ctx).Info("Booking cancelled successfully",
		"id", booking.ID,
		"slot_id", booking.SlotID,
		"requester", requester.ID,
	)
	e.publishCancelled(ctx, booking)
	return booking.Freed(), nil
}

func (e *engine) CancelBySlot(ctx context.Context, slotID string) (booking *model.Booking, err error) {
	ctx, span := e.tracer.Start(ctx, "reservations.CancelBySlot", trace.WithAttributes(attribute.String("slot.id", slotID)))
	defer func() { endSpan(span, err) }()

	if strings.TrimSpace(slotID) == "" {
		return nil, apperrors.InvalidInput("Slot ID cannot be empty")
	}

	booking, err = e.repo.ReleaseBySlot(ctx, slotID)
	if err != nil {
		return nil, e.mapError(ctx, "Failed to cancel slot booking", slotID, err)
	}

	e.cfg.Log.FromContext(ctx).Info("Slot booking cancelled successfully",
		"id", booking.ID,
		"slot_id", booking.SlotID,
		"holder", booking.Holder,
	)
	e.publishCancelled(ctx, booking)
	return booking, nil
}

func (e *engine) publishCancelled(ctx context.Context, booking *model.Booking) {
	events.Dispatch(ctx, e.publisher, e.cfg.Log, events.Event{
		Type:       events.BookingCancelled,
		Key:        booking.SlotID,
		OccurredAt: e.cfg.Clock.Now(),
		Payload:    booking,
	})
}

func (e *engine) mapError(ctx context.Context, msg, id string, err error) error {
	switch {
	case errors.Is(err, bookingserrors.ErrSlotUnavailable):
		return apperrors.Conflict(msgSlotUnavailable)
	case errors.Is(err, bookingserrors.ErrSlotNotFound):
		return apperrors.NotFoundWithID("Slot", id)
	case errors.Is(err, bookingserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Booking", id)
	case errors.Is(err, bookingserrors.ErrNoBooking):
		return apperrors.New(apperrors.CodeNotFound, msgNoBooking, http.StatusNotFound).
			WithDetails(map[string]any{"reason": "no_booking", "slot_id": id})
	case errors.Is(err, bookingserrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid ID format")
	case errors.Is(err, db.ErrTransient):
		e.cfg.Log.FromContext(ctx).Warn(msg, "id", id, "error", err)
		return apperrors.Transient(msgBusy, err)
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.Timeout("Reservation timed out")
	default:
		e.cfg.Log.FromContext(ctx).Error(msg, "id", id, "error", err)
		return apperrors.Internal(msg, err)
	}
}

func invalidRequest(err error) error {
	if validator.IsSlotIDError(err) {
		return apperrors.InvalidInput("Invalid slot ID format")
	}
	details := map[string]any{"error": err.Error()}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		details["fields"] = fieldErrs
	}
	return apperrors.InvalidInput("Invalid reservation request").WithDetails(details)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
