package handler

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"slotkeeper/internal/bookings/service"
	"slotkeeper/pkg/auth"
	apperrors "slotkeeper/pkg/errors"
	httputil "slotkeeper/pkg/http"
	"slotkeeper/pkg/logger"
	"slotkeeper/pkg/middleware"
)

type BookingHandler struct {
	service service.BookingService
	log     *logger.Logger
}

func NewBookingHandler(service service.BookingService, log *logger.Logger) *BookingHandler {
	return &BookingHandler{
		service: service,
		log:     log,
	}
}

func (h *BookingHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	if id == "" {
		h.writeError(w, "GetByID", apperrors.InvalidInput("ID parameter is required"))
		return
	}

	booking, err := h.service.GetByID(r.Context(), id, auth.RequesterFromContext(r.Context()))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) GetBySlot(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	slotID := ps.ByName("slot_id")
	if slotID == "" {
		h.writeError(w, "GetBySlot", apperrors.InvalidInput("slot_id parameter is required"))
		return
	}

	booking, err := h.service.GetBySlot(r.Context(), slotID)
	if err != nil {
		h.writeError(w, "GetBySlot", err)
		return
	}

	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write success response", "handler", "GetBySlot", "operation", "WriteSuccess", "error", err)
	}
}

// Upcoming lists the caller's own bookings. Staff see everyone's, or one
// holder's with ?holder=.
func (h *BookingHandler) Upcoming(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	requester := auth.RequesterFromContext(r.Context())
	holder := requester.ID
	if requester.Staff {
		holder = r.URL.Query().Get("holder")
	}

	bookings, err := h.service.Upcoming(r.Context(), holder)
	if err != nil {
		h.writeError(w, "Upcoming", err)
		return
	}

	if err := httputil.WriteList(w, bookings); err != nil {
		h.log.Error("failed to write list response", "handler", "Upcoming", "operation", "WriteList", "error", err)
	}
}

func (h *BookingHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *BookingHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/bookings/upcoming", middleware.RequireRequester(h.Upcoming))
	router.GET("/api/v1/bookings/id/:id", middleware.RequireRequester(h.GetByID))
	router.GET("/api/v1/bookings/slot/:slot_id", middleware.StaffOnly(h.GetBySlot))
}
