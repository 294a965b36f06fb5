package handler

import (
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"

	"slotkeeper/internal/reservations/service"
	"slotkeeper/pkg/auth"
	apperrors "slotkeeper/pkg/errors"
	httputil "slotkeeper/pkg/http"
	"slotkeeper/pkg/logger"
	"slotkeeper/pkg/middleware"
	"slotkeeper/pkg/model"
)

type ReservationHandler struct {
	engine service.Engine
	log    *logger.Logger
}

func NewReservationHandler(engine service.Engine, log *logger.Logger) *ReservationHandler {
	return &ReservationHandler{
		engine: engine,
		log:    log,
	}
}

// Book reserves a slot for the caller. Staff may name another holder, such
// as a walk-in guest.
func (h *ReservationHandler) Book(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.BookRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Book", err)
		return
	}

	requester := auth.RequesterFromContext(r.Context())
	booking, err := h.engine.Book(r.Context(), req.SlotID, holderFor(requester, req.Holder), req.Notes)
	if err != nil {
		h.writeError(w, "Book", err)
		return
	}

	if err := httputil.WriteCreated(w, booking); err != nil {
		h.log.Error("failed to write created response", "handler", "Book", "operation", "WriteCreated", "error", err)
	}
}

func (h *ReservationHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	if id == "" {
		h.writeError(w, "Cancel", apperrors.InvalidInput("ID parameter is required"))
		return
	}

	freed, err := h.engine.Cancel(r.Context(), id, auth.RequesterFromContext(r.Context()))
	if err != nil {
		h.writeError(w, "Cancel", err)
		return
	}

	if err := httputil.WriteSuccess(w, freed); err != nil {
		h.log.Error("failed to write success response", "handler", "Cancel", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReservationHandler) CancelBySlot(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	slotID := ps.ByName("id")
	if slotID == "" {
		h.writeError(w, "CancelBySlot", apperrors.InvalidInput("ID parameter is required"))
		return
	}

	booking, err := h.engine.CancelBySlot(r.Context(), slotID)
	if err != nil {
		h.writeError(w, "CancelBySlot", err)
		return
	}

	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write success response", "handler", "CancelBySlot", "operation", "WriteSuccess", "error", err)
	}
}

func holderFor(requester model.Requester, requested string) string {
	if requester.Staff && strings.TrimSpace(requested) != "" {
		return requested
	}
	return requester.ID
}

func (h *ReservationHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *ReservationHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/reservations", middleware.RequireRequester(h.Book))
	router.DELETE("/api/v1/reservations/:id", middleware.RequireRequester(h.Cancel))
	router.DELETE("/api/v1/slots/id/:id/reservation", middleware.StaffOnly(h.CancelBySlot))
}
