package handler

import (
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"slotkeeper/internal/slots/service"
	apperrors "slotkeeper/pkg/errors"
	httputil "slotkeeper/pkg/http"
	"slotkeeper/pkg/logger"
	"slotkeeper/pkg/middleware"
	"slotkeeper/pkg/model"
)

type SlotHandler struct {
	service      service.SlotService
	log          *logger.Logger
	location     *time.Location
	importSecret string
}

// NewSlotHandler builds the slot routes. The signed import route is only
// registered when importSecret is set.
func NewSlotHandler(service service.SlotService, log *logger.Logger, location *time.Location, importSecret string) *SlotHandler {
	return &SlotHandler{
		service:      service,
		log:          log,
		location:     location,
		importSecret: importSecret,
	}
}

type batchResponse struct {
	CreatedCount int                  `json:"created_count"`
	SkippedCount int                  `json:"skipped_count"`
	Created      []*model.Slot        `json:"created"`
	Skipped      []model.SkippedEntry `json:"skipped"`
}

func newBatchResponse(result *model.BatchResult) batchResponse {
	resp := batchResponse{
		CreatedCount: len(result.Created),
		SkippedCount: len(result.Skipped),
		Created:      result.Created,
		Skipped:      result.Skipped,
	}
	if resp.Created == nil {
		resp.Created = []*model.Slot{}
	}
	if resp.Skipped == nil {
		resp.Skipped = []model.SkippedEntry{}
	}
	return resp
}

func (h *SlotHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.SlotRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Create", err)
		return
	}

	slot, err := h.service.CreateSlot(r.Context(), &req)
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, slot); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *SlotHandler) CreateBatch(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var entries []model.BatchEntry
	if err := httputil.DecodeJSON(r, &entries); err != nil {
		h.writeError(w, "CreateBatch", err)
		return
	}

	result, err := h.service.CreateSlotsBatch(r.Context(), entries)
	if err != nil {
		h.writeError(w, "CreateBatch", err)
		return
	}

	if err := httputil.WriteSuccess(w, newBatchResponse(result)); err != nil {
		h.log.Error("failed to write success response", "handler", "CreateBatch", "operation", "WriteSuccess", "error", err)
	}
}

func (h *SlotHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	if id == "" {
		h.writeError(w, "GetByID", apperrors.InvalidInput("ID parameter is required"))
		return
	}

	slot, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, slot); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

// ListByDate answers ?date=YYYY-MM-DD&resource_id=. A bad date lists today.
func (h *SlotHandler) ListByDate(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	query := r.URL.Query()
	seq, err := h.service.ListByDate(r.Context(), query.Get("resource_id"), query.Get("date"))
	if err != nil {
		h.writeError(w, "ListByDate", err)
		return
	}

	var slots []*model.Slot
	for slot, err := range seq {
		if err != nil {
			h.writeError(w, "ListByDate", err)
			return
		}
		slots = append(slots, slot)
	}

	if err := httputil.WriteList(w, slots); err != nil {
		h.log.Error("failed to write list response", "handler", "ListByDate", "operation", "WriteList", "error", err)
	}
}

func (h *SlotHandler) Calendar(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	query := r.URL.Query()
	from, ok := h.parseBound(query.Get("from"))
	if !ok {
		h.writeError(w, "Calendar", apperrors.InvalidInput("from must be a date (YYYY-MM-DD) or an RFC3339 timestamp"))
		return
	}
	to, ok := h.parseBound(query.Get("to"))
	if !ok {
		h.writeError(w, "Calendar", apperrors.InvalidInput("to must be a date (YYYY-MM-DD) or an RFC3339 timestamp"))
		return
	}

	calendar, err := h.service.Calendar(r.Context(), query.Get("resource_id"), from, to)
	if err != nil {
		h.writeError(w, "Calendar", err)
		return
	}

	if err := httputil.WriteList(w, calendar); err != nil {
		h.log.Error("failed to write list response", "handler", "Calendar", "operation", "WriteList", "error", err)
	}
}

func (h *SlotHandler) parseBound(value string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, true
	}
	return httputil.ParseDate(value, h.location)
}

func (h *SlotHandler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	if id == "" {
		h.writeError(w, "Delete", apperrors.InvalidInput("ID parameter is required"))
		return
	}

	if _, err := h.service.DeleteSlot(r.Context(), id); err != nil {
		h.writeError(w, "Delete", err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *SlotHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *SlotHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/slots", h.ListByDate)
	router.POST("/api/v1/slots", middleware.StaffOnly(h.Create))
	router.POST("/api/v1/slots/batch", middleware.StaffOnly(h.CreateBatch))
	router.GET("/api/v1/slots/calendar", middleware.StaffOnly(h.Calendar))
	router.GET("/api/v1/slots/id/:id", h.GetByID)
	router.DELETE("/api/v1/slots/id/:id", middleware.StaffOnly(h.Delete))

	if h.importSecret != "" {
		router.POST("/api/v1/slots/import", middleware.SignatureVerification(h.importSecret, h.log, h.CreateBatch))
	}
}
