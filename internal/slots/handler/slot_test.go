package handler

import (
	"context"
	"encoding/json"
	"iter"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slotkeeper/pkg/auth"
	apperrors "slotkeeper/pkg/errors"
	"slotkeeper/pkg/logger"
	"slotkeeper/pkg/middleware"
	"slotkeeper/pkg/model"
)

type mockSlotService struct {
	createSlotFunc  func(ctx context.Context, req *model.SlotRequest) (*model.Slot, error)
	createBatchFunc func(ctx context.Context, entries []model.BatchEntry) (*model.BatchResult, error)
	deleteSlotFunc  func(ctx context.Context, id string) (*model.Booking, error)
	listByDateFunc  func(ctx context.Context, resourceID, date string) (iter.Seq2[*model.Slot, error], error)
	calendarFunc    func(ctx context.Context, resourceID string, from, to time.Time) ([]model.CalendarEvent, error)
}

func (m *mockSlotService) CreateSlot(ctx context.Context, req *model.SlotRequest) (*model.Slot, error) {
	if m.createSlotFunc != nil {
		return m.createSlotFunc(ctx, req)
	}
	return &model.Slot{ID: "slot-1"}, nil
}

func (m *mockSlotService) CreateSlotsBatch(ctx context.Context, entries []model.BatchEntry) (*model.BatchResult, error) {
	if m.createBatchFunc != nil {
		return m.createBatchFunc(ctx, entries)
	}
	return &model.BatchResult{}, nil
}

func (m *mockSlotService) DeleteSlot(ctx context.Context, id string) (*model.Booking, error) {
	if m.deleteSlotFunc != nil {
		return m.deleteSlotFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockSlotService) GetByID(_ context.Context, id string) (*model.Slot, error) {
	return &model.Slot{ID: id}, nil
}

func (m *mockSlotService) ListByDate(ctx context.Context, resourceID, date string) (iter.Seq2[*model.Slot, error], error) {
	if m.listByDateFunc != nil {
		return m.listByDateFunc(ctx, resourceID, date)
	}
	return func(func(*model.Slot, error) bool) {}, nil
}

func (m *mockSlotService) Calendar(ctx context.Context, resourceID string, from, to time.Time) ([]model.CalendarEvent, error) {
	if m.calendarFunc != nil {
		return m.calendarFunc(ctx, resourceID, from, to)
	}
	return nil, nil
}

const importSecret = "import-secret"

func newRouter(svc *mockSlotService) *httprouter.Router {
	router := httprouter.New()
	NewSlotHandler(svc, logger.Discard(), time.UTC, importSecret).RegisterRoutes(router)
	return router
}

func asStaff(r *http.Request) *http.Request {
	return r.WithContext(auth.WithRequester(r.Context(), model.Requester{ID: "staff-1", Staff: true}))
}

func TestCreate_ReturnsCreated(t *testing.T) {
	var got *model.SlotRequest
	router := newRouter(&mockSlotService{
		createSlotFunc: func(_ context.Context, req *model.SlotRequest) (*model.Slot, error) {
			got = req
			return &model.Slot{ID: "slot-1", Duration: time.Hour}, nil
		},
	})

	body := `{"table":"Table 1","date":"2025-08-18","time":"12:00","duration_minutes":60}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, asStaff(httptest.NewRequest(http.MethodPost, "/api/v1/slots", strings.NewReader(body))))

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Table 1", got.ResourceName)
	assert.Equal(t, 60, got.DurationMinutes)
	assert.Contains(t, rec.Body.String(), `"duration_minutes":60`)
}

func TestCreate_Conflict(t *testing.T) {
	router := newRouter(&mockSlotService{
		createSlotFunc: func(context.Context, *model.SlotRequest) (*model.Slot, error) {
			return nil, apperrors.Conflict("A slot already exists for this item at this time")
		},
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/slots", strings.NewReader(`{"table":"Table 1","date":"2025-08-18","time":"12:00"}`))
	router.ServeHTTP(rec, asStaff(req))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "A slot already exists for this item at this time")
}

func TestStaffRoutes_RejectCustomers(t *testing.T) {
	router := newRouter(&mockSlotService{})
	customer := model.Requester{ID: "customer-1"}

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/v1/slots"},
		{http.MethodPost, "/api/v1/slots/batch"},
		{http.MethodGet, "/api/v1/slots/calendar?from=2025-08-18&to=2025-08-19"},
		{http.MethodDelete, "/api/v1/slots/id/abc"},
	}

	for _, rt := range routes {
		t.Run(rt.method+" "+rt.path, func(t *testing.T) {
			req := httptest.NewRequest(rt.method, rt.path, strings.NewReader(`{}`))
			req = req.WithContext(auth.WithRequester(req.Context(), customer))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusForbidden, rec.Code)
		})
	}
}

func TestCreateBatch_Counts(t *testing.T) {
	var received []model.BatchEntry
	router := newRouter(&mockSlotService{
		createBatchFunc: func(_ context.Context, entries []model.BatchEntry) (*model.BatchResult, error) {
			received = entries
			return &model.BatchResult{
				Created: []*model.Slot{{ID: "s1"}},
				Skipped: []model.SkippedEntry{{Table: "Table 1", Reason: model.SkipReasonDuplicate}},
			}, nil
		},
	})

	body := `[{"table":"Table 1","date":"2025-08-18","time":"12:00"},{"table":"Table 1","date":"2025-08-18","time":"12:00"}]`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, asStaff(httptest.NewRequest(http.MethodPost, "/api/v1/slots/batch", strings.NewReader(body))))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, received, 2)

	var resp struct {
		Data batchResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Data.CreatedCount)
	assert.Equal(t, 1, resp.Data.SkippedCount)
}

func TestImport_RequiresSignature(t *testing.T) {
	router := newRouter(&mockSlotService{})
	body := `[{"table":"Table 1","date":"2025-08-18","time":"12:00"}]`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/slots/import", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/slots/import", strings.NewReader(body))
	req.Header.Set(middleware.SignatureHeader, "sha256="+middleware.Sign([]byte(body), importSecret))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":{"created_count":0,"skipped_count":0,"created":[],"skipped":[]}}`, rec.Body.String())
}

func TestImport_NotRegisteredWithoutSecret(t *testing.T) {
	router := httprouter.New()
	NewSlotHandler(&mockSlotService{}, logger.Discard(), time.UTC, "").RegisterRoutes(router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/slots/import", strings.NewReader(`[]`)))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListByDate_PassesQuery(t *testing.T) {
	var gotResource, gotDate string
	router := newRouter(&mockSlotService{
		listByDateFunc: func(_ context.Context, resourceID, date string) (iter.Seq2[*model.Slot, error], error) {
			gotResource, gotDate = resourceID, date
			return func(yield func(*model.Slot, error) bool) {
				yield(&model.Slot{ID: "s1"}, nil)
			}, nil
		},
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/slots?date=2025-08-18&resource_id=r1", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "r1", gotResource)
	assert.Equal(t, "2025-08-18", gotDate)
	assert.Contains(t, rec.Body.String(), `"count":1`)
}

func TestListByDate_IterationError(t *testing.T) {
	router := newRouter(&mockSlotService{
		listByDateFunc: func(context.Context, string, string) (iter.Seq2[*model.Slot, error], error) {
			return func(yield func(*model.Slot, error) bool) {
				if !yield(&model.Slot{ID: "s1"}, nil) {
					return
				}
				yield(nil, apperrors.Internal("Failed to retrieve slots", nil))
			}, nil
		},
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/slots", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestCalendar_ParsesBounds(t *testing.T) {
	var gotFrom, gotTo time.Time
	router := newRouter(&mockSlotService{
		calendarFunc: func(_ context.Context, _ string, from, to time.Time) ([]model.CalendarEvent, error) {
			gotFrom, gotTo = from, to
			return []model.CalendarEvent{{Title: "Table 1 (Available)"}}, nil
		},
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/slots/calendar?from=2025-08-18&to=2025-08-25T00:00:00%2B07:00", nil)
	router.ServeHTTP(rec, asStaff(req))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, time.Date(2025, 8, 18, 0, 0, 0, 0, time.UTC), gotFrom)
	assert.True(t, time.Date(2025, 8, 24, 17, 0, 0, 0, time.UTC).Equal(gotTo))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, asStaff(httptest.NewRequest(http.MethodGet, "/api/v1/slots/calendar?from=soon", nil)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDelete_NoContent(t *testing.T) {
	var deleted string
	router := newRouter(&mockSlotService{
		deleteSlotFunc: func(_ context.Context, id string) (*model.Booking, error) {
			deleted = id
			return &model.Booking{ID: "b1"}, nil
		},
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, asStaff(httptest.NewRequest(http.MethodDelete, "/api/v1/slots/id/slot-9", nil)))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "slot-9", deleted)
}
