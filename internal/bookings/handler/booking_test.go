package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slotkeeper/pkg/auth"
	apperrors "slotkeeper/pkg/errors"
	"slotkeeper/pkg/logger"
	"slotkeeper/pkg/model"
)

type mockBookingService struct {
	getByIDFunc  func(ctx context.Context, id string, requester model.Requester) (*model.Booking, error)
	upcomingFunc func(ctx context.Context, holder string) ([]*model.Booking, error)
}

func (m *mockBookingService) GetByID(ctx context.Context, id string, requester model.Requester) (*model.Booking, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id, requester)
	}
	return &model.Booking{ID: id}, nil
}

func (m *mockBookingService) GetBySlot(_ context.Context, slotID string) (*model.Booking, error) {
	return &model.Booking{ID: "b1", SlotID: slotID}, nil
}

func (m *mockBookingService) Upcoming(ctx context.Context, holder string) ([]*model.Booking, error) {
	if m.upcomingFunc != nil {
		return m.upcomingFunc(ctx, holder)
	}
	return nil, nil
}

func newRouter(svc *mockBookingService) *httprouter.Router {
	router := httprouter.New()
	NewBookingHandler(svc, logger.Discard()).RegisterRoutes(router)
	return router
}

func withRequester(r *http.Request, requester model.Requester) *http.Request {
	return r.WithContext(auth.WithRequester(r.Context(), requester))
}

func TestUpcoming_HolderScoping(t *testing.T) {
	tests := []struct {
		name       string
		requester  model.Requester
		query      string
		wantHolder string
	}{
		{"customer sees own", model.Requester{ID: "alice"}, "?holder=bob", "alice"},
		{"staff sees all", model.Requester{ID: "staff-1", Staff: true}, "", ""},
		{"staff filters", model.Requester{ID: "staff-1", Staff: true}, "?holder=bob", "bob"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotHolder = "unset"
			router := newRouter(&mockBookingService{
				upcomingFunc: func(_ context.Context, holder string) ([]*model.Booking, error) {
					gotHolder = holder
					return []*model.Booking{}, nil
				},
			})

			rec := httptest.NewRecorder()
			req := withRequester(httptest.NewRequest(http.MethodGet, "/api/v1/bookings/upcoming"+tt.query, nil), tt.requester)
			router.ServeHTTP(rec, req)

			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.wantHolder, gotHolder)
		})
	}
}

func TestUpcoming_RequiresRequester(t *testing.T) {
	router := newRouter(&mockBookingService{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/bookings/upcoming", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetByID_PassesRequester(t *testing.T) {
	router := newRouter(&mockBookingService{
		getByIDFunc: func(_ context.Context, id string, requester model.Requester) (*model.Booking, error) {
			if requester.ID != "alice" {
				return nil, apperrors.NotFoundWithID("Booking", id)
			}
			return &model.Booking{ID: id, Holder: "alice"}, nil
		},
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, withRequester(httptest.NewRequest(http.MethodGet, "/api/v1/bookings/id/b1", nil), model.Requester{ID: "alice"}))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, withRequester(httptest.NewRequest(http.MethodGet, "/api/v1/bookings/id/b1", nil), model.Requester{ID: "mallory"}))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetBySlot_StaffOnly(t *testing.T) {
	router := newRouter(&mockBookingService{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, withRequester(httptest.NewRequest(http.MethodGet, "/api/v1/bookings/slot/s1", nil), model.Requester{ID: "alice"}))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, withRequester(httptest.NewRequest(http.MethodGet, "/api/v1/bookings/slot/s1", nil), model.Requester{ID: "staff-1", Staff: true}))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"slot_id":"s1"`)
}
