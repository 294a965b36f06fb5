package service

import (
	"context"
	"errors"
	"fmt"
	bookingserrors "slotkeeper/internal/bookings/errors"
	"slotkeeper/pkg/clock"
	"slotkeeper/pkg/config"
	apperrors "slotkeeper/pkg/errors"
	"slotkeeper/pkg/logger"
	"slotkeeper/pkg/model"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ────────────────────────────────────────────────
// Mock repository for testing
// ────────────────────────────────────────────────

type mockBookingRepository struct {
	findByIDFunc     func(ctx context.Context, id string) (*model.Booking, error)
	findBySlotFunc   func(ctx context.Context, slotID string) (*model.Booking, error)
	findUpcomingFunc func(ctx context.Context, holder string, now time.Time) ([]*model.Booking, error)
}

func (m *mockBookingRepository) Reserve(context.Context, *model.Booking) error {
	return errors.New("not implemented")
}

func (m *mockBookingRepository) Release(context.Context, string, func(*model.Booking) bool) (*model.Booking, error) {
	return nil, errors.New("not implemented")
}

func (m *mockBookingRepository) ReleaseBySlot(context.Context, string) (*model.Booking, error) {
	return nil, errors.New("not implemented")
}

func (m *mockBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, fmt.Errorf("%w: %s", bookingserrors.ErrNotFound, id)
}

func (m *mockBookingRepository) FindBySlot(ctx context.Context, slotID string) (*model.Booking, error) {
	if m.findBySlotFunc != nil {
		return m.findBySlotFunc(ctx, slotID)
	}
	return nil, fmt.Errorf("%w: %s", bookingserrors.ErrNotFound, slotID)
}

func (m *mockBookingRepository) FindUpcoming(ctx context.Context, holder string, now time.Time) ([]*model.Booking, error) {
	if m.findUpcomingFunc != nil {
		return m.findUpcomingFunc(ctx, holder, now)
	}
	return nil, nil
}

var now = time.Date(2025, 8, 18, 9, 0, 0, 0, time.UTC)

func newTestService(repo *mockBookingRepository) BookingService {
	cfg := &config.Config{
		Log:   logger.Discard(),
		Clock: clock.NewFixed(now),
	}
	return NewBookingService(repo, nil, cfg)
}

// ────────────────────────────────────────────────
// Tests
// ────────────────────────────────────────────────

func TestGetByID_OwnershipIsolation(t *testing.T) {
	id := uuid.NewString()
	holder := gofakeit.Username()
	svc := newTestService(&mockBookingRepository{
		findByIDFunc: func(_ context.Context, got string) (*model.Booking, error) {
			return &model.Booking{ID: got, Holder: holder}, nil
		},
	})

	tests := []struct {
		name      string
		requester model.Requester
		visible   bool
	}{
		{"holder", model.Requester{ID: holder}, true},
		{"staff", model.Requester{ID: "staff-1", Staff: true}, true},
		{"other customer", model.Requester{ID: "someone-else"}, false},
		{"anonymous", model.Requester{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			booking, err := svc.GetByID(context.Background(), id, tt.requester)
			if tt.visible {
				require.NoError(t, err)
				assert.Equal(t, id, booking.ID)
				return
			}
			assert.Nil(t, booking)
			assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
		})
	}
}

func TestGetByID_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		repoErr  error
		wantCode string
	}{
		{"not found", bookingserrors.ErrNotFound, apperrors.CodeNotFound},
		{"invalid id", bookingserrors.ErrInvalidID, apperrors.CodeInvalidInput},
		{"store failure", errors.New("boom"), apperrors.CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(&mockBookingRepository{
				findByIDFunc: func(context.Context, string) (*model.Booking, error) { return nil, tt.repoErr },
			})
			_, err := svc.GetByID(context.Background(), "id", model.Requester{ID: "x", Staff: true})
			assert.True(t, apperrors.IsCode(err, tt.wantCode))
		})
	}
}

func TestGetBySlot(t *testing.T) {
	slotID := uuid.NewString()
	svc := newTestService(&mockBookingRepository{
		findBySlotFunc: func(_ context.Context, got string) (*model.Booking, error) {
			if got == slotID {
				return &model.Booking{ID: "b1", SlotID: got}, nil
			}
			return nil, bookingserrors.ErrNotFound
		},
	})

	booking, err := svc.GetBySlot(context.Background(), slotID)
	require.NoError(t, err)
	assert.Equal(t, "b1", booking.ID)

	_, err = svc.GetBySlot(context.Background(), uuid.NewString())
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestUpcoming_UsesClock(t *testing.T) {
	var gotHolder string
	var gotNow time.Time
	svc := newTestService(&mockBookingRepository{
		findUpcomingFunc: func(_ context.Context, holder string, at time.Time) ([]*model.Booking, error) {
			gotHolder, gotNow = holder, at
			return []*model.Booking{{ID: "b1"}}, nil
		},
	})

	bookings, err := svc.Upcoming(context.Background(), "alice")
	require.NoError(t, err)
	assert.Len(t, bookings, 1)
	assert.Equal(t, "alice", gotHolder)
	assert.Equal(t, now, gotNow)
}

func TestUpcoming_NormalizesHolder(t *testing.T) {
	var gotHolder string
	svc := newTestService(&mockBookingRepository{
		findUpcomingFunc: func(_ context.Context, holder string, _ time.Time) ([]*model.Booking, error) {
			gotHolder = holder
			return nil, nil
		},
	})

	_, err := svc.Upcoming(context.Background(), " walk  in ")
	require.NoError(t, err)
	assert.Equal(t, "walk in", gotHolder)
}

func TestUpcoming_StoreFailure(t *testing.T) {
	svc := newTestService(&mockBookingRepository{
		findUpcomingFunc: func(context.Context, string, time.Time) ([]*model.Booking, error) {
			return nil, errors.New("timeout")
		},
	})

	_, err := svc.Upcoming(context.Background(), "")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInternal))
}
