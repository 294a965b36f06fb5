package service

import (
	"context"
	"errors"
	"fmt"
	"iter"
	resourcerepo "slotkeeper/internal/resources/repository"
	slotserrors "slotkeeper/internal/slots/errors"
	"slotkeeper/internal/slots/validator"
	"slotkeeper/pkg/clock"
	"slotkeeper/pkg/config"
	"slotkeeper/pkg/db"
	apperrors "slotkeeper/pkg/errors"
	"slotkeeper/pkg/events"
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
// Mock repositories for testing
// ────────────────────────────────────────────────

type mockSlotRepository struct {
	createFunc      func(ctx context.Context, slot *model.Slot, resourceName string) error
	createBatchFunc func(ctx context.Context, drafts []model.SlotDraft) (*model.BatchResult, error)
	findByIDFunc    func(ctx context.Context, id string) (*model.Slot, error)
	deleteFunc      func(ctx context.Context, id string) (*model.Booking, error)
	listBetweenFunc func(ctx context.Context, resourceID string, from, to time.Time) iter.Seq2[*model.Slot, error]
}

func (m *mockSlotRepository) Create(ctx context.Context, slot *model.Slot, resourceName string) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, slot, resourceName)
	}
	slot.ID = uuid.NewString()
	return nil
}

func (m *mockSlotRepository) CreateBatch(ctx context.Context, drafts []model.SlotDraft) (*model.BatchResult, error) {
	if m.createBatchFunc != nil {
		return m.createBatchFunc(ctx, drafts)
	}
	return &model.BatchResult{}, nil
}

func (m *mockSlotRepository) FindByID(ctx context.Context, id string) (*model.Slot, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, fmt.Errorf("%w: %s", slotserrors.ErrNotFound, id)
}

func (m *mockSlotRepository) Delete(ctx context.Context, id string) (*model.Booking, error) {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockSlotRepository) ListBetween(ctx context.Context, resourceID string, from, to time.Time) iter.Seq2[*model.Slot, error] {
	if m.listBetweenFunc != nil {
		return m.listBetweenFunc(ctx, resourceID, from, to)
	}
	return func(func(*model.Slot, error) bool) {}
}

type mockResourceRepository struct {
	resourcerepo.ResourceRepository
	findByIDsFunc func(ctx context.Context, ids []string) ([]*model.Resource, error)
}

func (m *mockResourceRepository) FindByIDs(ctx context.Context, ids []string) ([]*model.Resource, error) {
	if m.findByIDsFunc != nil {
		return m.findByIDsFunc(ctx, ids)
	}
	return nil, nil
}

// lenientBatch mimics the insert-if-absent storage behaviour.
func lenientBatch(existing map[string]bool) func(context.Context, []model.SlotDraft) (*model.BatchResult, error) {
	return func(_ context.Context, drafts []model.SlotDraft) (*model.BatchResult, error) {
		result := &model.BatchResult{}
		for _, d := range drafts {
			key := d.ResourceName + "@" + d.Start.UTC().Format(time.RFC3339)
			if existing[key] {
				result.Skipped = append(result.Skipped, model.SkippedEntry{Table: d.ResourceName, Start: d.Start, Reason: model.SkipReasonDuplicate})
				continue
			}
			existing[key] = true
			result.Created = append(result.Created, &model.Slot{
				ID:       uuid.NewString(),
				Start:    d.Start,
				Duration: d.Duration,
				Status:   model.SlotAvailable,
			})
		}
		return result, nil
	}
}

func sliceSeq(slots []*model.Slot, err error) iter.Seq2[*model.Slot, error] {
	return func(yield func(*model.Slot, error) bool) {
		for _, s := range slots {
			if !yield(s, nil) {
				return
			}
		}
		if err != nil {
			yield(nil, err)
		}
	}
}

var (
	ict = time.FixedZone("ICT", 7*60*60)
	now = time.Date(2025, 8, 18, 9, 0, 0, 0, time.UTC)
)

func newTestService(repo *mockSlotRepository, resources *mockResourceRepository, publisher events.Publisher) SlotService {
	log := logger.Discard()
	cfg := &config.Config{
		Log:                 log,
		Clock:               clock.NewFixed(now),
		Location:            ict,
		DefaultSlotDuration: time.Hour,
	}
	if resources == nil {
		resources = &mockResourceRepository{}
	}
	return NewSlotService(repo, resources, validator.NewSlotValidator(log), publisher, cfg)
}

// ────────────────────────────────────────────────
// Tests
// ────────────────────────────────────────────────

func TestCreateSlot_ByNameInCalendarLocation(t *testing.T) {
	var gotName string
	var gotSlot *model.Slot
	recorder := &events.Recorder{}
	svc := newTestService(&mockSlotRepository{
		createFunc: func(_ context.Context, slot *model.Slot, name string) error {
			slot.ID = uuid.NewString()
			slot.ResourceID = uuid.NewString()
			slot.Status = model.SlotAvailable
			gotName, gotSlot = name, slot
			return nil
		},
	}, nil, recorder)

	slot, err := svc.CreateSlot(context.Background(), &model.SlotRequest{
		ResourceName: " Table 1 ",
		Date:         "2025-08-18",
		Time:         "12:00",
	})
	require.NoError(t, err)

	assert.Equal(t, "Table 1", gotName)
	assert.Same(t, gotSlot, slot)
	assert.Equal(t, time.Date(2025, 8, 18, 5, 0, 0, 0, time.UTC), slot.Start.UTC())
	assert.Equal(t, time.Hour, slot.Duration)
	assert.Equal(t, []string{events.SlotsCreated}, recorder.Types())
}

func TestCreateSlot_ExplicitDurationAndInstant(t *testing.T) {
	start := time.Date(2025, 8, 18, 12, 0, 0, 0, time.UTC)
	svc := newTestService(&mockSlotRepository{}, nil, events.Noop{})

	slot, err := svc.CreateSlot(context.Background(), &model.SlotRequest{
		ResourceID:      uuid.NewString(),
		Start:           &start,
		DurationMinutes: 90,
	})
	require.NoError(t, err)
	assert.Equal(t, start, slot.Start)
	assert.Equal(t, 90*time.Minute, slot.Duration)
}

func TestCreateSlot_RejectsBadInput(t *testing.T) {
	called := false
	svc := newTestService(&mockSlotRepository{
		createFunc: func(context.Context, *model.Slot, string) error {
			called = true
			return nil
		},
	}, nil, events.Noop{})

	zero := time.Time{}
	requests := map[string]*model.SlotRequest{
		"no resource":   {Date: "2025-08-18", Time: "12:00"},
		"bad time":      {ResourceName: "Table 1", Date: "2025-08-18", Time: "7pm"},
		"zero start":    {ResourceName: "Table 1", Start: &zero},
		"negative span": {ResourceName: "Table 1", Date: "2025-08-18", Time: "12:00", DurationMinutes: -30},
	}

	for name, req := range requests {
		t.Run(name, func(t *testing.T) {
			_, err := svc.CreateSlot(context.Background(), req)
			assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidInput), "got %v", err)
		})
	}
	assert.False(t, called)
}

func TestCreateSlot_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		repoErr  error
		wantCode string
	}{
		{"duplicate", fmt.Errorf("%w: 12:00", slotserrors.ErrDuplicate), apperrors.CodeConflict},
		{"unknown resource", slotserrors.ErrResourceNotFound, apperrors.CodeNotFound},
		{"exhausted retries", errors.Join(db.ErrTransient, errors.New("write conflict")), apperrors.CodeTransient},
		{"store failure", errors.New("connection reset"), apperrors.CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := &events.Recorder{}
			svc := newTestService(&mockSlotRepository{
				createFunc: func(context.Context, *model.Slot, string) error { return tt.repoErr },
			}, nil, recorder)

			_, err := svc.CreateSlot(context.Background(), &model.SlotRequest{
				ResourceID: uuid.NewString(),
				Date:       "2025-08-18",
				Time:       "12:00",
			})
			assert.True(t, apperrors.IsCode(err, tt.wantCode), "got %v", err)
			assert.Empty(t, recorder.Events())
		})
	}

	svc := newTestService(&mockSlotRepository{
		createFunc: func(context.Context, *model.Slot, string) error { return slotserrors.ErrDuplicate },
	}, nil, events.Noop{})
	_, err := svc.CreateSlot(context.Background(), &model.SlotRequest{ResourceName: "Table 1", Date: "2025-08-18", Time: "12:00"})
	assert.Equal(t, "A slot already exists for this item at this time", apperrors.AsAppError(err).Message)
}

func TestCreateSlotsBatch_LenientAndDropsMalformed(t *testing.T) {
	var received []model.SlotDraft
	existing := map[string]bool{
		"Table 2@" + time.Date(2025, 8, 18, 11, 0, 0, 0, time.UTC).Format(time.RFC3339): true,
	}
	batch := lenientBatch(existing)
	recorder := &events.Recorder{}
	svc := newTestService(&mockSlotRepository{
		createBatchFunc: func(ctx context.Context, drafts []model.SlotDraft) (*model.BatchResult, error) {
			received = drafts
			return batch(ctx, drafts)
		},
	}, nil, recorder)

	result, err := svc.CreateSlotsBatch(context.Background(), []model.BatchEntry{
		{Table: "Table 1", Date: "2025-08-18", Time: "12:00"},
		{Table: "Table 1", Date: "2025-08-18", Time: "12:00"},
		{Table: "Table 2", Date: "2025-08-18", Time: "18:00", DurationMinutes: 30},
		{Table: "Table 2", Date: "2025-08-18", Time: "13:00"},
		{Table: "", Date: "2025-08-18", Time: "12:00"},
		{Table: "Table 3", Date: "2025-02-30", Time: "12:00"},
		{Table: "Table 3", Date: "2025-08-18", Time: "25:00"},
		{Table: "Table 3", Date: "2025-08-18"},
		{Table: "Table 3", Date: "2025-08-18", Time: "12:00", DurationMinutes: -5},
	})
	require.NoError(t, err)

	require.Len(t, received, 4)
	assert.Equal(t, time.Date(2025, 8, 18, 5, 0, 0, 0, time.UTC), received[0].Start.UTC())
	assert.Equal(t, time.Hour, received[0].Duration)
	assert.Equal(t, 30*time.Minute, received[2].Duration)

	assert.Len(t, result.Created, 2)
	require.Len(t, result.Skipped, 2)
	assert.Equal(t, "Table 1", result.Skipped[0].Table)
	assert.Equal(t, "Table 2", result.Skipped[1].Table)
	assert.Equal(t, model.SkipReasonDuplicate, result.Skipped[1].Reason)

	assert.Equal(t, []string{events.SlotsCreated}, recorder.Types())
}

func TestCreateSlotsBatch_DropsOversizedDurations(t *testing.T) {
	var received []model.SlotDraft
	svc := newTestService(&mockSlotRepository{
		createBatchFunc: func(ctx context.Context, drafts []model.SlotDraft) (*model.BatchResult, error) {
			received = drafts
			return lenientBatch(map[string]bool{})(ctx, drafts)
		},
	}, nil, events.Noop{})

	result, err := svc.CreateSlotsBatch(context.Background(), []model.BatchEntry{
		{Table: "Table 1", Date: "2025-08-18", Time: "12:00", DurationMinutes: model.MaxSlotDurationMinutes},
		{Table: "Table 1", Date: "2025-08-18", Time: "13:00", DurationMinutes: model.MaxSlotDurationMinutes + 1},
		{Table: "Table 1", Date: "2025-08-18", Time: "14:00", DurationMinutes: 100000},
		{Table: "Table 1", Date: "2025-08-18", Time: "15:00", DurationMinutes: 200000000},
	})
	require.NoError(t, err)

	require.Len(t, received, 1)
	assert.Equal(t, 24*time.Hour, received[0].Duration)
	for _, d := range received {
		assert.Positive(t, d.Duration)
	}
	assert.Len(t, result.Created, 1)
	assert.Empty(t, result.Skipped)
}

func TestCreateSlotsBatch_ThreeNewOneDuplicateOneMalformed(t *testing.T) {
	existing := map[string]bool{
		"Table 1@" + time.Date(2025, 8, 18, 5, 0, 0, 0, time.UTC).Format(time.RFC3339): true,
	}
	svc := newTestService(&mockSlotRepository{createBatchFunc: lenientBatch(existing)}, nil, events.Noop{})

	result, err := svc.CreateSlotsBatch(context.Background(), []model.BatchEntry{
		{Table: "Table 1", Date: "2025-08-18", Time: "13:00"},
		{Table: "Table 1", Date: "2025-08-18", Time: "14:00"},
		{Table: "Table  2", Date: "2025-08-18", Time: "12:00"},
		{Table: "Table 1", Date: "2025-08-18", Time: "12:00"},
		{Table: "Table 3", Date: "18/08/2025", Time: "12:00"},
	})
	require.NoError(t, err)
	assert.Len(t, result.Created, 3)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, "Table 1", result.Skipped[0].Table)
	assert.True(t, existing["Table 2@"+time.Date(2025, 8, 18, 5, 0, 0, 0, time.UTC).Format(time.RFC3339)])
}

func TestCreateSlotsBatch_NothingWellFormed(t *testing.T) {
	called := false
	svc := newTestService(&mockSlotRepository{
		createBatchFunc: func(context.Context, []model.SlotDraft) (*model.BatchResult, error) {
			called = true
			return nil, nil
		},
	}, nil, events.Noop{})

	result, err := svc.CreateSlotsBatch(context.Background(), []model.BatchEntry{{Table: gofakeit.Noun()}})
	require.NoError(t, err)
	assert.Empty(t, result.Created)
	assert.Empty(t, result.Skipped)
	assert.False(t, called)
}

func TestCreateSlotsBatch_StoreFailure(t *testing.T) {
	svc := newTestService(&mockSlotRepository{
		createBatchFunc: func(context.Context, []model.SlotDraft) (*model.BatchResult, error) {
			return nil, errors.New("connection reset")
		},
	}, nil, events.Noop{})

	_, err := svc.CreateSlotsBatch(context.Background(), []model.BatchEntry{{Table: "Table 1", Date: "2025-08-18", Time: "12:00"}})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInternal))
}

func TestDeleteSlot_CascadesBooking(t *testing.T) {
	slotID := uuid.NewString()
	recorder := &events.Recorder{}
	svc := newTestService(&mockSlotRepository{
		deleteFunc: func(_ context.Context, id string) (*model.Booking, error) {
			return &model.Booking{ID: uuid.NewString(), SlotID: id, Holder: "alice"}, nil
		},
	}, nil, recorder)

	cascaded, err := svc.DeleteSlot(context.Background(), slotID)
	require.NoError(t, err)
	require.NotNil(t, cascaded)
	assert.Equal(t, slotID, cascaded.SlotID)
	assert.Equal(t, []string{events.SlotDeleted, events.BookingCancelled}, recorder.Types())
}

func TestDeleteSlot_FreeSlot(t *testing.T) {
	recorder := &events.Recorder{}
	svc := newTestService(&mockSlotRepository{}, nil, recorder)

	cascaded, err := svc.DeleteSlot(context.Background(), uuid.NewString())
	require.NoError(t, err)
	assert.Nil(t, cascaded)
	assert.Equal(t, []string{events.SlotDeleted}, recorder.Types())
}

func TestDeleteSlot_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		repoErr  error
		wantCode string
	}{
		{"not found", slotserrors.ErrNotFound, apperrors.CodeNotFound},
		{"invalid id", slotserrors.ErrInvalidID, apperrors.CodeInvalidInput},
		{"busy", errors.Join(db.ErrTransient, errors.New("lock timeout")), apperrors.CodeTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(&mockSlotRepository{
				deleteFunc: func(context.Context, string) (*model.Booking, error) { return nil, tt.repoErr },
			}, nil, events.Noop{})

			_, err := svc.DeleteSlot(context.Background(), "some-id")
			assert.True(t, apperrors.IsCode(err, tt.wantCode), "got %v", err)
		})
	}
}

func TestListByDate_Bounds(t *testing.T) {
	tests := []struct {
		name     string
		date     string
		wantFrom time.Time
	}{
		{"explicit date", "2025-08-20", time.Date(2025, 8, 20, 0, 0, 0, 0, ict)},
		{"empty means today", "", time.Date(2025, 8, 18, 0, 0, 0, 0, ict)},
		{"garbage means today", "tomorrow", time.Date(2025, 8, 18, 0, 0, 0, 0, ict)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotFrom, gotTo time.Time
			svc := newTestService(&mockSlotRepository{
				listBetweenFunc: func(_ context.Context, _ string, from, to time.Time) iter.Seq2[*model.Slot, error] {
					gotFrom, gotTo = from, to
					return sliceSeq([]*model.Slot{{ID: "a"}, {ID: "b"}}, nil)
				},
			}, nil, events.Noop{})

			seq, err := svc.ListByDate(context.Background(), "", tt.date)
			require.NoError(t, err)

			var ids []string
			for slot, err := range seq {
				require.NoError(t, err)
				ids = append(ids, slot.ID)
			}
			assert.Equal(t, []string{"a", "b"}, ids)
			assert.True(t, tt.wantFrom.Equal(gotFrom), "from %s", gotFrom)
			assert.Equal(t, 24*time.Hour, gotTo.Sub(gotFrom))
		})
	}
}

func TestListByDate_Errors(t *testing.T) {
	svc := newTestService(&mockSlotRepository{
		listBetweenFunc: func(context.Context, string, time.Time, time.Time) iter.Seq2[*model.Slot, error] {
			return sliceSeq([]*model.Slot{{ID: "a"}}, errors.New("cursor died"))
		},
	}, nil, events.Noop{})

	_, err := svc.ListByDate(context.Background(), "not-a-uuid", "")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidInput))

	seq, err := svc.ListByDate(context.Background(), uuid.NewString(), "2025-08-18")
	require.NoError(t, err)

	var seen int
	var iterErr error
	for _, err := range seq {
		if err != nil {
			iterErr = err
			break
		}
		seen++
	}
	assert.Equal(t, 1, seen)
	assert.True(t, apperrors.IsCode(iterErr, apperrors.CodeInternal))
}

func TestCalendar_LabelsSlots(t *testing.T) {
	tableID := uuid.NewString()
	start := time.Date(2025, 8, 18, 5, 0, 0, 0, time.UTC)
	svc := newTestService(&mockSlotRepository{
		listBetweenFunc: func(context.Context, string, time.Time, time.Time) iter.Seq2[*model.Slot, error] {
			return sliceSeq([]*model.Slot{
				{ID: "s1", ResourceID: tableID, Start: start, Duration: time.Hour, Status: model.SlotBooked},
				{ID: "s2", ResourceID: tableID, Start: start.Add(time.Hour), Duration: time.Hour, Status: model.SlotAvailable},
			}, nil)
		},
	}, &mockResourceRepository{
		findByIDsFunc: func(_ context.Context, ids []string) ([]*model.Resource, error) {
			assert.Equal(t, []string{tableID}, ids)
			return []*model.Resource{{ID: tableID, Name: "Table 1"}}, nil
		},
	}, events.Noop{})

	calendar, err := svc.Calendar(context.Background(), "", start, start.AddDate(0, 0, 7))
	require.NoError(t, err)
	require.Len(t, calendar, 2)
	assert.Equal(t, "Table 1 (Booked)", calendar[0].Title)
	assert.Equal(t, "Table 1 (Available)", calendar[1].Title)
	assert.Equal(t, start.Add(2*time.Hour), calendar[1].End)
}

func TestCalendar_RangeValidation(t *testing.T) {
	svc := newTestService(&mockSlotRepository{}, nil, events.Noop{})
	from := time.Date(2025, 8, 18, 0, 0, 0, 0, time.UTC)

	_, err := svc.Calendar(context.Background(), "", from, from)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidInput))

	_, err = svc.Calendar(context.Background(), "", from, from.AddDate(1, 0, 0))
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidInput))

	calendar, err := svc.Calendar(context.Background(), "", from, from.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Empty(t, calendar)
}
