package validator

import (
	"errors"
	"slotkeeper/pkg/logger"
	"slotkeeper/pkg/model"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlotValidator_Validate(t *testing.T) {
	v := NewSlotValidator(logger.Discard())
	start := time.Date(2025, 8, 18, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		req       model.SlotRequest
		wantField string
	}{
		{
			name: "by name with date and time",
			req:  model.SlotRequest{ResourceName: "Table 1", Date: "2025-08-18", Time: "12:00", DurationMinutes: 60},
		},
		{
			name: "by id with instant",
			req:  model.SlotRequest{ResourceID: uuid.NewString(), Start: &start},
		},
		{
			name:      "no resource",
			req:       model.SlotRequest{Date: "2025-08-18", Time: "12:00"},
			wantField: "table",
		},
		{
			name:      "malformed resource id",
			req:       model.SlotRequest{ResourceID: "table-1", Start: &start},
			wantField: "resource_id",
		},
		{
			name:      "impossible date",
			req:       model.SlotRequest{ResourceName: "Table 1", Date: "2025-13-01", Time: "12:00"},
			wantField: "date",
		},
		{
			name:      "missing time",
			req:       model.SlotRequest{ResourceName: "Table 1", Date: "2025-08-18"},
			wantField: "time",
		},
		{
			name:      "duration over a day",
			req:       model.SlotRequest{ResourceName: "Table 1", Start: &start, DurationMinutes: 1441},
			wantField: "duration_minutes",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(&tt.req)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}

			var errs ValidationErrors
			require.True(t, errors.As(err, &errs))
			require.Len(t, errs, 1)
			assert.Equal(t, tt.wantField, errs[0].Field)
		})
	}
}
