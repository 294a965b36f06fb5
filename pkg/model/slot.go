package model

import (
	"encoding/json"
	"time"
)

type SlotStatus string

const (
	SlotAvailable SlotStatus = "available"
	SlotPending   SlotStatus = "pending"
	SlotBooked    SlotStatus = "booked"
)

// MaxSlotDurationMinutes caps a slot at one day, matching SlotRequest's
// max=1440 rule.
const MaxSlotDurationMinutes = 1440

func (s SlotStatus) Valid() bool {
	switch s {
	case SlotAvailable, SlotPending, SlotBooked:
		return true
	}
	return false
}

// Slot is one bookable interval of a resource. Status mirrors whether a
// Booking references the slot and is only written together with it.
type Slot struct {
	ID         string        `json:"id" bson:"_id" gorm:"primaryKey;type:uuid"`
	ResourceID string        `json:"resource_id" bson:"resource_id" gorm:"type:uuid;not null"`
	Start      time.Time     `json:"start" bson:"start" gorm:"not null"`
	Duration   time.Duration `json:"-" bson:"duration_ns" gorm:"column:duration_ns;not null"`
	Status     SlotStatus    `json:"status" bson:"status" gorm:"type:text;not null"`
	CreatedAt  time.Time     `json:"created_at" bson:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at" bson:"updated_at"`
}

func (Slot) TableName() string {
	return "slots"
}

func (s *Slot) End() time.Time {
	return s.Start.Add(s.Duration)
}

func (s Slot) MarshalJSON() ([]byte, error) {
	type alias Slot
	return json.Marshal(struct {
		alias
		End             time.Time `json:"end"`
		DurationMinutes int       `json:"duration_minutes"`
	}{
		alias:           alias(s),
		End:             s.End(),
		DurationMinutes: int(s.Duration / time.Minute),
	})
}

// SlotRequest is the input of a single slot creation. The resource is given
// either by id or by name; the start either as an instant or as a local
// calendar date and time.
type SlotRequest struct {
	ResourceID      string     `json:"resource_id,omitempty" validate:"omitempty,uuid"`
	ResourceName    string     `json:"table,omitempty" validate:"required_without=ResourceID,omitempty,min=1,max=200"`
	Start           *time.Time `json:"start,omitempty"`
	Date            string     `json:"date,omitempty" validate:"required_without=Start,omitempty,datetime=2006-01-02"`
	Time            string     `json:"time,omitempty" validate:"required_without=Start,omitempty,datetime=15:04"`
	DurationMinutes int        `json:"duration_minutes,omitempty" validate:"omitempty,min=1,max=1440"`
}

// BatchEntry is one line of a bulk slot import.
type BatchEntry struct {
	Table           string `json:"table"`
	Date            string `json:"date"`
	Time            string `json:"time"`
	DurationMinutes int    `json:"duration_minutes,omitempty"`
}

// SlotDraft is a parsed batch entry ready for insertion.
type SlotDraft struct {
	ResourceName string
	Start        time.Time
	Duration     time.Duration
}

type SkippedEntry struct {
	Table  string    `json:"table"`
	Start  time.Time `json:"start"`
	Reason string    `json:"reason"`
}

type BatchResult struct {
	Created []*Slot        `json:"created"`
	Skipped []SkippedEntry `json:"skipped"`
}

const SkipReasonDuplicate = "duplicate"
