package model

import (
	"fmt"
	"time"
)

// CalendarEvent is the staff dashboard rendering of a slot.
type CalendarEvent struct {
	Title string        `json:"title"`
	Start time.Time     `json:"start"`
	End   time.Time     `json:"end"`
	Props CalendarProps `json:"extendedProps"`
}

type CalendarProps struct {
	Status   SlotStatus `json:"status"`
	Resource string     `json:"table"`
	SlotID   string     `json:"slot_id"`
}

func NewCalendarEvent(slot *Slot, resourceName string) CalendarEvent {
	label := "Available"
	if slot.Status == SlotBooked {
		label = "Booked"
	}
	return CalendarEvent{
		Title: fmt.Sprintf("%s (%s)", resourceName, label),
		Start: slot.Start,
		End:   slot.End(),
		Props: CalendarProps{
			Status:   slot.Status,
			Resource: resourceName,
			SlotID:   slot.ID,
		},
	}
}
