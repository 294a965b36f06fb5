package model

import (
	"time"
)

// Booking is a confirmed reservation of exactly one slot. The Slot* and
// Resource* fields are resolved on read and never persisted.
type Booking struct {
	ID        string    `json:"id" bson:"_id" gorm:"primaryKey;type:uuid"`
	SlotID    string    `json:"slot_id" bson:"slot_id" gorm:"type:uuid;not null"`
	Holder    string    `json:"holder" bson:"holder" gorm:"not null"`
	Notes     string    `json:"notes,omitempty" bson:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`

	SlotStart    time.Time `json:"slot_start" bson:"-" gorm:"-"`
	SlotEnd      time.Time `json:"slot_end" bson:"-" gorm:"-"`
	ResourceID   string    `json:"resource_id,omitempty" bson:"-" gorm:"-"`
	ResourceName string    `json:"resource_name,omitempty" bson:"-" gorm:"-"`
}

func (Booking) TableName() string {
	return "bookings"
}

// Resolve fills the read-side fields from the booked slot and its resource.
func (b *Booking) Resolve(slot *Slot, resourceName string) {
	if slot == nil {
		return
	}
	b.SlotStart = slot.Start
	b.SlotEnd = slot.End()
	b.ResourceID = slot.ResourceID
	b.ResourceName = resourceName
}

type BookRequest struct {
	SlotID string `json:"slot_id" validate:"required,uuid"`
	Holder string `json:"holder,omitempty" validate:"max=200"`
	Notes  string `json:"notes,omitempty" validate:"max=2000"`
}

// FreedSlot describes the slot returned to the pool by a cancellation.
type FreedSlot struct {
	SlotID       string    `json:"slot_id"`
	ResourceID   string    `json:"resource_id"`
	ResourceName string    `json:"resource_name"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
}

// Freed reports the slot a resolved booking occupied.
func (b *Booking) Freed() *FreedSlot {
	return &FreedSlot{
		SlotID:       b.SlotID,
		ResourceID:   b.ResourceID,
		ResourceName: b.ResourceName,
		Start:        b.SlotStart,
		End:          b.SlotEnd,
	}
}
