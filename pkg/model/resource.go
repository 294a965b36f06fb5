package model

import (
	"time"
)

// Resource is a bookable item such as a table or a court.
type Resource struct {
	ID        string    `json:"id,omitempty" bson:"_id" gorm:"primaryKey;type:uuid"`
	Name      string    `json:"name" bson:"name" gorm:"not null" validate:"required,min=1,max=200"`
	Capacity  int       `json:"capacity" bson:"capacity" gorm:"not null" validate:"min=1,max=10000"`
	Info      string    `json:"info,omitempty" bson:"info,omitempty" validate:"max=2000"`
	Active    bool      `json:"active" bson:"active" gorm:"not null"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

func (Resource) TableName() string {
	return "resources"
}

// NewResource is the create payload. Capacity defaults to 1 and Active to true.
type NewResource struct {
	Name     string `json:"name"`
	Capacity int    `json:"capacity,omitempty"`
	Info     string `json:"info,omitempty"`
	Active   *bool  `json:"active,omitempty"`
}

func (n *NewResource) Resource() *Resource {
	r := &Resource{
		Name:     n.Name,
		Capacity: n.Capacity,
		Info:     n.Info,
		Active:   true,
	}
	if r.Capacity == 0 {
		r.Capacity = 1
	}
	if n.Active != nil {
		r.Active = *n.Active
	}
	return r
}

type ResourceUpdate struct {
	Name     *string `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Capacity *int    `json:"capacity,omitempty" validate:"omitempty,min=1,max=10000"`
	Info     *string `json:"info,omitempty" validate:"omitempty,max=2000"`
	Active   *bool   `json:"active,omitempty"`
}

func (u *ResourceUpdate) IsEmpty() bool {
	return u.Name == nil && u.Capacity == nil && u.Info == nil && u.Active == nil
}

// Apply merges the non-nil fields of u into r.
func (u *ResourceUpdate) Apply(r *Resource) {
	if u.Name != nil {
		r.Name = *u.Name
	}
	if u.Capacity != nil {
		r.Capacity = *u.Capacity
	}
	if u.Info != nil {
		r.Info = *u.Info
	}
	if u.Active != nil {
		r.Active = *u.Active
	}
}
