package models

import (
	"tix/src/types"
	"time"
)

// Event carries just enough state to run the organizer-authorization and
// sale-window checks. Full event management lives elsewhere.
type Event struct {
	ID          uint              `gorm:"primarykey" json:"id"`
	OrganizerID uint              `gorm:"index" json:"organizer_id"`
	Title       string            `json:"title"`
	Status      types.EventStatus `gorm:"default:'draft'" json:"status"`
	StartsAt    *time.Time        `json:"starts_at,omitempty"`
	EndsAt      *time.Time        `json:"ends_at,omitempty"`
	// Capacity of 0 means unbounded at the event level; ticket types still
	// bound their own quantity.
	Capacity uint `json:"capacity"`

	Organizer Organizer `json:"organizer,omitempty"`

	types.Timestamps
}
