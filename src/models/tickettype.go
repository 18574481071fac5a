package models

import (
	"tix/src/types"
	"time"
)

// TicketType is a sellable category of inventory within one event. Quantity
// is an immutable capacity ceiling; available units are always derived from
// the Ticket ledger, never stored.
type TicketType struct {
	ID              uint       `gorm:"primarykey" json:"id"`
	EventID         uint       `gorm:"index" json:"event_id"`
	Name            string     `json:"name"`
	Price           float32    `json:"price"`
	Currency        string     `json:"currency"`
	Quantity        uint       `json:"quantity"`
	MaxPerCustomer  uint       `gorm:"default:1" json:"max_per_customer"`
	RequireApproval bool       `json:"require_approval"`
	SaleStartsAt    *time.Time `json:"sale_starts_at,omitempty"`
	SaleEndsAt      *time.Time `json:"sale_ends_at,omitempty"`

	Event Event `json:"event,omitempty"`

	Stats *TicketTypeStats `gorm:"-" json:"stats,omitempty"`

	types.Timestamps
}

// TicketTypeStats is the authoritative availability snapshot, recomputed by
// scanning the Ticket ledger.
type TicketTypeStats struct {
	TicketTypeID uint `json:"ticket_type_id,omitempty"`
	Total        uint `json:"total"`
	Available    uint `json:"available"`
	Reserved     uint `json:"reserved"`
	Sold         uint `json:"sold"`
	Cancelled    uint `json:"cancelled"`
}
