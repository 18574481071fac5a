package models

import (
	"tix/src/types"
	"time"

	"github.com/google/uuid"
)

// Ticket is one claimed unit of a ticket type. Rows are created at
// reservation time and never deleted; CANCELLED is a terminal status, which
// keeps the ledger auditable.
type Ticket struct {
	ID            uint                  `gorm:"primarykey" json:"id"`
	EventID       uint                  `gorm:"index" json:"event_id"`
	TicketTypeID  uint                  `gorm:"index" json:"ticket_type_id"`
	CustomerID    uint                  `gorm:"index" json:"customer_id"`
	ReservationID uuid.UUID             `gorm:"type:uuid;index" json:"reservation_id"`
	Status        types.TicketStatus    `gorm:"index;default:'reserved'" json:"status"`
	Approval      *types.ApprovalStatus `json:"approval_status,omitempty"`

	// Price is snapshot from the ticket type at reservation time and never
	// follows later price changes.
	Price    float32 `json:"price"`
	Currency string  `json:"currency"`

	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`

	PaymentID     *string              `gorm:"index" json:"payment_id,omitempty"`
	PaymentStatus *types.PaymentStatus `json:"payment_status,omitempty"`

	ReservedAt *time.Time `json:"reserved_at,omitempty"`
	// ExpiresAt is meaningful only while Status is reserved.
	ExpiresAt   *time.Time `gorm:"index" json:"expires_at,omitempty"`
	PurchasedAt *time.Time `json:"purchased_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`

	TicketType TicketType `json:"ticket_type,omitempty"`

	types.Timestamps
}
