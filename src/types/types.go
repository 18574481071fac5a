package types

import (
	"time"

	"gorm.io/gorm"
)

type Timestamps struct {
	CreatedAt time.Time      `gorm:"autoCreateTime:nano" json:"created_at,omitempty"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime:nano" json:"updated_at,omitempty"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty,omitnil"`
}

type TicketStatus string

const (
	TICKET_RESERVED  TicketStatus = "reserved"
	TICKET_SOLD      TicketStatus = "sold"
	TICKET_CANCELLED TicketStatus = "cancelled"
)

type ApprovalStatus string

const (
	APPROVAL_PENDING  ApprovalStatus = "pending"
	APPROVAL_APPROVED ApprovalStatus = "approved"
	APPROVAL_REJECTED ApprovalStatus = "rejected"
)

type PaymentStatus string

const (
	PAYMENT_PENDING   PaymentStatus = "pending"
	PAYMENT_COMPLETED PaymentStatus = "completed"
	PAYMENT_FAILED    PaymentStatus = "failed"
	PAYMENT_CANCELLED PaymentStatus = "cancelled"
)

type EventStatus string

const (
	EVENT_DRAFT     EventStatus = "draft"
	EVENT_PUBLISHED EventStatus = "published"
	EVENT_COMPLETED EventStatus = "completed"
	EVENT_CANCELED  EventStatus = "canceled"
)

const TIME_PARSE_FORMAT = "2006-01-02 15:04:05 -07:00"

type CreateTicketTypeRequestBody struct {
	EventID         uint    `json:"event" binding:"required"`
	Name            string  `json:"name" binding:"required"`
	Price           float32 `json:"price" binding:"gte=0"`
	Currency        string  `json:"currency" binding:"required"`
	Quantity        uint    `json:"quantity" binding:"required,gt=0"`
	MaxPerCustomer  uint    `json:"max_per_customer,omitempty" binding:"omitempty,gt=0"`
	RequireApproval bool    `json:"require_approval,omitempty"`
	SaleStartsAt    *string `json:"sale_starts_at,omitempty" binding:"omitempty,saledate"`
	SaleEndsAt      *string `json:"sale_ends_at,omitempty" binding:"omitempty,saledate"`
}

// UpdateTicketTypeRequestBody enumerates the only mutable fields of a ticket
// type. Quantity is the capacity ceiling and is deliberately absent.
type UpdateTicketTypeRequestBody struct {
	Name            *string  `json:"name,omitempty"`
	Price           *float32 `json:"price,omitempty" binding:"omitempty,gte=0"`
	MaxPerCustomer  *uint    `json:"max_per_customer,omitempty" binding:"omitempty,gt=0"`
	RequireApproval *bool    `json:"require_approval,omitempty"`
	SaleStartsAt    *string  `json:"sale_starts_at,omitempty" binding:"omitempty,saledate"`
	SaleEndsAt      *string  `json:"sale_ends_at,omitempty" binding:"omitempty,saledate"`
}

type ReserveTicketsRequestBody struct {
	TicketTypeID  uint   `json:"ticket_type" binding:"required"`
	Quantity      uint   `json:"quantity" binding:"required,gt=0"`
	CustomerName  string `json:"customer_name" binding:"required"`
	CustomerEmail string `json:"customer_email" binding:"required,email"`
}

type SimpleRequestParams struct {
	ID uint `uri:"id" binding:"required"`
}

type ReservationURIParams struct {
	ReservationID string `uri:"id" binding:"required,uuid"`
}
