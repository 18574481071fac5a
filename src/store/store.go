package store

import (
	"context"
	"errors"
	"time"

	"tix/src/models"
	"tix/src/types"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TicketTypeUpdate enumerates exactly the mutable fields of a ticket type.
// Quantity is a capacity ceiling and cannot change after creation.
type TicketTypeUpdate struct {
	Name            *string
	Price           *float32
	MaxPerCustomer  *uint
	RequireApproval *bool
	SaleStartsAt    *time.Time
	SaleEndsAt      *time.Time
}

// InventoryStore is the durable, authoritative home of ticket inventory.
// Batch operations are all-or-nothing, and ReserveBatch carries the
// oversell guard: concurrent reservations against one ticket type can never
// jointly exceed its quantity.
type InventoryStore interface {
	CreateTicketType(ctx context.Context, tt *models.TicketType) error
	GetTicketType(ctx context.Context, id uint) (*models.TicketType, error)
	UpdateTicketType(ctx context.Context, id uint, upd *TicketTypeUpdate) (*models.TicketType, error)
	DeleteTicketType(ctx context.Context, id uint) error
	ListEventTicketTypes(ctx context.Context, eventID uint) ([]models.TicketType, error)

	GetTicket(ctx context.Context, id uint) (*models.Ticket, error)
	ListReservation(ctx context.Context, reservationID uuid.UUID) ([]models.Ticket, error)
	ListCustomerTickets(ctx context.Context, customerID uint) ([]models.Ticket, error)
	ListEventTickets(ctx context.Context, eventID uint) ([]models.Ticket, error)
	ListPendingApprovals(ctx context.Context, eventID uint) ([]models.Ticket, error)
	ListTicketsByPayment(ctx context.Context, paymentID string) ([]models.Ticket, error)

	ClassifyTickets(ctx context.Context, ticketTypeID uint) (*models.TicketTypeStats, error)
	CountCustomerLive(ctx context.Context, ticketTypeID, customerID uint) (int64, error)

	ReserveBatch(ctx context.Context, ticketTypeID uint, tickets []*models.Ticket) error
	FinalizeFreePurchase(ctx context.Context, reservationID uuid.UUID, at time.Time) (int64, error)
	AttachPayment(ctx context.Context, reservationID uuid.UUID, paymentID string, status types.PaymentStatus) error
	CompletePayment(ctx context.Context, paymentID string, at time.Time) (int64, error)
	CancelPayment(ctx context.Context, paymentID string, status types.PaymentStatus, at time.Time) (int64, error)
	CancelReservation(ctx context.Context, reservationID uuid.UUID, at time.Time) (int64, error)
	CancelTicket(ctx context.Context, id uint, at time.Time) error
	SetApproval(ctx context.Context, id uint, status types.ApprovalStatus, at time.Time) error
	CancelExpired(ctx context.Context, now time.Time) ([]models.Ticket, error)

	GetEvent(ctx context.Context, id uint) (*models.Event, error)
	GetOrganizer(ctx context.Context, id uint) (*models.Organizer, error)
	CountEventSold(ctx context.Context, eventID uint) (int64, error)
}

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

var liveStatuses = []types.TicketStatus{types.TICKET_RESERVED, types.TICKET_SOLD}

func wrap(err error, what string, args ...any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return types.NewError(types.CodeNotFound, what, args...)
	}
	return types.Dependency(err, what, args...)
}
