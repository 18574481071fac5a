package store

import (
	"context"
	"time"

	"tix/src/models"
	"tix/src/types"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (s *GormStore) GetTicket(ctx context.Context, id uint) (*models.Ticket, error) {
	var ticket models.Ticket
	if err := s.db.WithContext(ctx).
		Where(&models.Ticket{ID: id}).
		First(&ticket).
		Error; err != nil {
		return nil, wrap(err, "ticket %d not found", id)
	}
	return &ticket, nil
}

func (s *GormStore) ListReservation(ctx context.Context, reservationID uuid.UUID) ([]models.Ticket, error) {
	var tickets []models.Ticket
	if err := s.db.WithContext(ctx).
		Where(&models.Ticket{ReservationID: reservationID}).
		Order("id").
		Find(&tickets).
		Error; err != nil {
		return nil, types.Dependency(err, "error loading reservation %s", reservationID)
	}
	return tickets, nil
}

func (s *GormStore) ListCustomerTickets(ctx context.Context, customerID uint) ([]models.Ticket, error) {
	var tickets []models.Ticket
	if err := s.db.WithContext(ctx).
		Where(&models.Ticket{CustomerID: customerID}).
		Order("created_at desc").
		Find(&tickets).
		Error; err != nil {
		return nil, types.Dependency(err, "error listing tickets for customer %d", customerID)
	}
	return tickets, nil
}

func (s *GormStore) ListEventTickets(ctx context.Context, eventID uint) ([]models.Ticket, error) {
	var tickets []models.Ticket
	if err := s.db.WithContext(ctx).
		Where(&models.Ticket{EventID: eventID}).
		Order("created_at desc").
		Find(&tickets).
		Error; err != nil {
		return nil, types.Dependency(err, "error listing tickets for event %d", eventID)
	}
	return tickets, nil
}

func (s *GormStore) ListPendingApprovals(ctx context.Context, eventID uint) ([]models.Ticket, error) {
	pending := types.APPROVAL_PENDING
	var tickets []models.Ticket
	if err := s.db.WithContext(ctx).
		Where(&models.Ticket{EventID: eventID, Approval: &pending}).
		Where("status IN ?", liveStatuses).
		Order("created_at").
		Find(&tickets).
		Error; err != nil {
		return nil, types.Dependency(err, "error listing pending approvals for event %d", eventID)
	}
	return tickets, nil
}

func (s *GormStore) ListTicketsByPayment(ctx context.Context, paymentID string) ([]models.Ticket, error) {
	var tickets []models.Ticket
	if err := s.db.WithContext(ctx).
		Where(&models.Ticket{PaymentID: &paymentID}).
		Find(&tickets).
		Error; err != nil {
		return nil, types.Dependency(err, "error loading tickets for payment %s", paymentID)
	}
	return tickets, nil
}

// ClassifyTickets recomputes availability by scanning the full Ticket ledger
// for the type. Nothing cached ever feeds this number.
func (s *GormStore) ClassifyTickets(ctx context.Context, ticketTypeID uint) (*models.TicketTypeStats, error) {
	tt, err := s.GetTicketType(ctx, ticketTypeID)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		Status types.TicketStatus
		N      uint
	}
	if err := s.db.WithContext(ctx).
		Model(&models.Ticket{}).
		Select("status, COUNT(id) as n").
		Where(&models.Ticket{TicketTypeID: ticketTypeID}).
		Group("status").
		Scan(&rows).
		Error; err != nil {
		return nil, types.Dependency(err, "error classifying tickets for type %d", ticketTypeID)
	}
	stats := models.TicketTypeStats{TicketTypeID: ticketTypeID, Total: tt.Quantity}
	for _, r := range rows {
		switch r.Status {
		case types.TICKET_RESERVED:
			stats.Reserved = r.N
		case types.TICKET_SOLD:
			stats.Sold = r.N
		case types.TICKET_CANCELLED:
			stats.Cancelled = r.N
		}
	}
	if claimed := stats.Reserved + stats.Sold; claimed < stats.Total {
		stats.Available = stats.Total - claimed
	}
	return &stats, nil
}

func (s *GormStore) CountCustomerLive(ctx context.Context, ticketTypeID, customerID uint) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).
		Model(&models.Ticket{}).
		Where(&models.Ticket{TicketTypeID: ticketTypeID, CustomerID: customerID}).
		Where("status IN ?", liveStatuses).
		Count(&n).
		Error; err != nil {
		return 0, types.Dependency(err, "error counting tickets for customer %d", customerID)
	}
	return n, nil
}

// ReserveBatch commits a reservation as one atomic unit. Inside the
// transaction the ticket-type row is locked (postgres), the live count and
// the per-customer count are validated, the batch is inserted, and the live
// count is re-checked against the ceiling before commit. A failure at any
// point rolls the whole batch back, so partial reservations cannot exist.
func (s *GormStore) ReserveBatch(ctx context.Context, ticketTypeID uint, tickets []*models.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	requested := int64(len(tickets))
	customerID := tickets[0].CustomerID
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Model(&models.TicketType{})
		if tx.Dialector.Name() == "postgres" {
			// Serializes concurrent reservations for the same type.
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		var tt models.TicketType
		if err := q.Where(&models.TicketType{ID: ticketTypeID}).First(&tt).Error; err != nil {
			return wrap(err, "ticket type %d not found", ticketTypeID)
		}

		live, err := countLive(tx, ticketTypeID)
		if err != nil {
			return err
		}
		if int64(tt.Quantity)-live < requested {
			return types.NewError(types.CodeSoldOut, "ticket type %d has %d of %d units left", ticketTypeID, int64(tt.Quantity)-live, tt.Quantity)
		}

		var own int64
		if err := tx.
			Model(&models.Ticket{}).
			Where(&models.Ticket{TicketTypeID: ticketTypeID, CustomerID: customerID}).
			Where("status IN ?", liveStatuses).
			Count(&own).
			Error; err != nil {
			return types.Dependency(err, "error counting tickets for customer %d", customerID)
		}
		if own+requested > int64(tt.MaxPerCustomer) {
			return types.NewError(types.CodeMaxPerCustomerExceeded, "customer %d would hold %d of max %d tickets", customerID, own+requested, tt.MaxPerCustomer)
		}

		if err := tx.Create(&tickets).Error; err != nil {
			return types.Dependency(err, "error creating reservation batch")
		}

		// Re-validate at commit time: keeps the ceiling on dialects without
		// row locking.
		live, err = countLive(tx, ticketTypeID)
		if err != nil {
			return err
		}
		if live > int64(tt.Quantity) {
			return types.NewError(types.CodeSoldOut, "ticket type %d oversubscribed, rolling back", ticketTypeID)
		}
		return nil
	})
}

func countLive(tx *gorm.DB, ticketTypeID uint) (int64, error) {
	var n int64
	if err := tx.
		Model(&models.Ticket{}).
		Where(&models.Ticket{TicketTypeID: ticketTypeID}).
		Where("status IN ?", liveStatuses).
		Count(&n).
		Error; err != nil {
		return 0, types.Dependency(err, "error counting live tickets for type %d", ticketTypeID)
	}
	return n, nil
}

// FinalizeFreePurchase flips a reserved group straight to sold. The status
// condition makes it a no-op for tickets that already left RESERVED.
func (s *GormStore) FinalizeFreePurchase(ctx context.Context, reservationID uuid.UUID, at time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Model(&models.Ticket{}).
		Where(&models.Ticket{ReservationID: reservationID, Status: types.TICKET_RESERVED}).
		Updates(map[string]any{
			"status":       types.TICKET_SOLD,
			"purchased_at": at,
			"expires_at":   nil,
		})
	if res.Error != nil {
		return 0, types.Dependency(res.Error, "error finalizing reservation %s", reservationID)
	}
	return res.RowsAffected, nil
}

func (s *GormStore) AttachPayment(ctx context.Context, reservationID uuid.UUID, paymentID string, status types.PaymentStatus) error {
	res := s.db.WithContext(ctx).
		Model(&models.Ticket{}).
		Where(&models.Ticket{ReservationID: reservationID, Status: types.TICKET_RESERVED}).
		Updates(&models.Ticket{PaymentID: &paymentID, PaymentStatus: &status})
	if res.Error != nil {
		return types.Dependency(res.Error, "error attaching payment %s to reservation %s", paymentID, reservationID)
	}
	if res.RowsAffected == 0 {
		return types.NewError(types.CodeInvalidStatus, "reservation %s has no reserved tickets", reservationID)
	}
	return nil
}

// CompletePayment settles a gateway COMPLETED signal. Only rows still
// RESERVED change, which makes a duplicate webhook a no-op with a stable
// purchasedAt.
func (s *GormStore) CompletePayment(ctx context.Context, paymentID string, at time.Time) (int64, error) {
	completed := types.PAYMENT_COMPLETED
	res := s.db.WithContext(ctx).
		Model(&models.Ticket{}).
		Where(&models.Ticket{PaymentID: &paymentID, Status: types.TICKET_RESERVED}).
		Updates(map[string]any{
			"status":         types.TICKET_SOLD,
			"payment_status": completed,
			"purchased_at":   at,
			"expires_at":     nil,
		})
	if res.Error != nil {
		return 0, types.Dependency(res.Error, "error completing payment %s", paymentID)
	}
	return res.RowsAffected, nil
}

func (s *GormStore) CancelPayment(ctx context.Context, paymentID string, status types.PaymentStatus, at time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Model(&models.Ticket{}).
		Where(&models.Ticket{PaymentID: &paymentID, Status: types.TICKET_RESERVED}).
		Updates(map[string]any{
			"status":         types.TICKET_CANCELLED,
			"payment_status": status,
			"cancelled_at":   at,
			"expires_at":     nil,
		})
	if res.Error != nil {
		return 0, types.Dependency(res.Error, "error cancelling payment %s", paymentID)
	}
	return res.RowsAffected, nil
}

func (s *GormStore) CancelReservation(ctx context.Context, reservationID uuid.UUID, at time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Model(&models.Ticket{}).
		Where(&models.Ticket{ReservationID: reservationID, Status: types.TICKET_RESERVED}).
		Updates(map[string]any{
			"status":       types.TICKET_CANCELLED,
			"cancelled_at": at,
			"expires_at":   nil,
		})
	if res.Error != nil {
		return 0, types.Dependency(res.Error, "error cancelling reservation %s", reservationID)
	}
	return res.RowsAffected, nil
}

func (s *GormStore) CancelTicket(ctx context.Context, id uint, at time.Time) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ticket models.Ticket
		if err := tx.Where(&models.Ticket{ID: id}).First(&ticket).Error; err != nil {
			return wrap(err, "ticket %d not found", id)
		}
		if ticket.Status != types.TICKET_RESERVED {
			return types.NewError(types.CodeInvalidStatus, "ticket %d is %s, only reserved tickets can be cancelled", id, ticket.Status)
		}
		res := tx.
			Model(&models.Ticket{}).
			Where(&models.Ticket{ID: id, Status: types.TICKET_RESERVED}).
			Updates(map[string]any{
				"status":       types.TICKET_CANCELLED,
				"cancelled_at": at,
				"expires_at":   nil,
			})
		if res.Error != nil {
			return types.Dependency(res.Error, "error cancelling ticket %d", id)
		}
		if res.RowsAffected == 0 {
			return types.NewError(types.CodeInvalidStatus, "ticket %d changed state concurrently", id)
		}
		return nil
	})
}

// SetApproval records an approve/reject decision. Rejection forces the
// ticket to CANCELLED; a sold ticket can no longer be rejected.
func (s *GormStore) SetApproval(ctx context.Context, id uint, status types.ApprovalStatus, at time.Time) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ticket models.Ticket
		if err := tx.Where(&models.Ticket{ID: id}).First(&ticket).Error; err != nil {
			return wrap(err, "ticket %d not found", id)
		}
		if ticket.Approval == nil || *ticket.Approval != types.APPROVAL_PENDING {
			return types.NewError(types.CodeInvalidStatus, "ticket %d has no pending approval", id)
		}
		if status == types.APPROVAL_REJECTED && ticket.Status == types.TICKET_SOLD {
			return types.NewError(types.CodeInvalidStatus, "ticket %d is already sold and cannot be rejected", id)
		}
		fields := map[string]any{"approval": status}
		if status == types.APPROVAL_REJECTED {
			fields["status"] = types.TICKET_CANCELLED
			fields["cancelled_at"] = at
			fields["expires_at"] = nil
		}
		if err := tx.
			Model(&models.Ticket{}).
			Where(&models.Ticket{ID: id}).
			Updates(fields).
			Error; err != nil {
			return types.Dependency(err, "error updating approval for ticket %d", id)
		}
		return nil
	})
}

// CancelExpired sweeps reservations past their deadline in one conditional
// batch. The status condition re-checks inside the update itself, so a
// ticket that raced to SOLD is never clobbered; running the sweep
// concurrently with itself is safe for the same reason.
func (s *GormStore) CancelExpired(ctx context.Context, now time.Time) ([]models.Ticket, error) {
	var expired []models.Ticket
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("status = ? AND expires_at <= ?", types.TICKET_RESERVED, now).
			Find(&expired).
			Error; err != nil {
			return types.Dependency(err, "error finding expired reservations")
		}
		if len(expired) == 0 {
			return nil
		}
		ids := make([]uint, 0, len(expired))
		for _, t := range expired {
			ids = append(ids, t.ID)
		}
		res := tx.
			Model(&models.Ticket{}).
			Where("id IN ? AND status = ?", ids, types.TICKET_RESERVED).
			Updates(map[string]any{
				"status":       types.TICKET_CANCELLED,
				"cancelled_at": now,
				"expires_at":   nil,
			})
		if res.Error != nil {
			return types.Dependency(res.Error, "error cancelling expired reservations")
		}
		logrus.Infof("Cancelled %d of %d expired reservations", res.RowsAffected, len(expired))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return expired, nil
}
