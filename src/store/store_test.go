package store

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"tix/src/models"
	"tix/src/types"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type StoreTestSuite struct {
	suite.Suite
	DB    *gorm.DB
	Store *GormStore
	Event models.Event
}

func (s *StoreTestSuite) SetupSuite() {
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		log.Fatalf("error opening test database: %s", err.Error())
	}
	if err := db.AutoMigrate(
		&models.Organizer{},
		&models.Event{},
		&models.TicketType{},
		&models.Ticket{},
	); err != nil {
		log.Fatalf("error on migration: %s", err.Error())
	}
	s.DB = db
	s.Store = NewGormStore(db)

	organizer := models.Organizer{Name: "Test Organizer", Email: "org@example.com", Enabled: true, Verified: true}
	if err := db.Create(&organizer).Error; err != nil {
		log.Fatalf("error creating organizer: %s", err.Error())
	}
	starts := time.Now().Add(48 * time.Hour)
	s.Event = models.Event{OrganizerID: organizer.ID, Title: "Test Event", Status: types.EVENT_PUBLISHED, StartsAt: &starts}
	if err := db.Create(&s.Event).Error; err != nil {
		log.Fatalf("error creating event: %s", err.Error())
	}
}

func (s *StoreTestSuite) TearDownSuite() {
	inner, err := s.DB.DB()
	if err != nil {
		log.Printf("Error accessing inner db instance: %s\n", err.Error())
		return
	}
	inner.Close()
}

func (s *StoreTestSuite) newType(quantity, maxPer uint) *models.TicketType {
	tt := models.TicketType{
		EventID:        s.Event.ID,
		Name:           "General Admission",
		Price:          25,
		Currency:       "USD",
		Quantity:       quantity,
		MaxPerCustomer: maxPer,
	}
	err := s.Store.CreateTicketType(context.Background(), &tt)
	assert.Nil(s.T(), err)
	return &tt
}

func (s *StoreTestSuite) newBatch(tt *models.TicketType, customerID, n uint) []*models.Ticket {
	reservationID := uuid.New()
	now := time.Now()
	expires := now.Add(15 * time.Minute)
	tickets := make([]*models.Ticket, 0, n)
	for range n {
		reserved := now
		expiry := expires
		tickets = append(tickets, &models.Ticket{
			EventID:       tt.EventID,
			TicketTypeID:  tt.ID,
			CustomerID:    customerID,
			ReservationID: reservationID,
			Status:        types.TICKET_RESERVED,
			Price:         tt.Price,
			Currency:      tt.Currency,
			CustomerName:  "Test Customer",
			CustomerEmail: "customer@example.com",
			ReservedAt:    &reserved,
			ExpiresAt:     &expiry,
		})
	}
	return tickets
}

func (s *StoreTestSuite) reserve(tt *models.TicketType, customerID, n uint) (uuid.UUID, error) {
	tickets := s.newBatch(tt, customerID, n)
	err := s.Store.ReserveBatch(context.Background(), tt.ID, tickets)
	return tickets[0].ReservationID, err
}

func (s *StoreTestSuite) TestReserveBatchOversell() {
	ctx := context.Background()
	tt := s.newType(5, 10)

	_, err := s.reserve(tt, 100, 3)
	assert.Nil(s.T(), err)

	s.Run("Should reject a batch exceeding remaining quantity", func() {
		_, err := s.reserve(tt, 101, 3)
		assert.NotNil(s.T(), err)
		assert.Equal(s.T(), types.CodeSoldOut, types.CodeOf(err))
	})

	s.Run("Should leave no partial rows after a rejected batch", func() {
		stats, err := s.Store.ClassifyTickets(ctx, tt.ID)
		assert.Nil(s.T(), err)
		assert.Equal(s.T(), uint(3), stats.Reserved)
		assert.Equal(s.T(), uint(2), stats.Available)
	})

	s.Run("Should accept a batch that exactly fills the remainder", func() {
		_, err := s.reserve(tt, 102, 2)
		assert.Nil(s.T(), err)
		stats, err := s.Store.ClassifyTickets(ctx, tt.ID)
		assert.Nil(s.T(), err)
		assert.Equal(s.T(), uint(0), stats.Available)
	})
}

func (s *StoreTestSuite) TestReserveBatchConcurrent() {
	ctx := context.Background()
	tt := s.newType(1, 1)

	const attempts = 10
	var wg sync.WaitGroup
	var successes atomic.Int32
	for i := range attempts {
		wg.Add(1)
		go func(customerID uint) {
			defer wg.Done()
			tickets := s.newBatch(tt, customerID, 1)
			if err := s.Store.ReserveBatch(ctx, tt.ID, tickets); err == nil {
				successes.Add(1)
			}
		}(uint(1000 + i))
	}
	wg.Wait()

	assert.Equal(s.T(), int32(1), successes.Load())

	stats, err := s.Store.ClassifyTickets(ctx, tt.ID)
	assert.Nil(s.T(), err)
	assert.Equal(s.T(), uint(1), stats.Reserved)
	assert.LessOrEqual(s.T(), stats.Reserved+stats.Sold, tt.Quantity)
}

func (s *StoreTestSuite) TestReserveBatchCustomerCap() {
	tt := s.newType(10, 2)

	_, err := s.reserve(tt, 200, 2)
	assert.Nil(s.T(), err)

	_, err = s.reserve(tt, 200, 1)
	assert.NotNil(s.T(), err)
	assert.Equal(s.T(), types.CodeMaxPerCustomerExceeded, types.CodeOf(err))

	n, err := s.Store.CountCustomerLive(context.Background(), tt.ID, 200)
	assert.Nil(s.T(), err)
	assert.Equal(s.T(), int64(2), n)
}

func (s *StoreTestSuite) TestFinalizeFreePurchase() {
	ctx := context.Background()
	tt := s.newType(10, 5)
	resID, err := s.reserve(tt, 300, 2)
	assert.Nil(s.T(), err)

	now := time.Now()
	n, err := s.Store.FinalizeFreePurchase(ctx, resID, now)
	assert.Nil(s.T(), err)
	assert.Equal(s.T(), int64(2), n)

	tickets, err := s.Store.ListReservation(ctx, resID)
	assert.Nil(s.T(), err)
	for _, t := range tickets {
		assert.Equal(s.T(), types.TICKET_SOLD, t.Status)
		assert.Nil(s.T(), t.ExpiresAt)
		assert.NotNil(s.T(), t.PurchasedAt)
	}

	s.Run("Should be a no-op the second time", func() {
		n, err := s.Store.FinalizeFreePurchase(ctx, resID, time.Now())
		assert.Nil(s.T(), err)
		assert.Equal(s.T(), int64(0), n)
	})
}

func (s *StoreTestSuite) TestPaymentLifecycle() {
	ctx := context.Background()
	tt := s.newType(10, 5)
	resID, err := s.reserve(tt, 400, 2)
	assert.Nil(s.T(), err)

	paymentID := "pi_test_lifecycle"
	err = s.Store.AttachPayment(ctx, resID, paymentID, types.PAYMENT_PENDING)
	assert.Nil(s.T(), err)

	purchasedAt := time.Now()
	n, err := s.Store.CompletePayment(ctx, paymentID, purchasedAt)
	assert.Nil(s.T(), err)
	assert.Equal(s.T(), int64(2), n)

	s.Run("Should ignore a duplicate completion signal", func() {
		n, err := s.Store.CompletePayment(ctx, paymentID, time.Now())
		assert.Nil(s.T(), err)
		assert.Equal(s.T(), int64(0), n)
	})

	s.Run("Should not cancel sold tickets on a late failure signal", func() {
		n, err := s.Store.CancelPayment(ctx, paymentID, types.PAYMENT_FAILED, time.Now())
		assert.Nil(s.T(), err)
		assert.Equal(s.T(), int64(0), n)

		tickets, err := s.Store.ListTicketsByPayment(ctx, paymentID)
		assert.Nil(s.T(), err)
		assert.Len(s.T(), tickets, 2)
		for _, t := range tickets {
			assert.Equal(s.T(), types.TICKET_SOLD, t.Status)
		}
	})

	s.Run("Should reject attaching a payment to a finalized group", func() {
		err := s.Store.AttachPayment(ctx, resID, "pi_other", types.PAYMENT_PENDING)
		assert.NotNil(s.T(), err)
		assert.Equal(s.T(), types.CodeInvalidStatus, types.CodeOf(err))
	})
}

func (s *StoreTestSuite) TestCancelPayment() {
	ctx := context.Background()
	tt := s.newType(10, 5)
	resID, err := s.reserve(tt, 500, 1)
	assert.Nil(s.T(), err)

	paymentID := "pi_test_failed"
	err = s.Store.AttachPayment(ctx, resID, paymentID, types.PAYMENT_PENDING)
	assert.Nil(s.T(), err)

	n, err := s.Store.CancelPayment(ctx, paymentID, types.PAYMENT_FAILED, time.Now())
	assert.Nil(s.T(), err)
	assert.Equal(s.T(), int64(1), n)

	tickets, err := s.Store.ListReservation(ctx, resID)
	assert.Nil(s.T(), err)
	assert.Equal(s.T(), types.TICKET_CANCELLED, tickets[0].Status)
	assert.Equal(s.T(), types.PAYMENT_FAILED, *tickets[0].PaymentStatus)
}

func (s *StoreTestSuite) TestCancelExpired() {
	ctx := context.Background()
	tt := s.newType(10, 5)

	resID, err := s.reserve(tt, 600, 2)
	assert.Nil(s.T(), err)
	freshID, err := s.reserve(tt, 601, 1)
	assert.Nil(s.T(), err)

	// Age the first group past its deadline.
	past := time.Now().Add(-time.Minute)
	err = s.DB.Model(&models.Ticket{}).
		Where("reservation_id = ?", resID).
		Update("expires_at", past).Error
	assert.Nil(s.T(), err)

	expired, err := s.Store.CancelExpired(ctx, time.Now())
	assert.Nil(s.T(), err)
	assert.Len(s.T(), expired, 2)

	cancelled, err := s.Store.ListReservation(ctx, resID)
	assert.Nil(s.T(), err)
	for _, t := range cancelled {
		assert.Equal(s.T(), types.TICKET_CANCELLED, t.Status)
	}

	s.Run("Should leave unexpired reservations alone", func() {
		fresh, err := s.Store.ListReservation(ctx, freshID)
		assert.Nil(s.T(), err)
		assert.Equal(s.T(), types.TICKET_RESERVED, fresh[0].Status)
	})

	s.Run("Should find nothing on a second sweep", func() {
		expired, err := s.Store.CancelExpired(ctx, time.Now())
		assert.Nil(s.T(), err)
		assert.Len(s.T(), expired, 0)
	})
}

func (s *StoreTestSuite) TestSetApproval() {
	ctx := context.Background()
	tt := s.newType(10, 5)

	pending := types.APPROVAL_PENDING
	batch := s.newBatch(tt, 700, 2)
	for _, t := range batch {
		t.Approval = &pending
	}
	err := s.Store.ReserveBatch(ctx, tt.ID, batch)
	assert.Nil(s.T(), err)

	s.Run("Should approve a pending ticket", func() {
		err := s.Store.SetApproval(ctx, batch[0].ID, types.APPROVAL_APPROVED, time.Now())
		assert.Nil(s.T(), err)
		ticket, err := s.Store.GetTicket(ctx, batch[0].ID)
		assert.Nil(s.T(), err)
		assert.Equal(s.T(), types.APPROVAL_APPROVED, *ticket.Approval)
		assert.Equal(s.T(), types.TICKET_RESERVED, ticket.Status)
	})

	s.Run("Should reject an already decided ticket", func() {
		err := s.Store.SetApproval(ctx, batch[0].ID, types.APPROVAL_REJECTED, time.Now())
		assert.NotNil(s.T(), err)
		assert.Equal(s.T(), types.CodeInvalidStatus, types.CodeOf(err))
	})

	s.Run("Should cancel the ticket on rejection", func() {
		err := s.Store.SetApproval(ctx, batch[1].ID, types.APPROVAL_REJECTED, time.Now())
		assert.Nil(s.T(), err)
		ticket, err := s.Store.GetTicket(ctx, batch[1].ID)
		assert.Nil(s.T(), err)
		assert.Equal(s.T(), types.APPROVAL_REJECTED, *ticket.Approval)
		assert.Equal(s.T(), types.TICKET_CANCELLED, ticket.Status)
	})
}

func (s *StoreTestSuite) TestCancelTicket() {
	ctx := context.Background()
	tt := s.newType(10, 5)
	batch := s.newBatch(tt, 800, 1)
	err := s.Store.ReserveBatch(ctx, tt.ID, batch)
	assert.Nil(s.T(), err)

	err = s.Store.CancelTicket(ctx, batch[0].ID, time.Now())
	assert.Nil(s.T(), err)

	ticket, err := s.Store.GetTicket(ctx, batch[0].ID)
	assert.Nil(s.T(), err)
	assert.Equal(s.T(), types.TICKET_CANCELLED, ticket.Status)
	assert.NotNil(s.T(), ticket.CancelledAt)

	s.Run("Should reject cancelling twice", func() {
		err := s.Store.CancelTicket(ctx, batch[0].ID, time.Now())
		assert.NotNil(s.T(), err)
		assert.Equal(s.T(), types.CodeInvalidStatus, types.CodeOf(err))
	})
}

func (s *StoreTestSuite) TestDeleteTicketType() {
	ctx := context.Background()

	s.Run("Should delete a type without tickets", func() {
		tt := s.newType(10, 5)
		err := s.Store.DeleteTicketType(ctx, tt.ID)
		assert.Nil(s.T(), err)
		_, err = s.Store.GetTicketType(ctx, tt.ID)
		assert.NotNil(s.T(), err)
		assert.Equal(s.T(), types.CodeNotFound, types.CodeOf(err))
	})

	s.Run("Should refuse to delete a type with ticket history", func() {
		tt := s.newType(10, 5)
		_, err := s.reserve(tt, 900, 1)
		assert.Nil(s.T(), err)
		err = s.Store.DeleteTicketType(ctx, tt.ID)
		assert.NotNil(s.T(), err)
		assert.Equal(s.T(), types.CodeInvalidStatus, types.CodeOf(err))
	})
}

func (s *StoreTestSuite) TestUpdateTicketType() {
	ctx := context.Background()
	tt := s.newType(10, 5)

	name := "VIP"
	price := float32(99)
	upd, err := s.Store.UpdateTicketType(ctx, tt.ID, &TicketTypeUpdate{Name: &name, Price: &price})
	assert.Nil(s.T(), err)
	assert.Equal(s.T(), "VIP", upd.Name)
	assert.Equal(s.T(), float32(99), upd.Price)
	assert.Equal(s.T(), tt.Quantity, upd.Quantity)
}

func (s *StoreTestSuite) TestGetTicketNotFound() {
	_, err := s.Store.GetTicket(context.Background(), 999999)
	assert.NotNil(s.T(), err)
	assert.Equal(s.T(), types.CodeNotFound, types.CodeOf(err))
}

func TestStoreRunner(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}
