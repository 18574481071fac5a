package inventory

import (
	"context"
	"fmt"
	"log"
	"sync"
	"testing"
	"time"

	"tix/src/cache"
	"tix/src/config"
	"tix/src/guard"
	"tix/src/lib"
	"tix/src/models"
	"tix/src/store"
	"tix/src/types"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// memCounters is an in-memory CounterStore. Windows are ignored; tests
// exercise ceilings, not expiry.
type memCounters struct {
	mu     sync.Mutex
	counts map[string]int64
	sets   map[string]map[string]struct{}
}

func newMemCounters() *memCounters {
	return &memCounters{counts: map[string]int64{}, sets: map[string]map[string]struct{}{}}
}

func (m *memCounters) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[key]++
	return m.counts[key], nil
}

func (m *memCounters) AddMember(ctx context.Context, key, member string, window time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sets[key] == nil {
		m.sets[key] = map[string]struct{}{}
	}
	m.sets[key][member] = struct{}{}
	return int64(len(m.sets[key])), nil
}

func (m *memCounters) CountMembers(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.sets[key])), nil
}

func (m *memCounters) Current(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[key], nil
}

type fakeGateway struct {
	mu      sync.Mutex
	created int
}

func (g *fakeGateway) CreatePayment(ctx context.Context, params *lib.CreatePaymentParams) (*lib.Payment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.created++
	return &lib.Payment{ID: fmt.Sprintf("pi_fake_%d", g.created), Status: types.PAYMENT_PENDING}, nil
}

type ServiceTestSuite struct {
	suite.Suite
	DB      *gorm.DB
	Store   *store.GormStore
	Clock   *clockwork.FakeClock
	Gateway *fakeGateway
	Service *Service
	Event   models.Event
}

func (s *ServiceTestSuite) SetupSuite() {
	db, err := gorm.Open(sqlite.Open("file:svc?mode=memory&cache=shared"), &gorm.Config{})
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
	s.Store = store.NewGormStore(db)
	s.Clock = clockwork.NewFakeClockAt(time.Now())
	s.Gateway = &fakeGateway{}

	cfg := &config.Config{
		Inventory: config.InventoryConfig{
			ReservationTTL: 15 * time.Minute,
			CacheTTL:       time.Hour,
			SweepInterval:  time.Minute,
		},
		Limits: config.LimitsConfig{
			ReservationsPerHour:     3,
			PurchasesPerDay:         20,
			OrganizerOpsPerHour:     100,
			SuspiciousIPPerDay:      10,
			MaxPaymentMethods:       3,
			HighValueAmount:         1000,
			HighValueAttemptsPerDay: 2,
			OrganizerSuspiciousMax:  10,
		},
	}

	g := guard.New(newMemCounters(), s.Store, s.Clock, cfg.Limits)
	s.Service = NewService(s.Store, cache.NewNoopCache(), g, s.Gateway, s.Clock, cfg)

	organizer := models.Organizer{Name: "Organizer", Email: "org@example.com", Enabled: true, Verified: true}
	if err := db.Create(&organizer).Error; err != nil {
		log.Fatalf("error creating organizer: %s", err.Error())
	}
	starts := s.Clock.Now().Add(72 * time.Hour)
	s.Event = models.Event{OrganizerID: organizer.ID, Title: "Concert", Status: types.EVENT_PUBLISHED, StartsAt: &starts}
	if err := db.Create(&s.Event).Error; err != nil {
		log.Fatalf("error creating event: %s", err.Error())
	}
}

func (s *ServiceTestSuite) TearDownSuite() {
	inner, err := s.DB.DB()
	if err != nil {
		return
	}
	inner.Close()
}

func (s *ServiceTestSuite) newType(price float32, quantity, maxPer uint, approval bool) *models.TicketType {
	tt := models.TicketType{
		EventID:         s.Event.ID,
		Name:            "General Admission",
		Price:           price,
		Currency:        "USD",
		Quantity:        quantity,
		MaxPerCustomer:  maxPer,
		RequireApproval: approval,
	}
	err := s.Store.CreateTicketType(context.Background(), &tt)
	assert.Nil(s.T(), err)
	return &tt
}

func (s *ServiceTestSuite) reserve(customerID uint, ip string, ttID, qty uint) ([]models.Ticket, error) {
	return s.Service.ReserveTickets(context.Background(), &ReserveInput{
		CustomerID:    customerID,
		TicketTypeID:  ttID,
		Quantity:      qty,
		CustomerName:  "Customer",
		CustomerEmail: "customer@example.com",
		CallerIP:      ip,
	})
}

func (s *ServiceTestSuite) TestCreateTicketType() {
	ctx := context.Background()
	ip := "10.9.0.1"

	s.Run("Should not flag repeated legitimate organizer operations", func() {
		// More creates than the suspicious-activity ceiling allows if
		// successful operations fed the counter.
		for i := range 12 {
			_, err := s.Service.CreateTicketType(ctx, s.Event.OrganizerID, ip, &types.CreateTicketTypeRequestBody{
				EventID:  s.Event.ID,
				Name:     fmt.Sprintf("Tier %d", i),
				Price:    10,
				Currency: "USD",
				Quantity: 5,
			})
			assert.Nil(s.T(), err)
		}
	})

	s.Run("Should reject a malformed sale window date", func() {
		raw := "not-a-date"
		_, err := s.Service.CreateTicketType(ctx, s.Event.OrganizerID, ip, &types.CreateTicketTypeRequestBody{
			EventID:      s.Event.ID,
			Name:         "Early Bird",
			Price:        10,
			Currency:     "USD",
			Quantity:     5,
			SaleStartsAt: &raw,
		})
		assert.NotNil(s.T(), err)
		assert.Equal(s.T(), types.CodeValidationFailed, types.CodeOf(err))
	})
}

func (s *ServiceTestSuite) TestFreePurchaseFlow() {
	ctx := context.Background()
	tt := s.newType(0, 10, 5, false)

	tickets, err := s.reserve(1000, "10.0.0.1", tt.ID, 2)
	assert.Nil(s.T(), err)
	assert.Len(s.T(), tickets, 2)
	for _, t := range tickets {
		assert.Equal(s.T(), types.TICKET_RESERVED, t.Status)
		assert.NotNil(s.T(), t.ExpiresAt)
		assert.Equal(s.T(), tickets[0].ReservationID, t.ReservationID)
	}

	purchased, err := s.Service.PurchaseTickets(ctx, 1000, tickets[0].ReservationID, "10.0.0.1")
	assert.Nil(s.T(), err)
	for _, t := range purchased {
		assert.Equal(s.T(), types.TICKET_SOLD, t.Status)
		assert.Nil(s.T(), t.ExpiresAt)
		assert.NotNil(s.T(), t.PurchasedAt)
	}

	s.Run("Should reject purchasing the group twice", func() {
		_, err := s.Service.PurchaseTickets(ctx, 1000, tickets[0].ReservationID, "10.0.0.1")
		assert.NotNil(s.T(), err)
		assert.Equal(s.T(), types.CodeInvalidStatus, types.CodeOf(err))
	})
}

func (s *ServiceTestSuite) TestPricedPurchaseFlow() {
	ctx := context.Background()
	tt := s.newType(50, 10, 5, false)

	tickets, err := s.reserve(1100, "10.0.1.1", tt.ID, 2)
	assert.Nil(s.T(), err)

	pending, err := s.Service.PurchaseTickets(ctx, 1100, tickets[0].ReservationID, "10.0.1.1")
	assert.Nil(s.T(), err)
	var paymentID string
	for _, t := range pending {
		assert.Equal(s.T(), types.TICKET_RESERVED, t.Status)
		assert.NotNil(s.T(), t.PaymentID)
		paymentID = *t.PaymentID
	}

	s.Run("Should flip the group to sold on completion", func() {
		err := s.Service.HandlePaymentWebhook(ctx, paymentID, types.PAYMENT_COMPLETED)
		assert.Nil(s.T(), err)
		sold, err := s.Store.ListReservation(ctx, tickets[0].ReservationID)
		assert.Nil(s.T(), err)
		for _, t := range sold {
			assert.Equal(s.T(), types.TICKET_SOLD, t.Status)
			assert.Equal(s.T(), types.PAYMENT_COMPLETED, *t.PaymentStatus)
		}
	})

	s.Run("Should tolerate a duplicate webhook", func() {
		err := s.Service.HandlePaymentWebhook(ctx, paymentID, types.PAYMENT_COMPLETED)
		assert.Nil(s.T(), err)
	})

	s.Run("Should not cancel sold tickets on a late failure signal", func() {
		err := s.Service.HandlePaymentWebhook(ctx, paymentID, types.PAYMENT_FAILED)
		assert.Nil(s.T(), err)
		sold, err := s.Store.ListReservation(ctx, tickets[0].ReservationID)
		assert.Nil(s.T(), err)
		for _, t := range sold {
			assert.Equal(s.T(), types.TICKET_SOLD, t.Status)
		}
	})
}

func (s *ServiceTestSuite) TestFailedPaymentCancelsGroup() {
	ctx := context.Background()
	tt := s.newType(40, 10, 5, false)

	tickets, err := s.reserve(1200, "10.0.2.1", tt.ID, 1)
	assert.Nil(s.T(), err)
	pending, err := s.Service.PurchaseTickets(ctx, 1200, tickets[0].ReservationID, "10.0.2.1")
	assert.Nil(s.T(), err)

	err = s.Service.HandlePaymentWebhook(ctx, *pending[0].PaymentID, types.PAYMENT_FAILED)
	assert.Nil(s.T(), err)

	after, err := s.Store.ListReservation(ctx, tickets[0].ReservationID)
	assert.Nil(s.T(), err)
	assert.Equal(s.T(), types.TICKET_CANCELLED, after[0].Status)
	assert.Equal(s.T(), types.PAYMENT_FAILED, *after[0].PaymentStatus)
}

func (s *ServiceTestSuite) TestWebhookUnknownPayment() {
	err := s.Service.HandlePaymentWebhook(context.Background(), "pi_never_seen", types.PAYMENT_COMPLETED)
	assert.NotNil(s.T(), err)
	assert.Equal(s.T(), types.CodeNotFound, types.CodeOf(err))
}

func (s *ServiceTestSuite) TestOversell() {
	tt := s.newType(0, 1, 5, false)

	_, err := s.reserve(1300, "10.0.3.1", tt.ID, 1)
	assert.Nil(s.T(), err)

	_, err = s.reserve(1301, "10.0.3.2", tt.ID, 1)
	assert.NotNil(s.T(), err)
	assert.Equal(s.T(), types.CodeSoldOut, types.CodeOf(err))
}

func (s *ServiceTestSuite) TestSaleWindow() {
	ctx := context.Background()

	s.Run("Should reject before sales start", func() {
		starts := s.Clock.Now().Add(24 * time.Hour)
		tt := models.TicketType{EventID: s.Event.ID, Name: "Early Bird", Currency: "USD", Quantity: 10, MaxPerCustomer: 5, SaleStartsAt: &starts}
		assert.Nil(s.T(), s.Store.CreateTicketType(ctx, &tt))

		_, err := s.reserve(1400, "10.0.4.1", tt.ID, 1)
		assert.NotNil(s.T(), err)
		assert.Equal(s.T(), types.CodeEventLifecycleViolation, types.CodeOf(err))
	})

	s.Run("Should reject after sales end", func() {
		ends := s.Clock.Now().Add(-time.Hour)
		tt := models.TicketType{EventID: s.Event.ID, Name: "Closed", Currency: "USD", Quantity: 10, MaxPerCustomer: 5, SaleEndsAt: &ends}
		assert.Nil(s.T(), s.Store.CreateTicketType(ctx, &tt))

		_, err := s.reserve(1401, "10.0.4.2", tt.ID, 1)
		assert.NotNil(s.T(), err)
		assert.Equal(s.T(), types.CodeEventLifecycleViolation, types.CodeOf(err))
	})
}

func (s *ServiceTestSuite) TestReservationRateLimit() {
	tt := s.newType(0, 100, 50, false)

	for i := range 3 {
		_, err := s.reserve(1500, "10.0.5.1", tt.ID, 1)
		assert.Nil(s.T(), err, "attempt %d should pass", i+1)
	}
	_, err := s.reserve(1500, "10.0.5.1", tt.ID, 1)
	assert.NotNil(s.T(), err)
	assert.Equal(s.T(), types.CodeRateLimitExceeded, types.CodeOf(err))
}

func (s *ServiceTestSuite) TestSuspiciousIP() {
	tt := s.newType(0, 100, 50, false)

	// Distinct customers keep each under the per-customer rate ceiling while
	// the shared IP accumulates.
	var lastErr error
	for i := range 11 {
		_, lastErr = s.reserve(uint(1600+i), "10.0.6.1", tt.ID, 1)
	}
	assert.NotNil(s.T(), lastErr)
	assert.Equal(s.T(), types.CodeFraudDetected, types.CodeOf(lastErr))
}

func (s *ServiceTestSuite) TestHighValueAttempts() {
	tt := s.newType(600, 100, 50, false)

	var lastErr error
	for i := range 3 {
		_, lastErr = s.reserve(1700, fmt.Sprintf("10.0.7.%d", i+1), tt.ID, 2)
	}
	assert.NotNil(s.T(), lastErr)
	assert.Equal(s.T(), types.CodeFraudDetected, types.CodeOf(lastErr))
}

func (s *ServiceTestSuite) TestPaymentMethodFingerprints() {
	ctx := context.Background()
	tt := s.newType(0, 100, 50, false)

	for i := range 4 {
		s.Service.RecordPaymentFingerprint(ctx, 1800, fmt.Sprintf("pm_card_%d", i))
	}
	_, err := s.reserve(1800, "10.0.8.1", tt.ID, 1)
	assert.NotNil(s.T(), err)
	assert.Equal(s.T(), types.CodeFraudDetected, types.CodeOf(err))
}

func (s *ServiceTestSuite) TestExpirySweep() {
	ctx := context.Background()
	tt := s.newType(0, 10, 5, false)

	tickets, err := s.reserve(1900, "10.0.9.1", tt.ID, 2)
	assert.Nil(s.T(), err)

	sold, err := s.reserve(1901, "10.0.9.2", tt.ID, 1)
	assert.Nil(s.T(), err)
	_, err = s.Service.PurchaseTickets(ctx, 1901, sold[0].ReservationID, "10.0.9.2")
	assert.Nil(s.T(), err)

	s.Clock.Advance(16 * time.Minute)

	// Reservations left behind by earlier tests expire here too, so assert
	// on this group rather than the total swept count.
	n, err := s.Service.CleanupExpiredReservations(ctx)
	assert.Nil(s.T(), err)
	assert.GreaterOrEqual(s.T(), n, 2)

	swept, err := s.Store.ListReservation(ctx, tickets[0].ReservationID)
	assert.Nil(s.T(), err)
	for _, t := range swept {
		assert.Equal(s.T(), types.TICKET_CANCELLED, t.Status)
	}

	s.Run("Should release the swept units back to availability", func() {
		stats, err := s.Service.GetTicketTypeStats(ctx, tt.ID)
		assert.Nil(s.T(), err)
		assert.Equal(s.T(), uint(2), stats.Cancelled)
		assert.Equal(s.T(), uint(1), stats.Sold)
		assert.Equal(s.T(), uint(9), stats.Available)
	})

	s.Run("Should not touch sold tickets", func() {
		after, err := s.Store.ListReservation(ctx, sold[0].ReservationID)
		assert.Nil(s.T(), err)
		assert.Equal(s.T(), types.TICKET_SOLD, after[0].Status)
	})

	s.Run("Should reject purchasing a swept reservation", func() {
		_, err := s.Service.PurchaseTickets(ctx, 1900, tickets[0].ReservationID, "10.0.9.1")
		assert.NotNil(s.T(), err)
		assert.Equal(s.T(), types.CodeInvalidStatus, types.CodeOf(err))
	})
}

func (s *ServiceTestSuite) TestCancelReservation() {
	ctx := context.Background()
	tt := s.newType(0, 10, 5, false)

	tickets, err := s.reserve(2000, "10.0.10.1", tt.ID, 2)
	assert.Nil(s.T(), err)

	s.Run("Should reject cancellation by another customer", func() {
		_, err := s.Service.CancelReservation(ctx, 2001, tickets[0].ReservationID)
		assert.NotNil(s.T(), err)
		assert.Equal(s.T(), types.CodeUnauthorized, types.CodeOf(err))
	})

	cancelled, err := s.Service.CancelReservation(ctx, 2000, tickets[0].ReservationID)
	assert.Nil(s.T(), err)
	for _, t := range cancelled {
		assert.Equal(s.T(), types.TICKET_CANCELLED, t.Status)
	}

	s.Run("Should reject purchasing after cancellation", func() {
		_, err := s.Service.PurchaseTickets(ctx, 2000, tickets[0].ReservationID, "10.0.10.1")
		assert.NotNil(s.T(), err)
		assert.Equal(s.T(), types.CodeInvalidStatus, types.CodeOf(err))
	})
}

func (s *ServiceTestSuite) TestApprovalWorkflow() {
	ctx := context.Background()
	tt := s.newType(0, 10, 5, true)

	tickets, err := s.reserve(2100, "10.0.11.1", tt.ID, 2)
	assert.Nil(s.T(), err)
	for _, t := range tickets {
		assert.NotNil(s.T(), t.Approval)
		assert.Equal(s.T(), types.APPROVAL_PENDING, *t.Approval)
	}

	pending, err := s.Service.ListPendingApprovals(ctx, s.Event.ID)
	assert.Nil(s.T(), err)
	assert.GreaterOrEqual(s.T(), len(pending), 2)

	approved, err := s.Service.ApproveTicket(ctx, tickets[0].ID)
	assert.Nil(s.T(), err)
	assert.Equal(s.T(), types.APPROVAL_APPROVED, *approved.Approval)
	assert.Equal(s.T(), types.TICKET_RESERVED, approved.Status)

	rejected, err := s.Service.RejectTicket(ctx, tickets[1].ID)
	assert.Nil(s.T(), err)
	assert.Equal(s.T(), types.APPROVAL_REJECTED, *rejected.Approval)
	assert.Equal(s.T(), types.TICKET_CANCELLED, rejected.Status)
}

func (s *ServiceTestSuite) TestReserveUnknownType() {
	_, err := s.reserve(2200, "10.0.12.1", 999999, 1)
	assert.NotNil(s.T(), err)
	assert.Equal(s.T(), types.CodeNotFound, types.CodeOf(err))
}

func TestServiceRunner(t *testing.T) {
	suite.Run(t, new(ServiceTestSuite))
}
