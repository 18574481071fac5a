package inventory

import (
	"context"
	"time"

	"tix/src/cache"
	"tix/src/config"
	"tix/src/guard"
	"tix/src/lib"
	"tix/src/models"
	"tix/src/store"
	"tix/src/types"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

// Service orchestrates the reservation → purchase → sale lifecycle. The
// store owns the truth; the cache fronts hot reads; the guard fails the
// pipeline before any inventory mutation.
type Service struct {
	store    store.InventoryStore
	cache    cache.Cache
	guard    *guard.Guard
	payments lib.PaymentGateway
	clock    clockwork.Clock
	cfg      *config.Config
}

func NewService(st store.InventoryStore, c cache.Cache, g *guard.Guard, pg lib.PaymentGateway, clk clockwork.Clock, cfg *config.Config) *Service {
	return &Service{store: st, cache: c, guard: g, payments: pg, clock: clk, cfg: cfg}
}

func (s *Service) cacheTTL() time.Duration {
	return s.cfg.Inventory.CacheTTL
}

// invalidate drops every cache key whose underlying query the mutation
// could have changed. Errors are logged, not returned: the TTL bounds how
// long a missed delete can linger.
func (s *Service) invalidate(ctx context.Context, keys ...string) {
	if err := s.cache.Delete(ctx, keys...); err != nil {
		logrus.Errorf("Error invalidating cache keys %v: %s", keys, err.Error())
	}
}

func ticketCacheKeys(tickets []models.Ticket) []string {
	keys := []string{}
	seen := map[string]bool{}
	add := func(k string) {
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	for _, t := range tickets {
		add(cache.TicketKey(t.ID))
		add(cache.EventTicketsKey(t.EventID))
		add(cache.CustomerTicketsKey(t.CustomerID))
	}
	return keys
}

// --- Ticket types ---

func (s *Service) CreateTicketType(ctx context.Context, organizerID uint, callerIP string, body *types.CreateTicketTypeRequestBody) (*models.TicketType, error) {
	if err := s.guard.CheckOrganizerLimit(ctx, organizerID, callerIP); err != nil {
		return nil, err
	}
	if err := s.guard.VerifyOrganizerOwnsEvent(ctx, organizerID, body.EventID); err != nil {
		return nil, err
	}
	tt := models.TicketType{
		EventID:         body.EventID,
		Name:            body.Name,
		Price:           body.Price,
		Currency:        body.Currency,
		Quantity:        body.Quantity,
		MaxPerCustomer:  body.MaxPerCustomer,
		RequireApproval: body.RequireApproval,
	}
	if tt.MaxPerCustomer == 0 {
		tt.MaxPerCustomer = 1
	}
	var err error
	if tt.SaleStartsAt, err = parseSaleDate(body.SaleStartsAt); err != nil {
		return nil, err
	}
	if tt.SaleEndsAt, err = parseSaleDate(body.SaleEndsAt); err != nil {
		return nil, err
	}
	if err := s.store.CreateTicketType(ctx, &tt); err != nil {
		return nil, err
	}
	s.invalidate(ctx, cache.EventTicketTypesKey(tt.EventID))
	return &tt, nil
}

func parseSaleDate(raw *string) (*time.Time, error) {
	if raw == nil {
		return nil, nil
	}
	t, err := time.Parse(types.TIME_PARSE_FORMAT, *raw)
	if err != nil {
		return nil, types.NewError(types.CodeValidationFailed, "invalid sale window date: %s", *raw)
	}
	return &t, nil
}

func (s *Service) GetTicketType(ctx context.Context, id uint) (*models.TicketType, error) {
	key := cache.TicketTypeKey(id)
	var cached models.TicketType
	if ok, err := s.cache.GetJSON(ctx, key, &cached); err == nil && ok {
		return &cached, nil
	}
	tt, err := s.store.GetTicketType(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetJSON(ctx, key, tt, s.cacheTTL()); err != nil {
		logrus.Errorf("Error caching ticket type %d: %s", id, err.Error())
	}
	return tt, nil
}

func (s *Service) UpdateTicketType(ctx context.Context, organizerID uint, callerIP string, id uint, body *types.UpdateTicketTypeRequestBody) (*models.TicketType, error) {
	if err := s.guard.CheckOrganizerLimit(ctx, organizerID, callerIP); err != nil {
		return nil, err
	}
	existing, err := s.store.GetTicketType(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.guard.VerifyOrganizerOwnsEvent(ctx, organizerID, existing.EventID); err != nil {
		return nil, err
	}
	upd := store.TicketTypeUpdate{
		Name:            body.Name,
		Price:           body.Price,
		MaxPerCustomer:  body.MaxPerCustomer,
		RequireApproval: body.RequireApproval,
	}
	if upd.SaleStartsAt, err = parseSaleDate(body.SaleStartsAt); err != nil {
		return nil, err
	}
	if upd.SaleEndsAt, err = parseSaleDate(body.SaleEndsAt); err != nil {
		return nil, err
	}
	tt, err := s.store.UpdateTicketType(ctx, id, &upd)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, cache.TicketTypeKey(id), cache.EventTicketTypesKey(tt.EventID))
	return tt, nil
}

func (s *Service) DeleteTicketType(ctx context.Context, organizerID uint, callerIP string, id uint) error {
	if err := s.guard.CheckOrganizerLimit(ctx, organizerID, callerIP); err != nil {
		return err
	}
	existing, err := s.store.GetTicketType(ctx, id)
	if err != nil {
		return err
	}
	if err := s.guard.VerifyOrganizerOwnsEvent(ctx, organizerID, existing.EventID); err != nil {
		return err
	}
	if err := s.store.DeleteTicketType(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, cache.TicketTypeKey(id), cache.EventTicketTypesKey(existing.EventID))
	return nil
}

func (s *Service) ListEventTicketTypes(ctx context.Context, eventID uint) ([]models.TicketType, error) {
	key := cache.EventTicketTypesKey(eventID)
	var cached []models.TicketType
	if ok, err := s.cache.GetJSON(ctx, key, &cached); err == nil && ok {
		return cached, nil
	}
	tts, err := s.store.ListEventTicketTypes(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetJSON(ctx, key, tts, s.cacheTTL()); err != nil {
		logrus.Errorf("Error caching ticket types for event %d: %s", eventID, err.Error())
	}
	return tts, nil
}

// GetTicketTypeStats is the authoritative availability computation: a full
// scan-and-classify of the Ticket ledger, never a cached aggregate.
func (s *Service) GetTicketTypeStats(ctx context.Context, ticketTypeID uint) (*models.TicketTypeStats, error) {
	return s.store.ClassifyTickets(ctx, ticketTypeID)
}

// --- Reservation / purchase state machine ---

type ReserveInput struct {
	CustomerID    uint
	TicketTypeID  uint
	Quantity      uint
	CustomerName  string
	CustomerEmail string
	CallerIP      string
}

func (s *Service) ReserveTickets(ctx context.Context, in *ReserveInput) ([]models.Ticket, error) {
	if err := s.guard.CheckReservationLimit(ctx, in.CustomerID, in.CallerIP); err != nil {
		return nil, err
	}
	tt, err := s.GetTicketType(ctx, in.TicketTypeID)
	if err != nil {
		return nil, err
	}
	if err := s.guard.CheckFraud(ctx, in.CustomerID, in.CallerIP, tt.Price*float32(in.Quantity)); err != nil {
		return nil, err
	}
	now := s.clock.Now()
	if tt.SaleStartsAt != nil && now.Before(*tt.SaleStartsAt) {
		return nil, types.NewError(types.CodeEventLifecycleViolation, "sales for ticket type %d have not started", tt.ID)
	}
	if tt.SaleEndsAt != nil && now.After(*tt.SaleEndsAt) {
		return nil, types.NewError(types.CodeEventLifecycleViolation, "sales for ticket type %d have ended", tt.ID)
	}

	// Pre-checks on a fresh ledger scan. The store re-validates both counts
	// inside the reservation transaction, so stale reads here can only
	// produce an early failure, never an oversell.
	stats, err := s.store.ClassifyTickets(ctx, in.TicketTypeID)
	if err != nil {
		return nil, err
	}
	if err := ValidateAvailability(stats, in.Quantity); err != nil {
		return nil, err
	}
	own, err := s.store.CountCustomerLive(ctx, in.TicketTypeID, in.CustomerID)
	if err != nil {
		return nil, err
	}
	if err := ValidateCustomerLimit(tt.MaxPerCustomer, own, in.Quantity); err != nil {
		return nil, err
	}

	reservationID := uuid.New()
	expiresAt := now.Add(s.cfg.Inventory.ReservationTTL)
	var approval *types.ApprovalStatus
	if tt.RequireApproval {
		pending := types.APPROVAL_PENDING
		approval = &pending
	}
	tickets := make([]*models.Ticket, 0, in.Quantity)
	for range in.Quantity {
		reserved := now
		expiry := expiresAt
		tickets = append(tickets, &models.Ticket{
			EventID:       tt.EventID,
			TicketTypeID:  tt.ID,
			CustomerID:    in.CustomerID,
			ReservationID: reservationID,
			Status:        types.TICKET_RESERVED,
			Approval:      approval,
			Price:         tt.Price,
			Currency:      tt.Currency,
			CustomerName:  in.CustomerName,
			CustomerEmail: in.CustomerEmail,
			ReservedAt:    &reserved,
			ExpiresAt:     &expiry,
		})
	}
	if err := s.store.ReserveBatch(ctx, tt.ID, tickets); err != nil {
		return nil, err
	}
	logrus.Infof("Reserved %d tickets of type %d for customer %d, reservation %s", in.Quantity, tt.ID, in.CustomerID, reservationID)

	out := make([]models.Ticket, 0, len(tickets))
	for _, t := range tickets {
		out = append(out, *t)
	}
	s.invalidate(ctx, ticketCacheKeys(out)...)
	return out, nil
}

// PurchaseTickets finalizes a reservation group. Free groups flip to SOLD
// synchronously; priced groups get one gateway payment for the subtotal and
// stay RESERVED until the payment webhook lands.
func (s *Service) PurchaseTickets(ctx context.Context, customerID uint, reservationID uuid.UUID, callerIP string) ([]models.Ticket, error) {
	if err := s.guard.CheckPurchaseLimit(ctx, customerID, callerIP); err != nil {
		return nil, err
	}
	tickets, err := s.store.ListReservation(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if len(tickets) == 0 {
		return nil, types.NewError(types.CodeNotFound, "reservation %s not found", reservationID)
	}
	var subtotal float32
	for _, t := range tickets {
		if t.CustomerID != customerID {
			return nil, types.NewError(types.CodeUnauthorized, "reservation %s does not belong to customer %d", reservationID, customerID)
		}
		if t.Status != types.TICKET_RESERVED {
			return nil, types.NewError(types.CodeInvalidStatus, "ticket %d is %s, expected reserved", t.ID, t.Status)
		}
		subtotal += t.Price
	}
	if err := s.guard.CheckFraud(ctx, customerID, callerIP, subtotal); err != nil {
		return nil, err
	}

	if subtotal == 0 {
		n, err := s.store.FinalizeFreePurchase(ctx, reservationID, s.clock.Now())
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, types.NewError(types.CodeInvalidStatus, "reservation %s changed state concurrently", reservationID)
		}
		logrus.Infof("Finalized free reservation %s (%d tickets) for customer %d", reservationID, n, customerID)
		return s.reloadReservation(ctx, reservationID, tickets)
	}

	payment, err := s.payments.CreatePayment(ctx, &lib.CreatePaymentParams{
		Amount:        subtotal,
		Currency:      tickets[0].Currency,
		CustomerID:    customerID,
		CustomerEmail: tickets[0].CustomerEmail,
		Metadata:      map[string]string{"reservation_id": reservationID.String()},
	})
	if err != nil {
		return nil, types.Dependency(err, "payment gateway error for reservation %s", reservationID)
	}
	if err := s.store.AttachPayment(ctx, reservationID, payment.ID, payment.Status); err != nil {
		return nil, err
	}
	logrus.Infof("Created payment %s for reservation %s, awaiting completion", payment.ID, reservationID)
	return s.reloadReservation(ctx, reservationID, tickets)
}

func (s *Service) reloadReservation(ctx context.Context, reservationID uuid.UUID, before []models.Ticket) ([]models.Ticket, error) {
	s.invalidate(ctx, ticketCacheKeys(before)...)
	return s.store.ListReservation(ctx, reservationID)
}

// CancelReservation is the customer-initiated path: valid only while the
// whole group is still RESERVED.
func (s *Service) CancelReservation(ctx context.Context, customerID uint, reservationID uuid.UUID) ([]models.Ticket, error) {
	tickets, err := s.store.ListReservation(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if len(tickets) == 0 {
		return nil, types.NewError(types.CodeNotFound, "reservation %s not found", reservationID)
	}
	for _, t := range tickets {
		if t.CustomerID != customerID {
			return nil, types.NewError(types.CodeUnauthorized, "reservation %s does not belong to customer %d", reservationID, customerID)
		}
		if t.Status != types.TICKET_RESERVED {
			return nil, types.NewError(types.CodeInvalidStatus, "ticket %d is %s, expected reserved", t.ID, t.Status)
		}
	}
	if _, err := s.store.CancelReservation(ctx, reservationID, s.clock.Now()); err != nil {
		return nil, err
	}
	return s.reloadReservation(ctx, reservationID, tickets)
}

// CancelTicket is the operator path for a single unit.
func (s *Service) CancelTicket(ctx context.Context, id uint) (*models.Ticket, error) {
	before, err := s.store.GetTicket(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.store.CancelTicket(ctx, id, s.clock.Now()); err != nil {
		return nil, err
	}
	s.invalidate(ctx, ticketCacheKeys([]models.Ticket{*before})...)
	return s.store.GetTicket(ctx, id)
}

func (s *Service) GetTicket(ctx context.Context, id uint) (*models.Ticket, error) {
	key := cache.TicketKey(id)
	var cached models.Ticket
	if ok, err := s.cache.GetJSON(ctx, key, &cached); err == nil && ok {
		return &cached, nil
	}
	ticket, err := s.store.GetTicket(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetJSON(ctx, key, ticket, s.cacheTTL()); err != nil {
		logrus.Errorf("Error caching ticket %d: %s", id, err.Error())
	}
	return ticket, nil
}

func (s *Service) ListCustomerTickets(ctx context.Context, customerID uint) ([]models.Ticket, error) {
	key := cache.CustomerTicketsKey(customerID)
	var cached []models.Ticket
	if ok, err := s.cache.GetJSON(ctx, key, &cached); err == nil && ok {
		return cached, nil
	}
	tickets, err := s.store.ListCustomerTickets(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetJSON(ctx, key, tickets, s.cacheTTL()); err != nil {
		logrus.Errorf("Error caching tickets for customer %d: %s", customerID, err.Error())
	}
	return tickets, nil
}

func (s *Service) ListEventTickets(ctx context.Context, eventID uint) ([]models.Ticket, error) {
	key := cache.EventTicketsKey(eventID)
	var cached []models.Ticket
	if ok, err := s.cache.GetJSON(ctx, key, &cached); err == nil && ok {
		return cached, nil
	}
	tickets, err := s.store.ListEventTickets(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetJSON(ctx, key, tickets, s.cacheTTL()); err != nil {
		logrus.Errorf("Error caching tickets for event %d: %s", eventID, err.Error())
	}
	return tickets, nil
}

// --- Approval workflow ---

func (s *Service) ApproveTicket(ctx context.Context, id uint) (*models.Ticket, error) {
	return s.setApproval(ctx, id, types.APPROVAL_APPROVED)
}

func (s *Service) RejectTicket(ctx context.Context, id uint) (*models.Ticket, error) {
	return s.setApproval(ctx, id, types.APPROVAL_REJECTED)
}

func (s *Service) setApproval(ctx context.Context, id uint, status types.ApprovalStatus) (*models.Ticket, error) {
	before, err := s.store.GetTicket(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetApproval(ctx, id, status, s.clock.Now()); err != nil {
		return nil, err
	}
	s.invalidate(ctx, ticketCacheKeys([]models.Ticket{*before})...)
	return s.store.GetTicket(ctx, id)
}

func (s *Service) ListPendingApprovals(ctx context.Context, eventID uint) ([]models.Ticket, error) {
	return s.store.ListPendingApprovals(ctx, eventID)
}

// --- Validation endpoints ---

func (s *Service) ValidateTicketAvailability(ctx context.Context, ticketTypeID, quantity uint) error {
	stats, err := s.store.ClassifyTickets(ctx, ticketTypeID)
	if err != nil {
		return err
	}
	return ValidateAvailability(stats, quantity)
}

func (s *Service) ValidateCustomerTicketLimit(ctx context.Context, ticketTypeID, customerID, quantity uint) error {
	tt, err := s.store.GetTicketType(ctx, ticketTypeID)
	if err != nil {
		return err
	}
	own, err := s.store.CountCustomerLive(ctx, ticketTypeID, customerID)
	if err != nil {
		return err
	}
	return ValidateCustomerLimit(tt.MaxPerCustomer, own, quantity)
}

// --- Payment reconciliation ---

// HandlePaymentWebhook reconciles an asynchronous gateway signal. The store
// updates are conditional on RESERVED, so repeated signals for a finalized
// ticket are no-ops rather than errors.
func (s *Service) HandlePaymentWebhook(ctx context.Context, paymentID string, status types.PaymentStatus) error {
	tickets, err := s.store.ListTicketsByPayment(ctx, paymentID)
	if err != nil {
		return err
	}
	if len(tickets) == 0 {
		return types.NewError(types.CodeNotFound, "no tickets recorded for payment %s", paymentID)
	}
	var n int64
	switch status {
	case types.PAYMENT_COMPLETED:
		n, err = s.store.CompletePayment(ctx, paymentID, s.clock.Now())
	case types.PAYMENT_FAILED, types.PAYMENT_CANCELLED:
		n, err = s.store.CancelPayment(ctx, paymentID, status, s.clock.Now())
	default:
		logrus.Infof("Ignoring payment %s signal with status %s", paymentID, status)
		return nil
	}
	if err != nil {
		return err
	}
	if n == 0 {
		logrus.Infof("Payment %s signal %s matched no reserved tickets, already finalized", paymentID, status)
		return nil
	}
	logrus.Infof("Payment %s %s finalized %d tickets", paymentID, status, n)
	s.invalidate(ctx, ticketCacheKeys(tickets)...)
	return nil
}

// RecordPaymentFingerprint feeds the distinct-payment-method fraud signal.
// Best effort, called from the payment webhook once the gateway reveals the
// instrument used.
func (s *Service) RecordPaymentFingerprint(ctx context.Context, customerID uint, fingerprint string) {
	s.guard.RecordPaymentMethod(ctx, customerID, fingerprint)
}

// --- Expiry sweeping ---

// CleanupExpiredReservations cancels every reservation past its deadline
// and invalidates the affected cache entries. Safe to run concurrently with
// itself and with in-flight purchases.
func (s *Service) CleanupExpiredReservations(ctx context.Context) (int, error) {
	expired, err := s.store.CancelExpired(ctx, s.clock.Now())
	if err != nil {
		return 0, err
	}
	if len(expired) == 0 {
		return 0, nil
	}
	s.invalidate(ctx, ticketCacheKeys(expired)...)
	return len(expired), nil
}
