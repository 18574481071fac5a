package guard

import (
	"context"
	"fmt"
	"time"

	"tix/src/config"
	"tix/src/models"
	"tix/src/types"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

// Directory is the slice of the inventory store the organizer checks need.
type Directory interface {
	GetEvent(ctx context.Context, id uint) (*models.Event, error)
	GetOrganizer(ctx context.Context, id uint) (*models.Organizer, error)
	CountEventSold(ctx context.Context, eventID uint) (int64, error)
}

// Guard short-circuits the reservation/purchase pipeline before any
// inventory mutation. Rate limits and fraud heuristics are best-effort abuse
// detection, not a security boundary; on any doubt it denies.
type Guard struct {
	counters CounterStore
	dir      Directory
	clock    clockwork.Clock
	limits   config.LimitsConfig
}

func New(counters CounterStore, dir Directory, clock clockwork.Clock, limits config.LimitsConfig) *Guard {
	return &Guard{counters: counters, dir: dir, clock: clock, limits: limits}
}

func (g *Guard) bump(ctx context.Context, key string, window time.Duration, ceiling int64, action string) error {
	n, err := g.counters.Increment(ctx, key, window)
	if err != nil {
		// Fail closed: an unreachable counter store denies the request.
		return types.Dependency(err, "rate limit counter unavailable for %s", action)
	}
	if n > ceiling {
		logrus.Infof("Rate limit hit for %s: key=%s count=%d", action, key, n)
		return types.NewError(types.CodeRateLimitExceeded, "too many %s attempts, try again later", action)
	}
	return nil
}

func (g *Guard) CheckReservationLimit(ctx context.Context, customerID uint, ip string) error {
	key := fmt.Sprintf("rl:reserve:%d:%s", customerID, ip)
	return g.bump(ctx, key, time.Hour, g.limits.ReservationsPerHour, "reservation")
}

func (g *Guard) CheckPurchaseLimit(ctx context.Context, customerID uint, ip string) error {
	key := fmt.Sprintf("rl:purchase:%d:%s", customerID, ip)
	return g.bump(ctx, key, 24*time.Hour, g.limits.PurchasesPerDay, "purchase")
}

func (g *Guard) CheckOrganizerLimit(ctx context.Context, organizerID uint, ip string) error {
	key := fmt.Sprintf("rl:organizer:%d:%s", organizerID, ip)
	return g.bump(ctx, key, time.Hour, g.limits.OrganizerOpsPerHour, "organizer management")
}

// CheckFraud evaluates the additive fraud signals for one reservation or
// purchase attempt. Any one signal tripping aborts the operation.
func (g *Guard) CheckFraud(ctx context.Context, customerID uint, ip string, amount float32) error {
	ipKey := fmt.Sprintf("fraud:ip:%s", ip)
	n, err := g.counters.Increment(ctx, ipKey, 24*time.Hour)
	if err != nil {
		return types.Dependency(err, "fraud counter unavailable")
	}
	if n > g.limits.SuspiciousIPPerDay {
		logrus.Infof("Suspicious activity from IP %s: count=%d", ip, n)
		return types.NewError(types.CodeFraudDetected, "suspicious activity detected")
	}

	pmKey := fmt.Sprintf("fraud:pm:%d", customerID)
	size, err := g.counters.CountMembers(ctx, pmKey)
	if err != nil {
		return types.Dependency(err, "fraud counter unavailable")
	}
	if size > g.limits.MaxPaymentMethods {
		logrus.Infof("Customer %d exceeds payment method limit: %d", customerID, size)
		return types.NewError(types.CodeFraudDetected, "too many payment methods on record")
	}

	if amount > g.limits.HighValueAmount {
		hvKey := fmt.Sprintf("fraud:hv:%d", customerID)
		n, err := g.counters.Increment(ctx, hvKey, 24*time.Hour)
		if err != nil {
			return types.Dependency(err, "fraud counter unavailable")
		}
		if n > g.limits.HighValueAttemptsPerDay {
			logrus.Infof("Customer %d exceeds high-value attempt limit: %d", customerID, n)
			return types.NewError(types.CodeFraudDetected, "too many high-value purchase attempts")
		}
	}
	return nil
}

// RecordPaymentMethod tracks a payment method fingerprint against the
// customer for the distinct-payment-methods heuristic.
func (g *Guard) RecordPaymentMethod(ctx context.Context, customerID uint, fingerprint string) {
	key := fmt.Sprintf("fraud:pm:%d", customerID)
	if _, err := g.counters.AddMember(ctx, key, fingerprint, 24*time.Hour); err != nil {
		logrus.Errorf("Error recording payment method for customer %d: %s", customerID, err.Error())
	}
}

// flagOrganizer records a denied organizer operation against the
// suspicious-activity counter. Counter errors are logged, not returned, so
// the original denial stays the surfaced error.
func (g *Guard) flagOrganizer(ctx context.Context, organizerID uint) {
	key := fmt.Sprintf("fraud:org:%d", organizerID)
	if _, err := g.counters.Increment(ctx, key, 24*time.Hour); err != nil {
		logrus.Errorf("Error flagging organizer %d: %s", organizerID, err.Error())
	}
}

// VerifyOrganizerOwnsEvent runs the organizer-authorization chain in order,
// stopping at the first failing check to avoid unnecessary store reads.
// Denied checks feed the suspicious-activity counter; the final check only
// reads it, so legitimate operations never count against the organizer.
func (g *Guard) VerifyOrganizerOwnsEvent(ctx context.Context, organizerID, eventID uint) error {
	event, err := g.dir.GetEvent(ctx, eventID)
	if err != nil {
		return err
	}
	if event.OrganizerID != organizerID {
		g.flagOrganizer(ctx, organizerID)
		return types.NewError(types.CodeUnauthorized, "organizer %d does not own event %d", organizerID, eventID)
	}
	now := g.clock.Now()
	if event.EndsAt != nil && now.After(*event.EndsAt) {
		g.flagOrganizer(ctx, organizerID)
		return types.NewError(types.CodeEventLifecycleViolation, "event %d has ended", eventID)
	}
	if event.StartsAt != nil && now.After(*event.StartsAt) {
		g.flagOrganizer(ctx, organizerID)
		return types.NewError(types.CodeEventLifecycleViolation, "event %d has already started", eventID)
	}
	// Unpublished events are visible to their owner only; ownership was
	// already established above.
	if event.Capacity > 0 {
		sold, err := g.dir.CountEventSold(ctx, eventID)
		if err != nil {
			return err
		}
		if sold >= int64(event.Capacity) {
			g.flagOrganizer(ctx, organizerID)
			return types.NewError(types.CodeEventLifecycleViolation, "event %d has reached capacity", eventID)
		}
	}
	organizer, err := g.dir.GetOrganizer(ctx, organizerID)
	if err != nil {
		return err
	}
	if !organizer.Enabled || !organizer.Verified {
		g.flagOrganizer(ctx, organizerID)
		return types.NewError(types.CodeUnauthorized, "organizer %d account is not enabled and verified", organizerID)
	}
	suspKey := fmt.Sprintf("fraud:org:%d", organizerID)
	n, err := g.counters.Current(ctx, suspKey)
	if err != nil {
		return types.Dependency(err, "fraud counter unavailable")
	}
	if n > g.limits.OrganizerSuspiciousMax {
		return types.NewError(types.CodeFraudDetected, "organizer %d has elevated suspicious activity", organizerID)
	}
	return nil
}
