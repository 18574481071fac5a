package inventory

import (
	"context"
	"time"

	"tix/src/lib"

	"github.com/sirupsen/logrus"
)

// Sweeper periodically cancels reservations whose hold has lapsed. It is the
// sole enforcer of reservation expiry; the store's conditional status updates
// keep it from clobbering a racing purchase, so a missed run only delays
// reclamation, never corrupts state.
type Sweeper struct {
	service  *Service
	interval time.Duration
}

func NewSweeper(service *Service, interval time.Duration) *Sweeper {
	return &Sweeper{service: service, interval: interval}
}

// Start registers the sweep with the shared scheduler and runs one pass
// immediately so a restart does not leave stale holds until the first tick.
func (w *Sweeper) Start(ctx context.Context) error {
	w.sweep(ctx)
	if _, err := lib.CreateCronJob(func() {
		w.sweep(ctx)
	}, w.interval); err != nil {
		return err
	}
	sched, err := lib.GetScheduler()
	if err != nil {
		return err
	}
	sched.Start()
	return nil
}

func (w *Sweeper) sweep(ctx context.Context) {
	n, err := w.service.CleanupExpiredReservations(ctx)
	if err != nil {
		logrus.Errorf("Error sweeping expired reservations: %s", err.Error())
		return
	}
	if n > 0 {
		logrus.Infof("Swept %d expired reservations", n)
	}
}
