// Package sweep periodically reconciles bookings whose payment is still
// pending after the payment window. Pending bookings are never expired.
package sweep

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"hotelbooking/internal/app/commands"
	"hotelbooking/internal/app/dto"
	"hotelbooking/internal/app/handlers/payments"
	"hotelbooking/internal/app/queries"
)

// Summary counts what one sweep did.
type Summary struct {
	Checked int
	Applied int
	Failed  int
}

type Sweeper struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
	Window   time.Duration
	Limit    int
	Now      func() time.Time
}

// RunOnce reconciles every booking still pending after the window.
// Errors on single bookings are logged and counted; only the listing
// error aborts the sweep.
func (s *Sweeper) RunOnce(ctx context.Context) (Summary, error) {
	var sum Summary
	stale, err := queries.Ask[payments.ListStalePaymentsQuery, []dto.StalePayment](ctx, s.Queries, payments.ListStalePaymentsQuery{
		CreatedBefore: s.now().Add(-s.window()),
		Limit:         s.Limit,
	})
	if err != nil {
		return sum, err
	}
	for _, item := range stale {
		if ctx.Err() != nil {
			return sum, ctx.Err()
		}
		sum.Checked++
		res, err := commands.Dispatch[payments.ReconcilePaymentCommand, dto.ReconcileResult](ctx, s.Commands, payments.ReconcilePaymentCommand{BookingID: item.BookingID})
		if err != nil {
			if !errors.Is(err, payments.ErrReconcileUnsupported) {
				sum.Failed++
				s.logger().Warn("reconcile stale payment", "booking_id", item.BookingID, "order_id", item.OrderID, "error", err)
			}
			continue
		}
		if res.Applied {
			sum.Applied++
		}
	}
	s.logger().Info("payment sweep finished", "checked", sum.Checked, "applied", sum.Applied, "failed", sum.Failed)
	return sum, nil
}

// Start schedules RunOnce on spec (standard five-field cron syntax) and
// returns the running cron. Stop it to end the schedule.
func (s *Sweeper) Start(ctx context.Context, spec string) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(spec, func() {
		if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
			s.logger().Error("payment sweep failed", "error", err)
		}
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	return c, nil
}

func (s *Sweeper) window() time.Duration {
	if s.Window > 0 {
		return s.Window
	}
	return 15 * time.Minute
}

func (s *Sweeper) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Sweeper) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
