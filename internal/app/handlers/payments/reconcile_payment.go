package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"hotelbooking/internal/app/commands"
	"hotelbooking/internal/app/dto"
	"hotelbooking/internal/app/handlers/support"
	"hotelbooking/internal/app/outbox"
	"hotelbooking/internal/app/policies"
	"hotelbooking/internal/app/settlement"
	"hotelbooking/internal/app/uow"
	domainbooking "hotelbooking/internal/domain/booking"
)

const reconcilePaymentKey = "payments.reconcile"

var ErrReconcileUnsupported = errors.New("payments: payment method has no status query")

// ReconcilePaymentCommand polls the provider for a booking that is still
// waiting on its callback and applies the answer.
type ReconcilePaymentCommand struct {
	BookingID string `validate:"required"`
}

func (c ReconcilePaymentCommand) Key() string { return reconcilePaymentKey }

// The provider is polled outside any transaction.
func (c ReconcilePaymentCommand) SelfManagedTransaction() bool { return true }

type ReconcilePaymentHandler struct {
	UoWFactory uow.UoWFactory
	Gateways   policies.GatewayRegistry
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Logger     *slog.Logger
	Now        func() time.Time
}

func (h *ReconcilePaymentHandler) Handle(ctx context.Context, cmd ReconcilePaymentCommand) (dto.ReconcileResult, error) {
	id := domainbooking.BookingID(cmd.BookingID)
	b, p, err := h.load(ctx, id)
	if err != nil {
		return dto.ReconcileResult{}, err
	}
	out := dto.ReconcileResult{BookingID: cmd.BookingID, BookingStatus: string(b.Status), PaymentStatus: string(p.Status)}
	if b.Status != domainbooking.StatusPendingPayment || p.Status != domainbooking.PaymentUnpaid {
		return out, nil
	}
	if h.Gateways == nil {
		return out, ErrReconcileUnsupported
	}
	checker, ok := h.Gateways.StatusChecker(p.Method)
	if !ok {
		return out, fmt.Errorf("%w: %s", ErrReconcileUnsupported, p.Method)
	}
	report, err := checker.QueryStatus(ctx, p.ExternalOrderID)
	if err != nil {
		return out, fmt.Errorf("payments: query status of %s: %w", p.ExternalOrderID, err)
	}
	out.GatewayStatus = string(report.Outcome)
	if report.Outcome == domainbooking.OutcomePending {
		return out, nil
	}

	settler := settlement.Settler{Outbox: h.Outbox, Encoder: h.Encoder}
	err = support.RetryOnConflict(ctx, func(ctx context.Context) error {
		return support.InUnit(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
			req := settlement.Request{
				BookingID:             id,
				Outcome:               report.Outcome,
				ExternalTransactionID: report.ExternalTransactionID,
				At:                    h.now(),
			}
			if report.Amount > 0 {
				amount := report.Amount
				req.Amount = &amount
			}
			res, err := settler.Apply(ctx, unit, req)
			if err != nil {
				return err
			}
			out.Applied = res.Applied
			out.BookingStatus = string(res.Booking.Status)
			out.PaymentStatus = string(res.Payment.Status)
			return nil
		})
	})
	if err != nil {
		return dto.ReconcileResult{}, err
	}
	if out.Applied {
		h.logger().Info("payment reconciled", "booking_id", id, "order_id", p.ExternalOrderID, "status", out.BookingStatus)
	}
	return out, nil
}

func (h *ReconcilePaymentHandler) load(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, *domainbooking.Payment, error) {
	unit, ctx, cleanup, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, nil, err
	}
	defer cleanup()
	b, err := unit.Bookings().ByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	p, err := unit.Payments().ByBookingID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return b, p, nil
}

func (h *ReconcilePaymentHandler) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

func (h *ReconcilePaymentHandler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

var _ commands.Handler[ReconcilePaymentCommand, dto.ReconcileResult] = (*ReconcilePaymentHandler)(nil)
