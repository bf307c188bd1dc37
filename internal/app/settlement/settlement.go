// Package settlement applies a payment outcome to a booking and its payment
// in one step. Both rows move together or not at all.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hotelbooking/internal/app/outbox"
	"hotelbooking/internal/app/uow"
	domainbooking "hotelbooking/internal/domain/booking"
)

// ErrDiverged means the booking row moved but its payment row did not. The
// unit must be rolled back.
var ErrDiverged = errors.New("settlement: booking and payment statuses diverged")

type Request struct {
	BookingID             domainbooking.BookingID
	Outcome               domainbooking.Outcome
	ExternalTransactionID string
	// Amount, when set, must equal the payment amount for the outcome to apply.
	Amount *int64
	At     time.Time
}

type Result struct {
	Applied        bool
	AmountMismatch bool
	Booking        *domainbooking.Booking
	Payment        *domainbooking.Payment
}

type Settler struct {
	Outbox  outbox.Outbox
	Encoder outbox.EventEncoder
}

// Apply moves a PendingPayment booking and its Unpaid payment to the
// terminal statuses for req.Outcome. Settling an already settled booking is
// a no-op that reports Applied=false.
func (s Settler) Apply(ctx context.Context, unit uow.UnitOfWork, req Request) (Result, error) {
	b, err := unit.Bookings().ByID(ctx, req.BookingID)
	if err != nil {
		return Result{}, err
	}
	p, err := unit.Payments().ByBookingID(ctx, req.BookingID)
	if err != nil {
		return Result{}, err
	}
	res := Result{Booking: b, Payment: p}
	if req.Outcome == domainbooking.OutcomePending {
		return res, nil
	}
	if b.Status != domainbooking.StatusPendingPayment || p.Status != domainbooking.PaymentUnpaid {
		return res, nil
	}
	if req.Amount != nil && *req.Amount != p.Amount.Amount {
		res.AmountMismatch = true
		return res, nil
	}

	fromBooking, fromPayment := b.Status, p.Status
	if err := b.Settle(p, req.Outcome, req.ExternalTransactionID, req.At); err != nil {
		return Result{}, err
	}
	moved, err := unit.Bookings().TransitionStatus(ctx, b.ID, fromBooking, b.Status, req.At)
	if err != nil {
		return Result{}, fmt.Errorf("settlement: booking status: %w", err)
	}
	if !moved {
		// a concurrent delivery settled it first
		return s.reload(ctx, unit, req.BookingID)
	}
	moved, err = unit.Payments().TransitionStatus(ctx, p.ID, fromPayment, p.Status, p.ExternalTransactionID, req.At)
	if err != nil {
		return Result{}, fmt.Errorf("settlement: payment status: %w", err)
	}
	if !moved {
		return Result{}, ErrDiverged
	}
	if err := outbox.RecordDomainEvents(ctx, s.Outbox, s.encoder(), b.Drain()); err != nil {
		return Result{}, err
	}
	res.Applied = true
	return res, nil
}

func (s Settler) reload(ctx context.Context, unit uow.UnitOfWork, id domainbooking.BookingID) (Result, error) {
	b, err := unit.Bookings().ByID(ctx, id)
	if err != nil {
		return Result{}, err
	}
	p, err := unit.Payments().ByBookingID(ctx, id)
	if err != nil {
		return Result{}, err
	}
	return Result{Booking: b, Payment: p}, nil
}

func (s Settler) encoder() outbox.EventEncoder {
	if s.Encoder != nil {
		return s.Encoder
	}
	return outbox.JSONEventEncoder{}
}
