package booking

import (
	"context"
	"errors"
	"time"

	"hotelbooking/internal/domain/pricing"
	"hotelbooking/internal/domain/rooms"
	"hotelbooking/internal/domain/shared/daterange"
	"hotelbooking/internal/domain/shared/events"
	"hotelbooking/internal/domain/shared/money"
)

var (
	ErrInvalidState     = errors.New("booking: invalid state transition")
	ErrBookingNotFound  = errors.New("booking: not found")
	ErrRequesterMissing = errors.New("booking: requester id required")
	ErrCheckInInPast    = errors.New("booking: check-in is in the past")
)

type BookingID string

type Status string

const (
	StatusPendingPayment Status = "PENDING_PAYMENT"
	StatusConfirmed      Status = "CONFIRMED"
	StatusPaymentFailed  Status = "PAYMENT_FAILED"
	StatusCompleted      Status = "COMPLETED"
	StatusCancelled      Status = "CANCELLED"
)

// NonBlockingStatuses lists the statuses that release a room's interval.
// Every other status holds it.
var NonBlockingStatuses = []Status{StatusCancelled, StatusPaymentFailed}

// Blocks reports whether a booking in this status occupies its interval.
func (s Status) Blocks() bool {
	for _, free := range NonBlockingStatuses {
		if s == free {
			return false
		}
	}
	return true
}

type Booking struct {
	ID            BookingID
	RoomID        rooms.RoomID
	HotelID       rooms.HotelID
	RequesterID   string
	Type          pricing.BookingType
	Range         daterange.DateRange
	DurationUnits int
	BasePrice     money.Money
	Discount      money.Money
	FinalPrice    money.Money
	PromotionID   pricing.PromotionID
	Status        Status
	CreatedAt     time.Time
	UpdatedAt     time.Time
	events.EventRecorder
}

type Repository interface {
	ByID(ctx context.Context, id BookingID) (*Booking, error)
	Create(ctx context.Context, booking *Booking) error
	// LockRoom serialises reservation attempts on one room until the
	// enclosing unit of work ends.
	LockRoom(ctx context.Context, roomID rooms.RoomID) error
	// HasOverlap reports whether a blocking booking intersects dr.
	HasOverlap(ctx context.Context, roomID rooms.RoomID, dr daterange.DateRange) (bool, error)
	// TransitionStatus moves the booking from one status to another only if
	// it is still in from. It reports whether a row changed.
	TransitionStatus(ctx context.Context, id BookingID, from, to Status, at time.Time) (bool, error)
	ListPendingPayment(ctx context.Context, createdBefore time.Time, limit int) ([]*Booking, error)
	// ListByRequester returns the requester's bookings, newest check-in first.
	ListByRequester(ctx context.Context, requesterID string, limit int) ([]*Booking, error)
}

type CreateParams struct {
	ID            BookingID
	Room          *rooms.Room
	RequesterID   string
	Type          pricing.BookingType
	Range         daterange.DateRange
	DurationUnits int
	Quote         pricing.Quote
	CreatedAt     time.Time
}

func NewBooking(params CreateParams) (*Booking, error) {
	if params.RequesterID == "" {
		return nil, ErrRequesterMissing
	}
	if params.Room == nil {
		return nil, rooms.ErrRoomNotFound
	}
	if err := params.Range.Validate(); err != nil {
		return nil, err
	}
	now := params.CreatedAt.UTC()
	b := &Booking{
		ID:            params.ID,
		RoomID:        params.Room.ID,
		HotelID:       params.Room.HotelID,
		RequesterID:   params.RequesterID,
		Type:          params.Type,
		Range:         params.Range,
		DurationUnits: params.DurationUnits,
		BasePrice:     params.Quote.Base,
		Discount:      params.Quote.Discount,
		FinalPrice:    params.Quote.Final,
		PromotionID:   params.Quote.PromotionID,
		Status:        StatusPendingPayment,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	b.Record(BookingReserved{
		BookingID: b.ID,
		RoomID:    b.RoomID,
		HotelID:   b.HotelID,
		Range:     b.Range,
		Total:     b.FinalPrice,
		At:        now,
	})
	return b, nil
}

// Settle applies a gateway outcome to the booking and its payment together.
// Only a PendingPayment booking with an Unpaid payment can be settled.
func (b *Booking) Settle(p *Payment, outcome Outcome, externalTxnID string, now time.Time) error {
	if b.Status != StatusPendingPayment || p.Status != PaymentUnpaid || p.BookingID != b.ID {
		return ErrInvalidState
	}
	now = now.UTC()
	switch outcome {
	case OutcomeSucceeded:
		b.Status = StatusConfirmed
		p.Status = PaymentPaid
		if externalTxnID != "" {
			p.ExternalTransactionID = externalTxnID
		}
		b.Record(BookingConfirmed{BookingID: b.ID, PaymentID: p.ID, Method: p.Method, Amount: p.Amount, ExternalTransactionID: p.ExternalTransactionID, At: now})
	case OutcomeFailed:
		b.Status = StatusPaymentFailed
		p.Status = PaymentFailed
		if externalTxnID != "" {
			p.ExternalTransactionID = externalTxnID
		}
		b.Record(BookingPaymentFailed{BookingID: b.ID, PaymentID: p.ID, Method: p.Method, At: now})
	default:
		return ErrInvalidState
	}
	b.UpdatedAt = now
	p.UpdatedAt = now
	return nil
}

// ValidateStay rejects stays whose check-in day is already behind us.
func ValidateStay(dr daterange.DateRange, now time.Time) error {
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if dr.CheckIn.Before(today) {
		return ErrCheckInInPast
	}
	return nil
}
