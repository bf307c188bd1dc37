package booking

import (
	"time"

	"hotelbooking/internal/domain/rooms"
	"hotelbooking/internal/domain/shared/daterange"
	"hotelbooking/internal/domain/shared/money"
)

type BookingReserved struct {
	BookingID BookingID
	RoomID    rooms.RoomID
	HotelID   rooms.HotelID
	Range     daterange.DateRange
	Total     money.Money
	At        time.Time
}

func (e BookingReserved) EventName() string     { return "booking.reserved" }
func (e BookingReserved) AggregateID() string   { return string(e.BookingID) }
func (e BookingReserved) OccurredAt() time.Time { return e.At }

type BookingConfirmed struct {
	BookingID             BookingID
	PaymentID             PaymentID
	Method                PaymentMethod
	Amount                money.Money
	ExternalTransactionID string
	At                    time.Time
}

func (e BookingConfirmed) EventName() string     { return "booking.confirmed" }
func (e BookingConfirmed) AggregateID() string   { return string(e.BookingID) }
func (e BookingConfirmed) OccurredAt() time.Time { return e.At }

type BookingPaymentFailed struct {
	BookingID BookingID
	PaymentID PaymentID
	Method    PaymentMethod
	At        time.Time
}

func (e BookingPaymentFailed) EventName() string     { return "booking.payment_failed" }
func (e BookingPaymentFailed) AggregateID() string   { return string(e.BookingID) }
func (e BookingPaymentFailed) OccurredAt() time.Time { return e.At }
