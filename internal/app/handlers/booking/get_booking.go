package booking

import (
	"context"

	"hotelbooking/internal/app/dto"
	"hotelbooking/internal/app/handlers/support"
	"hotelbooking/internal/app/queries"
	"hotelbooking/internal/app/uow"
	domainbooking "hotelbooking/internal/domain/booking"
)

const getBookingKey = "booking.get"

type GetBookingQuery struct {
	BookingID   string `validate:"required"`
	RequesterID string `validate:"required"`
}

func (q GetBookingQuery) Key() string { return getBookingKey }

func (q GetBookingQuery) Requester() string { return q.RequesterID }

type GetBookingHandler struct {
	UoWFactory uow.UoWFactory
}

// Handle hides bookings of other requesters behind ErrBookingNotFound.
func (h *GetBookingHandler) Handle(ctx context.Context, q GetBookingQuery) (dto.BookingView, error) {
	unit, ctx, cleanup, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.BookingView{}, err
	}
	defer cleanup()

	b, err := unit.Bookings().ByID(ctx, domainbooking.BookingID(q.BookingID))
	if err != nil {
		return dto.BookingView{}, err
	}
	if b.RequesterID != q.RequesterID {
		return dto.BookingView{}, domainbooking.ErrBookingNotFound
	}
	p, err := unit.Payments().ByBookingID(ctx, b.ID)
	if err != nil {
		return dto.BookingView{}, err
	}
	return dto.MapBooking(b, p), nil
}

var _ queries.Handler[GetBookingQuery, dto.BookingView] = (*GetBookingHandler)(nil)
