package me

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"hotelbooking/internal/app/dto"
	"hotelbooking/internal/app/handlers/support"
	"hotelbooking/internal/app/queries"
	"hotelbooking/internal/app/uow"
	domainbooking "hotelbooking/internal/domain/booking"
)

const listMyBookingsKey = "me.bookings.list"

const defaultListLimit = 50

var ErrRequesterRequired = errors.New("me: requester id is required")

// ListMyBookingsQuery lists the bookings placed by one requester together
// with their payment state.
type ListMyBookingsQuery struct {
	RequesterID string `validate:"required"`
	Limit       int    `validate:"gte=0,lte=200"`
}

func (q ListMyBookingsQuery) Key() string { return listMyBookingsKey }

func (q ListMyBookingsQuery) Requester() string { return q.RequesterID }

type ListMyBookingsHandler struct {
	UoWFactory uow.UoWFactory
	Logger     *slog.Logger
}

func (h *ListMyBookingsHandler) Handle(ctx context.Context, q ListMyBookingsQuery) (dto.BookingCollection, error) {
	requesterID := strings.TrimSpace(q.RequesterID)
	if requesterID == "" {
		return dto.BookingCollection{}, ErrRequesterRequired
	}
	unit, ctx, cleanup, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.BookingCollection{}, err
	}
	defer cleanup()

	limit := q.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	bookings, err := unit.Bookings().ListByRequester(ctx, requesterID, limit)
	if err != nil {
		return dto.BookingCollection{}, err
	}

	items := make([]dto.BookingView, 0, len(bookings))
	for _, b := range bookings {
		p, err := unit.Payments().ByBookingID(ctx, b.ID)
		if err != nil && !errors.Is(err, domainbooking.ErrBookingNotFound) {
			return dto.BookingCollection{}, err
		}
		if p == nil && h.Logger != nil {
			h.Logger.Warn("payment missing for booking", "booking_id", b.ID)
		}
		items = append(items, dto.MapBooking(b, p))
	}

	if h.Logger != nil {
		h.Logger.Debug("requester bookings listed", "requester_id", requesterID, "count", len(items))
	}
	return dto.BookingCollection{Items: items}, nil
}

var _ queries.Handler[ListMyBookingsQuery, dto.BookingCollection] = (*ListMyBookingsHandler)(nil)
