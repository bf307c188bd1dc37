package pricing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hotelbooking/internal/app/dto"
	"hotelbooking/internal/app/handlers/support"
	"hotelbooking/internal/app/queries"
	"hotelbooking/internal/app/uow"
	domainbooking "hotelbooking/internal/domain/booking"
	domainpricing "hotelbooking/internal/domain/pricing"
	domainrooms "hotelbooking/internal/domain/rooms"
)

const calculatePriceKey = "pricing.calculate"

// CalculatePriceQuery prices a stay without reserving anything.
type CalculatePriceQuery struct {
	RoomID      string `validate:"required"`
	BookingType string `validate:"required"`
	Duration    int    `validate:"gte=0"`
	PromotionID string
}

func (q CalculatePriceQuery) Key() string { return calculatePriceKey }

type CalculatePriceHandler struct {
	UoWFactory uow.UoWFactory
	Now        func() time.Time
}

func (h *CalculatePriceHandler) Handle(ctx context.Context, q CalculatePriceQuery) (dto.PriceQuote, error) {
	kind, err := domainpricing.ParseBookingType(q.BookingType)
	if err != nil {
		return dto.PriceQuote{}, domainbooking.RejectWith(domainbooking.KindInvalidRequest, err, err.Error())
	}
	unit, ctx, cleanup, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.PriceQuote{}, err
	}
	defer cleanup()

	room, err := unit.Rooms().ByID(ctx, domainrooms.RoomID(q.RoomID))
	if errors.Is(err, domainrooms.ErrRoomNotFound) {
		return dto.PriceQuote{}, domainbooking.Reject(domainbooking.KindRoomNotFound, "room %s not found", q.RoomID)
	}
	if err != nil {
		return dto.PriceQuote{}, err
	}
	tier, err := room.CurrentTier()
	if err != nil {
		return dto.PriceQuote{}, domainbooking.RejectWith(domainbooking.KindPriceNotConfigured, err, fmt.Sprintf("room %s has no price tier", room.ID))
	}

	var promo *domainpricing.Promotion
	if q.PromotionID != "" {
		promo, err = unit.Promotions().ByID(ctx, domainpricing.PromotionID(q.PromotionID))
		if errors.Is(err, domainpricing.ErrPromotionNotFound) {
			promo, err = nil, nil
		}
		if err != nil {
			return dto.PriceQuote{}, err
		}
	}

	units := 0
	if kind == domainpricing.BookingTypeHourly {
		units = q.Duration
	}
	quote, err := domainpricing.Price(tier, kind, units, string(room.HotelID), promo, h.now())
	if err != nil {
		return dto.PriceQuote{}, domainbooking.RejectWith(domainbooking.KindInvalidRequest, err, err.Error())
	}
	return dto.MapQuote(string(room.ID), kind, units, quote), nil
}

func (h *CalculatePriceHandler) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

var _ queries.Handler[CalculatePriceQuery, dto.PriceQuote] = (*CalculatePriceHandler)(nil)
