package availability

import (
	"context"
	"errors"
	"time"

	"hotelbooking/internal/app/dto"
	"hotelbooking/internal/app/handlers/support"
	"hotelbooking/internal/app/queries"
	"hotelbooking/internal/app/uow"
	domainavailability "hotelbooking/internal/domain/availability"
	domainbooking "hotelbooking/internal/domain/booking"
	domainrooms "hotelbooking/internal/domain/rooms"
	"hotelbooking/internal/domain/shared/daterange"
)

const checkAvailabilityKey = "availability.check"

// CheckAvailabilityQuery is advisory; confirm-booking checks again under lock.
type CheckAvailabilityQuery struct {
	RoomID   string    `validate:"required"`
	CheckIn  time.Time `validate:"required"`
	CheckOut time.Time `validate:"required"`
}

func (q CheckAvailabilityQuery) Key() string { return checkAvailabilityKey }

type CheckAvailabilityHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *CheckAvailabilityHandler) Handle(ctx context.Context, q CheckAvailabilityQuery) (dto.Availability, error) {
	stay, err := daterange.New(q.CheckIn, q.CheckOut)
	if err != nil {
		return dto.Availability{}, domainbooking.RejectWith(domainbooking.KindInvalidRequest, err, err.Error())
	}
	unit, ctx, cleanup, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.Availability{}, err
	}
	defer cleanup()

	roomID := domainrooms.RoomID(q.RoomID)
	if _, err := unit.Rooms().ByID(ctx, roomID); err != nil {
		if errors.Is(err, domainrooms.ErrRoomNotFound) {
			return dto.Availability{}, domainbooking.Reject(domainbooking.KindRoomNotFound, "room %s not found", q.RoomID)
		}
		return dto.Availability{}, err
	}
	free, err := domainavailability.IsAvailable(ctx, unit.Bookings(), roomID, stay)
	if err != nil {
		return dto.Availability{}, err
	}
	return dto.Availability{RoomID: q.RoomID, CheckIn: stay.CheckIn, CheckOut: stay.CheckOut, Available: free}, nil
}

var _ queries.Handler[CheckAvailabilityQuery, dto.Availability] = (*CheckAvailabilityHandler)(nil)
