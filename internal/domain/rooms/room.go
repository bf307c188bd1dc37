package rooms

import (
	"context"
	"errors"

	"hotelbooking/internal/domain/pricing"
)

var (
	ErrRoomNotFound       = errors.New("rooms: room not found")
	ErrPriceNotConfigured = errors.New("rooms: room has no current price tier")
)

type RoomID string

type HotelID string

// Room is read-only reference data for booking and pricing. Tier is the
// current rate card and is nil when none is configured.
type Room struct {
	ID      RoomID
	HotelID HotelID
	Name    string
	Tier    *pricing.PriceTier
}

// CurrentTier returns the rate card or ErrPriceNotConfigured.
func (r *Room) CurrentTier() (pricing.PriceTier, error) {
	if r == nil || r.Tier == nil {
		return pricing.PriceTier{}, ErrPriceNotConfigured
	}
	return *r.Tier, nil
}

type Repository interface {
	ByID(ctx context.Context, id RoomID) (*Room, error)
}
