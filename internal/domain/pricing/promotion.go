package pricing

import (
	"context"
	"errors"
	"time"

	"hotelbooking/internal/domain/shared/money"
)

var ErrPromotionNotFound = errors.New("pricing: promotion not found")

type PromotionID string

// Promotion is a hotel-scoped discount. When both PercentOff and AmountOff
// are set the percentage wins.
type Promotion struct {
	ID         PromotionID
	HotelID    string
	PercentOff int64
	AmountOff  int64
	ValidFrom  time.Time
	ValidTo    time.Time
}

// ActiveAt reports whether now lies in the closed window [ValidFrom, ValidTo].
func (p Promotion) ActiveAt(now time.Time) bool {
	return !now.Before(p.ValidFrom) && !now.After(p.ValidTo)
}

// AppliesTo reports whether the promotion may discount a stay at hotelID.
func (p Promotion) AppliesTo(hotelID string, now time.Time) bool {
	return p.HotelID == hotelID && p.ActiveAt(now)
}

// ApplyPromotion returns the final price, the discount and whether the
// promotion took effect. The final price never drops below zero.
func ApplyPromotion(base money.Money, promo *Promotion, now time.Time) (money.Money, money.Money, bool) {
	none := money.Money{Amount: 0, Currency: base.Currency}
	if promo == nil || !promo.ActiveAt(now) {
		return base, none, false
	}
	var discount money.Money
	switch {
	case promo.PercentOff > 0:
		pct := promo.PercentOff
		if pct > 100 {
			pct = 100
		}
		discount = base.Percent(pct)
	case promo.AmountOff > 0:
		discount = money.Money{Amount: promo.AmountOff, Currency: base.Currency}
	default:
		return base, none, false
	}
	final, err := base.SubFloor(discount)
	if err != nil {
		return base, none, false
	}
	applied, _ := base.SubFloor(final)
	return final, applied, true
}

type PromotionRepository interface {
	ByID(ctx context.Context, id PromotionID) (*Promotion, error)
}
