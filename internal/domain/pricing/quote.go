package pricing

import (
	"time"

	"hotelbooking/internal/domain/shared/money"
)

// Quote is the authoritative price of one stay.
type Quote struct {
	Base             money.Money
	Discount         money.Money
	Final            money.Money
	PromotionID      PromotionID
	PromotionApplied bool
}

// Price runs the rate card and then the promotion. A promotion scoped to
// another hotel or outside its window is ignored.
func Price(tier PriceTier, kind BookingType, durationUnits int, hotelID string, promo *Promotion, now time.Time) (Quote, error) {
	base, err := ComputePrice(tier, kind, durationUnits)
	if err != nil {
		return Quote{}, err
	}
	if promo != nil && promo.HotelID != hotelID {
		promo = nil
	}
	final, discount, applied := ApplyPromotion(base, promo, now)
	q := Quote{Base: base, Discount: discount, Final: final, PromotionApplied: applied}
	if applied {
		q.PromotionID = promo.ID
	}
	return q, nil
}
