package pricing

import (
	"errors"
	"fmt"
	"strings"

	"hotelbooking/internal/domain/shared/money"
)

var (
	ErrUnknownBookingType = errors.New("pricing: unknown booking type")
	ErrInvalidDuration    = errors.New("pricing: hourly duration must be at least one hour")
	ErrNegativeRate       = errors.New("pricing: rates cannot be negative")
)

type BookingType string

const (
	BookingTypeHourly    BookingType = "HOURLY"
	BookingTypeOvernight BookingType = "OVERNIGHT"
	BookingTypeDaily     BookingType = "DAILY"
)

// ParseBookingType accepts the canonical names case-insensitively.
func ParseBookingType(raw string) (BookingType, error) {
	switch BookingType(strings.ToUpper(strings.TrimSpace(raw))) {
	case BookingTypeHourly:
		return BookingTypeHourly, nil
	case BookingTypeOvernight:
		return BookingTypeOvernight, nil
	case BookingTypeDaily:
		return BookingTypeDaily, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownBookingType, raw)
}

// PriceTier is the rate card of a room. All rates are in minor units of Currency.
type PriceTier struct {
	Currency           string
	FirstTwoHours      int64
	EachAdditionalHour int64
	PerDay             int64
	PerNight           int64
}

func (t PriceTier) Validate() error {
	if t.FirstTwoHours < 0 || t.EachAdditionalHour < 0 || t.PerDay < 0 || t.PerNight < 0 {
		return ErrNegativeRate
	}
	return nil
}

func (t PriceTier) currency() string {
	if t.Currency == "" {
		return money.DefaultCurrency
	}
	return strings.ToUpper(t.Currency)
}

// ComputePrice returns the base price of a stay. durationUnits is only read
// for hourly stays.
func ComputePrice(tier PriceTier, kind BookingType, durationUnits int) (money.Money, error) {
	if err := tier.Validate(); err != nil {
		return money.Money{}, err
	}
	var amount int64
	switch kind {
	case BookingTypeHourly:
		if durationUnits < 1 {
			return money.Money{}, ErrInvalidDuration
		}
		amount = tier.FirstTwoHours
		if durationUnits > 2 {
			amount += int64(durationUnits-2) * tier.EachAdditionalHour
		}
	case BookingTypeOvernight:
		amount = tier.PerNight
	case BookingTypeDaily:
		amount = tier.PerDay
	default:
		return money.Money{}, fmt.Errorf("%w: %q", ErrUnknownBookingType, kind)
	}
	return money.New(amount, tier.currency())
}
