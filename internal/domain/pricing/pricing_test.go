package pricing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hotelbooking/internal/domain/shared/money"
)

var roomR = PriceTier{FirstTwoHours: 100, EachAdditionalHour: 20, PerDay: 300, PerNight: 250}

func TestComputePriceHourlyTiers(t *testing.T) {
	cases := []struct {
		hours int
		want  int64
	}{
		{1, 100},
		{2, 100},
		{3, 120},
		{5, 160},
	}
	for _, tc := range cases {
		got, err := ComputePrice(roomR, BookingTypeHourly, tc.hours)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got.Amount, "hours=%d", tc.hours)
		assert.Equal(t, "VND", got.Currency)
	}
}

func TestComputePriceFlatRates(t *testing.T) {
	night, err := ComputePrice(roomR, BookingTypeOvernight, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(250), night.Amount)

	day, err := ComputePrice(roomR, BookingTypeDaily, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(300), day.Amount)
}

func TestComputePriceRejectsBadInput(t *testing.T) {
	_, err := ComputePrice(roomR, BookingTypeHourly, 0)
	assert.ErrorIs(t, err, ErrInvalidDuration)

	_, err = ComputePrice(roomR, BookingTypeHourly, -3)
	assert.ErrorIs(t, err, ErrInvalidDuration)

	_, err = ComputePrice(roomR, BookingType("WEEKLY"), 1)
	assert.ErrorIs(t, err, ErrUnknownBookingType)

	_, err = ComputePrice(PriceTier{PerDay: -1}, BookingTypeDaily, 1)
	assert.ErrorIs(t, err, ErrNegativeRate)
}

func TestComputePriceIsDeterministic(t *testing.T) {
	first, _ := ComputePrice(roomR, BookingTypeHourly, 9)
	for i := 0; i < 10; i++ {
		again, _ := ComputePrice(roomR, BookingTypeHourly, 9)
		assert.Equal(t, first, again)
	}
}

func TestParseBookingType(t *testing.T) {
	kind, err := ParseBookingType(" overnight ")
	require.NoError(t, err)
	assert.Equal(t, BookingTypeOvernight, kind)

	_, err = ParseBookingType("")
	assert.ErrorIs(t, err, ErrUnknownBookingType)
}

func TestApplyPromotionWindowIsClosed(t *testing.T) {
	now := time.Date(2030, 5, 1, 9, 0, 0, 0, time.UTC)
	base := money.Must(160, "VND")

	atBoundary := &Promotion{ID: "p1", HotelID: "h1", PercentOff: 10, ValidFrom: now.Add(-time.Hour), ValidTo: now}
	final, discount, applied := ApplyPromotion(base, atBoundary, now)
	assert.True(t, applied)
	assert.Equal(t, int64(16), discount.Amount)
	assert.Equal(t, int64(144), final.Amount)

	expired := &Promotion{ID: "p2", HotelID: "h1", PercentOff: 10, ValidFrom: now.Add(-time.Hour), ValidTo: now.Add(-time.Millisecond)}
	final, discount, applied = ApplyPromotion(base, expired, now)
	assert.False(t, applied)
	assert.True(t, discount.IsZero())
	assert.Equal(t, base, final)

	startsNow := &Promotion{ID: "p3", HotelID: "h1", AmountOff: 60, ValidFrom: now, ValidTo: now.Add(time.Hour)}
	final, _, applied = ApplyPromotion(base, startsNow, now)
	assert.True(t, applied)
	assert.Equal(t, int64(100), final.Amount)
}

func TestApplyPromotionPrecedenceAndClamp(t *testing.T) {
	now := time.Date(2030, 5, 1, 9, 0, 0, 0, time.UTC)
	both := &Promotion{PercentOff: 25, AmountOff: 1000, ValidFrom: now, ValidTo: now}
	final, discount, applied := ApplyPromotion(money.Must(200, "VND"), both, now)
	require.True(t, applied)
	assert.Equal(t, int64(50), discount.Amount)
	assert.Equal(t, int64(150), final.Amount)

	huge := &Promotion{AmountOff: 500, ValidFrom: now, ValidTo: now}
	final, discount, applied = ApplyPromotion(money.Must(200, "VND"), huge, now)
	require.True(t, applied)
	assert.Equal(t, int64(0), final.Amount)
	assert.Equal(t, int64(200), discount.Amount)

	final, _, applied = ApplyPromotion(money.Must(200, "VND"), nil, now)
	assert.False(t, applied)
	assert.Equal(t, int64(200), final.Amount)
}

func TestApplyPromotionRoundsHalfUp(t *testing.T) {
	now := time.Date(2030, 5, 1, 9, 0, 0, 0, time.UTC)
	promo := &Promotion{PercentOff: 15, ValidFrom: now, ValidTo: now}
	// 15% of 130 is 19.5
	final, discount, _ := ApplyPromotion(money.Must(130, "VND"), promo, now)
	assert.Equal(t, int64(20), discount.Amount)
	assert.Equal(t, int64(110), final.Amount)
}

func TestPriceIgnoresForeignHotelPromotion(t *testing.T) {
	now := time.Date(2030, 5, 1, 9, 0, 0, 0, time.UTC)
	promo := &Promotion{ID: "p1", HotelID: "other", PercentOff: 50, ValidFrom: now, ValidTo: now}
	q, err := Price(roomR, BookingTypeHourly, 5, "h1", promo, now)
	require.NoError(t, err)
	assert.False(t, q.PromotionApplied)
	assert.Equal(t, int64(160), q.Final.Amount)
	assert.Empty(t, q.PromotionID)

	promo.HotelID = "h1"
	q, err = Price(roomR, BookingTypeHourly, 5, "h1", promo, now)
	require.NoError(t, err)
	assert.True(t, q.PromotionApplied)
	assert.Equal(t, PromotionID("p1"), q.PromotionID)
	assert.Equal(t, int64(80), q.Final.Amount)
}
