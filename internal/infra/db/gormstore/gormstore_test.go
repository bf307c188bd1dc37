package gormstore

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"hotelbooking/internal/app/outbox"
	"hotelbooking/internal/app/uow"
	domainbooking "hotelbooking/internal/domain/booking"
	domainpricing "hotelbooking/internal/domain/pricing"
	domainrooms "hotelbooking/internal/domain/rooms"
	"hotelbooking/internal/domain/shared/daterange"
	"hotelbooking/internal/domain/shared/money"
)

var testNow = time.Date(2030, 3, 1, 9, 0, 0, 0, time.UTC)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := Open("sqlite", dsn)
	require.NoError(t, err)
	require.NoError(t, Migrate(context.Background(), db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	rooms := []domainrooms.Room{
		{ID: "room-1", HotelID: "hotel-1", Name: "Deluxe", Tier: &domainpricing.PriceTier{Currency: "VND", FirstTwoHours: 100, EachAdditionalHour: 30, PerDay: 500, PerNight: 300}},
		{ID: "room-2", HotelID: "hotel-1", Name: "Unpriced"},
	}
	promos := []domainpricing.Promotion{
		{ID: "SPRING", HotelID: "hotel-1", PercentOff: 10, ValidFrom: testNow.Add(-24 * time.Hour), ValidTo: testNow.Add(24 * time.Hour)},
	}
	require.NoError(t, Seed(context.Background(), db, rooms, promos, testNow.Add(-time.Hour)))
	return db
}

func testFactory(db *gorm.DB) Factory {
	return Factory{DB: db, Now: func() time.Time { return testNow }}
}

func newTestBooking(t *testing.T, id string, checkIn time.Time, hours int) (*domainbooking.Booking, *domainbooking.Payment) {
	t.Helper()
	dr, err := daterange.New(checkIn, checkIn.Add(time.Duration(hours)*time.Hour))
	require.NoError(t, err)
	room := &domainrooms.Room{ID: "room-1", HotelID: "hotel-1"}
	total := money.Must(160, "VND")
	b, err := domainbooking.NewBooking(domainbooking.CreateParams{
		ID:          domainbooking.BookingID(id),
		Room:        room,
		RequesterID: "guest-1",
		Type:        domainpricing.BookingTypeHourly,
		Range:       dr,
		Quote:       domainpricing.Quote{Base: total, Discount: money.Must(0, "VND"), Final: total},
		CreatedAt:   testNow,
	})
	require.NoError(t, err)
	p := domainbooking.NewPayment(domainbooking.PaymentID("pay-"+id), b, domainbooking.MethodMomo, testNow)
	return b, p
}

func insertBooking(t *testing.T, factory Factory, b *domainbooking.Booking, p *domainbooking.Payment) {
	t.Helper()
	ctx := context.Background()
	unit, err := factory.Begin(ctx, uow.TxOptions{})
	require.NoError(t, err)
	require.NoError(t, unit.Bookings().Create(ctx, b))
	require.NoError(t, unit.Payments().Create(ctx, p))
	require.NoError(t, unit.Commit(ctx))
}

func TestRoomByIDLoadsCurrentTier(t *testing.T) {
	factory := testFactory(openTestDB(t))
	ctx := context.Background()
	unit, err := factory.Begin(ctx, uow.TxOptions{ReadOnly: true})
	require.NoError(t, err)
	defer unit.Rollback(ctx)

	room, err := unit.Rooms().ByID(ctx, "room-1")
	require.NoError(t, err)
	tier, err := room.CurrentTier()
	require.NoError(t, err)
	require.Equal(t, int64(100), tier.FirstTwoHours)

	unpriced, err := unit.Rooms().ByID(ctx, "room-2")
	require.NoError(t, err)
	_, err = unpriced.CurrentTier()
	require.ErrorIs(t, err, domainrooms.ErrPriceNotConfigured)

	_, err = unit.Rooms().ByID(ctx, "missing")
	require.ErrorIs(t, err, domainrooms.ErrRoomNotFound)

	promo, err := unit.Promotions().ByID(ctx, "SPRING")
	require.NoError(t, err)
	require.Equal(t, int64(10), promo.PercentOff)
	_, err = unit.Promotions().ByID(ctx, "NOPE")
	require.ErrorIs(t, err, domainpricing.ErrPromotionNotFound)
}

func TestHasOverlapIgnoresReleasedAndAdjacentBookings(t *testing.T) {
	factory := testFactory(openTestDB(t))
	ctx := context.Background()
	start := testNow.Add(24 * time.Hour)

	held, heldPay := newTestBooking(t, "b-held", start, 3)
	insertBooking(t, factory, held, heldPay)
	released, releasedPay := newTestBooking(t, "b-released", start.Add(5*time.Hour), 3)
	released.Status = domainbooking.StatusPaymentFailed
	insertBooking(t, factory, released, releasedPay)

	unit, err := factory.Begin(ctx, uow.TxOptions{})
	require.NoError(t, err)
	defer unit.Rollback(ctx)
	require.NoError(t, unit.Bookings().LockRoom(ctx, "room-1"))

	cases := []struct {
		name    string
		from    time.Time
		hours   int
		overlap bool
	}{
		{"inside held", start.Add(time.Hour), 1, true},
		{"touching held end", start.Add(3 * time.Hour), 1, false},
		{"ending at held start", start.Add(-2 * time.Hour), 2, false},
		{"over released", start.Add(5 * time.Hour), 3, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dr, err := daterange.New(tc.from, tc.from.Add(time.Duration(tc.hours)*time.Hour))
			require.NoError(t, err)
			got, err := unit.Bookings().HasOverlap(ctx, "room-1", dr)
			require.NoError(t, err)
			require.Equal(t, tc.overlap, got)
		})
	}

	require.ErrorIs(t, unit.Bookings().LockRoom(ctx, "missing"), domainrooms.ErrRoomNotFound)
}

func TestTransitionStatusIsConditional(t *testing.T) {
	factory := testFactory(openTestDB(t))
	ctx := context.Background()
	b, p := newTestBooking(t, "b-1", testNow.Add(24*time.Hour), 2)
	insertBooking(t, factory, b, p)

	unit, err := factory.Begin(ctx, uow.TxOptions{})
	require.NoError(t, err)
	moved, err := unit.Bookings().TransitionStatus(ctx, b.ID, domainbooking.StatusPendingPayment, domainbooking.StatusConfirmed, testNow)
	require.NoError(t, err)
	require.True(t, moved)
	moved, err = unit.Payments().TransitionStatus(ctx, p.ID, domainbooking.PaymentUnpaid, domainbooking.PaymentPaid, "txn-9", testNow)
	require.NoError(t, err)
	require.True(t, moved)
	require.NoError(t, unit.Commit(ctx))

	unit, err = factory.Begin(ctx, uow.TxOptions{})
	require.NoError(t, err)
	defer unit.Rollback(ctx)
	moved, err = unit.Bookings().TransitionStatus(ctx, b.ID, domainbooking.StatusPendingPayment, domainbooking.StatusPaymentFailed, testNow)
	require.NoError(t, err)
	require.False(t, moved)

	stored, err := unit.Payments().ByBookingID(ctx, b.ID)
	require.NoError(t, err)
	require.Equal(t, domainbooking.PaymentPaid, stored.Status)
	require.Equal(t, "txn-9", stored.ExternalTransactionID)
	require.Equal(t, p.ExternalOrderID, stored.ExternalOrderID)
}

func TestRollbackDiscardsWrites(t *testing.T) {
	factory := testFactory(openTestDB(t))
	ctx := context.Background()
	b, p := newTestBooking(t, "b-rolled", testNow.Add(24*time.Hour), 2)

	unit, err := factory.Begin(ctx, uow.TxOptions{})
	require.NoError(t, err)
	require.NoError(t, unit.Bookings().Create(ctx, b))
	require.NoError(t, unit.Payments().Create(ctx, p))
	require.NoError(t, unit.Rollback(ctx))
	require.NoError(t, unit.Rollback(ctx))
	require.ErrorIs(t, unit.Commit(ctx), ErrUnitClosed)

	unit, err = factory.Begin(ctx, uow.TxOptions{ReadOnly: true})
	require.NoError(t, err)
	defer unit.Rollback(ctx)
	_, err = unit.Bookings().ByID(ctx, b.ID)
	require.ErrorIs(t, err, domainbooking.ErrBookingNotFound)
}

func TestListPendingPayment(t *testing.T) {
	factory := testFactory(openTestDB(t))
	ctx := context.Background()
	pending, pendingPay := newTestBooking(t, "b-pending", testNow.Add(24*time.Hour), 2)
	insertBooking(t, factory, pending, pendingPay)
	confirmed, confirmedPay := newTestBooking(t, "b-confirmed", testNow.Add(48*time.Hour), 2)
	confirmed.Status = domainbooking.StatusConfirmed
	insertBooking(t, factory, confirmed, confirmedPay)

	unit, err := factory.Begin(ctx, uow.TxOptions{ReadOnly: true})
	require.NoError(t, err)
	defer unit.Rollback(ctx)

	stale, err := unit.Bookings().ListPendingPayment(ctx, testNow.Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	require.Equal(t, pending.ID, stale[0].ID)
	require.Equal(t, int64(160), stale[0].FinalPrice.Amount)

	none, err := unit.Bookings().ListPendingPayment(ctx, testNow.Add(-time.Minute), 10)
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestListByRequester(t *testing.T) {
	factory := testFactory(openTestDB(t))
	ctx := context.Background()
	first, firstPay := newTestBooking(t, "b-first", testNow.Add(24*time.Hour), 2)
	insertBooking(t, factory, first, firstPay)
	second, secondPay := newTestBooking(t, "b-second", testNow.Add(72*time.Hour), 2)
	insertBooking(t, factory, second, secondPay)

	unit, err := factory.Begin(ctx, uow.TxOptions{ReadOnly: true})
	require.NoError(t, err)
	defer unit.Rollback(ctx)

	mine, err := unit.Bookings().ListByRequester(ctx, "guest-1", 10)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	require.Equal(t, second.ID, mine[0].ID)
	require.Equal(t, "guest-1", mine[0].RequesterID)

	none, err := unit.Bookings().ListByRequester(ctx, "guest-2", 10)
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestOutboxFollowsTransaction(t *testing.T) {
	db := openTestDB(t)
	factory := testFactory(db)
	store := OutboxStore{DB: db}
	ctx := context.Background()
	record := func(id string) outbox.EventRecord {
		return outbox.EventRecord{ID: id, Name: "booking.confirmed", Payload: []byte(`{"booking_id":"b-1"}`), OccurredAt: testNow, Aggregate: "b-1", Headers: map[string]string{"traceparent": "00-abc"}}
	}

	unit, err := factory.Begin(ctx, uow.TxOptions{})
	require.NoError(t, err)
	require.NoError(t, store.Add(uow.Bind(ctx, unit), record("evt-rolled")))
	require.NoError(t, unit.Rollback(ctx))

	unit, err = factory.Begin(ctx, uow.TxOptions{})
	require.NoError(t, err)
	require.NoError(t, store.Add(uow.Bind(ctx, unit), record("evt-kept")))
	require.NoError(t, unit.Commit(ctx))

	doc, err := store.Claim(ctx, "worker-1")
	require.NoError(t, err)
	require.NotNil(t, doc)
	require.Equal(t, "evt-kept", doc.ID)
	require.Equal(t, "00-abc", doc.Headers["traceparent"])
	require.Equal(t, "worker-1", doc.ClaimedBy)

	again, err := store.Claim(ctx, "worker-2")
	require.NoError(t, err)
	require.Nil(t, again)

	require.NoError(t, store.MarkFailed(ctx, doc.ID, testNow.Add(-time.Second), "broker down"))
	retry, err := store.Claim(ctx, "worker-2")
	require.NoError(t, err)
	require.NotNil(t, retry)
	require.Equal(t, 1, retry.Attempts)
	require.NoError(t, store.MarkSent(ctx, retry.ID))

	drained, err := store.Claim(ctx, "worker-3")
	require.NoError(t, err)
	require.Nil(t, drained)
}
