package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hotelbooking/internal/app/middleware"
	"hotelbooking/internal/app/policies"
	"hotelbooking/internal/app/uow"
	domainbooking "hotelbooking/internal/domain/booking"
	domainpricing "hotelbooking/internal/domain/pricing"
	domainrooms "hotelbooking/internal/domain/rooms"
	"hotelbooking/internal/domain/shared/daterange"
	"hotelbooking/internal/domain/shared/money"
)

var base = time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestStore() (*Store, Factory) {
	store := NewStore()
	store.PutRoom(domainrooms.Room{ID: "R", HotelID: "H"})
	return store, Factory{Store: store, Outbox: NewOutbox()}
}

func stay(t *testing.T, id string, from, to int) (*domainbooking.Booking, *domainbooking.Payment) {
	t.Helper()
	dr, err := daterange.New(base.Add(time.Duration(from)*time.Hour), base.Add(time.Duration(to)*time.Hour))
	require.NoError(t, err)
	b, err := domainbooking.NewBooking(domainbooking.CreateParams{
		ID:          domainbooking.BookingID(id),
		Room:        &domainrooms.Room{ID: "R", HotelID: "H"},
		RequesterID: "guest",
		Type:        domainpricing.BookingTypeHourly,
		Range:       dr,
		Quote:       domainpricing.Quote{Base: money.Must(100, "VND"), Final: money.Must(100, "VND")},
		CreatedAt:   base,
	})
	require.NoError(t, err)
	return b, domainbooking.NewPayment(domainbooking.PaymentID("p-"+id), b, domainbooking.MethodCash, base)
}

func create(t *testing.T, unit uow.UnitOfWork, b *domainbooking.Booking, p *domainbooking.Payment) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, unit.Bookings().Create(ctx, b))
	require.NoError(t, unit.Payments().Create(ctx, p))
}

func TestCommitPublishesStagedRows(t *testing.T) {
	store, factory := newTestStore()
	ctx := context.Background()

	unit, err := factory.Begin(ctx, uow.TxOptions{})
	require.NoError(t, err)
	b, p := stay(t, "b-1", 10, 12)
	create(t, unit, b, p)

	// staged rows are visible inside the unit only
	_, err = unit.Bookings().ByID(ctx, "b-1")
	require.NoError(t, err)
	assert.Empty(t, store.Bookings("R"))

	require.NoError(t, unit.Commit(ctx))
	assert.Len(t, store.Bookings("R"), 1)
	require.ErrorIs(t, unit.Commit(ctx), ErrUnitClosed)
}

func TestRollbackDiscardsStagedRows(t *testing.T) {
	store, factory := newTestStore()
	ctx := context.Background()

	unit, err := factory.Begin(ctx, uow.TxOptions{})
	require.NoError(t, err)
	b, p := stay(t, "b-1", 10, 12)
	create(t, unit, b, p)
	require.NoError(t, unit.Rollback(ctx))
	assert.Empty(t, store.Bookings("R"))
}

func TestCommitRejectsOverlapFromUnlockedUnits(t *testing.T) {
	store, factory := newTestStore()
	ctx := context.Background()

	first, err := factory.Begin(ctx, uow.TxOptions{})
	require.NoError(t, err)
	second, err := factory.Begin(ctx, uow.TxOptions{})
	require.NoError(t, err)

	b1, p1 := stay(t, "b-1", 10, 12)
	b2, p2 := stay(t, "b-2", 11, 13)
	create(t, first, b1, p1)
	create(t, second, b2, p2)

	require.NoError(t, first.Commit(ctx))
	require.ErrorIs(t, second.Commit(ctx), uow.ErrConflict)
	assert.Len(t, store.Bookings("R"), 1)
}

func TestHasOverlapIgnoresReleasedBookings(t *testing.T) {
	_, factory := newTestStore()
	ctx := context.Background()

	unit, err := factory.Begin(ctx, uow.TxOptions{})
	require.NoError(t, err)
	b, p := stay(t, "b-1", 10, 12)
	create(t, unit, b, p)
	require.NoError(t, unit.Commit(ctx))

	check := func(from, to int) bool {
		t.Helper()
		u, err := factory.Begin(ctx, uow.TxOptions{ReadOnly: true})
		require.NoError(t, err)
		defer u.Rollback(ctx)
		dr, err := daterange.New(base.Add(time.Duration(from)*time.Hour), base.Add(time.Duration(to)*time.Hour))
		require.NoError(t, err)
		overlap, err := u.Bookings().HasOverlap(ctx, "R", dr)
		require.NoError(t, err)
		return overlap
	}
	assert.True(t, check(11, 13))
	assert.False(t, check(12, 14))

	unit, err = factory.Begin(ctx, uow.TxOptions{})
	require.NoError(t, err)
	moved, err := unit.Bookings().TransitionStatus(ctx, "b-1", domainbooking.StatusPendingPayment, domainbooking.StatusCancelled, base)
	require.NoError(t, err)
	require.True(t, moved)
	require.NoError(t, unit.Commit(ctx))

	assert.False(t, check(11, 13))
}

func TestTransitionStatusIsConditional(t *testing.T) {
	_, factory := newTestStore()
	ctx := context.Background()

	unit, err := factory.Begin(ctx, uow.TxOptions{})
	require.NoError(t, err)
	b, p := stay(t, "b-1", 10, 12)
	create(t, unit, b, p)
	require.NoError(t, unit.Commit(ctx))

	unit, err = factory.Begin(ctx, uow.TxOptions{})
	require.NoError(t, err)
	moved, err := unit.Bookings().TransitionStatus(ctx, "b-1", domainbooking.StatusConfirmed, domainbooking.StatusCompleted, base)
	require.NoError(t, err)
	assert.False(t, moved)
	moved, err = unit.Payments().TransitionStatus(ctx, "p-b-1", domainbooking.PaymentUnpaid, domainbooking.PaymentPaid, "t-1", base)
	require.NoError(t, err)
	assert.True(t, moved)
	require.NoError(t, unit.Commit(ctx))

	unit, err = factory.Begin(ctx, uow.TxOptions{ReadOnly: true})
	require.NoError(t, err)
	defer unit.Rollback(ctx)
	got, err := unit.Payments().ByBookingID(ctx, "b-1")
	require.NoError(t, err)
	assert.Equal(t, domainbooking.PaymentPaid, got.Status)
	assert.Equal(t, "t-1", got.ExternalTransactionID)
}

func TestRoomAndPromotionLookups(t *testing.T) {
	store, factory := newTestStore()
	store.PutPromotion(domainpricing.Promotion{ID: "promo", HotelID: "H", PercentOff: 5})
	ctx := context.Background()
	unit, err := factory.Begin(ctx, uow.TxOptions{ReadOnly: true})
	require.NoError(t, err)
	defer unit.Rollback(ctx)

	_, err = unit.Rooms().ByID(ctx, "missing")
	require.ErrorIs(t, err, domainrooms.ErrRoomNotFound)
	_, err = unit.Promotions().ByID(ctx, "missing")
	require.ErrorIs(t, err, domainpricing.ErrPromotionNotFound)
	promo, err := unit.Promotions().ByID(ctx, "promo")
	require.NoError(t, err)
	assert.Equal(t, int64(5), promo.PercentOff)
}

func TestCallbackInboxFlagsRedelivery(t *testing.T) {
	inbox := NewCallbackInbox()
	d := policies.CallbackDelivery{Provider: "momo", OrderID: "o-1", RequestID: "r-1", ResultCode: 0}

	dup, err := inbox.Record(context.Background(), d)
	require.NoError(t, err)
	assert.False(t, dup)
	dup, err = inbox.Record(context.Background(), d)
	require.NoError(t, err)
	assert.True(t, dup)

	d.ResultCode = 1006
	dup, err = inbox.Record(context.Background(), d)
	require.NoError(t, err)
	assert.False(t, dup)
}

func TestListByRequesterNewestFirst(t *testing.T) {
	_, factory := newTestStore()
	ctx := context.Background()
	unit, err := factory.Begin(ctx, uow.TxOptions{})
	require.NoError(t, err)
	early, earlyPay := stay(t, "b-early", 10, 12)
	late, latePay := stay(t, "b-late", 20, 22)
	create(t, unit, early, earlyPay)
	create(t, unit, late, latePay)
	require.NoError(t, unit.Commit(ctx))

	unit, err = factory.Begin(ctx, uow.TxOptions{ReadOnly: true})
	require.NoError(t, err)
	defer unit.Rollback(ctx)

	mine, err := unit.Bookings().ListByRequester(ctx, "guest", 0)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, domainbooking.BookingID("b-late"), mine[0].ID)

	mine, err = unit.Bookings().ListByRequester(ctx, "guest", 1)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	none, err := unit.Bookings().ListByRequester(ctx, "stranger", 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestIdempotencyStoreKeepsFirstRecordUntilExpiry(t *testing.T) {
	clock := base
	s := NewIdempotencyStore()
	s.TTL = time.Hour
	s.Now = func() time.Time { return clock }
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, middleware.IdempotencyRecord{Key: "k", Command: "first"}))
	require.NoError(t, s.Save(ctx, middleware.IdempotencyRecord{Key: "k", Command: "second"}))
	rec, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "first", rec.Command)

	clock = clock.Add(time.Hour)
	_, ok, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}
