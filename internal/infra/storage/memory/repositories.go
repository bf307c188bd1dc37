package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	domainavailability "hotelbooking/internal/domain/availability"
	domainbooking "hotelbooking/internal/domain/booking"
	domainpricing "hotelbooking/internal/domain/pricing"
	domainrooms "hotelbooking/internal/domain/rooms"
	"hotelbooking/internal/domain/shared/daterange"
)

type roomRepository struct {
	store *Store
}

func (r roomRepository) ByID(ctx context.Context, id domainrooms.RoomID) (*domainrooms.Room, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	room, ok := r.store.rooms[id]
	if !ok {
		return nil, domainrooms.ErrRoomNotFound
	}
	if room.Tier != nil {
		tier := *room.Tier
		room.Tier = &tier
	}
	return &room, nil
}

type promotionRepository struct {
	store *Store
}

func (r promotionRepository) ByID(ctx context.Context, id domainpricing.PromotionID) (*domainpricing.Promotion, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	promo, ok := r.store.promotions[id]
	if !ok {
		return nil, domainpricing.ErrPromotionNotFound
	}
	return &promo, nil
}

type bookingRepository struct {
	unit *Unit
}

func (r bookingRepository) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	u := r.unit
	u.mu.Lock()
	defer u.mu.Unlock()
	if b, ok := u.newBookings[id]; ok {
		return u.overlayBookingLocked(cloneBooking(b)), nil
	}
	u.store.mu.RLock()
	b, ok := u.store.bookings[id]
	if ok {
		b = cloneBooking(b)
	}
	u.store.mu.RUnlock()
	if !ok {
		return nil, domainbooking.ErrBookingNotFound
	}
	return u.overlayBookingLocked(b), nil
}

func (u *Unit) overlayBookingLocked(b *domainbooking.Booking) *domainbooking.Booking {
	if t, ok := u.bookingTransitions[b.ID]; ok {
		b.Status = t.to
		b.UpdatedAt = t.at
	}
	return b
}

func (r bookingRepository) Create(ctx context.Context, b *domainbooking.Booking) error {
	u := r.unit
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.done {
		return ErrUnitClosed
	}
	if _, ok := u.newBookings[b.ID]; ok {
		return fmt.Errorf("memory: booking %s staged twice", b.ID)
	}
	u.newBookings[b.ID] = cloneBooking(b)
	return nil
}

func (r bookingRepository) LockRoom(ctx context.Context, roomID domainrooms.RoomID) error {
	u := r.unit
	u.store.mu.RLock()
	_, ok := u.store.rooms[roomID]
	u.store.mu.RUnlock()
	if !ok {
		return domainrooms.ErrRoomNotFound
	}
	return u.lock(ctx, "room:"+string(roomID))
}

func (r bookingRepository) HasOverlap(ctx context.Context, roomID domainrooms.RoomID, dr daterange.DateRange) (bool, error) {
	u := r.unit
	u.mu.Lock()
	defer u.mu.Unlock()
	u.store.mu.RLock()
	committed := u.store.roomBookingsLocked(roomID)
	candidates := make([]*domainbooking.Booking, 0, len(committed)+len(u.newBookings))
	for _, b := range committed {
		candidates = append(candidates, u.overlayBookingLocked(cloneBooking(b)))
	}
	u.store.mu.RUnlock()
	for _, b := range u.newBookings {
		candidates = append(candidates, u.overlayBookingLocked(cloneBooking(b)))
	}
	return domainavailability.Collides(candidates, roomID, dr), nil
}

func (r bookingRepository) TransitionStatus(ctx context.Context, id domainbooking.BookingID, from, to domainbooking.Status, at time.Time) (bool, error) {
	u := r.unit
	if err := u.lock(ctx, "booking:"+string(id)); err != nil {
		return false, err
	}
	current, err := r.ByID(ctx, id)
	if err != nil {
		return false, err
	}
	if current.Status != from {
		return false, nil
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if prev, ok := u.bookingTransitions[id]; ok {
		from = prev.from
	}
	u.bookingTransitions[id] = bookingTransition{from: from, to: to, at: at.UTC()}
	return true, nil
}

func (r bookingRepository) ListPendingPayment(ctx context.Context, createdBefore time.Time, limit int) ([]*domainbooking.Booking, error) {
	s := r.unit.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domainbooking.Booking
	for _, b := range s.bookings {
		if b.Status == domainbooking.StatusPendingPayment && b.CreatedAt.Before(createdBefore) {
			out = append(out, cloneBooking(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r bookingRepository) ListByRequester(ctx context.Context, requesterID string, limit int) ([]*domainbooking.Booking, error) {
	s := r.unit.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domainbooking.Booking
	for _, b := range s.bookings {
		if b.RequesterID == requesterID {
			out = append(out, cloneBooking(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Range.CheckIn.After(out[j].Range.CheckIn) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type paymentRepository struct {
	unit *Unit
}

func (r paymentRepository) ByBookingID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Payment, error) {
	u := r.unit
	u.mu.Lock()
	defer u.mu.Unlock()
	if p, ok := u.newPayments[id]; ok {
		return u.overlayPaymentLocked(clonePayment(p)), nil
	}
	u.store.mu.RLock()
	p, ok := u.store.payments[id]
	if ok {
		p = clonePayment(p)
	}
	u.store.mu.RUnlock()
	if !ok {
		return nil, domainbooking.ErrBookingNotFound
	}
	return u.overlayPaymentLocked(p), nil
}

func (u *Unit) overlayPaymentLocked(p *domainbooking.Payment) *domainbooking.Payment {
	if t, ok := u.paymentTransitions[p.ID]; ok {
		p.Status = t.to
		if t.txnID != "" {
			p.ExternalTransactionID = t.txnID
		}
		p.UpdatedAt = t.at
	}
	return p
}

func (r paymentRepository) Create(ctx context.Context, p *domainbooking.Payment) error {
	u := r.unit
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.done {
		return ErrUnitClosed
	}
	u.newPayments[p.BookingID] = clonePayment(p)
	return nil
}

func (r paymentRepository) TransitionStatus(ctx context.Context, id domainbooking.PaymentID, from, to domainbooking.PaymentStatus, externalTxnID string, at time.Time) (bool, error) {
	u := r.unit
	if err := u.lock(ctx, "payment:"+string(id)); err != nil {
		return false, err
	}
	bookingID, ok := r.bookingOf(id)
	if !ok {
		return false, nil
	}
	current, err := r.ByBookingID(ctx, bookingID)
	if err != nil {
		return false, err
	}
	if current.Status != from {
		return false, nil
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if prev, ok := u.paymentTransitions[id]; ok {
		from = prev.from
	}
	u.paymentTransitions[id] = paymentTransition{from: from, to: to, txnID: externalTxnID, at: at.UTC()}
	return true, nil
}

func (r paymentRepository) bookingOf(id domainbooking.PaymentID) (domainbooking.BookingID, bool) {
	u := r.unit
	u.mu.Lock()
	for bookingID, p := range u.newPayments {
		if p.ID == id {
			u.mu.Unlock()
			return bookingID, true
		}
	}
	u.mu.Unlock()
	u.store.mu.RLock()
	defer u.store.mu.RUnlock()
	bookingID, ok := u.store.paymentIDs[id]
	return bookingID, ok
}
