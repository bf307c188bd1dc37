package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	appoutbox "hotelbooking/internal/app/outbox"
	"hotelbooking/internal/app/uow"
	domainavailability "hotelbooking/internal/domain/availability"
	domainbooking "hotelbooking/internal/domain/booking"
	domainpricing "hotelbooking/internal/domain/pricing"
	domainrooms "hotelbooking/internal/domain/rooms"
)

var (
	ErrFactoryMisconfigured = errors.New("memory: unit of work factory misconfigured")
	ErrUnitClosed           = errors.New("memory: unit of work already finished")
)

// Factory wires the shared Store into unit-of-work boundaries.
type Factory struct {
	Store  *Store
	Outbox *Outbox
}

func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.Store == nil {
		return nil, ErrFactoryMisconfigured
	}
	return &Unit{
		store:              f.Store,
		outbox:             f.Outbox,
		readOnly:           opts.ReadOnly,
		held:               make(map[string]func()),
		newBookings:        make(map[domainbooking.BookingID]*domainbooking.Booking),
		newPayments:        make(map[domainbooking.BookingID]*domainbooking.Payment),
		bookingTransitions: make(map[domainbooking.BookingID]bookingTransition),
		paymentTransitions: make(map[domainbooking.PaymentID]paymentTransition),
	}, nil
}

// Unit stages writes and applies them on Commit. Row locks taken through
// LockRoom and TransitionStatus are held until Commit or Rollback.
type Unit struct {
	store    *Store
	outbox   *Outbox
	readOnly bool

	mu                 sync.Mutex
	done               bool
	held               map[string]func()
	newBookings        map[domainbooking.BookingID]*domainbooking.Booking
	newPayments        map[domainbooking.BookingID]*domainbooking.Payment
	bookingTransitions map[domainbooking.BookingID]bookingTransition
	paymentTransitions map[domainbooking.PaymentID]paymentTransition
	events             []appoutbox.EventRecord
}

func (u *Unit) Rooms() domainrooms.Repository                 { return roomRepository{store: u.store} }
func (u *Unit) Promotions() domainpricing.PromotionRepository { return promotionRepository{store: u.store} }
func (u *Unit) Bookings() domainbooking.Repository            { return bookingRepository{unit: u} }
func (u *Unit) Payments() domainbooking.PaymentRepository     { return paymentRepository{unit: u} }

func (u *Unit) lock(ctx context.Context, key string) error {
	u.mu.Lock()
	if u.done {
		u.mu.Unlock()
		return ErrUnitClosed
	}
	if _, ok := u.held[key]; ok {
		u.mu.Unlock()
		return nil
	}
	u.mu.Unlock()

	release, err := u.store.locks.acquire(ctx, key)
	if err != nil {
		return fmt.Errorf("memory: lock %s: %w", key, err)
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.done {
		release()
		return ErrUnitClosed
	}
	u.held[key] = release
	return nil
}

func (u *Unit) stageEvent(rec appoutbox.EventRecord) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.events = append(u.events, rec)
}

func (u *Unit) Commit(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.done {
		return ErrUnitClosed
	}
	defer u.finishLocked()
	if u.readOnly {
		return nil
	}

	s := u.store
	s.mu.Lock()
	if err := u.validateLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	for id, b := range u.newBookings {
		s.bookings[id] = cloneBooking(b)
	}
	for id, p := range u.newPayments {
		s.payments[id] = clonePayment(p)
		s.paymentIDs[p.ID] = id
	}
	for id, t := range u.bookingTransitions {
		b := s.bookings[id]
		b.Status = t.to
		b.UpdatedAt = t.at
	}
	for id, t := range u.paymentTransitions {
		p := s.payments[s.paymentIDs[id]]
		p.Status = t.to
		if t.txnID != "" {
			p.ExternalTransactionID = t.txnID
		}
		p.UpdatedAt = t.at
	}
	s.mu.Unlock()

	if u.outbox != nil && len(u.events) > 0 {
		u.outbox.enqueue(u.events)
	}
	return nil
}

// validateLocked re-checks under the store mutex what the row locks
// already guarantee, so a unit that skipped LockRoom cannot double-book.
func (u *Unit) validateLocked() error {
	s := u.store
	for _, b := range u.newBookings {
		if _, exists := s.bookings[b.ID]; exists {
			return fmt.Errorf("memory: booking %s already exists: %w", b.ID, uow.ErrConflict)
		}
		if !b.Status.Blocks() {
			continue
		}
		if domainavailability.Collides(s.roomBookingsLocked(b.RoomID), b.RoomID, b.Range) {
			return fmt.Errorf("memory: booking %s overlaps a committed booking: %w", b.ID, uow.ErrConflict)
		}
	}
	for id, t := range u.bookingTransitions {
		b, ok := s.bookings[id]
		if !ok {
			if _, staged := u.newBookings[id]; staged {
				continue
			}
			return domainbooking.ErrBookingNotFound
		}
		if b.Status != t.from {
			return fmt.Errorf("memory: booking %s moved concurrently: %w", id, uow.ErrConflict)
		}
	}
	for id, t := range u.paymentTransitions {
		bookingID, ok := s.paymentIDs[id]
		if !ok {
			continue
		}
		if s.payments[bookingID].Status != t.from {
			return fmt.Errorf("memory: payment %s moved concurrently: %w", id, uow.ErrConflict)
		}
	}
	return nil
}

func (u *Unit) Rollback(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.done {
		return nil
	}
	u.finishLocked()
	return nil
}

func (u *Unit) finishLocked() {
	u.done = true
	for key, release := range u.held {
		release()
		delete(u.held, key)
	}
	u.newBookings = nil
	u.newPayments = nil
	u.bookingTransitions = nil
	u.paymentTransitions = nil
	u.events = nil
}

var _ uow.UoWFactory = Factory{}
var _ uow.UnitOfWork = (*Unit)(nil)
