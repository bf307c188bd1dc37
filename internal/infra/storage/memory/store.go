package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	domainbooking "hotelbooking/internal/domain/booking"
	domainpricing "hotelbooking/internal/domain/pricing"
	domainrooms "hotelbooking/internal/domain/rooms"
)

// Store holds reference data and bookings for single-process deployments
// and tests. Writes reach it only through a committed Unit.
type Store struct {
	mu         sync.RWMutex
	rooms      map[domainrooms.RoomID]domainrooms.Room
	promotions map[domainpricing.PromotionID]domainpricing.Promotion
	bookings   map[domainbooking.BookingID]*domainbooking.Booking
	payments   map[domainbooking.BookingID]*domainbooking.Payment
	paymentIDs map[domainbooking.PaymentID]domainbooking.BookingID
	locks      *keyedLocks
}

func NewStore() *Store {
	return &Store{
		rooms:      make(map[domainrooms.RoomID]domainrooms.Room),
		promotions: make(map[domainpricing.PromotionID]domainpricing.Promotion),
		bookings:   make(map[domainbooking.BookingID]*domainbooking.Booking),
		payments:   make(map[domainbooking.BookingID]*domainbooking.Payment),
		paymentIDs: make(map[domainbooking.PaymentID]domainbooking.BookingID),
		locks:      newKeyedLocks(),
	}
}

// PutRoom seeds or replaces a room.
func (s *Store) PutRoom(room domainrooms.Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if room.Tier != nil {
		tier := *room.Tier
		room.Tier = &tier
	}
	s.rooms[room.ID] = room
}

// PutPromotion seeds or replaces a promotion.
func (s *Store) PutPromotion(promo domainpricing.Promotion) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.promotions[promo.ID] = promo
}

// Bookings returns a snapshot of every committed booking of a room.
func (s *Store) Bookings(roomID domainrooms.RoomID) []*domainbooking.Booking {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.roomBookingsLocked(roomID)
	for i, b := range out {
		out[i] = cloneBooking(b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Range.CheckIn.Before(out[j].Range.CheckIn) })
	return out
}

func (s *Store) roomBookingsLocked(roomID domainrooms.RoomID) []*domainbooking.Booking {
	var out []*domainbooking.Booking
	for _, b := range s.bookings {
		if b.RoomID == roomID {
			out = append(out, b)
		}
	}
	return out
}

func cloneBooking(b *domainbooking.Booking) *domainbooking.Booking {
	return &domainbooking.Booking{
		ID:            b.ID,
		RoomID:        b.RoomID,
		HotelID:       b.HotelID,
		RequesterID:   b.RequesterID,
		Type:          b.Type,
		Range:         b.Range,
		DurationUnits: b.DurationUnits,
		BasePrice:     b.BasePrice,
		Discount:      b.Discount,
		FinalPrice:    b.FinalPrice,
		PromotionID:   b.PromotionID,
		Status:        b.Status,
		CreatedAt:     b.CreatedAt,
		UpdatedAt:     b.UpdatedAt,
	}
}

func clonePayment(p *domainbooking.Payment) *domainbooking.Payment {
	cp := *p
	return &cp
}

// keyedLocks hands out one mutex per key. Holders release through the
// returned func; acquisition gives up when ctx ends.
type keyedLocks struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{slots: make(map[string]chan struct{})}
}

func (k *keyedLocks) acquire(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	slot, ok := k.slots[key]
	if !ok {
		slot = make(chan struct{}, 1)
		k.slots[key] = slot
	}
	k.mu.Unlock()

	select {
	case slot <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-slot }) }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type bookingTransition struct {
	from domainbooking.Status
	to   domainbooking.Status
	at   time.Time
}

type paymentTransition struct {
	from  domainbooking.PaymentStatus
	to    domainbooking.PaymentStatus
	txnID string
	at    time.Time
}
