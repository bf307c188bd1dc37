package availability

import (
	"context"
	"errors"
	"fmt"

	"hotelbooking/internal/domain/booking"
	"hotelbooking/internal/domain/rooms"
	"hotelbooking/internal/domain/shared/daterange"
)

var ErrOverlappingRange = errors.New("availability: range overlaps an existing booking")

// Store is the part of the booking repository the guard needs.
type Store interface {
	LockRoom(ctx context.Context, roomID rooms.RoomID) error
	HasOverlap(ctx context.Context, roomID rooms.RoomID, dr daterange.DateRange) (bool, error)
}

// Reserve locks the room for the current unit of work and fails with
// ErrOverlappingRange when a blocking booking intersects dr. The caller must
// insert its booking in the same unit of work.
func Reserve(ctx context.Context, store Store, roomID rooms.RoomID, dr daterange.DateRange) error {
	if err := store.LockRoom(ctx, roomID); err != nil {
		return err
	}
	taken, err := store.HasOverlap(ctx, roomID, dr)
	if err != nil {
		return fmt.Errorf("availability: check overlap: %w", err)
	}
	if taken {
		return ErrOverlappingRange
	}
	return nil
}

// IsAvailable is the advisory, lock-free variant of Reserve.
func IsAvailable(ctx context.Context, store Store, roomID rooms.RoomID, dr daterange.DateRange) (bool, error) {
	taken, err := store.HasOverlap(ctx, roomID, dr)
	if err != nil {
		return false, fmt.Errorf("availability: check overlap: %w", err)
	}
	return !taken, nil
}

// Collides reports whether any blocking booking of roomID in existing
// intersects dr. Stores without a query engine use it directly.
func Collides(existing []*booking.Booking, roomID rooms.RoomID, dr daterange.DateRange) bool {
	for _, b := range existing {
		if b == nil || b.RoomID != roomID || !b.Status.Blocks() {
			continue
		}
		if b.Range.Overlaps(dr) {
			return true
		}
	}
	return false
}
