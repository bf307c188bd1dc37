package policies

import (
	"context"

	domainrooms "hotelbooking/internal/domain/rooms"
)

// RoomLocker serialises reservation attempts on a room across processes.
// The returned release func must be called once the attempt is finished.
type RoomLocker interface {
	LockRoom(ctx context.Context, roomID domainrooms.RoomID) (release func(), err error)
}
