package uow

import (
	"context"
	"errors"

	domainbooking "hotelbooking/internal/domain/booking"
	domainpricing "hotelbooking/internal/domain/pricing"
	domainrooms "hotelbooking/internal/domain/rooms"
)

// ErrConflict reports that the store aborted the unit because a concurrent
// unit touched the same rows. The whole unit may be retried.
var ErrConflict = errors.New("uow: concurrent transaction conflict")

// UnitOfWork coordinates repositories inside a transaction boundary.
type UnitOfWork interface {
	Rooms() domainrooms.Repository
	Promotions() domainpricing.PromotionRepository
	Bookings() domainbooking.Repository
	Payments() domainbooking.PaymentRepository

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// UoWFactory starts unit of work instances.
type UoWFactory interface {
	Begin(ctx context.Context, opts TxOptions) (UnitOfWork, error)
}

// TxOptions configure transaction boundaries.
type TxOptions struct {
	ReadOnly bool
}
