package gormstore

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"gorm.io/gorm"

	"hotelbooking/internal/app/uow"
	domainbooking "hotelbooking/internal/domain/booking"
	domainpricing "hotelbooking/internal/domain/pricing"
	domainrooms "hotelbooking/internal/domain/rooms"
)

var (
	ErrFactoryMisconfigured = errors.New("gormstore: unit of work factory misconfigured")
	ErrUnitClosed           = errors.New("gormstore: unit of work already finished")
)

// Factory opens one database transaction per unit of work. Read-write units
// on postgres run SERIALIZABLE.
type Factory struct {
	DB  *gorm.DB
	Now func() time.Time
}

func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.DB == nil {
		return nil, ErrFactoryMisconfigured
	}
	var txOpts []*sql.TxOptions
	if isPostgres(f.DB) {
		level := sql.LevelSerializable
		if opts.ReadOnly {
			level = sql.LevelRepeatableRead
		}
		txOpts = append(txOpts, &sql.TxOptions{Isolation: level, ReadOnly: opts.ReadOnly})
	}
	tx := f.DB.WithContext(ctx).Begin(txOpts...)
	if tx.Error != nil {
		return nil, mapError(tx.Error)
	}
	now := f.Now
	if now == nil {
		now = time.Now
	}
	return &Unit{tx: tx, now: now}, nil
}

// Unit wraps a gorm transaction.
type Unit struct {
	tx  *gorm.DB
	now func() time.Time

	mu   sync.Mutex
	done bool
}

type txKey struct{}

// InjectContext exposes the transaction to stores that only see a context,
// such as the outbox.
func (u *Unit) InjectContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, txKey{}, u.tx)
}

func txFromContext(ctx context.Context) (*gorm.DB, bool) {
	tx, ok := ctx.Value(txKey{}).(*gorm.DB)
	return tx, ok && tx != nil
}

func (u *Unit) Rooms() domainrooms.Repository { return roomRepository{db: u.tx, now: u.now} }
func (u *Unit) Promotions() domainpricing.PromotionRepository {
	return promotionRepository{db: u.tx}
}
func (u *Unit) Bookings() domainbooking.Repository        { return bookingRepository{db: u.tx} }
func (u *Unit) Payments() domainbooking.PaymentRepository { return paymentRepository{db: u.tx} }

func (u *Unit) Commit(ctx context.Context) error {
	if !u.finish() {
		return ErrUnitClosed
	}
	return mapError(u.tx.Commit().Error)
}

func (u *Unit) Rollback(ctx context.Context) error {
	if !u.finish() {
		return nil
	}
	err := u.tx.Rollback().Error
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

func (u *Unit) finish() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.done {
		return false
	}
	u.done = true
	return true
}
