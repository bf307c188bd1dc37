// Package gormstore persists rooms, bookings, payments and the event outbox
// in a relational database through gorm.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"hotelbooking/internal/app/uow"
)

var ErrUnsupportedDriver = errors.New("gormstore: unsupported driver")

// Open connects to postgres or sqlite. sqlite runs with a single connection
// so units of work are serialised by the pool.
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(driver) {
	case "postgres", "postgresql":
		dialector = postgres.Open(dsn)
	case "sqlite", "sqlite3":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if isSQLite(db) {
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}
	return db, nil
}

// Migrate creates or updates the schema. On postgres it also installs an
// exclusion constraint so overlapping blocking bookings of one room cannot
// both be committed.
func Migrate(ctx context.Context, db *gorm.DB) error {
	db = db.WithContext(ctx)
	if err := db.AutoMigrate(allModels()...); err != nil {
		return fmt.Errorf("gormstore: automigrate: %w", err)
	}
	if !isPostgres(db) {
		return nil
	}
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS btree_gist`,
		`DO $$ BEGIN
			IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'bookings_no_overlap') THEN
				ALTER TABLE bookings ADD CONSTRAINT bookings_no_overlap
					EXCLUDE USING gist (room_id WITH =, tstzrange(check_in, check_out, '[)') WITH &&)
					WHERE (status NOT IN ('CANCELLED', 'PAYMENT_FAILED'));
			END IF;
		END $$`,
	}
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("gormstore: install overlap constraint: %w", err)
		}
	}
	return nil
}

// Ping backs the readiness probe.
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func isPostgres(db *gorm.DB) bool {
	return db.Dialector.Name() == "postgres"
}

func isSQLite(db *gorm.DB) bool {
	return db.Dialector.Name() == "sqlite"
}

// mapError turns serialization failures, deadlocks and exclusion
// violations into uow.ErrConflict so callers can retry the unit.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "23P01":
			return fmt.Errorf("%w: %s (%s)", uow.ErrConflict, pgErr.Message, pgErr.Code)
		}
	}
	return err
}
