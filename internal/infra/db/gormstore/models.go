package gormstore

import "time"

type roomRecord struct {
	ID        string `gorm:"primaryKey;size:64"`
	HotelID   string `gorm:"size:64;index;not null"`
	Name      string `gorm:"size:255"`
	CreatedAt time.Time
}

func (roomRecord) TableName() string { return "rooms" }

// priceTierRecord rows are versioned by EffectiveFrom; the newest row that
// is already effective is the room's current tier.
type priceTierRecord struct {
	ID                 uint      `gorm:"primaryKey"`
	RoomID             string    `gorm:"size:64;not null;uniqueIndex:idx_price_tiers_room_effective"`
	EffectiveFrom      time.Time `gorm:"not null;uniqueIndex:idx_price_tiers_room_effective"`
	Currency           string    `gorm:"size:3;not null"`
	FirstTwoHours      int64     `gorm:"not null"`
	EachAdditionalHour int64     `gorm:"not null"`
	PerDay             int64     `gorm:"not null"`
	PerNight           int64     `gorm:"not null"`
}

func (priceTierRecord) TableName() string { return "price_tiers" }

type promotionRecord struct {
	ID         string    `gorm:"primaryKey;size:64"`
	HotelID    string    `gorm:"size:64;index;not null"`
	PercentOff int64     `gorm:"not null;default:0"`
	AmountOff  int64     `gorm:"not null;default:0"`
	ValidFrom  time.Time `gorm:"not null"`
	ValidTo    time.Time `gorm:"not null"`
}

func (promotionRecord) TableName() string { return "promotions" }

type bookingRecord struct {
	ID            string    `gorm:"primaryKey;size:64"`
	RoomID        string    `gorm:"size:64;not null;index:idx_bookings_room_range,priority:1"`
	HotelID       string    `gorm:"size:64;not null"`
	RequesterID   string    `gorm:"size:128;not null;index"`
	BookingType   string    `gorm:"size:16;not null"`
	CheckIn       time.Time `gorm:"not null;index:idx_bookings_room_range,priority:2"`
	CheckOut      time.Time `gorm:"not null;index:idx_bookings_room_range,priority:3"`
	DurationUnits int       `gorm:"not null;default:0"`
	Currency      string    `gorm:"size:3;not null"`
	BasePrice     int64     `gorm:"not null"`
	Discount      int64     `gorm:"not null"`
	FinalPrice    int64     `gorm:"not null"`
	PromotionID   string    `gorm:"size:64"`
	Status        string    `gorm:"size:32;not null;index"`
	CreatedAt     time.Time `gorm:"not null;index"`
	UpdatedAt     time.Time `gorm:"not null"`
}

func (bookingRecord) TableName() string { return "bookings" }

type paymentRecord struct {
	ID                    string    `gorm:"primaryKey;size:64"`
	BookingID             string    `gorm:"size:64;not null;uniqueIndex"`
	Method                string    `gorm:"size:16;not null"`
	Currency              string    `gorm:"size:3;not null"`
	Amount                int64     `gorm:"not null"`
	Status                string    `gorm:"size:16;not null"`
	ExternalTransactionID string    `gorm:"size:128"`
	ExternalOrderID       string    `gorm:"size:128;not null;uniqueIndex"`
	CreatedAt             time.Time `gorm:"not null"`
	UpdatedAt             time.Time `gorm:"not null"`
}

func (paymentRecord) TableName() string { return "payments" }

type outboxRecord struct {
	ID          string    `gorm:"primaryKey;size:64"`
	Name        string    `gorm:"size:128;not null"`
	Payload     []byte    `gorm:"not null"`
	OccurredAt  time.Time `gorm:"not null"`
	Aggregate   string    `gorm:"size:64;not null"`
	Headers     string    `gorm:"type:text"`
	State       string    `gorm:"size:16;not null;index:idx_outbox_due,priority:1"`
	Attempts    int       `gorm:"not null;default:0"`
	NextAttempt time.Time `gorm:"column:next_attempt_at;not null;index:idx_outbox_due,priority:2"`
	ClaimedBy   string    `gorm:"size:64"`
	ClaimedAt   *time.Time
	SentAt      *time.Time
	LastError   string `gorm:"type:text"`
	CreatedAt   time.Time
}

func (outboxRecord) TableName() string { return "outbox_events" }

func allModels() []any {
	return []any{
		&roomRecord{},
		&priceTierRecord{},
		&promotionRecord{},
		&bookingRecord{},
		&paymentRecord{},
		&outboxRecord{},
	}
}
