package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domainbooking "hotelbooking/internal/domain/booking"
	domainpricing "hotelbooking/internal/domain/pricing"
	domainrooms "hotelbooking/internal/domain/rooms"
	"hotelbooking/internal/domain/shared/daterange"
	"hotelbooking/internal/domain/shared/money"
)

type roomRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func (r roomRepository) ByID(ctx context.Context, id domainrooms.RoomID) (*domainrooms.Room, error) {
	db := r.db.WithContext(ctx)
	var rec roomRecord
	if err := db.Where("id = ?", string(id)).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainrooms.ErrRoomNotFound
		}
		return nil, mapError(err)
	}
	room := &domainrooms.Room{
		ID:      domainrooms.RoomID(rec.ID),
		HotelID: domainrooms.HotelID(rec.HotelID),
		Name:    rec.Name,
	}
	var tier priceTierRecord
	err := db.Where("room_id = ? AND effective_from <= ?", rec.ID, r.now().UTC()).
		Order("effective_from DESC").
		Take(&tier).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
	case err != nil:
		return nil, mapError(err)
	default:
		room.Tier = &domainpricing.PriceTier{
			Currency:           tier.Currency,
			FirstTwoHours:      tier.FirstTwoHours,
			EachAdditionalHour: tier.EachAdditionalHour,
			PerDay:             tier.PerDay,
			PerNight:           tier.PerNight,
		}
	}
	return room, nil
}

type promotionRepository struct {
	db *gorm.DB
}

func (r promotionRepository) ByID(ctx context.Context, id domainpricing.PromotionID) (*domainpricing.Promotion, error) {
	var rec promotionRecord
	if err := r.db.WithContext(ctx).Where("id = ?", string(id)).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainpricing.ErrPromotionNotFound
		}
		return nil, mapError(err)
	}
	return &domainpricing.Promotion{
		ID:         domainpricing.PromotionID(rec.ID),
		HotelID:    rec.HotelID,
		PercentOff: rec.PercentOff,
		AmountOff:  rec.AmountOff,
		ValidFrom:  rec.ValidFrom.UTC(),
		ValidTo:    rec.ValidTo.UTC(),
	}, nil
}

type bookingRepository struct {
	db *gorm.DB
}

func (r bookingRepository) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	var rec bookingRecord
	if err := r.db.WithContext(ctx).Where("id = ?", string(id)).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainbooking.ErrBookingNotFound
		}
		return nil, mapError(err)
	}
	return bookingFromRecord(rec), nil
}

func (r bookingRepository) Create(ctx context.Context, b *domainbooking.Booking) error {
	if b == nil {
		return fmt.Errorf("gormstore: nil booking")
	}
	rec := bookingToRecord(b)
	return mapError(r.db.WithContext(ctx).Create(&rec).Error)
}

// LockRoom takes a row lock on the room for the rest of the transaction.
// sqlite has no row locks; its single connection already serialises units.
func (r bookingRepository) LockRoom(ctx context.Context, roomID domainrooms.RoomID) error {
	var rec roomRecord
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		Where("id = ?", string(roomID)).
		Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domainrooms.ErrRoomNotFound
	}
	return mapError(err)
}

func (r bookingRepository) HasOverlap(ctx context.Context, roomID domainrooms.RoomID, dr daterange.DateRange) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&bookingRecord{}).
		Where("room_id = ?", string(roomID)).
		Where("status NOT IN ?", nonBlockingStatuses()).
		Where("check_in < ? AND check_out > ?", dr.CheckOut.UTC(), dr.CheckIn.UTC()).
		Count(&count).Error
	if err != nil {
		return false, mapError(err)
	}
	return count > 0, nil
}

func (r bookingRepository) TransitionStatus(ctx context.Context, id domainbooking.BookingID, from, to domainbooking.Status, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&bookingRecord{}).
		Where("id = ? AND status = ?", string(id), string(from)).
		Updates(map[string]any{"status": string(to), "updated_at": at.UTC()})
	if res.Error != nil {
		return false, mapError(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r bookingRepository) ListPendingPayment(ctx context.Context, createdBefore time.Time, limit int) ([]*domainbooking.Booking, error) {
	if limit <= 0 {
		limit = 100
	}
	var recs []bookingRecord
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", string(domainbooking.StatusPendingPayment), createdBefore.UTC()).
		Order("created_at ASC").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, mapError(err)
	}
	out := make([]*domainbooking.Booking, 0, len(recs))
	for _, rec := range recs {
		out = append(out, bookingFromRecord(rec))
	}
	return out, nil
}

func (r bookingRepository) ListByRequester(ctx context.Context, requesterID string, limit int) ([]*domainbooking.Booking, error) {
	if limit <= 0 {
		limit = 100
	}
	var recs []bookingRecord
	err := r.db.WithContext(ctx).
		Where("requester_id = ?", requesterID).
		Order("check_in DESC").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, mapError(err)
	}
	out := make([]*domainbooking.Booking, 0, len(recs))
	for _, rec := range recs {
		out = append(out, bookingFromRecord(rec))
	}
	return out, nil
}

type paymentRepository struct {
	db *gorm.DB
}

func (r paymentRepository) ByBookingID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Payment, error) {
	var rec paymentRecord
	if err := r.db.WithContext(ctx).Where("booking_id = ?", string(id)).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainbooking.ErrBookingNotFound
		}
		return nil, mapError(err)
	}
	return paymentFromRecord(rec), nil
}

func (r paymentRepository) Create(ctx context.Context, p *domainbooking.Payment) error {
	if p == nil {
		return fmt.Errorf("gormstore: nil payment")
	}
	rec := paymentToRecord(p)
	return mapError(r.db.WithContext(ctx).Create(&rec).Error)
}

func (r paymentRepository) TransitionStatus(ctx context.Context, id domainbooking.PaymentID, from, to domainbooking.PaymentStatus, externalTxnID string, at time.Time) (bool, error) {
	updates := map[string]any{"status": string(to), "updated_at": at.UTC()}
	if externalTxnID != "" {
		updates["external_transaction_id"] = externalTxnID
	}
	res := r.db.WithContext(ctx).
		Model(&paymentRecord{}).
		Where("id = ? AND status = ?", string(id), string(from)).
		Updates(updates)
	if res.Error != nil {
		return false, mapError(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func nonBlockingStatuses() []string {
	out := make([]string, 0, len(domainbooking.NonBlockingStatuses))
	for _, s := range domainbooking.NonBlockingStatuses {
		out = append(out, string(s))
	}
	return out
}

func bookingToRecord(b *domainbooking.Booking) bookingRecord {
	return bookingRecord{
		ID:            string(b.ID),
		RoomID:        string(b.RoomID),
		HotelID:       string(b.HotelID),
		RequesterID:   b.RequesterID,
		BookingType:   string(b.Type),
		CheckIn:       b.Range.CheckIn.UTC(),
		CheckOut:      b.Range.CheckOut.UTC(),
		DurationUnits: b.DurationUnits,
		Currency:      b.FinalPrice.Currency,
		BasePrice:     b.BasePrice.Amount,
		Discount:      b.Discount.Amount,
		FinalPrice:    b.FinalPrice.Amount,
		PromotionID:   string(b.PromotionID),
		Status:        string(b.Status),
		CreatedAt:     b.CreatedAt.UTC(),
		UpdatedAt:     b.UpdatedAt.UTC(),
	}
}

func bookingFromRecord(rec bookingRecord) *domainbooking.Booking {
	amount := func(v int64) money.Money { return money.Money{Amount: v, Currency: rec.Currency} }
	return &domainbooking.Booking{
		ID:            domainbooking.BookingID(rec.ID),
		RoomID:        domainrooms.RoomID(rec.RoomID),
		HotelID:       domainrooms.HotelID(rec.HotelID),
		RequesterID:   rec.RequesterID,
		Type:          domainpricing.BookingType(rec.BookingType),
		Range:         daterange.DateRange{CheckIn: rec.CheckIn.UTC(), CheckOut: rec.CheckOut.UTC()},
		DurationUnits: rec.DurationUnits,
		BasePrice:     amount(rec.BasePrice),
		Discount:      amount(rec.Discount),
		FinalPrice:    amount(rec.FinalPrice),
		PromotionID:   domainpricing.PromotionID(rec.PromotionID),
		Status:        domainbooking.Status(rec.Status),
		CreatedAt:     rec.CreatedAt.UTC(),
		UpdatedAt:     rec.UpdatedAt.UTC(),
	}
}

func paymentToRecord(p *domainbooking.Payment) paymentRecord {
	return paymentRecord{
		ID:                    string(p.ID),
		BookingID:             string(p.BookingID),
		Method:                string(p.Method),
		Currency:              p.Amount.Currency,
		Amount:                p.Amount.Amount,
		Status:                string(p.Status),
		ExternalTransactionID: p.ExternalTransactionID,
		ExternalOrderID:       p.ExternalOrderID,
		CreatedAt:             p.CreatedAt.UTC(),
		UpdatedAt:             p.UpdatedAt.UTC(),
	}
}

func paymentFromRecord(rec paymentRecord) *domainbooking.Payment {
	return &domainbooking.Payment{
		ID:                    domainbooking.PaymentID(rec.ID),
		BookingID:             domainbooking.BookingID(rec.BookingID),
		Method:                domainbooking.PaymentMethod(rec.Method),
		Amount:                money.Money{Amount: rec.Amount, Currency: rec.Currency},
		Status:                domainbooking.PaymentStatus(rec.Status),
		ExternalTransactionID: rec.ExternalTransactionID,
		ExternalOrderID:       rec.ExternalOrderID,
		CreatedAt:             rec.CreatedAt.UTC(),
		UpdatedAt:             rec.UpdatedAt.UTC(),
	}
}
