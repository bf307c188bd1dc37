package gormstore

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domainpricing "hotelbooking/internal/domain/pricing"
	domainrooms "hotelbooking/internal/domain/rooms"
)

// Seed upserts reference rooms, their rate cards and promotions. Rate cards
// are written as effective from effectiveFrom.
func Seed(ctx context.Context, db *gorm.DB, rooms []domainrooms.Room, promos []domainpricing.Promotion, effectiveFrom time.Time) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		upsert := clause.OnConflict{UpdateAll: true}
		for _, room := range rooms {
			rec := roomRecord{ID: string(room.ID), HotelID: string(room.HotelID), Name: room.Name, CreatedAt: time.Now().UTC()}
			if err := tx.Clauses(upsert).Create(&rec).Error; err != nil {
				return err
			}
			if room.Tier == nil {
				continue
			}
			tier := priceTierRecord{
				RoomID:             rec.ID,
				EffectiveFrom:      effectiveFrom.UTC(),
				Currency:           room.Tier.Currency,
				FirstTwoHours:      room.Tier.FirstTwoHours,
				EachAdditionalHour: room.Tier.EachAdditionalHour,
				PerDay:             room.Tier.PerDay,
				PerNight:           room.Tier.PerNight,
			}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "room_id"}, {Name: "effective_from"}},
				DoUpdates: clause.AssignmentColumns([]string{"currency", "first_two_hours", "each_additional_hour", "per_day", "per_night"}),
			}).Create(&tier).Error
			if err != nil {
				return err
			}
		}
		for _, promo := range promos {
			rec := promotionRecord{
				ID:         string(promo.ID),
				HotelID:    promo.HotelID,
				PercentOff: promo.PercentOff,
				AmountOff:  promo.AmountOff,
				ValidFrom:  promo.ValidFrom.UTC(),
				ValidTo:    promo.ValidTo.UTC(),
			}
			if err := tx.Clauses(upsert).Create(&rec).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
