package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	domainpricing "hotelbooking/internal/domain/pricing"
	domainrooms "hotelbooking/internal/domain/rooms"
	"hotelbooking/internal/infra/db/gormstore"
)

// roomFixtures is reference data for running the service standalone.
// Rooms, tiers and promotions are otherwise managed by an external system.
type roomFixtures struct {
	EffectiveFrom string             `json:"effective_from"`
	Rooms         []roomFixture      `json:"rooms"`
	Promotions    []promotionFixture `json:"promotions"`
}

type roomFixture struct {
	ID      string       `json:"id"`
	HotelID string       `json:"hotel_id"`
	Name    string       `json:"name"`
	Tier    *tierFixture `json:"tier"`
}

type tierFixture struct {
	Currency           string `json:"currency"`
	FirstTwoHours      int64  `json:"first_two_hours"`
	EachAdditionalHour int64  `json:"each_additional_hour"`
	PerDay             int64  `json:"per_day"`
	PerNight           int64  `json:"per_night"`
}

type promotionFixture struct {
	ID         string    `json:"id"`
	HotelID    string    `json:"hotel_id"`
	PercentOff int64     `json:"percent_off"`
	AmountOff  int64     `json:"amount_off"`
	ValidFrom  time.Time `json:"valid_from"`
	ValidTo    time.Time `json:"valid_to"`
}

func readFixtures(path string) (roomFixtures, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return roomFixtures{}, err
	}
	var fx roomFixtures
	if err := json.Unmarshal(data, &fx); err != nil {
		return roomFixtures{}, fmt.Errorf("decode fixtures: %w", err)
	}
	return fx, nil
}

func (fx roomFixtures) domain() ([]domainrooms.Room, []domainpricing.Promotion) {
	rooms := make([]domainrooms.Room, 0, len(fx.Rooms))
	for _, r := range fx.Rooms {
		room := domainrooms.Room{ID: domainrooms.RoomID(r.ID), HotelID: domainrooms.HotelID(r.HotelID), Name: r.Name}
		if r.Tier != nil {
			room.Tier = &domainpricing.PriceTier{
				Currency:           r.Tier.Currency,
				FirstTwoHours:      r.Tier.FirstTwoHours,
				EachAdditionalHour: r.Tier.EachAdditionalHour,
				PerDay:             r.Tier.PerDay,
				PerNight:           r.Tier.PerNight,
			}
		}
		rooms = append(rooms, room)
	}
	promos := make([]domainpricing.Promotion, 0, len(fx.Promotions))
	for _, p := range fx.Promotions {
		promos = append(promos, domainpricing.Promotion{
			ID:         domainpricing.PromotionID(p.ID),
			HotelID:    p.HotelID,
			PercentOff: p.PercentOff,
			AmountOff:  p.AmountOff,
			ValidFrom:  p.ValidFrom,
			ValidTo:    p.ValidTo,
		})
	}
	return rooms, promos
}

func (fx roomFixtures) effectiveFrom() time.Time {
	if t, err := time.Parse(time.RFC3339, fx.EffectiveFrom); err == nil {
		return t
	}
	return time.Unix(0, 0).UTC()
}

// loadFixtures seeds whichever store the application runs on. A missing
// file is not an error.
func (a *application) loadFixtures(ctx context.Context, path string) error {
	fx, err := readFixtures(path)
	if errors.Is(err, os.ErrNotExist) {
		a.logger.Info("room fixtures file not found, skipping", "path", path)
		return nil
	}
	if err != nil {
		return err
	}
	rooms, promos := fx.domain()
	for _, room := range rooms {
		if room.Tier == nil {
			continue
		}
		if err := room.Tier.Validate(); err != nil {
			return fmt.Errorf("room %s: %w", room.ID, err)
		}
	}
	switch {
	case a.memoryStore != nil:
		for _, room := range rooms {
			a.memoryStore.PutRoom(room)
		}
		for _, promo := range promos {
			a.memoryStore.PutPromotion(promo)
		}
	case a.db != nil:
		if err := gormstore.Seed(ctx, a.db, rooms, promos, fx.effectiveFrom()); err != nil {
			return err
		}
	default:
		return nil
	}
	a.logger.Info("room fixtures imported", "path", path, "rooms", len(rooms), "promotions", len(promos))
	return nil
}

func fixturesPath(configured string) string {
	if configured != "" {
		return configured
	}
	candidates := []string{
		filepath.Join("data", "rooms.json"),
		filepath.Join("..", "..", "data", "rooms.json"),
	}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return candidates[0]
}
