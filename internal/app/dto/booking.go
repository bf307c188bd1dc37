package dto

import (
	"time"

	domainbooking "hotelbooking/internal/domain/booking"
	"hotelbooking/internal/domain/pricing"
	"hotelbooking/internal/domain/shared/money"
)

type MoneyDTO struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

func MapMoney(m money.Money) MoneyDTO {
	return MoneyDTO{Amount: m.Amount, Currency: m.Currency}
}

// BookingConfirmation is the answer to confirm-booking. FailureKind is set
// when the reservation stands but the payment could not be dispatched.
type BookingConfirmation struct {
	BookingID      string   `json:"booking_id"`
	PaymentID      string   `json:"payment_id"`
	OrderID        string   `json:"order_id"`
	BasePrice      MoneyDTO `json:"base_price"`
	DiscountAmount MoneyDTO `json:"discount_amount"`
	FinalAmount    MoneyDTO `json:"final_amount"`
	BookingStatus  string   `json:"booking_status"`
	PaymentStatus  string   `json:"payment_status"`
	PaymentMethod  string   `json:"payment_method"`
	RedirectURL    string   `json:"redirect_url,omitempty"`
	FailureKind    string   `json:"failure_kind,omitempty"`
	FailureMessage string   `json:"failure_message,omitempty"`
}

type PaymentView struct {
	ID                    string    `json:"id"`
	Method                string    `json:"method"`
	Amount                MoneyDTO  `json:"amount"`
	Status                string    `json:"status"`
	ExternalOrderID       string    `json:"external_order_id"`
	ExternalTransactionID string    `json:"external_transaction_id,omitempty"`
	UpdatedAt             time.Time `json:"updated_at"`
}

type BookingView struct {
	ID            string      `json:"id"`
	RoomID        string      `json:"room_id"`
	HotelID       string      `json:"hotel_id"`
	BookingType   string      `json:"booking_type"`
	CheckIn       time.Time   `json:"check_in"`
	CheckOut      time.Time   `json:"check_out"`
	DurationUnits int         `json:"duration_units,omitempty"`
	BasePrice     MoneyDTO    `json:"base_price"`
	Discount      MoneyDTO    `json:"discount_amount"`
	FinalPrice    MoneyDTO    `json:"final_price"`
	PromotionID   string      `json:"promotion_id,omitempty"`
	Status        string      `json:"status"`
	Payment       PaymentView `json:"payment"`
	CreatedAt     time.Time   `json:"created_at"`
}

func MapBooking(b *domainbooking.Booking, p *domainbooking.Payment) BookingView {
	view := BookingView{
		ID:            string(b.ID),
		RoomID:        string(b.RoomID),
		HotelID:       string(b.HotelID),
		BookingType:   string(b.Type),
		CheckIn:       b.Range.CheckIn,
		CheckOut:      b.Range.CheckOut,
		DurationUnits: b.DurationUnits,
		BasePrice:     MapMoney(b.BasePrice),
		Discount:      MapMoney(b.Discount),
		FinalPrice:    MapMoney(b.FinalPrice),
		PromotionID:   string(b.PromotionID),
		Status:        string(b.Status),
		CreatedAt:     b.CreatedAt,
	}
	if p != nil {
		view.Payment = PaymentView{
			ID:                    string(p.ID),
			Method:                string(p.Method),
			Amount:                MapMoney(p.Amount),
			Status:                string(p.Status),
			ExternalOrderID:       p.ExternalOrderID,
			ExternalTransactionID: p.ExternalTransactionID,
			UpdatedAt:             p.UpdatedAt,
		}
	}
	return view
}

type BookingCollection struct {
	Items []BookingView `json:"items"`
}

type PriceQuote struct {
	RoomID           string   `json:"room_id"`
	BookingType      string   `json:"booking_type"`
	DurationUnits    int      `json:"duration_units,omitempty"`
	BasePrice        MoneyDTO `json:"base_price"`
	DiscountAmount   MoneyDTO `json:"discount_amount"`
	FinalPrice       MoneyDTO `json:"final_price"`
	PromotionApplied bool     `json:"promotion_applied"`
}

func MapQuote(roomID string, kind pricing.BookingType, units int, q pricing.Quote) PriceQuote {
	return PriceQuote{
		RoomID:           roomID,
		BookingType:      string(kind),
		DurationUnits:    units,
		BasePrice:        MapMoney(q.Base),
		DiscountAmount:   MapMoney(q.Discount),
		FinalPrice:       MapMoney(q.Final),
		PromotionApplied: q.PromotionApplied,
	}
}

type Availability struct {
	RoomID    string    `json:"room_id"`
	CheckIn   time.Time `json:"check_in"`
	CheckOut  time.Time `json:"check_out"`
	Available bool      `json:"available"`
}
