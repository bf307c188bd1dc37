package booking

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"hotelbooking/internal/domain/shared/money"
)

type PaymentID string

type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "UNPAID"
	PaymentPaid   PaymentStatus = "PAID"
	PaymentFailed PaymentStatus = "FAILED"
)

type PaymentMethod string

const (
	MethodMomo    PaymentMethod = "MOMO"
	MethodZaloPay PaymentMethod = "ZALOPAY"
	MethodCard    PaymentMethod = "CARD"
	MethodCash    PaymentMethod = "CASH"
)

func ParsePaymentMethod(raw string) (PaymentMethod, error) {
	m := PaymentMethod(strings.ToUpper(strings.TrimSpace(raw)))
	switch m {
	case MethodMomo, MethodZaloPay, MethodCard, MethodCash:
		return m, nil
	}
	return "", fmt.Errorf("booking: unsupported payment method %q", raw)
}

// Outcome is what a gateway reports for a payment attempt.
type Outcome string

const (
	OutcomeSucceeded Outcome = "SUCCEEDED"
	OutcomeFailed    Outcome = "FAILED"
	OutcomePending   Outcome = "PENDING"
)

type Payment struct {
	ID                    PaymentID
	BookingID             BookingID
	Method                PaymentMethod
	Amount                money.Money
	Status                PaymentStatus
	ExternalTransactionID string
	ExternalOrderID       string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

func NewPayment(id PaymentID, b *Booking, method PaymentMethod, now time.Time) *Payment {
	now = now.UTC()
	return &Payment{
		ID:              id,
		BookingID:       b.ID,
		Method:          method,
		Amount:          b.FinalPrice,
		Status:          PaymentUnpaid,
		ExternalOrderID: NewOrderID(b.ID, now),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

type PaymentRepository interface {
	ByBookingID(ctx context.Context, id BookingID) (*Payment, error)
	Create(ctx context.Context, payment *Payment) error
	// TransitionStatus is conditional on from, like Repository.TransitionStatus.
	// A non-empty externalTxnID is stored with the new status.
	TransitionStatus(ctx context.Context, id PaymentID, from, to PaymentStatus, externalTxnID string, at time.Time) (bool, error)
}

const orderIDPrefix = "BK_"

var orderIDPattern = regexp.MustCompile(`^BK_(.+)_(\d+)$`)

// NewOrderID builds the gateway order id BK_<bookingID>_<unix millis>.
func NewOrderID(id BookingID, at time.Time) string {
	return fmt.Sprintf("%s%s_%d", orderIDPrefix, id, at.UnixMilli())
}

// BookingIDFromOrderID recovers the booking id embedded by NewOrderID.
func BookingIDFromOrderID(orderID string) (BookingID, bool) {
	m := orderIDPattern.FindStringSubmatch(orderID)
	if m == nil {
		return "", false
	}
	return BookingID(m[1]), true
}
