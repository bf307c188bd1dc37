package policies

import (
	"context"
	"fmt"
	"time"

	domainbooking "hotelbooking/internal/domain/booking"
)

// CallbackNotice is a provider callback whose signature has been verified.
type CallbackNotice struct {
	Provider              string
	OrderID               string
	RequestID             string
	BookingID             domainbooking.BookingID
	Amount                int64
	Outcome               domainbooking.Outcome
	ResultCode            int
	ExternalTransactionID string
	Message               string
}

// CallbackVerifier authenticates a raw callback body. A forged or altered
// body yields an error matching domainbooking.ErrSignatureInvalid.
type CallbackVerifier interface {
	VerifyCallback(ctx context.Context, body []byte) (CallbackNotice, error)
}

// StatusReport is the provider's answer to an on-demand status query.
type StatusReport struct {
	Outcome               domainbooking.Outcome
	ExternalTransactionID string
	ResultCode            int
	Amount                int64
	Message               string
}

type StatusChecker interface {
	QueryStatus(ctx context.Context, orderID string) (StatusReport, error)
}

// GatewayRegistry resolves the callback and status capabilities of
// asynchronous providers.
type GatewayRegistry interface {
	Verifier(provider string) (CallbackVerifier, bool)
	StatusChecker(method domainbooking.PaymentMethod) (StatusChecker, bool)
}

// CallbackDelivery is the audit trail entry of one callback delivery.
type CallbackDelivery struct {
	Provider   string
	OrderID    string
	RequestID  string
	ResultCode int
	Body       []byte
	ReceivedAt time.Time
}

// CallbackInbox remembers deliveries so redeliveries can be told apart.
type CallbackInbox interface {
	Record(ctx context.Context, delivery CallbackDelivery) (duplicate bool, err error)
}

// DeliveryKey identifies a delivery independently of redelivery timing.
func DeliveryKey(d CallbackDelivery) string {
	return fmt.Sprintf("%s:%s:%s:%d", d.Provider, d.OrderID, d.RequestID, d.ResultCode)
}
