package policies

import (
	"context"

	domainbooking "hotelbooking/internal/domain/booking"
	"hotelbooking/internal/domain/shared/money"
)

// DispatchRequest describes one payment attempt for a freshly reserved booking.
type DispatchRequest struct {
	BookingID    domainbooking.BookingID
	PaymentID    domainbooking.PaymentID
	OrderID      string
	Method       domainbooking.PaymentMethod
	Amount       money.Money
	Description  string
	RequesterID  string
	PaymentToken string
}

// DispatchResult is what the provider answered. Pending means the final
// outcome arrives later through a callback or a status query.
type DispatchResult struct {
	Outcome               domainbooking.Outcome
	ExternalTransactionID string
	RequestID             string
	RedirectURL           string
	Message               string
}

// PaymentDispatcher sends a payment to one provider. An error means the
// request could not be placed at all; a declined payment is reported
// through DispatchResult.Outcome.
type PaymentDispatcher interface {
	Dispatch(ctx context.Context, req DispatchRequest) (DispatchResult, error)
}

// DispatcherRegistry selects the dispatcher for a payment method.
type DispatcherRegistry interface {
	Dispatcher(method domainbooking.PaymentMethod) (PaymentDispatcher, bool)
}
