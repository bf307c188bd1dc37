// Package offline holds dispatchers that settle without a remote call:
// cash at the venue and the ZaloPay sandbox.
package offline

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"hotelbooking/internal/app/policies"
	domainbooking "hotelbooking/internal/domain/booking"
)

// Cash accepts the booking immediately; the guest pays at the front desk.
type Cash struct{}

func (Cash) Dispatch(ctx context.Context, req policies.DispatchRequest) (policies.DispatchResult, error) {
	return policies.DispatchResult{
		Outcome:               domainbooking.OutcomeSucceeded,
		ExternalTransactionID: "cash-" + req.OrderID,
		Message:               "pay at venue",
	}, nil
}

// DeclineToken makes the sandbox decline the payment.
const DeclineToken = "sandbox-decline"

// ZaloPaySandbox simulates the wallet synchronously. A payment token of
// DeclineToken is declined, everything else succeeds.
type ZaloPaySandbox struct {
	NewTransactionID func() string
}

func (z ZaloPaySandbox) Dispatch(ctx context.Context, req policies.DispatchRequest) (policies.DispatchResult, error) {
	if err := ctx.Err(); err != nil {
		return policies.DispatchResult{}, err
	}
	if strings.EqualFold(req.PaymentToken, DeclineToken) {
		return policies.DispatchResult{Outcome: domainbooking.OutcomeFailed, Message: "declined by sandbox"}, nil
	}
	id := uuid.NewString()
	if z.NewTransactionID != nil {
		id = z.NewTransactionID()
	}
	return policies.DispatchResult{
		Outcome:               domainbooking.OutcomeSucceeded,
		ExternalTransactionID: "zp-" + id,
		Message:               "approved by sandbox",
	}, nil
}

var (
	_ policies.PaymentDispatcher = Cash{}
	_ policies.PaymentDispatcher = ZaloPaySandbox{}
)
