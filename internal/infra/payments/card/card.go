// Package card charges cards synchronously through Stripe PaymentIntents.
package card

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/paymentintent"

	"hotelbooking/internal/app/policies"
	domainbooking "hotelbooking/internal/domain/booking"
)

var (
	ErrNotConfigured = errors.New("card: stripe not configured")
	ErrTokenRequired = errors.New("card: payment token required")
)

// IntentCreator is the slice of the Stripe PaymentIntents client the
// dispatcher needs.
type IntentCreator interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

// IntentFinder finds the intent created for an order id.
type IntentFinder interface {
	ByOrderID(ctx context.Context, orderID string) (*stripe.PaymentIntent, error)
}

type Dispatcher struct {
	Intents IntentCreator
	Finder  IntentFinder
	Logger  *slog.Logger
}

func New(secretKey string, logger *slog.Logger) (*Dispatcher, error) {
	if strings.TrimSpace(secretKey) == "" {
		return nil, ErrNotConfigured
	}
	api := client.New(secretKey, nil)
	return &Dispatcher{
		Intents: api.PaymentIntents,
		Finder:  searchFinder{intents: api.PaymentIntents},
		Logger:  logger,
	}, nil
}

// searchFinder uses the search API on the order_id metadata written by
// Dispatch. Search results lag writes by up to a minute.
type searchFinder struct {
	intents *paymentintent.Client
}

func (f searchFinder) ByOrderID(ctx context.Context, orderID string) (*stripe.PaymentIntent, error) {
	params := &stripe.PaymentIntentSearchParams{}
	params.Context = ctx
	params.Query = fmt.Sprintf("metadata['order_id']:'%s'", strings.ReplaceAll(orderID, "'", ""))
	params.Limit = stripe.Int64(1)
	iter := f.intents.Search(params)
	if iter.Next() {
		return iter.PaymentIntent(), nil
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return nil, nil
}

// Dispatch creates and confirms a PaymentIntent in one call. Card declines
// are a failed outcome, not an error.
func (d *Dispatcher) Dispatch(ctx context.Context, req policies.DispatchRequest) (policies.DispatchResult, error) {
	if d.Intents == nil {
		return policies.DispatchResult{}, ErrNotConfigured
	}
	if req.PaymentToken == "" {
		return policies.DispatchResult{}, ErrTokenRequired
	}
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(req.Amount.Amount),
		Currency:      stripe.String(strings.ToLower(req.Amount.Currency)),
		PaymentMethod: stripe.String(req.PaymentToken),
		Confirm:       stripe.Bool(true),
		Description:   stripe.String(req.Description),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String("never"),
		},
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.OrderID)
	params.AddMetadata("booking_id", string(req.BookingID))
	params.AddMetadata("order_id", req.OrderID)

	intent, err := d.Intents.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Type == stripe.ErrorTypeCard {
			d.logger().Info("card declined", "booking_id", req.BookingID, "code", stripeErr.Code)
			return policies.DispatchResult{Outcome: domainbooking.OutcomeFailed, Message: stripeErr.Msg}, nil
		}
		return policies.DispatchResult{}, fmt.Errorf("card: create payment intent: %w", err)
	}
	return policies.DispatchResult{
		Outcome:               outcomeFor(intent.Status),
		ExternalTransactionID: intent.ID,
		Message:               string(intent.Status),
	}, nil
}

// QueryStatus reports the intent's current state. An intent not found yet
// is still pending.
func (d *Dispatcher) QueryStatus(ctx context.Context, orderID string) (policies.StatusReport, error) {
	if d.Finder == nil {
		return policies.StatusReport{}, ErrNotConfigured
	}
	intent, err := d.Finder.ByOrderID(ctx, orderID)
	if err != nil {
		return policies.StatusReport{}, fmt.Errorf("card: find payment intent: %w", err)
	}
	if intent == nil {
		return policies.StatusReport{Outcome: domainbooking.OutcomePending, Message: "payment intent not found yet"}, nil
	}
	return policies.StatusReport{
		Outcome:               outcomeFor(intent.Status),
		ExternalTransactionID: intent.ID,
		Amount:                intent.Amount,
		Message:               string(intent.Status),
	}, nil
}

// outcomeFor treats requires_action as failed: intents are confirmed with
// redirects disabled and no customer step can complete them.
func outcomeFor(status stripe.PaymentIntentStatus) domainbooking.Outcome {
	switch status {
	case stripe.PaymentIntentStatusSucceeded:
		return domainbooking.OutcomeSucceeded
	case stripe.PaymentIntentStatusProcessing, stripe.PaymentIntentStatusRequiresCapture:
		return domainbooking.OutcomePending
	default:
		return domainbooking.OutcomeFailed
	}
}

func (d *Dispatcher) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

var (
	_ policies.PaymentDispatcher = (*Dispatcher)(nil)
	_ policies.StatusChecker     = (*Dispatcher)(nil)
)
