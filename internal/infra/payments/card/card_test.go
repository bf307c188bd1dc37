package card

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"

	"hotelbooking/internal/app/policies"
	domainbooking "hotelbooking/internal/domain/booking"
	"hotelbooking/internal/domain/shared/money"
)

type fakeIntents struct {
	got    *stripe.PaymentIntentParams
	intent *stripe.PaymentIntent
	err    error
}

func (f *fakeIntents) New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	f.got = params
	return f.intent, f.err
}

func request() policies.DispatchRequest {
	return policies.DispatchRequest{
		BookingID:    "b-1",
		OrderID:      "BK_b-1_1",
		Method:       domainbooking.MethodCard,
		Amount:       money.Must(160000, "VND"),
		Description:  "Booking b-1",
		PaymentToken: "pm_card_visa",
	}
}

func TestDispatchConfirmsIntent(t *testing.T) {
	fake := &fakeIntents{intent: &stripe.PaymentIntent{ID: "pi_1", Status: stripe.PaymentIntentStatusSucceeded}}
	d := &Dispatcher{Intents: fake}

	res, err := d.Dispatch(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, domainbooking.OutcomeSucceeded, res.Outcome)
	assert.Equal(t, "pi_1", res.ExternalTransactionID)
	assert.Equal(t, int64(160000), *fake.got.Amount)
	assert.Equal(t, "vnd", *fake.got.Currency)
	assert.Equal(t, "BK_b-1_1", *fake.got.IdempotencyKey)
	assert.Equal(t, "b-1", fake.got.Metadata["booking_id"])
}

func TestDispatchCardDeclineIsFailedOutcome(t *testing.T) {
	fake := &fakeIntents{err: &stripe.Error{Type: stripe.ErrorTypeCard, Code: stripe.ErrorCodeCardDeclined, Msg: "Your card was declined."}}
	d := &Dispatcher{Intents: fake}

	res, err := d.Dispatch(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, domainbooking.OutcomeFailed, res.Outcome)
	assert.Equal(t, "Your card was declined.", res.Message)
}

func TestDispatchTransportErrorFails(t *testing.T) {
	d := &Dispatcher{Intents: &fakeIntents{err: &stripe.Error{Type: stripe.ErrorTypeAPI, Msg: "boom"}}}
	_, err := d.Dispatch(context.Background(), request())
	require.Error(t, err)

	req := request()
	req.PaymentToken = ""
	_, err = (&Dispatcher{Intents: &fakeIntents{}}).Dispatch(context.Background(), req)
	require.ErrorIs(t, err, ErrTokenRequired)
}

type fakeFinder struct {
	asked  []string
	intent *stripe.PaymentIntent
	err    error
}

func (f *fakeFinder) ByOrderID(_ context.Context, orderID string) (*stripe.PaymentIntent, error) {
	f.asked = append(f.asked, orderID)
	return f.intent, f.err
}

func TestDispatchPendingStatuses(t *testing.T) {
	cases := map[stripe.PaymentIntentStatus]domainbooking.Outcome{
		stripe.PaymentIntentStatusProcessing:            domainbooking.OutcomePending,
		stripe.PaymentIntentStatusRequiresCapture:       domainbooking.OutcomePending,
		stripe.PaymentIntentStatusRequiresAction:        domainbooking.OutcomeFailed,
		stripe.PaymentIntentStatusRequiresPaymentMethod: domainbooking.OutcomeFailed,
		stripe.PaymentIntentStatusCanceled:              domainbooking.OutcomeFailed,
	}
	for status, want := range cases {
		d := &Dispatcher{Intents: &fakeIntents{intent: &stripe.PaymentIntent{ID: "pi_1", Status: status}}}
		res, err := d.Dispatch(context.Background(), request())
		require.NoError(t, err)
		assert.Equal(t, want, res.Outcome, string(status))
	}
}

func TestQueryStatusFollowsIntent(t *testing.T) {
	finder := &fakeFinder{intent: &stripe.PaymentIntent{ID: "pi_1", Status: stripe.PaymentIntentStatusSucceeded, Amount: 160000}}
	d := &Dispatcher{Finder: finder}

	report, err := d.QueryStatus(context.Background(), "BK_b-1_1")
	require.NoError(t, err)
	assert.Equal(t, domainbooking.OutcomeSucceeded, report.Outcome)
	assert.Equal(t, "pi_1", report.ExternalTransactionID)
	assert.Equal(t, int64(160000), report.Amount)
	assert.Equal(t, []string{"BK_b-1_1"}, finder.asked)

	finder.intent.Status = stripe.PaymentIntentStatusCanceled
	report, err = d.QueryStatus(context.Background(), "BK_b-1_1")
	require.NoError(t, err)
	assert.Equal(t, domainbooking.OutcomeFailed, report.Outcome)
}

func TestQueryStatusUnknownIntentStaysPending(t *testing.T) {
	d := &Dispatcher{Finder: &fakeFinder{}}
	report, err := d.QueryStatus(context.Background(), "BK_b-1_1")
	require.NoError(t, err)
	assert.Equal(t, domainbooking.OutcomePending, report.Outcome)

	d = &Dispatcher{Finder: &fakeFinder{err: &stripe.Error{Type: stripe.ErrorTypeAPI, Msg: "boom"}}}
	_, err = d.QueryStatus(context.Background(), "BK_b-1_1")
	require.Error(t, err)

	_, err = (&Dispatcher{}).QueryStatus(context.Background(), "BK_b-1_1")
	require.ErrorIs(t, err, ErrNotConfigured)
}
