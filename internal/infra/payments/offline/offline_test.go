package offline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hotelbooking/internal/app/policies"
	domainbooking "hotelbooking/internal/domain/booking"
)

func TestCashSucceeds(t *testing.T) {
	res, err := Cash{}.Dispatch(context.Background(), policies.DispatchRequest{OrderID: "BK_b-1_1"})
	require.NoError(t, err)
	assert.Equal(t, domainbooking.OutcomeSucceeded, res.Outcome)
	assert.Equal(t, "cash-BK_b-1_1", res.ExternalTransactionID)
}

func TestZaloPaySandbox(t *testing.T) {
	z := ZaloPaySandbox{NewTransactionID: func() string { return "1" }}
	res, err := z.Dispatch(context.Background(), policies.DispatchRequest{})
	require.NoError(t, err)
	assert.Equal(t, domainbooking.OutcomeSucceeded, res.Outcome)
	assert.Equal(t, "zp-1", res.ExternalTransactionID)

	res, err = z.Dispatch(context.Background(), policies.DispatchRequest{PaymentToken: DeclineToken})
	require.NoError(t, err)
	assert.Equal(t, domainbooking.OutcomeFailed, res.Outcome)
}
