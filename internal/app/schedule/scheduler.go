package schedule

import (
	"context"
	"time"
)

// TaskReconcilePayment re-queries the gateway for a booking still waiting
// on its callback.
const TaskReconcilePayment = "payment:reconcile"

type ReconcilePaymentPayload struct {
	BookingID string `json:"booking_id"`
}

type Scheduler interface {
	Schedule(ctx context.Context, name string, payload any, runAt time.Time) error
}
