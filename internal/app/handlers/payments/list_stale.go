package payments

import (
	"context"
	"time"

	"hotelbooking/internal/app/dto"
	"hotelbooking/internal/app/handlers/support"
	"hotelbooking/internal/app/queries"
	"hotelbooking/internal/app/uow"
)

const listStalePaymentsKey = "payments.list_stale"

// ListStalePaymentsQuery finds bookings still waiting for payment that were
// created before CreatedBefore.
type ListStalePaymentsQuery struct {
	CreatedBefore time.Time `validate:"required"`
	Limit         int       `validate:"gte=0"`
}

func (q ListStalePaymentsQuery) Key() string { return listStalePaymentsKey }

type ListStalePaymentsHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *ListStalePaymentsHandler) Handle(ctx context.Context, q ListStalePaymentsQuery) ([]dto.StalePayment, error) {
	unit, ctx, cleanup, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	pending, err := unit.Bookings().ListPendingPayment(ctx, q.CreatedBefore, limit)
	if err != nil {
		return nil, err
	}
	out := make([]dto.StalePayment, 0, len(pending))
	for _, b := range pending {
		p, err := unit.Payments().ByBookingID(ctx, b.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, dto.StalePayment{BookingID: string(b.ID), OrderID: p.ExternalOrderID, Method: string(p.Method)})
	}
	return out, nil
}

var _ queries.Handler[ListStalePaymentsQuery, []dto.StalePayment] = (*ListStalePaymentsHandler)(nil)
