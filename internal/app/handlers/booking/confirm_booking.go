package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"hotelbooking/internal/app/commands"
	"hotelbooking/internal/app/dto"
	"hotelbooking/internal/app/handlers/support"
	"hotelbooking/internal/app/middleware"
	"hotelbooking/internal/app/outbox"
	"hotelbooking/internal/app/policies"
	"hotelbooking/internal/app/schedule"
	"hotelbooking/internal/app/settlement"
	"hotelbooking/internal/app/uow"
	domainavailability "hotelbooking/internal/domain/availability"
	domainbooking "hotelbooking/internal/domain/booking"
	domainpricing "hotelbooking/internal/domain/pricing"
	domainrooms "hotelbooking/internal/domain/rooms"
	"hotelbooking/internal/domain/shared/daterange"
	"hotelbooking/internal/domain/shared/money"
)

const confirmBookingKey = "booking.confirm"

// DefaultPriceTolerance is the absolute gap, in minor units, allowed between
// the declared and the computed total.
const DefaultPriceTolerance int64 = 1000

type ConfirmBookingCommand struct {
	RoomID          string    `validate:"required"`
	HotelID         string    `validate:"required"`
	RequesterID     string    `validate:"required"`
	CheckIn         time.Time `validate:"required"`
	CheckOut        time.Time `validate:"required"`
	BookingType     string    `validate:"required"`
	Duration        int       `validate:"gte=0"`
	PaymentMethod   string    `validate:"required"`
	ClientTotal     int64     `validate:"gte=0"`
	PromotionID     string
	PaymentToken    string
	IdempotencyKeyV string
}

func (c ConfirmBookingCommand) Key() string { return confirmBookingKey }

func (c ConfirmBookingCommand) IdempotencyKey() string {
	if c.IdempotencyKeyV == "" {
		return ""
	}
	return c.RequesterID + ":" + c.IdempotencyKeyV
}

func (c ConfirmBookingCommand) ResultPrototype() any { return &dto.BookingConfirmation{} }

// The handler commits the reservation itself and dispatches the payment
// after the commit.
func (c ConfirmBookingCommand) SelfManagedTransaction() bool { return true }

func (c ConfirmBookingCommand) Requester() string { return c.RequesterID }

type ConfirmBookingHandler struct {
	UoWFactory     uow.UoWFactory
	Dispatchers    policies.DispatcherRegistry
	Locker         policies.RoomLocker
	Scheduler      schedule.Scheduler
	Outbox         outbox.Outbox
	Encoder        outbox.EventEncoder
	Logger         *slog.Logger
	Tolerance      int64
	ReconcileAfter time.Duration
	Now            func() time.Time
	NewID          func() string
}

type stayRequest struct {
	roomID  domainrooms.RoomID
	hotelID domainrooms.HotelID
	kind    domainpricing.BookingType
	method  domainbooking.PaymentMethod
	stay    daterange.DateRange
	units   int
}

type reservation struct {
	booking *domainbooking.Booking
	payment *domainbooking.Payment
}

func (h *ConfirmBookingHandler) Handle(ctx context.Context, cmd ConfirmBookingCommand) (*dto.BookingConfirmation, error) {
	now := h.now()
	req, err := parseStayRequest(cmd, now)
	if err != nil {
		return nil, err
	}
	if h.Dispatchers == nil {
		return nil, errors.New("booking: payment dispatchers not configured")
	}
	dispatcher, ok := h.Dispatchers.Dispatcher(req.method)
	if !ok {
		return nil, domainbooking.Reject(domainbooking.KindInvalidRequest, "payment method %s is not available", req.method)
	}

	res, err := h.reserveLocked(ctx, cmd, req, now)
	if err != nil {
		return nil, err
	}
	h.logger().Info("booking reserved",
		"booking_id", res.booking.ID,
		"room_id", res.booking.RoomID,
		"order_id", res.payment.ExternalOrderID,
		"final_price", res.booking.FinalPrice.Amount,
	)

	return h.dispatch(ctx, dispatcher, cmd, res), nil
}

// reserveLocked holds the per-room lock only for the reservation itself. The
// lock is released before the provider is called.
func (h *ConfirmBookingHandler) reserveLocked(ctx context.Context, cmd ConfirmBookingCommand, req stayRequest, now time.Time) (reservation, error) {
	if h.Locker != nil {
		release, err := h.Locker.LockRoom(ctx, req.roomID)
		if err != nil {
			return reservation{}, domainbooking.RejectWith(domainbooking.KindConflict, err, "room is being booked by another request, retry shortly")
		}
		defer release()
	}

	var res reservation
	err := support.RetryOnConflict(ctx, func(ctx context.Context) error {
		var rerr error
		res, rerr = h.reserve(ctx, cmd, req, now)
		return rerr
	})
	if errors.Is(err, uow.ErrConflict) {
		return reservation{}, domainbooking.RejectWith(domainbooking.KindConflict, err, "reservation lost a concurrent update, retry")
	}
	return res, err
}

func parseStayRequest(cmd ConfirmBookingCommand, now time.Time) (stayRequest, error) {
	if cmd.RoomID == "" || cmd.HotelID == "" || cmd.RequesterID == "" {
		return stayRequest{}, domainbooking.Reject(domainbooking.KindInvalidRequest, "room, hotel and requester are required")
	}
	kind, err := domainpricing.ParseBookingType(cmd.BookingType)
	if err != nil {
		return stayRequest{}, domainbooking.RejectWith(domainbooking.KindInvalidRequest, err, err.Error())
	}
	method, err := domainbooking.ParsePaymentMethod(cmd.PaymentMethod)
	if err != nil {
		return stayRequest{}, domainbooking.RejectWith(domainbooking.KindInvalidRequest, err, err.Error())
	}
	stay, err := daterange.New(cmd.CheckIn, cmd.CheckOut)
	if err != nil {
		return stayRequest{}, domainbooking.RejectWith(domainbooking.KindInvalidRequest, err, err.Error())
	}
	if err := domainbooking.ValidateStay(stay, now); err != nil {
		return stayRequest{}, domainbooking.RejectWith(domainbooking.KindInvalidRequest, err, err.Error())
	}
	if cmd.ClientTotal < 0 || cmd.Duration < 0 {
		return stayRequest{}, domainbooking.Reject(domainbooking.KindInvalidRequest, "totals and durations cannot be negative")
	}
	units := 0
	if kind == domainpricing.BookingTypeHourly {
		units = stay.BillableHours()
		if cmd.Duration != 0 && cmd.Duration != units {
			return stayRequest{}, domainbooking.Reject(domainbooking.KindInvalidRequest, "duration %d does not match the %d hour stay", cmd.Duration, units)
		}
	}
	return stayRequest{
		roomID:  domainrooms.RoomID(cmd.RoomID),
		hotelID: domainrooms.HotelID(cmd.HotelID),
		kind:    kind,
		method:  method,
		stay:    stay,
		units:   units,
	}, nil
}

// reserve runs the check-then-insert critical section in one unit of work.
// Nothing is written unless every check passes.
func (h *ConfirmBookingHandler) reserve(ctx context.Context, cmd ConfirmBookingCommand, req stayRequest, now time.Time) (reservation, error) {
	var res reservation
	err := support.InUnit(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		room, err := unit.Rooms().ByID(ctx, req.roomID)
		if errors.Is(err, domainrooms.ErrRoomNotFound) {
			return domainbooking.Reject(domainbooking.KindRoomNotFound, "room %s not found", req.roomID)
		}
		if err != nil {
			return err
		}
		if room.HotelID != req.hotelID {
			return domainbooking.Reject(domainbooking.KindInvalidRequest, "room %s does not belong to hotel %s", req.roomID, req.hotelID)
		}
		tier, err := room.CurrentTier()
		if err != nil {
			return domainbooking.RejectWith(domainbooking.KindPriceNotConfigured, err, fmt.Sprintf("room %s has no price tier", room.ID))
		}

		err = domainavailability.Reserve(ctx, unit.Bookings(), room.ID, req.stay)
		if errors.Is(err, domainavailability.ErrOverlappingRange) {
			return domainbooking.Reject(domainbooking.KindRoomUnavailable, "room %s is already booked for the requested time", room.ID)
		}
		if errors.Is(err, domainrooms.ErrRoomNotFound) {
			return domainbooking.Reject(domainbooking.KindRoomNotFound, "room %s not found", req.roomID)
		}
		if err != nil {
			return err
		}

		promo, err := h.loadPromotion(ctx, unit, cmd.PromotionID)
		if err != nil {
			return err
		}
		quote, err := domainpricing.Price(tier, req.kind, req.units, string(room.HotelID), promo, now)
		if err != nil {
			return domainbooking.RejectWith(domainbooking.KindInvalidRequest, err, err.Error())
		}
		if cmd.PromotionID != "" && !quote.PromotionApplied {
			h.logger().Info("promotion ignored", "promotion_id", cmd.PromotionID, "room_id", room.ID)
		}

		declared := money.Money{Amount: cmd.ClientTotal, Currency: quote.Final.Currency}
		gap, err := quote.Final.Distance(declared)
		if err != nil {
			return err
		}
		if gap > h.tolerance() {
			return domainbooking.PriceMismatch(declared, quote.Final)
		}

		b, err := domainbooking.NewBooking(domainbooking.CreateParams{
			ID:            domainbooking.BookingID(h.newID()),
			Room:          room,
			RequesterID:   cmd.RequesterID,
			Type:          req.kind,
			Range:         req.stay,
			DurationUnits: req.units,
			Quote:         quote,
			CreatedAt:     now,
		})
		if err != nil {
			return domainbooking.RejectWith(domainbooking.KindInvalidRequest, err, err.Error())
		}
		p := domainbooking.NewPayment(domainbooking.PaymentID(h.newID()), b, req.method, now)
		if err := unit.Bookings().Create(ctx, b); err != nil {
			return err
		}
		if err := unit.Payments().Create(ctx, p); err != nil {
			return err
		}
		if err := outbox.RecordDomainEvents(ctx, h.Outbox, h.encoder(), b.Drain()); err != nil {
			return err
		}
		res = reservation{booking: b, payment: p}
		return nil
	})
	return res, err
}

func (h *ConfirmBookingHandler) loadPromotion(ctx context.Context, unit uow.UnitOfWork, id string) (*domainpricing.Promotion, error) {
	if id == "" {
		return nil, nil
	}
	promo, err := unit.Promotions().ByID(ctx, domainpricing.PromotionID(id))
	if errors.Is(err, domainpricing.ErrPromotionNotFound) {
		return nil, nil
	}
	return promo, err
}

// dispatch hands the committed booking to its payment provider. The
// reservation stands whatever the provider answers.
func (h *ConfirmBookingHandler) dispatch(ctx context.Context, dispatcher policies.PaymentDispatcher, cmd ConfirmBookingCommand, res reservation) *dto.BookingConfirmation {
	b, p := res.booking, res.payment
	out := &dto.BookingConfirmation{
		BookingID:      string(b.ID),
		PaymentID:      string(p.ID),
		OrderID:        p.ExternalOrderID,
		BasePrice:      dto.MapMoney(b.BasePrice),
		DiscountAmount: dto.MapMoney(b.Discount),
		FinalAmount:    dto.MapMoney(b.FinalPrice),
		BookingStatus:  string(b.Status),
		PaymentStatus:  string(p.Status),
		PaymentMethod:  string(p.Method),
	}
	logger := h.logger().With("booking_id", b.ID, "order_id", p.ExternalOrderID, "method", p.Method)

	result, err := dispatcher.Dispatch(ctx, policies.DispatchRequest{
		BookingID:    b.ID,
		PaymentID:    p.ID,
		OrderID:      p.ExternalOrderID,
		Method:       p.Method,
		Amount:       p.Amount,
		Description:  fmt.Sprintf("Booking %s room %s", b.ID, b.RoomID),
		RequesterID:  cmd.RequesterID,
		PaymentToken: cmd.PaymentToken,
	})
	if err != nil {
		logger.Error("payment dispatch failed", "error", err)
		out.FailureKind = string(domainbooking.KindGatewayDispatchFailed)
		out.FailureMessage = err.Error()
		h.settle(ctx, logger, out, b.ID, domainbooking.OutcomeFailed, "")
		return out
	}
	out.RedirectURL = result.RedirectURL

	switch result.Outcome {
	case domainbooking.OutcomeSucceeded, domainbooking.OutcomeFailed:
		h.settle(ctx, logger, out, b.ID, result.Outcome, result.ExternalTransactionID)
	default:
		h.scheduleReconcile(ctx, logger, b.ID)
	}
	return out
}

func (h *ConfirmBookingHandler) settle(ctx context.Context, logger *slog.Logger, out *dto.BookingConfirmation, id domainbooking.BookingID, outcome domainbooking.Outcome, txnID string) {
	settler := settlement.Settler{Outbox: h.Outbox, Encoder: h.Encoder}
	err := support.RetryOnConflict(ctx, func(ctx context.Context) error {
		return support.InUnit(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
			res, err := settler.Apply(ctx, unit, settlement.Request{
				BookingID:             id,
				Outcome:               outcome,
				ExternalTransactionID: txnID,
				At:                    h.now(),
			})
			if err != nil {
				return err
			}
			out.BookingStatus = string(res.Booking.Status)
			out.PaymentStatus = string(res.Payment.Status)
			return nil
		})
	})
	if err != nil {
		// booking stays PendingPayment; the reconciliation sweep picks it up
		logger.Error("settle payment outcome", "outcome", outcome, "error", err)
	}
}

func (h *ConfirmBookingHandler) scheduleReconcile(ctx context.Context, logger *slog.Logger, id domainbooking.BookingID) {
	if h.Scheduler == nil || h.ReconcileAfter <= 0 {
		return
	}
	runAt := h.now().Add(h.ReconcileAfter)
	payload := schedule.ReconcilePaymentPayload{BookingID: string(id)}
	if err := h.Scheduler.Schedule(ctx, schedule.TaskReconcilePayment, payload, runAt); err != nil {
		logger.Warn("schedule payment reconcile", "error", err)
	}
}

func (h *ConfirmBookingHandler) tolerance() int64 {
	if h.Tolerance > 0 {
		return h.Tolerance
	}
	return DefaultPriceTolerance
}

func (h *ConfirmBookingHandler) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

func (h *ConfirmBookingHandler) newID() string {
	if h.NewID != nil {
		return h.NewID()
	}
	return uuid.NewString()
}

func (h *ConfirmBookingHandler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func (h *ConfirmBookingHandler) encoder() outbox.EventEncoder {
	if h.Encoder != nil {
		return h.Encoder
	}
	return outbox.JSONEventEncoder{}
}

var _ commands.Handler[ConfirmBookingCommand, *dto.BookingConfirmation] = (*ConfirmBookingHandler)(nil)
var _ middleware.IdempotentCommand = (*ConfirmBookingCommand)(nil)
var _ middleware.SelfManagedCommand = ConfirmBookingCommand{}
