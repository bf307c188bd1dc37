package payments

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"hotelbooking/internal/app/commands"
	"hotelbooking/internal/app/dto"
	"hotelbooking/internal/app/handlers/support"
	"hotelbooking/internal/app/middleware"
	"hotelbooking/internal/app/outbox"
	"hotelbooking/internal/app/policies"
	"hotelbooking/internal/app/settlement"
	"hotelbooking/internal/app/uow"
	domainbooking "hotelbooking/internal/domain/booking"
)

const gatewayCallbackKey = "payments.gateway_callback"

// GatewayCallbackCommand carries a raw provider notification. Body is
// verified before any field is trusted.
type GatewayCallbackCommand struct {
	Provider string `validate:"required"`
	Body     []byte `validate:"required"`
}

func (c GatewayCallbackCommand) Key() string { return gatewayCallbackKey }

// SelfManagedTransaction lets the handler retry its settlement unit when a
// concurrent delivery of the same notification wins the first attempt.
func (c GatewayCallbackCommand) SelfManagedTransaction() bool { return true }

type GatewayCallbackHandler struct {
	UoWFactory uow.UoWFactory
	Gateways   policies.GatewayRegistry
	Inbox      policies.CallbackInbox
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Logger     *slog.Logger
	Now        func() time.Time
}

// Handle returns a SignatureInvalid rejection for forged bodies and an
// acknowledgement for everything else that verified, including callbacks
// for unknown bookings and redeliveries.
func (h *GatewayCallbackHandler) Handle(ctx context.Context, cmd GatewayCallbackCommand) (dto.CallbackAck, error) {
	logger := h.logger().With("provider", cmd.Provider)
	if h.Gateways == nil {
		return dto.CallbackAck{}, errors.New("payments: gateways not configured")
	}
	verifier, ok := h.Gateways.Verifier(cmd.Provider)
	if !ok {
		return dto.CallbackAck{}, domainbooking.Reject(domainbooking.KindInvalidRequest, "unknown payment provider %q", cmd.Provider)
	}
	notice, err := verifier.VerifyCallback(ctx, cmd.Body)
	if errors.Is(err, domainbooking.ErrSignatureInvalid) {
		logger.Warn("gateway callback rejected", "security", true, "reason", "signature mismatch", "error", err)
		return dto.CallbackAck{}, domainbooking.RejectWith(domainbooking.KindSignatureInvalid, err, "callback signature does not match")
	}
	if err != nil {
		logger.Warn("gateway callback unreadable", "error", err)
		return dto.CallbackAck{}, domainbooking.RejectWith(domainbooking.KindInvalidRequest, err, "callback body is malformed")
	}
	logger = logger.With("order_id", notice.OrderID, "booking_id", notice.BookingID, "result_code", notice.ResultCode)
	h.audit(ctx, logger, cmd, notice)

	if notice.BookingID == "" {
		logger.Warn("gateway callback without recoverable booking id")
		return dto.CallbackAck{Reason: "booking id not recoverable"}, nil
	}
	if notice.Outcome == domainbooking.OutcomePending {
		return dto.CallbackAck{BookingID: string(notice.BookingID), Reason: "payment still pending"}, nil
	}

	var ack dto.CallbackAck
	settler := settlement.Settler{Outbox: h.Outbox, Encoder: h.Encoder}
	settle := func(ctx context.Context, unit uow.UnitOfWork) error {
		amount := notice.Amount
		res, err := settler.Apply(ctx, unit, settlement.Request{
			BookingID:             notice.BookingID,
			Outcome:               notice.Outcome,
			ExternalTransactionID: notice.ExternalTransactionID,
			Amount:                &amount,
			At:                    h.now(),
		})
		if err != nil {
			return err
		}
		ack = dto.CallbackAck{
			BookingID:     string(notice.BookingID),
			Applied:       res.Applied,
			BookingStatus: string(res.Booking.Status),
		}
		switch {
		case res.AmountMismatch:
			ack.Reason = "amount does not match payment"
			logger.Warn("gateway callback amount mismatch", "security", true, "amount", notice.Amount, "expected", res.Payment.Amount.Amount)
		case !res.Applied:
			ack.Reason = "already settled"
			logger.Info("gateway callback redelivered", "status", res.Booking.Status)
		default:
			logger.Info("payment settled", "status", res.Booking.Status, "transaction_id", notice.ExternalTransactionID)
		}
		return nil
	}
	err = support.RetryOnConflict(ctx, func(ctx context.Context) error {
		return support.InUnit(ctx, h.UoWFactory, settle)
	})
	if errors.Is(err, domainbooking.ErrBookingNotFound) {
		logger.Warn("gateway callback for unknown booking")
		return dto.CallbackAck{BookingID: string(notice.BookingID), Reason: "booking not found"}, nil
	}
	if err != nil {
		return dto.CallbackAck{}, err
	}
	return ack, nil
}

func (h *GatewayCallbackHandler) audit(ctx context.Context, logger *slog.Logger, cmd GatewayCallbackCommand, notice policies.CallbackNotice) {
	if h.Inbox == nil {
		return
	}
	duplicate, err := h.Inbox.Record(ctx, policies.CallbackDelivery{
		Provider:   cmd.Provider,
		OrderID:    notice.OrderID,
		RequestID:  notice.RequestID,
		ResultCode: notice.ResultCode,
		Body:       cmd.Body,
		ReceivedAt: h.now(),
	})
	if err != nil {
		logger.Warn("record callback delivery", "error", err)
		return
	}
	if duplicate {
		logger.Info("gateway callback seen before")
	}
}

func (h *GatewayCallbackHandler) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

func (h *GatewayCallbackHandler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

var (
	_ commands.Handler[GatewayCallbackCommand, dto.CallbackAck] = (*GatewayCallbackHandler)(nil)
	_ middleware.SelfManagedCommand                              = GatewayCallbackCommand{}
)
