package booking

import (
	"errors"
	"fmt"

	"hotelbooking/internal/domain/shared/money"
)

type RejectionKind string

const (
	KindInvalidRequest        RejectionKind = "InvalidRequest"
	KindRoomNotFound          RejectionKind = "RoomNotFound"
	KindPriceNotConfigured    RejectionKind = "PriceNotConfigured"
	KindRoomUnavailable       RejectionKind = "RoomUnavailable"
	KindConflict              RejectionKind = "Conflict"
	KindPriceMismatch         RejectionKind = "PriceMismatch"
	KindGatewayDispatchFailed RejectionKind = "GatewayDispatchFailed"
	KindSignatureInvalid      RejectionKind = "SignatureInvalid"
)

var (
	ErrInvalidRequest        = errors.New("booking: invalid request")
	ErrRoomNotFound          = errors.New("booking: room not found")
	ErrPriceNotConfigured    = errors.New("booking: price not configured")
	ErrRoomUnavailable       = errors.New("booking: room unavailable")
	ErrConflict              = errors.New("booking: concurrent update conflict")
	ErrPriceMismatch         = errors.New("booking: price mismatch")
	ErrGatewayDispatchFailed = errors.New("booking: payment dispatch failed")
	ErrSignatureInvalid      = errors.New("booking: callback signature invalid")
)

var kindSentinels = map[RejectionKind]error{
	KindInvalidRequest:        ErrInvalidRequest,
	KindRoomNotFound:          ErrRoomNotFound,
	KindPriceNotConfigured:    ErrPriceNotConfigured,
	KindRoomUnavailable:       ErrRoomUnavailable,
	KindConflict:              ErrConflict,
	KindPriceMismatch:         ErrPriceMismatch,
	KindGatewayDispatchFailed: ErrGatewayDispatchFailed,
	KindSignatureInvalid:      ErrSignatureInvalid,
}

// Rejection is the structured refusal returned to callers. It matches the
// sentinel of its kind with errors.Is.
type Rejection struct {
	Kind        RejectionKind
	Message     string
	ClientTotal *money.Money
	ServerTotal *money.Money
	BookingID   BookingID
	Cause       error
}

func Reject(kind RejectionKind, format string, args ...any) *Rejection {
	return &Rejection{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// RejectWith keeps cause reachable through errors.Unwrap.
func RejectWith(kind RejectionKind, cause error, message string) *Rejection {
	return &Rejection{Kind: kind, Message: message, Cause: cause}
}

func PriceMismatch(client, server money.Money) *Rejection {
	return &Rejection{
		Kind:        KindPriceMismatch,
		Message:     fmt.Sprintf("declared total %d does not match computed total %d %s", client.Amount, server.Amount, server.Currency),
		ClientTotal: &client,
		ServerTotal: &server,
	}
}

func (r *Rejection) Error() string {
	if r.Message == "" {
		return string(r.Kind)
	}
	return string(r.Kind) + ": " + r.Message
}

func (r *Rejection) Is(target error) bool {
	sentinel, ok := kindSentinels[r.Kind]
	return ok && sentinel == target
}

func (r *Rejection) Unwrap() error {
	return r.Cause
}

// AsRejection extracts a Rejection from an error chain.
func AsRejection(err error) (*Rejection, bool) {
	var rej *Rejection
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}
