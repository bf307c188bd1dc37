package ginserver

import (
	"errors"
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"hotelbooking/internal/app/dto"
	paymentsapp "hotelbooking/internal/app/handlers/payments"
	"hotelbooking/internal/app/middleware"
	"hotelbooking/internal/app/uow"
	domainbooking "hotelbooking/internal/domain/booking"
	"hotelbooking/internal/infra/security"
)

var rejectionStatus = map[domainbooking.RejectionKind]int{
	domainbooking.KindInvalidRequest:        http.StatusBadRequest,
	domainbooking.KindRoomNotFound:          http.StatusNotFound,
	domainbooking.KindPriceNotConfigured:    http.StatusUnprocessableEntity,
	domainbooking.KindRoomUnavailable:       http.StatusConflict,
	domainbooking.KindConflict:              http.StatusConflict,
	domainbooking.KindPriceMismatch:         http.StatusConflict,
	domainbooking.KindGatewayDispatchFailed: http.StatusBadGateway,
	domainbooking.KindSignatureInvalid:      http.StatusBadRequest,
}

type errorBody struct {
	Error       string        `json:"error"`
	Kind        string        `json:"kind,omitempty"`
	BookingID   string        `json:"booking_id,omitempty"`
	ClientTotal *dto.MoneyDTO `json:"client_total,omitempty"`
	ServerTotal *dto.MoneyDTO `json:"server_total,omitempty"`
}

func statusFor(err error) int {
	if rej, ok := domainbooking.AsRejection(err); ok {
		if status, ok := rejectionStatus[rej.Kind]; ok {
			return status
		}
		return http.StatusBadRequest
	}
	switch {
	case errors.Is(err, security.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, security.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domainbooking.ErrBookingNotFound):
		return http.StatusNotFound
	case errors.Is(err, middleware.ErrIdempotencyKeyReused),
		errors.Is(err, paymentsapp.ErrReconcileUnsupported):
		return http.StatusUnprocessableEntity
	case errors.Is(err, uow.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, logger *slog.Logger, err error) {
	status := statusFor(err)
	body := errorBody{Error: err.Error()}
	if rej, ok := domainbooking.AsRejection(err); ok {
		body.Kind = string(rej.Kind)
		body.Error = rej.Message
		body.BookingID = string(rej.BookingID)
		if rej.ClientTotal != nil {
			m := dto.MapMoney(*rej.ClientTotal)
			body.ClientTotal = &m
		}
		if rej.ServerTotal != nil {
			m := dto.MapMoney(*rej.ServerTotal)
			body.ServerTotal = &m
		}
	}
	if status >= http.StatusInternalServerError && body.Kind == "" {
		if logger != nil {
			logger.Error("request failed", "status", status, "error", err, "path", c.FullPath())
		}
		body.Error = "internal error"
	}
	_ = c.Error(err)
	c.JSON(status, body)
}
