package ginserver

import (
	"io"
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"hotelbooking/internal/app/commands"
	"hotelbooking/internal/app/dto"
	paymentsapp "hotelbooking/internal/app/handlers/payments"
	domainbooking "hotelbooking/internal/domain/booking"
)

const maxCallbackBody = 64 << 10

type PaymentHandler struct {
	Commands commands.Bus
	Logger   *slog.Logger
}

// Callback receives a provider notification. Every verified body is
// answered with 204, including redeliveries and unknown bookings, so the
// provider stops retrying.
func (h PaymentHandler) Callback(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxCallbackBody))
	if err != nil || len(body) == 0 {
		respondError(c, h.Logger, domainbooking.Reject(domainbooking.KindInvalidRequest, "callback body required"))
		return
	}
	cmd := paymentsapp.GatewayCallbackCommand{
		Provider: strings.ToLower(strings.TrimSpace(c.Param("provider"))),
		Body:     body,
	}
	_, err = commands.Dispatch[paymentsapp.GatewayCallbackCommand, dto.CallbackAck](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

var _ PaymentHTTP = PaymentHandler{}
