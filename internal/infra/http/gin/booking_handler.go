package ginserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	gin "github.com/gin-gonic/gin"

	"hotelbooking/internal/app/commands"
	"hotelbooking/internal/app/dto"
	bookingapp "hotelbooking/internal/app/handlers/booking"
	meapp "hotelbooking/internal/app/handlers/me"
	paymentsapp "hotelbooking/internal/app/handlers/payments"
	"hotelbooking/internal/app/queries"
	domainbooking "hotelbooking/internal/domain/booking"
)

const idempotencyHeader = "Idempotency-Key"

var errEmptyResult = errors.New("http: command returned no result")

type BookingHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

type confirmBookingRequest struct {
	RoomID        string    `json:"room_id"`
	HotelID       string    `json:"hotel_id"`
	CheckIn       time.Time `json:"check_in"`
	CheckOut      time.Time `json:"check_out"`
	BookingType   string    `json:"booking_type"`
	Duration      int       `json:"duration"`
	PaymentMethod string    `json:"payment_method"`
	ClientTotal   int64     `json:"client_total"`
	PromotionID   string    `json:"promotion_id"`
	PaymentToken  string    `json:"payment_token"`
}

type dispatchFailureBody struct {
	errorBody
	Booking *dto.BookingConfirmation `json:"booking"`
}

func (h BookingHandler) Confirm(c *gin.Context) {
	user, ok := requirePrincipal(c)
	if !ok {
		return
	}
	var req confirmBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Error: err.Error(), Kind: string(domainbooking.KindInvalidRequest)})
		return
	}
	cmd := bookingapp.ConfirmBookingCommand{
		RoomID:          strings.TrimSpace(req.RoomID),
		HotelID:         strings.TrimSpace(req.HotelID),
		RequesterID:     user.Subject,
		CheckIn:         req.CheckIn,
		CheckOut:        req.CheckOut,
		BookingType:     req.BookingType,
		Duration:        req.Duration,
		PaymentMethod:   req.PaymentMethod,
		ClientTotal:     req.ClientTotal,
		PromotionID:     strings.TrimSpace(req.PromotionID),
		PaymentToken:    req.PaymentToken,
		IdempotencyKeyV: strings.TrimSpace(c.GetHeader(idempotencyHeader)),
	}
	result, err := commands.Dispatch[bookingapp.ConfirmBookingCommand, *dto.BookingConfirmation](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	if result == nil {
		respondError(c, h.Logger, errEmptyResult)
		return
	}
	if result.FailureKind != "" {
		c.JSON(http.StatusBadGateway, dispatchFailureBody{
			errorBody: errorBody{
				Error:     result.FailureMessage,
				Kind:      result.FailureKind,
				BookingID: result.BookingID,
			},
			Booking: result,
		})
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h BookingHandler) Get(c *gin.Context) {
	user, ok := requirePrincipal(c)
	if !ok {
		return
	}
	query := bookingapp.GetBookingQuery{BookingID: strings.TrimSpace(c.Param("id")), RequesterID: user.Subject}
	view, err := queries.Ask[bookingapp.GetBookingQuery, dto.BookingView](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Reconcile asks the provider for the payment status of one of the
// caller's bookings.
func (h BookingHandler) Reconcile(c *gin.Context) {
	user, ok := requirePrincipal(c)
	if !ok {
		return
	}
	id := strings.TrimSpace(c.Param("id"))
	owned := bookingapp.GetBookingQuery{BookingID: id, RequesterID: user.Subject}
	if _, err := queries.Ask[bookingapp.GetBookingQuery, dto.BookingView](c.Request.Context(), h.Queries, owned); err != nil {
		respondError(c, h.Logger, err)
		return
	}
	cmd := paymentsapp.ReconcilePaymentCommand{BookingID: id}
	result, err := commands.Dispatch[paymentsapp.ReconcilePaymentCommand, dto.ReconcileResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) ListMine(c *gin.Context) {
	user, ok := requirePrincipal(c)
	if !ok {
		return
	}
	query := meapp.ListMyBookingsQuery{RequesterID: user.Subject}
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			c.JSON(http.StatusBadRequest, errorBody{Error: "limit must be a non-negative integer", Kind: string(domainbooking.KindInvalidRequest)})
			return
		}
		query.Limit = limit
	}
	out, err := queries.Ask[meapp.ListMyBookingsQuery, dto.BookingCollection](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

var _ BookingHTTP = BookingHandler{}
