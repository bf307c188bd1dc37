package ginserver

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	gin "github.com/gin-gonic/gin"

	"hotelbooking/internal/app/dto"
	pricingapp "hotelbooking/internal/app/handlers/pricing"
	"hotelbooking/internal/app/queries"
	domainbooking "hotelbooking/internal/domain/booking"
)

type PricingHandler struct {
	Queries queries.Bus
	Logger  *slog.Logger
}

// Quote prices a stay for display. The figure is advisory; confirm-booking
// prices again from the current tier.
func (h PricingHandler) Quote(c *gin.Context) {
	duration := 0
	if raw := strings.TrimSpace(c.Query("duration")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondError(c, h.Logger, domainbooking.Reject(domainbooking.KindInvalidRequest, "duration must be a non-negative integer"))
			return
		}
		duration = n
	}
	h.answer(c, pricingapp.CalculatePriceQuery{
		RoomID:      strings.TrimSpace(c.Param("id")),
		BookingType: c.Query("booking_type"),
		Duration:    duration,
		PromotionID: strings.TrimSpace(c.Query("promotion_id")),
	})
}

type calculatePriceRequest struct {
	RoomID      string `json:"room_id"`
	BookingType string `json:"booking_type"`
	Duration    int    `json:"duration"`
	PromotionID string `json:"promotion_id"`
}

// Calculate is the body form of Quote for clients that post the same
// fields they later send to confirm-booking.
func (h PricingHandler) Calculate(c *gin.Context) {
	var req calculatePriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Error: err.Error(), Kind: string(domainbooking.KindInvalidRequest)})
		return
	}
	if req.Duration < 0 {
		respondError(c, h.Logger, domainbooking.Reject(domainbooking.KindInvalidRequest, "duration must be a non-negative integer"))
		return
	}
	h.answer(c, pricingapp.CalculatePriceQuery{
		RoomID:      strings.TrimSpace(req.RoomID),
		BookingType: req.BookingType,
		Duration:    req.Duration,
		PromotionID: strings.TrimSpace(req.PromotionID),
	})
}

func (h PricingHandler) answer(c *gin.Context, query pricingapp.CalculatePriceQuery) {
	quote, err := queries.Ask[pricingapp.CalculatePriceQuery, dto.PriceQuote](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

var _ PricingHTTP = PricingHandler{}
