package ginserver

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	gin "github.com/gin-gonic/gin"

	"hotelbooking/internal/app/dto"
	availabilityapp "hotelbooking/internal/app/handlers/availability"
	"hotelbooking/internal/app/queries"
	domainbooking "hotelbooking/internal/domain/booking"
)

type AvailabilityHandler struct {
	Queries queries.Bus
	Logger  *slog.Logger
}

func (h AvailabilityHandler) Check(c *gin.Context) {
	checkIn, err := parseInstant(c.Query("check_in"), "check_in")
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	checkOut, err := parseInstant(c.Query("check_out"), "check_out")
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	query := availabilityapp.CheckAvailabilityQuery{RoomID: strings.TrimSpace(c.Param("id")), CheckIn: checkIn, CheckOut: checkOut}
	result, err := queries.Ask[availabilityapp.CheckAvailabilityQuery, dto.Availability](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func parseInstant(raw, field string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, domainbooking.Reject(domainbooking.KindInvalidRequest, "%s is required", field)
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, domainbooking.RejectWith(domainbooking.KindInvalidRequest, err, fmt.Sprintf("%s must be RFC 3339", field))
	}
	return t, nil
}

var _ AvailabilityHTTP = AvailabilityHandler{}
