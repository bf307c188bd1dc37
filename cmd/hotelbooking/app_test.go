package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hotelbooking/internal/app/dto"
	"hotelbooking/internal/infra/config"
	ginserver "hotelbooking/internal/infra/http/gin"
	"hotelbooking/internal/infra/obs"
	"hotelbooking/internal/infra/security"
)

func testConfig(driver, dsn string) config.Config {
	return config.Config{
		Env:            "test",
		HTTPAddr:       ":0",
		StoreDriver:    driver,
		DatabaseURL:    dsn,
		JWTSecret:      "app-test-secret",
		JWTIssuer:      "hotelbooking",
		PriceTolerance: 1000,
		PaymentWindow:  15 * time.Minute,
	}
}

func startApp(t *testing.T, cfg config.Config) (*application, http.Handler) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()
	app, err := buildApplication(ctx, cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { app.Close(context.Background()) })
	require.NoError(t, app.migrate(ctx))
	require.NoError(t, app.loadFixtures(ctx, fixturesPath("")))
	router := ginserver.NewRouter(obs.Middleware{}, app.health, app.handlers)
	return app, router
}

func authHeader(t *testing.T, cfg config.Config, subject string) string {
	t.Helper()
	token, err := security.HMACTokens{Secret: []byte(cfg.JWTSecret), Issuer: cfg.JWTIssuer}.Issue(subject)
	require.NoError(t, err)
	return "Bearer " + token
}

func postJSON(t *testing.T, h http.Handler, path, auth string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", auth)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func get(h http.Handler, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func exerciseCashBooking(t *testing.T, cfg config.Config) {
	app, router := startApp(t, cfg)
	guest := authHeader(t, cfg, "guest-1")

	checkIn := time.Now().UTC().Add(72 * time.Hour).Truncate(time.Hour)
	checkOut := checkIn.Add(22 * time.Hour)
	booking := map[string]any{
		"room_id":        "room-101",
		"hotel_id":       "hotel-saigon",
		"check_in":       checkIn,
		"check_out":      checkOut,
		"booking_type":   "DAILY",
		"payment_method": "CASH",
		"client_total":   1080000,
		"promotion_id":   "promo-summer-10",
	}

	w := postJSON(t, router, "/api/v1/bookings", guest, booking)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var confirmed dto.BookingConfirmation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &confirmed))
	assert.Equal(t, "CONFIRMED", confirmed.BookingStatus)
	assert.Equal(t, "PAID", confirmed.PaymentStatus)
	assert.Equal(t, int64(1200000), confirmed.BasePrice.Amount)
	assert.Equal(t, int64(120000), confirmed.DiscountAmount.Amount)
	assert.Equal(t, int64(1080000), confirmed.FinalAmount.Amount)

	overlapping := map[string]any{}
	for k, v := range booking {
		overlapping[k] = v
	}
	overlapping["check_in"] = checkIn.Add(4 * time.Hour)
	w = postJSON(t, router, "/api/v1/bookings", authHeader(t, cfg, "guest-2"), overlapping)
	assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())

	path := "/rooms/room-101/availability?check_in=" + checkOut.Format(time.RFC3339) + "&check_out=" + checkOut.Add(2*time.Hour).Format(time.RFC3339)
	w = get(router, "/api/v1"+path, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"available":true`)

	w = get(router, "/api/v1/bookings/"+confirmed.BookingID, guest)
	require.Equal(t, http.StatusOK, w.Code)
	var view dto.BookingView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, "CONFIRMED", view.Status)
	assert.Equal(t, "PAID", view.Payment.Status)

	w = get(router, "/api/v1/me/bookings", guest)
	require.Equal(t, http.StatusOK, w.Code)
	var mine dto.BookingCollection
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &mine))
	require.Len(t, mine.Items, 1)
	assert.Equal(t, confirmed.BookingID, mine.Items[0].ID)

	published, err := app.worker.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, published)
}

func TestCashBookingOnMemoryStore(t *testing.T) {
	exerciseCashBooking(t, testConfig("memory", ""))
}

func TestCashBookingOnSQLite(t *testing.T) {
	exerciseCashBooking(t, testConfig("sqlite", "file:"+uuid.NewString()+"?mode=memory&cache=shared"))
}

func TestPriceQuoteAndMissingTier(t *testing.T) {
	_, router := startApp(t, testConfig("memory", ""))

	w := get(router, "/api/v1/rooms/room-101/price?booking_type=HOURLY&duration=5", "")
	require.Equal(t, http.StatusOK, w.Code)
	var quote dto.PriceQuote
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &quote))
	assert.Equal(t, int64(350000), quote.FinalPrice.Amount)

	w = get(router, "/api/v1/rooms/room-301/price?booking_type=DAILY", "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = get(router, "/api/v1/rooms/room-999/price?booking_type=DAILY", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSweepWithoutPendingPayments(t *testing.T) {
	app, _ := startApp(t, testConfig("memory", ""))
	sum, err := app.sweeper.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sum.Checked)
}
