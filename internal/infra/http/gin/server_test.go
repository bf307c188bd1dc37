package ginserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gin "github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hotelbooking/internal/app/commands"
	"hotelbooking/internal/app/dto"
	bookingapp "hotelbooking/internal/app/handlers/booking"
	meapp "hotelbooking/internal/app/handlers/me"
	paymentsapp "hotelbooking/internal/app/handlers/payments"
	pricingapp "hotelbooking/internal/app/handlers/pricing"
	"hotelbooking/internal/app/queries"
	domainbooking "hotelbooking/internal/domain/booking"
	"hotelbooking/internal/domain/shared/money"
	"hotelbooking/internal/infra/obs"
	"hotelbooking/internal/infra/security"
)

type stubCommands struct {
	fn   func(ctx context.Context, cmd commands.Command) (any, error)
	seen []commands.Command
}

func (s *stubCommands) Dispatch(ctx context.Context, cmd commands.Command) (any, error) {
	s.seen = append(s.seen, cmd)
	return s.fn(ctx, cmd)
}

type stubQueries struct {
	fn func(ctx context.Context, q queries.Query) (any, error)
}

func (s *stubQueries) Ask(ctx context.Context, q queries.Query) (any, error) {
	return s.fn(ctx, q)
}

var testTokens = security.HMACTokens{Secret: []byte("test-secret"), Issuer: "hotelbooking"}

func newTestRouter(cmds commands.Bus, qs queries.Bus, limiter gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return NewRouter(obs.Middleware{}, obs.HealthHandlers{}, Handlers{
		Booking:        BookingHandler{Commands: cmds, Queries: qs},
		Pricing:        PricingHandler{Queries: qs},
		Availability:   AvailabilityHandler{Queries: qs},
		Payment:        PaymentHandler{Commands: cmds},
		AuthMiddleware: AuthMiddleware{Tokens: testTokens}.Handle,
		RateLimit:      limiter,
	})
}

func bearer(t *testing.T, subject string) string {
	t.Helper()
	token, err := testTokens.Issue(subject)
	require.NoError(t, err)
	return "Bearer " + token
}

func perform(r http.Handler, method, path, auth, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

const confirmBody = `{"room_id":"room-1","hotel_id":"hotel-1","check_in":"2030-01-01T14:00:00Z","check_out":"2030-01-03T12:00:00Z","booking_type":"DAILY","payment_method":"MOMO","client_total":2000000}`

func TestConfirmRequiresPrincipal(t *testing.T) {
	cmds := &stubCommands{fn: func(context.Context, commands.Command) (any, error) { return nil, nil }}
	r := newTestRouter(cmds, &stubQueries{}, nil)

	w := perform(r, http.MethodPost, "/api/v1/bookings", "", confirmBody, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = perform(r, http.MethodPost, "/api/v1/bookings", "Bearer not-a-token", confirmBody, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, cmds.seen)
}

func TestConfirmPassesRequesterAndIdempotencyKey(t *testing.T) {
	var principal security.Principal
	cmds := &stubCommands{fn: func(ctx context.Context, cmd commands.Command) (any, error) {
		principal, _ = security.PrincipalFromContext(ctx)
		return &dto.BookingConfirmation{BookingID: "b-1", BookingStatus: "PENDING_PAYMENT", RedirectURL: "https://pay.example/1"}, nil
	}}
	r := newTestRouter(cmds, &stubQueries{}, nil)

	w := perform(r, http.MethodPost, "/api/v1/bookings", bearer(t, "guest-7"), confirmBody, map[string]string{idempotencyHeader: "key-1"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	require.Len(t, cmds.seen, 1)
	cmd := cmds.seen[0].(bookingapp.ConfirmBookingCommand)
	assert.Equal(t, "guest-7", cmd.RequesterID)
	assert.Equal(t, "key-1", cmd.IdempotencyKeyV)
	assert.Equal(t, int64(2000000), cmd.ClientTotal)
	assert.Equal(t, time.Date(2030, 1, 3, 12, 0, 0, 0, time.UTC), cmd.CheckOut.UTC())
	assert.Equal(t, "guest-7", principal.Subject)

	var got dto.BookingConfirmation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "https://pay.example/1", got.RedirectURL)
}

func TestConfirmMapsRejections(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"invalid", domainbooking.Reject(domainbooking.KindInvalidRequest, "bad"), http.StatusBadRequest},
		{"room missing", domainbooking.Reject(domainbooking.KindRoomNotFound, "gone"), http.StatusNotFound},
		{"no price", domainbooking.Reject(domainbooking.KindPriceNotConfigured, "none"), http.StatusUnprocessableEntity},
		{"taken", domainbooking.Reject(domainbooking.KindRoomUnavailable, "taken"), http.StatusConflict},
		{"conflict", domainbooking.Reject(domainbooking.KindConflict, "race"), http.StatusConflict},
		{"unauthenticated", security.ErrUnauthenticated, http.StatusUnauthorized},
		{"forbidden", security.ErrForbidden, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cmds := &stubCommands{fn: func(context.Context, commands.Command) (any, error) { return nil, tc.err }}
			r := newTestRouter(cmds, &stubQueries{}, nil)
			w := perform(r, http.MethodPost, "/api/v1/bookings", bearer(t, "guest"), confirmBody, nil)
			assert.Equal(t, tc.status, w.Code)
		})
	}
}

func TestConfirmPriceMismatchReportsBothTotals(t *testing.T) {
	rej := domainbooking.PriceMismatch(money.Must(1500000, "VND"), money.Must(2000000, "VND"))
	cmds := &stubCommands{fn: func(context.Context, commands.Command) (any, error) { return nil, rej }}
	r := newTestRouter(cmds, &stubQueries{}, nil)

	w := perform(r, http.MethodPost, "/api/v1/bookings", bearer(t, "guest"), confirmBody, nil)
	require.Equal(t, http.StatusConflict, w.Code)

	var body errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "PriceMismatch", body.Kind)
	require.NotNil(t, body.ClientTotal)
	require.NotNil(t, body.ServerTotal)
	assert.Equal(t, int64(1500000), body.ClientTotal.Amount)
	assert.Equal(t, int64(2000000), body.ServerTotal.Amount)
}

func TestConfirmDispatchFailureCarriesBookingID(t *testing.T) {
	cmds := &stubCommands{fn: func(context.Context, commands.Command) (any, error) {
		return &dto.BookingConfirmation{
			BookingID:      "b-9",
			BookingStatus:  "PENDING_PAYMENT",
			FailureKind:    string(domainbooking.KindGatewayDispatchFailed),
			FailureMessage: "provider returned 41",
		}, nil
	}}
	r := newTestRouter(cmds, &stubQueries{}, nil)

	w := perform(r, http.MethodPost, "/api/v1/bookings", bearer(t, "guest"), confirmBody, nil)
	require.Equal(t, http.StatusBadGateway, w.Code)

	var body dispatchFailureBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "b-9", body.BookingID)
	assert.Equal(t, "GatewayDispatchFailed", body.Kind)
	require.NotNil(t, body.Booking)
	assert.Equal(t, "PENDING_PAYMENT", body.Booking.BookingStatus)
}

func TestConfirmRejectsMalformedJSON(t *testing.T) {
	cmds := &stubCommands{fn: func(context.Context, commands.Command) (any, error) { return nil, nil }}
	r := newTestRouter(cmds, &stubQueries{}, nil)

	w := perform(r, http.MethodPost, "/api/v1/bookings", bearer(t, "guest"), `{"room_id":`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, cmds.seen)
}

func TestInternalErrorsAreMasked(t *testing.T) {
	qs := &stubQueries{fn: func(context.Context, queries.Query) (any, error) {
		return nil, assert.AnError
	}}
	r := newTestRouter(&stubCommands{}, qs, nil)

	w := perform(r, http.MethodGet, "/api/v1/bookings/b-1", bearer(t, "guest"), "", nil)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), assert.AnError.Error())
}

func TestGetBookingHidesOtherRequesters(t *testing.T) {
	qs := &stubQueries{fn: func(_ context.Context, q queries.Query) (any, error) {
		get := q.(bookingapp.GetBookingQuery)
		if get.RequesterID != "owner" {
			return nil, domainbooking.ErrBookingNotFound
		}
		return dto.BookingView{ID: get.BookingID, Status: "CONFIRMED"}, nil
	}}
	r := newTestRouter(&stubCommands{}, qs, nil)

	w := perform(r, http.MethodGet, "/api/v1/bookings/b-1", bearer(t, "owner"), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"CONFIRMED"`)

	w = perform(r, http.MethodGet, "/api/v1/bookings/b-1", bearer(t, "stranger"), "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListMineScopesToCaller(t *testing.T) {
	var seen meapp.ListMyBookingsQuery
	qs := &stubQueries{fn: func(_ context.Context, q queries.Query) (any, error) {
		seen = q.(meapp.ListMyBookingsQuery)
		return dto.BookingCollection{Items: []dto.BookingView{{ID: "b-1", Status: "CONFIRMED"}}}, nil
	}}
	r := newTestRouter(&stubCommands{}, qs, nil)

	w := perform(r, http.MethodGet, "/api/v1/me/bookings?limit=5", bearer(t, "guest-3"), "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "guest-3", seen.RequesterID)
	assert.Equal(t, 5, seen.Limit)
	assert.Contains(t, w.Body.String(), `"id":"b-1"`)

	w = perform(r, http.MethodGet, "/api/v1/me/bookings?limit=-1", bearer(t, "guest-3"), "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = perform(r, http.MethodGet, "/api/v1/me/bookings", "", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestReconcileChecksOwnershipFirst(t *testing.T) {
	qs := &stubQueries{fn: func(_ context.Context, q queries.Query) (any, error) {
		if q.(bookingapp.GetBookingQuery).RequesterID != "owner" {
			return nil, domainbooking.ErrBookingNotFound
		}
		return dto.BookingView{ID: "b-1"}, nil
	}}
	cmds := &stubCommands{fn: func(_ context.Context, cmd commands.Command) (any, error) {
		return dto.ReconcileResult{BookingID: cmd.(paymentsapp.ReconcilePaymentCommand).BookingID, Applied: true, BookingStatus: "CONFIRMED"}, nil
	}}
	r := newTestRouter(cmds, qs, nil)

	w := perform(r, http.MethodPost, "/api/v1/bookings/b-1/payment/reconcile", bearer(t, "stranger"), "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, cmds.seen)

	w = perform(r, http.MethodPost, "/api/v1/bookings/b-1/payment/reconcile", bearer(t, "owner"), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"applied":true`)
}

func TestReconcileUnsupportedMethod(t *testing.T) {
	qs := &stubQueries{fn: func(context.Context, queries.Query) (any, error) { return dto.BookingView{}, nil }}
	cmds := &stubCommands{fn: func(context.Context, commands.Command) (any, error) {
		return nil, paymentsapp.ErrReconcileUnsupported
	}}
	r := newTestRouter(cmds, qs, nil)

	w := perform(r, http.MethodPost, "/api/v1/bookings/b-1/payment/reconcile", bearer(t, "owner"), "", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestCallbackAnswersNoContent(t *testing.T) {
	cmds := &stubCommands{fn: func(context.Context, commands.Command) (any, error) {
		return dto.CallbackAck{BookingID: "b-1", Applied: true}, nil
	}}
	r := newTestRouter(cmds, &stubQueries{}, nil)

	w := perform(r, http.MethodPost, "/api/v1/payments/MoMo/ipn", "", `{"orderId":"BK_b-1_1"}`, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	require.Len(t, cmds.seen, 1)
	cmd := cmds.seen[0].(paymentsapp.GatewayCallbackCommand)
	assert.Equal(t, "momo", cmd.Provider)
	assert.JSONEq(t, `{"orderId":"BK_b-1_1"}`, string(cmd.Body))
}

func TestCallbackSignatureInvalid(t *testing.T) {
	cmds := &stubCommands{fn: func(context.Context, commands.Command) (any, error) {
		return nil, domainbooking.Reject(domainbooking.KindSignatureInvalid, "callback signature does not match")
	}}
	r := newTestRouter(cmds, &stubQueries{}, nil)

	w := perform(r, http.MethodPost, "/api/v1/payments/momo/ipn", "", `{"signature":"00"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "SignatureInvalid")
}

func TestCallbackEmptyBody(t *testing.T) {
	cmds := &stubCommands{fn: func(context.Context, commands.Command) (any, error) { return nil, nil }}
	r := newTestRouter(cmds, &stubQueries{}, nil)

	w := perform(r, http.MethodPost, "/api/v1/payments/momo/ipn", "", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, cmds.seen)
}

func TestPriceQuoteParsesQuery(t *testing.T) {
	var seen pricingapp.CalculatePriceQuery
	qs := &stubQueries{fn: func(_ context.Context, q queries.Query) (any, error) {
		seen = q.(pricingapp.CalculatePriceQuery)
		return dto.PriceQuote{RoomID: seen.RoomID, FinalPrice: dto.MoneyDTO{Amount: 300000, Currency: "VND"}}, nil
	}}
	r := newTestRouter(&stubCommands{}, qs, nil)

	w := perform(r, http.MethodGet, "/api/v1/rooms/room-1/price?booking_type=HOURLY&duration=3&promotion_id=p-1", "", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "room-1", seen.RoomID)
	assert.Equal(t, "HOURLY", seen.BookingType)
	assert.Equal(t, 3, seen.Duration)
	assert.Equal(t, "p-1", seen.PromotionID)

	w = perform(r, http.MethodGet, "/api/v1/rooms/room-1/price?booking_type=HOURLY&duration=-1", "", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCalculatePriceAcceptsJSONBody(t *testing.T) {
	var seen pricingapp.CalculatePriceQuery
	qs := &stubQueries{fn: func(_ context.Context, q queries.Query) (any, error) {
		seen = q.(pricingapp.CalculatePriceQuery)
		return dto.PriceQuote{RoomID: seen.RoomID, FinalPrice: dto.MoneyDTO{Amount: 160, Currency: "VND"}}, nil
	}}
	r := newTestRouter(&stubCommands{}, qs, nil)

	w := perform(r, http.MethodPost, "/api/v1/pricing/calculate", "", `{"room_id":"room-1","booking_type":"HOURLY","duration":5,"promotion_id":"p-1"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, pricingapp.CalculatePriceQuery{RoomID: "room-1", BookingType: "HOURLY", Duration: 5, PromotionID: "p-1"}, seen)
	assert.Contains(t, w.Body.String(), `"amount":160`)

	w = perform(r, http.MethodPost, "/api/v1/pricing/calculate", "", `{"room_id":"room-1","duration":-1}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = perform(r, http.MethodPost, "/api/v1/pricing/calculate", "", `{`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAvailabilityRequiresInstants(t *testing.T) {
	qs := &stubQueries{fn: func(context.Context, queries.Query) (any, error) {
		return dto.Availability{RoomID: "room-1", Available: true}, nil
	}}
	r := newTestRouter(&stubCommands{}, qs, nil)

	w := perform(r, http.MethodGet, "/api/v1/rooms/room-1/availability?check_in=2030-01-01T14:00:00Z", "", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = perform(r, http.MethodGet, "/api/v1/rooms/room-1/availability?check_in=2030-01-01T14:00:00Z&check_out=2030-01-02T12:00:00Z", "", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"available":true`)
}

func TestRateLimiterThrottlesPerClient(t *testing.T) {
	limiter := NewRateLimiter(2, nil)
	qs := &stubQueries{fn: func(context.Context, queries.Query) (any, error) { return dto.PriceQuote{}, nil }}
	r := newTestRouter(&stubCommands{}, qs, limiter.Handle)

	path := "/api/v1/rooms/room-1/price?booking_type=DAILY"
	assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, path, "", "", nil).Code)
	assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, path, "", "", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, perform(r, http.MethodGet, path, "", "", nil).Code)

	// Callbacks sit outside the limited group.
	cmds := &stubCommands{fn: func(context.Context, commands.Command) (any, error) { return dto.CallbackAck{}, nil }}
	r = newTestRouter(cmds, qs, limiter.Handle)
	assert.Equal(t, http.StatusNoContent, perform(r, http.MethodPost, "/api/v1/payments/momo/ipn", "", `{}`, nil).Code)
}
