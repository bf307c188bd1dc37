package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"hotelbooking/internal/infra/config"
	"hotelbooking/internal/infra/obs"
)

type BookingHTTP interface {
	Confirm(c *gin.Context)
	Get(c *gin.Context)
	Reconcile(c *gin.Context)
	ListMine(c *gin.Context)
}

type PricingHTTP interface {
	Quote(c *gin.Context)
	Calculate(c *gin.Context)
}

type AvailabilityHTTP interface {
	Check(c *gin.Context)
}

type PaymentHTTP interface {
	Callback(c *gin.Context)
}

type Handlers struct {
	Booking        BookingHTTP
	Pricing        PricingHTTP
	Availability   AvailabilityHTTP
	Payment        PaymentHTTP
	AuthMiddleware gin.HandlerFunc
	RateLimit      gin.HandlerFunc
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	mode := configureGinMode(cfg.Env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           NewRouter(obsMW, health, h),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func NewRouter(obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(obsMW.AccessLog())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", "Idempotency-Key"},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			obs.RequestIDHeader,
		},
		MaxAge: 12 * time.Hour,
	}))

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)

	// Provider callbacks are authenticated by their signature, not by a
	// bearer token, and must never be throttled away.
	if h.Payment != nil {
		router.POST("/api/v1/payments/:provider/ipn", h.Payment.Callback)
	}

	api := router.Group("/api/v1")
	if h.RateLimit != nil {
		api.Use(h.RateLimit)
	}
	if h.AuthMiddleware != nil {
		api.Use(h.AuthMiddleware)
	}
	if h.Booking != nil {
		api.POST("/bookings", h.Booking.Confirm)
		api.GET("/bookings/:id", h.Booking.Get)
		api.POST("/bookings/:id/payment/reconcile", h.Booking.Reconcile)
		api.GET("/me/bookings", h.Booking.ListMine)
	}
	if h.Pricing != nil {
		api.GET("/rooms/:id/price", h.Pricing.Quote)
		api.POST("/pricing/calculate", h.Pricing.Calculate)
	}
	if h.Availability != nil {
		api.GET("/rooms/:id/availability", h.Availability.Check)
	}
	return router
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}
