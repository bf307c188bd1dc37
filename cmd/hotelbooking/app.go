package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"

	"hotelbooking/internal/app/commands"
	availabilityapp "hotelbooking/internal/app/handlers/availability"
	bookingapp "hotelbooking/internal/app/handlers/booking"
	meapp "hotelbooking/internal/app/handlers/me"
	paymentsapp "hotelbooking/internal/app/handlers/payments"
	pricingapp "hotelbooking/internal/app/handlers/pricing"
	"hotelbooking/internal/app/middleware"
	appoutbox "hotelbooking/internal/app/outbox"
	"hotelbooking/internal/app/policies"
	"hotelbooking/internal/app/queries"
	"hotelbooking/internal/app/schedule"
	"hotelbooking/internal/app/uow"
	domainbooking "hotelbooking/internal/domain/booking"
	"hotelbooking/internal/infra/broker/kafka"
	"hotelbooking/internal/infra/config"
	"hotelbooking/internal/infra/db/gormstore"
	mongostore "hotelbooking/internal/infra/db/mongo"
	ginserver "hotelbooking/internal/infra/http/gin"
	"hotelbooking/internal/infra/lock/redislock"
	"hotelbooking/internal/infra/obs"
	infraoutbox "hotelbooking/internal/infra/outbox"
	"hotelbooking/internal/infra/payments"
	"hotelbooking/internal/infra/payments/card"
	"hotelbooking/internal/infra/payments/momo"
	"hotelbooking/internal/infra/payments/offline"
	"hotelbooking/internal/infra/security"
	"hotelbooking/internal/infra/storage/memory"
	"hotelbooking/internal/infra/sweep"
	"hotelbooking/internal/infra/tasks"
	"hotelbooking/internal/infra/validation"
)

const (
	serviceSource   = "hotelbooking"
	devJWTSecret    = "dev-insecure-secret"
	taskConcurrency = 10
)

type application struct {
	cfg      config.Config
	logger   *slog.Logger
	commands commands.Bus
	queries  queries.Bus
	handlers ginserver.Handlers
	health   obs.HealthHandlers

	worker     *infraoutbox.Worker
	sweeper    *sweep.Sweeper
	taskServer *tasks.Server

	factory     uow.UoWFactory
	memoryStore *memory.Store
	db          *gorm.DB
	closers     []func(ctx context.Context) error
}

// storage is the per-driver part of the wiring.
type storage struct {
	factory uow.UoWFactory
	outbox  appoutbox.Outbox
	relay   infraoutbox.Store
}

func buildApplication(ctx context.Context, cfg config.Config, logger *slog.Logger) (*application, error) {
	app := &application{
		cfg:    cfg,
		logger: logger,
		health: obs.HealthHandlers{Checks: map[string]obs.Check{}},
	}
	ok := false
	defer func() {
		if !ok {
			app.Close(context.Background())
		}
	}()

	store, err := app.openStorage(cfg)
	if err != nil {
		return nil, err
	}
	app.factory = store.factory

	idempotency, inbox, err := app.openAuditStores(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var (
		locker    policies.RoomLocker
		scheduler schedule.Scheduler
		redisOpt  asynq.RedisClientOpt
	)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		app.closers = append(app.closers, func(context.Context) error { return rdb.Close() })
		app.health.Checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		locker = redislock.New(rdb, logger)

		redisOpt = asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
		client := asynq.NewClient(redisOpt)
		app.closers = append(app.closers, func(context.Context) error { return client.Close() })
		scheduler = tasks.NewScheduler(client)
	}

	registry, err := buildPayments(cfg, logger)
	if err != nil {
		return nil, err
	}

	encoder := appoutbox.JSONEventEncoder{}
	commandBus := commands.NewInMemoryBus()
	commands.RegisterHandler(commandBus, bookingapp.ConfirmBookingCommand{}.Key(), &bookingapp.ConfirmBookingHandler{
		UoWFactory:     store.factory,
		Dispatchers:    registry,
		Locker:         locker,
		Scheduler:      scheduler,
		Outbox:         store.outbox,
		Encoder:        encoder,
		Logger:         logger.With("component", "confirm_booking"),
		Tolerance:      cfg.PriceTolerance,
		ReconcileAfter: cfg.PaymentWindow,
	})
	commands.RegisterHandler(commandBus, paymentsapp.GatewayCallbackCommand{}.Key(), &paymentsapp.GatewayCallbackHandler{
		UoWFactory: store.factory,
		Gateways:   registry,
		Inbox:      inbox,
		Outbox:     store.outbox,
		Encoder:    encoder,
		Logger:     logger.With("component", "gateway_callback"),
	})
	commands.RegisterHandler(commandBus, paymentsapp.ReconcilePaymentCommand{}.Key(), &paymentsapp.ReconcilePaymentHandler{
		UoWFactory: store.factory,
		Gateways:   registry,
		Outbox:     store.outbox,
		Encoder:    encoder,
		Logger:     logger.With("component", "reconcile_payment"),
	})

	queryBus := queries.NewInMemoryBus()
	queries.RegisterHandler(queryBus, bookingapp.GetBookingQuery{}.Key(), &bookingapp.GetBookingHandler{UoWFactory: store.factory})
	queries.RegisterHandler(queryBus, meapp.ListMyBookingsQuery{}.Key(), &meapp.ListMyBookingsHandler{UoWFactory: store.factory, Logger: logger})
	queries.RegisterHandler(queryBus, pricingapp.CalculatePriceQuery{}.Key(), &pricingapp.CalculatePriceHandler{UoWFactory: store.factory})
	queries.RegisterHandler(queryBus, availabilityapp.CheckAvailabilityQuery{}.Key(), &availabilityapp.CheckAvailabilityHandler{UoWFactory: store.factory})
	queries.RegisterHandler(queryBus, paymentsapp.ListStalePaymentsQuery{}.Key(), &paymentsapp.ListStalePaymentsHandler{UoWFactory: store.factory})

	logger.Debug("handlers registered", "commands", commandBus.Keys(), "queries", queryBus.Keys())

	validator := validation.New()
	authorizer := security.RequesterAuthorizer{}
	app.commands = middleware.ChainCommands(
		commandBus,
		middleware.Validation(validator),
		middleware.Authorization(authorizer),
		middleware.Idempotency(idempotency, nil, logger.With("component", "idempotency")),
		middleware.OutboxFlush(store.outbox, logger.With("component", "outbox")),
		middleware.Transaction(store.factory, nil),
	)
	app.queries = middleware.ChainQueries(
		queryBus,
		middleware.QueryValidation(validator),
		middleware.QueryAuthorization(authorizer),
	)

	producer, err := app.openProducer(cfg)
	if err != nil {
		return nil, err
	}
	app.worker = &infraoutbox.Worker{
		Store:       store.relay,
		Producer:    producer,
		Logger:      logger.With("component", "outbox"),
		Interval:    cfg.OutboxPollInterval,
		TopicPrefix: cfg.KafkaTopicPrefix,
		Source:      serviceSource,
		Backoff:     cfg.RetryBackoff,
	}
	app.sweeper = &sweep.Sweeper{
		Commands: app.commands,
		Queries:  app.queries,
		Logger:   logger.With("component", "sweep"),
		Window:   cfg.PaymentWindow,
	}
	if cfg.RedisAddr != "" {
		app.taskServer = tasks.NewServer(redisOpt, taskConcurrency, app.commands, logger.With("component", "tasks"))
	}

	auth := ginserver.AuthMiddleware{
		Tokens: security.HMACTokens{Secret: []byte(jwtSecret(cfg)), Issuer: cfg.JWTIssuer},
		Logger: logger,
	}
	app.handlers = ginserver.Handlers{
		Booking:        ginserver.BookingHandler{Commands: app.commands, Queries: app.queries, Logger: logger},
		Pricing:        ginserver.PricingHandler{Queries: app.queries, Logger: logger},
		Availability:   ginserver.AvailabilityHandler{Queries: app.queries, Logger: logger},
		Payment:        ginserver.PaymentHandler{Commands: app.commands, Logger: logger},
		AuthMiddleware: auth.Handle,
		RateLimit:      ginserver.NewRateLimiter(cfg.RateLimitPerMin, logger).Handle,
	}
	ok = true
	return app, nil
}

func (a *application) openStorage(cfg config.Config) (storage, error) {
	switch cfg.StoreDriver {
	case "postgres", "sqlite":
		db, err := gormstore.Open(cfg.StoreDriver, cfg.DatabaseURL)
		if err != nil {
			return storage{}, fmt.Errorf("open %s: %w", cfg.StoreDriver, err)
		}
		a.db = db
		a.closers = append(a.closers, func(context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		})
		a.health.Checks["database"] = func(ctx context.Context) error { return gormstore.Ping(ctx, db) }
		box := gormstore.OutboxStore{DB: db}
		return storage{factory: gormstore.Factory{DB: db}, outbox: box, relay: box}, nil
	default:
		a.memoryStore = memory.NewStore()
		box := memory.NewOutbox()
		return storage{factory: memory.Factory{Store: a.memoryStore, Outbox: box}, outbox: box, relay: box}, nil
	}
}

func (a *application) openAuditStores(ctx context.Context, cfg config.Config) (middleware.IdempotencyStore, policies.CallbackInbox, error) {
	if cfg.MongoURI == "" {
		return memory.NewIdempotencyStore(), memory.NewCallbackInbox(), nil
	}
	client, err := mongostore.New(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongo: %w", err)
	}
	a.closers = append(a.closers, client.Close)
	a.health.Checks["mongo"] = client.Ping
	idempotency, err := mongostore.NewIdempotencyStore(ctx, client.DB)
	if err != nil {
		return nil, nil, err
	}
	inbox, err := mongostore.NewCallbackInbox(ctx, client.DB)
	if err != nil {
		return nil, nil, err
	}
	return idempotency, inbox, nil
}

func (a *application) openProducer(cfg config.Config) (infraoutbox.Producer, error) {
	if len(cfg.KafkaBrokers) == 0 {
		return infraoutbox.LogProducer{Logger: a.logger.With("component", "outbox")}, nil
	}
	producer, err := kafka.NewProducer(cfg.KafkaBrokers, serviceSource)
	if err != nil {
		return nil, fmt.Errorf("connect kafka: %w", err)
	}
	a.closers = append(a.closers, func(context.Context) error { return producer.Close() })
	return producer, nil
}

func buildPayments(cfg config.Config, logger *slog.Logger) (*payments.Registry, error) {
	registry := payments.NewRegistry().
		Register(domainbooking.MethodCash, "cash", offline.Cash{}).
		Register(domainbooking.MethodZaloPay, "zalopay", offline.ZaloPaySandbox{})
	if cfg.MomoEnabled() {
		gateway, err := momo.New(cfg.Momo, logger.With("provider", momo.Provider))
		if err != nil {
			return nil, err
		}
		registry.Register(domainbooking.MethodMomo, momo.Provider, gateway)
	}
	if cfg.StripeSecretKey != "" {
		dispatcher, err := card.New(cfg.StripeSecretKey, logger.With("provider", "stripe"))
		if err != nil {
			return nil, err
		}
		registry.Register(domainbooking.MethodCard, "stripe", dispatcher)
	}
	return registry, nil
}

func (a *application) migrate(ctx context.Context) error {
	if a.db == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	return gormstore.Migrate(ctx, a.db)
}

// Close releases connections in reverse order of opening.
func (a *application) Close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil && a.logger != nil {
			a.logger.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}

func jwtSecret(cfg config.Config) string {
	if cfg.JWTSecret == "" && cfg.Env == "dev" {
		return devJWTSecret
	}
	return cfg.JWTSecret
}
