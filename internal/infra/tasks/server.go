package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"hotelbooking/internal/app/commands"
	"hotelbooking/internal/app/dto"
	"hotelbooking/internal/app/handlers/payments"
	"hotelbooking/internal/app/schedule"
	domainbooking "hotelbooking/internal/domain/booking"
)

// Server consumes scheduled tasks and routes them into the command bus.
type Server struct {
	srv *asynq.Server
	mux *asynq.ServeMux
}

func NewServer(redis asynq.RedisConnOpt, concurrency int, bus commands.Bus, logger *slog.Logger) *Server {
	if concurrency <= 0 {
		concurrency = 5
	}
	srv := asynq.NewServer(redis, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{defaultQueue: 1},
	})
	mux := asynq.NewServeMux()
	mux.HandleFunc(schedule.TaskReconcilePayment, ReconcileHandler(bus, logger))
	return &Server{srv: srv, mux: mux}
}

// Run blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	if err := s.srv.Start(s.mux); err != nil {
		return err
	}
	<-ctx.Done()
	s.srv.Shutdown()
	return nil
}

// ReconcileHandler polls the gateway for one booking. A still-pending
// payment is not retried here; the periodic sweep picks it up.
func ReconcileHandler(bus commands.Bus, logger *slog.Logger) asynq.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, task *asynq.Task) error {
		var p schedule.ReconcilePaymentPayload
		if err := json.Unmarshal(task.Payload(), &p); err != nil {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		res, err := commands.Dispatch[payments.ReconcilePaymentCommand, dto.ReconcileResult](ctx, bus, payments.ReconcilePaymentCommand{BookingID: p.BookingID})
		switch {
		case errors.Is(err, domainbooking.ErrBookingNotFound), errors.Is(err, payments.ErrReconcileUnsupported):
			logger.Warn("reconcile task dropped", "booking_id", p.BookingID, "error", err)
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		case err != nil:
			return err
		}
		logger.Info("reconcile task done", "booking_id", p.BookingID, "applied", res.Applied, "booking_status", res.BookingStatus, "gateway_status", res.GatewayStatus)
		return nil
	}
}
