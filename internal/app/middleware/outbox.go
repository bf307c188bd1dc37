package middleware

import (
	"context"
	"log/slog"

	"hotelbooking/internal/app/commands"
	"hotelbooking/internal/app/outbox"
)

// OutboxFlush lets the outbox drop relayed records once a command has
// succeeded. The command's unit is already committed by then, so a flush
// failure is logged and the result still returned.
func OutboxFlush(box outbox.Outbox, logger *slog.Logger) CommandMiddleware {
	if box == nil {
		panic("middleware: outbox required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			res, err := next.Dispatch(ctx, cmd)
			if err != nil {
				return nil, err
			}
			if err := box.Flush(ctx); err != nil {
				logger.WarnContext(ctx, "outbox flush failed", "command", cmd.Key(), "error", err)
			}
			return res, nil
		})
	}
}
