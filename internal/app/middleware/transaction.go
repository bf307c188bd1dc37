package middleware

import (
	"context"
	"errors"

	"hotelbooking/internal/app/commands"
	"hotelbooking/internal/app/uow"
)

type TxOptionsProvider func(cmd commands.Command) uow.TxOptions

// SelfManagedCommand is implemented by commands whose handlers open their
// own units, for example to keep network calls outside the transaction.
type SelfManagedCommand interface {
	SelfManagedTransaction() bool
}

func selfManaged(cmd commands.Command) bool {
	sm, ok := cmd.(SelfManagedCommand)
	return ok && sm.SelfManagedTransaction()
}

// Transaction runs each command inside one unit of work bound to the
// context. The unit commits only when the handler returns without error.
func Transaction(factory uow.UoWFactory, optsProvider TxOptionsProvider) CommandMiddleware {
	if factory == nil {
		panic("middleware: uow factory required")
	}
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			if selfManaged(cmd) {
				return next.Dispatch(ctx, cmd)
			}
			var opts uow.TxOptions
			if optsProvider != nil {
				opts = optsProvider(cmd)
			}
			return runInUnit(ctx, factory, opts, func(ctx context.Context) (any, error) {
				return next.Dispatch(ctx, cmd)
			})
		})
	}
}

func runInUnit(ctx context.Context, factory uow.UoWFactory, opts uow.TxOptions, fn func(ctx context.Context) (any, error)) (res any, err error) {
	unit, err := factory.Begin(ctx, opts)
	if err != nil {
		return nil, err
	}
	ctx = uow.Bind(ctx, unit)
	done := false
	defer func() {
		if done {
			return
		}
		rbErr := unit.Rollback(ctx)
		if p := recover(); p != nil {
			panic(p)
		}
		if rbErr != nil {
			err = errors.Join(err, rbErr)
		}
	}()

	res, err = fn(ctx)
	if err != nil {
		return nil, err
	}
	if err = unit.Commit(ctx); err != nil {
		return nil, err
	}
	done = true
	return res, nil
}
