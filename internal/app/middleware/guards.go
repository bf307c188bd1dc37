package middleware

import (
	"context"
	"fmt"

	"hotelbooking/internal/app/commands"
	"hotelbooking/internal/app/queries"
)

// Validator rejects malformed messages before any handler runs.
type Validator interface {
	Validate(ctx context.Context, message any) error
}

// Authorizer rejects messages the caller in ctx may not send.
type Authorizer interface {
	Authorize(ctx context.Context, message any) error
}

// GuardError names the message and the guard that refused it. Err keeps
// its identity for errors.Is and errors.As.
type GuardError struct {
	Guard string
	Key   string
	Err   error
}

func (e *GuardError) Error() string {
	return fmt.Sprintf("%s refused %s: %v", e.Guard, e.Key, e.Err)
}

func (e *GuardError) Unwrap() error { return e.Err }

type check func(ctx context.Context, message any) error

func guardCommands(name string, fn check) CommandMiddleware {
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			if err := fn(ctx, cmd); err != nil {
				return nil, &GuardError{Guard: name, Key: cmd.Key(), Err: err}
			}
			return next.Dispatch(ctx, cmd)
		})
	}
}

func guardQueries(name string, fn check) QueryMiddleware {
	return func(next queries.Bus) queries.Bus {
		return queryFunc(func(ctx context.Context, q queries.Query) (any, error) {
			if err := fn(ctx, q); err != nil {
				return nil, &GuardError{Guard: name, Key: q.Key(), Err: err}
			}
			return next.Ask(ctx, q)
		})
	}
}

func Validation(v Validator) CommandMiddleware {
	if v == nil {
		panic("middleware: validator required")
	}
	return guardCommands("validation", v.Validate)
}

func QueryValidation(v Validator) QueryMiddleware {
	if v == nil {
		panic("middleware: validator required")
	}
	return guardQueries("validation", v.Validate)
}

func Authorization(a Authorizer) CommandMiddleware {
	if a == nil {
		panic("middleware: authorizer required")
	}
	return guardCommands("authorization", a.Authorize)
}

func QueryAuthorization(a Authorizer) QueryMiddleware {
	if a == nil {
		panic("middleware: authorizer required")
	}
	return guardQueries("authorization", a.Authorize)
}
