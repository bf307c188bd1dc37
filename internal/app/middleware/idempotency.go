package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"reflect"
	"time"

	"golang.org/x/sync/singleflight"

	"hotelbooking/internal/app/commands"
)

// IdempotentCommand is implemented by commands whose result is replayed when
// the same key arrives again.
type IdempotentCommand interface {
	commands.Command
	IdempotencyKey() string
	// ResultPrototype returns a fresh pointer the stored result decodes into.
	ResultPrototype() any
}

// IdempotencyRecord is a stored successful result. Command pins the key to
// the command that first used it.
type IdempotencyRecord struct {
	Key        string
	Command    string
	Payload    []byte
	OccurredAt time.Time
}

type IdempotencyStore interface {
	Get(ctx context.Context, key string) (IdempotencyRecord, bool, error)
	Save(ctx context.Context, rec IdempotencyRecord) error
}

type ResultCodec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, out any) error
}

type JSONResultCodec struct{}

func (JSONResultCodec) Encode(v any) ([]byte, error)      { return json.Marshal(v) }
func (JSONResultCodec) Decode(data []byte, out any) error { return json.Unmarshal(data, out) }

var (
	errMissingPrototype     = errors.New("middleware: idempotent command requires result prototype")
	ErrIdempotencyKeyReused = errors.New("middleware: idempotency key already used by another command")
)

type idempotency struct {
	store  IdempotencyStore
	codec  ResultCodec
	next   commandFunc
	flight singleflight.Group
	now    func() time.Time
	logger *slog.Logger
}

// Idempotency replays the stored result of a previously successful command
// with the same key. Concurrent dispatches of one key share a single
// execution. Failures are never stored so a client may retry them.
func Idempotency(store IdempotencyStore, codec ResultCodec, logger *slog.Logger) CommandMiddleware {
	if store == nil {
		panic("middleware: idempotency store required")
	}
	if codec == nil {
		codec = JSONResultCodec{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return func(next commands.Bus) commands.Bus {
		m := &idempotency{store: store, codec: codec, next: next.Dispatch, now: time.Now, logger: logger}
		return commandFunc(m.dispatch)
	}
}

func (m *idempotency) dispatch(ctx context.Context, cmd commands.Command) (any, error) {
	idCmd, ok := cmd.(IdempotentCommand)
	if !ok || idCmd.IdempotencyKey() == "" {
		return m.next(ctx, cmd)
	}
	key := idCmd.IdempotencyKey()
	out, err, _ := m.flight.Do(cmd.Key()+"\x00"+key, func() (any, error) {
		if res, hit, err := m.replay(ctx, idCmd, key); hit || err != nil {
			return res, err
		}
		res, err := m.next(ctx, cmd)
		if err != nil {
			return nil, err
		}
		// the command already took effect; a lost record only costs replay
		if err := m.remember(ctx, key, cmd.Key(), res); err != nil {
			m.logger.WarnContext(ctx, "idempotency record not saved", "command", cmd.Key(), "key", key, "error", err)
		}
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (m *idempotency) replay(ctx context.Context, cmd IdempotentCommand, key string) (any, bool, error) {
	rec, found, err := m.store.Get(ctx, key)
	if err != nil || !found {
		return nil, false, err
	}
	if rec.Command != "" && rec.Command != cmd.Key() {
		return nil, true, ErrIdempotencyKeyReused
	}
	if len(rec.Payload) == 0 {
		return nil, true, nil
	}
	proto := cmd.ResultPrototype()
	if proto == nil {
		return nil, true, errMissingPrototype
	}
	if err := m.codec.Decode(rec.Payload, proto); err != nil {
		return nil, true, err
	}
	return derefPrototype(proto), true, nil
}

func (m *idempotency) remember(ctx context.Context, key, command string, result any) error {
	rec := IdempotencyRecord{Key: key, Command: command, OccurredAt: m.now().UTC()}
	if result != nil {
		payload, err := m.codec.Encode(result)
		if err != nil {
			return err
		}
		rec.Payload = payload
	}
	return m.store.Save(ctx, rec)
}

// derefPrototype keeps pointer prototypes as pointers so replayed results
// have the same dynamic type as fresh ones.
func derefPrototype(proto any) any {
	rv := reflect.ValueOf(proto)
	if rv.Kind() == reflect.Ptr && !rv.IsNil() {
		return rv.Interface()
	}
	return proto
}
