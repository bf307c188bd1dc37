// Package outbox turns booking domain events into records that are stored
// with the booking rows and relayed to the broker after commit.
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"hotelbooking/internal/domain/shared/events"
)

// EventRecord is one stored event. Aggregate is the booking id and doubles
// as the broker partition key, so events of one booking stay ordered.
type EventRecord struct {
	ID         string
	Name       string
	Payload    []byte
	OccurredAt time.Time
	Aggregate  string
	Headers    map[string]string
}

type Outbox interface {
	Add(ctx context.Context, record EventRecord) error
	Flush(ctx context.Context) error
}

type EventEncoder interface {
	Encode(ev events.DomainEvent) (EventRecord, error)
}

var ErrMissingAggregate = errors.New("outbox: event has no aggregate id")

// JSONEventEncoder marshals the event itself as the payload.
type JSONEventEncoder struct {
	IDGenerator func() string
}

func (e JSONEventEncoder) Encode(ev events.DomainEvent) (EventRecord, error) {
	if ev.AggregateID() == "" {
		return EventRecord{}, fmt.Errorf("%w: %s", ErrMissingAggregate, ev.EventName())
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return EventRecord{}, fmt.Errorf("outbox: encode %s: %w", ev.EventName(), err)
	}
	newID := e.IDGenerator
	if newID == nil {
		newID = func() string { return "evt-" + uuid.NewString() }
	}
	return EventRecord{
		ID:         newID(),
		Name:       ev.EventName(),
		Payload:    payload,
		OccurredAt: ev.OccurredAt().UTC(),
		Aggregate:  ev.AggregateID(),
		Headers:    map[string]string{"event-name": ev.EventName()},
	}, nil
}

// RecordDomainEvents encodes evs in order and adds them to box. With a unit
// bound to ctx the records commit together with it.
func RecordDomainEvents(ctx context.Context, box Outbox, encoder EventEncoder, evs []events.DomainEvent) error {
	if box == nil || len(evs) == 0 {
		return nil
	}
	if encoder == nil {
		encoder = JSONEventEncoder{}
	}
	for _, ev := range evs {
		rec, err := encoder.Encode(ev)
		if err != nil {
			return err
		}
		if err := box.Add(ctx, rec); err != nil {
			return fmt.Errorf("outbox: add %s for %s: %w", rec.Name, rec.Aggregate, err)
		}
	}
	return nil
}
