package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hotelbooking/internal/domain/shared/events"
)

type reserved struct {
	BookingID string    `json:"booking_id"`
	At        time.Time `json:"at"`
}

func (e reserved) EventName() string     { return "booking.reserved" }
func (e reserved) AggregateID() string   { return e.BookingID }
func (e reserved) OccurredAt() time.Time { return e.At }

type sliceOutbox struct {
	records []EventRecord
	err     error
}

func (o *sliceOutbox) Add(_ context.Context, rec EventRecord) error {
	if o.err != nil {
		return o.err
	}
	o.records = append(o.records, rec)
	return nil
}

func (o *sliceOutbox) Flush(context.Context) error { return nil }

func TestRecordDomainEventsKeepsOrder(t *testing.T) {
	at := time.Date(2030, 1, 1, 10, 0, 0, 0, time.FixedZone("ICT", 7*3600))
	box := &sliceOutbox{}
	n := 0
	enc := JSONEventEncoder{IDGenerator: func() string { n++; return "evt-" + string(rune('0'+n)) }}

	err := RecordDomainEvents(context.Background(), box, enc, []events.DomainEvent{
		reserved{BookingID: "b-1", At: at},
		reserved{BookingID: "b-2", At: at},
	})
	require.NoError(t, err)
	require.Len(t, box.records, 2)
	assert.Equal(t, "evt-1", box.records[0].ID)
	assert.Equal(t, "b-1", box.records[0].Aggregate)
	assert.Equal(t, "b-2", box.records[1].Aggregate)
	assert.Equal(t, time.UTC, box.records[0].OccurredAt.Location())
	assert.Equal(t, "booking.reserved", box.records[0].Headers["event-name"])
	assert.JSONEq(t, `{"booking_id":"b-1","at":"2030-01-01T10:00:00+07:00"}`, string(box.records[0].Payload))
}

func TestRecordDomainEventsErrors(t *testing.T) {
	err := RecordDomainEvents(context.Background(), &sliceOutbox{}, nil, []events.DomainEvent{reserved{}})
	require.ErrorIs(t, err, ErrMissingAggregate)

	boom := errors.New("boom")
	err = RecordDomainEvents(context.Background(), &sliceOutbox{err: boom}, nil, []events.DomainEvent{reserved{BookingID: "b-1"}})
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "b-1")

	require.NoError(t, RecordDomainEvents(context.Background(), nil, nil, []events.DomainEvent{reserved{BookingID: "b-1"}}))
}

func TestDefaultEventIDsAreUnique(t *testing.T) {
	a, err := JSONEventEncoder{}.Encode(reserved{BookingID: "b-1"})
	require.NoError(t, err)
	b, err := JSONEventEncoder{}.Encode(reserved{BookingID: "b-1"})
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Contains(t, a.ID, "evt-")
}
