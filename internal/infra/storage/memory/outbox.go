package memory

import (
	"context"
	"sync"
	"time"

	appoutbox "hotelbooking/internal/app/outbox"
	"hotelbooking/internal/app/uow"
	infraoutbox "hotelbooking/internal/infra/outbox"
)

// Outbox queues event records for the relay worker. Records added inside a
// Unit become visible only when that unit commits.
type Outbox struct {
	mu      sync.Mutex
	records []*infraoutbox.EventDocument
}

func NewOutbox() *Outbox {
	return &Outbox{}
}

func (o *Outbox) Add(ctx context.Context, record appoutbox.EventRecord) error {
	if unit, ok := uow.FromContext(ctx); ok {
		if mu, ok := unit.(*Unit); ok {
			mu.stageEvent(record)
			return nil
		}
	}
	o.enqueue([]appoutbox.EventRecord{record})
	return nil
}

// Flush drops records that were already relayed.
func (o *Outbox) Flush(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	kept := o.records[:0]
	for _, doc := range o.records {
		if doc.State != infraoutbox.StateSent {
			kept = append(kept, doc)
		}
	}
	o.records = kept
	return nil
}

func (o *Outbox) enqueue(records []appoutbox.EventRecord) {
	now := time.Now().UTC()
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, rec := range records {
		o.records = append(o.records, &infraoutbox.EventDocument{
			ID:          rec.ID,
			Name:        rec.Name,
			Payload:     rec.Payload,
			OccurredAt:  rec.OccurredAt,
			Aggregate:   rec.Aggregate,
			Headers:     rec.Headers,
			State:       infraoutbox.StateNew,
			NextAttempt: now,
		})
	}
}

func (o *Outbox) Claim(ctx context.Context, workerID string) (*infraoutbox.EventDocument, error) {
	now := time.Now().UTC()
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, doc := range o.records {
		if (doc.State == infraoutbox.StateNew || doc.State == infraoutbox.StateFailed) && !doc.NextAttempt.After(now) {
			doc.State = infraoutbox.StateClaimed
			doc.ClaimedBy = workerID
			doc.ClaimedAt = now
			cp := *doc
			return &cp, nil
		}
	}
	return nil, nil
}

func (o *Outbox) MarkSent(ctx context.Context, id string) error {
	o.update(id, func(doc *infraoutbox.EventDocument) {
		doc.State = infraoutbox.StateSent
		doc.SentAt = time.Now().UTC()
	})
	return nil
}

func (o *Outbox) MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error {
	o.update(id, func(doc *infraoutbox.EventDocument) {
		doc.State = infraoutbox.StateFailed
		doc.NextAttempt = next
		doc.LastError = errMsg
		doc.Attempts++
	})
	return nil
}

// Pending counts records not yet relayed.
func (o *Outbox) Pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for _, doc := range o.records {
		if doc.State != infraoutbox.StateSent {
			n++
		}
	}
	return n
}

func (o *Outbox) update(id string, fn func(doc *infraoutbox.EventDocument)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, doc := range o.records {
		if doc.ID == id {
			fn(doc)
			return
		}
	}
}

var _ appoutbox.Outbox = (*Outbox)(nil)
var _ infraoutbox.Store = (*Outbox)(nil)
