package outbox

import (
	"context"
	"time"
)

const (
	StateNew     = "NEW"
	StateClaimed = "CLAIMED"
	StateSent    = "SENT"
	StateFailed  = "FAILED"
)

// EventDocument is one relayable outbox record with its delivery state.
type EventDocument struct {
	ID          string
	Name        string
	Payload     []byte
	OccurredAt  time.Time
	Aggregate   string
	Headers     map[string]string
	State       string
	Attempts    int
	NextAttempt time.Time
	ClaimedBy   string
	ClaimedAt   time.Time
	SentAt      time.Time
	LastError   string
}

// Store is the relay side of an outbox. Claim returns nil when nothing is due.
type Store interface {
	Claim(ctx context.Context, workerID string) (*EventDocument, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error
}
