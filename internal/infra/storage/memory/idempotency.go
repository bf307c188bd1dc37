package memory

import (
	"context"
	"sync"
	"time"

	"hotelbooking/internal/app/middleware"
)

const defaultIdempotencyTTL = 7 * 24 * time.Hour

// IdempotencyStore keeps confirmed results the same way the mongo store
// does: the first record for a key wins and records expire after TTL.
type IdempotencyStore struct {
	TTL time.Duration
	Now func() time.Time

	mu      sync.Mutex
	records map[string]idempotencyEntry
}

type idempotencyEntry struct {
	rec     middleware.IdempotencyRecord
	savedAt time.Time
}

func NewIdempotencyStore() *IdempotencyStore {
	return &IdempotencyStore{TTL: defaultIdempotencyTTL, records: make(map[string]idempotencyEntry)}
}

func (s *IdempotencyStore) Get(_ context.Context, key string) (middleware.IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.records[key]
	if !ok {
		return middleware.IdempotencyRecord{}, false, nil
	}
	if s.expired(entry) {
		delete(s.records, key)
		return middleware.IdempotencyRecord{}, false, nil
	}
	return entry.rec, true, nil
}

func (s *IdempotencyStore) Save(_ context.Context, rec middleware.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.records[rec.Key]; ok && !s.expired(entry) {
		return nil
	}
	s.records[rec.Key] = idempotencyEntry{rec: rec, savedAt: s.now()}
	return nil
}

func (s *IdempotencyStore) expired(entry idempotencyEntry) bool {
	return s.TTL > 0 && s.now().Sub(entry.savedAt) >= s.TTL
}

func (s *IdempotencyStore) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

var _ middleware.IdempotencyStore = (*IdempotencyStore)(nil)
