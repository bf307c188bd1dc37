package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	appoutbox "hotelbooking/internal/app/outbox"
	infraoutbox "hotelbooking/internal/infra/outbox"
)

// OutboxStore keeps event records in the outbox_events table. Add writes
// through the unit's transaction when one is bound to the context, so events
// commit or roll back with the booking rows.
type OutboxStore struct {
	DB *gorm.DB
}

func (s OutboxStore) Add(ctx context.Context, record appoutbox.EventRecord) error {
	db := s.DB
	if tx, ok := txFromContext(ctx); ok {
		db = tx
	}
	headers := ""
	if len(record.Headers) > 0 {
		raw, err := json.Marshal(record.Headers)
		if err != nil {
			return err
		}
		headers = string(raw)
	}
	now := time.Now().UTC()
	rec := outboxRecord{
		ID:          record.ID,
		Name:        record.Name,
		Payload:     record.Payload,
		OccurredAt:  record.OccurredAt.UTC(),
		Aggregate:   record.Aggregate,
		Headers:     headers,
		State:       infraoutbox.StateNew,
		NextAttempt: now,
		CreatedAt:   now,
	}
	return mapError(db.WithContext(ctx).Create(&rec).Error)
}

// Flush is a no-op; rows become visible when the transaction commits.
func (s OutboxStore) Flush(ctx context.Context) error {
	return nil
}

func (s OutboxStore) Claim(ctx context.Context, workerID string) (*infraoutbox.EventDocument, error) {
	var claimed *outboxRecord
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		var rec outboxRecord
		err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("state IN ? AND next_attempt_at <= ?", []string{infraoutbox.StateNew, infraoutbox.StateFailed}, now).
			Order("next_attempt_at ASC").
			Take(&rec).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		res := tx.Model(&outboxRecord{}).
			Where("id = ? AND state = ?", rec.ID, rec.State).
			Updates(map[string]any{
				"state":      infraoutbox.StateClaimed,
				"claimed_by": workerID,
				"claimed_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		rec.State = infraoutbox.StateClaimed
		rec.ClaimedBy = workerID
		rec.ClaimedAt = &now
		claimed = &rec
		return nil
	})
	if err != nil || claimed == nil {
		return nil, mapError(err)
	}
	return documentFromRecord(*claimed), nil
}

func (s OutboxStore) MarkSent(ctx context.Context, id string) error {
	return mapError(s.DB.WithContext(ctx).
		Model(&outboxRecord{}).
		Where("id = ?", id).
		Updates(map[string]any{"state": infraoutbox.StateSent, "sent_at": time.Now().UTC()}).Error)
}

func (s OutboxStore) MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error {
	return mapError(s.DB.WithContext(ctx).
		Model(&outboxRecord{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"state":           infraoutbox.StateFailed,
			"next_attempt_at": next.UTC(),
			"last_error":      errMsg,
			"attempts":        gorm.Expr("attempts + 1"),
		}).Error)
}

func documentFromRecord(rec outboxRecord) *infraoutbox.EventDocument {
	headers := map[string]string{}
	if rec.Headers != "" {
		_ = json.Unmarshal([]byte(rec.Headers), &headers)
	}
	doc := &infraoutbox.EventDocument{
		ID:          rec.ID,
		Name:        rec.Name,
		Payload:     rec.Payload,
		OccurredAt:  rec.OccurredAt.UTC(),
		Aggregate:   rec.Aggregate,
		Headers:     headers,
		State:       rec.State,
		Attempts:    rec.Attempts,
		NextAttempt: rec.NextAttempt.UTC(),
		ClaimedBy:   rec.ClaimedBy,
		LastError:   rec.LastError,
	}
	if rec.ClaimedAt != nil {
		doc.ClaimedAt = rec.ClaimedAt.UTC()
	}
	if rec.SentAt != nil {
		doc.SentAt = rec.SentAt.UTC()
	}
	return doc
}

var _ appoutbox.Outbox = OutboxStore{}
var _ infraoutbox.Store = OutboxStore{}
