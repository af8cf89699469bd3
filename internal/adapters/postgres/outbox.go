package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/robertarktes/gigconnect/internal/domain"
	"github.com/robertarktes/gigconnect/internal/outbox"
)

// InsertOutbox stores ev in the caller's transaction. The event id is the dedupe key.
func (r *Repository) InsertOutbox(ctx context.Context, tx pgx.Tx, ev domain.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "encode event")
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload_json, created_at, status, dedupe_key)
		VALUES ($1, $2, $3, $4, $5, $6, 'NEW', $7)
	`, ev.ID, ev.AggregateType, ev.AggregateID, string(ev.Type), payload, ev.OccurredAt, ev.ID.String())
	return err
}

// ProcessOutbox locks up to limit unpublished records, oldest first, and hands them to publish.
// The ids publish returns are marked published in the same transaction, so a crash before commit
// republishes the batch and consumers dedupe on the message id.
func (r *Repository) ProcessOutbox(ctx context.Context, limit int, publish func(ctx context.Context, recs []outbox.Record) []uuid.UUID) (int, error) {
	var published int
	err := r.WithTx(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT id, aggregate_type, aggregate_id, event_type, payload_json, created_at, published_at, status, dedupe_key
			FROM outbox WHERE status = 'NEW' ORDER BY created_at ASC, id LIMIT $1 FOR UPDATE SKIP LOCKED
		`, limit)
		if err != nil {
			return err
		}
		var recs []outbox.Record
		for rows.Next() {
			var rec outbox.Record
			if err := rows.Scan(&rec.ID, &rec.AggregateType, &rec.AggregateID, &rec.EventType, &rec.Payload, &rec.CreatedAt, &rec.PublishedAt, &rec.Status, &rec.DedupeKey); err != nil {
				rows.Close()
				return err
			}
			recs = append(recs, rec)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		if len(recs) == 0 {
			return nil
		}

		ids := publish(ctx, recs)
		if len(ids) == 0 {
			return nil
		}
		result, err := tx.Exec(ctx, `
			UPDATE outbox SET status = 'PUBLISHED', published_at = $2 WHERE id = ANY($1)
		`, ids, time.Now().UTC())
		if err != nil {
			return err
		}
		published = int(result.RowsAffected())
		return nil
	})
	return published, err
}
