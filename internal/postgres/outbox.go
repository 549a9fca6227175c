package postgres

import (
	"context"
	"time"

	"github.com/ariefcatur/go-marketplace-settlement/internal/domain"
	"github.com/jackc/pgx/v5"
)

type outboxRepo struct{ tx pgx.Tx }

func (r outboxRepo) Enqueue(ctx context.Context, e domain.OutboxEvent) error {
	_, err := r.tx.Exec(ctx, `
		INSERT INTO outbox_events(id, topic, key, event_type, payload, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)`, e.ID, e.Topic, e.Key, e.EventType, e.Payload, e.CreatedAt)
	return err
}

func (r outboxRepo) LockPending(ctx context.Context, limit int) ([]domain.OutboxEvent, error) {
	rows, err := r.tx.Query(ctx, `
		SELECT id, topic, key, event_type, payload, created_at
		FROM outbox_events
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.OutboxEvent
	for rows.Next() {
		var e domain.OutboxEvent
		if err := rows.Scan(&e.ID, &e.Topic, &e.Key, &e.EventType, &e.Payload, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r outboxRepo) MarkPublished(ctx context.Context, ids []string, at time.Time) error {
	for _, id := range ids {
		if _, err := r.tx.Exec(ctx, `UPDATE outbox_events SET published_at=$2 WHERE id=$1`, id, at); err != nil {
			return err
		}
	}
	return nil
}
