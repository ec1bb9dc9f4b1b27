package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/subscription-service/internal/domain"
)

// UserEventRepository appends to the workspace event log.
type UserEventRepository interface {
	// AppendBatch is at-least-once and idempotent on message id; replaying
	// a batch never duplicates rows.
	AppendBatch(ctx context.Context, workspaceID string, events []domain.UserEvent) error
}

type userEventRepository struct {
	pool *pgxpool.Pool
}

// NewUserEventRepository instantiates repository.
func NewUserEventRepository(pool *pgxpool.Pool) UserEventRepository {
	return &userEventRepository{pool: pool}
}

func (r *userEventRepository) AppendBatch(ctx context.Context, workspaceID string, events []domain.UserEvent) error {
	if len(events) == 0 {
		return nil
	}

	const query = `
        INSERT INTO user_events (workspace_id, message_id, user_id, event_type, event, properties, event_time)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        ON CONFLICT (workspace_id, message_id) DO NOTHING`

	batch := &pgx.Batch{}
	for _, event := range events {
		properties, err := json.Marshal(event.Properties)
		if err != nil {
			return err
		}
		batch.Queue(query,
			workspaceID,
			event.MessageID,
			event.UserID,
			event.EventType,
			event.Event,
			properties,
			event.EventTime,
		)
	}

	results := r.pool.SendBatch(ctx, batch)
	for range events {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return err
		}
	}
	return results.Close()
}
