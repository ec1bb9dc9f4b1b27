package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/subscription-service/internal/domain"
)

// SubscriptionGroupRepository encapsulates subscription group persistence.
type SubscriptionGroupRepository interface {
	UpsertWithSegment(ctx context.Context, group *domain.SubscriptionGroup, segment *domain.Segment) error
	GetByID(ctx context.Context, workspaceID, id string) (*domain.SubscriptionGroup, error)
	ListByWorkspace(ctx context.Context, workspaceID string) ([]domain.SubscriptionGroup, error)
}

type subscriptionGroupRepository struct {
	pool *pgxpool.Pool
}

// NewSubscriptionGroupRepository instantiates repository.
func NewSubscriptionGroupRepository(pool *pgxpool.Pool) SubscriptionGroupRepository {
	return &subscriptionGroupRepository{pool: pool}
}

// UpsertWithSegment writes the group and its backing segment in one
// transaction so the two rows never diverge. The segment insert is a no-op
// on conflict: an internal segment's definition is fixed at creation.
func (r *subscriptionGroupRepository) UpsertWithSegment(ctx context.Context, group *domain.SubscriptionGroup, segment *domain.Segment) error {
	definition, err := json.Marshal(segment.Definition)
	if err != nil {
		return err
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const groupQuery = `
        INSERT INTO subscription_groups (id, workspace_id, name, type)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, type=EXCLUDED.type, updated_at=NOW()
        RETURNING created_at, updated_at`
	if err := tx.QueryRow(ctx, groupQuery,
		group.ID,
		group.WorkspaceID,
		group.Name,
		group.Type,
	).Scan(&group.CreatedAt, &group.UpdatedAt); err != nil {
		return err
	}

	const segmentQuery = `
        INSERT INTO segments (id, workspace_id, name, definition)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (workspace_id, name) DO NOTHING`
	if _, err := tx.Exec(ctx, segmentQuery,
		segment.ID,
		segment.WorkspaceID,
		segment.Name,
		definition,
	); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *subscriptionGroupRepository) GetByID(ctx context.Context, workspaceID, id string) (*domain.SubscriptionGroup, error) {
	const query = `
        SELECT id, workspace_id, name, type, created_at, updated_at
        FROM subscription_groups WHERE workspace_id=$1 AND id=$2`
	var group domain.SubscriptionGroup
	if err := r.pool.QueryRow(ctx, query, workspaceID, id).Scan(
		&group.ID,
		&group.WorkspaceID,
		&group.Name,
		&group.Type,
		&group.CreatedAt,
		&group.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &group, nil
}

func (r *subscriptionGroupRepository) ListByWorkspace(ctx context.Context, workspaceID string) ([]domain.SubscriptionGroup, error) {
	const query = `
        SELECT id, workspace_id, name, type, created_at, updated_at
        FROM subscription_groups WHERE workspace_id=$1 ORDER BY name ASC`
	rows, err := r.pool.Query(ctx, query, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.SubscriptionGroup
	for rows.Next() {
		var group domain.SubscriptionGroup
		if err := rows.Scan(
			&group.ID,
			&group.WorkspaceID,
			&group.Name,
			&group.Type,
			&group.CreatedAt,
			&group.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, group)
	}
	return result, rows.Err()
}
