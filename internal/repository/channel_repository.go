package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/subscription-service/internal/domain"
)

// ChannelRepository resolves messaging channels registered for a workspace.
type ChannelRepository interface {
	FindByName(ctx context.Context, workspaceID, name string) (*domain.Channel, error)
}

type channelRepository struct {
	pool *pgxpool.Pool
}

// NewChannelRepository instantiates repository.
func NewChannelRepository(pool *pgxpool.Pool) ChannelRepository {
	return &channelRepository{pool: pool}
}

func (r *channelRepository) FindByName(ctx context.Context, workspaceID, name string) (*domain.Channel, error) {
	const query = `SELECT id, workspace_id, name FROM channels WHERE workspace_id=$1 AND name=$2`
	var channel domain.Channel
	if err := r.pool.QueryRow(ctx, query, workspaceID, name).Scan(
		&channel.ID,
		&channel.WorkspaceID,
		&channel.Name,
	); err != nil {
		return nil, err
	}
	return &channel, nil
}
