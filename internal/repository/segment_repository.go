package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/subscription-service/internal/domain"
)

// SegmentRepository reads internal segments backing subscription groups.
type SegmentRepository interface {
	FindByNames(ctx context.Context, workspaceID string, names []string) ([]domain.Segment, error)
}

type segmentRepository struct {
	pool *pgxpool.Pool
}

// NewSegmentRepository instantiates repository.
func NewSegmentRepository(pool *pgxpool.Pool) SegmentRepository {
	return &segmentRepository{pool: pool}
}

// FindByNames loads all segments matching names within a workspace in one
// query. Missing names simply produce no row; callers decide how to handle
// the gap.
func (r *segmentRepository) FindByNames(ctx context.Context, workspaceID string, names []string) ([]domain.Segment, error) {
	if len(names) == 0 {
		return nil, nil
	}

	const query = `
        SELECT id, workspace_id, name, definition, created_at, updated_at
        FROM segments WHERE workspace_id=$1 AND name = ANY($2)`
	rows, err := r.pool.Query(ctx, query, workspaceID, names)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Segment
	for rows.Next() {
		var (
			segment       domain.Segment
			definitionRaw []byte
		)
		if err := rows.Scan(
			&segment.ID,
			&segment.WorkspaceID,
			&segment.Name,
			&definitionRaw,
			&segment.CreatedAt,
			&segment.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(definitionRaw, &segment.Definition); err != nil {
			return nil, err
		}
		result = append(result, segment)
	}
	return result, rows.Err()
}
