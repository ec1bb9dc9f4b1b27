package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/subscription-service/internal/domain"
)

// SegmentAssignmentRepository encapsulates segment membership persistence.
type SegmentAssignmentRepository interface {
	UpsertBatch(ctx context.Context, assignments []domain.SegmentAssignment) error
	ListForUser(ctx context.Context, workspaceID, userID string, segmentIDs []string) (map[string]bool, error)
}

type segmentAssignmentRepository struct {
	pool *pgxpool.Pool
}

// NewSegmentAssignmentRepository instantiates repository.
func NewSegmentAssignmentRepository(pool *pgxpool.Pool) SegmentAssignmentRepository {
	return &segmentAssignmentRepository{pool: pool}
}

// UpsertBatch applies membership writes keyed on the unique
// (workspace, user, segment) triple; in_segment is last-write-wins, which
// makes retries of the same batch safe.
func (r *segmentAssignmentRepository) UpsertBatch(ctx context.Context, assignments []domain.SegmentAssignment) error {
	if len(assignments) == 0 {
		return nil
	}

	const query = `
        INSERT INTO segment_assignments (workspace_id, user_id, segment_id, in_segment)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (workspace_id, user_id, segment_id)
        DO UPDATE SET in_segment=EXCLUDED.in_segment, updated_at=NOW()`

	batch := &pgx.Batch{}
	for _, assignment := range assignments {
		batch.Queue(query,
			assignment.WorkspaceID,
			assignment.UserID,
			assignment.SegmentID,
			assignment.InSegment,
		)
	}

	results := r.pool.SendBatch(ctx, batch)
	for range assignments {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return err
		}
	}
	return results.Close()
}

// ListForUser returns in_segment per segment id; segments without a row are
// simply absent from the map.
func (r *segmentAssignmentRepository) ListForUser(ctx context.Context, workspaceID, userID string, segmentIDs []string) (map[string]bool, error) {
	membership := make(map[string]bool, len(segmentIDs))
	if len(segmentIDs) == 0 {
		return membership, nil
	}

	const query = `
        SELECT segment_id, in_segment FROM segment_assignments
        WHERE workspace_id=$1 AND user_id=$2 AND segment_id = ANY($3)`
	rows, err := r.pool.Query(ctx, query, workspaceID, userID, segmentIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			segmentID string
			inSegment bool
		)
		if err := rows.Scan(&segmentID, &inSegment); err != nil {
			return nil, err
		}
		membership[segmentID] = inSegment
	}
	return membership, rows.Err()
}
