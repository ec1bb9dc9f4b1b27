package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// SecretRepository stores per-workspace symmetric secrets.
type SecretRepository interface {
	Get(ctx context.Context, workspaceID, name string) (string, error)
	Create(ctx context.Context, workspaceID, name, value string) error
}

type secretRepository struct {
	pool *pgxpool.Pool
}

// NewSecretRepository instantiates repository.
func NewSecretRepository(pool *pgxpool.Pool) SecretRepository {
	return &secretRepository{pool: pool}
}

func (r *secretRepository) Get(ctx context.Context, workspaceID, name string) (string, error) {
	const query = `SELECT value FROM secrets WHERE workspace_id=$1 AND name=$2`
	var value string
	if err := r.pool.QueryRow(ctx, query, workspaceID, name).Scan(&value); err != nil {
		return "", err
	}
	return value, nil
}

// Create stores a secret unless one already exists. Concurrent provisioning
// races resolve to whichever insert landed first; callers re-read after a
// no-op insert.
func (r *secretRepository) Create(ctx context.Context, workspaceID, name, value string) error {
	const query = `
        INSERT INTO secrets (workspace_id, name, value)
        VALUES ($1,$2,$3)
        ON CONFLICT (workspace_id, name) DO NOTHING`
	_, err := r.pool.Exec(ctx, query, workspaceID, name, value)
	return err
}
