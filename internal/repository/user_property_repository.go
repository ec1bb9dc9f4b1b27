package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// UserPropertyRepository resolves users from property assignments without a
// session.
type UserPropertyRepository interface {
	// FindUserByValue returns the user whose assignment for propertyName
	// exactly matches value. value must already be canonically encoded the
	// same way the write path encodes it.
	FindUserByValue(ctx context.Context, workspaceID, propertyName, value string) (string, error)
}

type userPropertyRepository struct {
	pool *pgxpool.Pool
}

// NewUserPropertyRepository instantiates repository.
func NewUserPropertyRepository(pool *pgxpool.Pool) UserPropertyRepository {
	return &userPropertyRepository{pool: pool}
}

func (r *userPropertyRepository) FindUserByValue(ctx context.Context, workspaceID, propertyName, value string) (string, error) {
	const query = `
        SELECT upa.user_id
        FROM user_property_assignments upa
        JOIN user_properties up ON up.id = upa.user_property_id
        WHERE upa.workspace_id=$1 AND up.name=$2 AND upa.value=$3
        LIMIT 1`
	var userID string
	if err := r.pool.QueryRow(ctx, query, workspaceID, propertyName, value).Scan(&userID); err != nil {
		return "", err
	}
	return userID, nil
}
