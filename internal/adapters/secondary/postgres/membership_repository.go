package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/hiveboard/taskboard-backend/internal/core/ports"
)

// MembershipRepository is the secondary adapter for project membership.
type MembershipRepository struct {
	pool *pgxpool.Pool
}

var _ ports.MembershipRepository = (*MembershipRepository)(nil)

// NewMembershipRepository creates a new membership repository.
func NewMembershipRepository(pool *pgxpool.Pool) ports.MembershipRepository {
	return &MembershipRepository{pool: pool}
}

// IsMember reports whether the user belongs to the project.
func (r *MembershipRepository) IsMember(ctx context.Context, userID, projectID uuid.UUID) (bool, error) {
	var exists bool
	err := GetDBTX(ctx, r.pool).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM project_members WHERE project_id = $1 AND user_id = $2)`,
		projectID, userID,
	).Scan(&exists)
	return exists, err
}

// AddMember enrolls a user in a project. Adding twice is a no-op.
func (r *MembershipRepository) AddMember(ctx context.Context, projectID, userID uuid.UUID) error {
	_, err := GetDBTX(ctx, r.pool).Exec(ctx, `
		INSERT INTO project_members (project_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (project_id, user_id) DO NOTHING`,
		projectID, userID,
	)
	return err
}
