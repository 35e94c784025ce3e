package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/hiveboard/taskboard-backend/internal/core/domain"
	apperrors "github.com/hiveboard/taskboard-backend/internal/core/errors"
	"github.com/hiveboard/taskboard-backend/internal/core/ports"
)

// TaskGroupRepository is the secondary adapter for task group persistence.
type TaskGroupRepository struct {
	pool *pgxpool.Pool
}

var _ ports.TaskGroupRepository = (*TaskGroupRepository)(nil)

// NewTaskGroupRepository creates a new task group repository.
func NewTaskGroupRepository(pool *pgxpool.Pool) ports.TaskGroupRepository {
	return &TaskGroupRepository{pool: pool}
}

const groupColumns = `id, project_id, name, position, created_at, updated_at`

func scanGroup(row pgx.Row) (*domain.TaskGroup, error) {
	var group domain.TaskGroup
	err := row.Scan(
		&group.ID,
		&group.ProjectID,
		&group.Name,
		&group.Position,
		&group.CreatedAt,
		&group.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrGroupNotFound
		}
		return nil, err
	}
	return &group, nil
}

// Create persists a new task group entity.
func (r *TaskGroupRepository) Create(ctx context.Context, group *domain.TaskGroup) (*domain.TaskGroup, error) {
	row := GetDBTX(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO task_groups (id, project_id, name, position, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+groupColumns,
		group.ID, group.ProjectID, group.Name, group.Position, group.CreatedAt,
	)
	return scanGroup(row)
}

// GetByID fetches a task group by its ID.
func (r *TaskGroupRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.TaskGroup, error) {
	row := GetDBTX(ctx, r.pool).QueryRow(ctx,
		`SELECT `+groupColumns+` FROM task_groups WHERE id = $1`, id)
	return scanGroup(row)
}

// Update persists changes to an existing task group.
func (r *TaskGroupRepository) Update(ctx context.Context, group *domain.TaskGroup) (*domain.TaskGroup, error) {
	row := GetDBTX(ctx, r.pool).QueryRow(ctx, `
		UPDATE task_groups
		SET name = $2, position = $3, updated_at = $4
		WHERE id = $1
		RETURNING `+groupColumns,
		group.ID, group.Name, group.Position, group.UpdatedAt,
	)
	return scanGroup(row)
}

// Delete removes a task group. Tasks inside it cascade at the store level.
func (r *TaskGroupRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := GetDBTX(ctx, r.pool).Exec(ctx, `DELETE FROM task_groups WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrGroupNotFound
	}
	return nil
}

// ListByProject returns a project's groups in board order.
func (r *TaskGroupRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*domain.TaskGroup, error) {
	rows, err := GetDBTX(ctx, r.pool).Query(ctx,
		`SELECT `+groupColumns+` FROM task_groups WHERE project_id = $1 ORDER BY position, created_at`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	groups := make([]*domain.TaskGroup, 0)
	for rows.Next() {
		group, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, group)
	}
	return groups, rows.Err()
}
