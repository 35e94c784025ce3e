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

// TaskRepository is the secondary adapter for task persistence.
type TaskRepository struct {
	pool *pgxpool.Pool
}

var _ ports.TaskRepository = (*TaskRepository)(nil)

// NewTaskRepository creates a new task repository.
func NewTaskRepository(pool *pgxpool.Pool) ports.TaskRepository {
	return &TaskRepository{pool: pool}
}

const taskColumns = `id, group_id, project_id, title, description, completed, assignee_id, position, created_at, updated_at`

func scanTask(row pgx.Row) (*domain.Task, error) {
	var task domain.Task
	err := row.Scan(
		&task.ID,
		&task.GroupID,
		&task.ProjectID,
		&task.Title,
		&task.Description,
		&task.Completed,
		&task.AssigneeID,
		&task.Position,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrTaskNotFound
		}
		return nil, err
	}
	return &task, nil
}

// Create persists a new task entity.
func (r *TaskRepository) Create(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	row := GetDBTX(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO tasks (id, group_id, project_id, title, description, completed, assignee_id, position, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+taskColumns,
		task.ID, task.GroupID, task.ProjectID, task.Title, task.Description,
		task.Completed, task.AssigneeID, task.Position, task.CreatedAt,
	)
	return scanTask(row)
}

// GetByID fetches a task by its ID.
func (r *TaskRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	row := GetDBTX(ctx, r.pool).QueryRow(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)
	return scanTask(row)
}

// Update persists changes to an existing task.
func (r *TaskRepository) Update(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	row := GetDBTX(ctx, r.pool).QueryRow(ctx, `
		UPDATE tasks
		SET group_id = $2, title = $3, description = $4, completed = $5,
		    assignee_id = $6, position = $7, updated_at = $8
		WHERE id = $1
		RETURNING `+taskColumns,
		task.ID, task.GroupID, task.Title, task.Description,
		task.Completed, task.AssigneeID, task.Position, task.UpdatedAt,
	)
	return scanTask(row)
}

// Delete removes a task.
func (r *TaskRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := GetDBTX(ctx, r.pool).Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrTaskNotFound
	}
	return nil
}

// ListByProject returns all tasks on a project's board in group order.
func (r *TaskRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*domain.Task, error) {
	rows, err := GetDBTX(ctx, r.pool).Query(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE project_id = $1 ORDER BY group_id, position, created_at`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTasks(rows)
}

// ListByGroup returns all tasks in a group in board order.
func (r *TaskRepository) ListByGroup(ctx context.Context, groupID uuid.UUID) ([]*domain.Task, error) {
	rows, err := GetDBTX(ctx, r.pool).Query(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE group_id = $1 ORDER BY position, created_at`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTasks(rows)
}

func collectTasks(rows pgx.Rows) ([]*domain.Task, error) {
	tasks := make([]*domain.Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}
