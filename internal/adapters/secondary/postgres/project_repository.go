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

// ProjectRepository is the secondary adapter for project persistence.
type ProjectRepository struct {
	pool *pgxpool.Pool
}

var _ ports.ProjectRepository = (*ProjectRepository)(nil)

// NewProjectRepository creates a new project repository.
func NewProjectRepository(pool *pgxpool.Pool) ports.ProjectRepository {
	return &ProjectRepository{pool: pool}
}

const projectColumns = `id, name, owner_id, created_at, updated_at`

func scanProject(row pgx.Row) (*domain.Project, error) {
	var project domain.Project
	err := row.Scan(
		&project.ID,
		&project.Name,
		&project.OwnerID,
		&project.CreatedAt,
		&project.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrProjectNotFound
		}
		return nil, err
	}
	return &project, nil
}

// Create persists a new project entity.
func (r *ProjectRepository) Create(ctx context.Context, project *domain.Project) (*domain.Project, error) {
	row := GetDBTX(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO projects (id, name, owner_id, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING `+projectColumns,
		project.ID, project.Name, project.OwnerID, project.CreatedAt,
	)
	return scanProject(row)
}

// GetByID fetches a project by its ID.
func (r *ProjectRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Project, error) {
	row := GetDBTX(ctx, r.pool).QueryRow(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = $1`, id)
	return scanProject(row)
}

// Update persists changes to an existing project.
func (r *ProjectRepository) Update(ctx context.Context, project *domain.Project) (*domain.Project, error) {
	row := GetDBTX(ctx, r.pool).QueryRow(ctx, `
		UPDATE projects
		SET name = $2, updated_at = $3
		WHERE id = $1
		RETURNING `+projectColumns,
		project.ID, project.Name, project.UpdatedAt,
	)
	return scanProject(row)
}

// Delete removes a project. Groups and tasks cascade at the store level.
func (r *ProjectRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := GetDBTX(ctx, r.pool).Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrProjectNotFound
	}
	return nil
}
