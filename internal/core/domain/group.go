package domain

import (
	"time"

	"github.com/google/uuid"
	apperrors "github.com/hiveboard/taskboard-backend/internal/core/errors"
)

// TaskGroup is a named list of tasks on a project board (a board column).
type TaskGroup struct {
	ID        uuid.UUID
	ProjectID uuid.UUID
	Name      string
	Position  int32
	CreatedAt time.Time
	UpdatedAt *time.Time
}

// NewTaskGroup is a factory function to create a valid new task group.
func NewTaskGroup(projectID uuid.UUID, name string, position int32) (*TaskGroup, error) {
	if name == "" {
		return nil, apperrors.ErrNameRequired
	}
	if len(name) > 255 {
		return nil, apperrors.ErrNameTooLong
	}
	if projectID == uuid.Nil {
		return nil, apperrors.ErrProjectIDRequired
	}

	return &TaskGroup{
		ID:        uuid.New(),
		ProjectID: projectID,
		Name:      name,
		Position:  position,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Rename changes the group's name.
func (g *TaskGroup) Rename(name string) error {
	if name == "" {
		return apperrors.ErrNameRequired
	}
	if len(name) > 255 {
		return apperrors.ErrNameTooLong
	}
	g.Name = name
	now := time.Now().UTC()
	g.UpdatedAt = &now
	return nil
}
