package domain

import (
	"time"

	"github.com/google/uuid"
	apperrors "github.com/hiveboard/taskboard-backend/internal/core/errors"
)

// Project is the top-level board entity. Every task group and task
// belongs to exactly one project.
type Project struct {
	ID        uuid.UUID
	Name      string
	OwnerID   uuid.UUID
	CreatedAt time.Time
	UpdatedAt *time.Time
}

// NewProject is a factory function to create a valid new project.
func NewProject(name string, ownerID uuid.UUID) (*Project, error) {
	if name == "" {
		return nil, apperrors.ErrNameRequired
	}
	if len(name) > 255 {
		return nil, apperrors.ErrNameTooLong
	}
	if ownerID == uuid.Nil {
		return nil, apperrors.ErrOwnerRequired
	}

	return &Project{
		ID:        uuid.New(),
		Name:      name,
		OwnerID:   ownerID,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Rename changes the project's name.
func (p *Project) Rename(name string) error {
	if name == "" {
		return apperrors.ErrNameRequired
	}
	if len(name) > 255 {
		return apperrors.ErrNameTooLong
	}
	p.Name = name
	now := time.Now().UTC()
	p.UpdatedAt = &now
	return nil
}
