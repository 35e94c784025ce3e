package domain

import (
	"time"

	"github.com/google/uuid"
	apperrors "github.com/hiveboard/taskboard-backend/internal/core/errors"
)

// Task is the core board entity. A task belongs to exactly one task
// group, and through it to exactly one project.
type Task struct {
	ID          uuid.UUID
	GroupID     uuid.UUID
	ProjectID   uuid.UUID
	Title       string
	Description string
	Completed   bool
	AssigneeID  *uuid.UUID
	Position    int32
	CreatedAt   time.Time
	UpdatedAt   *time.Time
}

// TaskParams carries the validated input for creating a task.
type TaskParams struct {
	GroupID     uuid.UUID
	ProjectID   uuid.UUID
	Title       string
	Description string
	AssigneeID  *uuid.UUID
	Position    int32
}

// NewTask is a factory function to create a valid new task.
func NewTask(params TaskParams) (*Task, error) {
	if params.Title == "" {
		return nil, apperrors.ErrTitleRequired
	}
	if len(params.Title) > 255 {
		return nil, apperrors.ErrTitleTooLong
	}
	if len(params.Description) > 10000 {
		return nil, apperrors.ErrDescriptionTooLong
	}
	if params.GroupID == uuid.Nil {
		return nil, apperrors.ErrGroupIDRequired
	}
	if params.ProjectID == uuid.Nil {
		return nil, apperrors.ErrProjectIDRequired
	}

	return &Task{
		ID:          uuid.New(),
		GroupID:     params.GroupID,
		ProjectID:   params.ProjectID,
		Title:       params.Title,
		Description: params.Description,
		AssigneeID:  params.AssigneeID,
		Position:    params.Position,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// Retitle changes the task's title.
func (t *Task) Retitle(title string) error {
	if title == "" {
		return apperrors.ErrTitleRequired
	}
	if len(title) > 255 {
		return apperrors.ErrTitleTooLong
	}
	t.Title = title
	t.touch()
	return nil
}

// SetCompleted marks the task complete or incomplete.
func (t *Task) SetCompleted(completed bool) {
	t.Completed = completed
	t.touch()
}

// Assign sets or clears the task's assignee.
func (t *Task) Assign(assigneeID *uuid.UUID) {
	t.AssigneeID = assigneeID
	t.touch()
}

// MoveTo relocates the task to another group at the given position.
// The destination group must belong to the same project.
func (t *Task) MoveTo(groupID uuid.UUID, position int32) error {
	if groupID == uuid.Nil {
		return apperrors.ErrGroupIDRequired
	}
	t.GroupID = groupID
	t.Position = position
	t.touch()
	return nil
}

// IsAssignedTo reports whether the task is assigned to the given user.
func (t *Task) IsAssignedTo(userID uuid.UUID) bool {
	return t.AssigneeID != nil && *t.AssigneeID == userID
}

func (t *Task) touch() {
	now := time.Now().UTC()
	t.UpdatedAt = &now
}
