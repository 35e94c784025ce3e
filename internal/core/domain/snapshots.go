package domain

import "time"

// TaskSnapshot matches the API response shape for tasks. It is the
// entity body carried inside task events and REST responses.
type TaskSnapshot struct {
	ID          string  `json:"id"`
	GroupID     string  `json:"listId"`
	ProjectID   string  `json:"projectId"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Completed   bool    `json:"completed"`
	AssigneeID  *string `json:"assigneeId"`
	Position    int32   `json:"position"`
	CreatedAt   string  `json:"createdAt"`
	UpdatedAt   *string `json:"updatedAt"`
}

// GroupSnapshot matches the API response shape for task groups.
type GroupSnapshot struct {
	ID        string  `json:"id"`
	ProjectID string  `json:"projectId"`
	Name      string  `json:"name"`
	Position  int32   `json:"position"`
	CreatedAt string  `json:"createdAt"`
	UpdatedAt *string `json:"updatedAt"`
}

// ProjectSnapshot matches the API response shape for projects.
type ProjectSnapshot struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	OwnerID   string  `json:"ownerId"`
	CreatedAt string  `json:"createdAt"`
	UpdatedAt *string `json:"updatedAt"`
}

// NewTaskSnapshot builds a task snapshot from a domain task.
func NewTaskSnapshot(task *Task) TaskSnapshot {
	var assigneeID *string
	if task.AssigneeID != nil {
		value := task.AssigneeID.String()
		assigneeID = &value
	}

	return TaskSnapshot{
		ID:          task.ID.String(),
		GroupID:     task.GroupID.String(),
		ProjectID:   task.ProjectID.String(),
		Title:       task.Title,
		Description: task.Description,
		Completed:   task.Completed,
		AssigneeID:  assigneeID,
		Position:    task.Position,
		CreatedAt:   task.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   formatTimePtr(task.UpdatedAt),
	}
}

// NewGroupSnapshot builds a group snapshot from a domain task group.
func NewGroupSnapshot(group *TaskGroup) GroupSnapshot {
	return GroupSnapshot{
		ID:        group.ID.String(),
		ProjectID: group.ProjectID.String(),
		Name:      group.Name,
		Position:  group.Position,
		CreatedAt: group.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: formatTimePtr(group.UpdatedAt),
	}
}

// NewProjectSnapshot builds a project snapshot from a domain project.
func NewProjectSnapshot(project *Project) ProjectSnapshot {
	return ProjectSnapshot{
		ID:        project.ID.String(),
		Name:      project.Name,
		OwnerID:   project.OwnerID.String(),
		CreatedAt: project.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: formatTimePtr(project.UpdatedAt),
	}
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	value := t.UTC().Format(time.RFC3339)
	return &value
}
