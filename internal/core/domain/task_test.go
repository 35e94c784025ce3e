package domain

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/hiveboard/taskboard-backend/internal/core/errors"
)

func validTaskParams() TaskParams {
	return TaskParams{
		GroupID:   uuid.New(),
		ProjectID: uuid.New(),
		Title:     "Write release notes",
		Position:  3,
	}
}

func TestNewTask(t *testing.T) {
	t.Run("valid params", func(t *testing.T) {
		params := validTaskParams()
		task, err := NewTask(params)
		require.NoError(t, err)

		assert.NotEqual(t, uuid.Nil, task.ID)
		assert.Equal(t, params.GroupID, task.GroupID)
		assert.Equal(t, params.ProjectID, task.ProjectID)
		assert.Equal(t, params.Title, task.Title)
		assert.Equal(t, params.Position, task.Position)
		assert.False(t, task.Completed)
		assert.Nil(t, task.AssigneeID)
		assert.False(t, task.CreatedAt.IsZero())
		assert.Nil(t, task.UpdatedAt)
	})

	t.Run("validation failures", func(t *testing.T) {
		tests := []struct {
			name    string
			mutate  func(*TaskParams)
			wantErr error
		}{
			{"empty title", func(p *TaskParams) { p.Title = "" }, apperrors.ErrTitleRequired},
			{"title too long", func(p *TaskParams) { p.Title = strings.Repeat("x", 256) }, apperrors.ErrTitleTooLong},
			{"description too long", func(p *TaskParams) { p.Description = strings.Repeat("x", 10001) }, apperrors.ErrDescriptionTooLong},
			{"missing group", func(p *TaskParams) { p.GroupID = uuid.Nil }, apperrors.ErrGroupIDRequired},
			{"missing project", func(p *TaskParams) { p.ProjectID = uuid.Nil }, apperrors.ErrProjectIDRequired},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				params := validTaskParams()
				tt.mutate(&params)
				_, err := NewTask(params)
				assert.ErrorIs(t, err, tt.wantErr)
			})
		}
	})
}

func TestTask_Retitle(t *testing.T) {
	task, err := NewTask(validTaskParams())
	require.NoError(t, err)

	require.NoError(t, task.Retitle("Updated"))
	assert.Equal(t, "Updated", task.Title)
	assert.NotNil(t, task.UpdatedAt)

	assert.ErrorIs(t, task.Retitle(""), apperrors.ErrTitleRequired)
	assert.ErrorIs(t, task.Retitle(strings.Repeat("x", 256)), apperrors.ErrTitleTooLong)
	assert.Equal(t, "Updated", task.Title, "failed retitle leaves the title untouched")
}

func TestTask_MoveTo(t *testing.T) {
	task, err := NewTask(validTaskParams())
	require.NoError(t, err)

	dest := uuid.New()
	require.NoError(t, task.MoveTo(dest, 7))
	assert.Equal(t, dest, task.GroupID)
	assert.Equal(t, int32(7), task.Position)

	assert.ErrorIs(t, task.MoveTo(uuid.Nil, 0), apperrors.ErrGroupIDRequired)
	assert.Equal(t, dest, task.GroupID)
}

func TestTask_Assign(t *testing.T) {
	task, err := NewTask(validTaskParams())
	require.NoError(t, err)

	userID := uuid.New()
	task.Assign(&userID)
	assert.True(t, task.IsAssignedTo(userID))
	assert.False(t, task.IsAssignedTo(uuid.New()))

	task.Assign(nil)
	assert.Nil(t, task.AssigneeID)
	assert.False(t, task.IsAssignedTo(userID))
}

func TestNewTaskGroup(t *testing.T) {
	projectID := uuid.New()

	group, err := NewTaskGroup(projectID, "In Progress", 1)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, group.ID)
	assert.Equal(t, projectID, group.ProjectID)
	assert.Equal(t, "In Progress", group.Name)

	_, err = NewTaskGroup(projectID, "", 0)
	assert.ErrorIs(t, err, apperrors.ErrNameRequired)

	_, err = NewTaskGroup(projectID, strings.Repeat("x", 256), 0)
	assert.ErrorIs(t, err, apperrors.ErrNameTooLong)

	_, err = NewTaskGroup(uuid.Nil, "Backlog", 0)
	assert.ErrorIs(t, err, apperrors.ErrProjectIDRequired)
}

func TestNewProject(t *testing.T) {
	ownerID := uuid.New()

	project, err := NewProject("Roadmap", ownerID)
	require.NoError(t, err)
	assert.Equal(t, ownerID, project.OwnerID)

	_, err = NewProject("", ownerID)
	assert.ErrorIs(t, err, apperrors.ErrNameRequired)

	_, err = NewProject("Roadmap", uuid.Nil)
	assert.ErrorIs(t, err, apperrors.ErrOwnerRequired)
}

func TestSnapshots(t *testing.T) {
	t.Run("task snapshot carries assignee", func(t *testing.T) {
		assigneeID := uuid.New()
		params := validTaskParams()
		params.AssigneeID = &assigneeID
		task, err := NewTask(params)
		require.NoError(t, err)

		snapshot := NewTaskSnapshot(task)
		assert.Equal(t, task.ID.String(), snapshot.ID)
		assert.Equal(t, task.GroupID.String(), snapshot.GroupID)
		require.NotNil(t, snapshot.AssigneeID)
		assert.Equal(t, assigneeID.String(), *snapshot.AssigneeID)
		assert.Nil(t, snapshot.UpdatedAt)
	})

	t.Run("unassigned task snapshot", func(t *testing.T) {
		task, err := NewTask(validTaskParams())
		require.NoError(t, err)
		assert.Nil(t, NewTaskSnapshot(task).AssigneeID)
	})

	t.Run("updated entity snapshot carries timestamp", func(t *testing.T) {
		group, err := NewTaskGroup(uuid.New(), "Done", 2)
		require.NoError(t, err)
		require.NoError(t, group.Rename("Shipped"))

		snapshot := NewGroupSnapshot(group)
		assert.Equal(t, "Shipped", snapshot.Name)
		assert.NotNil(t, snapshot.UpdatedAt)
	})
}
