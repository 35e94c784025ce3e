package postgres

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hiveboard/taskboard-backend/internal/core/domain"
	apperrors "github.com/hiveboard/taskboard-backend/internal/core/errors"
)

// seedBoard creates a project with one group so task rows satisfy their
// foreign keys.
func seedBoard(t *testing.T) (*domain.Project, *domain.TaskGroup) {
	t.Helper()
	ctx := context.Background()

	project, err := domain.NewProject("Integration board", uuid.New())
	require.NoError(t, err)
	project, err = NewProjectRepository(testPool).Create(ctx, project)
	require.NoError(t, err)

	group, err := domain.NewTaskGroup(project.ID, "Backlog", 0)
	require.NoError(t, err)
	group, err = NewTaskGroupRepository(testPool).Create(ctx, group)
	require.NoError(t, err)

	t.Cleanup(func() {
		// Cascades to groups and tasks.
		_, _ = testPool.Exec(context.Background(), `DELETE FROM projects WHERE id = $1`, project.ID)
	})
	return project, group
}

func TestTaskRepository_RoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewTaskRepository(testPool)
	project, group := seedBoard(t)

	task, err := domain.NewTask(domain.TaskParams{
		GroupID:     group.ID,
		ProjectID:   project.ID,
		Title:       "Persisted task",
		Description: "round trip",
		Position:    2,
	})
	require.NoError(t, err)

	created, err := repo.Create(ctx, task)
	require.NoError(t, err)
	assert.Equal(t, task.ID, created.ID)

	fetched, err := repo.GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "Persisted task", fetched.Title)
	assert.Equal(t, group.ID, fetched.GroupID)
	assert.Equal(t, project.ID, fetched.ProjectID)
	assert.Nil(t, fetched.AssigneeID)
	assert.Nil(t, fetched.UpdatedAt)

	assignee := uuid.New()
	fetched.Assign(&assignee)
	require.NoError(t, fetched.Retitle("Renamed task"))

	updated, err := repo.Update(ctx, fetched)
	require.NoError(t, err)
	assert.Equal(t, "Renamed task", updated.Title)
	require.NotNil(t, updated.AssigneeID)
	assert.Equal(t, assignee, *updated.AssigneeID)
	assert.NotNil(t, updated.UpdatedAt)

	require.NoError(t, repo.Delete(ctx, task.ID))
	_, err = repo.GetByID(ctx, task.ID)
	assert.ErrorIs(t, err, apperrors.ErrTaskNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, task.ID), apperrors.ErrTaskNotFound)
}

func TestTaskRepository_ListByGroupOrdersByPosition(t *testing.T) {
	ctx := context.Background()
	repo := NewTaskRepository(testPool)
	project, group := seedBoard(t)

	for i, title := range []string{"third", "first", "second"} {
		positions := []int32{3, 1, 2}
		task, err := domain.NewTask(domain.TaskParams{
			GroupID:   group.ID,
			ProjectID: project.ID,
			Title:     title,
			Position:  positions[i],
		})
		require.NoError(t, err)
		_, err = repo.Create(ctx, task)
		require.NoError(t, err)
	}

	tasks, err := repo.ListByGroup(ctx, group.ID)
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	assert.Equal(t, "first", tasks[0].Title)
	assert.Equal(t, "second", tasks[1].Title)
	assert.Equal(t, "third", tasks[2].Title)
}

func TestMembershipRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMembershipRepository(testPool)
	project, _ := seedBoard(t)
	userID := uuid.New()

	ok, err := repo.IsMember(ctx, userID, project.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.AddMember(ctx, project.ID, userID))

	ok, err = repo.IsMember(ctx, userID, project.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	// Adding twice is a no-op, not an error.
	require.NoError(t, repo.AddMember(ctx, project.ID, userID))
}

func TestTaskGroupRepository_DeleteCascadesToTasks(t *testing.T) {
	ctx := context.Background()
	groupRepo := NewTaskGroupRepository(testPool)
	taskRepo := NewTaskRepository(testPool)
	project, group := seedBoard(t)

	task, err := domain.NewTask(domain.TaskParams{
		GroupID:   group.ID,
		ProjectID: project.ID,
		Title:     "doomed",
	})
	require.NoError(t, err)
	_, err = taskRepo.Create(ctx, task)
	require.NoError(t, err)

	require.NoError(t, groupRepo.Delete(ctx, group.ID))

	_, err = taskRepo.GetByID(ctx, task.ID)
	assert.ErrorIs(t, err, apperrors.ErrTaskNotFound)
}
