package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hiveboard/taskboard-backend/internal/core/domain"
	apperrors "github.com/hiveboard/taskboard-backend/internal/core/errors"
	"github.com/hiveboard/taskboard-backend/internal/core/mocks"
	"github.com/hiveboard/taskboard-backend/internal/core/ports"
)

type taskServiceFixture struct {
	taskRepo   *mocks.MockTaskRepository
	groupRepo  *mocks.MockTaskGroupRepository
	memberRepo *mocks.MockMembershipRepository
	feed       *mocks.MockChangeFeed
	tx         *mocks.MockTransactionManager
	service    ports.TaskService
}

func newTaskServiceFixture() *taskServiceFixture {
	f := &taskServiceFixture{
		taskRepo:   mocks.NewMockTaskRepository(),
		groupRepo:  mocks.NewMockTaskGroupRepository(),
		memberRepo: mocks.NewMockMembershipRepository(),
		feed:       mocks.NewMockChangeFeed(),
		tx:         mocks.NewMockTransactionManager(),
	}
	f.service = NewTaskService(f.taskRepo, f.groupRepo, f.memberRepo, f.feed, f.tx)
	return f
}

func (f *taskServiceFixture) allowTransaction() {
	f.tx.On("WithTransaction", mock.Anything, mock.Anything).Return(nil)
}

func existingTask(t *testing.T, projectID uuid.UUID) *domain.Task {
	t.Helper()
	task, err := domain.NewTask(domain.TaskParams{
		GroupID:   uuid.New(),
		ProjectID: projectID,
		Title:     "Original",
	})
	require.NoError(t, err)
	return task
}

func TestTaskService_CreateTask(t *testing.T) {
	t.Run("appends insert change row with the write", func(t *testing.T) {
		f := newTaskServiceFixture()
		actorID := uuid.New()
		projectID := uuid.New()

		group, err := domain.NewTaskGroup(projectID, "Backlog", 0)
		require.NoError(t, err)

		stored, err := domain.NewTask(domain.TaskParams{
			GroupID:   group.ID,
			ProjectID: projectID,
			Title:     "New task",
		})
		require.NoError(t, err)

		f.groupRepo.On("GetByID", mock.Anything, group.ID).Return(group, nil)
		f.memberRepo.On("IsMember", mock.Anything, actorID, projectID).Return(true, nil)
		f.allowTransaction()
		f.taskRepo.On("Create", mock.Anything, mock.AnythingOfType("*domain.Task")).Return(stored, nil)
		f.feed.On("Append", mock.Anything, mock.MatchedBy(func(change *domain.ChangeNotification) bool {
			return change.Collection == domain.CollectionTask &&
				change.Operation == domain.OpInsert &&
				change.ProjectID != nil && *change.ProjectID == projectID &&
				change.GroupID != nil && *change.GroupID == group.ID &&
				len(change.Document) > 0
		})).Return(nil)

		created, err := f.service.CreateTask(context.Background(), ports.CreateTaskParams{
			GroupID: group.ID,
			Title:   "New task",
			ActorID: actorID,
		})
		require.NoError(t, err)

		assert.Equal(t, "New task", created.Title)
		assert.Equal(t, projectID, created.ProjectID)
		f.feed.AssertExpectations(t)
	})

	t.Run("non-member is forbidden", func(t *testing.T) {
		f := newTaskServiceFixture()
		projectID := uuid.New()
		group, err := domain.NewTaskGroup(projectID, "Backlog", 0)
		require.NoError(t, err)

		f.groupRepo.On("GetByID", mock.Anything, group.ID).Return(group, nil)
		f.memberRepo.On("IsMember", mock.Anything, mock.Anything, projectID).Return(false, nil)

		_, err = f.service.CreateTask(context.Background(), ports.CreateTaskParams{
			GroupID: group.ID,
			Title:   "New task",
			ActorID: uuid.New(),
		})
		assert.ErrorIs(t, err, apperrors.ErrForbidden)
		f.feed.AssertNotCalled(t, "Append")
		f.tx.AssertNotCalled(t, "WithTransaction")
	})

	t.Run("missing group", func(t *testing.T) {
		f := newTaskServiceFixture()
		groupID := uuid.New()
		f.groupRepo.On("GetByID", mock.Anything, groupID).Return(nil, apperrors.ErrGroupNotFound)

		_, err := f.service.CreateTask(context.Background(), ports.CreateTaskParams{
			GroupID: groupID,
			Title:   "New task",
			ActorID: uuid.New(),
		})
		assert.ErrorIs(t, err, apperrors.ErrGroupNotFound)
	})
}

func TestTaskService_UpdateTask(t *testing.T) {
	t.Run("appends update change row", func(t *testing.T) {
		f := newTaskServiceFixture()
		actorID := uuid.New()
		projectID := uuid.New()
		task := existingTask(t, projectID)

		f.taskRepo.On("GetByID", mock.Anything, task.ID).Return(task, nil)
		f.memberRepo.On("IsMember", mock.Anything, actorID, projectID).Return(true, nil)
		f.allowTransaction()
		f.taskRepo.On("Update", mock.Anything, task).Return(task, nil)
		f.feed.On("Append", mock.Anything, mock.MatchedBy(func(change *domain.ChangeNotification) bool {
			return change.Operation == domain.OpUpdate && change.EntityID == task.ID
		})).Return(nil)

		title := "Retitled"
		completed := true
		updated, err := f.service.UpdateTask(context.Background(), ports.UpdateTaskParams{
			TaskID:    task.ID,
			Title:     &title,
			Completed: &completed,
			ActorID:   actorID,
		})
		require.NoError(t, err)

		assert.Equal(t, "Retitled", updated.Title)
		assert.True(t, updated.Completed)
		f.feed.AssertExpectations(t)
	})

	t.Run("clear assignee wins over assignee id", func(t *testing.T) {
		f := newTaskServiceFixture()
		actorID := uuid.New()
		projectID := uuid.New()
		task := existingTask(t, projectID)
		assignee := uuid.New()
		task.Assign(&assignee)

		f.taskRepo.On("GetByID", mock.Anything, task.ID).Return(task, nil)
		f.memberRepo.On("IsMember", mock.Anything, actorID, projectID).Return(true, nil)
		f.allowTransaction()
		f.taskRepo.On("Update", mock.Anything, task).Return(task, nil)
		f.feed.On("Append", mock.Anything, mock.Anything).Return(nil)

		other := uuid.New()
		updated, err := f.service.UpdateTask(context.Background(), ports.UpdateTaskParams{
			TaskID:        task.ID,
			AssigneeID:    &other,
			ClearAssignee: true,
			ActorID:       actorID,
		})
		require.NoError(t, err)
		assert.Nil(t, updated.AssigneeID)
	})

	t.Run("failed write appends nothing", func(t *testing.T) {
		f := newTaskServiceFixture()
		actorID := uuid.New()
		projectID := uuid.New()
		task := existingTask(t, projectID)

		f.taskRepo.On("GetByID", mock.Anything, task.ID).Return(task, nil)
		f.memberRepo.On("IsMember", mock.Anything, actorID, projectID).Return(true, nil)
		f.allowTransaction()
		f.taskRepo.On("Update", mock.Anything, task).Return(nil, assert.AnError)

		title := "Retitled"
		_, err := f.service.UpdateTask(context.Background(), ports.UpdateTaskParams{
			TaskID:  task.ID,
			Title:   &title,
			ActorID: actorID,
		})
		assert.ErrorIs(t, err, assert.AnError)
		f.feed.AssertNotCalled(t, "Append")
	})
}

func TestTaskService_MoveTask(t *testing.T) {
	t.Run("moves within the project", func(t *testing.T) {
		f := newTaskServiceFixture()
		actorID := uuid.New()
		projectID := uuid.New()
		task := existingTask(t, projectID)
		dest, err := domain.NewTaskGroup(projectID, "Done", 2)
		require.NoError(t, err)

		f.taskRepo.On("GetByID", mock.Anything, task.ID).Return(task, nil)
		f.memberRepo.On("IsMember", mock.Anything, actorID, projectID).Return(true, nil)
		f.groupRepo.On("GetByID", mock.Anything, dest.ID).Return(dest, nil)
		f.allowTransaction()
		f.taskRepo.On("Update", mock.Anything, task).Return(task, nil)
		f.feed.On("Append", mock.Anything, mock.MatchedBy(func(change *domain.ChangeNotification) bool {
			return change.Operation == domain.OpUpdate &&
				change.GroupID != nil && *change.GroupID == dest.ID
		})).Return(nil)

		moved, err := f.service.MoveTask(context.Background(), ports.MoveTaskParams{
			TaskID:   task.ID,
			GroupID:  dest.ID,
			Position: 4,
			ActorID:  actorID,
		})
		require.NoError(t, err)
		assert.Equal(t, dest.ID, moved.GroupID)
		assert.Equal(t, int32(4), moved.Position)
	})

	t.Run("cross-project move is rejected", func(t *testing.T) {
		f := newTaskServiceFixture()
		actorID := uuid.New()
		task := existingTask(t, uuid.New())
		dest, err := domain.NewTaskGroup(uuid.New(), "Other board", 0)
		require.NoError(t, err)

		f.taskRepo.On("GetByID", mock.Anything, task.ID).Return(task, nil)
		f.memberRepo.On("IsMember", mock.Anything, actorID, task.ProjectID).Return(true, nil)
		f.groupRepo.On("GetByID", mock.Anything, dest.ID).Return(dest, nil)

		_, err = f.service.MoveTask(context.Background(), ports.MoveTaskParams{
			TaskID:  task.ID,
			GroupID: dest.ID,
			ActorID: actorID,
		})
		assert.ErrorIs(t, err, apperrors.ErrGroupProjectMismatch)
		f.tx.AssertNotCalled(t, "WithTransaction")
	})
}

func TestTaskService_DeleteTask(t *testing.T) {
	t.Run("delete row carries routing context captured before the delete", func(t *testing.T) {
		f := newTaskServiceFixture()
		actorID := uuid.New()
		projectID := uuid.New()
		task := existingTask(t, projectID)
		assignee := uuid.New()
		task.Assign(&assignee)

		f.taskRepo.On("GetByID", mock.Anything, task.ID).Return(task, nil)
		f.memberRepo.On("IsMember", mock.Anything, actorID, projectID).Return(true, nil)
		f.allowTransaction()
		f.taskRepo.On("Delete", mock.Anything, task.ID).Return(nil)
		f.feed.On("Append", mock.Anything, mock.MatchedBy(func(change *domain.ChangeNotification) bool {
			return change.Operation == domain.OpDelete &&
				change.EntityID == task.ID &&
				change.ProjectID != nil && *change.ProjectID == projectID &&
				change.GroupID != nil && *change.GroupID == task.GroupID &&
				change.AssigneeID != nil && *change.AssigneeID == assignee &&
				len(change.Document) == 0
		})).Return(nil)

		err := f.service.DeleteTask(context.Background(), task.ID, actorID)
		require.NoError(t, err)
		f.feed.AssertExpectations(t)
	})

	t.Run("non-member cannot delete", func(t *testing.T) {
		f := newTaskServiceFixture()
		task := existingTask(t, uuid.New())

		f.taskRepo.On("GetByID", mock.Anything, task.ID).Return(task, nil)
		f.memberRepo.On("IsMember", mock.Anything, mock.Anything, task.ProjectID).Return(false, nil)

		err := f.service.DeleteTask(context.Background(), task.ID, uuid.New())
		assert.ErrorIs(t, err, apperrors.ErrForbidden)
		f.taskRepo.AssertNotCalled(t, "Delete")
	})
}
