package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/hiveboard/taskboard-backend/internal/core/domain"
	apperrors "github.com/hiveboard/taskboard-backend/internal/core/errors"
	"github.com/hiveboard/taskboard-backend/internal/core/ports"
)

// TaskService implements business logic for task management. Every
// mutation appends a change-feed row in the same transaction as the
// write, so the observers see exactly the committed mutations. The
// delete path captures the owning project/group IDs before the row is
// gone; the feed row is the authoritative routing context for deletes.
type TaskService struct {
	taskRepo   ports.TaskRepository
	groupRepo  ports.TaskGroupRepository
	memberRepo ports.MembershipRepository
	feed       ports.ChangeFeed
	tx         ports.TransactionManager
}

var _ ports.TaskService = (*TaskService)(nil)

// NewTaskService creates a new task service.
func NewTaskService(
	taskRepo ports.TaskRepository,
	groupRepo ports.TaskGroupRepository,
	memberRepo ports.MembershipRepository,
	feed ports.ChangeFeed,
	tx ports.TransactionManager,
) ports.TaskService {
	return &TaskService{
		taskRepo:   taskRepo,
		groupRepo:  groupRepo,
		memberRepo: memberRepo,
		feed:       feed,
		tx:         tx,
	}
}

func (s *TaskService) requireMember(ctx context.Context, userID, projectID uuid.UUID) error {
	ok, err := s.memberRepo.IsMember(ctx, userID, projectID)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.ErrForbidden
	}
	return nil
}

// CreateTask handles the use case for adding a task to a group.
func (s *TaskService) CreateTask(ctx context.Context, params ports.CreateTaskParams) (*domain.Task, error) {
	group, err := s.groupRepo.GetByID(ctx, params.GroupID)
	if err != nil {
		return nil, err
	}

	if err := s.requireMember(ctx, params.ActorID, group.ProjectID); err != nil {
		return nil, err
	}

	task, err := domain.NewTask(domain.TaskParams{
		GroupID:     group.ID,
		ProjectID:   group.ProjectID,
		Title:       params.Title,
		Description: params.Description,
		AssigneeID:  params.AssigneeID,
		Position:    params.Position,
	})
	if err != nil {
		return nil, err
	}

	var created *domain.Task
	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		created, err = s.taskRepo.Create(ctx, task)
		if err != nil {
			return err
		}
		return s.feed.Append(ctx, taskChange(domain.OpInsert, created))
	})
	if err != nil {
		return nil, err
	}

	return created, nil
}

// GetTask retrieves a task, checking the viewer's project membership.
func (s *TaskService) GetTask(ctx context.Context, taskID, viewerID uuid.UUID) (*domain.Task, error) {
	task, err := s.taskRepo.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if err := s.requireMember(ctx, viewerID, task.ProjectID); err != nil {
		return nil, err
	}

	return task, nil
}

// UpdateTask applies a partial update to a task.
func (s *TaskService) UpdateTask(ctx context.Context, params ports.UpdateTaskParams) (*domain.Task, error) {
	task, err := s.taskRepo.GetByID(ctx, params.TaskID)
	if err != nil {
		return nil, err
	}

	if err := s.requireMember(ctx, params.ActorID, task.ProjectID); err != nil {
		return nil, err
	}

	if params.Title != nil {
		if err := task.Retitle(*params.Title); err != nil {
			return nil, err
		}
	}
	if params.Description != nil {
		if len(*params.Description) > 10000 {
			return nil, apperrors.ErrDescriptionTooLong
		}
		task.Description = *params.Description
	}
	if params.Completed != nil {
		task.SetCompleted(*params.Completed)
	}
	if params.ClearAssignee {
		task.Assign(nil)
	} else if params.AssigneeID != nil {
		task.Assign(params.AssigneeID)
	}

	var updated *domain.Task
	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		updated, err = s.taskRepo.Update(ctx, task)
		if err != nil {
			return err
		}
		return s.feed.Append(ctx, taskChange(domain.OpUpdate, updated))
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// MoveTask relocates a task to another group within the same project.
func (s *TaskService) MoveTask(ctx context.Context, params ports.MoveTaskParams) (*domain.Task, error) {
	task, err := s.taskRepo.GetByID(ctx, params.TaskID)
	if err != nil {
		return nil, err
	}

	if err := s.requireMember(ctx, params.ActorID, task.ProjectID); err != nil {
		return nil, err
	}

	dest, err := s.groupRepo.GetByID(ctx, params.GroupID)
	if err != nil {
		return nil, err
	}
	if dest.ProjectID != task.ProjectID {
		return nil, apperrors.ErrGroupProjectMismatch
	}

	if err := task.MoveTo(dest.ID, params.Position); err != nil {
		return nil, err
	}

	var updated *domain.Task
	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		updated, err = s.taskRepo.Update(ctx, task)
		if err != nil {
			return err
		}
		return s.feed.Append(ctx, taskChange(domain.OpUpdate, updated))
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// DeleteTask removes a task. The owning IDs are read before the delete
// so the change row still carries full routing context.
func (s *TaskService) DeleteTask(ctx context.Context, taskID, actorID uuid.UUID) error {
	task, err := s.taskRepo.GetByID(ctx, taskID)
	if err != nil {
		return err
	}

	if err := s.requireMember(ctx, actorID, task.ProjectID); err != nil {
		return err
	}

	return s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.taskRepo.Delete(ctx, task.ID); err != nil {
			return err
		}
		return s.feed.Append(ctx, taskDeleteChange(task))
	})
}

// taskChange builds a change row for a surviving task, document included.
func taskChange(op domain.Operation, task *domain.Task) *domain.ChangeNotification {
	doc, _ := marshalDocument(domain.NewTaskSnapshot(task))
	projectID := task.ProjectID
	groupID := task.GroupID
	return &domain.ChangeNotification{
		Collection: domain.CollectionTask,
		Operation:  op,
		EntityID:   task.ID,
		ProjectID:  &projectID,
		GroupID:    &groupID,
		AssigneeID: task.AssigneeID,
		Document:   doc,
	}
}

// taskDeleteChange builds a delete change row. No document body; the
// routing IDs captured at the call site are all that survives.
func taskDeleteChange(task *domain.Task) *domain.ChangeNotification {
	projectID := task.ProjectID
	groupID := task.GroupID
	return &domain.ChangeNotification{
		Collection: domain.CollectionTask,
		Operation:  domain.OpDelete,
		EntityID:   task.ID,
		ProjectID:  &projectID,
		GroupID:    &groupID,
		AssigneeID: task.AssigneeID,
	}
}
