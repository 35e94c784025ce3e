package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/hiveboard/taskboard-backend/internal/core/domain"
	apperrors "github.com/hiveboard/taskboard-backend/internal/core/errors"
	"github.com/hiveboard/taskboard-backend/internal/core/ports"
)

// TaskGroupService implements business logic for task group management.
type TaskGroupService struct {
	groupRepo  ports.TaskGroupRepository
	taskRepo   ports.TaskRepository
	memberRepo ports.MembershipRepository
	feed       ports.ChangeFeed
	tx         ports.TransactionManager
}

var _ ports.TaskGroupService = (*TaskGroupService)(nil)

// NewTaskGroupService creates a new task group service.
func NewTaskGroupService(
	groupRepo ports.TaskGroupRepository,
	taskRepo ports.TaskRepository,
	memberRepo ports.MembershipRepository,
	feed ports.ChangeFeed,
	tx ports.TransactionManager,
) ports.TaskGroupService {
	return &TaskGroupService{
		groupRepo:  groupRepo,
		taskRepo:   taskRepo,
		memberRepo: memberRepo,
		feed:       feed,
		tx:         tx,
	}
}

func (s *TaskGroupService) requireMember(ctx context.Context, userID, projectID uuid.UUID) error {
	ok, err := s.memberRepo.IsMember(ctx, userID, projectID)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.ErrForbidden
	}
	return nil
}

// CreateGroup adds a new group to a project board.
func (s *TaskGroupService) CreateGroup(ctx context.Context, params ports.CreateGroupParams) (*domain.TaskGroup, error) {
	if err := s.requireMember(ctx, params.ActorID, params.ProjectID); err != nil {
		return nil, err
	}

	group, err := domain.NewTaskGroup(params.ProjectID, params.Name, params.Position)
	if err != nil {
		return nil, err
	}

	var created *domain.TaskGroup
	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		created, err = s.groupRepo.Create(ctx, group)
		if err != nil {
			return err
		}
		return s.feed.Append(ctx, groupChange(domain.OpInsert, created))
	})
	if err != nil {
		return nil, err
	}

	return created, nil
}

// RenameGroup changes a group's name.
func (s *TaskGroupService) RenameGroup(ctx context.Context, params ports.RenameGroupParams) (*domain.TaskGroup, error) {
	group, err := s.groupRepo.GetByID(ctx, params.GroupID)
	if err != nil {
		return nil, err
	}

	if err := s.requireMember(ctx, params.ActorID, group.ProjectID); err != nil {
		return nil, err
	}

	if err := group.Rename(params.Name); err != nil {
		return nil, err
	}

	var updated *domain.TaskGroup
	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		updated, err = s.groupRepo.Update(ctx, group)
		if err != nil {
			return err
		}
		return s.feed.Append(ctx, groupChange(domain.OpUpdate, updated))
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// DeleteGroup removes a group and all tasks inside it. One group delete
// row and one delete row per contained task are appended in the same
// transaction, so the board room learns about every removed entity
// without a round trip to the now-deleted parent.
func (s *TaskGroupService) DeleteGroup(ctx context.Context, groupID, actorID uuid.UUID) error {
	group, err := s.groupRepo.GetByID(ctx, groupID)
	if err != nil {
		return err
	}

	if err := s.requireMember(ctx, actorID, group.ProjectID); err != nil {
		return err
	}

	tasks, err := s.taskRepo.ListByGroup(ctx, group.ID)
	if err != nil {
		return err
	}

	return s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		// The group row cascades to its tasks at the store level.
		if err := s.groupRepo.Delete(ctx, group.ID); err != nil {
			return err
		}
		if err := s.feed.Append(ctx, groupDeleteChange(group)); err != nil {
			return err
		}
		for _, task := range tasks {
			if err := s.feed.Append(ctx, taskDeleteChange(task)); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListGroups returns a project's groups in board order.
func (s *TaskGroupService) ListGroups(ctx context.Context, projectID, viewerID uuid.UUID) ([]*domain.TaskGroup, error) {
	if err := s.requireMember(ctx, viewerID, projectID); err != nil {
		return nil, err
	}
	return s.groupRepo.ListByProject(ctx, projectID)
}

func groupChange(op domain.Operation, group *domain.TaskGroup) *domain.ChangeNotification {
	doc, _ := marshalDocument(domain.NewGroupSnapshot(group))
	projectID := group.ProjectID
	return &domain.ChangeNotification{
		Collection: domain.CollectionTaskGroup,
		Operation:  op,
		EntityID:   group.ID,
		ProjectID:  &projectID,
		Document:   doc,
	}
}

func groupDeleteChange(group *domain.TaskGroup) *domain.ChangeNotification {
	projectID := group.ProjectID
	return &domain.ChangeNotification{
		Collection: domain.CollectionTaskGroup,
		Operation:  domain.OpDelete,
		EntityID:   group.ID,
		ProjectID:  &projectID,
	}
}
