package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/hiveboard/taskboard-backend/internal/core/domain"
	apperrors "github.com/hiveboard/taskboard-backend/internal/core/errors"
	"github.com/hiveboard/taskboard-backend/internal/core/ports"
)

// ProjectService implements business logic for project management and
// serves the full board snapshot clients fetch on room (re)join.
type ProjectService struct {
	projectRepo ports.ProjectRepository
	groupRepo   ports.TaskGroupRepository
	taskRepo    ports.TaskRepository
	memberRepo  ports.MembershipRepository
	feed        ports.ChangeFeed
	tx          ports.TransactionManager
}

var _ ports.ProjectService = (*ProjectService)(nil)

// NewProjectService creates a new project service.
func NewProjectService(
	projectRepo ports.ProjectRepository,
	groupRepo ports.TaskGroupRepository,
	taskRepo ports.TaskRepository,
	memberRepo ports.MembershipRepository,
	feed ports.ChangeFeed,
	tx ports.TransactionManager,
) ports.ProjectService {
	return &ProjectService{
		projectRepo: projectRepo,
		groupRepo:   groupRepo,
		taskRepo:    taskRepo,
		memberRepo:  memberRepo,
		feed:        feed,
		tx:          tx,
	}
}

func (s *ProjectService) requireMember(ctx context.Context, userID, projectID uuid.UUID) error {
	ok, err := s.memberRepo.IsMember(ctx, userID, projectID)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.ErrForbidden
	}
	return nil
}

// CreateProject creates a project and enrolls the owner as a member.
func (s *ProjectService) CreateProject(ctx context.Context, params ports.CreateProjectParams) (*domain.Project, error) {
	project, err := domain.NewProject(params.Name, params.OwnerID)
	if err != nil {
		return nil, err
	}

	var created *domain.Project
	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		created, err = s.projectRepo.Create(ctx, project)
		if err != nil {
			return err
		}
		if err := s.memberRepo.AddMember(ctx, created.ID, params.OwnerID); err != nil {
			return err
		}
		return s.feed.Append(ctx, projectChange(domain.OpInsert, created))
	})
	if err != nil {
		return nil, err
	}

	return created, nil
}

// GetProject retrieves a project, checking the viewer's membership.
func (s *ProjectService) GetProject(ctx context.Context, projectID, viewerID uuid.UUID) (*domain.Project, error) {
	if err := s.requireMember(ctx, viewerID, projectID); err != nil {
		return nil, err
	}
	return s.projectRepo.GetByID(ctx, projectID)
}

// RenameProject changes a project's name.
func (s *ProjectService) RenameProject(ctx context.Context, params ports.RenameProjectParams) (*domain.Project, error) {
	if err := s.requireMember(ctx, params.ActorID, params.ProjectID); err != nil {
		return nil, err
	}

	project, err := s.projectRepo.GetByID(ctx, params.ProjectID)
	if err != nil {
		return nil, err
	}

	if err := project.Rename(params.Name); err != nil {
		return nil, err
	}

	var updated *domain.Project
	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		updated, err = s.projectRepo.Update(ctx, project)
		if err != nil {
			return err
		}
		return s.feed.Append(ctx, projectChange(domain.OpUpdate, updated))
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// DeleteProject removes a project. Only the owner may delete it.
func (s *ProjectService) DeleteProject(ctx context.Context, projectID, actorID uuid.UUID) error {
	project, err := s.projectRepo.GetByID(ctx, projectID)
	if err != nil {
		return err
	}
	if project.OwnerID != actorID {
		return apperrors.ErrForbidden
	}

	return s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.projectRepo.Delete(ctx, project.ID); err != nil {
			return err
		}
		id := project.ID
		return s.feed.Append(ctx, &domain.ChangeNotification{
			Collection: domain.CollectionProject,
			Operation:  domain.OpDelete,
			EntityID:   id,
			ProjectID:  &id,
		})
	})
}

// GetBoardState returns the authoritative state of one project room.
// Clients call this on every (re)join; it is the only recovery path
// for events lost to the best-effort delivery of the broadcaster.
func (s *ProjectService) GetBoardState(ctx context.Context, projectID, viewerID uuid.UUID) (*ports.BoardState, error) {
	if err := s.requireMember(ctx, viewerID, projectID); err != nil {
		return nil, err
	}

	project, err := s.projectRepo.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	groups, err := s.groupRepo.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	tasks, err := s.taskRepo.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	state := &ports.BoardState{
		Project: domain.NewProjectSnapshot(project),
		Groups:  make([]domain.GroupSnapshot, 0, len(groups)),
		Tasks:   make([]domain.TaskSnapshot, 0, len(tasks)),
	}
	for _, group := range groups {
		state.Groups = append(state.Groups, domain.NewGroupSnapshot(group))
	}
	for _, task := range tasks {
		state.Tasks = append(state.Tasks, domain.NewTaskSnapshot(task))
	}

	return state, nil
}

func projectChange(op domain.Operation, project *domain.Project) *domain.ChangeNotification {
	doc, _ := marshalDocument(domain.NewProjectSnapshot(project))
	id := project.ID
	return &domain.ChangeNotification{
		Collection: domain.CollectionProject,
		Operation:  op,
		EntityID:   id,
		ProjectID:  &id,
		Document:   doc,
	}
}
