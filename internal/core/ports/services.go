package ports

import (
	"context"

	"github.com/google/uuid"
	"github.com/hiveboard/taskboard-backend/internal/core/domain"
)

// CreateProjectParams defines the input for creating a project.
type CreateProjectParams struct {
	Name    string
	OwnerID uuid.UUID
}

// RenameProjectParams defines the input for renaming a project.
type RenameProjectParams struct {
	ProjectID uuid.UUID
	Name      string
	ActorID   uuid.UUID
}

// CreateGroupParams defines the input for creating a task group.
type CreateGroupParams struct {
	ProjectID uuid.UUID
	Name      string
	Position  int32
	ActorID   uuid.UUID
}

// RenameGroupParams defines the input for renaming a task group.
type RenameGroupParams struct {
	GroupID uuid.UUID
	Name    string
	ActorID uuid.UUID
}

// CreateTaskParams defines the input for creating a task.
type CreateTaskParams struct {
	GroupID     uuid.UUID
	Title       string
	Description string
	AssigneeID  *uuid.UUID
	Position    int32
	ActorID     uuid.UUID
}

// UpdateTaskParams defines the input for a partial task update. Nil
// fields are left unchanged; ClearAssignee unassigns the task.
type UpdateTaskParams struct {
	TaskID        uuid.UUID
	Title         *string
	Description   *string
	Completed     *bool
	AssigneeID    *uuid.UUID
	ClearAssignee bool
	ActorID       uuid.UUID
}

// MoveTaskParams defines the input for moving a task between groups.
type MoveTaskParams struct {
	TaskID   uuid.UUID
	GroupID  uuid.UUID
	Position int32
	ActorID  uuid.UUID
}

// BoardState is the full authoritative state of one project room,
// fetched by clients on (re)join to bound staleness.
type BoardState struct {
	Project domain.ProjectSnapshot `json:"project"`
	Groups  []domain.GroupSnapshot `json:"groups"`
	Tasks   []domain.TaskSnapshot  `json:"tasks"`
}

// ProjectService defines the core operations for managing projects.
type ProjectService interface {
	CreateProject(ctx context.Context, params CreateProjectParams) (*domain.Project, error)
	GetProject(ctx context.Context, projectID, viewerID uuid.UUID) (*domain.Project, error)
	RenameProject(ctx context.Context, params RenameProjectParams) (*domain.Project, error)
	DeleteProject(ctx context.Context, projectID, actorID uuid.UUID) error
	GetBoardState(ctx context.Context, projectID, viewerID uuid.UUID) (*BoardState, error)
}

// TaskGroupService defines the core operations for managing task groups.
type TaskGroupService interface {
	CreateGroup(ctx context.Context, params CreateGroupParams) (*domain.TaskGroup, error)
	RenameGroup(ctx context.Context, params RenameGroupParams) (*domain.TaskGroup, error)
	DeleteGroup(ctx context.Context, groupID, actorID uuid.UUID) error
	ListGroups(ctx context.Context, projectID, viewerID uuid.UUID) ([]*domain.TaskGroup, error)
}

// TaskService defines the core operations for managing tasks.
type TaskService interface {
	CreateTask(ctx context.Context, params CreateTaskParams) (*domain.Task, error)
	GetTask(ctx context.Context, taskID, viewerID uuid.UUID) (*domain.Task, error)
	UpdateTask(ctx context.Context, params UpdateTaskParams) (*domain.Task, error)
	MoveTask(ctx context.Context, params MoveTaskParams) (*domain.Task, error)
	DeleteTask(ctx context.Context, taskID, actorID uuid.UUID) error
}

// EventBroadcaster delivers a composed event to every connection in the
// event's rooms. Delivery is best-effort: no acknowledgment, no retry.
type EventBroadcaster interface {
	Broadcast(event domain.Event) error
}

// EventComposer turns a raw change notification into a routable event.
type EventComposer interface {
	Compose(ctx context.Context, change domain.ChangeNotification) (domain.Event, error)
}

// JoinAuthorizer decides whether a connection's user may join a room.
// The RBAC rule tables are an external collaborator; this is the single
// extension point the broadcaster consults before honoring a join.
type JoinAuthorizer interface {
	AuthorizeJoin(ctx context.Context, userID uuid.UUID, room string) (bool, error)
}
