package ports

import (
	"context"

	"github.com/google/uuid"
	"github.com/hiveboard/taskboard-backend/internal/core/domain"
)

// ProjectRepository is the persistence port for projects.
type ProjectRepository interface {
	Create(ctx context.Context, project *domain.Project) (*domain.Project, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Project, error)
	Update(ctx context.Context, project *domain.Project) (*domain.Project, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// TaskGroupRepository is the persistence port for task groups.
type TaskGroupRepository interface {
	Create(ctx context.Context, group *domain.TaskGroup) (*domain.TaskGroup, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.TaskGroup, error)
	Update(ctx context.Context, group *domain.TaskGroup) (*domain.TaskGroup, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*domain.TaskGroup, error)
}

// TaskRepository is the persistence port for tasks.
type TaskRepository interface {
	Create(ctx context.Context, task *domain.Task) (*domain.Task, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error)
	Update(ctx context.Context, task *domain.Task) (*domain.Task, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*domain.Task, error)
	ListByGroup(ctx context.Context, groupID uuid.UUID) ([]*domain.Task, error)
}

// MembershipRepository answers project membership questions. The full
// role table lives outside this service; only the membership predicate
// is needed for room-join authorization and mutation checks.
type MembershipRepository interface {
	IsMember(ctx context.Context, userID, projectID uuid.UUID) (bool, error)
	AddMember(ctx context.Context, projectID, userID uuid.UUID) error
}

// ChangeFeed is the transactional outbox the change observers read
// from. Append must participate in the caller's transaction so a
// mutation and its change row commit or roll back together.
type ChangeFeed interface {
	// Append records a committed mutation. The notification carries
	// the routing context known to the caller at write time; for
	// deletes this is the only place the owning IDs survive.
	Append(ctx context.Context, change *domain.ChangeNotification) error

	// ReadAfter returns up to limit changes for the collection with
	// feed position strictly greater than after, in position order.
	ReadAfter(ctx context.Context, collection domain.Collection, after int64, limit int) ([]domain.ChangeNotification, error)

	// WaitForChange blocks until new changes may be available or ctx
	// is done. A non-nil error signals a broken feed connection the
	// observer must recover from.
	WaitForChange(ctx context.Context) error
}

// CursorStore persists the per-collection resume cursor so a restart
// never silently skips mutations committed during the outage window.
type CursorStore interface {
	Load(ctx context.Context, collection domain.Collection) (int64, error)
	Save(ctx context.Context, collection domain.Collection, position int64) error
}

// TransactionManager defines the port for running atomic operations.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
