package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/hiveboard/taskboard-backend/internal/core/domain"
	"github.com/stretchr/testify/mock"
)

// MockProjectRepository is a mock implementation of ports.ProjectRepository
type MockProjectRepository struct {
	mock.Mock
}

func NewMockProjectRepository() *MockProjectRepository {
	return &MockProjectRepository{}
}

func (m *MockProjectRepository) Create(ctx context.Context, project *domain.Project) (*domain.Project, error) {
	args := m.Called(ctx, project)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Project), args.Error(1)
}

func (m *MockProjectRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Project, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Project), args.Error(1)
}

func (m *MockProjectRepository) Update(ctx context.Context, project *domain.Project) (*domain.Project, error) {
	args := m.Called(ctx, project)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Project), args.Error(1)
}

func (m *MockProjectRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockTaskGroupRepository is a mock implementation of ports.TaskGroupRepository
type MockTaskGroupRepository struct {
	mock.Mock
}

func NewMockTaskGroupRepository() *MockTaskGroupRepository {
	return &MockTaskGroupRepository{}
}

func (m *MockTaskGroupRepository) Create(ctx context.Context, group *domain.TaskGroup) (*domain.TaskGroup, error) {
	args := m.Called(ctx, group)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TaskGroup), args.Error(1)
}

func (m *MockTaskGroupRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.TaskGroup, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TaskGroup), args.Error(1)
}

func (m *MockTaskGroupRepository) Update(ctx context.Context, group *domain.TaskGroup) (*domain.TaskGroup, error) {
	args := m.Called(ctx, group)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TaskGroup), args.Error(1)
}

func (m *MockTaskGroupRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockTaskGroupRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*domain.TaskGroup, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.TaskGroup), args.Error(1)
}

// MockTaskRepository is a mock implementation of ports.TaskRepository
type MockTaskRepository struct {
	mock.Mock
}

func NewMockTaskRepository() *MockTaskRepository {
	return &MockTaskRepository{}
}

func (m *MockTaskRepository) Create(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	args := m.Called(ctx, task)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Task), args.Error(1)
}

func (m *MockTaskRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Task), args.Error(1)
}

func (m *MockTaskRepository) Update(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	args := m.Called(ctx, task)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Task), args.Error(1)
}

func (m *MockTaskRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockTaskRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*domain.Task, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Task), args.Error(1)
}

func (m *MockTaskRepository) ListByGroup(ctx context.Context, groupID uuid.UUID) ([]*domain.Task, error) {
	args := m.Called(ctx, groupID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Task), args.Error(1)
}

// MockMembershipRepository is a mock implementation of ports.MembershipRepository
type MockMembershipRepository struct {
	mock.Mock
}

func NewMockMembershipRepository() *MockMembershipRepository {
	return &MockMembershipRepository{}
}

func (m *MockMembershipRepository) IsMember(ctx context.Context, userID, projectID uuid.UUID) (bool, error) {
	args := m.Called(ctx, userID, projectID)
	return args.Bool(0), args.Error(1)
}

func (m *MockMembershipRepository) AddMember(ctx context.Context, projectID, userID uuid.UUID) error {
	args := m.Called(ctx, projectID, userID)
	return args.Error(0)
}

// MockChangeFeed is a mock implementation of ports.ChangeFeed
type MockChangeFeed struct {
	mock.Mock
}

func NewMockChangeFeed() *MockChangeFeed {
	return &MockChangeFeed{}
}

func (m *MockChangeFeed) Append(ctx context.Context, change *domain.ChangeNotification) error {
	args := m.Called(ctx, change)
	return args.Error(0)
}

func (m *MockChangeFeed) ReadAfter(ctx context.Context, collection domain.Collection, after int64, limit int) ([]domain.ChangeNotification, error) {
	args := m.Called(ctx, collection, after, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ChangeNotification), args.Error(1)
}

func (m *MockChangeFeed) WaitForChange(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockCursorStore is a mock implementation of ports.CursorStore
type MockCursorStore struct {
	mock.Mock
}

func NewMockCursorStore() *MockCursorStore {
	return &MockCursorStore{}
}

func (m *MockCursorStore) Load(ctx context.Context, collection domain.Collection) (int64, error) {
	args := m.Called(ctx, collection)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCursorStore) Save(ctx context.Context, collection domain.Collection, position int64) error {
	args := m.Called(ctx, collection, position)
	return args.Error(0)
}

// MockTransactionManager is a mock implementation of ports.TransactionManager.
// It runs the given function directly so service logic under test
// executes without a database.
type MockTransactionManager struct {
	mock.Mock
}

func NewMockTransactionManager() *MockTransactionManager {
	return &MockTransactionManager{}
}

func (m *MockTransactionManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	args := m.Called(ctx, fn)
	if args.Error(0) != nil {
		return args.Error(0)
	}
	return fn(ctx)
}

// MockEventBroadcaster is a mock implementation of ports.EventBroadcaster
type MockEventBroadcaster struct {
	mock.Mock
}

func NewMockEventBroadcaster() *MockEventBroadcaster {
	return &MockEventBroadcaster{}
}

func (m *MockEventBroadcaster) Broadcast(event domain.Event) error {
	args := m.Called(event)
	return args.Error(0)
}

// MockEventComposer is a mock implementation of ports.EventComposer
type MockEventComposer struct {
	mock.Mock
}

func NewMockEventComposer() *MockEventComposer {
	return &MockEventComposer{}
}

func (m *MockEventComposer) Compose(ctx context.Context, change domain.ChangeNotification) (domain.Event, error) {
	args := m.Called(ctx, change)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(domain.Event), args.Error(1)
}

// MockJoinAuthorizer is a mock implementation of ports.JoinAuthorizer
type MockJoinAuthorizer struct {
	mock.Mock
}

func NewMockJoinAuthorizer() *MockJoinAuthorizer {
	return &MockJoinAuthorizer{}
}

func (m *MockJoinAuthorizer) AuthorizeJoin(ctx context.Context, userID uuid.UUID, room string) (bool, error) {
	args := m.Called(ctx, userID, room)
	return args.Bool(0), args.Error(1)
}
