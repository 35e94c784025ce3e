package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hiveboard/taskboard-backend/internal/core/domain"
	apperrors "github.com/hiveboard/taskboard-backend/internal/core/errors"
	"github.com/hiveboard/taskboard-backend/internal/core/ports"
)

// EventComposer turns raw change notifications into routable events.
//
// Routing resolution order, decided once for all operations: the IDs
// written into the change row by the mutation's caller are
// authoritative; the route cache is a fallback for rows that predate a
// context-carrying writer; repository lookups are the last resort and
// only possible while the entity still exists. A delete that cannot be
// routed by the first two is dropped and logged - it is a correctness
// gap, never hidden.
type EventComposer struct {
	taskRepo  ports.TaskRepository
	groupRepo ports.TaskGroupRepository
	cache     *routeCache
	logger    *slog.Logger

	// unroutedDrops counts events dropped for missing routing context.
	// The composer is shared by one observer goroutine per collection.
	unroutedDrops atomic.Int64
}

var _ ports.EventComposer = (*EventComposer)(nil)

// NewEventComposer creates a new event composer. cacheTTL bounds how
// long an entity's routing context survives its last sighting.
func NewEventComposer(
	taskRepo ports.TaskRepository,
	groupRepo ports.TaskGroupRepository,
	cacheTTL time.Duration,
	logger *slog.Logger,
) *EventComposer {
	return &EventComposer{
		taskRepo:  taskRepo,
		groupRepo: groupRepo,
		cache:     newRouteCache(cacheTTL),
		logger:    logger.With("component", "event_composer"),
	}
}

// Compose builds the addressed event for a change notification.
// Composition is idempotent: the same notification always yields the
// same event, so at-least-once feed delivery is safe upstream.
func (c *EventComposer) Compose(ctx context.Context, change domain.ChangeNotification) (domain.Event, error) {
	switch change.Collection {
	case domain.CollectionTask:
		return c.composeTask(ctx, change)
	case domain.CollectionTaskGroup:
		return c.composeGroup(ctx, change)
	case domain.CollectionProject:
		return c.composeProject(change)
	default:
		c.logger.Warn("change for unknown collection dropped",
			"collection", change.Collection,
			"entity_id", change.EntityID,
		)
		return nil, apperrors.ErrRouteUnresolved
	}
}

func (c *EventComposer) composeTask(ctx context.Context, change domain.ChangeNotification) (domain.Event, error) {
	route, snapshot, err := c.resolveTaskRoute(ctx, change)
	if err != nil {
		c.dropUnrouted(change)
		return nil, err
	}

	event := domain.TaskEvent{
		TaskID:     change.EntityID,
		ProjectID:  route.projectID,
		ListID:     route.groupID,
		Operation:  change.Operation,
		AssigneeID: route.assigneeID,
	}

	if change.Operation == domain.OpDelete {
		c.cache.Forget(change.EntityID)
		return event, nil
	}

	event.Data = snapshot
	c.cache.Put(change.EntityID, route)
	return event, nil
}

// resolveTaskRoute finds the owning project (and group/assignee) of a
// task change, plus the entity snapshot when one is recoverable.
func (c *EventComposer) resolveTaskRoute(ctx context.Context, change domain.ChangeNotification) (routeContext, *domain.TaskSnapshot, error) {
	var snapshot *domain.TaskSnapshot
	if len(change.Document) > 0 {
		var s domain.TaskSnapshot
		if err := json.Unmarshal(change.Document, &s); err == nil {
			snapshot = &s
		}
	}

	// Caller-supplied context on the change row wins.
	if change.ProjectID != nil {
		return routeContext{
			projectID:  *change.ProjectID,
			groupID:    change.GroupID,
			assigneeID: change.AssigneeID,
		}, snapshot, nil
	}

	// Attached document next: it carries the parent references.
	if snapshot != nil {
		if route, ok := taskRouteFromSnapshot(snapshot); ok {
			return route, snapshot, nil
		}
	}

	// Deletes cannot be looked up post-deletion; only the cache helps.
	if change.Operation == domain.OpDelete {
		if route, ok := c.cache.Get(change.EntityID); ok {
			return route, nil, nil
		}
		return routeContext{}, nil, apperrors.ErrRouteUnresolved
	}

	// Surviving entity: follow task -> group -> project in the store.
	task, err := c.taskRepo.GetByID(ctx, change.EntityID)
	if err != nil {
		if route, ok := c.cache.Get(change.EntityID); ok {
			return route, snapshot, nil
		}
		return routeContext{}, nil, apperrors.ErrRouteUnresolved
	}

	s := domain.NewTaskSnapshot(task)
	groupID := task.GroupID
	return routeContext{
		projectID:  task.ProjectID,
		groupID:    &groupID,
		assigneeID: task.AssigneeID,
	}, &s, nil
}

func (c *EventComposer) composeGroup(ctx context.Context, change domain.ChangeNotification) (domain.Event, error) {
	var snapshot *domain.GroupSnapshot
	if len(change.Document) > 0 {
		var s domain.GroupSnapshot
		if err := json.Unmarshal(change.Document, &s); err == nil {
			snapshot = &s
		}
	}

	var projectID uuid.UUID
	switch {
	case change.ProjectID != nil:
		projectID = *change.ProjectID
	case snapshot != nil && snapshot.ProjectID != "":
		id, err := uuid.Parse(snapshot.ProjectID)
		if err != nil {
			c.dropUnrouted(change)
			return nil, apperrors.ErrRouteUnresolved
		}
		projectID = id
	case change.Operation == domain.OpDelete:
		route, ok := c.cache.Get(change.EntityID)
		if !ok {
			c.dropUnrouted(change)
			return nil, apperrors.ErrRouteUnresolved
		}
		projectID = route.projectID
	default:
		group, err := c.groupRepo.GetByID(ctx, change.EntityID)
		if err != nil {
			c.dropUnrouted(change)
			return nil, apperrors.ErrRouteUnresolved
		}
		projectID = group.ProjectID
		s := domain.NewGroupSnapshot(group)
		snapshot = &s
	}

	event := domain.GroupEvent{
		Type:      domain.GroupEventType,
		GroupID:   change.EntityID,
		ProjectID: projectID,
		Operation: change.Operation,
	}

	if change.Operation == domain.OpDelete {
		c.cache.Forget(change.EntityID)
		return event, nil
	}

	event.Data = snapshot
	c.cache.Put(change.EntityID, routeContext{projectID: projectID})
	return event, nil
}

// composeProject needs no resolution: the entity ID is the routing key.
func (c *EventComposer) composeProject(change domain.ChangeNotification) (domain.Event, error) {
	return domain.ProjectEvent{
		ProjectID: change.EntityID,
		Operation: change.Operation,
	}, nil
}

// UnroutedDrops reports how many events were dropped for missing
// routing context since startup.
func (c *EventComposer) UnroutedDrops() int64 {
	return c.unroutedDrops.Load()
}

func (c *EventComposer) dropUnrouted(change domain.ChangeNotification) {
	c.unroutedDrops.Add(1)
	c.logger.Warn("dropping event with unresolvable routing context",
		"collection", change.Collection,
		"operation", change.Operation,
		"entity_id", change.EntityID,
		"feed_position", change.ID,
	)
}

// Sweep evicts expired cache entries. The observer calls this between
// idle periods.
func (c *EventComposer) Sweep() {
	c.cache.sweep()
}

func taskRouteFromSnapshot(s *domain.TaskSnapshot) (routeContext, bool) {
	projectID, err := uuid.Parse(s.ProjectID)
	if err != nil {
		return routeContext{}, false
	}
	route := routeContext{projectID: projectID}
	if groupID, err := uuid.Parse(s.GroupID); err == nil {
		route.groupID = &groupID
	}
	if s.AssigneeID != nil {
		if assigneeID, err := uuid.Parse(*s.AssigneeID); err == nil {
			route.assigneeID = &assigneeID
		}
	}
	return route, true
}
