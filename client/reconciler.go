package client

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hiveboard/taskboard-backend/internal/core/domain"
)

// MutationKind is the kind of speculative local edit.
type MutationKind string

const (
	MutationCreate MutationKind = "create"
	MutationUpdate MutationKind = "update"
	MutationDelete MutationKind = "delete"
)

// OptimisticMutation tracks one speculative local edit from the instant
// a user action fires until the REST call resolves. PriorSnapshot is
// the rollback target on failure; nil for creates.
type OptimisticMutation struct {
	MutationID    string
	EntityID      string
	Kind          MutationKind
	PriorSnapshot *domain.TaskSnapshot
	AppliedAt     time.Time
}

// TaskPayload is the decoded task-scoped "task_updated" payload.
type TaskPayload struct {
	TaskID    string               `json:"taskId"`
	ProjectID string               `json:"projectId"`
	ListID    *string              `json:"listId,omitempty"`
	Operation domain.Operation     `json:"operation"`
	Data      *domain.TaskSnapshot `json:"data,omitempty"`
}

// GroupPayload is the decoded list-group variant of "task_updated".
type GroupPayload struct {
	Type      string                `json:"type"`
	GroupID   string                `json:"groupId"`
	ProjectID string                `json:"projectId"`
	Operation domain.Operation      `json:"operation"`
	Data      *domain.GroupSnapshot `json:"data,omitempty"`
}

// ProjectPayload is the decoded "project_updated" payload.
type ProjectPayload struct {
	ProjectID string           `json:"projectId"`
	Operation domain.Operation `json:"operation"`
}

// ServerEvent is one decoded wire event. Exactly one of the payload
// fields is set.
type ServerEvent struct {
	Name    string
	Task    *TaskPayload
	Group   *GroupPayload
	Project *ProjectPayload
}

// Transport delivers decoded server events and carries room control
// messages. Implemented by the websocket transport; anything feeding
// the Events channel works.
type Transport interface {
	Events() <-chan ServerEvent
	JoinProject(projectID string) error
	LeaveProject(projectID string) error
	JoinUser(userID string) error
	LeaveUser(userID string) error
	Close() error
}

// CreateTaskParams is the input for an optimistic task creation.
type CreateTaskParams struct {
	GroupID     string
	ProjectID   string
	Title       string
	Description string
	AssigneeID  *string
	Position    int32
}

// UpdateTaskParams is the input for an optimistic partial task update.
// Nil fields are left unchanged.
type UpdateTaskParams struct {
	Title         *string
	Description   *string
	Completed     *bool
	AssigneeID    *string
	ClearAssignee bool
}

// MutationAPI is the REST mutation surface the reconciler pairs its
// optimistic state with. On success, creates return the canonical
// server-assigned entity.
type MutationAPI interface {
	CreateTask(ctx context.Context, params CreateTaskParams) (*domain.TaskSnapshot, error)
	UpdateTask(ctx context.Context, taskID string, params UpdateTaskParams) (*domain.TaskSnapshot, error)
	MoveTask(ctx context.Context, taskID, groupID string, position int32) (*domain.TaskSnapshot, error)
	DeleteTask(ctx context.Context, taskID string) error
	FetchBoard(ctx context.Context, projectID string) (*BoardState, error)
}

// Callbacks are the UI-facing hooks the reconciler invokes from its
// loop goroutine. All fields are optional.
type Callbacks struct {
	// OnChange fires after any state change worth repainting.
	OnChange func()
	// OnError fires when a mutation is rolled back.
	OnError func(err error)
	// OnFocusLost fires when the currently focused task is deleted,
	// locally or by a server event.
	OnFocusLost func(taskID string)
}

// Reconciler keeps the client's local board consistent in the presence
// of both optimistic local edits and server-pushed events. User actions
// and inbound events are multiplexed onto one goroutine that owns all
// state, so there is no locking anywhere in the package.
type Reconciler struct {
	transport Transport
	api       MutationAPI
	store     *Store
	callbacks Callbacks
	logger    *slog.Logger

	// actions carries closures executed by the Run loop. Public
	// methods and REST completion goroutines both post here.
	actions chan func()

	pending   map[string]*OptimisticMutation
	projectID string
	focusedID string
}

// NewReconciler creates a reconciler over the given transport and
// mutation API. Run must be called before it processes anything.
func NewReconciler(transport Transport, api MutationAPI, callbacks Callbacks, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		transport: transport,
		api:       api,
		store:     NewStore(),
		callbacks: callbacks,
		logger:    logger.With("component", "reconciler"),
		actions:   make(chan func(), 64),
		pending:   make(map[string]*OptimisticMutation),
	}
}

// Store exposes the local board state. Read it only from the loop
// goroutine (callbacks) or after Run has returned.
func (r *Reconciler) Store() *Store {
	return r.store
}

// Run processes user actions and inbound server events until ctx ends.
// It is the only goroutine that touches reconciler state.
func (r *Reconciler) Run(ctx context.Context) {
	events := r.transport.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-r.actions:
			fn()
		case event, ok := <-events:
			if !ok {
				// Transport closed; remaining recovery is a rejoin.
				events = nil
				continue
			}
			r.applyEvent(event)
		}
	}
}

// post queues a closure for the loop goroutine.
func (r *Reconciler) post(fn func()) {
	r.actions <- fn
}

func (r *Reconciler) notifyChange() {
	if r.callbacks.OnChange != nil {
		r.callbacks.OnChange()
	}
}

func (r *Reconciler) notifyError(err error) {
	if r.callbacks.OnError != nil {
		r.callbacks.OnError(err)
	}
}

func (r *Reconciler) loseFocus(taskID string) {
	if taskID == "" || r.focusedID != taskID {
		return
	}
	r.focusedID = ""
	if r.callbacks.OnFocusLost != nil {
		r.callbacks.OnFocusLost(taskID)
	}
}

// --- User actions ---

// JoinProject joins the project room and fetches the full board state.
// The fetch is also the bounded-staleness recovery path, so rejoining
// after a reconnect converges the local copy with the server.
func (r *Reconciler) JoinProject(ctx context.Context, projectID string) {
	r.post(func() {
		if r.projectID != "" && r.projectID != projectID {
			if err := r.transport.LeaveProject(r.projectID); err != nil {
				r.logger.Warn("leave previous project failed", "project_id", r.projectID, "error", err)
			}
			r.store.Clear()
			r.pending = make(map[string]*OptimisticMutation)
		}
		r.projectID = projectID
		if err := r.transport.JoinProject(projectID); err != nil {
			r.logger.Warn("join project failed", "project_id", projectID, "error", err)
			r.notifyError(err)
			return
		}
		r.resync(ctx, projectID)
	})
}

// LeaveProject leaves the current project room and discards its state.
// Events for the room arriving afterwards are ignored.
func (r *Reconciler) LeaveProject() {
	r.post(func() {
		if r.projectID == "" {
			return
		}
		if err := r.transport.LeaveProject(r.projectID); err != nil {
			r.logger.Warn("leave project failed", "project_id", r.projectID, "error", err)
		}
		r.projectID = ""
		r.store.Clear()
		r.pending = make(map[string]*OptimisticMutation)
		r.notifyChange()
	})
}

// Resync re-fetches the authoritative board state for the joined room.
func (r *Reconciler) Resync(ctx context.Context) {
	r.post(func() {
		if r.projectID == "" {
			return
		}
		r.resync(ctx, r.projectID)
	})
}

func (r *Reconciler) resync(ctx context.Context, projectID string) {
	go func() {
		board, err := r.api.FetchBoard(ctx, projectID)
		r.post(func() {
			if r.projectID != projectID {
				return
			}
			if err != nil {
				r.logger.Warn("board fetch failed", "project_id", projectID, "error", err)
				r.notifyError(err)
				return
			}
			r.store.Replace(*board)
			r.notifyChange()
		})
	}()
}

// FocusTask marks the task the UI is currently viewing or editing.
func (r *Reconciler) FocusTask(taskID string) {
	r.post(func() {
		r.focusedID = taskID
	})
}

// CreateTask applies an optimistic create under a client-assigned
// temporary id and issues the REST call. On success the temporary
// record is superseded by the server-assigned entity; the server echo
// event merges rather than duplicating whichever arrives first.
func (r *Reconciler) CreateTask(ctx context.Context, params CreateTaskParams) {
	r.post(func() {
		tempID := "tmp-" + uuid.NewString()
		snapshot := domain.TaskSnapshot{
			ID:          tempID,
			GroupID:     params.GroupID,
			ProjectID:   params.ProjectID,
			Title:       params.Title,
			Description: params.Description,
			AssigneeID:  params.AssigneeID,
			Position:    params.Position,
			CreatedAt:   time.Now().UTC().Format(time.RFC3339),
		}
		r.store.PutTask(snapshot, StatusPending)
		r.pending[tempID] = &OptimisticMutation{
			MutationID: uuid.NewString(),
			EntityID:   tempID,
			Kind:       MutationCreate,
			AppliedAt:  time.Now(),
		}
		r.notifyChange()

		go func() {
			created, err := r.api.CreateTask(ctx, params)
			r.post(func() {
				delete(r.pending, tempID)
				if err != nil {
					r.store.RemoveTask(tempID)
					r.notifyChange()
					r.notifyError(err)
					return
				}
				r.store.RemoveTask(tempID)
				// The echo event may have landed first and inserted
				// the server copy already; either way one record
				// remains, keyed by the server id.
				r.store.PutTask(*created, StatusSynced)
				if r.focusedID == tempID {
					r.focusedID = created.ID
				}
				r.notifyChange()
			})
		}()
	})
}

// UpdateTask applies an optimistic partial update and issues the REST
// call. On failure the task rolls back to its prior snapshot.
func (r *Reconciler) UpdateTask(ctx context.Context, taskID string, params UpdateTaskParams) {
	r.post(func() {
		record := r.store.Task(taskID)
		if record == nil {
			return
		}
		prior := record.Snapshot

		updated := prior
		if params.Title != nil {
			updated.Title = *params.Title
		}
		if params.Description != nil {
			updated.Description = *params.Description
		}
		if params.Completed != nil {
			updated.Completed = *params.Completed
		}
		if params.ClearAssignee {
			updated.AssigneeID = nil
		} else if params.AssigneeID != nil {
			updated.AssigneeID = params.AssigneeID
		}

		r.store.PutTask(updated, StatusPending)
		r.pending[taskID] = &OptimisticMutation{
			MutationID:    uuid.NewString(),
			EntityID:      taskID,
			Kind:          MutationUpdate,
			PriorSnapshot: &prior,
			AppliedAt:     time.Now(),
		}
		r.notifyChange()

		go func() {
			confirmed, err := r.api.UpdateTask(ctx, taskID, params)
			r.post(func() { r.resolveTaskMutation(taskID, confirmed, err) })
		}()
	})
}

// MoveTask optimistically relocates a task to another group.
func (r *Reconciler) MoveTask(ctx context.Context, taskID, groupID string, position int32) {
	r.post(func() {
		record := r.store.Task(taskID)
		if record == nil {
			return
		}
		prior := record.Snapshot

		updated := prior
		updated.GroupID = groupID
		updated.Position = position

		r.store.PutTask(updated, StatusPending)
		r.pending[taskID] = &OptimisticMutation{
			MutationID:    uuid.NewString(),
			EntityID:      taskID,
			Kind:          MutationUpdate,
			PriorSnapshot: &prior,
			AppliedAt:     time.Now(),
		}
		r.notifyChange()

		go func() {
			confirmed, err := r.api.MoveTask(ctx, taskID, groupID, position)
			r.post(func() { r.resolveTaskMutation(taskID, confirmed, err) })
		}()
	})
}

// DeleteTask optimistically removes a task and issues the REST call.
// On failure the task is restored from its prior snapshot.
func (r *Reconciler) DeleteTask(ctx context.Context, taskID string) {
	r.post(func() {
		record := r.store.Task(taskID)
		if record == nil {
			return
		}
		prior := record.Snapshot

		r.store.RemoveTask(taskID)
		r.pending[taskID] = &OptimisticMutation{
			MutationID:    uuid.NewString(),
			EntityID:      taskID,
			Kind:          MutationDelete,
			PriorSnapshot: &prior,
			AppliedAt:     time.Now(),
		}
		r.loseFocus(taskID)
		r.notifyChange()

		go func() {
			err := r.api.DeleteTask(ctx, taskID)
			r.post(func() {
				mutation := r.pending[taskID]
				delete(r.pending, taskID)
				if err != nil {
					if mutation != nil && mutation.PriorSnapshot != nil {
						r.store.PutTask(*mutation.PriorSnapshot, StatusSynced)
					}
					r.notifyChange()
					r.notifyError(err)
					return
				}
				r.notifyChange()
			})
		}()
	})
}

// resolveTaskMutation settles a pending update-kind mutation with the
// REST outcome.
func (r *Reconciler) resolveTaskMutation(taskID string, confirmed *domain.TaskSnapshot, err error) {
	mutation := r.pending[taskID]
	delete(r.pending, taskID)
	if err != nil {
		if mutation != nil && mutation.PriorSnapshot != nil {
			r.store.PutTask(*mutation.PriorSnapshot, StatusSynced)
		}
		r.notifyChange()
		r.notifyError(err)
		return
	}
	if confirmed != nil {
		// The record may have been deleted by a server event while the
		// call was in flight; do not resurrect it.
		if r.store.Task(taskID) != nil {
			r.store.PutTask(*confirmed, StatusSynced)
		}
	}
	r.notifyChange()
}

// --- Server event application ---

func (r *Reconciler) applyEvent(event ServerEvent) {
	switch {
	case event.Task != nil:
		r.applyTaskEvent(*event.Task)
	case event.Group != nil:
		r.applyGroupEvent(*event.Group)
	case event.Project != nil:
		r.applyProjectEvent(*event.Project)
	default:
		r.logger.Warn("event with no payload", "event", event.Name)
	}
}

func (r *Reconciler) applyTaskEvent(payload TaskPayload) {
	if r.projectID == "" || payload.ProjectID != r.projectID {
		// Event for a room we have left; discard.
		return
	}

	switch payload.Operation {
	case domain.OpInsert:
		// While our own create is pending we cannot yet match the
		// server id against the temporary id; the REST completion
		// collapses the two records. Re-applying the same insert is
		// an overwrite with identical data.
		if payload.Data == nil {
			return
		}
		r.store.PutTask(*payload.Data, StatusSynced)
		r.notifyChange()

	case domain.OpUpdate, domain.OpReplace:
		if mutation, ok := r.pending[payload.TaskID]; ok && mutation.Kind != MutationCreate {
			// A newer local mutation is in flight; the event is the
			// echo of an older write. Applying it would flicker the
			// optimistic edit away, so it is deferred: the REST
			// resolution carries the final server state.
			return
		}
		if payload.Data == nil {
			return
		}
		r.store.PutTask(*payload.Data, StatusSynced)
		r.notifyChange()

	case domain.OpDelete:
		delete(r.pending, payload.TaskID)
		r.store.RemoveTask(payload.TaskID)
		r.loseFocus(payload.TaskID)
		r.notifyChange()
	}
}

func (r *Reconciler) applyGroupEvent(payload GroupPayload) {
	if r.projectID == "" || payload.ProjectID != r.projectID {
		return
	}

	switch payload.Operation {
	case domain.OpInsert, domain.OpUpdate, domain.OpReplace:
		if payload.Data == nil {
			return
		}
		r.store.PutGroup(*payload.Data, StatusSynced)
		r.notifyChange()

	case domain.OpDelete:
		if r.focusedID != "" {
			if record := r.store.Task(r.focusedID); record != nil && record.Snapshot.GroupID == payload.GroupID {
				r.loseFocus(r.focusedID)
			}
		}
		r.store.RemoveGroup(payload.GroupID)
		r.notifyChange()
	}
}

func (r *Reconciler) applyProjectEvent(payload ProjectPayload) {
	if r.projectID == "" || payload.ProjectID != r.projectID {
		return
	}

	switch payload.Operation {
	case domain.OpDelete:
		r.projectID = ""
		r.store.Clear()
		r.pending = make(map[string]*OptimisticMutation)
		r.loseFocus(r.focusedID)
		r.notifyChange()

	default:
		// Rename or similar metadata change; the event carries no
		// body, so refresh from the board endpoint.
		r.resync(context.Background(), payload.ProjectID)
	}
}
