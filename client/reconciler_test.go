package client

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hiveboard/taskboard-backend/internal/core/domain"
)

// fakeTransport feeds events to the reconciler and records control
// messages.
type fakeTransport struct {
	events chan ServerEvent
	joined []string
	left   []string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{events: make(chan ServerEvent, 16)}
}

func (t *fakeTransport) Events() <-chan ServerEvent       { return t.events }
func (t *fakeTransport) JoinProject(projectID string) error {
	t.joined = append(t.joined, projectID)
	return nil
}
func (t *fakeTransport) LeaveProject(projectID string) error {
	t.left = append(t.left, projectID)
	return nil
}
func (t *fakeTransport) JoinUser(string) error  { return nil }
func (t *fakeTransport) LeaveUser(string) error { return nil }
func (t *fakeTransport) Close() error           { return nil }

// fakeAPI answers mutation calls from function fields; nil fields fail
// the test if called.
type fakeAPI struct {
	createTask func(CreateTaskParams) (*domain.TaskSnapshot, error)
	updateTask func(string, UpdateTaskParams) (*domain.TaskSnapshot, error)
	moveTask   func(string, string, int32) (*domain.TaskSnapshot, error)
	deleteTask func(string) error
	fetchBoard func(string) (*BoardState, error)
}

func (a *fakeAPI) CreateTask(_ context.Context, params CreateTaskParams) (*domain.TaskSnapshot, error) {
	return a.createTask(params)
}

func (a *fakeAPI) UpdateTask(_ context.Context, taskID string, params UpdateTaskParams) (*domain.TaskSnapshot, error) {
	return a.updateTask(taskID, params)
}

func (a *fakeAPI) MoveTask(_ context.Context, taskID, groupID string, position int32) (*domain.TaskSnapshot, error) {
	return a.moveTask(taskID, groupID, position)
}

func (a *fakeAPI) DeleteTask(_ context.Context, taskID string) error {
	return a.deleteTask(taskID)
}

func (a *fakeAPI) FetchBoard(_ context.Context, projectID string) (*BoardState, error) {
	return a.fetchBoard(projectID)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(testWriter{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

type testWriter struct{}

func (testWriter) Write(p []byte) (int, error) { return len(p), nil }

// startReconciler runs the loop and returns a stop function.
func startReconciler(t *testing.T, r *Reconciler) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

// barrier waits until the loop has drained everything posted before it.
func barrier(r *Reconciler) {
	done := make(chan struct{})
	r.post(func() { close(done) })
	<-done
}

// taskCopy reads a task snapshot through the loop goroutine.
func taskCopy(r *Reconciler, id string) *domain.TaskSnapshot {
	var snapshot *domain.TaskSnapshot
	done := make(chan struct{})
	r.post(func() {
		if record := r.store.Task(id); record != nil {
			copied := record.Snapshot
			snapshot = &copied
		}
		close(done)
	})
	<-done
	return snapshot
}

func taskCount(r *Reconciler) int {
	var count int
	done := make(chan struct{})
	r.post(func() {
		count = len(r.store.Tasks())
		close(done)
	})
	<-done
	return count
}

func joinedProject(r *Reconciler, projectID string) {
	done := make(chan struct{})
	r.post(func() {
		r.projectID = projectID
		close(done)
	})
	<-done
}

func taskSnapshot(id, groupID, projectID, title string, completed bool) domain.TaskSnapshot {
	return domain.TaskSnapshot{
		ID:        id,
		GroupID:   groupID,
		ProjectID: projectID,
		Title:     title,
		Completed: completed,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
}

func TestReconciler_EventIdempotence(t *testing.T) {
	transport := newFakeTransport()
	r := NewReconciler(transport, &fakeAPI{}, Callbacks{}, testLogger())
	startReconciler(t, r)
	joinedProject(r, "p1")

	snapshot := taskSnapshot("t1", "g1", "p1", "Write docs", false)
	event := ServerEvent{Name: "task_updated", Task: &TaskPayload{
		TaskID:    "t1",
		ProjectID: "p1",
		Operation: domain.OpInsert,
		Data:      &snapshot,
	}}

	transport.events <- event
	transport.events <- event
	barrier(r)

	assert.Equal(t, 1, taskCount(r))
	got := taskCopy(r, "t1")
	require.NotNil(t, got)
	assert.Equal(t, snapshot, *got)
}

func TestReconciler_EventsForOtherRoomsDiscarded(t *testing.T) {
	transport := newFakeTransport()
	r := NewReconciler(transport, &fakeAPI{}, Callbacks{}, testLogger())
	startReconciler(t, r)
	joinedProject(r, "p1")

	other := taskSnapshot("t9", "g9", "p2", "Elsewhere", false)
	transport.events <- ServerEvent{Name: "task_updated", Task: &TaskPayload{
		TaskID:    "t9",
		ProjectID: "p2",
		Operation: domain.OpInsert,
		Data:      &other,
	}}
	barrier(r)

	assert.Equal(t, 0, taskCount(r))
}

func TestReconciler_CreateMergesServerEcho(t *testing.T) {
	transport := newFakeTransport()

	serverTask := taskSnapshot("t-server", "g1", "p1", "New task", false)
	release := make(chan struct{})
	api := &fakeAPI{
		createTask: func(CreateTaskParams) (*domain.TaskSnapshot, error) {
			<-release
			copied := serverTask
			return &copied, nil
		},
	}

	r := NewReconciler(transport, api, Callbacks{}, testLogger())
	startReconciler(t, r)
	joinedProject(r, "p1")

	r.CreateTask(context.Background(), CreateTaskParams{
		GroupID:   "g1",
		ProjectID: "p1",
		Title:     "New task",
	})
	barrier(r)
	assert.Equal(t, 1, taskCount(r), "optimistic create visible under temp id")

	// The server echo of our own create races the REST response and
	// lands first.
	echo := serverTask
	transport.events <- ServerEvent{Name: "task_updated", Task: &TaskPayload{
		TaskID:    "t-server",
		ProjectID: "p1",
		Operation: domain.OpInsert,
		Data:      &echo,
	}}
	barrier(r)

	close(release)
	require.Eventually(t, func() bool {
		return taskCount(r) == 1
	}, time.Second, 5*time.Millisecond, "temp record and echo must collapse to one")

	got := taskCopy(r, "t-server")
	require.NotNil(t, got)
	assert.Equal(t, serverTask, *got)
}

func TestReconciler_StaleEchoDoesNotFlickerPendingEdit(t *testing.T) {
	transport := newFakeTransport()

	confirmed := taskSnapshot("t1", "g1", "p1", "Ship it", true)
	release := make(chan struct{})
	api := &fakeAPI{
		updateTask: func(string, UpdateTaskParams) (*domain.TaskSnapshot, error) {
			<-release
			copied := confirmed
			return &copied, nil
		},
	}

	r := NewReconciler(transport, api, Callbacks{}, testLogger())
	startReconciler(t, r)
	joinedProject(r, "p1")

	initial := taskSnapshot("t1", "g1", "p1", "Ship it", false)
	r.post(func() { r.store.PutTask(initial, StatusSynced) })

	completed := true
	r.UpdateTask(context.Background(), "t1", UpdateTaskParams{Completed: &completed})
	barrier(r)

	got := taskCopy(r, "t1")
	require.NotNil(t, got)
	assert.True(t, got.Completed, "optimistic completion applied")

	// Server echo composed from an older document state arrives while
	// the REST call is still in flight.
	stale := taskSnapshot("t1", "g1", "p1", "Ship it", false)
	transport.events <- ServerEvent{Name: "task_updated", Task: &TaskPayload{
		TaskID:    "t1",
		ProjectID: "p1",
		Operation: domain.OpUpdate,
		Data:      &stale,
	}}
	barrier(r)

	got = taskCopy(r, "t1")
	require.NotNil(t, got)
	assert.True(t, got.Completed, "stale echo must not flicker the task back to incomplete")

	close(release)
	require.Eventually(t, func() bool {
		record := taskCopy(r, "t1")
		return record != nil && record.Completed
	}, time.Second, 5*time.Millisecond)
}

func TestReconciler_FailedUpdateRollsBack(t *testing.T) {
	transport := newFakeTransport()

	apiErr := errors.New("boom")
	errs := make(chan error, 1)
	api := &fakeAPI{
		updateTask: func(string, UpdateTaskParams) (*domain.TaskSnapshot, error) {
			return nil, apiErr
		},
	}

	r := NewReconciler(transport, api, Callbacks{
		OnError: func(err error) { errs <- err },
	}, testLogger())
	startReconciler(t, r)
	joinedProject(r, "p1")

	initial := taskSnapshot("t1", "g1", "p1", "Original", false)
	r.post(func() { r.store.PutTask(initial, StatusSynced) })

	title := "Edited"
	r.UpdateTask(context.Background(), "t1", UpdateTaskParams{Title: &title})

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, apiErr)
	case <-time.After(time.Second):
		t.Fatal("expected rollback error callback")
	}
	barrier(r)

	got := taskCopy(r, "t1")
	require.NotNil(t, got)
	assert.Equal(t, "Original", got.Title, "state must roll back to the prior snapshot")
}

func TestReconciler_FailedDeleteRestoresTask(t *testing.T) {
	transport := newFakeTransport()

	errs := make(chan error, 1)
	api := &fakeAPI{
		deleteTask: func(string) error { return errors.New("denied") },
	}

	r := NewReconciler(transport, api, Callbacks{
		OnError: func(err error) { errs <- err },
	}, testLogger())
	startReconciler(t, r)
	joinedProject(r, "p1")

	initial := taskSnapshot("t1", "g1", "p1", "Keep me", false)
	r.post(func() { r.store.PutTask(initial, StatusSynced) })

	r.DeleteTask(context.Background(), "t1")
	barrier(r)
	assert.Nil(t, taskCopy(r, "t1"), "optimistic delete removes the task")

	select {
	case <-errs:
	case <-time.After(time.Second):
		t.Fatal("expected error callback")
	}
	barrier(r)

	got := taskCopy(r, "t1")
	require.NotNil(t, got, "failed delete must restore the task")
	assert.Equal(t, "Keep me", got.Title)
}

func TestReconciler_DeleteEventClearsFocus(t *testing.T) {
	transport := newFakeTransport()
	lost := make(chan string, 1)

	r := NewReconciler(transport, &fakeAPI{}, Callbacks{
		OnFocusLost: func(taskID string) { lost <- taskID },
	}, testLogger())
	startReconciler(t, r)
	joinedProject(r, "p1")

	initial := taskSnapshot("t1", "g1", "p1", "Open in editor", false)
	r.post(func() { r.store.PutTask(initial, StatusSynced) })
	r.FocusTask("t1")

	transport.events <- ServerEvent{Name: "task_updated", Task: &TaskPayload{
		TaskID:    "t1",
		ProjectID: "p1",
		Operation: domain.OpDelete,
	}}
	barrier(r)

	select {
	case taskID := <-lost:
		assert.Equal(t, "t1", taskID)
	case <-time.After(time.Second):
		t.Fatal("expected focus-lost callback")
	}
	assert.Nil(t, taskCopy(r, "t1"))
}

func TestReconciler_GroupDeleteRemovesContainedTasks(t *testing.T) {
	transport := newFakeTransport()
	r := NewReconciler(transport, &fakeAPI{}, Callbacks{}, testLogger())
	startReconciler(t, r)
	joinedProject(r, "p1")

	r.post(func() {
		r.store.PutGroup(domain.GroupSnapshot{ID: "g1", ProjectID: "p1", Name: "Doing"}, StatusSynced)
		r.store.PutTask(taskSnapshot("t1", "g1", "p1", "A", false), StatusSynced)
		r.store.PutTask(taskSnapshot("t2", "g1", "p1", "B", false), StatusSynced)
		r.store.PutTask(taskSnapshot("t3", "g2", "p1", "C", false), StatusSynced)
	})

	transport.events <- ServerEvent{Name: "task_updated", Group: &GroupPayload{
		Type:      "group",
		GroupID:   "g1",
		ProjectID: "p1",
		Operation: domain.OpDelete,
	}}
	barrier(r)

	assert.Nil(t, taskCopy(r, "t1"))
	assert.Nil(t, taskCopy(r, "t2"))
	assert.NotNil(t, taskCopy(r, "t3"), "tasks in other groups survive")
}

func TestReconciler_JoinProjectConverges(t *testing.T) {
	transport := newFakeTransport()

	board := &BoardState{
		Project: domain.ProjectSnapshot{ID: "p1", Name: "Roadmap", OwnerID: "u1"},
		Groups: []domain.GroupSnapshot{
			{ID: "g1", ProjectID: "p1", Name: "Todo"},
		},
		Tasks: []domain.TaskSnapshot{
			taskSnapshot("t1", "g1", "p1", "A", false),
			taskSnapshot("t2", "g1", "p1", "B", true),
		},
	}
	api := &fakeAPI{
		fetchBoard: func(projectID string) (*BoardState, error) {
			require.Equal(t, "p1", projectID)
			return board, nil
		},
	}

	r := NewReconciler(transport, api, Callbacks{}, testLogger())
	startReconciler(t, r)

	// Local state diverged while disconnected; the rejoin fetch is the
	// recovery path and must converge on the server copy.
	r.post(func() {
		r.store.PutTask(taskSnapshot("t-ghost", "g1", "p1", "Ghost", false), StatusSynced)
	})

	r.JoinProject(context.Background(), "p1")
	require.Eventually(t, func() bool {
		return taskCount(r) == 2 && taskCopy(r, "t-ghost") == nil
	}, time.Second, 5*time.Millisecond)

	got := taskCopy(r, "t2")
	require.NotNil(t, got)
	assert.True(t, got.Completed)
}
