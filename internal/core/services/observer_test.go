package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hiveboard/taskboard-backend/internal/core/domain"
	apperrors "github.com/hiveboard/taskboard-backend/internal/core/errors"
	"github.com/hiveboard/taskboard-backend/internal/core/mocks"
)

func fastObserverConfig() ObserverConfig {
	return ObserverConfig{
		BatchSize:    100,
		PollInterval: 10 * time.Millisecond,
		BackoffBase:  time.Millisecond,
		BackoffMax:   5 * time.Millisecond,
		MaxFailures:  3,
	}
}

func newObserver(
	feed *mocks.MockChangeFeed,
	cursors *mocks.MockCursorStore,
	composer *mocks.MockEventComposer,
	broadcaster *mocks.MockEventBroadcaster,
) *ChangeObserver {
	return NewChangeObserver(feed, cursors, composer, broadcaster, fastObserverConfig(), testLogger())
}

func feedRow(id int64, projectID uuid.UUID) domain.ChangeNotification {
	return domain.ChangeNotification{
		ID:         id,
		Collection: domain.CollectionTask,
		Operation:  domain.OpUpdate,
		EntityID:   uuid.New(),
		ProjectID:  &projectID,
	}
}

func TestChangeObserver_DrainBroadcastsAndAdvancesCursor(t *testing.T) {
	feed := mocks.NewMockChangeFeed()
	cursors := mocks.NewMockCursorStore()
	composer := mocks.NewMockEventComposer()
	broadcaster := mocks.NewMockEventBroadcaster()
	observer := newObserver(feed, cursors, composer, broadcaster)

	projectID := uuid.New()
	rows := []domain.ChangeNotification{feedRow(43, projectID), feedRow(44, projectID)}

	feed.On("ReadAfter", mock.Anything, domain.CollectionTask, int64(42), 100).Return(rows, nil)
	composer.On("Compose", mock.Anything, rows[0]).Return(domain.TaskEvent{TaskID: rows[0].EntityID, ProjectID: projectID}, nil)
	composer.On("Compose", mock.Anything, rows[1]).Return(domain.TaskEvent{TaskID: rows[1].EntityID, ProjectID: projectID}, nil)
	broadcaster.On("Broadcast", mock.Anything).Return(nil).Times(2)
	cursors.On("Save", mock.Anything, domain.CollectionTask, int64(44)).Return(nil)

	cursor := int64(42)
	advanced, err := observer.drain(context.Background(), domain.CollectionTask, &cursor)
	require.NoError(t, err)

	assert.True(t, advanced)
	assert.Equal(t, int64(44), cursor, "cursor lands on the last processed row")
	feed.AssertExpectations(t)
	broadcaster.AssertExpectations(t)
	cursors.AssertExpectations(t)
}

func TestChangeObserver_DrainSkipsUnroutableRows(t *testing.T) {
	feed := mocks.NewMockChangeFeed()
	cursors := mocks.NewMockCursorStore()
	composer := mocks.NewMockEventComposer()
	broadcaster := mocks.NewMockEventBroadcaster()
	observer := newObserver(feed, cursors, composer, broadcaster)

	projectID := uuid.New()
	rows := []domain.ChangeNotification{feedRow(1, projectID), feedRow(2, projectID)}

	feed.On("ReadAfter", mock.Anything, domain.CollectionTask, int64(0), 100).Return(rows, nil)
	composer.On("Compose", mock.Anything, rows[0]).Return(nil, apperrors.ErrRouteUnresolved)
	composer.On("Compose", mock.Anything, rows[1]).Return(domain.TaskEvent{TaskID: rows[1].EntityID, ProjectID: projectID}, nil)
	broadcaster.On("Broadcast", mock.Anything).Return(nil).Once()
	cursors.On("Save", mock.Anything, domain.CollectionTask, int64(2)).Return(nil)

	cursor := int64(0)
	advanced, err := observer.drain(context.Background(), domain.CollectionTask, &cursor)
	require.NoError(t, err)

	// The dropped row still advances the cursor; it will never be
	// routable and must not wedge the watcher.
	assert.True(t, advanced)
	assert.Equal(t, int64(2), cursor)
	broadcaster.AssertExpectations(t)
}

func TestChangeObserver_DrainQuietFeed(t *testing.T) {
	feed := mocks.NewMockChangeFeed()
	cursors := mocks.NewMockCursorStore()
	observer := newObserver(feed, cursors, mocks.NewMockEventComposer(), mocks.NewMockEventBroadcaster())

	feed.On("ReadAfter", mock.Anything, domain.CollectionTask, int64(9), 100).Return([]domain.ChangeNotification{}, nil)

	cursor := int64(9)
	advanced, err := observer.drain(context.Background(), domain.CollectionTask, &cursor)
	require.NoError(t, err)

	assert.False(t, advanced)
	assert.Equal(t, int64(9), cursor)
	cursors.AssertNotCalled(t, "Save")
}

func TestChangeObserver_DrainFeedErrorLeavesCursor(t *testing.T) {
	feed := mocks.NewMockChangeFeed()
	cursors := mocks.NewMockCursorStore()
	observer := newObserver(feed, cursors, mocks.NewMockEventComposer(), mocks.NewMockEventBroadcaster())

	feed.On("ReadAfter", mock.Anything, domain.CollectionTask, int64(5), 100).Return(nil, errors.New("connection reset"))

	cursor := int64(5)
	advanced, err := observer.drain(context.Background(), domain.CollectionTask, &cursor)
	require.Error(t, err)

	assert.False(t, advanced)
	assert.Equal(t, int64(5), cursor)
}

func TestChangeObserver_WatcherFailsAfterBoundedRetries(t *testing.T) {
	feed := mocks.NewMockChangeFeed()
	cursors := mocks.NewMockCursorStore()
	observer := newObserver(feed, cursors, mocks.NewMockEventComposer(), mocks.NewMockEventBroadcaster())

	cursors.On("Load", mock.Anything, domain.CollectionTask).Return(int64(0), nil)
	feed.On("ReadAfter", mock.Anything, domain.CollectionTask, int64(0), 100).Return(nil, errors.New("feed down"))

	observer.watch(context.Background(), domain.CollectionTask)

	assert.Equal(t, WatcherFailed, observer.State(domain.CollectionTask))
	feed.AssertNumberOfCalls(t, "ReadAfter", fastObserverConfig().MaxFailures)
}

func TestChangeObserver_WatcherFailsWhenCursorLoadFails(t *testing.T) {
	feed := mocks.NewMockChangeFeed()
	cursors := mocks.NewMockCursorStore()
	observer := newObserver(feed, cursors, mocks.NewMockEventComposer(), mocks.NewMockEventBroadcaster())

	cursors.On("Load", mock.Anything, domain.CollectionTask).Return(int64(0), errors.New("cursor table missing"))

	observer.watch(context.Background(), domain.CollectionTask)

	assert.Equal(t, WatcherFailed, observer.State(domain.CollectionTask))
	feed.AssertNotCalled(t, "ReadAfter")
}

func TestChangeObserver_WatcherStopsCleanlyOnCancel(t *testing.T) {
	feed := mocks.NewMockChangeFeed()
	cursors := mocks.NewMockCursorStore()
	observer := newObserver(feed, cursors, mocks.NewMockEventComposer(), mocks.NewMockEventBroadcaster())

	cursors.On("Load", mock.Anything, domain.CollectionTask).Return(int64(0), nil)
	feed.On("ReadAfter", mock.Anything, domain.CollectionTask, int64(0), 100).Return([]domain.ChangeNotification{}, nil)
	feed.On("WaitForChange", mock.Anything).Run(func(args mock.Arguments) {
		<-args.Get(0).(context.Context).Done()
	}).Return(context.Canceled)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		observer.watch(ctx, domain.CollectionTask)
	}()

	assert.Eventually(t, func() bool {
		return observer.State(domain.CollectionTask) == WatcherWatching
	}, time.Second, time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop after cancel")
	}
	assert.Equal(t, WatcherIdle, observer.State(domain.CollectionTask))
}

func TestChangeObserver_RunStartsOneWatcherPerCollection(t *testing.T) {
	feed := mocks.NewMockChangeFeed()
	cursors := mocks.NewMockCursorStore()
	observer := newObserver(feed, cursors, mocks.NewMockEventComposer(), mocks.NewMockEventBroadcaster())

	for _, collection := range domain.Collections {
		cursors.On("Load", mock.Anything, collection).Return(int64(0), nil)
		feed.On("ReadAfter", mock.Anything, collection, int64(0), 100).Return([]domain.ChangeNotification{}, nil)
	}
	feed.On("WaitForChange", mock.Anything).Run(func(args mock.Arguments) {
		<-args.Get(0).(context.Context).Done()
	}).Return(context.Canceled)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		observer.Run(ctx)
	}()

	assert.Eventually(t, func() bool {
		for _, collection := range domain.Collections {
			if observer.State(collection) != WatcherWatching {
				return false
			}
		}
		return true
	}, time.Second, time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("observer did not stop after cancel")
	}
}

func TestChangeObserver_Backoff(t *testing.T) {
	observer := NewChangeObserver(nil, nil, nil, nil, ObserverConfig{
		BackoffBase: 250 * time.Millisecond,
		BackoffMax:  30 * time.Second,
	}, testLogger())

	assert.Equal(t, 250*time.Millisecond, observer.backoff(1))
	assert.Equal(t, 500*time.Millisecond, observer.backoff(2))
	assert.Equal(t, time.Second, observer.backoff(3))
	assert.Equal(t, 30*time.Second, observer.backoff(20), "delay is capped")
}
