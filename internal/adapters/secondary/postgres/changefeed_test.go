package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hiveboard/taskboard-backend/internal/core/domain"
)

func truncateFeed(t *testing.T) {
	t.Helper()
	_, err := testPool.Exec(context.Background(), `TRUNCATE entity_changes RESTART IDENTITY`)
	require.NoError(t, err)
	_, err = testPool.Exec(context.Background(), `TRUNCATE change_cursors`)
	require.NoError(t, err)
}

func taskChangeRow(projectID uuid.UUID) *domain.ChangeNotification {
	groupID := uuid.New()
	return &domain.ChangeNotification{
		Collection: domain.CollectionTask,
		Operation:  domain.OpUpdate,
		EntityID:   uuid.New(),
		ProjectID:  &projectID,
		GroupID:    &groupID,
		Document:   json.RawMessage(`{"title":"from feed"}`),
	}
}

func TestChangeFeed_AppendAndReadAfter(t *testing.T) {
	truncateFeed(t)
	ctx := context.Background()
	feed := NewChangeFeed(testPool)

	projectID := uuid.New()
	first := taskChangeRow(projectID)
	second := taskChangeRow(projectID)
	groupRow := &domain.ChangeNotification{
		Collection: domain.CollectionTaskGroup,
		Operation:  domain.OpInsert,
		EntityID:   uuid.New(),
		ProjectID:  &projectID,
	}

	require.NoError(t, feed.Append(ctx, first))
	require.NoError(t, feed.Append(ctx, groupRow))
	require.NoError(t, feed.Append(ctx, second))

	changes, err := feed.ReadAfter(ctx, domain.CollectionTask, 0, 10)
	require.NoError(t, err)
	require.Len(t, changes, 2, "other collections are filtered out")

	assert.Less(t, changes[0].ID, changes[1].ID, "rows come back in feed order")
	assert.Equal(t, first.EntityID, changes[0].EntityID)
	assert.Equal(t, second.EntityID, changes[1].EntityID)
	assert.Equal(t, domain.OpUpdate, changes[0].Operation)
	require.NotNil(t, changes[0].ProjectID)
	assert.Equal(t, projectID, *changes[0].ProjectID)
	assert.JSONEq(t, `{"title":"from feed"}`, string(changes[0].Document))
	assert.False(t, changes[0].OccurredAt.IsZero())

	// Reading past the first row returns only what follows it.
	tail, err := feed.ReadAfter(ctx, domain.CollectionTask, changes[0].ID, 10)
	require.NoError(t, err)
	require.Len(t, tail, 1)
	assert.Equal(t, second.EntityID, tail[0].EntityID)

	// The limit caps the batch.
	capped, err := feed.ReadAfter(ctx, domain.CollectionTask, 0, 1)
	require.NoError(t, err)
	assert.Len(t, capped, 1)
}

func TestChangeFeed_DeleteRowKeepsRoutingContext(t *testing.T) {
	truncateFeed(t)
	ctx := context.Background()
	feed := NewChangeFeed(testPool)

	projectID := uuid.New()
	groupID := uuid.New()
	assigneeID := uuid.New()
	require.NoError(t, feed.Append(ctx, &domain.ChangeNotification{
		Collection: domain.CollectionTask,
		Operation:  domain.OpDelete,
		EntityID:   uuid.New(),
		ProjectID:  &projectID,
		GroupID:    &groupID,
		AssigneeID: &assigneeID,
	}))

	changes, err := feed.ReadAfter(ctx, domain.CollectionTask, 0, 10)
	require.NoError(t, err)
	require.Len(t, changes, 1)

	change := changes[0]
	assert.Equal(t, domain.OpDelete, change.Operation)
	require.NotNil(t, change.ProjectID)
	assert.Equal(t, projectID, *change.ProjectID)
	require.NotNil(t, change.GroupID)
	assert.Equal(t, groupID, *change.GroupID)
	require.NotNil(t, change.AssigneeID)
	assert.Equal(t, assigneeID, *change.AssigneeID)
	assert.Empty(t, change.Document, "deletes carry no document body")
}

func TestChangeFeed_AppendJoinsCallerTransaction(t *testing.T) {
	truncateFeed(t)
	ctx := context.Background()
	feed := NewChangeFeed(testPool)
	tm := NewTransactionManager(testPool)

	rollback := errors.New("force rollback")
	err := tm.WithTransaction(ctx, func(ctx context.Context) error {
		if err := feed.Append(ctx, taskChangeRow(uuid.New())); err != nil {
			return err
		}
		return rollback
	})
	require.ErrorIs(t, err, rollback)

	changes, err := feed.ReadAfter(ctx, domain.CollectionTask, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, changes, "a rolled-back mutation leaves no change row")

	require.NoError(t, tm.WithTransaction(ctx, func(ctx context.Context) error {
		return feed.Append(ctx, taskChangeRow(uuid.New()))
	}))

	changes, err = feed.ReadAfter(ctx, domain.CollectionTask, 0, 10)
	require.NoError(t, err)
	assert.Len(t, changes, 1)
}

func TestChangeFeed_WaitForChange(t *testing.T) {
	truncateFeed(t)
	feed := NewChangeFeed(testPool)

	t.Run("woken by an append", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		woken := make(chan error, 1)
		go func() {
			woken <- feed.WaitForChange(ctx)
		}()

		// Give the listener a moment to be established before notifying.
		time.Sleep(200 * time.Millisecond)
		require.NoError(t, feed.Append(ctx, taskChangeRow(uuid.New())))

		select {
		case err := <-woken:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("waiter was not woken by the append")
		}
	})

	t.Run("returns when context ends", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		woken := make(chan error, 1)
		go func() {
			woken <- feed.WaitForChange(ctx)
		}()

		time.Sleep(100 * time.Millisecond)
		cancel()

		select {
		case err := <-woken:
			assert.ErrorIs(t, err, context.Canceled)
		case <-time.After(5 * time.Second):
			t.Fatal("waiter did not observe cancellation")
		}
	})
}

func TestCursorStore(t *testing.T) {
	truncateFeed(t)
	ctx := context.Background()
	cursors := NewCursorStore(testPool)

	t.Run("load defaults to zero", func(t *testing.T) {
		position, err := cursors.Load(ctx, domain.CollectionTask)
		require.NoError(t, err)
		assert.Equal(t, int64(0), position)
	})

	t.Run("save and load round trip", func(t *testing.T) {
		require.NoError(t, cursors.Save(ctx, domain.CollectionTask, 42))

		position, err := cursors.Load(ctx, domain.CollectionTask)
		require.NoError(t, err)
		assert.Equal(t, int64(42), position)
	})

	t.Run("save overwrites", func(t *testing.T) {
		require.NoError(t, cursors.Save(ctx, domain.CollectionTask, 42))
		require.NoError(t, cursors.Save(ctx, domain.CollectionTask, 99))

		position, err := cursors.Load(ctx, domain.CollectionTask)
		require.NoError(t, err)
		assert.Equal(t, int64(99), position)
	})

	t.Run("cursors are independent per collection", func(t *testing.T) {
		require.NoError(t, cursors.Save(ctx, domain.CollectionTask, 7))
		require.NoError(t, cursors.Save(ctx, domain.CollectionProject, 3))

		position, err := cursors.Load(ctx, domain.CollectionProject)
		require.NoError(t, err)
		assert.Equal(t, int64(3), position)

		position, err = cursors.Load(ctx, domain.CollectionTask)
		require.NoError(t, err)
		assert.Equal(t, int64(7), position)
	})
}
