package domain

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskEvent_Rooms(t *testing.T) {
	projectID := uuid.New()

	t.Run("unassigned task routes to project room only", func(t *testing.T) {
		event := TaskEvent{
			TaskID:    uuid.New(),
			ProjectID: projectID,
			Operation: OpInsert,
		}
		assert.Equal(t, []string{"project:" + projectID.String()}, event.Rooms())
		assert.Equal(t, EventTaskUpdated, event.EventName())
	})

	t.Run("assigned task routes to project and user rooms", func(t *testing.T) {
		assigneeID := uuid.New()
		event := TaskEvent{
			TaskID:     uuid.New(),
			ProjectID:  projectID,
			Operation:  OpUpdate,
			AssigneeID: &assigneeID,
		}
		assert.Equal(t, []string{
			"project:" + projectID.String(),
			"user:" + assigneeID.String(),
		}, event.Rooms())
	})
}

func TestTaskEvent_AssigneeIsNotOnTheWire(t *testing.T) {
	assigneeID := uuid.New()
	event := TaskEvent{
		TaskID:     uuid.New(),
		ProjectID:  uuid.New(),
		Operation:  OpUpdate,
		AssigneeID: &assigneeID,
	}

	encoded, err := json.Marshal(event)
	require.NoError(t, err)

	var wire map[string]interface{}
	require.NoError(t, json.Unmarshal(encoded, &wire))
	assert.NotContains(t, wire, "AssigneeID", "routing hint must not leak into the payload")
	assert.Contains(t, wire, "taskId")
	assert.Contains(t, wire, "operation")
}

func TestGroupEvent(t *testing.T) {
	projectID := uuid.New()
	event := GroupEvent{
		Type:      GroupEventType,
		GroupID:   uuid.New(),
		ProjectID: projectID,
		Operation: OpDelete,
	}

	// Group events share the task event name and are distinguished by
	// their type tag.
	assert.Equal(t, EventTaskUpdated, event.EventName())
	assert.Equal(t, []string{"project:" + projectID.String()}, event.Rooms())

	encoded, err := json.Marshal(event)
	require.NoError(t, err)
	var wire map[string]interface{}
	require.NoError(t, json.Unmarshal(encoded, &wire))
	assert.Equal(t, "group", wire["type"])
}

func TestProjectEvent(t *testing.T) {
	projectID := uuid.New()
	event := ProjectEvent{ProjectID: projectID, Operation: OpDelete}

	assert.Equal(t, EventProjectUpdated, event.EventName())
	assert.Equal(t, []string{"project:" + projectID.String()}, event.Rooms())
}

func TestRoomNames(t *testing.T) {
	id := uuid.MustParse("2b8f0d0e-64a4-4bdb-9a36-2c9cf1f2a111")
	assert.Equal(t, "project:2b8f0d0e-64a4-4bdb-9a36-2c9cf1f2a111", ProjectRoom(id))
	assert.Equal(t, "user:2b8f0d0e-64a4-4bdb-9a36-2c9cf1f2a111", UserRoom(id))
}
