package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Collection identifies a watched entity collection.
type Collection string

const (
	CollectionTask      Collection = "task"
	CollectionTaskGroup Collection = "task_group"
	CollectionProject   Collection = "project"
)

// Collections lists every watched collection, one observer each.
var Collections = []Collection{CollectionTask, CollectionTaskGroup, CollectionProject}

// Operation is the kind of committed store mutation.
type Operation string

const (
	OpInsert  Operation = "insert"
	OpUpdate  Operation = "update"
	OpReplace Operation = "replace"
	OpDelete  Operation = "delete"
)

// ChangeNotification is the raw signal that a document in the store was
// mutated. It is produced once per committed mutation and consumed by
// the event composer. For deletes the document body is not available;
// only the entity ID is guaranteed. Routing IDs are present when the
// mutation's caller recorded them at write time.
type ChangeNotification struct {
	// ID is the position of this change in the feed, strictly
	// increasing per collection. It doubles as the resume cursor.
	ID         int64
	Collection Collection
	Operation  Operation
	EntityID   uuid.UUID
	ProjectID  *uuid.UUID
	GroupID    *uuid.UUID
	AssigneeID *uuid.UUID
	Document   json.RawMessage
	OccurredAt time.Time
}

// ProjectRoom returns the room name for a project board.
func ProjectRoom(projectID uuid.UUID) string {
	return "project:" + projectID.String()
}

// UserRoom returns the room name for a user's personal task inbox.
func UserRoom(userID uuid.UUID) string {
	return "user:" + userID.String()
}

// Event names on the wire.
const (
	EventTaskUpdated    = "task_updated"
	EventProjectUpdated = "project_updated"
)

// Event is a composed, routable domain event. The set of
// implementations is closed: TaskEvent, GroupEvent, ProjectEvent.
type Event interface {
	// EventName is the wire event name the payload is delivered under.
	EventName() string
	// Rooms lists every room the event is addressed to.
	Rooms() []string
}

// TaskEvent is the payload of a task-scoped "task_updated" event.
type TaskEvent struct {
	TaskID    uuid.UUID  `json:"taskId"`
	ProjectID uuid.UUID  `json:"projectId"`
	ListID    *uuid.UUID `json:"listId,omitempty"`
	Operation Operation  `json:"operation"`
	Data      *TaskSnapshot `json:"data,omitempty"`

	// AssigneeID routes the event to the assignee's user room in
	// addition to the project room. Not part of the wire payload.
	AssigneeID *uuid.UUID `json:"-"`
}

func (e TaskEvent) EventName() string { return EventTaskUpdated }

func (e TaskEvent) Rooms() []string {
	rooms := []string{ProjectRoom(e.ProjectID)}
	if e.AssigneeID != nil {
		rooms = append(rooms, UserRoom(*e.AssigneeID))
	}
	return rooms
}

// GroupEvent is the list-group variant of "task_updated". The Type tag
// distinguishes it from task-scoped payloads on the wire.
type GroupEvent struct {
	Type      string         `json:"type"`
	GroupID   uuid.UUID      `json:"groupId"`
	ProjectID uuid.UUID      `json:"projectId"`
	Operation Operation      `json:"operation"`
	Data      *GroupSnapshot `json:"data,omitempty"`
}

// GroupEventType is the fixed Type tag of a GroupEvent.
const GroupEventType = "group"

func (e GroupEvent) EventName() string { return EventTaskUpdated }

func (e GroupEvent) Rooms() []string {
	return []string{ProjectRoom(e.ProjectID)}
}

// ProjectEvent is the payload of a "project_updated" event.
type ProjectEvent struct {
	ProjectID uuid.UUID `json:"projectId"`
	Operation Operation `json:"operation"`
}

func (e ProjectEvent) EventName() string { return EventProjectUpdated }

func (e ProjectEvent) Rooms() []string {
	return []string{ProjectRoom(e.ProjectID)}
}
