package client

import (
	"sort"

	"github.com/hiveboard/taskboard-backend/internal/core/domain"
)

// SyncStatus describes whether a locally-tracked entity matches the
// server's authoritative state or carries a speculative local edit.
type SyncStatus string

const (
	StatusSynced  SyncStatus = "synced"
	StatusPending SyncStatus = "pending"
)

// TaskRecord is one locally-tracked task.
type TaskRecord struct {
	Snapshot domain.TaskSnapshot
	Status   SyncStatus
}

// GroupRecord is one locally-tracked task group.
type GroupRecord struct {
	Snapshot domain.GroupSnapshot
	Status   SyncStatus
}

// BoardState is the full authoritative room state fetched on (re)join.
// It mirrors the server's board endpoint response.
type BoardState struct {
	Project domain.ProjectSnapshot `json:"project"`
	Groups  []domain.GroupSnapshot `json:"groups"`
	Tasks   []domain.TaskSnapshot  `json:"tasks"`
}

// Store holds the client's local copy of one project board. It is owned
// exclusively by the reconciler's loop goroutine and needs no locking.
type Store struct {
	project *domain.ProjectSnapshot
	tasks   map[string]*TaskRecord
	groups  map[string]*GroupRecord
}

// NewStore creates an empty local store.
func NewStore() *Store {
	return &Store{
		tasks:  make(map[string]*TaskRecord),
		groups: make(map[string]*GroupRecord),
	}
}

// Project returns the stored project snapshot, nil before the first sync.
func (s *Store) Project() *domain.ProjectSnapshot {
	return s.project
}

// SetProject replaces the project snapshot.
func (s *Store) SetProject(project domain.ProjectSnapshot) {
	s.project = &project
}

// Task returns the record for a task id, nil if untracked.
func (s *Store) Task(id string) *TaskRecord {
	return s.tasks[id]
}

// Group returns the record for a group id, nil if untracked.
func (s *Store) Group(id string) *GroupRecord {
	return s.groups[id]
}

// PutTask inserts or replaces a task record.
func (s *Store) PutTask(snapshot domain.TaskSnapshot, status SyncStatus) {
	s.tasks[snapshot.ID] = &TaskRecord{Snapshot: snapshot, Status: status}
}

// PutGroup inserts or replaces a group record.
func (s *Store) PutGroup(snapshot domain.GroupSnapshot, status SyncStatus) {
	s.groups[snapshot.ID] = &GroupRecord{Snapshot: snapshot, Status: status}
}

// RemoveTask drops a task record. Removing an untracked id is a no-op.
func (s *Store) RemoveTask(id string) {
	delete(s.tasks, id)
}

// RemoveGroup drops a group record and every task inside it.
func (s *Store) RemoveGroup(id string) {
	delete(s.groups, id)
	for taskID, record := range s.tasks {
		if record.Snapshot.GroupID == id {
			delete(s.tasks, taskID)
		}
	}
}

// Tasks returns all tracked tasks ordered by group, position, then id
// for a stable board rendering order.
func (s *Store) Tasks() []domain.TaskSnapshot {
	tasks := make([]domain.TaskSnapshot, 0, len(s.tasks))
	for _, record := range s.tasks {
		tasks = append(tasks, record.Snapshot)
	}
	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].GroupID != tasks[j].GroupID {
			return tasks[i].GroupID < tasks[j].GroupID
		}
		if tasks[i].Position != tasks[j].Position {
			return tasks[i].Position < tasks[j].Position
		}
		return tasks[i].ID < tasks[j].ID
	})
	return tasks
}

// Groups returns all tracked groups ordered by position, then id.
func (s *Store) Groups() []domain.GroupSnapshot {
	groups := make([]domain.GroupSnapshot, 0, len(s.groups))
	for _, record := range s.groups {
		groups = append(groups, record.Snapshot)
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Position != groups[j].Position {
			return groups[i].Position < groups[j].Position
		}
		return groups[i].ID < groups[j].ID
	})
	return groups
}

// Replace swaps the entire store contents for freshly fetched
// authoritative state. Pending local edits are discarded; the fetch is
// the recovery path for missed events, and the server copy wins.
func (s *Store) Replace(board BoardState) {
	s.project = &board.Project
	s.tasks = make(map[string]*TaskRecord, len(board.Tasks))
	for _, task := range board.Tasks {
		s.tasks[task.ID] = &TaskRecord{Snapshot: task, Status: StatusSynced}
	}
	s.groups = make(map[string]*GroupRecord, len(board.Groups))
	for _, group := range board.Groups {
		s.groups[group.ID] = &GroupRecord{Snapshot: group, Status: StatusSynced}
	}
}

// Clear empties the store, used when leaving a project room.
func (s *Store) Clear() {
	s.project = nil
	s.tasks = make(map[string]*TaskRecord)
	s.groups = make(map[string]*GroupRecord)
}
