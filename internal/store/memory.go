package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/nhle/tickflow/internal/model"
)

// MemoryStore implements TaskService in process memory. Tasks are kept in
// creation order alongside an id-to-position index. Contents do not survive
// a restart. Tasks handed out are clones; callers cannot reach stored state.
type MemoryStore struct {
	mu    sync.RWMutex
	tasks []model.Task
	index map[uuid.UUID]int
}

var _ TaskService = (*MemoryStore)(nil)

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		index: make(map[uuid.UUID]int),
	}
}

// CreateTask appends a new task.
func (s *MemoryStore) CreateTask(_ context.Context, payload model.CreateTask) (model.Task, error) {
	task, err := payload.Task()
	if err != nil {
		return model.Task{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.index[task.ID]; exists {
		return model.Task{}, fmt.Errorf("creating task: id %s already exists", task.ID)
	}
	s.index[task.ID] = len(s.tasks)
	s.tasks = append(s.tasks, task)

	return task.Clone(), nil
}

// ReadTask looks up a task by id.
func (s *MemoryStore) ReadTask(_ context.Context, id uuid.UUID) (model.Task, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pos, ok := s.index[id]
	if !ok {
		return model.Task{}, false, nil
	}
	return s.tasks[pos].Clone(), true, nil
}

// ReadAllTasks returns a copy of every task in creation order.
func (s *MemoryStore) ReadAllTasks(_ context.Context) ([]model.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Task, len(s.tasks))
	for i, task := range s.tasks {
		out[i] = task.Clone()
	}
	return out, nil
}

// UpdateTask replaces the stored task with the merged value, keeping its
// position.
func (s *MemoryStore) UpdateTask(
	_ context.Context,
	id uuid.UUID,
	patch model.UpdateTask,
) (model.Task, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, ok := s.index[id]
	if !ok {
		return model.Task{}, false, nil
	}

	merged, err := model.Merge(s.tasks[pos].Clone(), patch)
	if err != nil {
		return model.Task{}, false, err
	}
	s.tasks[pos] = merged

	return merged.Clone(), true, nil
}

// DeleteTask removes a task, shifting later tasks down by one.
func (s *MemoryStore) DeleteTask(_ context.Context, id uuid.UUID) (model.Task, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, ok := s.index[id]
	if !ok {
		return model.Task{}, false, nil
	}

	removed := s.tasks[pos].Clone()
	s.tasks = append(s.tasks[:pos], s.tasks[pos+1:]...)
	delete(s.index, id)
	for i := pos; i < len(s.tasks); i++ {
		s.index[s.tasks[i].ID] = i
	}

	return removed, true, nil
}
