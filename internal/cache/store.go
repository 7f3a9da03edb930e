package cache

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/nhle/tickflow/internal/model"
	"github.com/nhle/tickflow/internal/store"
)

const listKey = "tasks:all"

func taskKey(id uuid.UUID) string {
	return "task:" + id.String()
}

// Store wraps a TaskService with cache-aside reads. Writes go to the
// wrapped service first and then invalidate the affected keys; the next read
// repopulates them. Cache failures are logged and never fail the call.
type Store struct {
	next   store.TaskService
	cache  *Cache
	logger *slog.Logger
	group  singleflight.Group
}

var _ store.TaskService = (*Store)(nil)

// NewStore returns a caching decorator around next.
func NewStore(next store.TaskService, c *Cache, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{next: next, cache: c, logger: logger}
}

type lookup struct {
	task  model.Task
	found bool
}

// ReadTask serves from the cache when possible. Concurrent misses for the
// same id share one lookup in the wrapped service.
func (s *Store) ReadTask(ctx context.Context, id uuid.UUID) (model.Task, bool, error) {
	key := taskKey(id)

	var cached model.Task
	hit, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		s.logger.Warn("cache read failed", "key", key, "error", err)
	}
	if hit {
		return cached, true, nil
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		gen, genErr := s.cache.Generation(ctx, key)
		task, ok, err := s.next.ReadTask(ctx, id)
		if err == nil && ok {
			s.fill(ctx, key, gen, genErr, task)
		}
		return lookup{task: task, found: ok}, err
	})
	if err != nil {
		return model.Task{}, false, err
	}

	res := v.(lookup)
	return res.task, res.found, nil
}

// ReadAllTasks serves the full listing from the cache when possible.
func (s *Store) ReadAllTasks(ctx context.Context) ([]model.Task, error) {
	var cached []model.Task
	hit, err := s.cache.Get(ctx, listKey, &cached)
	if err != nil {
		s.logger.Warn("cache read failed", "key", listKey, "error", err)
	}
	if hit && cached != nil {
		return cached, nil
	}

	v, err, _ := s.group.Do(listKey, func() (any, error) {
		gen, genErr := s.cache.Generation(ctx, listKey)
		tasks, err := s.next.ReadAllTasks(ctx)
		if err == nil {
			s.fill(ctx, listKey, gen, genErr, tasks)
		}
		return tasks, err
	})
	if err != nil {
		return nil, err
	}

	// The slice is shared by every caller of the flight.
	tasks := v.([]model.Task)
	out := make([]model.Task, len(tasks))
	copy(out, tasks)
	return out, nil
}

// CreateTask stores the task and drops the cached listing.
func (s *Store) CreateTask(ctx context.Context, payload model.CreateTask) (model.Task, error) {
	task, err := s.next.CreateTask(ctx, payload)
	if err != nil {
		return model.Task{}, err
	}

	s.invalidate(ctx, listKey)
	return task, nil
}

// UpdateTask updates the task and drops its entry and the cached listing.
func (s *Store) UpdateTask(
	ctx context.Context,
	id uuid.UUID,
	patch model.UpdateTask,
) (model.Task, bool, error) {
	task, ok, err := s.next.UpdateTask(ctx, id, patch)
	s.invalidate(ctx, taskKey(id), listKey)
	return task, ok, err
}

// DeleteTask removes the task and its cache entries.
func (s *Store) DeleteTask(ctx context.Context, id uuid.UUID) (model.Task, bool, error) {
	task, ok, err := s.next.DeleteTask(ctx, id)
	s.invalidate(ctx, taskKey(id), listKey)
	return task, ok, err
}

// Stats exposes the counters of the underlying cache.
func (s *Store) Stats() StatsSnapshot {
	return s.cache.Stats()
}

// fill caches value under key if no write invalidated key since gen was
// read. Nothing is cached when the generation could not be read.
func (s *Store) fill(ctx context.Context, key string, gen uint64, genErr error, value any) {
	if genErr != nil {
		s.logger.Warn("cache read failed", "key", key, "error", genErr)
		return
	}
	stored, err := s.cache.SetAt(ctx, key, gen, value)
	if err != nil {
		s.logger.Warn("cache write failed", "key", key, "error", err)
		return
	}
	if !stored {
		s.logger.Debug("cache fill skipped after concurrent write", "key", key)
	}
}

func (s *Store) invalidate(ctx context.Context, keys ...string) {
	if err := s.cache.Invalidate(ctx, keys...); err != nil {
		s.logger.Warn("cache invalidation failed", "keys", keys, "error", err)
	}
}
