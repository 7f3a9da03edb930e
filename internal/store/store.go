package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/nhle/tickflow/internal/model"
)

// TaskService defines the persistence contract for tasks. Every
// implementation reports a missing task through the boolean result, never
// through an error; errors are reserved for storage failures and invalid
// conversions.
type TaskService interface {
	// CreateTask stores a new task built from the payload and returns the
	// stored value.
	CreateTask(ctx context.Context, payload model.CreateTask) (model.Task, error)

	// ReadTask returns the task with the given id, if any.
	ReadTask(ctx context.Context, id uuid.UUID) (model.Task, bool, error)

	// ReadAllTasks returns every task in creation order.
	ReadAllTasks(ctx context.Context) ([]model.Task, error)

	// UpdateTask merges patch into the task with the given id and returns
	// the new value.
	UpdateTask(ctx context.Context, id uuid.UUID, patch model.UpdateTask) (model.Task, bool, error)

	// DeleteTask removes the task with the given id and returns the removed
	// value.
	DeleteTask(ctx context.Context, id uuid.UUID) (model.Task, bool, error)
}
