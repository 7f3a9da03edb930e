package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/nhle/tickflow/internal/model"
	"github.com/nhle/tickflow/internal/store"
)

// NewTestSQLStore creates an in-memory SQLite-backed SQLStore with all
// migrations applied. It automatically closes the store when the test
// completes.
func NewTestSQLStore(t *testing.T) *store.SQLStore {
	t.Helper()

	s, err := store.NewSQLStore(model.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// NewTestMemoryStore creates an empty MemoryStore scoped to the test.
func NewTestMemoryStore(t *testing.T) *store.MemoryStore {
	t.Helper()
	return store.NewMemoryStore()
}

// Backends returns a fresh instance of every TaskService implementation,
// keyed by name, for contract tests.
func Backends(t *testing.T) map[string]store.TaskService {
	t.Helper()
	return map[string]store.TaskService{
		"memory": NewTestMemoryStore(t),
		"sql":    NewTestSQLStore(t),
	}
}

// SampleCreate returns the create payload used across tests.
func SampleCreate() model.CreateTask {
	due := time.Date(2030, time.January, 15, 9, 30, 0, 0, time.UTC)
	return model.CreateTask{
		UserID:      1,
		Title:       "Write Tests",
		Description: "Finish writing tests",
		DueDate:     &due,
	}
}

// MustCreate stores payload in svc and fails the test on error.
func MustCreate(t *testing.T, svc store.TaskService, payload model.CreateTask) model.Task {
	t.Helper()

	task, err := svc.CreateTask(context.Background(), payload)
	if err != nil {
		t.Fatalf("creating task: %v", err)
	}
	return task
}
