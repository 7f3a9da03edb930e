package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TaskStatus is the workflow state of a task.
type TaskStatus string

// Task status constants. The string values are the wire and storage form.
const (
	StatusTodo       TaskStatus = "todo"
	StatusInProgress TaskStatus = "in_progress"
	StatusDone       TaskStatus = "done"
)

// TaskStatuses lists every allowed status in display order.
var TaskStatuses = []TaskStatus{StatusTodo, StatusInProgress, StatusDone}

// Valid reports whether s is one of the allowed statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// ParseTaskStatus converts a raw string into a TaskStatus.
func ParseTaskStatus(raw string) (TaskStatus, error) {
	s := TaskStatus(raw)
	if !s.Valid() {
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalidTask, raw)
	}
	return s, nil
}

// ErrInvalidTask is returned when a conversion or merge would produce a
// task that violates the entity's invariants.
var ErrInvalidTask = errors.New("invalid task")

// Task is a unit of work owned by a user.
type Task struct {
	// ID is generated on creation and never changes.
	ID uuid.UUID `json:"taskId" db:"id"`

	// UserID identifies the owning user. Immutable.
	UserID int64 `json:"userId" db:"user_id"`

	Title       string     `json:"title" db:"title"`
	Description string     `json:"description" db:"description"`
	Status      TaskStatus `json:"status" db:"status"`
	DueDate     *time.Time `json:"dueDate" db:"due_date"`

	// CreatedAt is set once at creation.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	// UpdatedAt is nil until the first successful update.
	UpdatedAt *time.Time `json:"updatedAt" db:"updated_at"`
}

// Validate checks the invariants every stored task must satisfy.
func (t Task) Validate() error {
	if t.ID == uuid.Nil {
		return fmt.Errorf("%w: missing id", ErrInvalidTask)
	}
	if !t.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTask, t.Status)
	}
	if t.CreatedAt.IsZero() {
		return fmt.Errorf("%w: missing createdAt", ErrInvalidTask)
	}
	if t.UpdatedAt != nil && t.UpdatedAt.Before(t.CreatedAt) {
		return fmt.Errorf("%w: updatedAt precedes createdAt", ErrInvalidTask)
	}
	if t.DueDate != nil && !InYearRange(*t.DueDate) {
		return fmt.Errorf("%w: dueDate year %d outside 0-9999", ErrInvalidTask, t.DueDate.UTC().Year())
	}
	return nil
}

// Bounds of the instants a task may carry; JSON and the SQL drivers cannot
// represent years outside them.
var (
	minTime = time.Date(0, time.January, 1, 0, 0, 0, 0, time.UTC)
	maxTime = time.Date(9999, time.December, 31, 23, 59, 59, 999999000, time.UTC)
)

// InYearRange reports whether t falls within years 0 to 9999 in UTC.
func InYearRange(t time.Time) bool {
	return !t.Before(minTime) && !t.After(maxTime)
}

// Clone returns a copy of t that shares no pointers with it.
func (t Task) Clone() Task {
	if t.DueDate != nil {
		due := *t.DueDate
		t.DueDate = &due
	}
	if t.UpdatedAt != nil {
		updated := *t.UpdatedAt
		t.UpdatedAt = &updated
	}
	return t
}

// IsOverdue reports whether the task has a due date in the past and is not done.
func (t Task) IsOverdue() bool {
	return t.DueDate != nil && t.DueDate.Before(now()) && t.Status != StatusDone
}

// CreateTask is the payload for creating a task.
type CreateTask struct {
	UserID      int64
	Title       string
	Description string

	// Status is optional; the zero value means todo.
	Status TaskStatus

	DueDate *time.Time
}

// Task converts the payload into a new Task with a fresh id and creation time.
func (c CreateTask) Task() (Task, error) {
	t := Task{
		ID:          uuid.New(),
		UserID:      c.UserID,
		Title:       c.Title,
		Description: c.Description,
		Status:      c.Status,
		CreatedAt:   now(),
	}
	if t.Status == "" {
		t.Status = StatusTodo
	}
	if c.DueDate != nil {
		due := normalizeTime(*c.DueDate)
		t.DueDate = &due
	}
	if err := t.Validate(); err != nil {
		return Task{}, fmt.Errorf("converting create payload: %w", err)
	}
	return t, nil
}

// Optional holds a value together with whether it was provided.
type Optional[T any] struct {
	Value T
	Set   bool
}

// Some returns an Optional marked as set.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Value: v, Set: true}
}

// Or returns the held value if set, otherwise fallback.
func (o Optional[T]) Or(fallback T) T {
	if o.Set {
		return o.Value
	}
	return fallback
}

// UpdateTask is a partial update. Only fields marked Set replace the
// corresponding task field; there is no way to clear a field.
type UpdateTask struct {
	Title       Optional[string]
	Description Optional[string]
	Status      Optional[TaskStatus]
	DueDate     Optional[time.Time]

	// UpdatedAt is stamped when the payload is constructed.
	UpdatedAt time.Time
}

// NewUpdateTask returns an empty patch stamped with the current time.
func NewUpdateTask() UpdateTask {
	return UpdateTask{UpdatedAt: now()}
}

// Empty reports whether no business field is set.
func (u UpdateTask) Empty() bool {
	return !u.Title.Set && !u.Description.Set && !u.Status.Set && !u.DueDate.Set
}

// now is the clock used for generated timestamps. Values are truncated to
// microseconds so they survive a round trip through every supported database.
var now = func() time.Time {
	return normalizeTime(time.Now())
}

func normalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
