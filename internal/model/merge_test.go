package model

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTask() Task {
	due := time.Date(2030, time.March, 1, 12, 0, 0, 0, time.UTC)
	return Task{
		ID:          uuid.New(),
		UserID:      7,
		Title:       "Original title",
		Description: "Original description",
		Status:      StatusTodo,
		DueDate:     &due,
		CreatedAt:   time.Date(2025, time.January, 1, 8, 0, 0, 0, time.UTC),
	}
}

func TestMergeFieldIsolation(t *testing.T) {
	newDue := time.Date(2031, time.June, 30, 17, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		patch func(*UpdateTask)
		check func(t *testing.T, before, after Task)
	}{
		{
			name:  "title only",
			patch: func(u *UpdateTask) { u.Title = Some("New title") },
			check: func(t *testing.T, before, after Task) {
				assert.Equal(t, "New title", after.Title)
				assert.Equal(t, before.Description, after.Description)
				assert.Equal(t, before.Status, after.Status)
				assert.Equal(t, before.DueDate, after.DueDate)
			},
		},
		{
			name:  "description may become empty",
			patch: func(u *UpdateTask) { u.Description = Some("") },
			check: func(t *testing.T, before, after Task) {
				assert.Equal(t, "", after.Description)
				assert.Equal(t, before.Title, after.Title)
			},
		},
		{
			name: "status and due date",
			patch: func(u *UpdateTask) {
				u.Status = Some(StatusInProgress)
				u.DueDate = Some(newDue)
			},
			check: func(t *testing.T, before, after Task) {
				assert.Equal(t, StatusInProgress, after.Status)
				require.NotNil(t, after.DueDate)
				assert.True(t, newDue.Equal(*after.DueDate))
				assert.Equal(t, before.Title, after.Title)
				assert.Equal(t, before.Description, after.Description)
			},
		},
		{
			name: "every field",
			patch: func(u *UpdateTask) {
				u.Title = Some("T")
				u.Description = Some("D")
				u.Status = Some(StatusDone)
				u.DueDate = Some(newDue)
			},
			check: func(t *testing.T, _, after Task) {
				assert.Equal(t, "T", after.Title)
				assert.Equal(t, "D", after.Description)
				assert.Equal(t, StatusDone, after.Status)
				assert.True(t, newDue.Equal(*after.DueDate))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := sampleTask()
			patch := NewUpdateTask()
			tt.patch(&patch)

			after, err := Merge(before, patch)
			require.NoError(t, err)
			tt.check(t, before, after)
		})
	}
}

func TestMergeKeepsIdentityFields(t *testing.T) {
	before := sampleTask()
	patch := NewUpdateTask()
	patch.Title = Some("Changed")
	patch.Status = Some(StatusDone)

	after, err := Merge(before, patch)
	require.NoError(t, err)

	assert.Equal(t, before.ID, after.ID)
	assert.Equal(t, before.UserID, after.UserID)
	assert.Equal(t, before.CreatedAt, after.CreatedAt)
}

func TestMergeEmptyPatchBumpsUpdatedAt(t *testing.T) {
	before := sampleTask()
	patch := NewUpdateTask()
	require.True(t, patch.Empty())

	after, err := Merge(before, patch)
	require.NoError(t, err)

	require.NotNil(t, after.UpdatedAt)
	assert.Equal(t, patch.UpdatedAt, *after.UpdatedAt)
	assert.Equal(t, before.Title, after.Title)
	assert.Equal(t, before.Description, after.Description)
	assert.Equal(t, before.Status, after.Status)
}

func TestMergeClampsUpdatedAtToCreatedAt(t *testing.T) {
	before := sampleTask()
	patch := NewUpdateTask()
	patch.UpdatedAt = before.CreatedAt.Add(-time.Hour)

	after, err := Merge(before, patch)
	require.NoError(t, err)
	require.NotNil(t, after.UpdatedAt)
	assert.Equal(t, before.CreatedAt, *after.UpdatedAt)
}

func TestMergeRejectsUnknownStatus(t *testing.T) {
	patch := NewUpdateTask()
	patch.Status = Some(TaskStatus("blocked"))

	_, err := Merge(sampleTask(), patch)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidTask)
}

func TestMergeDoesNotMutateInputs(t *testing.T) {
	before := sampleTask()
	originalDue := *before.DueDate

	patch := NewUpdateTask()
	patch.DueDate = Some(originalDue.Add(48 * time.Hour))
	patch.Title = Some("Other")

	_, err := Merge(before, patch)
	require.NoError(t, err)

	assert.Equal(t, "Original title", before.Title)
	assert.Equal(t, originalDue, *before.DueDate)
	assert.Nil(t, before.UpdatedAt)
}

func TestCreateTaskDefaults(t *testing.T) {
	fixed := time.Date(2026, time.May, 4, 10, 0, 0, 0, time.UTC)
	restore := now
	now = func() time.Time { return fixed }
	t.Cleanup(func() { now = restore })

	task, err := CreateTask{UserID: 1, Title: "a", Description: ""}.Task()
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, task.ID)
	assert.Equal(t, StatusTodo, task.Status)
	assert.Equal(t, fixed, task.CreatedAt)
	assert.Nil(t, task.UpdatedAt)
	assert.Nil(t, task.DueDate)
}

func TestCreateTaskRejectsUnknownStatus(t *testing.T) {
	_, err := CreateTask{UserID: 1, Title: "a", Status: "archived"}.Task()
	assert.ErrorIs(t, err, ErrInvalidTask)
}

func TestDueDateOutsideYearRangeIsInvalid(t *testing.T) {
	far := time.Date(10000, time.January, 1, 0, 0, 0, 0, time.UTC)

	_, err := CreateTask{UserID: 1, Title: "a", DueDate: &far}.Task()
	assert.ErrorIs(t, err, ErrInvalidTask)

	patch := NewUpdateTask()
	patch.DueDate = Some(time.Date(-1, time.December, 31, 0, 0, 0, 0, time.UTC))
	_, err = Merge(sampleTask(), patch)
	assert.ErrorIs(t, err, ErrInvalidTask)

	edge := time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC)
	_, err = CreateTask{UserID: 1, Title: "a", DueDate: &edge}.Task()
	assert.NoError(t, err)
}

func TestIsOverdue(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	task := sampleTask()
	task.DueDate = &past
	assert.True(t, task.IsOverdue())

	task.Status = StatusDone
	assert.False(t, task.IsOverdue())

	task.DueDate = nil
	assert.False(t, task.IsOverdue())
}
