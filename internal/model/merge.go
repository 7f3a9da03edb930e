package model

import "fmt"

// Merge applies patch to existing and returns the resulting task.
//
// Business fields set on the patch replace the existing values; unset fields
// are kept. ID, UserID and CreatedAt always come from existing. UpdatedAt is
// always taken from the patch, so an empty patch still bumps it. A patch
// timestamp earlier than CreatedAt is clamped to CreatedAt.
//
// Neither argument is modified.
func Merge(existing Task, patch UpdateTask) (Task, error) {
	merged := existing

	merged.Title = patch.Title.Or(existing.Title)
	merged.Description = patch.Description.Or(existing.Description)
	merged.Status = patch.Status.Or(existing.Status)

	if patch.DueDate.Set {
		due := normalizeTime(patch.DueDate.Value)
		merged.DueDate = &due
	}

	updatedAt := patch.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = now()
	}
	updatedAt = normalizeTime(updatedAt)
	if updatedAt.Before(existing.CreatedAt) {
		updatedAt = existing.CreatedAt
	}
	merged.UpdatedAt = &updatedAt

	if err := merged.Validate(); err != nil {
		return Task{}, fmt.Errorf("merging update into task %s: %w", existing.ID, err)
	}
	return merged, nil
}
