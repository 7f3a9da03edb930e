// Package taskform prompts for a new task in the terminal.
package taskform

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/nhle/tickflow/internal/keys"
	"github.com/nhle/tickflow/internal/model"
)

// ErrAborted is returned when the user cancels the form.
var ErrAborted = errors.New("task form aborted")

// formBindings holds form field values on the heap so that huh's Value()
// pointers stay valid for the lifetime of the form.
type formBindings struct {
	userID      string
	title       string
	description string
	status      string
	dueDate     string
}

// Form collects the fields of a CreateTask payload.
type Form struct {
	fb *formBindings
}

// New returns a form pre-filled from defaults.
func New(defaults model.CreateTask) *Form {
	fb := &formBindings{
		title:       defaults.Title,
		description: defaults.Description,
		status:      string(defaults.Status),
	}
	if defaults.UserID != 0 {
		fb.userID = strconv.FormatInt(defaults.UserID, 10)
	}
	if fb.status == "" {
		fb.status = string(model.StatusTodo)
	}
	if defaults.DueDate != nil {
		fb.dueDate = defaults.DueDate.Format(time.RFC3339)
	}
	return &Form{fb: fb}
}

// Build assembles the huh form bound to f.
func (f *Form) Build() *huh.Form {
	statusOpts := make([]huh.Option[string], 0, len(model.TaskStatuses))
	for _, s := range model.TaskStatuses {
		statusOpts = append(statusOpts, huh.NewOption(statusLabel(s), string(s)))
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("User ID").
				Placeholder("Owning user, e.g. 1").
				Value(&f.fb.userID).
				Validate(validateUserID),
			huh.NewInput().
				Title("Title").
				Placeholder("What needs to be done?").
				Value(&f.fb.title).
				Validate(validateRequired("Title")),
			huh.NewText().
				Title("Description").
				Placeholder("Details...").
				Value(&f.fb.description),
			huh.NewSelect[string]().
				Title("Status").
				Options(statusOpts...).
				Value(&f.fb.status),
			huh.NewInput().
				Title("Due Date").
				Placeholder("YYYY-MM-DD or RFC 3339 (optional)").
				Value(&f.fb.dueDate).
				Validate(validateOptionalDate),
		),
	).WithKeyMap(keys.FormKeyMap())
}

// Run shows the form on the given terminal streams and returns the payload
// once it is submitted.
func (f *Form) Run(ctx context.Context, in io.Reader, out io.Writer) (model.CreateTask, error) {
	form := f.Build().WithProgramOptions(tea.WithInput(in), tea.WithOutput(out))

	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return model.CreateTask{}, ErrAborted
		}
		return model.CreateTask{}, fmt.Errorf("running task form: %w", err)
	}
	return f.Payload()
}

// Payload converts the current field values into a CreateTask.
func (f *Form) Payload() (model.CreateTask, error) {
	if err := validateUserID(f.fb.userID); err != nil {
		return model.CreateTask{}, err
	}
	if err := validateRequired("Title")(f.fb.title); err != nil {
		return model.CreateTask{}, err
	}

	userID, _ := strconv.ParseInt(strings.TrimSpace(f.fb.userID), 10, 64)
	status, err := model.ParseTaskStatus(f.fb.status)
	if err != nil {
		return model.CreateTask{}, err
	}

	payload := model.CreateTask{
		UserID:      userID,
		Title:       strings.TrimSpace(f.fb.title),
		Description: f.fb.description,
		Status:      status,
	}

	if due := strings.TrimSpace(f.fb.dueDate); due != "" {
		t, err := model.ParseTime(due)
		if err != nil {
			return model.CreateTask{}, err
		}
		payload.DueDate = &t
	}

	return payload, nil
}

func statusLabel(s model.TaskStatus) string {
	switch s {
	case model.StatusTodo:
		return "To do"
	case model.StatusInProgress:
		return "In progress"
	case model.StatusDone:
		return "Done"
	}
	return string(s)
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

func validateUserID(s string) error {
	if _, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err != nil {
		return fmt.Errorf("user ID must be an integer")
	}
	return nil
}

func validateOptionalDate(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if _, err := model.ParseTime(s); err != nil {
		return fmt.Errorf("invalid date, use YYYY-MM-DD or RFC 3339")
	}
	return nil
}
