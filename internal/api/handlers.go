package api

import (
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/nhle/tickflow/internal/cache"
	"github.com/nhle/tickflow/internal/model"
	"github.com/nhle/tickflow/internal/store"
)

var errTaskNotFound = fiber.NewError(fiber.StatusNotFound, "Task not found")

type handlers struct {
	tasks  store.TaskService
	logger *slog.Logger
}

// statsReporter is implemented by task services that front a cache.
type statsReporter interface {
	Stats() cache.StatsSnapshot
}

// health handles GET /health. Cache counters are included when the task
// service is cached.
func (h *handlers) health(c *fiber.Ctx) error {
	body := fiber.Map{"status": "ok"}
	if sr, ok := h.tasks.(statsReporter); ok {
		body["cache"] = sr.Stats()
	}
	return c.JSON(body)
}

// createTask handles POST /tasks.
func (h *handlers) createTask(c *fiber.Ctx) error {
	var payload model.CreateTask
	if err := decodeBody(c, &payload); err != nil {
		return err
	}

	task, err := h.tasks.CreateTask(c.UserContext(), payload)
	if err != nil {
		return err
	}

	h.logger.Debug("task created", "task_id", task.ID, "user_id", task.UserID)
	return c.Status(fiber.StatusCreated).JSON(task)
}

// listTasks handles GET /tasks.
func (h *handlers) listTasks(c *fiber.Ctx) error {
	tasks, err := h.tasks.ReadAllTasks(c.UserContext())
	if err != nil {
		return err
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	return c.JSON(tasks)
}

// getTask handles GET /tasks/:id.
func (h *handlers) getTask(c *fiber.Ctx) error {
	id, err := taskID(c)
	if err != nil {
		return err
	}

	task, ok, err := h.tasks.ReadTask(c.UserContext(), id)
	if err != nil {
		return err
	}
	if !ok {
		return errTaskNotFound
	}
	return c.JSON(task)
}

// updateTask handles PUT /tasks/:id. Only the fields present in the body
// are changed.
func (h *handlers) updateTask(c *fiber.Ctx) error {
	id, err := taskID(c)
	if err != nil {
		return err
	}

	var patch model.UpdateTask
	if err := decodeBody(c, &patch); err != nil {
		return err
	}

	task, ok, err := h.tasks.UpdateTask(c.UserContext(), id, patch)
	if err != nil {
		return err
	}
	if !ok {
		return errTaskNotFound
	}

	h.logger.Debug("task updated", "task_id", id)
	return c.JSON(task)
}

// deleteTask handles DELETE /tasks/:id and responds with the removed task.
func (h *handlers) deleteTask(c *fiber.Ctx) error {
	id, err := taskID(c)
	if err != nil {
		return err
	}

	task, ok, err := h.tasks.DeleteTask(c.UserContext(), id)
	if err != nil {
		return err
	}
	if !ok {
		return errTaskNotFound
	}

	h.logger.Debug("task deleted", "task_id", id)
	return c.JSON(task)
}

// taskID parses the :id path parameter.
func taskID(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, &model.ValidationError{Fields: []model.FieldError{{
			Loc:  []string{"path", "task_id"},
			Msg:  "Input should be a valid UUID, " + err.Error(),
			Type: "uuid_parsing",
		}}}
	}
	return id, nil
}

// decodeBody unmarshals the request body into v. Payload types report
// field problems as *model.ValidationError; malformed JSON is reported the
// same way against the whole body.
func decodeBody(c *fiber.Ctx, v any) error {
	err := json.Unmarshal(c.Body(), v)
	if err == nil {
		return nil
	}

	var verr *model.ValidationError
	if errors.As(err, &verr) {
		return verr
	}
	return &model.ValidationError{Fields: []model.FieldError{{
		Loc:  []string{"body"},
		Msg:  "JSON decode error: " + err.Error(),
		Type: "json_invalid",
	}}}
}
