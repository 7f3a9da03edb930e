// Package api exposes a TaskService over HTTP.
package api

import (
	"io"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"github.com/nhle/tickflow/internal/store"
)

// Config holds the dependencies of the HTTP surface.
type Config struct {
	Tasks  store.TaskService
	Logger *slog.Logger

	// AccessLog receives one line per request. Nil disables access logging.
	AccessLog io.Writer
}

// New builds the fiber application with middleware and routes registered.
func New(cfg Config) *fiber.App {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	app := fiber.New(fiber.Config{
		AppName:               "tickflow",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(logger),
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	if cfg.AccessLog != nil {
		app.Use(fiberlogger.New(fiberlogger.Config{
			Format: "${time} ${locals:requestid} ${status} ${method} ${path} ${latency}\n",
			Output: cfg.AccessLog,
		}))
	}

	h := &handlers{tasks: cfg.Tasks, logger: logger}
	setupRoutes(app, h)

	return app
}

// setupRoutes configures all HTTP routes. Non-strict routing serves each
// path with and without a trailing slash.
func setupRoutes(app *fiber.App, h *handlers) {
	app.Get("/health", h.health)

	tasks := app.Group("/tasks")
	tasks.Post("/", h.createTask)
	tasks.Get("/", h.listTasks)
	tasks.Get("/:id", h.getTask)
	tasks.Put("/:id", h.updateTask)
	tasks.Delete("/:id", h.deleteTask)
}
