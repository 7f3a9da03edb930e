package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/tickflow/internal/model"
)

const (
	driverSQLite   = model.DriverSQLite
	driverPostgres = model.DriverPostgres
)

// taskColumns selects a tasks row in the shape of model.Task.
const taskColumns = `id, user_id, title, COALESCE(description, '') AS description,
	status, due_date, created_at, updated_at`

// SQLStore implements TaskService on a relational database through sqlx.
// SQLite (modernc.org/sqlite) and PostgreSQL (pgx) are supported.
type SQLStore struct {
	db     *sqlx.DB
	driver string
}

var _ TaskService = (*SQLStore)(nil)

// NewSQLStore opens (or creates) the database identified by driver and dsn
// and runs any pending schema migrations. For SQLite it creates the parent
// directory of the database file and enables WAL mode.
func NewSQLStore(driver, dsn string) (*SQLStore, error) {
	switch driver {
	case driverSQLite:
		if err := ensureDir(dsn); err != nil {
			return nil, err
		}
	case driverPostgres:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s db: %w", driver, err)
	}

	if driver == driverSQLite {
		// Enable WAL mode for better concurrent read performance.
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enabling WAL mode: %w", err)
		}
		if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enabling foreign keys: %w", err)
		}
		// SQLite works best with a single writer; this also keeps a
		// ":memory:" database alive on one connection.
		db.SetMaxOpenConns(1)
	} else if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to %s db: %w", driver, err)
	}

	s := &SQLStore{db: db, driver: driver}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// ensureDir creates the directory holding a SQLite database file.
func ensureDir(dsn string) error {
	if dsn == ":memory:" || strings.HasPrefix(dsn, "file:") {
		return nil
	}
	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating database directory %s: %w", dir, err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Driver returns the database driver name.
func (s *SQLStore) Driver() string {
	return s.driver
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLStore) runMigrations() error {
	if _, err := s.db.Exec(createSchemaVersion); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	currentVersion, err := s.SchemaVersion(context.Background())
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if err := s.applyMigration(context.Background(), m); err != nil {
			return err
		}
	}

	return nil
}

// applyMigration runs one migration and records its version in a single
// transaction.
func (s *SQLStore) applyMigration(ctx context.Context, m migration) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning migration v%d: %w", m.version, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.statement(s.driver)); err != nil {
		return fmt.Errorf("applying migration v%d: %w", m.version, err)
	}
	if _, err := tx.ExecContext(ctx,
		tx.Rebind("INSERT INTO schema_version (version) VALUES (?)"), m.version,
	); err != nil {
		return fmt.Errorf("recording migration v%d: %w", m.version, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing migration v%d: %w", m.version, err)
	}
	return nil
}

// SchemaVersion returns the highest applied migration version.
func (s *SQLStore) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	err := s.db.GetContext(ctx, &version, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return version, nil
}

// CreateTask inserts a new task and reads it back.
func (s *SQLStore) CreateTask(ctx context.Context, payload model.CreateTask) (model.Task, error) {
	task, err := payload.Task()
	if err != nil {
		return model.Task{}, err
	}

	_, err = s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO tasks (
			id, user_id, title, description, status,
			due_date, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		task.ID.String(), task.UserID, task.Title, task.Description, string(task.Status),
		task.DueDate, task.CreatedAt, task.UpdatedAt,
	)
	if err != nil {
		return model.Task{}, fmt.Errorf("creating task %s: %w", task.ID, err)
	}

	stored, ok, err := s.ReadTask(ctx, task.ID)
	if err != nil {
		return model.Task{}, err
	}
	if !ok {
		return model.Task{}, fmt.Errorf("task %s missing after insert", task.ID)
	}
	return stored, nil
}

// ReadTask retrieves a single task by id.
func (s *SQLStore) ReadTask(ctx context.Context, id uuid.UUID) (model.Task, bool, error) {
	var task model.Task
	err := s.db.GetContext(ctx, &task,
		s.db.Rebind("SELECT "+taskColumns+" FROM tasks WHERE id = ?"), id.String(),
	)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Task{}, false, nil
	}
	if err != nil {
		return model.Task{}, false, fmt.Errorf("getting task %s: %w", id, err)
	}
	return inUTC(task), true, nil
}

// ReadAllTasks retrieves every task in creation order.
func (s *SQLStore) ReadAllTasks(ctx context.Context) ([]model.Task, error) {
	tasks := []model.Task{}
	err := s.db.SelectContext(ctx, &tasks,
		"SELECT "+taskColumns+" FROM tasks ORDER BY created_at, id",
	)
	if err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}
	for i := range tasks {
		tasks[i] = inUTC(tasks[i])
	}
	return tasks, nil
}

// UpdateTask merges patch into the stored task, writes the result, and
// reads it back. The read, write and re-read are separate round trips.
func (s *SQLStore) UpdateTask(
	ctx context.Context,
	id uuid.UUID,
	patch model.UpdateTask,
) (model.Task, bool, error) {
	current, ok, err := s.ReadTask(ctx, id)
	if err != nil || !ok {
		return model.Task{}, false, err
	}

	merged, err := model.Merge(current, patch)
	if err != nil {
		return model.Task{}, false, err
	}

	result, err := s.db.ExecContext(ctx, s.db.Rebind(`
		UPDATE tasks SET
			title = ?, description = ?, status = ?,
			due_date = ?, updated_at = ?
		WHERE id = ?`),
		merged.Title, merged.Description, string(merged.Status),
		merged.DueDate, merged.UpdatedAt,
		id.String(),
	)
	if err != nil {
		return model.Task{}, false, fmt.Errorf("updating task %s: %w", id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return model.Task{}, false, fmt.Errorf("updating task %s: %w", id, err)
	}
	if rows == 0 {
		return model.Task{}, false, nil
	}

	return s.ReadTask(ctx, id)
}

// DeleteTask removes a task by id and returns the removed row.
func (s *SQLStore) DeleteTask(ctx context.Context, id uuid.UUID) (model.Task, bool, error) {
	existing, ok, err := s.ReadTask(ctx, id)
	if err != nil || !ok {
		return model.Task{}, false, err
	}

	result, err := s.db.ExecContext(ctx,
		s.db.Rebind("DELETE FROM tasks WHERE id = ?"), id.String(),
	)
	if err != nil {
		return model.Task{}, false, fmt.Errorf("deleting task %s: %w", id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return model.Task{}, false, fmt.Errorf("deleting task %s: %w", id, err)
	}
	if rows == 0 {
		return model.Task{}, false, nil
	}

	return existing, true, nil
}

// inUTC normalizes scanned timestamps, which drivers may return in a
// fixed zone, to UTC.
func inUTC(t model.Task) model.Task {
	t.CreatedAt = t.CreatedAt.UTC()
	t.DueDate = utcPtr(t.DueDate)
	t.UpdatedAt = utcPtr(t.UpdatedAt)
	return t
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
