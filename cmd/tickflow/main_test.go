package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/tickflow/internal/cache"
	"github.com/nhle/tickflow/internal/credential"
	"github.com/nhle/tickflow/internal/model"
	"github.com/nhle/tickflow/internal/store"
)

// run executes the root command with args and returns stdout.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// writeConfig saves a config rooted in a temp dir and returns its path.
func writeConfig(t *testing.T, mutate func(*model.AppConfig)) (string, *model.AppConfig) {
	t.Helper()

	dir := t.TempDir()
	cfg := model.DefaultAppConfig()
	cfg.Store.Backend = model.BackendSQL
	cfg.Database.DSN = filepath.Join(dir, "data", "tickflow.db")
	cfg.Credentials.Service = "tickflow-test"
	cfg.Credentials.Backend = "file"
	cfg.Credentials.FileDir = filepath.Join(dir, "credentials")
	cfg.Log.Level = "error"
	if mutate != nil {
		mutate(cfg)
	}

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, model.SaveConfig(path, cfg))
	return path, cfg
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestInitWritesDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	out, err := run(t, "", "--config", path, "init")
	require.NoError(t, err)
	assert.Contains(t, out, path)

	cfg, err := model.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultAppConfig(), cfg)

	_, err = run(t, "", "--config", path, "init")
	assert.ErrorContains(t, err, "already exists")

	_, err = run(t, "", "--config", path, "init", "--force")
	assert.NoError(t, err)
}

func TestAddThenListWithSQLite(t *testing.T) {
	path, _ := writeConfig(t, nil)

	out, err := run(t, "", "--config", path, "add",
		"--user", "1",
		"--title", "Write Tests",
		"--description", "Finish writing tests",
		"--due", "2030-01-15",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "Created task")

	_, err = run(t, "", "--config", path, "add", "-u", "2", "-t", "Ship it", "-s", "in_progress")
	require.NoError(t, err)

	out, err = run(t, "", "--config", path, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Write Tests")
	assert.Contains(t, out, "Ship it")
	assert.Contains(t, out, "in_progress")
}

func TestAddRejectsBadInput(t *testing.T) {
	path, _ := writeConfig(t, nil)

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "missing user", args: []string{"-t", "x"}, wantErr: "user ID"},
		{name: "missing title", args: []string{"-u", "1"}, wantErr: "Title is required"},
		{name: "bad status", args: []string{"-u", "1", "-t", "x", "-s", "blocked"}, wantErr: "unknown status"},
		{name: "bad due", args: []string{"-u", "1", "-t", "x", "--due", "someday"}, wantErr: "unsupported format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"--config", path, "add"}, tt.args...)
			_, err := run(t, "", args...)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}

	out, err := run(t, "", "--config", path, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No tasks.")
}

func TestUpdateChangesOnlyGivenFields(t *testing.T) {
	path, cfg := writeConfig(t, nil)
	ctx := context.Background()

	tasks, closeTasks, err := openTaskService(ctx, cfg, quietLogger(), lazyKeyring(cfg.Credentials))
	require.NoError(t, err)
	created, err := tasks.CreateTask(ctx, model.CreateTask{UserID: 1, Title: "Write Tests", Description: "Finish writing tests"})
	require.NoError(t, err)
	require.NoError(t, closeTasks())

	out, err := run(t, "", "--config", path, "update", created.ID.String(), "--title", "Updated Title", "-s", "done")
	require.NoError(t, err)
	assert.Contains(t, out, "Updated task")

	tasks, closeTasks, err = openTaskService(ctx, cfg, quietLogger(), lazyKeyring(cfg.Credentials))
	require.NoError(t, err)
	defer closeTasks()
	got, ok, err := tasks.ReadTask(ctx, created.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Updated Title", got.Title)
	assert.Equal(t, "Finish writing tests", got.Description)
	assert.Equal(t, model.StatusDone, got.Status)
	assert.NotNil(t, got.UpdatedAt)
}

func TestUpdateRejectsBadInput(t *testing.T) {
	path, _ := writeConfig(t, nil)
	id := "0b6f4a4e-5d0c-4a51-9a55-2f0a2c6f8e11"

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "no fields", args: []string{id}, wantErr: "nothing to update"},
		{name: "bad id", args: []string{"42", "-t", "x"}, wantErr: "parsing task id"},
		{name: "bad status", args: []string{id, "-s", "blocked"}, wantErr: "unknown status"},
		{name: "unknown task", args: []string{id, "-t", "x"}, wantErr: "not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"--config", path, "update"}, tt.args...)
			_, err := run(t, "", args...)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestMigrateReportsSchemaVersion(t *testing.T) {
	path, cfg := writeConfig(t, func(c *model.AppConfig) { c.Store.Backend = model.BackendMemory })

	out, err := run(t, "", "--config", path, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "sqlite database at schema version 2")

	_, err = os.Stat(cfg.Database.DSN)
	assert.NoError(t, err, "migrate creates the database file")
}

func TestCredentialSetAndDelete(t *testing.T) {
	path, cfg := writeConfig(t, nil)

	_, err := run(t, "", "--config", path, "credential", "set", "database", "--value", "s3cret")
	require.NoError(t, err)

	ring, err := openKeyring(cfg.Credentials)
	require.NoError(t, err)
	got, err := ring.Get("database")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", got)

	_, err = run(t, "rotated\n", "--config", path, "credential", "set", "database")
	require.NoError(t, err)
	got, err = ring.Get("database")
	require.NoError(t, err)
	assert.Equal(t, "rotated", got)

	_, err = run(t, "", "--config", path, "credential", "delete", "database")
	require.NoError(t, err)

	_, err = run(t, "", "--config", path, "credential", "delete", "database")
	assert.ErrorIs(t, err, credential.ErrNotFound)

	_, err = run(t, "\n", "--config", path, "credential", "set", "database")
	assert.ErrorContains(t, err, "empty secret")
}

func TestCredentialList(t *testing.T) {
	path, _ := writeConfig(t, nil)

	out, err := run(t, "", "--config", path, "credential", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No credentials.")

	for _, key := range []string{"redis", "database"} {
		_, err := run(t, "", "--config", path, "credential", "set", key, "--value", "v")
		require.NoError(t, err)
	}

	out, err = run(t, "", "--config", path, "credential", "list")
	require.NoError(t, err)
	assert.Equal(t, "database\nredis\n", out)
}

func TestOpenTaskServiceSelectsBackend(t *testing.T) {
	ctx := context.Background()

	_, memCfg := writeConfig(t, func(c *model.AppConfig) { c.Store.Backend = model.BackendMemory })
	tasks, closeTasks, err := openTaskService(ctx, memCfg, quietLogger(), lazyKeyring(memCfg.Credentials))
	require.NoError(t, err)
	assert.IsType(t, &store.MemoryStore{}, tasks)
	assert.NoError(t, closeTasks())

	_, sqlCfg := writeConfig(t, nil)
	tasks, closeTasks, err = openTaskService(ctx, sqlCfg, quietLogger(), lazyKeyring(sqlCfg.Credentials))
	require.NoError(t, err)
	assert.IsType(t, &store.SQLStore{}, tasks)
	assert.NoError(t, closeTasks())
}

func TestOpenTaskServiceWrapsCache(t *testing.T) {
	_, cfg := writeConfig(t, func(c *model.AppConfig) {
		c.Store.Backend = model.BackendMemory
		c.Cache.Enabled = true
		c.Cache.Addr = "127.0.0.1:1"
	})

	tasks, closeTasks, err := openTaskService(context.Background(), cfg, quietLogger(), lazyKeyring(cfg.Credentials))
	require.NoError(t, err)
	defer closeTasks()

	assert.IsType(t, &cache.Store{}, tasks)
}

func TestOpenTaskServiceMissingPassword(t *testing.T) {
	_, cfg := writeConfig(t, func(c *model.AppConfig) { c.Database.PasswordKey = "absent" })

	_, _, err := openTaskService(context.Background(), cfg, quietLogger(), lazyKeyring(cfg.Credentials))
	assert.ErrorIs(t, err, credential.ErrNotFound)
}

func TestServeRejectsInvalidConfig(t *testing.T) {
	path, _ := writeConfig(t, func(c *model.AppConfig) { c.Store.Backend = "mongo" })

	_, err := run(t, "", "--config", path, "serve")
	assert.ErrorContains(t, err, "unsupported store backend")
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "data", "t.db"), expandHome("~/data/t.db"))
	assert.Equal(t, "/abs/t.db", expandHome("/abs/t.db"))
	assert.Equal(t, ":memory:", expandHome(":memory:"))
}
