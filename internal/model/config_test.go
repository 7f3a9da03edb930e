package model

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	def := DefaultAppConfig()
	assert.Equal(t, def.Server, cfg.Server)
	assert.Equal(t, BackendMemory, cfg.Store.Backend)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL())
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout())
	require.NoError(t, cfg.Validate())
}

func TestSaveThenLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "config.yaml")

	cfg := DefaultAppConfig()
	cfg.Server.Addr = "127.0.0.1:9090"
	cfg.Store.Backend = BackendSQL
	cfg.Database.DSN = "/var/lib/tickflow/tasks.db"
	cfg.Cache.Enabled = true
	cfg.Cache.TTLSec = 60
	cfg.Log.Format = "json"

	require.NoError(t, SaveConfig(path, cfg))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadConfigPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := strings.Join([]string{
		"store:",
		"  backend: sql",
		"database:",
		"  driver: pgx",
		"  dsn: postgres://app@localhost/tasks",
		"cache:",
		"  ttl_sec: 0",
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, BackendSQL, cfg.Store.Backend)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.Equal(t, 300, cfg.Cache.TTLSec, "non-positive ttl falls back to the default")
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("TICKFLOW_STORE_BACKEND", "sql")
	t.Setenv("TICKFLOW_SERVER_ADDR", ":7000")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, BackendSQL, cfg.Store.Backend)
	assert.Equal(t, ":7000", cfg.Server.Addr)
}

func TestLoadConfigRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store: [unclosed"), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*AppConfig)
		wantErr string
	}{
		{name: "defaults", mutate: func(*AppConfig) {}},
		{name: "sql sqlite", mutate: func(c *AppConfig) { c.Store.Backend = BackendSQL }},
		{
			name:    "unknown backend",
			mutate:  func(c *AppConfig) { c.Store.Backend = "mongo" },
			wantErr: "unsupported store backend",
		},
		{
			name: "unknown driver",
			mutate: func(c *AppConfig) {
				c.Store.Backend = BackendSQL
				c.Database.Driver = "mysql"
			},
			wantErr: "unsupported database driver",
		},
		{
			name: "missing dsn",
			mutate: func(c *AppConfig) {
				c.Store.Backend = BackendSQL
				c.Database.DSN = ""
			},
			wantErr: "database.dsn",
		},
		{
			name: "cache without addr",
			mutate: func(c *AppConfig) {
				c.Cache.Enabled = true
				c.Cache.Addr = ""
			},
			wantErr: "cache.addr",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultAppConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestLogConfigNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := LogConfig{Level: "warn", Format: "json"}.NewLogger(&buf)

	logger.Info("hidden")
	logger.Warn("shown", "task_id", "abc")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"task_id":"abc"`)
}
