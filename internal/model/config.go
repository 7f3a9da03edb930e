package model

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendSQL    = "sql"
)

// SQL drivers accepted by the backing-store adapter.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr               string `mapstructure:"addr" yaml:"addr"`
	ShutdownTimeoutSec int    `mapstructure:"shutdown_timeout_sec" yaml:"shutdown_timeout_sec"`
}

// ShutdownTimeout returns the graceful shutdown budget.
func (c ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSec) * time.Second
}

// StoreConfig selects the TaskService implementation.
type StoreConfig struct {
	// Backend is "memory" or "sql".
	Backend string `mapstructure:"backend" yaml:"backend"`
}

// DatabaseConfig holds settings for the SQL backing store.
type DatabaseConfig struct {
	// Driver is "sqlite" or "pgx".
	Driver string `mapstructure:"driver" yaml:"driver"`

	// DSN is a file path for sqlite or a connection URL for pgx.
	DSN string `mapstructure:"dsn" yaml:"dsn"`

	// PasswordKey names a keyring entry whose value is used as the
	// connection password. Empty means the DSN is used as is.
	PasswordKey string `mapstructure:"password_key" yaml:"password_key"`
}

// CacheConfig holds settings for the Redis read cache.
type CacheConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr        string `mapstructure:"addr" yaml:"addr"`
	PasswordKey string `mapstructure:"password_key" yaml:"password_key"`
	DB          int    `mapstructure:"db" yaml:"db"`
	Prefix      string `mapstructure:"prefix" yaml:"prefix"`
	TTLSec      int    `mapstructure:"ttl_sec" yaml:"ttl_sec"`
}

// TTL returns the cache entry lifetime.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSec) * time.Second
}

// CredentialConfig controls where keyring secrets are looked up.
type CredentialConfig struct {
	Service string `mapstructure:"service" yaml:"service"`

	// Backend pins a single keyring backend, e.g. "file". Empty means the
	// first available one.
	Backend string `mapstructure:"backend" yaml:"backend"`

	FileDir string `mapstructure:"file_dir" yaml:"file_dir"`
}

// LogConfig holds logging preferences.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `mapstructure:"level" yaml:"level"`

	// Format is "text" or "json".
	Format string `mapstructure:"format" yaml:"format"`
}

// NewLogger builds a slog.Logger writing to w.
func (c LogConfig) NewLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(c.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Server      ServerConfig     `mapstructure:"server" yaml:"server"`
	Store       StoreConfig      `mapstructure:"store" yaml:"store"`
	Database    DatabaseConfig   `mapstructure:"database" yaml:"database"`
	Cache       CacheConfig      `mapstructure:"cache" yaml:"cache"`
	Credentials CredentialConfig `mapstructure:"credentials" yaml:"credentials"`
	Log         LogConfig        `mapstructure:"log" yaml:"log"`
}

// Validate rejects settings the service cannot start with.
func (c *AppConfig) Validate() error {
	switch c.Store.Backend {
	case BackendMemory:
	case BackendSQL:
		switch c.Database.Driver {
		case DriverSQLite, DriverPostgres:
		default:
			return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
		}
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn must be set for the sql backend")
		}
	default:
		return fmt.Errorf("unsupported store backend %q", c.Store.Backend)
	}
	if c.Cache.Enabled && c.Cache.Addr == "" {
		return fmt.Errorf("cache.addr must be set when the cache is enabled")
	}
	return nil
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/tickflow/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "tickflow", "config.yaml")
}

// defaultDatabasePath returns ~/.local/share/tickflow/tickflow.db.
func defaultDatabasePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "tickflow.db"
	}
	return filepath.Join(home, ".local", "share", "tickflow", "tickflow.db")
}

// DefaultAppConfig returns a sensible default configuration.
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Addr:               ":8000",
			ShutdownTimeoutSec: 30,
		},
		Store: StoreConfig{Backend: BackendMemory},
		Database: DatabaseConfig{
			Driver: DriverSQLite,
			DSN:    defaultDatabasePath(),
		},
		Cache: CacheConfig{
			Addr:   "localhost:6379",
			Prefix: "tickflow:",
			TTLSec: 300,
		},
		Credentials: CredentialConfig{
			Service: "tickflow",
			FileDir: "~/.config/tickflow/credentials",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, the defaults are used. Any key can be
// overridden with a TICKFLOW_ environment variable, e.g.
// TICKFLOW_STORE_BACKEND=sql.
func LoadConfig(path string) (*AppConfig, error) {
	def := DefaultAppConfig()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("tickflow")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults so missing keys resolve to sensible values and so
	// AutomaticEnv can see every key.
	v.SetDefault("server.addr", def.Server.Addr)
	v.SetDefault("server.shutdown_timeout_sec", def.Server.ShutdownTimeoutSec)
	v.SetDefault("store.backend", def.Store.Backend)
	v.SetDefault("database.driver", def.Database.Driver)
	v.SetDefault("database.dsn", def.Database.DSN)
	v.SetDefault("database.password_key", "")
	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.addr", def.Cache.Addr)
	v.SetDefault("cache.password_key", "")
	v.SetDefault("cache.db", 0)
	v.SetDefault("cache.prefix", def.Cache.Prefix)
	v.SetDefault("cache.ttl_sec", def.Cache.TTLSec)
	v.SetDefault("credentials.service", def.Credentials.Service)
	v.SetDefault("credentials.backend", "")
	v.SetDefault("credentials.file_dir", def.Credentials.FileDir)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.format", def.Log.Format)

	if err := v.ReadInConfig(); err != nil {
		_, isPathErr := err.(*os.PathError)
		_, isNotFound := err.(viper.ConfigFileNotFoundError)
		if !isPathErr && !isNotFound {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Server.ShutdownTimeoutSec <= 0 {
		cfg.Server.ShutdownTimeoutSec = def.Server.ShutdownTimeoutSec
	}
	if cfg.Cache.TTLSec <= 0 {
		cfg.Cache.TTLSec = def.Cache.TTLSec
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("server", cfg.Server)
	v.Set("store", cfg.Store)
	v.Set("database", cfg.Database)
	v.Set("cache", cfg.Cache)
	v.Set("credentials", cfg.Credentials)
	v.Set("log", cfg.Log)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
