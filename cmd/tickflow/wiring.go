package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/99designs/keyring"
	"github.com/redis/go-redis/v9"

	"github.com/nhle/tickflow/internal/cache"
	"github.com/nhle/tickflow/internal/credential"
	"github.com/nhle/tickflow/internal/model"
	"github.com/nhle/tickflow/internal/store"
)

const cachePingTimeout = 2 * time.Second

// secretStore looks up secrets by key.
type secretStore interface {
	Get(key string) (string, error)
}

// keyringOpener opens the secret store on first use, so configurations
// without password keys never touch the system keyring.
type keyringOpener func() (secretStore, error)

// openKeyring opens the keyring described by cfg.
func openKeyring(cfg model.CredentialConfig) (*credential.Keyring, error) {
	kc := credential.Config{
		ServiceName: cfg.Service,
		FileDir:     cfg.FileDir,
	}
	if cfg.Backend != "" {
		kc.Backends = []keyring.BackendType{keyring.BackendType(cfg.Backend)}
	}
	return credential.Open(kc)
}

func lazyKeyring(cfg model.CredentialConfig) keyringOpener {
	return func() (secretStore, error) {
		ring, err := openKeyring(cfg)
		if err != nil {
			return nil, err
		}
		return ring, nil
	}
}

// lookupSecret resolves key through the opener. An empty key yields "".
func lookupSecret(open keyringOpener, key string) (string, error) {
	if key == "" {
		return "", nil
	}
	secrets, err := open()
	if err != nil {
		return "", err
	}
	return secrets.Get(key)
}

// openSQLStore opens the configured database, injecting the keyring
// password into the DSN when one is configured.
func openSQLStore(cfg model.DatabaseConfig, secrets keyringOpener) (*store.SQLStore, error) {
	password, err := lookupSecret(secrets, cfg.PasswordKey)
	if err != nil {
		return nil, fmt.Errorf("resolving database password: %w", err)
	}

	dsn := cfg.DSN
	if cfg.Driver == model.DriverSQLite {
		dsn = expandHome(dsn)
	}
	dsn, err = store.WithPassword(cfg.Driver, dsn, password)
	if err != nil {
		return nil, err
	}

	return store.NewSQLStore(cfg.Driver, dsn)
}

// openTaskService builds the TaskService selected by the configuration,
// wrapped in the Redis cache when enabled. The returned function releases
// every resource it opened.
func openTaskService(
	ctx context.Context,
	cfg *model.AppConfig,
	logger *slog.Logger,
	secrets keyringOpener,
) (store.TaskService, func() error, error) {
	var (
		tasks   store.TaskService
		closers []func() error
	)
	closeAll := func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		return errors.Join(errs...)
	}

	switch cfg.Store.Backend {
	case model.BackendSQL:
		s, err := openSQLStore(cfg.Database, secrets)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, s.Close)
		tasks = s
	default:
		tasks = store.NewMemoryStore()
	}

	if cfg.Cache.Enabled {
		password, err := lookupSecret(secrets, cfg.Cache.PasswordKey)
		if err != nil {
			_ = closeAll()
			return nil, nil, fmt.Errorf("resolving cache password: %w", err)
		}

		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.Addr,
			Password: password,
			DB:       cfg.Cache.DB,
		})
		c := cache.New(client, cfg.Cache.Prefix, cfg.Cache.TTL())

		pingCtx, cancel := context.WithTimeout(ctx, cachePingTimeout)
		if err := c.Ping(pingCtx); err != nil {
			logger.Warn("cache unreachable, reads go to the store until it recovers",
				"addr", cfg.Cache.Addr, "error", err)
		}
		cancel()

		closers = append(closers, c.Close)
		tasks = cache.NewStore(tasks, c, logger)
	}

	logger.Debug("task service ready",
		"backend", cfg.Store.Backend,
		"driver", cfg.Database.Driver,
		"cache", cfg.Cache.Enabled,
	)
	return tasks, closeAll, nil
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
