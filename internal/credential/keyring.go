// Package credential stores connection secrets in the system keyring so
// they never have to appear in the config file.
package credential

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/99designs/keyring"
)

// ErrNotFound is returned when no secret is stored under a key.
var ErrNotFound = errors.New("credential not found")

// DefaultBackends is the backend preference used when Config.Backends is
// empty. The file backend is the fallback for headless hosts.
var DefaultBackends = []keyring.BackendType{
	keyring.KeychainBackend,
	keyring.SecretServiceBackend,
	keyring.WinCredBackend,
	keyring.PassBackend,
	keyring.FileBackend,
}

// Config selects the keyring to open.
type Config struct {
	// ServiceName namespaces the entries, e.g. "tickflow".
	ServiceName string

	// FileDir is where the encrypted file backend keeps its entries.
	FileDir string

	// FilePassword unlocks the file backend. Defaults to a fixed
	// service-derived key.
	FilePassword string

	Backends []keyring.BackendType
}

// Keyring reads and writes secrets for one service.
type Keyring struct {
	ring keyring.Keyring
}

// Open returns a configured keyring.
func Open(cfg Config) (*Keyring, error) {
	backends := cfg.Backends
	if len(backends) == 0 {
		backends = DefaultBackends
	}
	password := cfg.FilePassword
	if password == "" {
		password = cfg.ServiceName + "-file-key"
	}

	ring, err := keyring.Open(keyring.Config{
		ServiceName:              cfg.ServiceName,
		AllowedBackends:          backends,
		FileDir:                  cfg.FileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt(password),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return &Keyring{ring: ring}, nil
}

// Get retrieves a secret by key.
func (k *Keyring) Get(key string) (string, error) {
	item, err := k.ring.Get(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", fmt.Errorf("getting credential %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}

	return string(item.Data), nil
}

// Set stores a secret under key, replacing any previous value.
func (k *Keyring) Set(key string, value string) error {
	err := k.ring.Set(keyring.Item{
		Key:   key,
		Data:  []byte(value),
		Label: key,
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}

	return nil
}

// Delete removes a secret by key.
func (k *Keyring) Delete(key string) error {
	err := k.ring.Remove(key)
	if errors.Is(err, keyring.ErrKeyNotFound) || errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("deleting credential %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}

	return nil
}

// Keys lists the stored keys.
func (k *Keyring) Keys() ([]string, error) {
	keys, err := k.ring.Keys()
	if err != nil {
		return nil, fmt.Errorf("listing credentials: %w", err)
	}
	return keys, nil
}
