// Package native stores the signing key in a hex-encoded file on local disk.
package native

import (
	"context"
	"crypto/rand"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/mrz1836/mavsign/internal/constants"
	"github.com/mrz1836/mavsign/internal/crypto"
	"github.com/mrz1836/mavsign/internal/errors"
	"github.com/mrz1836/mavsign/internal/flock"
)

// KeyManager loads, and optionally creates, the pre-shared signing key.
type KeyManager struct {
	keyPath string
	random  io.Reader

	mu     sync.RWMutex
	key    crypto.SecretKey
	loaded bool
}

// NewKeyManager creates a KeyManager for the key file at keyPath.
// An empty keyPath selects ~/.mavsign/keys/signing.key.
func NewKeyManager(keyPath string) (*KeyManager, error) {
	if keyPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, errors.Wrap(err, "failed to get home directory")
		}
		keyPath = filepath.Join(home, constants.MavsignHome, constants.KeysDir, constants.KeyFileName)
	}
	return &KeyManager{keyPath: keyPath, random: rand.Reader}, nil
}

// Path returns the key file location.
func (km *KeyManager) Path() string {
	return km.keyPath
}

// Exists checks if the key file exists on disk.
func (km *KeyManager) Exists() bool {
	_, err := os.Stat(km.keyPath)
	return err == nil
}

// Load reads the key file. A missing file is ErrKeyNotLoaded.
func (km *KeyManager) Load(_ context.Context) error {
	km.mu.Lock()
	defer km.mu.Unlock()

	if km.loaded {
		return nil
	}

	data, err := os.ReadFile(km.keyPath)
	if os.IsNotExist(err) {
		return errors.Wrapf(errors.ErrKeyNotLoaded, "no key at %s", km.keyPath)
	} else if err != nil {
		return errors.Wrap(err, "reading signing key")
	}

	key, err := crypto.ParseHex(string(data))
	if err != nil {
		return errors.Wrapf(err, "parsing %s", km.keyPath)
	}

	km.key = key
	km.loaded = true
	return nil
}

// Generate writes a new random key. An existing key is only replaced when
// force is set. Concurrent generators are excluded with a file lock.
func (km *KeyManager) Generate(ctx context.Context, force bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	km.mu.Lock()
	defer km.mu.Unlock()

	dir := filepath.Dir(km.keyPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errors.Wrap(err, "creating key directory")
	}

	release, err := flock.TryLock(filepath.Join(dir, constants.KeyLockFileName))
	if err != nil {
		return err
	}
	defer func() { _ = release() }()

	if _, statErr := os.Stat(km.keyPath); statErr == nil && !force {
		return errors.Wrapf(errors.ErrKeyExists, "%s", km.keyPath)
	}

	key, err := crypto.Generate(km.random)
	if err != nil {
		return err
	}

	// Write then rename so a reader never sees a half-written key.
	tmp := km.keyPath + ".tmp"
	if err := os.WriteFile(tmp, []byte(key.Hex()+"\n"), 0o600); err != nil {
		return errors.Wrap(err, "saving signing key")
	}
	if err := os.Rename(tmp, km.keyPath); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrap(err, "saving signing key")
	}

	km.key = key
	km.loaded = true
	return nil
}

// Key returns the loaded key.
func (km *KeyManager) Key() (crypto.SecretKey, error) {
	km.mu.RLock()
	defer km.mu.RUnlock()

	if !km.loaded {
		return crypto.SecretKey{}, errors.ErrKeyNotLoaded
	}
	return km.key, nil
}
