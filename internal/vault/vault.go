// Package vault owns the single durable credential of the client: the
// refresh token. It is one mutable cell under a fixed key, read once at
// startup and written only by the session controller.
package vault

import (
	"errors"
	"log"

	"farmdb/internal/config"
	"farmdb/internal/database"

	"github.com/zalando/go-keyring"
)

const (
	keychainService = config.AppBundleID
	refreshTokenKey = "refresh_token"
	probeKey        = "_write_probe"
)

// ErrEmpty is returned by Load when no token is stored
var ErrEmpty = errors.New("vault: no stored token")

// Vault is the durable refresh-token slot
type Vault interface {
	// Load reads the stored token; ErrEmpty when absent
	Load() (string, error)
	// Store overwrites the stored token
	Store(token string) error
	// Clear removes the stored token; clearing an empty vault is a no-op
	Clear() error
}

// Open picks the OS keyring when it accepts writes, otherwise falls back to
// the local SQLite store. Headless and CI environments have no keyring.
func Open(db *database.Service) Vault {
	if keyringUsable() {
		log.Println("[VAULT] Using OS keyring")
		return &keyringVault{}
	}
	if db != nil {
		log.Println("[VAULT] OS keyring unavailable - using local store fallback")
		return &databaseVault{db: db}
	}
	log.Println("[VAULT] No durable storage available - tokens will not survive restart")
	return &memoryVault{}
}

func keyringUsable() bool {
	if err := keyring.Set(keychainService, probeKey, "ok"); err != nil {
		return false
	}
	_ = keyring.Delete(keychainService, probeKey)
	return true
}

type keyringVault struct{}

func (v *keyringVault) Load() (string, error) {
	token, err := keyring.Get(keychainService, refreshTokenKey)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrEmpty
	}
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", ErrEmpty
	}
	return token, nil
}

func (v *keyringVault) Store(token string) error {
	return keyring.Set(keychainService, refreshTokenKey, token)
}

func (v *keyringVault) Clear() error {
	err := keyring.Delete(keychainService, refreshTokenKey)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

type databaseVault struct {
	db *database.Service
}

func (v *databaseVault) Load() (string, error) {
	token, err := v.db.GetCredential(refreshTokenKey)
	if errors.Is(err, database.ErrNotFound) {
		return "", ErrEmpty
	}
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", ErrEmpty
	}
	return token, nil
}

func (v *databaseVault) Store(token string) error {
	return v.db.SetCredential(refreshTokenKey, token)
}

func (v *databaseVault) Clear() error {
	return v.db.DeleteCredential(refreshTokenKey)
}

// Path exposes the backing file for external-change watching
func (v *databaseVault) Path() string {
	return v.db.Path()
}

// memoryVault keeps the token for the process lifetime only
type memoryVault struct {
	token string
}

func (v *memoryVault) Load() (string, error) {
	if v.token == "" {
		return "", ErrEmpty
	}
	return v.token, nil
}

func (v *memoryVault) Store(token string) error {
	v.token = token
	return nil
}

func (v *memoryVault) Clear() error {
	v.token = ""
	return nil
}
