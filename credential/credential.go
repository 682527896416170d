// Package credential stores and retrieves the Tellurio API key from the OS
// keyring, grounded on client.py's use of the Python `keyring` library.
package credential

import (
	"fmt"

	"github.com/zalando/go-keyring"
)

const entryAPIKey = "api_key"

// Store persists and retrieves the API key used to authenticate both the
// REST and WebSocket surfaces.
type Store interface {
	Get() (string, error)
	Set(apiKey string) error
	Delete() error
}

// keyringStore is the default Store, backed by the OS credential manager via
// github.com/zalando/go-keyring (the Go ecosystem's counterpart to Python's
// keyring, used by client.py).
type keyringStore struct {
	service string
}

// NewStore builds a Store scoped to service, typically KeyringService from
// config.Config (default "tellurio").
func NewStore(service string) Store {
	return &keyringStore{service: service}
}

func (s *keyringStore) Get() (string, error) {
	v, err := keyring.Get(s.service, entryAPIKey)
	if err != nil {
		if err == keyring.ErrNotFound {
			return "", nil
		}
		return "", fmt.Errorf("reading api key from keyring: %w", err)
	}
	return v, nil
}

func (s *keyringStore) Set(apiKey string) error {
	if err := keyring.Set(s.service, entryAPIKey, apiKey); err != nil {
		return fmt.Errorf("storing api key in keyring: %w", err)
	}
	return nil
}

func (s *keyringStore) Delete() error {
	if err := keyring.Delete(s.service, entryAPIKey); err != nil && err != keyring.ErrNotFound {
		return fmt.Errorf("deleting api key from keyring: %w", err)
	}
	return nil
}
