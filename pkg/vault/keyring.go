package vault

import (
	"fmt"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "xhsmonitor"
	keyringKey     = "master_secret"
)

// Keyring stores the vault master secret in the system keychain so the
// operator is not prompted on every invocation. Using it is optional; the
// vault itself never touches the keychain.
type Keyring struct{}

// NewKeyring creates a keychain accessor, verifying the backend works
func NewKeyring() (*Keyring, error) {
	testKey := "test_availability"
	err := keyring.Set(keyringService, testKey, "test")
	if err != nil {
		return nil, fmt.Errorf("keyring not available: %w", err)
	}
	_ = keyring.Delete(keyringService, testKey)

	return &Keyring{}, nil
}

// StoreMasterSecret saves the master secret in the system keychain
func (k *Keyring) StoreMasterSecret(secret string) error {
	if secret == "" {
		return fmt.Errorf("master secret must not be empty")
	}
	if err := keyring.Set(keyringService, keyringKey, secret); err != nil {
		return fmt.Errorf("failed to store in keyring: %w", err)
	}
	return nil
}

// LoadMasterSecret retrieves the master secret, or "" when none is cached
func (k *Keyring) LoadMasterSecret() (string, error) {
	secret, err := keyring.Get(keyringService, keyringKey)
	if err != nil {
		if err == keyring.ErrNotFound {
			return "", nil
		}
		return "", fmt.Errorf("failed to retrieve from keyring: %w", err)
	}
	return secret, nil
}

// ClearMasterSecret removes the cached master secret
func (k *Keyring) ClearMasterSecret() error {
	err := keyring.Delete(keyringService, keyringKey)
	if err != nil && err != keyring.ErrNotFound {
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}
	return nil
}
