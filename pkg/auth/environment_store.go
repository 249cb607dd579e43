package auth

import (
	"fmt"
	"os"
	"time"
)

// EnvironmentStore implements CredentialStore using environment variables.
// It reads TIKHUB_API_KEY plus the TIKHUB_API_KEY_BACKUP and
// TIKHUB_API_KEY_BACKUP_1 through _9 fallbacks.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(creds *Credentials) error {
	return ErrStoreUnavailable
}

// Retrieve gets credentials from environment variables
func (e *EnvironmentStore) Retrieve(name string) (*Credentials, error) {
	apiKey := os.Getenv("TIKHUB_API_KEY")
	if apiKey == "" {
		return nil, ErrCredentialsNotFound
	}

	var backups []string
	if backup := os.Getenv("TIKHUB_API_KEY_BACKUP"); backup != "" {
		backups = append(backups, backup)
	}
	for i := 1; i <= 9; i++ {
		if backup := os.Getenv(fmt.Sprintf("TIKHUB_API_KEY_BACKUP_%d", i)); backup != "" {
			backups = append(backups, backup)
		}
	}

	// Environment variables don't carry a name, so we use "default" or
	// the provided one
	if name == "" {
		name = "default"
	}

	return &Credentials{
		Name:         name,
		APIKey:       apiKey,
		BackupKeys:   backups,
		LastModified: time.Now(),
	}, nil
}

// List returns a single credential set if environment variables are set
func (e *EnvironmentStore) List() ([]*Credentials, error) {
	creds, err := e.Retrieve("")
	if err != nil {
		return []*Credentials{}, nil
	}
	return []*Credentials{creds}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(name string) error {
	return ErrStoreUnavailable
}

// Exists checks if environment credentials exist
func (e *EnvironmentStore) Exists(name string) bool {
	return os.Getenv("TIKHUB_API_KEY") != ""
}
