package account

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"xhsmonitor/pkg/logger"
)

// SessionState is the opaque authentication state captured after a
// successful login (cookies and storage snapshot), keyed by account id.
// The payload is whatever the browser session hands back; this package
// never interprets it.
type SessionState struct {
	AccountID string          `json:"account_id"`
	Payload   json.RawMessage `json:"payload"`
	SavedAt   time.Time       `json:"saved_at"`
	Version   int             `json:"version"`
}

// SessionStore reads and writes per-account session state files
type SessionStore struct {
	dir    string
	logger logger.Logger
}

// NewSessionStore creates the session state directory if needed
func NewSessionStore(dir string) (*SessionStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}

	return &SessionStore{
		dir:    dir,
		logger: logger.GetLogger(),
	}, nil
}

// path returns the state file location for an account
func (s *SessionStore) path(accountID string) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s.session.json", accountID))
}

// Save writes the state atomically with owner-only permissions
func (s *SessionStore) Save(accountID string, payload json.RawMessage) error {
	state := SessionState{
		AccountID: accountID,
		Payload:   payload,
		SavedAt:   time.Now(),
		Version:   1,
	}

	content, err := json.MarshalIndent(&state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session state: %w", err)
	}

	target := s.path(accountID)
	tempPath := target + ".tmp"
	if err := os.WriteFile(tempPath, content, 0600); err != nil {
		return fmt.Errorf("failed to write session state: %w", err)
	}

	if err := os.Rename(tempPath, target); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace session state: %w", err)
	}

	s.logger.DebugWithFields("Session state saved", map[string]interface{}{
		"account_id": accountID,
	})

	return nil
}

// Load returns the stored state, or nil when none exists
func (s *SessionStore) Load(accountID string) (*SessionState, error) {
	content, err := os.ReadFile(s.path(accountID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read session state: %w", err)
	}

	var state SessionState
	if err := json.Unmarshal(content, &state); err != nil {
		return nil, fmt.Errorf("failed to decode session state: %w", err)
	}

	return &state, nil
}

// Delete removes the state file; missing files are not an error
func (s *SessionStore) Delete(accountID string) error {
	if err := os.Remove(s.path(accountID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete session state: %w", err)
	}
	return nil
}

// Exists checks whether state is stored for the account
func (s *SessionStore) Exists(accountID string) bool {
	_, err := os.Stat(s.path(accountID))
	return err == nil
}
