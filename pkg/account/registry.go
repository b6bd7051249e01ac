package account

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	errs "xhsmonitor/pkg/errors"
	"xhsmonitor/pkg/logger"
	"xhsmonitor/pkg/vault"
)

// Registry owns the account store file. Every mutating operation rewrites
// the full record set atomically with owner-only permissions. The store is
// not safe to share between processes; this design assumes a single
// orchestrator mutating it.
type Registry struct {
	storePath string
	vault     *vault.Vault
	sessions  *SessionStore
	logger    logger.Logger

	mu      sync.RWMutex
	records map[string]*Record

	// now is swapped in tests for a fixed clock
	now func() time.Time
}

// storeFile is the YAML document written to disk
type storeFile struct {
	Version  int       `yaml:"version"`
	Modified time.Time `yaml:"modified"`
	Accounts []*Record `yaml:"accounts"`
}

// NewRegistry loads (or creates) the account store at storePath. Session
// state files live under sessionDir and are removed with their account.
func NewRegistry(storePath, sessionDir string, v *vault.Vault) (*Registry, error) {
	dir := filepath.Dir(storePath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create account store directory: %w", err)
		}
	}

	sessions, err := NewSessionStore(sessionDir)
	if err != nil {
		return nil, err
	}

	r := &Registry{
		storePath: storePath,
		vault:     v,
		sessions:  sessions,
		logger:    logger.GetLogger(),
		records:   make(map[string]*Record),
		now:       time.Now,
	}

	if err := r.load(); err != nil {
		return nil, err
	}

	return r, nil
}

// Sessions returns the per-account session state store
func (r *Registry) Sessions() *SessionStore {
	return r.sessions
}

// Add encrypts the secret and creates a new account record. Fails when the
// vault is locked.
func (r *Registry) Add(loginIdentifier, secret, contact, notes string) (*Record, error) {
	if loginIdentifier == "" {
		return nil, fmt.Errorf("login identifier is required")
	}
	if secret == "" {
		return nil, fmt.Errorf("secret is required")
	}

	encrypted, err := r.vault.Encrypt(secret)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	record := &Record{
		ID:                uuid.NewString(),
		LoginIdentifier:   loginIdentifier,
		EncryptedSecret:   encrypted,
		ContactIdentifier: contact,
		Status:            StatusUnknown,
		CreatedAt:         r.now(),
		Notes:             notes,
	}

	r.records[record.ID] = record
	if err := r.save(); err != nil {
		delete(r.records, record.ID)
		return nil, err
	}

	r.logger.InfoWithFields("Account added", map[string]interface{}{
		"account_id": record.ID,
		"login":      loginIdentifier,
	})

	return record.Sanitize(), nil
}

// Get returns a copy of the record with the given id
func (r *Registry) Get(id string) (*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.records[id]
	if !ok {
		return nil, errs.New(errs.ErrorTypeNotFound, fmt.Sprintf("account %s not found", id))
	}

	clone := *record
	return &clone, nil
}

// List returns copies of all records, ordered by creation time
func (r *Registry) List() []*Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Record, 0, len(r.records))
	for _, record := range r.records {
		clone := *record
		out = append(out, &clone)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})

	return out
}

// Remove deletes the record and any session state tied to it
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[id]; !ok {
		return errs.New(errs.ErrorTypeNotFound, fmt.Sprintf("account %s not found", id))
	}

	delete(r.records, id)
	if err := r.save(); err != nil {
		return err
	}

	if err := r.sessions.Delete(id); err != nil {
		r.logger.WithError(err).Warn("Failed to remove session state")
	}

	r.logger.WithField("account_id", id).Info("Account removed")
	return nil
}

// DecryptSecret returns the plaintext secret for a record. Requires an
// unlocked vault; the plaintext is never written anywhere by this package.
func (r *Registry) DecryptSecret(id string) (string, error) {
	record, err := r.Get(id)
	if err != nil {
		return "", err
	}
	return r.vault.Decrypt(record.EncryptedSecret)
}

// RecordUse bumps the usage counter and the last-used timestamp
func (r *Registry) RecordUse(id string) error {
	return r.update(id, func(record *Record) {
		now := r.now()
		record.LastUsedAt = &now
		record.TotalUses++
	})
}

// RecordOutcome applies the result of a session. Success restores ACTIVE
// and clears the failure streak; failure increments it and marks the
// account SUSPICIOUS.
func (r *Registry) RecordOutcome(id string, success bool, errMsg string) error {
	err := r.update(id, func(record *Record) {
		if success {
			record.Status = StatusActive
			record.ConsecutiveFailures = 0
			record.LastError = ""
		} else {
			record.ConsecutiveFailures++
			record.Status = StatusSuspicious
			record.LastError = errMsg
		}
	})
	if err != nil {
		return err
	}

	logger.LogAccountOutcome(id, success, nil)
	return nil
}

// SetStatus is a manual operator override
func (r *Registry) SetStatus(id string, status Status) error {
	if !ValidStatus(status) {
		return fmt.Errorf("unknown status: %s", status)
	}
	return r.update(id, func(record *Record) {
		record.Status = status
		if status == StatusActive {
			record.ConsecutiveFailures = 0
			record.LastError = ""
		}
	})
}

// Statistics summarizes the registry for operator tooling
type Statistics struct {
	Total      int            `json:"total"`
	ByStatus   map[Status]int `json:"by_status"`
	InCooldown int            `json:"in_cooldown"`
	Eligible   int            `json:"eligible"`
}

// Stats computes counts over the current record set
func (r *Registry) Stats(cooldown time.Duration) Statistics {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := Statistics{ByStatus: make(map[Status]int)}
	now := r.now()

	for _, record := range r.records {
		stats.Total++
		stats.ByStatus[record.Status]++
		if record.InCooldown(now, cooldown) {
			stats.InCooldown++
		}
		if record.Eligible() {
			stats.Eligible++
		}
	}

	return stats
}

// update applies a mutation under lock and persists the full record set
func (r *Registry) update(id string, mutate func(*Record)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[id]
	if !ok {
		return errs.New(errs.ErrorTypeNotFound, fmt.Sprintf("account %s not found", id))
	}

	before := *record
	mutate(record)

	if err := r.save(); err != nil {
		*record = before
		return err
	}
	return nil
}

// load reads the store file; a missing file is an empty registry
func (r *Registry) load() error {
	content, err := os.ReadFile(r.storePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read account store: %w", err)
	}

	var file storeFile
	if err := yaml.Unmarshal(content, &file); err != nil {
		return fmt.Errorf("failed to parse account store: %w", err)
	}

	for _, record := range file.Accounts {
		r.records[record.ID] = record
	}

	return nil
}

// save rewrites the whole store atomically
func (r *Registry) save() error {
	file := storeFile{
		Version:  1,
		Modified: r.now(),
		Accounts: make([]*Record, 0, len(r.records)),
	}
	for _, record := range r.records {
		file.Accounts = append(file.Accounts, record)
	}
	sort.Slice(file.Accounts, func(i, j int) bool {
		if file.Accounts[i].CreatedAt.Equal(file.Accounts[j].CreatedAt) {
			return file.Accounts[i].ID < file.Accounts[j].ID
		}
		return file.Accounts[i].CreatedAt.Before(file.Accounts[j].CreatedAt)
	})

	content, err := yaml.Marshal(&file)
	if err != nil {
		return errs.Wrap(errs.ErrorTypePersistence, "failed to marshal account store", err)
	}

	tempFile := r.storePath + ".tmp"
	if err := os.WriteFile(tempFile, content, 0600); err != nil {
		return errs.Wrap(errs.ErrorTypePersistence, "failed to write account store", err)
	}

	if err := os.Rename(tempFile, r.storePath); err != nil {
		os.Remove(tempFile)
		return errs.Wrap(errs.ErrorTypePersistence, "failed to replace account store", err)
	}

	return nil
}
