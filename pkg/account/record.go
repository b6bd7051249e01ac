package account

import "time"

// Status is the health state of a monitored account
type Status string

const (
	StatusUnknown    Status = "unknown"
	StatusActive     Status = "active"
	StatusSuspicious Status = "suspicious"
	StatusLimited    Status = "limited"
	StatusBanned     Status = "banned"
)

// ValidStatus reports whether s is a known account status
func ValidStatus(s Status) bool {
	switch s {
	case StatusUnknown, StatusActive, StatusSuspicious, StatusLimited, StatusBanned:
		return true
	}
	return false
}

// maxConsecutiveFailures removes an account from scored selection until an
// operator resets it.
const maxConsecutiveFailures = 3

// Record is one account in the registry. EncryptedSecret is a vault
// ciphertext and never holds plaintext.
type Record struct {
	ID                  string     `yaml:"id" json:"id"`
	LoginIdentifier     string     `yaml:"login_identifier" json:"login_identifier"`
	EncryptedSecret     string     `yaml:"encrypted_secret" json:"encrypted_secret"`
	ContactIdentifier   string     `yaml:"contact_identifier,omitempty" json:"contact_identifier,omitempty"`
	Status              Status     `yaml:"status" json:"status"`
	CreatedAt           time.Time  `yaml:"created_at" json:"created_at"`
	LastUsedAt          *time.Time `yaml:"last_used_at,omitempty" json:"last_used_at,omitempty"`
	TotalUses           int        `yaml:"total_uses" json:"total_uses"`
	ConsecutiveFailures int        `yaml:"consecutive_failures" json:"consecutive_failures"`
	LastError           string     `yaml:"last_error,omitempty" json:"last_error,omitempty"`
	Notes               string     `yaml:"notes,omitempty" json:"notes,omitempty"`
}

// Eligible reports whether the record can be considered by scored
// selection. Repeated failures remove an account from candidacy until
// an operator resets it.
func (r *Record) Eligible() bool {
	return r.Selectable() && r.ConsecutiveFailures < maxConsecutiveFailures
}

// Selectable reports whether the record can be considered by
// cooldown-respecting selection
func (r *Record) Selectable() bool {
	return r.Status != StatusBanned && r.Status != StatusLimited
}

// InCooldown reports whether the account was used within the cooldown window
func (r *Record) InCooldown(now time.Time, cooldown time.Duration) bool {
	if r.LastUsedAt == nil {
		return false
	}
	return now.Sub(*r.LastUsedAt) < cooldown
}

// RemainingCooldown returns how long until the cooldown expires, or zero
func (r *Record) RemainingCooldown(now time.Time, cooldown time.Duration) time.Duration {
	if r.LastUsedAt == nil {
		return 0
	}
	remaining := cooldown - now.Sub(*r.LastUsedAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Sanitize returns a copy safe for display: the ciphertext is masked so it
// never leaks into logs or terminal output.
func (r *Record) Sanitize() *Record {
	clone := *r
	clone.EncryptedSecret = maskString(r.EncryptedSecret)
	return &clone
}

// maskString masks all but the first 4 and last 4 characters of a string
func maskString(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}
