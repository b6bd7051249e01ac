package account

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "xhsmonitor/pkg/errors"
	"xhsmonitor/pkg/vault"
)

func newTestRegistry(t *testing.T) (*Registry, *vault.Vault) {
	t.Helper()
	dir := t.TempDir()

	v, err := vault.New(filepath.Join(dir, "vault.salt"))
	require.NoError(t, err)
	require.NoError(t, v.Initialize("test secret"))

	r, err := NewRegistry(filepath.Join(dir, "accounts.yaml"), filepath.Join(dir, "sessions"), v)
	require.NoError(t, err)
	return r, v
}

func TestAddAndGet(t *testing.T) {
	r, _ := newTestRegistry(t)

	added, err := r.Add("user_a", "secret-cookie", "138****0000", "primary")
	require.NoError(t, err)
	require.NotEmpty(t, added.ID)

	got, err := r.Get(added.ID)
	require.NoError(t, err)
	assert.Equal(t, "user_a", got.LoginIdentifier)
	assert.Equal(t, StatusUnknown, got.Status)
	assert.Equal(t, 0, got.TotalUses)
	assert.Nil(t, got.LastUsedAt)
	assert.NotEqual(t, "secret-cookie", got.EncryptedSecret)
}

func TestAddRequiresUnlockedVault(t *testing.T) {
	r, v := newTestRegistry(t)
	v.Lock()

	_, err := r.Add("user_a", "secret", "", "")
	require.Error(t, err)
	assert.True(t, errs.IsType(err, errs.ErrorTypeVaultLocked))
}

func TestDecryptSecret(t *testing.T) {
	r, v := newTestRegistry(t)

	added, err := r.Add("user_a", "secret-cookie", "", "")
	require.NoError(t, err)

	plaintext, err := r.DecryptSecret(added.ID)
	require.NoError(t, err)
	assert.Equal(t, "secret-cookie", plaintext)

	v.Lock()
	_, err = r.DecryptSecret(added.ID)
	require.Error(t, err)
	assert.True(t, errs.IsType(err, errs.ErrorTypeVaultLocked))
}

func TestRecordUse(t *testing.T) {
	r, _ := newTestRegistry(t)
	fixed := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return fixed }

	added, err := r.Add("user_a", "s", "", "")
	require.NoError(t, err)

	require.NoError(t, r.RecordUse(added.ID))
	require.NoError(t, r.RecordUse(added.ID))

	got, err := r.Get(added.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.TotalUses)
	require.NotNil(t, got.LastUsedAt)
	assert.True(t, got.LastUsedAt.Equal(fixed))
}

func TestRecordOutcome(t *testing.T) {
	r, _ := newTestRegistry(t)

	added, err := r.Add("user_a", "s", "", "")
	require.NoError(t, err)

	require.NoError(t, r.RecordOutcome(added.ID, false, "login rejected"))
	got, _ := r.Get(added.ID)
	assert.Equal(t, StatusSuspicious, got.Status)
	assert.Equal(t, 1, got.ConsecutiveFailures)
	assert.Equal(t, "login rejected", got.LastError)

	require.NoError(t, r.RecordOutcome(added.ID, false, "timeout"))
	got, _ = r.Get(added.ID)
	assert.Equal(t, 2, got.ConsecutiveFailures)

	require.NoError(t, r.RecordOutcome(added.ID, true, ""))
	got, _ = r.Get(added.ID)
	assert.Equal(t, StatusActive, got.Status)
	assert.Equal(t, 0, got.ConsecutiveFailures)
	assert.Empty(t, got.LastError)
}

func TestSetStatus(t *testing.T) {
	r, _ := newTestRegistry(t)

	added, err := r.Add("user_a", "s", "", "")
	require.NoError(t, err)

	require.NoError(t, r.SetStatus(added.ID, StatusBanned))
	got, _ := r.Get(added.ID)
	assert.Equal(t, StatusBanned, got.Status)

	// Resetting to active clears the failure streak
	require.NoError(t, r.RecordOutcome(added.ID, false, "x"))
	require.NoError(t, r.SetStatus(added.ID, StatusActive))
	got, _ = r.Get(added.ID)
	assert.Equal(t, StatusActive, got.Status)
	assert.Equal(t, 0, got.ConsecutiveFailures)

	assert.Error(t, r.SetStatus(added.ID, Status("frozen")))
}

func TestRemoveDeletesSessionState(t *testing.T) {
	r, _ := newTestRegistry(t)

	added, err := r.Add("user_a", "s", "", "")
	require.NoError(t, err)

	payload, _ := json.Marshal(map[string]string{"cookie": "abc"})
	require.NoError(t, r.Sessions().Save(added.ID, payload))
	assert.True(t, r.Sessions().Exists(added.ID))

	require.NoError(t, r.Remove(added.ID))
	assert.False(t, r.Sessions().Exists(added.ID))

	_, err = r.Get(added.ID)
	require.Error(t, err)
	assert.True(t, errs.IsType(err, errs.ErrorTypeNotFound))
}

func TestPersistenceRoundTrip(t *testing.T) {
	dir := t.TempDir()
	storePath := filepath.Join(dir, "accounts.yaml")

	v, err := vault.New(filepath.Join(dir, "vault.salt"))
	require.NoError(t, err)
	require.NoError(t, v.Initialize("secret"))

	r1, err := NewRegistry(storePath, filepath.Join(dir, "sessions"), v)
	require.NoError(t, err)

	added, err := r1.Add("user_a", "cookie", "", "note")
	require.NoError(t, err)
	require.NoError(t, r1.RecordUse(added.ID))

	// Reload from disk
	r2, err := NewRegistry(storePath, filepath.Join(dir, "sessions"), v)
	require.NoError(t, err)

	got, err := r2.Get(added.ID)
	require.NoError(t, err)
	assert.Equal(t, "user_a", got.LoginIdentifier)
	assert.Equal(t, 1, got.TotalUses)
	assert.Equal(t, "note", got.Notes)

	plaintext, err := r2.DecryptSecret(added.ID)
	require.NoError(t, err)
	assert.Equal(t, "cookie", plaintext)
}

func TestStoreFilePermissions(t *testing.T) {
	dir := t.TempDir()
	storePath := filepath.Join(dir, "accounts.yaml")

	v, err := vault.New(filepath.Join(dir, "vault.salt"))
	require.NoError(t, err)
	require.NoError(t, v.Initialize("secret"))

	r, err := NewRegistry(storePath, filepath.Join(dir, "sessions"), v)
	require.NoError(t, err)
	_, err = r.Add("user_a", "s", "", "")
	require.NoError(t, err)

	info, err := os.Stat(storePath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestListOrdering(t *testing.T) {
	r, _ := newTestRegistry(t)

	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		tick := base.Add(time.Duration(i) * time.Minute)
		r.now = func() time.Time { return tick }
		_, err := r.Add("user", "s", "", "")
		require.NoError(t, err)
	}

	list := r.List()
	require.Len(t, list, 3)
	assert.True(t, list[0].CreatedAt.Before(list[1].CreatedAt))
	assert.True(t, list[1].CreatedAt.Before(list[2].CreatedAt))
}

func TestStats(t *testing.T) {
	r, _ := newTestRegistry(t)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	a, _ := r.Add("a", "s", "", "")
	b, _ := r.Add("b", "s", "", "")
	c, _ := r.Add("c", "s", "", "")

	require.NoError(t, r.SetStatus(a.ID, StatusActive))
	require.NoError(t, r.SetStatus(b.ID, StatusBanned))
	require.NoError(t, r.RecordUse(c.ID)) // used just now, in cooldown

	stats := r.Stats(time.Hour)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.ByStatus[StatusActive])
	assert.Equal(t, 1, stats.ByStatus[StatusBanned])
	assert.Equal(t, 1, stats.ByStatus[StatusUnknown])
	assert.Equal(t, 1, stats.InCooldown)
	assert.Equal(t, 2, stats.Eligible)
}
