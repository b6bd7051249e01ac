package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/crypto/pbkdf2"

	errs "xhsmonitor/pkg/errors"
)

const (
	saltSize   = 32
	keySize    = 32
	iterations = 100000
)

// verifierPlaintext is the known value encrypted at initialization so a
// later unlock can prove the derived key is correct before any credential
// is touched.
const verifierPlaintext = "xhsmonitor-vault-v1"

// Vault derives an AES-256-GCM key from a master secret and encrypts
// individual credential fields. The key lives in memory only; the file on
// disk holds the salt and a verifier ciphertext, never key material.
type Vault struct {
	saltPath string
	mu       sync.RWMutex
	key      []byte
}

// saltFile is the on-disk representation of the vault parameters
type saltFile struct {
	Salt     string    `json:"salt"`
	Verifier string    `json:"verifier"`
	Version  int       `json:"version"`
	Modified time.Time `json:"modified"`
}

// New creates a vault backed by the given salt file path. The vault starts
// locked; call Initialize or Unlock before encrypting.
func New(saltPath string) (*Vault, error) {
	dir := filepath.Dir(saltPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create vault directory: %w", err)
		}
	}

	return &Vault{saltPath: saltPath}, nil
}

// Initialized reports whether a salt file already exists
func (v *Vault) Initialized() bool {
	_, err := os.Stat(v.saltPath)
	return err == nil
}

// Initialize generates a fresh salt, derives the key from the master secret
// and writes the salt file. Initializing over an existing salt file makes
// every previously stored ciphertext permanently undecryptable; callers must
// confirm that before calling.
func (v *Vault) Initialize(masterSecret string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if masterSecret == "" {
		return errs.New(errs.ErrorTypeDecryption, "master secret must not be empty")
	}

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}

	key := pbkdf2.Key([]byte(masterSecret), salt, iterations, keySize, sha256.New)

	verifier, err := encrypt([]byte(verifierPlaintext), key)
	if err != nil {
		return fmt.Errorf("failed to create verifier: %w", err)
	}

	file := saltFile{
		Salt:     base64.StdEncoding.EncodeToString(salt),
		Verifier: base64.StdEncoding.EncodeToString(verifier),
		Version:  1,
		Modified: time.Now(),
	}

	if err := v.writeSaltFile(&file); err != nil {
		return err
	}

	v.key = key
	return nil
}

// Unlock derives the key from the master secret and the persisted salt, then
// proves it by decrypting the stored verifier. A wrong secret returns a
// decryption error and leaves the vault locked.
func (v *Vault) Unlock(masterSecret string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	file, err := v.readSaltFile()
	if err != nil {
		return err
	}

	salt, err := base64.StdEncoding.DecodeString(file.Salt)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeDecryption, "corrupt salt file", err)
	}
	verifier, err := base64.StdEncoding.DecodeString(file.Verifier)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeDecryption, "corrupt salt file", err)
	}

	key := pbkdf2.Key([]byte(masterSecret), salt, iterations, keySize, sha256.New)

	plaintext, err := decrypt(verifier, key)
	if err != nil || string(plaintext) != verifierPlaintext {
		return errs.New(errs.ErrorTypeDecryption, "master secret does not match vault")
	}

	v.key = key
	return nil
}

// Lock discards the in-memory key
func (v *Vault) Lock() {
	v.mu.Lock()
	defer v.mu.Unlock()

	for i := range v.key {
		v.key[i] = 0
	}
	v.key = nil
}

// Unlocked reports whether the vault currently holds a key
func (v *Vault) Unlocked() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.key != nil
}

// Encrypt encrypts a credential field and returns it base64-encoded
func (v *Vault) Encrypt(plaintext string) (string, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.key == nil {
		return "", errs.New(errs.ErrorTypeVaultLocked, "vault is locked")
	}

	ciphertext, err := encrypt([]byte(plaintext), v.key)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt: %w", err)
	}

	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt decrypts a base64-encoded ciphertext produced by Encrypt
func (v *Vault) Decrypt(encoded string) (string, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.key == nil {
		return "", errs.New(errs.ErrorTypeVaultLocked, "vault is locked")
	}

	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", errs.Wrap(errs.ErrorTypeDecryption, "invalid ciphertext encoding", err)
	}

	plaintext, err := decrypt(ciphertext, v.key)
	if err != nil {
		return "", errs.Wrap(errs.ErrorTypeDecryption, "failed to decrypt", err)
	}

	return string(plaintext), nil
}

// readSaltFile loads the persisted vault parameters
func (v *Vault) readSaltFile() (*saltFile, error) {
	content, err := os.ReadFile(v.saltPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.New(errs.ErrorTypeVaultLocked, "vault is not initialized")
		}
		return nil, fmt.Errorf("failed to read salt file: %w", err)
	}

	var file saltFile
	if err := json.Unmarshal(content, &file); err != nil {
		return nil, errs.Wrap(errs.ErrorTypeDecryption, "corrupt salt file", err)
	}

	return &file, nil
}

// writeSaltFile persists the vault parameters atomically with owner-only permissions
func (v *Vault) writeSaltFile(file *saltFile) error {
	content, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal salt file: %w", err)
	}

	tempFile := v.saltPath + ".tmp"
	if err := os.WriteFile(tempFile, content, 0600); err != nil {
		return fmt.Errorf("failed to write salt file: %w", err)
	}

	return os.Rename(tempFile, v.saltPath)
}

// encrypt encrypts data using AES-GCM
func encrypt(plaintext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// decrypt decrypts data using AES-GCM
func decrypt(ciphertext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, fmt.Errorf("ciphertext too short")
	}

	nonce, ciphertext := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, nil)
}
