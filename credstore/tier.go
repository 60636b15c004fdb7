// ABOUTME: Storage tiers holding a single serialized session
// ABOUTME: FileTier persists to disk (optionally sealed); MemoryTier lives for the process

package credstore

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Rin111124/Fastfood-WEB-frontend-sub001/cache"
	"github.com/Rin111124/Fastfood-WEB-frontend-sub001/models"
	"golang.org/x/crypto/chacha20poly1305"
)

// Tier holds at most one session. Load returns (nil, nil) when empty.
type Tier interface {
	Load() (*models.Session, error)
	Store(s *models.Session) error
	Delete() error
}

// FileTier stores the session as JSON in a single 0600 file
type FileTier struct {
	path string
	key  []byte
}

// NewFileTier creates a tier at dir/name. A 32-byte key seals the file with XChaCha20-Poly1305.
func NewFileTier(dir, name string, key []byte) (*FileTier, error) {
	if dir == "" {
		return nil, fmt.Errorf("credential directory is not set")
	}
	if key != nil && len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("credential key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	return &FileTier{path: filepath.Join(dir, name), key: key}, nil
}

// Path returns the backing file path
func (t *FileTier) Path() string {
	return t.path
}

// Load reads the session file. Missing, corrupt or unsealable files read as empty.
func (t *FileTier) Load() (*models.Session, error) {
	data, err := os.ReadFile(t.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}

	if t.key != nil {
		data, err = open(t.key, data)
		if err != nil {
			slog.Warn("Ignoring unreadable credential file", "path", t.path, "error", err)
			return nil, nil
		}
	}

	var s models.Session
	if err := json.Unmarshal(data, &s); err != nil || s.Token == "" {
		// Invalid JSON, treat as logged out
		slog.Warn("Ignoring corrupt credential file", "path", t.path)
		return nil, nil
	}
	return &s, nil
}

// Store writes the session atomically through a temp file and rename
func (t *FileTier) Store(s *models.Session) error {
	if err := os.MkdirAll(filepath.Dir(t.path), 0700); err != nil {
		return fmt.Errorf("failed to create credential directory: %w", err)
	}

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}
	if t.key != nil {
		if data, err = seal(t.key, data); err != nil {
			return fmt.Errorf("failed to seal credentials: %w", err)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(t.path), ".credentials-*")
	if err != nil {
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	if err := os.Rename(tmp.Name(), t.path); err != nil {
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	return nil
}

// Delete removes the file; a missing file is not an error
func (t *FileTier) Delete() error {
	if err := os.Remove(t.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove credentials: %w", err)
	}
	return nil
}

// seal prefixes the ciphertext with its random nonce
func seal(key, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

func open(key, blob []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	if len(blob) < aead.NonceSize() {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce, ct := blob[:aead.NonceSize()], blob[aead.NonceSize():]
	return aead.Open(nil, nonce, ct, nil)
}

const memoryKey = "session"

// MemoryTier keeps the session for the life of the process, expiring with the token
type MemoryTier struct {
	cache *cache.Cache[models.Session]
}

// NewMemoryTier creates an empty in-process tier
func NewMemoryTier() *MemoryTier {
	return &MemoryTier{cache: cache.New[models.Session](0)}
}

func (t *MemoryTier) Load() (*models.Session, error) {
	s, ok := t.cache.Get(memoryKey)
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (t *MemoryTier) Store(s *models.Session) error {
	var ttl time.Duration
	if !s.ExpiresAt.IsZero() {
		ttl = time.Until(s.ExpiresAt)
		if ttl <= 0 {
			return fmt.Errorf("session already expired")
		}
	}
	t.cache.SetWithTTL(memoryKey, *s, ttl)
	return nil
}

func (t *MemoryTier) Delete() error {
	t.cache.Clear(memoryKey)
	return nil
}

// Close stops the backing cache's cleanup goroutine
func (t *MemoryTier) Close() {
	t.cache.Close()
}
