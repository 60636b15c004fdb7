// ABOUTME: Two-tier credential store, the single source of truth for the access token
// ABOUTME: Writes go to exactly one tier; reads prefer the durable tier

package credstore

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Rin111124/Fastfood-WEB-frontend-sub001/models"
)

// Store owns the durable and session-scoped tiers. Only the session manager writes to it.
type Store struct {
	mu        sync.Mutex
	durable   Tier
	ephemeral Tier
}

// New creates a store over the given tiers
func New(durable, ephemeral Tier) *Store {
	return &Store{durable: durable, ephemeral: ephemeral}
}

// Open builds the CLI store: durable file in configDir, session-scoped file in runtimeDir
// when the OS provides one, otherwise an in-memory tier.
func Open(configDir, runtimeDir string, key []byte) (*Store, error) {
	durable, err := NewFileTier(configDir, "credentials.json", key)
	if err != nil {
		return nil, err
	}

	var ephemeral Tier
	if runtimeDir != "" {
		ephemeral, err = NewFileTier(runtimeDir, "session.json", key)
		if err != nil {
			return nil, err
		}
	} else {
		ephemeral = NewMemoryTier()
	}
	return New(durable, ephemeral), nil
}

func (s *Store) tiers(p models.Persistence) (target, other Tier) {
	if p == models.PersistenceDurable {
		return s.durable, s.ephemeral
	}
	return s.ephemeral, s.durable
}

// Save writes sess to the tier chosen by persistence and removes it from the other
func (s *Store) Save(sess *models.Session, persistence models.Persistence) error {
	if sess == nil || sess.Token == "" {
		return fmt.Errorf("cannot save a session without a token")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *sess
	stored.Persistence = persistence
	target, other := s.tiers(persistence)

	if err := other.Delete(); err != nil {
		return err
	}
	if err := target.Store(&stored); err != nil {
		return err
	}
	slog.Debug("Credentials saved", "persistence", persistence, "user", stored.User.Username)
	return nil
}

// Read returns the stored session, checking the durable tier first
func (s *Store) Read() (*models.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range []Tier{s.durable, s.ephemeral} {
		sess, err := t.Load()
		if err != nil {
			slog.Warn("Credential tier unreadable", "error", err)
			continue
		}
		if sess != nil {
			return sess, true
		}
	}
	return nil, false
}

// Clear removes the credential from both tiers. Clearing an empty store is a no-op.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return errors.Join(s.durable.Delete(), s.ephemeral.Delete())
}

// Token returns the current access token, or "" when no unexpired session is stored
func (s *Store) Token() string {
	sess, ok := s.Read()
	if !ok || sess.Expired(time.Now()) {
		return ""
	}
	return sess.Token
}

// Close releases tier resources
func (s *Store) Close() {
	for _, t := range []Tier{s.durable, s.ephemeral} {
		if c, ok := t.(interface{ Close() }); ok {
			c.Close()
		}
	}
}
