// ABOUTME: Remembers the identifiers recently used to sign in on this machine
// ABOUTME: Stored as JSON next to the durable credential file; feeds login form suggestions

package recentlogins

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

// MaxRecent is the maximum number of identifiers kept
const MaxRecent = 5

// Recent manages the list of recently used identifiers
type Recent struct {
	configDir   string
	identifiers []string
}

type recentData struct {
	Identifiers []string `json:"identifiers"`
}

// New creates a Recent manager backed by configDir. An empty configDir keeps the list in memory.
func New(configDir string) *Recent {
	return &Recent{configDir: configDir}
}

func (r *Recent) configFile() string {
	return filepath.Join(r.configDir, "recent-logins.json")
}

// Load reads the list from disk. A missing or corrupt file reads as empty.
func (r *Recent) Load() ([]string, error) {
	r.identifiers = []string{}
	if r.configDir == "" {
		return r.identifiers, nil
	}

	data, err := os.ReadFile(r.configFile())
	if os.IsNotExist(err) {
		return r.identifiers, nil
	}
	if err != nil {
		return nil, err
	}

	var recent recentData
	if err := json.Unmarshal(data, &recent); err != nil {
		return r.identifiers, nil
	}
	for _, id := range recent.Identifiers {
		if id = strings.TrimSpace(id); id != "" {
			r.identifiers = append(r.identifiers, id)
		}
	}
	return r.identifiers, nil
}

// Save writes identifiers, trimmed to MaxRecent
func (r *Recent) Save(identifiers []string) error {
	if len(identifiers) > MaxRecent {
		identifiers = identifiers[:MaxRecent]
	}
	r.identifiers = identifiers
	if r.configDir == "" {
		return nil
	}

	if err := os.MkdirAll(r.configDir, 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(recentData{Identifiers: identifiers}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(r.configFile(), data, 0600)
}

// Add moves identifier to the front of the list. Matching ignores case.
func (r *Recent) Add(identifier string) error {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil
	}
	if r.identifiers == nil {
		if _, err := r.Load(); err != nil {
			r.identifiers = []string{}
		}
	}

	next := make([]string, 0, len(r.identifiers)+1)
	next = append(next, identifier)
	for _, id := range r.identifiers {
		if !strings.EqualFold(id, identifier) {
			next = append(next, id)
		}
	}
	return r.Save(next)
}

// List returns the current list, loading it on first use
func (r *Recent) List() []string {
	if r.identifiers == nil {
		if _, err := r.Load(); err != nil {
			return nil
		}
	}
	return r.identifiers
}
