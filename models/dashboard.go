// ABOUTME: Dashboard snapshot models held by the reconciler
// ABOUTME: Snapshots are replaced wholesale; readers never see a partial merge

package models

import (
	"encoding/json"
	"maps"
	"time"
)

// Record is one row of a dashboard collection (an order, a kitchen task, an inventory item)
type Record struct {
	ID     string         `json:"id"`
	Status string         `json:"status,omitempty"`
	Fields map[string]any `json:"fields,omitempty"`
}

// UnmarshalJSON accepts flat server rows: id and status are lifted out, the rest kept in Fields
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	id, _ := StringField(raw, "id")
	status, _ := StringField(raw, "status")
	delete(raw, "id")
	delete(raw, "status")
	if nested, ok := raw["fields"].(map[string]any); ok && len(raw) == 1 {
		raw = nested
	}
	r.ID = id
	r.Status = status
	r.Fields = raw
	return nil
}

// Dashboard is the payload of a full dashboard fetch
type Dashboard struct {
	Metrics     map[string]float64  `json:"metrics"`
	Collections map[string][]Record `json:"collections"`
}

// Snapshot is the cached state of one role's dashboard
type Snapshot struct {
	Role        Role
	Metrics     map[string]float64
	Collections map[string][]Record
	Stale       map[string]bool // keyed by EntityKey
	Status      string          // transient status message, empty when healthy
	Version     uint64
	RefreshedAt time.Time
}

// EntityKey identifies one record across collections
func EntityKey(collection, id string) string {
	return collection + "/" + id
}

// NewSnapshot returns an empty snapshot for role
func NewSnapshot(role Role) Snapshot {
	return Snapshot{
		Role:        role,
		Metrics:     map[string]float64{},
		Collections: map[string][]Record{},
		Stale:       map[string]bool{},
	}
}

// Clone deep-copies the maps and slices so the copy can be mutated independently.
// Record.Fields maps are shared; records are replaced, never edited in place.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.Metrics = maps.Clone(s.Metrics)
	if out.Metrics == nil {
		out.Metrics = map[string]float64{}
	}
	out.Stale = maps.Clone(s.Stale)
	if out.Stale == nil {
		out.Stale = map[string]bool{}
	}
	out.Collections = make(map[string][]Record, len(s.Collections))
	for name, rows := range s.Collections {
		out.Collections[name] = append([]Record(nil), rows...)
	}
	return out
}

// Find returns the record with id in collection
func (s Snapshot) Find(collection, id string) (Record, bool) {
	for _, r := range s.Collections[collection] {
		if r.ID == id {
			return r, true
		}
	}
	return Record{}, false
}

// IsStale reports whether the entity is awaiting a refresh
func (s Snapshot) IsStale(collection, id string) bool {
	return s.Stale[EntityKey(collection, id)]
}
