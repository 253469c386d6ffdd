// Package selection is the ledger of classification decisions, independent
// of the partition tree. The store is a value type: every mutation returns
// a new snapshot, so a reader holding an old snapshot never observes a
// half-applied update.
package selection

import (
	"strconv"

	"featlab/internal/domain"
)

// Store maps entity keys (feature ids, or canonical pair keys) to entries.
// The zero value is not usable; call NewStore.
type Store struct {
	entries map[string]domain.Entry
}

func NewStore() *Store {
	return &Store{entries: make(map[string]domain.Entry)}
}

// FeatureKey addresses a single feature's entry.
func FeatureKey(id int) string { return strconv.Itoa(id) }

func (s *Store) clone() *Store {
	out := &Store{entries: make(map[string]domain.Entry, len(s.entries))}
	for k, v := range s.entries {
		out.entries[k] = v
	}
	return out
}

// Get returns the entry for a key; absent keys read as Unset.
func (s *Store) Get(key string) domain.Entry {
	return s.entries[key]
}

func (s *Store) Len() int { return len(s.entries) }

// SetManual records a user decision. Manual always overwrites, whatever the
// prior source was. Setting Unset removes the entry.
func (s *Store) SetManual(key string, state domain.State, category string) *Store {
	out := s.clone()
	if state == domain.Unset {
		delete(out.entries, key)
		return out
	}
	out.entries[key] = domain.Entry{State: state, Category: category, Source: domain.SourceManual}
	return out
}

// ApplyAutomatic records a classifier decision, but only over Unset or
// previously automatic entries. Manual entries are never clobbered by
// re-running a classifier.
func (s *Store) ApplyAutomatic(key string, state domain.State, category string) *Store {
	existing := s.entries[key]
	if existing.State != domain.Unset && existing.Source == domain.SourceManual {
		return s
	}
	out := s.clone()
	if state == domain.Unset {
		delete(out.entries, key)
		return out
	}
	out.entries[key] = domain.Entry{State: state, Category: category, Source: domain.SourceAuto}
	return out
}

// ApplyAutomaticBatch applies many classifier decisions with one copy.
// Manual protection per key matches ApplyAutomatic.
func (s *Store) ApplyAutomaticBatch(decisions map[string]domain.Entry) *Store {
	out := s.clone()
	for key, d := range decisions {
		existing := out.entries[key]
		if existing.State != domain.Unset && existing.Source == domain.SourceManual {
			continue
		}
		if d.State == domain.Unset {
			delete(out.entries, key)
			continue
		}
		out.entries[key] = domain.Entry{State: d.State, Category: d.Category, Source: domain.SourceAuto}
	}
	return out
}

// SetManualBatch applies a bulk accept/reject over a candidate key list.
func (s *Store) SetManualBatch(keys []string, state domain.State, category string) *Store {
	out := s.clone()
	for _, key := range keys {
		if state == domain.Unset {
			delete(out.entries, key)
			continue
		}
		out.entries[key] = domain.Entry{State: state, Category: category, Source: domain.SourceManual}
	}
	return out
}

// Clear drops every entry; used when the user resets a stage.
func (s *Store) Clear() *Store {
	return NewStore()
}

// Snapshot copies the entry map out, for freezing into a stage commit.
func (s *Store) Snapshot() map[string]domain.Entry {
	out := make(map[string]domain.Entry, len(s.entries))
	for k, v := range s.entries {
		out[k] = v
	}
	return out
}

// Keys returns every key with a given state and source filter applied.
// SourceNone matches any source.
func (s *Store) Keys(state domain.State, source domain.Source) []string {
	var out []string
	for k, e := range s.entries {
		if e.State != state {
			continue
		}
		if source != domain.SourceNone && e.Source != source {
			continue
		}
		out = append(out, k)
	}
	return out
}
