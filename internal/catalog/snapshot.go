package catalog

import (
	"sync"

	"github.com/doctrove/enrich-cli/pkg/paperless"
)

// Kind separates the two catalog namespaces.
type Kind string

const (
	KindTag           Kind = "tag"
	KindCorrespondent Kind = "correspondent"
)

// Entry is one catalog entity in normalized form.
type Entry struct {
	ID         int
	Name       string
	Normalized string
	Usage      int
}

// Snapshot is an in-memory view of the server's tags and correspondents,
// shared by all workers of a run. When the server holds entities whose
// names collide after normalization, the one with the higher document
// count wins, then the lexicographically smaller name.
type Snapshot struct {
	mu   sync.RWMutex
	sets map[Kind]map[string]Entry
}

// NewSnapshot creates an empty snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{sets: map[Kind]map[string]Entry{
		KindTag:           {},
		KindCorrespondent: {},
	}}
}

// LoadTags replaces the tag namespace from a server listing.
func (s *Snapshot) LoadTags(tags []paperless.Tag) {
	set := make(map[string]Entry, len(tags))
	for _, t := range tags {
		norm := NormalizeTag(t.Name)
		if norm == "" {
			continue
		}
		insertPreferring(set, Entry{ID: t.ID, Name: t.Name, Normalized: norm, Usage: t.DocumentCount})
	}
	s.mu.Lock()
	s.sets[KindTag] = set
	s.mu.Unlock()
}

// LoadCorrespondents replaces the correspondent namespace from a server
// listing.
func (s *Snapshot) LoadCorrespondents(corrs []paperless.Correspondent) {
	set := make(map[string]Entry, len(corrs))
	for _, c := range corrs {
		norm := NormalizeName(c.Name)
		if norm == "" {
			continue
		}
		insertPreferring(set, Entry{ID: c.ID, Name: c.Name, Normalized: norm, Usage: c.DocumentCount})
	}
	s.mu.Lock()
	s.sets[KindCorrespondent] = set
	s.mu.Unlock()
}

func insertPreferring(set map[string]Entry, e Entry) {
	old, ok := set[e.Normalized]
	if !ok || e.Usage > old.Usage || (e.Usage == old.Usage && e.Name < old.Name) {
		set[e.Normalized] = e
	}
}

// Lookup finds an entry by its normalized name.
func (s *Snapshot) Lookup(kind Kind, normalized string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sets[kind][normalized]
	return e, ok
}

// Entries returns a copy of every entry in a namespace.
func (s *Snapshot) Entries(kind Kind) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, 0, len(s.sets[kind]))
	for _, e := range s.sets[kind] {
		out = append(out, e)
	}
	return out
}

// Insert adds a newly created entity. If another goroutine already
// inserted the same normalized name, the existing entry is returned so
// every caller converges on one ID.
func (s *Snapshot) Insert(kind Kind, e Entry) Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.sets[kind][e.Normalized]; ok {
		return old
	}
	s.sets[kind][e.Normalized] = e
	return e
}

// Len reports the number of entries in a namespace.
func (s *Snapshot) Len(kind Kind) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sets[kind])
}
