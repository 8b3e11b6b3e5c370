package document

import (
	"encoding/json"
	"sort"
	"sync"
)

// Store is a last-writer-wins map from element id to element record.
//
// Every record carries the generation it was written in. Clearing the store
// advances the generation, and records from older generations are never
// accepted again, so a replica that missed a clear cannot bring the removed
// elements back.
type Store struct {
	mu         sync.RWMutex
	generation uint64
	writer     string
	elements   map[string]Element
}

func NewStore() *Store {
	return &Store{
		elements: make(map[string]Element),
	}
}

// SetWriter sets the id stamped on records written locally from now on.
// Concurrent writes of the same version are ordered by it.
func (s *Store) SetWriter(writer string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writer = writer
}

func (s *Store) Writer() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writer
}

func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// ApplyLocal stores a new version of id written by this replica.
func (s *Store) ApplyLocal(id, kind string, payload json.RawMessage) Element {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocal(Element{ID: id, Kind: kind, Payload: payload})
}

// Remove writes a tombstone for id. It reports false when there is no live
// record to remove.
func (s *Store) Remove(id string) (Element, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.elements[id]
	if !ok || current.Deleted {
		return Element{}, false
	}
	return s.writeLocal(Element{ID: id, Kind: current.Kind, Deleted: true}), true
}

func (s *Store) writeLocal(e Element) Element {
	e.Generation = s.generation
	e.Writer = s.writer
	e.Version = 1
	if current, ok := s.elements[e.ID]; ok {
		e.Version = current.Version + 1
	}
	stored := e.Clone()
	s.elements[e.ID] = stored
	return stored.Clone()
}

// ApplyRemote merges a record received from another replica. It is accepted
// only when strictly newer than the stored one. Stale and duplicate records
// are discarded.
func (s *Store) ApplyRemote(e Element) bool {
	if e.ID == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.Generation < s.generation {
		return false
	}
	if e.Generation > s.generation {
		s.advance(e.Generation)
	}
	if current, ok := s.elements[e.ID]; ok && !e.IsNewerThan(current) {
		return false
	}
	s.elements[e.ID] = e.Clone()
	return true
}

// Clear drops every record and returns the new generation.
func (s *Store) Clear() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advance(s.generation + 1)
	return s.generation
}

// ApplyClear merges a clear performed by another replica.
func (s *Store) ApplyClear(generation uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if generation <= s.generation {
		return false
	}
	s.advance(generation)
	return true
}

func (s *Store) advance(generation uint64) {
	s.generation = generation
	s.elements = make(map[string]Element)
}

// StoredVersion returns the ordering key of id. An absent id reports the
// current generation with version zero, so the key never moves backwards.
func (s *Store) StoredVersion(id string) (Key, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.elements[id]; ok {
		return e.Key(), true
	}
	return Key{Generation: s.generation}, false
}

func (s *Store) Get(id string) (Element, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.elements[id]
	if !ok {
		return Element{}, false
	}
	return e.Clone(), true
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.elements)
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Generation: s.generation,
		Elements:   s.sorted(false),
	}
}

// Live returns the records that are not tombstones.
func (s *Store) Live() []Element {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sorted(true)
}

func (s *Store) sorted(liveOnly bool) []Element {
	elements := make([]Element, 0, len(s.elements))
	for _, e := range s.elements {
		if liveOnly && e.Deleted {
			continue
		}
		elements = append(elements, e.Clone())
	}
	sort.Slice(elements, func(i, j int) bool {
		return elements[i].ID < elements[j].ID
	})
	return elements
}

// Merge applies a full snapshot and returns how many records were accepted.
func (s *Store) Merge(snapshot Snapshot) int {
	s.ApplyClear(snapshot.Generation)
	accepted := 0
	for _, e := range snapshot.Elements {
		if s.ApplyRemote(e) {
			accepted++
		}
	}
	return accepted
}
