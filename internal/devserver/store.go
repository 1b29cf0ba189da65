// SPDX-License-Identifier: Apache-2.0

package devserver

import (
	"sort"
	"sync"
	"time"

	"github.com/weavesync/weavesync/models"
)

type storedRecord struct {
	env      models.Envelope
	modified int64 // ms
}

// Store is the in-memory record store behind the dev server. All operations
// are safe for concurrent use.
type Store struct {
	mu          sync.RWMutex
	collections map[string]map[string]storedRecord
	lastTick    int64

	// now is swappable in tests.
	now func() time.Time
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		collections: make(map[string]map[string]storedRecord),
		now:         time.Now,
	}
}

// tick returns a millisecond timestamp strictly greater than any timestamp
// handed out before, so back-to-back writes stay distinguishable. Timestamps
// are truncated to centiseconds, the precision of the wire format, so a
// value that travels through a header round-trips exactly.
func (s *Store) tick() int64 {
	ts := s.now().UnixMilli()
	ts -= ts % 10
	if ts <= s.lastTick {
		ts = s.lastTick + 10
	}
	s.lastTick = ts
	return ts
}

// Now returns the current server clock in milliseconds without advancing it.
func (s *Store) Now() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tick()
}

// Info returns the last-modified timestamp (ms) of every non-empty
// collection.
func (s *Store) Info() map[string]int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info := make(map[string]int64, len(s.collections))
	for name, records := range s.collections {
		var last int64
		for _, rec := range records {
			if rec.modified > last {
				last = rec.modified
			}
		}
		if last > 0 {
			info[name] = last
		}
	}
	return info
}

// Get returns a record with its Modified field populated.
func (s *Store) Get(collection, guid string) (models.Envelope, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.collections[collection][guid]
	if !ok {
		return models.Envelope{}, false
	}
	return rec.envelope(), true
}

// List returns every record in the collection with a modification timestamp
// strictly greater than newer (ms), oldest first.
func (s *Store) List(collection string, newer int64) []models.Envelope {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := s.collections[collection]
	out := make([]models.Envelope, 0, len(records))
	for _, rec := range records {
		if rec.modified > newer {
			out = append(out, rec.envelope())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Modified < out[j].Modified })
	return out
}

// Modified returns the record's modification timestamp (ms), or zero when it
// does not exist.
func (s *Store) Modified(collection, guid string) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collections[collection][guid].modified
}

// Put stores a record and returns its new modification timestamp (ms).
func (s *Store) Put(collection string, env models.Envelope) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.put(collection, env, s.tick())
}

// PutMany stores a batch under one shared timestamp and returns it.
func (s *Store) PutMany(collection string, envs []models.Envelope) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := s.tick()
	for _, env := range envs {
		s.put(collection, env, ts)
	}
	return ts
}

func (s *Store) put(collection string, env models.Envelope, ts int64) int64 {
	records, ok := s.collections[collection]
	if !ok {
		records = make(map[string]storedRecord)
		s.collections[collection] = records
	}

	env.Collection = collection
	records[env.GUID] = storedRecord{env: env, modified: ts}
	return ts
}

// Delete removes one record. Returns false when it did not exist.
func (s *Store) Delete(collection, guid string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, ok := s.collections[collection]
	if !ok {
		return false
	}
	if _, ok = records[guid]; !ok {
		return false
	}
	delete(records, guid)
	return true
}

// DeleteCollection removes a whole collection. Returns false when it did not
// exist.
func (s *Store) DeleteCollection(collection string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[collection]; !ok {
		return false
	}
	delete(s.collections, collection)
	return true
}

// Wipe removes everything.
func (s *Store) Wipe() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections = make(map[string]map[string]storedRecord)
}

func (r storedRecord) envelope() models.Envelope {
	env := r.env
	env.Modified = float64(r.modified) / 1000
	return env
}
