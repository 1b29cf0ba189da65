package store

import (
	"context"
	"sync"

	"github.com/weavesync/weavesync/models"
)

// memoryRecordStore is an in-memory RecordStore used for ephemeral
// collections (tabs, clients) and for tests. Records are kept in insertion
// order per collection; duplicate guids are representable, as in any real
// backing store, so Get can exercise the integrity error path.
type memoryRecordStore struct {
	mu     sync.RWMutex
	nextID int64
	items  map[string][]models.Record
}

// NewMemoryRecordStore constructs an empty in-memory record store.
func NewMemoryRecordStore() RecordStore {
	return &memoryRecordStore{
		nextID: 1,
		items:  make(map[string][]models.Record),
	}
}

func (m *memoryRecordStore) Get(ctx context.Context, collection, guid string) (models.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var found []models.Record
	for _, rec := range m.items[collection] {
		if rec.GUID == guid {
			found = append(found, rec)
		}
	}
	switch len(found) {
	case 0:
		return models.Record{}, ErrRecordNotFound
	case 1:
		return found[0], nil
	default:
		return models.Record{}, ErrDuplicateGUID
	}
}

func (m *memoryRecordStore) Insert(ctx context.Context, rec models.Record) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec.LocalID = m.nextID
	m.nextID++
	m.items[rec.Collection] = append(m.items[rec.Collection], rec)
	return rec.LocalID, nil
}

func (m *memoryRecordStore) Update(ctx context.Context, rec models.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	records := m.items[rec.Collection]
	for i := range records {
		if records[i].LocalID == rec.LocalID {
			records[i] = rec
			return nil
		}
	}
	return ErrRecordNotFound
}

func (m *memoryRecordStore) Delete(ctx context.Context, collection, guid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	records := m.items[collection]
	kept := records[:0]
	removed := false
	for _, rec := range records {
		if rec.GUID == guid {
			removed = true
			continue
		}
		kept = append(kept, rec)
	}
	m.items[collection] = kept
	if !removed {
		return ErrRecordNotFound
	}
	return nil
}

func (m *memoryRecordStore) All(ctx context.Context, collection string) ([]models.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Record, len(m.items[collection]))
	copy(out, m.items[collection])
	return out, nil
}

func (m *memoryRecordStore) Since(ctx context.Context, collection string, since int64) ([]models.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.Record
	for _, rec := range m.items[collection] {
		if rec.LastModified >= since {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *memoryRecordStore) GUIDsSince(ctx context.Context, collection string, since int64) ([]string, error) {
	records, err := m.Since(ctx, collection, since)
	if err != nil {
		return nil, err
	}
	guids := make([]string, 0, len(records))
	for _, rec := range records {
		guids = append(guids, rec.GUID)
	}
	return guids, nil
}

func (m *memoryRecordStore) ByGUIDs(ctx context.Context, collection string, guids []string) ([]models.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	wanted := make(map[string]int, len(guids))
	for _, g := range guids {
		wanted[g] = 0
	}

	var out []models.Record
	for _, rec := range m.items[collection] {
		if n, ok := wanted[rec.GUID]; ok {
			if n > 0 {
				return nil, ErrDuplicateGUID
			}
			wanted[rec.GUID] = n + 1
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *memoryRecordStore) Wipe(ctx context.Context, collection string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, collection)
	return nil
}
