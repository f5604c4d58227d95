package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store used by unit tests and local development.
// Safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	docs    map[string]map[string][]byte
	appends map[string][]Raw
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:    make(map[string]map[string][]byte),
		appends: make(map[string][]Raw),
	}
}

func (m *MemoryStore) Get(_ context.Context, collection, id string, out any) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	col, ok := m.docs[collection]
	if !ok {
		return ErrNotFound
	}
	data, ok := col[id]
	if !ok {
		return ErrNotFound
	}
	return json.Unmarshal(data, out)
}

func (m *MemoryStore) Save(_ context.Context, collection, id string, doc any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	col, ok := m.docs[collection]
	if !ok {
		col = make(map[string][]byte)
		m.docs[collection] = col
	}
	col[id] = data
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if col, ok := m.docs[collection]; ok {
		delete(col, id)
	}
	return nil
}

func (m *MemoryStore) List(_ context.Context, collection string) ([]Raw, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	col := m.docs[collection]
	out := make([]Raw, 0, len(col))
	for id, data := range col {
		out = append(out, Raw{ID: id, Data: append([]byte(nil), data...)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) Update(_ context.Context, collection, id string, mutate MutateFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	col, ok := m.docs[collection]
	if !ok {
		col = make(map[string][]byte)
		m.docs[collection] = col
	}
	current, exists := col[id]
	var in []byte
	if exists {
		in = append([]byte(nil), current...)
	}
	next, err := mutate(in)
	if err != nil {
		if errors.Is(err, ErrAborted) {
			return nil
		}
		return err
	}
	col[id] = next
	return nil
}

func (m *MemoryStore) Append(_ context.Context, collection string, doc any) (string, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encode append to %s: %w", collection, err)
	}
	id := uuid.NewString()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appends[collection] = append(m.appends[collection], Raw{ID: id, Data: data})
	return id, nil
}

func (m *MemoryStore) AppendedEntries(_ context.Context, collection string, limit int) ([]Raw, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := m.appends[collection]
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	out := make([]Raw, len(entries))
	copy(out, entries)
	return out, nil
}
