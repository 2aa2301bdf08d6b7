package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// MemoryStore is an in-memory ObjectStore. It counts calls so tests can assert
// on cache behaviour.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]*Object
	calls   MemoryCalls
}

// MemoryCalls tracks method invocations.
type MemoryCalls struct {
	Put    int
	Get    int
	Exists int
	List   int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]*Object)}
}

func (m *MemoryStore) Put(_ context.Context, obj *Object) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Put++

	hash := obj.Hash
	if hash == "" {
		h := sha256.Sum256(obj.Data)
		hash = hex.EncodeToString(h[:])
	}
	if _, ok := m.objects[hash]; ok {
		return hash, nil
	}

	stored := &Object{
		Hash:     hash,
		Type:     obj.Type,
		Size:     int64(len(obj.Data)),
		Data:     append([]byte(nil), obj.Data...),
		Metadata: Metadata{CreatedAt: time.Now(), Custom: make(map[string]string)},
	}
	for k, v := range obj.Metadata.Custom {
		stored.Metadata.Custom[k] = v
	}
	m.objects[hash] = stored
	return hash, nil
}

func (m *MemoryStore) Get(_ context.Context, hash string) (*Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Get++

	obj, ok := m.objects[hash]
	if !ok {
		return nil, ErrNotFound{Hash: hash}
	}
	out := *obj
	out.Data = append([]byte(nil), obj.Data...)
	return &out, nil
}

func (m *MemoryStore) Exists(_ context.Context, hash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Exists++
	_, ok := m.objects[hash]
	return ok, nil
}

func (m *MemoryStore) List(_ context.Context, objectType ObjectType) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.List++

	var hashes []string
	for hash, obj := range m.objects {
		if objectType == "" || obj.Type == objectType {
			hashes = append(hashes, hash)
		}
	}
	return hashes, nil
}

func (m *MemoryStore) Stats(_ context.Context) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := Stats{ByType: make(map[ObjectType]int)}
	for _, obj := range m.objects {
		stats.Objects++
		stats.Bytes += obj.Size
		stats.ByType[obj.Type]++
	}
	return stats, nil
}

func (m *MemoryStore) Close() error { return nil }

// Calls returns a snapshot of the call counters.
func (m *MemoryStore) Calls() MemoryCalls {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}
