package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore — in-memory BackingStore, grounded on the teacher's
// MemoryPositionRepo (internal/storage/memory_position_repo.go): used as a
// fallback for tests and local development without a real database.
// Данные теряются при завершении процесса.
type MemoryStore struct {
	mu      sync.RWMutex
	regions map[uuid.UUID]RegionRecord
	objects map[uuid.UUID]map[uuid.UUID]ObjectRecord // regionID -> objectID -> record
}

// NewMemoryStore создаёт пустое in-memory хранилище.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		regions: make(map[uuid.UUID]RegionRecord),
		objects: make(map[uuid.UUID]map[uuid.UUID]ObjectRecord),
	}
}

func (m *MemoryStore) ListRegions(_ context.Context) ([]RegionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]RegionRecord, 0, len(m.regions))
	for _, rec := range m.regions {
		result = append(result, rec)
	}
	return result, nil
}

func (m *MemoryStore) UpsertRegion(_ context.Context, rec RegionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.regions[rec.RegionID] = rec
	if _, ok := m.objects[rec.RegionID]; !ok {
		m.objects[rec.RegionID] = make(map[uuid.UUID]ObjectRecord)
	}
	return nil
}

func (m *MemoryStore) DeleteRegion(_ context.Context, regionID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.regions, regionID)
	delete(m.objects, regionID)
	return nil
}

func (m *MemoryStore) LoadObjects(_ context.Context, regionID uuid.UUID) ([]ObjectRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	bucket, ok := m.objects[regionID]
	if !ok {
		return nil, nil
	}
	result := make([]ObjectRecord, 0, len(bucket))
	for _, rec := range bucket {
		result = append(result, rec)
	}
	return result, nil
}

func (m *MemoryStore) UpsertObjectsTx(_ context.Context, regionID uuid.UUID, records []ObjectRecord, tombstones []uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.regions[regionID]; !ok {
		return fmt.Errorf("неизвестный регион %s", regionID)
	}

	bucket, ok := m.objects[regionID]
	if !ok {
		bucket = make(map[uuid.UUID]ObjectRecord)
		m.objects[regionID] = bucket
	}

	for _, rec := range records {
		bucket[rec.UUID] = rec
	}
	for _, id := range tombstones {
		delete(bucket, id)
	}
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}

// MemoryBlobStore — in-memory BlobStore companion to MemoryStore.
type MemoryBlobStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{blobs: make(map[string][]byte)}
}

func (b *MemoryBlobStore) PutBlob(_ context.Context, key string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	cp := append([]byte{}, data...)
	b.blobs[key] = cp
	return nil
}

func (b *MemoryBlobStore) GetBlob(_ context.Context, key string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	data, ok := b.blobs[key]
	if !ok {
		return nil, fmt.Errorf("blob %s отсутствует", key)
	}
	return append([]byte{}, data...), nil
}

func (b *MemoryBlobStore) DeleteBlob(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.blobs, key)
	return nil
}

func (b *MemoryBlobStore) Close() error {
	return nil
}
