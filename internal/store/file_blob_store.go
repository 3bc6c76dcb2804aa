package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileBlobStore персистит externalized payloads как "a side directory of
// blob files named by UUID" (§6) — the literal filesystem layout the spec
// describes. Grounded on the teacher's FileStorageAdapter
// (internal/storage_adapter/file_storage.go): os.MkdirAll on open,
// os.ReadFile/os.WriteFile per key, a mutex guarding the directory.
type FileBlobStore struct {
	basePath string
	mu       sync.RWMutex
}

// NewFileBlobStore creates basePath if it doesn't exist.
func NewFileBlobStore(basePath string) (*FileBlobStore, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию blob-хранилища %s: %w", basePath, err)
	}
	return &FileBlobStore{basePath: basePath}, nil
}

func (f *FileBlobStore) pathFor(key string) string {
	return filepath.Join(f.basePath, key+".blob")
}

func (f *FileBlobStore) PutBlob(_ context.Context, key string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.WriteFile(f.pathFor(key), data, 0o644); err != nil {
		return fmt.Errorf("ошибка записи blob %s: %w", key, err)
	}
	return nil
}

func (f *FileBlobStore) GetBlob(_ context.Context, key string) ([]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	data, err := os.ReadFile(f.pathFor(key))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("blob %s отсутствует: %w", key, err)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения blob %s: %w", key, err)
	}
	return data, nil
}

func (f *FileBlobStore) DeleteBlob(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.pathFor(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления blob %s: %w", key, err)
	}
	return nil
}

func (f *FileBlobStore) Close() error {
	return nil
}
