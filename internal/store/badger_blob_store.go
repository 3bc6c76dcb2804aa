package store

import (
	"context"
	"fmt"

	"github.com/dgraph-io/badger/v3"
)

// BadgerBlobStore — an embedded-KV alternative to FileBlobStore, grounded
// directly on the teacher's WorldStorage (internal/storage/world_storage.go):
// badger.DefaultOptions, db.Update/db.View transactions,
// badger.ErrKeyNotFound mapped to a not-found error.
type BadgerBlobStore struct {
	db *badger.DB
}

// NewBadgerBlobStore opens (or creates) a badger database at path.
func NewBadgerBlobStore(path string) (*BadgerBlobStore, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB для blob-хранилища: %w", err)
	}
	return &BadgerBlobStore{db: db}, nil
}

func (b *BadgerBlobStore) PutBlob(_ context.Context, key string, data []byte) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
	if err != nil {
		return fmt.Errorf("ошибка записи blob %s в BadgerDB: %w", key, err)
	}
	return nil
}

func (b *BadgerBlobStore) GetBlob(_ context.Context, key string) ([]byte, error) {
	var data []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			data = append([]byte{}, val...)
			return nil
		})
	})
	if err == badger.ErrKeyNotFound {
		return nil, fmt.Errorf("blob %s отсутствует: %w", key, err)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения blob %s из BadgerDB: %w", key, err)
	}
	return data, nil
}

func (b *BadgerBlobStore) DeleteBlob(_ context.Context, key string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("ошибка удаления blob %s из BadgerDB: %w", key, err)
	}
	return nil
}

func (b *BadgerBlobStore) Close() error {
	return b.db.Close()
}
