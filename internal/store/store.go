// Package store реализует абстрактный контракт BackingStore (§6
// спецификации) и его конкретные бэкенды. VaultManager общается с
// durable-хранилищем только через интерфейсы этого пакета — выбор
// реляционного движка, пул соединений и файловый layout на диске не
// являются частью ядра.
package store

import (
	"context"

	"github.com/google/uuid"
)

// RegionRecord — строка реестра регионов: (region_id, cx, cy, cz, radius).
type RegionRecord struct {
	RegionID uuid.UUID
	CX, CY, CZ float64
	Radius   float64
}

// ObjectRecord — строка таблицы объектов. PayloadInline хранит сериализованный
// custom_data, если он уместился под порогом; PayloadRef, если нет —
// в этом случае PayloadInline пуст и payload живёт в блоб-сторе под ключом
// PayloadRef.
type ObjectRecord struct {
	UUID          uuid.UUID
	RegionID      uuid.UUID
	Type          string
	X, Y, Z       float64
	PayloadInline []byte
	PayloadRef    string // пусто, если payload хранится инлайн
}

// BackingStore — durable key/record store, используемый VaultManager.
// Любая реализация, удовлетворяющая этому контракту, годится (§9
// "R-tree choice" / §6) — в этом репозитории их две, SQL (по умолчанию) и
// Mongo, плюс отдельный BlobStore для экстернализованных payload'ов.
type BackingStore interface {
	// ListRegions возвращает реестр регионов целиком.
	ListRegions(ctx context.Context) ([]RegionRecord, error)

	// UpsertRegion создаёт или обновляет метаданные одного региона.
	UpsertRegion(ctx context.Context, rec RegionRecord) error

	// DeleteRegion удаляет регион и каскадно все его объекты.
	DeleteRegion(ctx context.Context, regionID uuid.UUID) error

	// LoadObjects возвращает все объекты региона (используется ленивой
	// загрузкой при первом обращении к региону, §4.4).
	LoadObjects(ctx context.Context, regionID uuid.UUID) ([]ObjectRecord, error)

	// UpsertObjectsTx фиксирует batch изменений одного региона в одной
	// транзакции: upsert записей в records, и delete для tombstones.
	// Операция all-or-nothing — хранилище никогда не наблюдает частичный
	// регион (§4.5).
	UpsertObjectsTx(ctx context.Context, regionID uuid.UUID, records []ObjectRecord, tombstones []uuid.UUID) error

	// Close освобождает ресурсы хранилища (соединения, файловые дескрипторы).
	Close() error
}

// BlobStore — put_blob/get_blob половина контракта BackingStore,
// используемая для экстернализации полезных нагрузок, превышающих
// configured oversized threshold (§4.5 п.2).
type BlobStore interface {
	PutBlob(ctx context.Context, key string, data []byte) error
	GetBlob(ctx context.Context, key string) ([]byte, error)
	DeleteBlob(ctx context.Context, key string) error
	Close() error
}
