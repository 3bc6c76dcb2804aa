package store

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_RegionRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	rec := RegionRecord{RegionID: uuid.New(), CX: 1, CY: 2, CZ: 3, Radius: 50}
	require.NoError(t, s.UpsertRegion(ctx, rec))

	regions, err := s.ListRegions(ctx)
	require.NoError(t, err)
	require.Len(t, regions, 1)
	assert.Equal(t, rec, regions[0])

	require.NoError(t, s.DeleteRegion(ctx, rec.RegionID))
	regions, err = s.ListRegions(ctx)
	require.NoError(t, err)
	assert.Empty(t, regions)
}

func TestMemoryStore_UpsertObjectsTxAppliesUpsertsAndTombstones(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	regionID := uuid.New()
	require.NoError(t, s.UpsertRegion(ctx, RegionRecord{RegionID: regionID}))

	obj1 := ObjectRecord{UUID: uuid.New(), RegionID: regionID, Type: "player", X: 1, Y: 2, Z: 3}
	obj2 := ObjectRecord{UUID: uuid.New(), RegionID: regionID, Type: "crate", X: 4, Y: 5, Z: 6}

	require.NoError(t, s.UpsertObjectsTx(ctx, regionID, []ObjectRecord{obj1, obj2}, nil))

	loaded, err := s.LoadObjects(ctx, regionID)
	require.NoError(t, err)
	assert.Len(t, loaded, 2)

	require.NoError(t, s.UpsertObjectsTx(ctx, regionID, nil, []uuid.UUID{obj1.UUID}))
	loaded, err = s.LoadObjects(ctx, regionID)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, obj2.UUID, loaded[0].UUID)
}

func TestMemoryStore_UpsertObjectsTxRejectsUnknownRegion(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	err := s.UpsertObjectsTx(ctx, uuid.New(), []ObjectRecord{{UUID: uuid.New()}}, nil)
	assert.Error(t, err)
}

func TestMemoryBlobStore_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBlobStore()

	key := "object-blob"
	data := []byte("payload bytes")

	require.NoError(t, b.PutBlob(ctx, key, data))

	got, err := b.GetBlob(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	require.NoError(t, b.DeleteBlob(ctx, key))
	_, err = b.GetBlob(ctx, key)
	assert.Error(t, err, "чтение удалённого blob должно вернуть ошибку")
}
