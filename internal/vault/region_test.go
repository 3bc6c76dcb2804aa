package vault

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegionState_AddGetRemove(t *testing.T) {
	ctx := context.Background()
	r := newRegionState(RegionMeta{ID: uuid.New(), Center: Point{}, Radius: 10})

	id := uuid.New()
	obj := SpatialObject{ID: id, ObjectType: "player", Position: Point{X: 1, Y: 2, Z: 3}}
	require.NoError(t, r.add(ctx, obj))

	got, ok, err := r.get(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, obj, got)

	dirty, err := r.isDirty(ctx)
	require.NoError(t, err)
	assert.True(t, dirty, "add должен пометить регион как грязный")

	_, ok, err = r.remove(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)

	_, ok, err = r.get(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRegionState_UpdateChangesPositionInIndex(t *testing.T) {
	ctx := context.Background()
	r := newRegionState(RegionMeta{ID: uuid.New()})

	id := uuid.New()
	require.NoError(t, r.add(ctx, SpatialObject{ID: id, Position: Point{X: 0, Y: 0, Z: 0}}))

	_, ok, err := r.update(ctx, SpatialObject{ID: id, Position: Point{X: 9, Y: 9, Z: 9}})
	require.NoError(t, err)
	require.True(t, ok)

	results, err := r.queryBox(ctx, Box{Min: Point{X: 8, Y: 8, Z: 8}, Max: Point{X: 10, Y: 10, Z: 10}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, id, results[0].ID)

	oldBox, err := r.queryBox(ctx, Box{Min: Point{X: -1, Y: -1, Z: -1}, Max: Point{X: 1, Y: 1, Z: 1}})
	require.NoError(t, err)
	assert.Empty(t, oldBox)
}

func TestRegionState_UpdateUnknownIDReturnsFalse(t *testing.T) {
	ctx := context.Background()
	r := newRegionState(RegionMeta{ID: uuid.New()})

	_, ok, err := r.update(ctx, SpatialObject{ID: uuid.New(), Position: Point{}})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRegionState_SnapshotForCheckpointIsIndependentCopy(t *testing.T) {
	ctx := context.Background()
	r := newRegionState(RegionMeta{ID: uuid.New()})

	id := uuid.New()
	require.NoError(t, r.add(ctx, SpatialObject{ID: id, Position: Point{X: 1, Y: 1, Z: 1}}))
	_, _, err := r.remove(ctx, uuid.New())
	require.NoError(t, err)

	objs, tombstones, err := r.snapshotForCheckpoint(ctx)
	require.NoError(t, err)
	assert.Len(t, objs, 1)
	assert.Empty(t, tombstones, "удаление неизвестного id не должно создавать tombstone")

	_, _, err = r.remove(ctx, id)
	require.NoError(t, err)
	objs2, tombstones2, err := r.snapshotForCheckpoint(ctx)
	require.NoError(t, err)
	assert.Empty(t, objs2)
	assert.Len(t, tombstones2, 1)
	assert.Empty(t, tombstones, "первый снимок tombstones не должен меняться после последующего удаления")

	require.NoError(t, r.markClean(ctx, tombstones2))
	dirty, err := r.isDirty(ctx)
	require.NoError(t, err)
	assert.False(t, dirty, "markClean должен очистить dirty после закрытия всех tombstones")
}

func TestRegionState_ContainsID(t *testing.T) {
	ctx := context.Background()
	r := newRegionState(RegionMeta{ID: uuid.New()})

	id := uuid.New()
	ok, err := r.containsID(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, r.add(ctx, SpatialObject{ID: id, Position: Point{}}))
	ok, err = r.containsID(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)
}
