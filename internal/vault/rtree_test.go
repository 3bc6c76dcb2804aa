package vault

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpatialIndex_InsertAndIntersects(t *testing.T) {
	idx := NewSpatialIndex()

	a := uuid.New()
	b := uuid.New()
	c := uuid.New()

	idx.Insert(a, Point{X: 1, Y: 1, Z: 1})
	idx.Insert(b, Point{X: 50, Y: 50, Z: 50})
	idx.Insert(c, Point{X: -10, Y: -10, Z: -10})

	assert.Equal(t, 3, idx.Len(), "индекс должен содержать три точки")

	found := idx.Intersects(Box{Min: Point{X: 0, Y: 0, Z: 0}, Max: Point{X: 2, Y: 2, Z: 2}})
	require.Len(t, found, 1, "запрос должен вернуть ровно одну точку")
	assert.Equal(t, a, found[0], "найденная точка должна совпадать с вставленной")
}

func TestSpatialIndex_BulkInsertAndQuery(t *testing.T) {
	idx := NewSpatialIndex()
	ids := make([]uuid.UUID, 0, 200)

	for i := 0; i < 200; i++ {
		id := uuid.New()
		ids = append(ids, id)
		idx.Insert(id, Point{X: float64(i), Y: float64(i % 7), Z: float64(i % 3)})
	}

	assert.Equal(t, 200, idx.Len())

	found := idx.Intersects(Box{
		Min: Point{X: -1000, Y: -1000, Z: -1000},
		Max: Point{X: 1000, Y: 1000, Z: 1000},
	})
	assert.Len(t, found, 200, "запрос, покрывающий всё пространство, должен вернуть все точки")
}

func TestSpatialIndex_RemoveAndRequery(t *testing.T) {
	idx := NewSpatialIndex()
	a := uuid.New()
	b := uuid.New()

	idx.Insert(a, Point{X: 5, Y: 5, Z: 5})
	idx.Insert(b, Point{X: 5, Y: 5, Z: 5})

	idx.Remove(a, Point{X: 5, Y: 5, Z: 5})
	assert.Equal(t, 1, idx.Len(), "после удаления должна остаться одна точка")

	found := idx.Intersects(Box{Min: Point{X: 4, Y: 4, Z: 4}, Max: Point{X: 6, Y: 6, Z: 6}})
	require.Len(t, found, 1)
	assert.Equal(t, b, found[0])

	idx.Remove(a, Point{X: 5, Y: 5, Z: 5})
	assert.Equal(t, 1, idx.Len(), "повторное удаление уже удалённой точки не должно ничего менять")
}

func TestSpatialIndex_UpdateMovesPoint(t *testing.T) {
	idx := NewSpatialIndex()
	id := uuid.New()

	idx.Insert(id, Point{X: 0, Y: 0, Z: 0})
	idx.Update(id, Point{X: 0, Y: 0, Z: 0}, Point{X: 100, Y: 100, Z: 100})

	assert.Empty(t, idx.Intersects(Box{Min: Point{X: -1, Y: -1, Z: -1}, Max: Point{X: 1, Y: 1, Z: 1}}),
		"старая позиция не должна больше находиться в индексе")

	found := idx.Intersects(Box{Min: Point{X: 99, Y: 99, Z: 99}, Max: Point{X: 101, Y: 101, Z: 101}})
	require.Len(t, found, 1)
	assert.Equal(t, id, found[0])
}

func TestSpatialIndex_EmptyQueryOutsideAllPoints(t *testing.T) {
	idx := NewSpatialIndex()
	idx.Insert(uuid.New(), Point{X: 0, Y: 0, Z: 0})

	found := idx.Intersects(Box{Min: Point{X: 1000, Y: 1000, Z: 1000}, Max: Point{X: 2000, Y: 2000, Z: 2000}})
	assert.Empty(t, found, "запрос вне всех точек должен вернуть пустой результат")
}
