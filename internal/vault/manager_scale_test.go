package vault

import (
	"context"
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestVaultManager_QueryRegionMatchesBruteForceAtScale реализует сценарий 2
// из конечных сценариев §8: 100 000 объектов со случайными позициями в
// [-500,500]^3, распределённых по 10 регионам, и сверяет query_region с
// перебором по каждому региону.
func TestVaultManager_QueryRegionMatchesBruteForceAtScale(t *testing.T) {
	if testing.Short() {
		t.Skip("сценарий на 100 000 объектов пропущен в -short")
	}

	const (
		totalObjects = 100000
		regionCount  = 10
	)

	ctx := context.Background()
	vm := newTestManager(t)

	regionIDs := make([]RegionID, regionCount)
	for i := range regionIDs {
		id, err := vm.CreateOrLoadRegion(ctx, Point{X: float64(i) * 1000, Y: 0, Z: 0}, 10000)
		require.NoError(t, err)
		regionIDs[i] = id
	}

	rng := rand.New(rand.NewSource(20240601))
	brute := make(map[RegionID][]Point, regionCount)

	for i := 0; i < totalObjects; i++ {
		regionID := regionIDs[i%regionCount]
		pos := Point{
			X: rng.Float64()*1000 - 500,
			Y: rng.Float64()*1000 - 500,
			Z: rng.Float64()*1000 - 500,
		}
		require.NoError(t, vm.AddObject(ctx, regionID, uuid.New(), "particle", pos, nil))
		brute[regionID] = append(brute[regionID], pos)
	}

	box := Box{Min: Point{X: -100, Y: -100, Z: -100}, Max: Point{X: 100, Y: 100, Z: 100}}

	for _, regionID := range regionIDs {
		want := 0
		for _, p := range brute[regionID] {
			if box.Normalized().Contains(p) {
				want++
			}
		}

		got, err := vm.QueryRegion(ctx, regionID, box)
		require.NoError(t, err)
		assert.Len(t, got, want, "query_region для региона %s должен совпасть с перебором", regionID)
	}
}

// TestVaultManager_ObjectIndexAgreesWithRegionsUnderRandomOps — property-style
// проверка P1: после случайной последовательности add/remove/update/transfer
// object_index и объединение uuid_map всех регионов согласованы по набору
// ключей и по region_id.
func TestVaultManager_ObjectIndexAgreesWithRegionsUnderRandomOps(t *testing.T) {
	ctx := context.Background()
	vm := newTestManager(t)

	const regionCount = 4
	regionIDs := make([]RegionID, regionCount)
	for i := range regionIDs {
		id, err := vm.CreateOrLoadRegion(ctx, Point{X: float64(i) * 500, Y: 0, Z: 0}, 5000)
		require.NoError(t, err)
		regionIDs[i] = id
	}

	rng := rand.New(rand.NewSource(int64(1) << 20))
	live := make(map[ObjectID]RegionID)

	randPoint := func() Point {
		return Point{X: rng.Float64() * 100, Y: rng.Float64() * 100, Z: rng.Float64() * 100}
	}

	for round := 0; round < 2000; round++ {
		switch op := rng.Intn(4); {
		case op == 0 || len(live) == 0:
			regionID := regionIDs[rng.Intn(regionCount)]
			id := uuid.New()
			require.NoError(t, vm.AddObject(ctx, regionID, id, "thing", randPoint(), nil))
			live[id] = regionID

		case op == 1:
			id := pickRandomKey(rng, live)
			require.NoError(t, vm.RemoveObject(ctx, id))
			delete(live, id)

		case op == 2:
			id := pickRandomKey(rng, live)
			regionID := live[id]
			require.NoError(t, vm.UpdateObject(ctx, SpatialObject{ID: id, RegionID: regionID, ObjectType: "thing", Position: randPoint()}))

		default:
			id := pickRandomKey(rng, live)
			from := live[id]
			to := from
			for to == from {
				to = regionIDs[rng.Intn(regionCount)]
			}
			require.NoError(t, vm.TransferPlayer(ctx, id, from, to))
			live[id] = to
		}
	}

	stats, err := vm.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(live), stats.ObjectCount, "object_index должен содержать ровно все живые объекты")

	for id, regionID := range live {
		obj, err := vm.GetObject(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, regionID, obj.RegionID, "object_index должен указывать на тот же регион, что и владелец объекта")
	}
}

func pickRandomKey(rng *rand.Rand, m map[ObjectID]RegionID) ObjectID {
	n := rng.Intn(len(m))
	i := 0
	for k := range m {
		if i == n {
			return k
		}
		i++
	}
	panic("unreachable")
}
