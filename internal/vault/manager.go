// Package vault implements the PebbleVault spatial storage engine: a
// region-partitioned in-memory R-tree index with object lifecycle,
// box-query semantics, and a checkpoint/recovery protocol against an
// abstract BackingStore (internal/store).
package vault

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pebblevault/pebblevault/internal/store"
)

// VaultManager is the top-level coordinator: region registry, cross-region
// transfer, and checkpoint/recovery orchestration. It is the only
// component that talks to the BackingStore (§3, §4.1).
//
// Lock discipline (§5): mu protects regions and objectIndex. Whenever a
// caller needs both mu and a region's lock, mu is always acquired first —
// manager, then region(s), never the reverse. loadRegion and TransferPlayer
// are the two call sites that actually hold both at once; TransferPlayer
// additionally acquires its two region locks in ascending RegionID order
// once mu is held, to prevent deadlock against other concurrent transfers.
type VaultManager struct {
	mu *ctxRWMutex

	regions     map[RegionID]*regionState
	objectIndex map[ObjectID]RegionID

	backing store.BackingStore
	blobs   store.BlobStore

	cfg     Config
	metrics *Metrics
}

// New opens or creates a BackingStore at cfg.StorePath and eagerly loads
// the region registry into memory (§4.1 "new"). Object data per region is
// loaded lazily unless cfg.LazyLoadRegions is false.
func New(ctx context.Context, cfg Config) (*VaultManager, error) {
	backing, blobs, err := openStores(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return newWithStores(ctx, cfg, backing, blobs)
}

// newWithStores wires a VaultManager around already-opened stores —
// used directly by tests that want MemoryStore/MemoryBlobStore instead of
// the network-backed defaults New() would otherwise open.
func newWithStores(ctx context.Context, cfg Config, backing store.BackingStore, blobs store.BlobStore) (*VaultManager, error) {
	vm := &VaultManager{
		mu:          newCtxRWMutex(),
		regions:     make(map[RegionID]*regionState),
		objectIndex: make(map[ObjectID]RegionID),
		backing:     backing,
		blobs:       blobs,
		cfg:         cfg,
		metrics:     NewMetrics(),
	}

	records, err := backing.ListRegions(ctx)
	if err != nil {
		return nil, wrapErr(StoreIO, err, "ошибка загрузки реестра регионов")
	}

	for _, rec := range records {
		meta := RegionMeta{
			ID:     rec.RegionID,
			Center: Point{X: rec.CX, Y: rec.CY, Z: rec.CZ},
			Radius: rec.Radius,
		}
		vm.regions[rec.RegionID] = newRegionState(meta)
	}

	if !cfg.LazyLoadRegions {
		for _, region := range vm.regions {
			if err := vm.loadRegionObjects(ctx, region); err != nil {
				return nil, err
			}
		}
	}

	vm.metrics.RegionCount.Set(float64(len(vm.regions)))
	return vm, nil
}

func openStores(ctx context.Context, cfg Config) (store.BackingStore, store.BlobStore, error) {
	var backing store.BackingStore
	var err error

	switch cfg.BackingStore {
	case BackingStoreMongo:
		backing, err = store.NewMongoStore(ctx, cfg.StorePath, "pebblevault")
	case BackingStoreMySQL, "":
		backing, err = store.NewSQLStore(cfg.StorePath)
	default:
		return nil, nil, newErr(InvalidArgument, "неизвестный backing store %q", cfg.BackingStore)
	}
	if err != nil {
		return nil, nil, wrapErr(StoreIO, err, "не удалось открыть backing store")
	}

	var blobs store.BlobStore
	switch cfg.BlobStore {
	case BlobStoreBadger:
		blobs, err = store.NewBadgerBlobStore(cfg.BlobStorePath)
	case BlobStoreFilesystem, "":
		blobs, err = store.NewFileBlobStore(cfg.BlobStorePath)
	default:
		backing.Close()
		return nil, nil, newErr(InvalidArgument, "неизвестный blob store %q", cfg.BlobStore)
	}
	if err != nil {
		backing.Close()
		return nil, nil, wrapErr(StoreIO, err, "не удалось открыть blob store")
	}

	return backing, blobs, nil
}

// lockCtx applies cfg.LockTimeout to ctx when one was configured and the
// caller didn't already pass a deadline of its own.
func (vm *VaultManager) lockCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if vm.cfg.LockTimeout <= 0 {
		return ctx, func() {}
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, vm.cfg.LockTimeout)
}

// CreateOrLoadRegion returns the id of a region with the given (center,
// radius); if one already exists (bit-exact double match, §4.4) it is
// reused, otherwise a new region is allocated and persisted.
func (vm *VaultManager) CreateOrLoadRegion(ctx context.Context, center Point, radius float64) (RegionID, error) {
	if !center.Finite() || radius <= 0 {
		return uuid.Nil, newErr(InvalidArgument, "некорректная геометрия региона: center=%+v radius=%v", center, radius)
	}

	lctx, cancel := vm.lockCtx(ctx)
	defer cancel()
	if err := vm.mu.lock(lctx); err != nil {
		return uuid.Nil, err
	}
	defer vm.mu.unlock()

	for id, region := range vm.regions {
		if region.meta.sameGeometry(center, radius) {
			return id, nil
		}
	}

	id := uuid.New()
	meta := RegionMeta{ID: id, Center: center, Radius: radius}

	if err := vm.backing.UpsertRegion(ctx, store.RegionRecord{
		RegionID: id, CX: center.X, CY: center.Y, CZ: center.Z, Radius: radius,
	}); err != nil {
		return uuid.Nil, wrapErr(StoreIO, err, "ошибка сохранения региона")
	}

	vm.regions[id] = newRegionState(meta)
	vm.metrics.RegionCount.Set(float64(len(vm.regions)))
	return id, nil
}

// resolveRegion returns the region pointer for id without touching its lock.
func (vm *VaultManager) resolveRegion(ctx context.Context, id RegionID) (*regionState, error) {
	lctx, cancel := vm.lockCtx(ctx)
	defer cancel()
	if err := vm.mu.rlock(lctx); err != nil {
		return nil, err
	}
	defer vm.mu.runlock()

	region, ok := vm.regions[id]
	if !ok {
		return nil, newErr(NotFound, "неизвестный регион %s", id)
	}
	return region, nil
}

// ensureLoaded performs the lazy per-region bulk load on first touch (§4.4,
// §4.6). Safe to call repeatedly; subsequent calls are no-ops.
func (vm *VaultManager) ensureLoaded(ctx context.Context, region *regionState) error {
	if region.isLoaded() {
		return nil
	}
	return vm.loadRegion(ctx, region)
}

// loadRegionObjects is used from New for eager loading, where no other
// goroutine can be touching the region yet.
func (vm *VaultManager) loadRegionObjects(ctx context.Context, region *regionState) error {
	return vm.loadRegion(ctx, region)
}

// loadRegion performs the bulk backing-store read for region and installs
// the resulting objects into both the region's index and vm.objectIndex.
// The backing/blob reads happen with no lock held; the installation step
// holds vm.mu and then region's write lock, in that order (§5), so this
// never races the reversed order against another manager-level operation.
func (vm *VaultManager) loadRegion(ctx context.Context, region *regionState) error {
	records, err := vm.backing.LoadObjects(ctx, region.meta.ID)
	if err != nil {
		return wrapErr(StoreIO, err, "ошибка загрузки объектов региона %s", region.meta.ID)
	}

	objs := make([]SpatialObject, 0, len(records))
	for _, rec := range records {
		data := rec.PayloadInline
		if rec.PayloadRef != "" {
			blob, err := vm.blobs.GetBlob(ctx, rec.PayloadRef)
			if err != nil {
				// §4.6 / §7: a missing side file degrades the single
				// object, not the whole region load.
				data = nil
			} else if plain, err := decompressZstd(blob); err == nil {
				data = plain
			}
		}

		objs = append(objs, SpatialObject{
			ID:         rec.UUID,
			RegionID:   region.meta.ID,
			ObjectType: rec.Type,
			Position:   Point{X: rec.X, Y: rec.Y, Z: rec.Z},
			CustomData: data,
		})
	}

	lctx, cancel := vm.lockCtx(ctx)
	defer cancel()

	if err := vm.mu.lock(lctx); err != nil {
		return err
	}
	defer vm.mu.unlock()

	if err := region.lockWrite(lctx); err != nil {
		return err
	}
	defer region.unlockWrite()

	if region.loaded {
		return nil
	}

	for _, obj := range objs {
		region.addLocked(obj)
		vm.objectIndex[obj.ID] = region.meta.ID
	}
	vm.metrics.ObjectCount.Add(float64(len(objs)))

	region.dirty = false
	region.loaded = true
	return nil
}

// AddObject inserts a new object into regionID (§4.1).
func (vm *VaultManager) AddObject(ctx context.Context, regionID RegionID, id ObjectID, objType string, pos Point, customData []byte) error {
	if !pos.Finite() {
		return newErr(InvalidArgument, "нефинитные координаты у объекта %s", id)
	}

	region, err := vm.resolveRegion(ctx, regionID)
	if err != nil {
		return err
	}
	if err := vm.ensureLoaded(ctx, region); err != nil {
		return err
	}

	lctx, cancel := vm.lockCtx(ctx)
	defer cancel()

	if err := vm.mu.lock(lctx); err != nil {
		return err
	}
	_, exists := vm.objectIndex[id]
	vm.mu.unlock()
	if exists {
		return newErr(Conflict, "объект %s уже существует", id)
	}

	obj := SpatialObject{ID: id, RegionID: regionID, ObjectType: objType, Position: pos, CustomData: customData}
	if err := region.add(lctx, obj); err != nil {
		return err
	}

	if err := vm.mu.lock(lctx); err != nil {
		return err
	}
	vm.objectIndex[id] = regionID
	vm.mu.unlock()

	vm.metrics.ObjectCount.Inc()
	return nil
}

// GetObject looks up an object by id in O(1) via objectIndex then O(log n)
// within its region (§4.1).
func (vm *VaultManager) GetObject(ctx context.Context, id ObjectID) (SpatialObject, error) {
	regionID, err := vm.lookupOwner(ctx, id)
	if err != nil {
		return SpatialObject{}, err
	}

	region, err := vm.resolveRegion(ctx, regionID)
	if err != nil {
		return SpatialObject{}, err
	}

	obj, ok, err := region.get(ctx, id)
	if err != nil {
		return SpatialObject{}, err
	}
	if !ok {
		return SpatialObject{}, newErr(NotFound, "объект %s отсутствует в регионе %s", id, regionID)
	}
	return obj, nil
}

// lookupOwner resolves id's owning region via objectIndex. Under lazy
// loading (§4.4), an object belonging to a region nobody has touched yet
// won't appear in objectIndex — in that case it falls back to loading
// untouched regions one at a time until the object turns up or every
// region has been loaded, matching the spec's "first operation on a cold
// region may incur a bulk read" contract for get_object/update_object/
// remove_object, not just query_region/add_object.
func (vm *VaultManager) lookupOwner(ctx context.Context, id ObjectID) (RegionID, error) {
	if regionID, ok := vm.peekOwner(id); ok {
		return regionID, nil
	}

	for _, region := range vm.unloadedRegions() {
		if err := vm.ensureLoaded(ctx, region); err != nil {
			return uuid.Nil, err
		}
		if regionID, ok := vm.peekOwner(id); ok {
			return regionID, nil
		}
	}

	return uuid.Nil, newErr(NotFound, "неизвестный объект %s", id)
}

func (vm *VaultManager) peekOwner(id ObjectID) (RegionID, bool) {
	// Acquisition against context.Background() never times out, so the
	// error is unreachable here.
	_ = vm.mu.rlock(context.Background())
	defer vm.mu.runlock()
	regionID, ok := vm.objectIndex[id]
	return regionID, ok
}

func (vm *VaultManager) unloadedRegions() []*regionState {
	_ = vm.mu.rlock(context.Background())
	defer vm.mu.runlock()

	result := make([]*regionState, 0)
	for _, region := range vm.regions {
		if !region.isLoaded() {
			result = append(result, region)
		}
	}
	return result
}

// UpdateObject replaces the record matching obj.ID; if the position
// changed the R-tree entry is removed and re-inserted (§4.1, §9). Region
// membership is unchanged — use TransferPlayer for that.
func (vm *VaultManager) UpdateObject(ctx context.Context, obj SpatialObject) error {
	if !obj.Position.Finite() {
		return newErr(InvalidArgument, "нефинитные координаты у объекта %s", obj.ID)
	}

	regionID, err := vm.lookupOwner(ctx, obj.ID)
	if err != nil {
		return err
	}

	region, err := vm.resolveRegion(ctx, regionID)
	if err != nil {
		return err
	}

	_, ok, err := region.update(ctx, obj)
	if err != nil {
		return err
	}
	if !ok {
		return newErr(NotFound, "объект %s отсутствует в регионе %s", obj.ID, regionID)
	}
	return nil
}

// QueryRegion returns every object in regionID whose point lies in the
// closed, normalized box (§4.1).
func (vm *VaultManager) QueryRegion(ctx context.Context, regionID RegionID, box Box) ([]SpatialObject, error) {
	region, err := vm.resolveRegion(ctx, regionID)
	if err != nil {
		return nil, err
	}
	if err := vm.ensureLoaded(ctx, region); err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := region.queryBox(ctx, box.Normalized())
	vm.metrics.QueryDuration.Observe(time.Since(start).Seconds())
	return result, err
}

// RemoveObject removes an object from its region index, uuid_map, and the
// manager's objectIndex (§4.1).
func (vm *VaultManager) RemoveObject(ctx context.Context, id ObjectID) error {
	regionID, err := vm.lookupOwner(ctx, id)
	if err != nil {
		return err
	}

	region, err := vm.resolveRegion(ctx, regionID)
	if err != nil {
		return err
	}

	_, ok, err := region.remove(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return newErr(NotFound, "объект %s отсутствует в регионе %s", id, regionID)
	}

	lctx, cancel := vm.lockCtx(ctx)
	defer cancel()
	if err := vm.mu.lock(lctx); err != nil {
		return err
	}
	delete(vm.objectIndex, id)
	vm.mu.unlock()

	vm.metrics.ObjectCount.Dec()
	return nil
}

// TransferPlayer atomically moves an object from one region to another,
// preserving position and identity (§4.1, §5, P5). vm.mu is acquired before
// either region lock (§5); the two region locks are then taken in
// ascending RegionID order to prevent deadlock against other concurrent
// transfers.
func (vm *VaultManager) TransferPlayer(ctx context.Context, id ObjectID, fromID, toID RegionID) error {
	if fromID == toID {
		return newErr(InvalidArgument, "from и to регионы совпадают: %s", fromID)
	}

	fromRegion, err := vm.resolveRegion(ctx, fromID)
	if err != nil {
		return err
	}
	toRegion, err := vm.resolveRegion(ctx, toID)
	if err != nil {
		return err
	}
	if err := vm.ensureLoaded(ctx, fromRegion); err != nil {
		return err
	}
	if err := vm.ensureLoaded(ctx, toRegion); err != nil {
		return err
	}

	first, second := fromRegion, toRegion
	if lessUUID(toID, fromID) {
		first, second = toRegion, fromRegion
	}

	lctx, cancel := vm.lockCtx(ctx)
	defer cancel()

	if err := vm.mu.lock(lctx); err != nil {
		return err
	}
	defer vm.mu.unlock()

	if err := first.lockWrite(lctx); err != nil {
		return err
	}
	defer first.unlockWrite()
	if first != second {
		if err := second.lockWrite(lctx); err != nil {
			return err
		}
		defer second.unlockWrite()
	}

	obj, ok := fromRegion.removeLocked(id)
	if !ok {
		return newErr(NotFound, "объект %s отсутствует в регионе %s", id, fromID)
	}

	obj.RegionID = toID
	toRegion.addLocked(obj)
	vm.objectIndex[id] = toID

	return nil
}

// lessUUID imposes the ascending-RegionID lock order used by TransferPlayer
// to prevent deadlock against other concurrent transfers (§5).
func lessUUID(a, b uuid.UUID) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// RemoveRegion deletes a region and cascades to every object it owns
// (§3 "Lifecycles").
func (vm *VaultManager) RemoveRegion(ctx context.Context, regionID RegionID) error {
	lctx, cancel := vm.lockCtx(ctx)
	defer cancel()

	if err := vm.mu.lock(lctx); err != nil {
		return err
	}
	region, ok := vm.regions[regionID]
	if !ok {
		vm.mu.unlock()
		return newErr(NotFound, "неизвестный регион %s", regionID)
	}
	delete(vm.regions, regionID)
	remaining := len(vm.regions)
	vm.mu.unlock()

	objs, err := region.iterAll(lctx)
	if err == nil {
		if err := vm.mu.lock(lctx); err == nil {
			for _, obj := range objs {
				delete(vm.objectIndex, obj.ID)
			}
			vm.mu.unlock()
			vm.metrics.ObjectCount.Sub(float64(len(objs)))
		}
	}

	if err := vm.backing.DeleteRegion(ctx, regionID); err != nil {
		return wrapErr(StoreIO, err, "ошибка удаления региона %s", regionID)
	}

	vm.metrics.RegionCount.Set(float64(remaining))
	return nil
}

// ManagerStats summarizes manager state for diagnostics (§4.1 "Stats").
type ManagerStats struct {
	RegionCount      int
	ObjectCount      int
	DirtyRegionCount int
}

// Stats returns a point-in-time summary.
func (vm *VaultManager) Stats(ctx context.Context) (ManagerStats, error) {
	if err := vm.mu.rlock(ctx); err != nil {
		return ManagerStats{}, err
	}
	regions := make([]*regionState, 0, len(vm.regions))
	for _, r := range vm.regions {
		regions = append(regions, r)
	}
	stats := ManagerStats{RegionCount: len(vm.regions), ObjectCount: len(vm.objectIndex)}
	vm.mu.runlock()

	for _, r := range regions {
		if dirty, err := r.isDirty(ctx); err == nil && dirty {
			stats.DirtyRegionCount++
		}
	}
	vm.metrics.DirtyRegionCount.Set(float64(stats.DirtyRegionCount))
	return stats, nil
}

// Close releases the BackingStore and BlobStore handles, performing a
// final checkpoint first if cfg.CheckpointOnDrop is set.
func (vm *VaultManager) Close(ctx context.Context) error {
	var persistErr error
	if vm.cfg.CheckpointOnDrop {
		persistErr = vm.PersistToDisk(ctx)
	}

	if err := vm.blobs.Close(); err != nil && persistErr == nil {
		persistErr = fmt.Errorf("ошибка закрытия blob store: %w", err)
	}
	if err := vm.backing.Close(); err != nil && persistErr == nil {
		persistErr = fmt.Errorf("ошибка закрытия backing store: %w", err)
	}
	return persistErr
}
