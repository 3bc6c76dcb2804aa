package vault

import "context"

// regionState — резидентное состояние одного региона: пространственный
// индекс, карта UUID→запись для O(1) identity-поиска, и учёт изменений
// с последнего успешного чекпоинта.
//
// mu — единая RW-блокировка, защищающая index и byID вместе (§5: "Each
// Region holds a reader-writer lock protecting its index and uuid_map
// together"). Она же используется VaultManager для многорегионных
// операций (transfer_player), которые должны держать обе блокировки
// одновременно — поэтому большинство методов region имеют вариант без
// самостоятельной блокировки (суффикс Locked), вызываемый когда
// блокировка уже захвачена вызывающей стороной, и блокирующий вариант для
// одиночных операций.
type regionState struct {
	mu *ctxRWMutex

	meta  RegionMeta
	index *SpatialIndex
	byID  map[ObjectID]SpatialObject

	dirty      bool
	tombstones map[ObjectID]struct{} // удалённые с последнего успешного чекпоинта

	loaded bool // true после первого обращения к BackingStore (§4.4 lazy load)
}

func newRegionState(meta RegionMeta) *regionState {
	return &regionState{
		mu:         newCtxRWMutex(),
		meta:       meta,
		index:      NewSpatialIndex(),
		byID:       make(map[ObjectID]SpatialObject),
		tombstones: make(map[ObjectID]struct{}),
	}
}

func (r *regionState) lockWrite(ctx context.Context) error { return r.mu.lock(ctx) }
func (r *regionState) unlockWrite()                        { r.mu.unlock() }
func (r *regionState) lockRead(ctx context.Context) error  { return r.mu.rlock(ctx) }
func (r *regionState) unlockRead()                         { r.mu.runlock() }

// addLocked вставляет новый объект; вызывающая сторона должна удерживать
// write-блокировку.
func (r *regionState) addLocked(obj SpatialObject) {
	r.byID[obj.ID] = obj
	r.index.Insert(obj.ID, obj.Position)
	delete(r.tombstones, obj.ID)
	r.dirty = true
}

func (r *regionState) add(ctx context.Context, obj SpatialObject) error {
	if err := r.lockWrite(ctx); err != nil {
		return err
	}
	defer r.unlockWrite()
	r.addLocked(obj)
	return nil
}

// removeLocked удаляет объект и помечает его как надгробие для следующего
// чекпоинта (§4.5 п.4); вызывающая сторона должна удерживать
// write-блокировку.
func (r *regionState) removeLocked(id ObjectID) (SpatialObject, bool) {
	obj, ok := r.byID[id]
	if !ok {
		return SpatialObject{}, false
	}

	delete(r.byID, id)
	r.index.Remove(id, obj.Position)
	r.tombstones[id] = struct{}{}
	r.dirty = true
	return obj, true
}

func (r *regionState) remove(ctx context.Context, id ObjectID) (SpatialObject, bool, error) {
	if err := r.lockWrite(ctx); err != nil {
		return SpatialObject{}, false, err
	}
	defer r.unlockWrite()
	obj, ok := r.removeLocked(id)
	return obj, ok, nil
}

// updateLocked заменяет запись с совпадающим ID. Если позиция изменилась,
// запись в R-дереве удаляется и вставляется заново (§4.1, §9: "No in-place
// point update").
func (r *regionState) updateLocked(obj SpatialObject) (SpatialObject, bool) {
	old, ok := r.byID[obj.ID]
	if !ok {
		return SpatialObject{}, false
	}

	obj.RegionID = old.RegionID
	r.byID[obj.ID] = obj

	if old.Position != obj.Position {
		r.index.Update(obj.ID, old.Position, obj.Position)
	}
	r.dirty = true
	return old, true
}

func (r *regionState) update(ctx context.Context, obj SpatialObject) (SpatialObject, bool, error) {
	if err := r.lockWrite(ctx); err != nil {
		return SpatialObject{}, false, err
	}
	defer r.unlockWrite()
	old, ok := r.updateLocked(obj)
	return old, ok, nil
}

// queryBoxLocked возвращает все объекты, чья точка лежит в нормализованной
// box; вызывающая сторона должна удерживать хотя бы read-блокировку.
func (r *regionState) queryBoxLocked(box Box) []SpatialObject {
	ids := r.index.Intersects(box)
	result := make([]SpatialObject, 0, len(ids))
	for _, id := range ids {
		if obj, ok := r.byID[id]; ok {
			result = append(result, obj)
		}
	}
	return result
}

func (r *regionState) queryBox(ctx context.Context, box Box) ([]SpatialObject, error) {
	if err := r.lockRead(ctx); err != nil {
		return nil, err
	}
	defer r.unlockRead()
	return r.queryBoxLocked(box), nil
}

func (r *regionState) getLocked(id ObjectID) (SpatialObject, bool) {
	obj, ok := r.byID[id]
	return obj, ok
}

func (r *regionState) get(ctx context.Context, id ObjectID) (SpatialObject, bool, error) {
	if err := r.lockRead(ctx); err != nil {
		return SpatialObject{}, false, err
	}
	defer r.unlockRead()
	obj, ok := r.getLocked(id)
	return obj, ok, nil
}

// containsID сообщает, принадлежит ли id этому региону.
func (r *regionState) containsID(ctx context.Context, id ObjectID) (bool, error) {
	if err := r.lockRead(ctx); err != nil {
		return false, err
	}
	defer r.unlockRead()
	_, ok := r.byID[id]
	return ok, nil
}

// iterAll возвращает снимок всех объектов региона под read-блокировкой —
// используется RemoveRegion для каскадной очистки object_index (снимок для
// чекпоинта делает snapshotForCheckpoint).
func (r *regionState) iterAll(ctx context.Context) ([]SpatialObject, error) {
	if err := r.lockRead(ctx); err != nil {
		return nil, err
	}
	defer r.unlockRead()

	result := make([]SpatialObject, 0, len(r.byID))
	for _, obj := range r.byID {
		result = append(result, obj)
	}
	return result, nil
}

func (r *regionState) size(ctx context.Context) (int, error) {
	if err := r.lockRead(ctx); err != nil {
		return 0, err
	}
	defer r.unlockRead()
	return len(r.byID), nil
}

// markClean сбрасывает dirty и очищает tombstone-набор после успешного
// коммита чекпоинта для этого региона.
func (r *regionState) markClean(ctx context.Context, committedTombstones map[ObjectID]struct{}) error {
	if err := r.lockWrite(ctx); err != nil {
		return err
	}
	defer r.unlockWrite()

	for id := range committedTombstones {
		delete(r.tombstones, id)
	}
	if len(r.tombstones) == 0 {
		r.dirty = false
	}
	return nil
}

// snapshotForCheckpoint копирует объекты и tombstones региона под
// read-блокировкой одним атомарным срезом (§4.5 п.1: "no new writes during
// snapshot" — гарантируется удержанием блокировки на чтение, которая
// исключает писателей).
func (r *regionState) snapshotForCheckpoint(ctx context.Context) ([]SpatialObject, map[ObjectID]struct{}, error) {
	if err := r.lockRead(ctx); err != nil {
		return nil, nil, err
	}
	defer r.unlockRead()

	objs := make([]SpatialObject, 0, len(r.byID))
	for _, obj := range r.byID {
		objs = append(objs, obj)
	}

	tombstones := make(map[ObjectID]struct{}, len(r.tombstones))
	for id := range r.tombstones {
		tombstones[id] = struct{}{}
	}

	return objs, tombstones, nil
}

// isLoaded reports whether the region's object data has already been
// pulled from the BackingStore (§4.4 lazy load). Used by VaultManager to
// fall back to a scan when an object isn't yet in objectIndex.
func (r *regionState) isLoaded() bool {
	_ = r.lockRead(context.Background()) // Acquire against Background() never fails
	defer r.unlockRead()
	return r.loaded
}

func (r *regionState) isDirty(ctx context.Context) (bool, error) {
	if err := r.lockRead(ctx); err != nil {
		return false, err
	}
	defer r.unlockRead()
	return r.dirty, nil
}
