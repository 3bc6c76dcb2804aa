package vault

import (
	"bytes"
	"context"
	"errors"
	"io"
	"time"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/sync/errgroup"

	"github.com/pebblevault/pebblevault/internal/store"
)

// checkpointConcurrency bounds how many regions one PersistToDisk call
// flushes to the BackingStore at once.
const checkpointConcurrency = 4

// PersistToDisk flushes every dirty region to the BackingStore: snapshot
// under the region's read lock, externalize oversized payloads to the
// BlobStore, commit the region's batch in one BackingStore transaction,
// then clear dirty/tombstones only on success (§4.5). A failing region does
// not stop the others; the per-region errors are returned joined.
func (vm *VaultManager) PersistToDisk(ctx context.Context) error {
	start := time.Now()
	defer func() { vm.metrics.CheckpointSeconds.Observe(time.Since(start).Seconds()) }()

	if err := vm.mu.rlock(ctx); err != nil {
		return err
	}
	regions := make([]*regionState, 0, len(vm.regions))
	for _, r := range vm.regions {
		regions = append(regions, r)
	}
	vm.mu.runlock()

	var g errgroup.Group
	g.SetLimit(checkpointConcurrency)
	errs := make([]error, len(regions))

	for i, region := range regions {
		i, region := i, region
		g.Go(func() error {
			errs[i] = vm.checkpointRegion(ctx, region)
			return nil
		})
	}

	_ = g.Wait()
	for _, err := range errs {
		if err != nil {
			vm.metrics.CheckpointFailure.Inc()
		}
	}
	return errors.Join(errs...)
}

func (vm *VaultManager) checkpointRegion(ctx context.Context, region *regionState) error {
	dirty, err := region.isDirty(ctx)
	if err != nil {
		return err
	}
	if !dirty {
		return nil
	}

	objs, tombstones, err := region.snapshotForCheckpoint(ctx)
	if err != nil {
		return err
	}

	records := make([]store.ObjectRecord, 0, len(objs))
	for _, obj := range objs {
		rec, err := vm.toObjectRecord(ctx, obj)
		if err != nil {
			return wrapErr(Corruption, err, "ошибка подготовки объекта %s к чекпоинту", obj.ID)
		}
		records = append(records, rec)
	}

	tombstoneIDs := make([]ObjectID, 0, len(tombstones))
	for id := range tombstones {
		tombstoneIDs = append(tombstoneIDs, id)
	}

	if err := vm.backing.UpsertObjectsTx(ctx, region.meta.ID, records, tombstoneIDs); err != nil {
		return wrapErr(StoreIO, err, "ошибка чекпоинта региона %s", region.meta.ID)
	}

	for _, id := range tombstoneIDs {
		// An object transferred to another region keeps its id, and that
		// region's record may reference the same blob key, so its blob stays.
		if _, live := vm.peekOwner(id); live {
			continue
		}
		// Best-effort: a stray blob left behind after a failed delete is
		// harmless (never referenced again), so this never fails the
		// checkpoint.
		_ = vm.blobs.DeleteBlob(ctx, id.String())
	}

	return region.markClean(ctx, tombstones)
}

// toObjectRecord decides whether obj.CustomData is stored inline or
// externalized to the blob store, compressing externalized payloads with
// zstd (§4.5 п.2: "payloads exceeding the configured threshold are
// externalized").
func (vm *VaultManager) toObjectRecord(ctx context.Context, obj SpatialObject) (store.ObjectRecord, error) {
	rec := store.ObjectRecord{
		UUID:     obj.ID,
		RegionID: obj.RegionID,
		Type:     obj.ObjectType,
		X:        obj.Position.X,
		Y:        obj.Position.Y,
		Z:        obj.Position.Z,
	}

	threshold := vm.cfg.OversizedPayloadThresholdBytes
	if threshold <= 0 || int64(len(obj.CustomData)) <= threshold {
		rec.PayloadInline = obj.CustomData
		return rec, nil
	}

	compressed, err := compressZstd(obj.CustomData)
	if err != nil {
		return store.ObjectRecord{}, err
	}

	key := obj.ID.String()
	if err := vm.blobs.PutBlob(ctx, key, compressed); err != nil {
		return store.ObjectRecord{}, err
	}
	rec.PayloadRef = key
	return rec, nil
}

// decompressZstd reverses toObjectRecord's compression for an externalized
// ref — decompresses the blob fetched by loadRegion.
func decompressZstd(data []byte) ([]byte, error) {
	decoder, err := zstd.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer decoder.Close()
	return io.ReadAll(decoder)
}

func compressZstd(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	encoder, err := zstd.NewWriter(&buf)
	if err != nil {
		return nil, err
	}
	if _, err := encoder.Write(data); err != nil {
		encoder.Close()
		return nil, err
	}
	if err := encoder.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
