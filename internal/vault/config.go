package vault

import "time"

// BackingStoreKind selects which BackingStore implementation New wires up.
type BackingStoreKind string

const (
	BackingStoreMySQL BackingStoreKind = "mysql"
	BackingStoreMongo BackingStoreKind = "mongo"
)

// BlobStoreKind selects which BlobStore implementation New wires up.
type BlobStoreKind string

const (
	BlobStoreFilesystem BlobStoreKind = "filesystem"
	BlobStoreBadger     BlobStoreKind = "badger"
)

// Config recognizes the options named in §6 of the specification, plus the
// backing-store/blob-store selection this implementation adds.
type Config struct {
	// StorePath is the DSN/URI/filesystem path the chosen BackingStore
	// opens — its shape depends on BackingStore.
	StorePath string

	// OversizedPayloadThresholdBytes — custom_data strictly larger than this
	// size is externalized to the blob store; a payload of exactly this size
	// stays inline. Zero or a negative value keeps every payload inline.
	OversizedPayloadThresholdBytes int64

	// CheckpointOnDrop — if true, Close() performs a final PersistToDisk.
	CheckpointOnDrop bool

	// LazyLoadRegions — if false, New eagerly loads every region's objects
	// instead of deferring to first touch (§4.4).
	LazyLoadRegions bool

	// BackingStore selects the backing-store backend (MySQL or MongoDB).
	BackingStore BackingStoreKind

	// BlobStore selects the externalized-payload backend.
	BlobStore BlobStoreKind

	// BlobStorePath is the directory (filesystem) or file path (badger)
	// the chosen BlobStore opens.
	BlobStorePath string

	// LockTimeout bounds lock acquisition; zero means block indefinitely.
	// See §5 "Lock acquisition may optionally time out".
	LockTimeout time.Duration
}

// DefaultConfig returns the defaults named in §6.
func DefaultConfig(storePath string) Config {
	return Config{
		StorePath:                      storePath,
		OversizedPayloadThresholdBytes: 1 << 20, // 1 MiB
		CheckpointOnDrop:               true,
		LazyLoadRegions:                true,
		BackingStore:                   BackingStoreMySQL,
		BlobStore:                      BlobStoreFilesystem,
		BlobStorePath:                  storePath + "-blobs",
	}
}
