// Package engine declares the storage-engine collaborators this transfer
// engine consumes but does not own: tablet lookup, per-tablet locks, data
// directory capacity accounting, and rowset-id rewriting. Snapshot
// creation, the tablet manager's persistence, and per-tablet locking
// itself all live on the other side of these interfaces -- this package
// only names the shape the loader package needs.
package engine

// TryLocker is satisfied by any of a tablet's non-blocking locks
// (migration, base-compaction, cumulative-compaction, cold-compaction,
// build-inverted-index, meta-store). Move acquires all six non-blocking
// before it will touch the tablet directory.
type TryLocker interface {
	TryLock() bool
	Unlock()
}

// DataDir is a mounted storage volume with capacity accounting.
type DataDir interface {
	Path() string
	// ReachCapacityLimit reports whether writing an additional
	// incomingSize bytes would exceed this volume's usable capacity.
	ReachCapacityLimit(incomingSize int64) bool
}

// Tablet is a single tablet's live identity and lock surface.
type Tablet interface {
	TabletID() int64
	ReplicaID() int64
	TableID() int64
	PartitionID() int64
	TabletPath() string
	DataDir() DataDir

	MigrationLock() TryLocker
	BaseCompactionLock() TryLocker
	CumulativeCompactionLock() TryLocker
	ColdCompactionLock() TryLocker
	BuildInvertedIndexLock() TryLocker
	MetaStoreLock() TryLocker
}

// TabletManager resolves tablet ids to live tablets and reloads a
// tablet's header after its on-disk files change underneath it.
type TabletManager interface {
	GetTablet(tabletID int64) (Tablet, bool)
	// LoadTabletFromDir asks the storage engine to (re)open the tablet
	// rooted at tabletPath on store, verifying it against tabletID and
	// schemaHash. restore=true signals this is a promotion, not a
	// routine reopen.
	LoadTabletFromDir(store DataDir, tabletID int64, schemaHash int32, tabletPath string, restore bool) error
}

// SnapshotManager rewrites the rowset ids and tablet/replica/table/
// partition identifiers baked into a snapshot's rowset metas so the
// snapshot can be restored onto a different tablet than the one it was
// taken from.
type SnapshotManager interface {
	ConvertRowsetIDs(snapshotPath string, tabletID, replicaID, tableID, partitionID int64, schemaHash int32) error
}

// StorageEngine is the aggregate of collaborators move() needs.
type StorageEngine interface {
	TabletManager() TabletManager
	SnapshotManager() SnapshotManager
	// GetStore resolves a data directory by its mount path.
	GetStore(path string) (DataDir, bool)
}
