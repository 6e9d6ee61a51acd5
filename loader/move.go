package loader

import (
	"context"
	"path"

	"github.com/vortexdb/snaptransfer/engine"
	"github.com/vortexdb/snaptransfer/internal/nlog"
	"github.com/vortexdb/snaptransfer/internal/xerr"
	"github.com/vortexdb/snaptransfer/localfs"
	"github.com/vortexdb/snaptransfer/pathcodec"
)

// Move promotes a fully-synced local snapshot directory into the live
// tablet directory it belongs to, via hardlink rather than copy. This is
// not crash-atomic: a process death between the RemoveAll and the final
// hardlink leaves the tablet directory empty or partially populated, recoverable only by
// re-running move with the same snapshot.
func (l *Loader) Move(ctx context.Context, snapshotPath string) error {
	guard := l.locks.Acquire(snapshotPath)
	defer guard.Release()

	tabletID, schemaHash, err := pathcodec.LocalTabletPath(snapshotPath)
	if err != nil {
		return err
	}

	tablet, ok := l.engine.TabletManager().GetTablet(tabletID)
	if !ok {
		return xerr.New(xerr.KindPathParse, "move: unknown tablet %d", tabletID)
	}
	tabletPathID, tabletPathHash, err := pathcodec.LocalTabletPath(tablet.TabletPath())
	if err != nil {
		return err
	}
	if tabletPathID != tabletID || tabletPathHash != schemaHash {
		return xerr.New(xerr.KindPathParse, "move: snapshot %s does not match tablet %d schema %d", snapshotPath, tabletID, schemaHash)
	}

	store, ok := l.engine.GetStore(tablet.DataDir().Path())
	if !ok {
		return xerr.New(xerr.KindIO, "move: data dir not found: %s", tablet.DataDir().Path())
	}

	if ok, err := localfs.IsDir(snapshotPath); err != nil {
		return err
	} else if !ok {
		return xerr.New(xerr.KindPathParse, "move: snapshot dir does not exist: %s", snapshotPath)
	}
	if ok, err := localfs.IsDir(tablet.TabletPath()); err != nil {
		return err
	} else if !ok {
		return xerr.New(xerr.KindPathParse, "move: tablet dir does not exist: %s", tablet.TabletPath())
	}

	if err := l.engine.SnapshotManager().ConvertRowsetIDs(snapshotPath, tabletID, tablet.ReplicaID(), tablet.TableID(), tablet.PartitionID(), schemaHash); err != nil {
		return err
	}

	locks := []engine.TryLocker{
		tablet.MigrationLock(),
		tablet.BaseCompactionLock(),
		tablet.CumulativeCompactionLock(),
		tablet.ColdCompactionLock(),
		tablet.BuildInvertedIndexLock(),
		tablet.MetaStoreLock(),
	}
	held, err := tryLockAll(locks)
	if err != nil {
		return err
	}
	defer unlockAll(held)

	if err := localfs.RemoveAll(tablet.TabletPath()); err != nil {
		return err
	}
	if err := localfs.Mkdir(tablet.TabletPath()); err != nil {
		return err
	}

	names, err := localfs.List(snapshotPath)
	if err != nil {
		return err
	}
	linked := make([]string, 0, len(names))
	for _, name := range names {
		dst := path.Join(tablet.TabletPath(), name)
		if err := localfs.Hardlink(path.Join(snapshotPath, name), dst); err != nil {
			for _, l := range linked {
				_ = localfs.Unlink(path.Join(tablet.TabletPath(), l))
			}
			return xerr.Wrap(xerr.KindIO, err, "move: hardlink %s into %s", name, tablet.TabletPath())
		}
		linked = append(linked, name)
	}

	if err := l.engine.TabletManager().LoadTabletFromDir(store, tabletID, schemaHash, tablet.TabletPath(), true); err != nil {
		return err
	}
	nlog.Infof("moved snapshot %s into tablet %d", snapshotPath, tabletID)
	return nil
}

// tryLockAll acquires every lock non-blocking, unwinding whatever it
// already holds on the first contended lock. A contended tablet is common
// during normal operation (compaction, another migration) and the
// coordinator is expected to retry.
func tryLockAll(locks []engine.TryLocker) ([]engine.TryLocker, error) {
	held := make([]engine.TryLocker, 0, len(locks))
	for _, lk := range locks {
		if !lk.TryLock() {
			unlockAll(held)
			return nil, xerr.New(xerr.KindLockContention, "move: tablet lock contended")
		}
		held = append(held, lk)
	}
	return held, nil
}

func unlockAll(held []engine.TryLocker) {
	for _, lk := range held {
		lk.Unlock()
	}
}
